// Package replay re-runs recorded conversations against the engine
// using canned embeddings, so selection logic can be validated offline
// and deterministically.
package replay

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/embedder"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/engine"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/eval"
)

// #region stub-embedder

// StubEmbedder serves canned vectors keyed by normalized text. Texts
// without a canned vector return an error, which the engine treats the
// same as an embedding-service failure: the turn degrades to lexical
// matching and clarification routing.
type StubEmbedder struct {
	vectors map[string][]float32
}

// NewStubEmbedder creates a stub from a text→vector map.
func NewStubEmbedder(vectors map[string][]float32) *StubEmbedder {
	normalized := make(map[string][]float32, len(vectors))
	for text, vec := range vectors {
		normalized[embedder.Normalize(text)] = vec
	}
	return &StubEmbedder{vectors: normalized}
}

// Embed returns the canned vector for text.
func (s *StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec, ok := s.vectors[embedder.Normalize(text)]
	if !ok {
		return nil, fmt.Errorf("no canned embedding for %q", embedder.Normalize(text))
	}
	return vec, nil
}

// #endregion stub-embedder

// #region outcome

// TurnOutcome is the replayed result of one turn plus its checks.
type TurnOutcome struct {
	Turn       int
	Utterance  string
	Result     engine.TurnResult
	Eval       eval.Result
	Mismatches []string // expectation failures; empty when the turn matched
}

// Summary aggregates a replay run.
type Summary struct {
	Outcomes []TurnOutcome
	Passed   bool
}

// #endregion outcome

// #region harness

// Harness replays fixtures against a fully wired engine.
type Harness struct {
	engine *engine.Engine
	eval   *eval.Harness
}

// NewHarness creates a Harness. evalHarness may be nil to skip
// invariant checks.
func NewHarness(eng *engine.Engine, evalHarness *eval.Harness) *Harness {
	return &Harness{engine: eng, eval: evalHarness}
}

// Run replays every fixture turn in order, carrying state forward, and
// compares each turn against its expectation.
func (h *Harness) Run(ctx context.Context, fixture Fixture) (Summary, error) {
	vec, know, err := fixture.StartState()
	if err != nil {
		return Summary{}, err
	}

	expected := make(map[int]FixtureExpectation, len(fixture.Expected))
	for _, exp := range fixture.Expected {
		expected[exp.Turn] = exp
	}

	state := engine.State{Situation: vec, Knowledge: know}
	summary := Summary{Passed: true}

	for i, turn := range fixture.Turns {
		result := h.engine.ProcessTurn(ctx, engine.TurnInput{
			ConversationID: "replay",
			Utterance:      turn.Utterance,
			State:          state,
		})
		state = result.State

		outcome := TurnOutcome{Turn: i, Utterance: turn.Utterance, Result: result}
		if h.eval != nil {
			outcome.Eval = h.eval.Run(result)
			if !outcome.Eval.Passed {
				summary.Passed = false
			}
		}
		if exp, ok := expected[i]; ok {
			outcome.Mismatches = compare(exp, result)
			if len(outcome.Mismatches) > 0 {
				summary.Passed = false
			}
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}
	return summary, nil
}

// compare checks one turn against its expectation.
func compare(exp FixtureExpectation, result engine.TurnResult) []string {
	var mismatches []string

	if exp.Intent != "" && string(result.Intent.Intent) != exp.Intent {
		mismatches = append(mismatches,
			fmt.Sprintf("intent: got %s, want %s", result.Intent.Intent, exp.Intent))
	}

	if exp.Reactive != "" {
		got := ""
		if result.Response.Reactive != nil {
			got = result.Response.Reactive.BehaviorID
		}
		if got != exp.Reactive {
			mismatches = append(mismatches,
				fmt.Sprintf("reactive: got %q, want %q", got, exp.Reactive))
		}
	}

	if exp.Proactive != nil {
		got := make([]string, len(result.Response.Proactive))
		for i, c := range result.Response.Proactive {
			got[i] = c.BehaviorID
		}
		if !equalStrings(got, exp.Proactive) {
			mismatches = append(mismatches,
				fmt.Sprintf("proactive: got %v, want %v", got, exp.Proactive))
		}
	}

	if exp.MaxTokens > 0 && result.Response.TotalTokens > exp.MaxTokens {
		mismatches = append(mismatches,
			fmt.Sprintf("tokens: got %d, max %d", result.Response.TotalTokens, exp.MaxTokens))
	}

	return mismatches
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// #endregion harness
