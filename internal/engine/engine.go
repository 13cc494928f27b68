// Package engine wires the per-turn pipeline: intent routing, signal
// detection, knowledge update, situation update, behavior selection,
// and response composition. State is explicit — callers pass the
// conversation's situation and knowledge in and persist what comes
// back — so independent conversations run in parallel on instances
// sharing only read-only configuration and the embedding cache.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/behavior"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/compose"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/config"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/diag"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/intent"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/knowledge"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/semindex"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/signal"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/situation"
)

// excessiveDrift is the point where silent renormalization is worth a
// warning: persistent drift this large points at a config bug.
const excessiveDrift = 0.01

// #region state

// State is the caller-owned conversation state.
type State struct {
	Situation situation.Vector
	Knowledge knowledge.Map
}

// TurnInput carries one utterance and its conversation state.
type TurnInput struct {
	ConversationID string
	Utterance      string
	State          State
}

// TurnResult is everything one turn produces: the routed intent, fired
// signals, updated state for the caller to persist, the composed
// response plan, and the diagnostic record.
type TurnResult struct {
	TurnID      string
	Intent      intent.Decision
	Signals     []signal.Signal
	State       State
	Response    compose.Response
	Diagnostics diag.TurnRecord
}

// #endregion state

// #region engine

// Engine processes turns for any number of conversations. Read-only
// after New; per-conversation state lives with the caller.
type Engine struct {
	cfg      *config.Config
	detector *signal.Detector
	router   *intent.Router
	selector *behavior.Selector
	composer *compose.Composer
	store    *diag.Store
	log      *zap.Logger
}

// New builds the example indexes and wires all components. store may
// be nil to disable diagnostics persistence.
func New(cfg *config.Config, embedSvc semindex.Embedder, store *diag.Store, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	ctx := context.Background()

	ruleIndex, err := semindex.New("rule-examples", embedSvc)
	if err != nil {
		return nil, err
	}
	for _, r := range cfg.Rules {
		if len(r.Examples) == 0 {
			continue
		}
		if err := ruleIndex.Add(ctx, r.ID, r.Category, r.Examples); err != nil {
			return nil, err
		}
	}

	intentIndex, err := semindex.New("intent-examples", embedSvc)
	if err != nil {
		return nil, err
	}
	for _, ex := range cfg.Intents {
		if err := intentIndex.Add(ctx, string(ex.Intent), "", ex.Examples); err != nil {
			return nil, err
		}
	}

	return &Engine{
		cfg:      cfg,
		detector: signal.NewDetector(cfg.Rules, ruleIndex, log),
		router:   intent.NewRouter(intentIndex, cfg.IntentThreshold, log),
		selector: behavior.NewSelector(cfg.Library, cfg.PrimaryDimension, log),
		composer: compose.NewComposer(cfg.Composer),
		store:    store,
		log:      log,
	}, nil
}

// #endregion engine

// #region process-turn

// ProcessTurn runs the full pipeline for one utterance. It never
// fails: every internal error degrades to a safe, clarification-biased
// plan, and diagnostics record what happened.
func (e *Engine) ProcessTurn(ctx context.Context, input TurnInput) TurnResult {
	turnID := uuid.New().String()

	// Caller-supplied state: initialize fresh conversations, correct
	// out-of-tolerance situations silently.
	vec := input.State.Situation
	if vec.Sum() == 0 {
		vec = e.cfg.Situation.Baseline
	} else {
		r := situation.Renormalize(vec, e.cfg.Situation)
		if r.Renormalized && r.DriftBefore > excessiveDrift {
			e.log.Warn("situation arrived far out of tolerance",
				zap.Float64("drift", r.DriftBefore),
				zap.String("conversation", input.ConversationID))
		}
		vec = r.Vector
	}
	know := input.State.Knowledge.Clone()

	// 1. Route intent and detect signals.
	decision := e.router.Route(ctx, input.Utterance)
	signals := e.detector.Detect(ctx, input.Utterance)

	// 2. Knowledge update: fired rules apply their effects.
	for _, sig := range signals {
		if rule, ok := e.detector.Rule(sig.ID); ok {
			know.Apply(rule.Effects, input.Utterance)
		}
	}

	// 3. Situation update: decay toward baseline, then boost the
	// dimensions mapped from this turn's signal categories.
	boosts := e.boostsFor(signals)
	res := situation.Apply(vec, boosts, e.cfg.Situation)
	if res.Renormalized && res.DriftBefore > excessiveDrift {
		e.log.Warn("situation drift corrected", zap.Float64("drift", res.DriftBefore))
	}

	// 4. Selection and composition.
	response := e.compose(res.Vector, know, signals, decision)

	e.log.Info("turn processed",
		zap.String("turn", turnID),
		zap.String("intent", string(decision.Intent)),
		zap.Int("signals", len(signals)),
		zap.Int("total_tokens", response.TotalTokens))

	result := TurnResult{
		TurnID:  turnID,
		Intent:  decision,
		Signals: signals,
		State: State{
			Situation: res.Vector,
			Knowledge: know,
		},
		Response: response,
	}
	result.Diagnostics = e.record(turnID, input, result, res.DriftBefore)
	return result
}

// boostsFor maps signal categories onto situation dimensions, scaled
// by signal priority.
func (e *Engine) boostsFor(signals []signal.Signal) []situation.Boost {
	var boosts []situation.Boost
	for _, sig := range signals {
		for _, dim := range e.cfg.CategoryDimensions[sig.Category] {
			boosts = append(boosts, situation.Boost{
				Dimension: dim,
				Scale:     sig.Priority.BoostScale(),
			})
		}
	}
	return boosts
}

// compose selects behaviors and assembles the plan. An ambiguous turn
// (no signal fired and the intent fell back) produces the configured
// clarification plan with zero proactive components.
func (e *Engine) compose(
	vec situation.Vector,
	know knowledge.Map,
	signals []signal.Signal,
	decision intent.Decision,
) compose.Response {
	if len(signals) == 0 && !decision.Matched {
		return e.fallbackPlan()
	}

	var reactive *behavior.Scored
	if len(signals) > 0 {
		if picked, ok := e.selector.SelectReactive(signals); ok {
			reactive = &picked
		}
	}

	proactive := e.selector.SelectProactive(vec, know, reactive)
	return e.composer.Compose(reactive, proactive)
}

// fallbackPlan is the clarification-biased default: the configured
// fallback behavior alone, or an empty plan when none is configured.
func (e *Engine) fallbackPlan() compose.Response {
	if e.cfg.FallbackBehaviorID == "" {
		return compose.Response{}
	}
	fb, ok := e.cfg.Library.Get(e.cfg.FallbackBehaviorID)
	if !ok {
		return compose.Response{}
	}
	return e.composer.Compose(&behavior.Scored{Behavior: fb}, nil)
}

// #endregion process-turn

// #region diagnostics

// record builds the diagnostic snapshot and persists it when a store
// is attached. Persistence failures are logged, never surfaced.
func (e *Engine) record(turnID string, input TurnInput, result TurnResult, drift float64) diag.TurnRecord {
	fired := make([]diag.FiredSignal, len(result.Signals))
	for i, s := range result.Signals {
		fired[i] = diag.FiredSignal{
			RuleID:     s.ID,
			Category:   s.Category,
			Priority:   s.Priority.String(),
			Confidence: s.Confidence,
			Source:     string(s.Source),
		}
	}

	var selected []diag.SelectedBehavior
	if c := result.Response.Reactive; c != nil {
		selected = append(selected, diag.SelectedBehavior{
			BehaviorID:  c.BehaviorID,
			Type:        string(c.Type),
			Score:       c.Score,
			TokenBudget: c.TokenBudget,
		})
	}
	for _, c := range result.Response.Proactive {
		selected = append(selected, diag.SelectedBehavior{
			BehaviorID:  c.BehaviorID,
			Type:        string(c.Type),
			Score:       c.Score,
			TokenBudget: c.TokenBudget,
		})
	}

	knowNorm := make(map[string]float64, len(result.State.Knowledge))
	for k, v := range result.State.Knowledge {
		knowNorm[k] = v.Normalized()
	}

	rec := diag.TurnRecord{
		TurnID:         turnID,
		ConversationID: input.ConversationID,
		Utterance:      input.Utterance,
		Intent:         string(result.Intent.Intent),
		IntentScore:    result.Intent.Similarity,
		Signals:        fired,
		Situation:      result.State.Situation.Map(),
		Knowledge:      knowNorm,
		Selected:       selected,
		TotalTokens:    result.Response.TotalTokens,
		Drift:          drift,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.store.Record(rec); err != nil {
		e.log.Warn("failed to record turn diagnostics", zap.Error(err))
	}
	return rec
}

// #endregion diagnostics
