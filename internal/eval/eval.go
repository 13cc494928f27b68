// Package eval runs lightweight post-turn validation of the engine's
// invariants: situation normalization, token budget bounds, selection
// arity, and topic locality. Used by the replay tooling for offline
// evaluation; not part of the per-turn pipeline.
package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/behavior"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/engine"
)

// #region config

// Config holds the bounds the harness checks against.
type Config struct {
	SumTolerance float64 // situation sum drift from 1.0
	MaxTokens    int     // composed response cap
	MaxProactive int
}

// DefaultConfig matches the engine defaults.
func DefaultConfig() Config {
	return Config{
		SumTolerance: 1e-6,
		MaxTokens:    310,
		MaxProactive: 2,
	}
}

// #endregion config

// #region types

// Metric is one named check with its measured value.
type Metric struct {
	Name  string
	Value float64
	Pass  bool
}

// Result bundles all checks for one turn.
type Result struct {
	Passed  bool
	Metrics []Metric
	Reason  string
}

// #endregion types

// #region harness

// Harness validates turn results against the configured bounds.
type Harness struct {
	config  Config
	library *behavior.Library
}

// NewHarness creates a harness bound to one behavior library.
func NewHarness(config Config, library *behavior.Library) *Harness {
	return &Harness{config: config, library: library}
}

// Run checks one turn result. Returns pass/fail with per-check metrics.
func (h *Harness) Run(result engine.TurnResult) Result {
	var metrics []Metric
	var failures []string

	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, Metric{Name: name, Value: value, Pass: pass})
		if !pass {
			failures = append(failures, reason)
		}
	}

	// 1. Situation sum invariant.
	sum := result.State.Situation.Sum()
	drift := math.Abs(sum - 1.0)
	check("situation_sum", sum, drift <= h.config.SumTolerance,
		fmt.Sprintf("situation sum %.8f drifts %.2e from 1.0", sum, drift))

	// 2. Token budget bound.
	total := result.Response.TotalTokens
	check("total_tokens", float64(total), total <= h.config.MaxTokens,
		fmt.Sprintf("total tokens %d exceed %d", total, h.config.MaxTokens))

	// 3. Component budgets sum exactly: nothing partially included.
	var componentSum int
	if result.Response.Reactive != nil {
		componentSum += result.Response.Reactive.TokenBudget
	}
	for _, c := range result.Response.Proactive {
		componentSum += c.TokenBudget
	}
	check("component_sum", float64(componentSum), componentSum == total,
		fmt.Sprintf("component budgets sum %d but total is %d", componentSum, total))

	// 4. Proactive arity.
	n := len(result.Response.Proactive)
	check("proactive_count", float64(n), n <= h.config.MaxProactive,
		fmt.Sprintf("%d proactive components exceed %d", n, h.config.MaxProactive))

	// 5. No behavior selected twice.
	dup := hasDuplicate(result)
	check("duplicate_selection", boolMetric(dup), !dup, "a behavior was selected twice")

	// 6. Topic locality: same-category proactive picks must share an
	// output with the reactive behavior.
	local := h.topicLocal(result)
	check("topic_locality", boolMetric(!local), local,
		"proactive behavior shares the reactive category without a shared output")

	reason := "all checks passed"
	if len(failures) > 0 {
		reason = failures[0]
		if len(failures) > 1 {
			reason = fmt.Sprintf("%d checks failed: %s", len(failures), failures[0])
		}
	}

	return Result{
		Passed:  len(failures) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion harness

// #region checks

func hasDuplicate(result engine.TurnResult) bool {
	seen := make(map[string]bool, 3)
	if c := result.Response.Reactive; c != nil {
		seen[c.BehaviorID] = true
	}
	for _, c := range result.Response.Proactive {
		if seen[c.BehaviorID] {
			return true
		}
		seen[c.BehaviorID] = true
	}
	return false
}

func (h *Harness) topicLocal(result engine.TurnResult) bool {
	if result.Response.Reactive == nil {
		return true
	}
	reactive, ok := h.library.Get(result.Response.Reactive.BehaviorID)
	if !ok {
		return true
	}
	for _, c := range result.Response.Proactive {
		b, ok := h.library.Get(c.BehaviorID)
		if !ok {
			continue
		}
		if b.Category == reactive.Category && !sharesOutput(b, reactive) {
			return false
		}
	}
	return true
}

func sharesOutput(a, b behavior.Behavior) bool {
	for _, x := range a.Outputs {
		for _, y := range b.Outputs {
			if x == y {
				return true
			}
		}
	}
	return false
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion checks
