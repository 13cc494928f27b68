// Package compose assembles the token-bounded response plan from the
// selected behaviors. The plan is consumed immediately by the external
// prompt-construction collaborator and never persisted.
package compose

import (
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/behavior"
)

// #region config

// Config holds the token budgets for one composed response.
type Config struct {
	TotalBudget      int    // hard cap on the full plan
	ReactiveBudget   int    // default slot for the reactive component
	ProactiveBudgets [2]int // default slots for proactive components
}

// DefaultConfig returns the standard 150+100+60=310 split.
func DefaultConfig() Config {
	return Config{
		TotalBudget:      310,
		ReactiveBudget:   150,
		ProactiveBudgets: [2]int{100, 60},
	}
}

// #endregion config

// #region types

// Component is one slot of the composed response.
type Component struct {
	Type        behavior.ResponseType
	BehaviorID  string
	TokenBudget int
	Score       float64 // selection score, carried for diagnostics
}

// Response is the bounded per-turn plan: at most one reactive component
// and up to two proactive components.
type Response struct {
	Reactive    *Component
	Proactive   []Component
	TotalTokens int
}

// #endregion types

// #region composer

// Composer builds responses under a fixed budget.
type Composer struct {
	config Config
}

// NewComposer creates a Composer.
func NewComposer(config Config) *Composer {
	return &Composer{config: config}
}

// Compose assembles the plan: reactive first (when present), then
// proactive candidates in descending score order until two slots are
// filled or the budget runs out. A candidate whose budget does not fit
// the remainder is skipped, never truncated.
func (c *Composer) Compose(reactive *behavior.Scored, proactive []behavior.Scored) Response {
	resp := Response{}
	remaining := c.config.TotalBudget

	if reactive != nil {
		budget := componentBudget(reactive.Behavior, c.config.ReactiveBudget)
		if budget <= remaining {
			resp.Reactive = &Component{
				Type:        behavior.Reactive,
				BehaviorID:  reactive.Behavior.ID,
				TokenBudget: budget,
				Score:       reactive.Score,
			}
			resp.TotalTokens += budget
			remaining -= budget
		}
	}

	slot := 0
	for _, cand := range proactive {
		if slot >= len(c.config.ProactiveBudgets) {
			break
		}
		budget := componentBudget(cand.Behavior, c.config.ProactiveBudgets[slot])
		if budget > remaining {
			continue // skipped whole, not trimmed to fit
		}
		resp.Proactive = append(resp.Proactive, Component{
			Type:        behavior.Proactive,
			BehaviorID:  cand.Behavior.ID,
			TokenBudget: budget,
			Score:       cand.Score,
		})
		resp.TotalTokens += budget
		remaining -= budget
		slot++
	}

	return resp
}

// componentBudget prefers the behavior's configured budget, falling
// back to the slot default.
func componentBudget(b behavior.Behavior, slotDefault int) int {
	if b.TokenBudget > 0 {
		return b.TokenBudget
	}
	return slotDefault
}

// #endregion composer
