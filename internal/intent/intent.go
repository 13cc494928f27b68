// Package intent is the stateless top-level router: nearest labeled
// example wins, ambiguity resolves to clarification. No intent is
// terminal; any intent may follow any other.
package intent

import (
	"context"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/semindex"
)

// #region intents

// Intent names a top-level routing target.
type Intent string

const (
	Discovery      Intent = "discovery"
	Assessment     Intent = "assessment"
	Analysis       Intent = "analysis"
	Recommendation Intent = "recommendation"
	Navigation     Intent = "navigation"
	Clarification  Intent = "clarification"
)

// DefaultThreshold is the minimum similarity for a routed intent.
const DefaultThreshold = 0.65

// #endregion intents

// #region types

// Example carries the labeled utterances for one intent.
type Example struct {
	Intent   Intent
	Examples []string
}

// Decision is the routing outcome for one utterance.
type Decision struct {
	Intent     Intent
	Similarity float64
	Matched    bool // false when the router fell back to clarification
}

// #endregion types

// #region router

// ExampleIndex abstracts the intent example index.
type ExampleIndex interface {
	Query(ctx context.Context, text string, topK int) ([]semindex.Match, error)
	Len() int
}

// Router classifies utterances against per-intent labeled examples.
type Router struct {
	index     ExampleIndex
	threshold float64
	log       *zap.Logger
}

// NewRouter creates a Router. threshold <= 0 selects the default.
func NewRouter(index ExampleIndex, threshold float64, log *zap.Logger) *Router {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{index: index, threshold: threshold, log: log}
}

// Route returns the best-matching intent, or clarification when no
// example clears the threshold or the embedding call fails. Never
// returns an error: ambiguity is an answer, not an exception.
func (r *Router) Route(ctx context.Context, utterance string) Decision {
	fallback := Decision{Intent: Clarification}
	if r.index == nil || r.index.Len() == 0 {
		return fallback
	}

	matches, err := r.index.Query(ctx, utterance, r.index.Len())
	if err != nil {
		r.log.Warn("intent routing degraded to clarification", zap.Error(err))
		return fallback
	}

	var best semindex.Match
	found := false
	for _, m := range matches {
		if !found || m.Similarity > best.Similarity {
			best = m
			found = true
		}
	}
	if !found || best.Similarity < r.threshold {
		return fallback
	}

	return Decision{
		Intent:     Intent(best.OwnerID),
		Similarity: best.Similarity,
		Matched:    true,
	}
}

// #endregion router
