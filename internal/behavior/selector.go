package behavior

import (
	"sort"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/knowledge"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/signal"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/situation"
)

// #region weights

// Scoring weights for proactive selection.
const (
	situationWeight = 0.7
	knowledgeWeight = 0.3
	maxProactive    = 2
)

// priorityBonus is the flat bonus added to proactive scores.
func priorityBonus(p signal.Priority) float64 {
	switch p {
	case signal.Critical:
		return 8
	case signal.High:
		return 4
	case signal.Medium:
		return 2
	default:
		return 0
	}
}

// #endregion weights

// #region selector

// Selector scores the behavior library against signals, situation, and
// knowledge. Stateless apart from read-only configuration.
type Selector struct {
	library     *Library
	categoryDim map[string]situation.Dimension // category → primary dimension
	log         *zap.Logger
}

// NewSelector creates a Selector. categoryDim maps each signal/behavior
// category to the dimension its affinity is read from.
func NewSelector(library *Library, categoryDim map[string]situation.Dimension, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{library: library, categoryDim: categoryDim, log: log}
}

// #endregion selector

// #region reactive

// SelectReactive picks the behavior answering the highest-priority
// signal: among reactive behaviors of that signal's category, highest
// affinity on the category's primary dimension wins; declaration order
// breaks ties. Falls through to the next signal when no behavior
// matches. Returns false when no signal has a matching behavior.
func (s *Selector) SelectReactive(signals []signal.Signal) (Scored, bool) {
	for _, sig := range signals {
		dim, hasDim := s.categoryDim[sig.Category]
		var best Scored
		found := false
		for _, b := range s.library.All() {
			if b.Type != Reactive || b.Category != sig.Category {
				continue
			}
			affinity := 0.0
			if hasDim {
				affinity = b.Affinity[dim]
			}
			if !found || affinity > best.Score {
				best = Scored{Behavior: b, Score: affinity}
				found = true
			}
		}
		if found {
			s.log.Debug("reactive selected",
				zap.String("behavior", best.Behavior.ID),
				zap.String("signal", sig.ID),
				zap.Float64("affinity", best.Score))
			return best, true
		}
	}
	return Scored{}, false
}

// #endregion reactive

// #region proactive

// SelectProactive scores proactive behaviors against the situation and
// knowledge and returns the top candidates in descending score order.
// Behaviors sharing the reactive category are excluded unless they
// share an output reference; nothing is ever selected twice. Callers
// apply the token budget on top of this ordering.
func (s *Selector) SelectProactive(
	vec situation.Vector,
	know knowledge.Map,
	reactive *Scored,
) []Scored {
	candidates := make([]Scored, 0, s.library.Len())
	for _, b := range s.library.All() {
		if b.Type != Proactive {
			continue
		}
		if reactive != nil {
			if b.ID == reactive.Behavior.ID {
				continue
			}
			// Topic locality: same category needs an explicit shared output.
			if b.Category == reactive.Behavior.Category && !b.sharesOutput(reactive.Behavior) {
				continue
			}
		}
		candidates = append(candidates, s.scoreProactive(b, vec, know))
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	if len(candidates) > maxProactive {
		candidates = candidates[:maxProactive]
	}
	return candidates
}

// scoreProactive applies the uniform scoring formula:
// 0.7·Σ(situation[d]·affinity[d]) + 0.3·knowledge_score + priority bonus.
func (s *Selector) scoreProactive(b Behavior, vec situation.Vector, know knowledge.Map) Scored {
	var sit float64
	for _, d := range situation.Dimensions() {
		sit += vec[d] * b.Affinity[d]
	}

	ks := knowledgeScore(b, know)
	bonus := priorityBonus(b.Priority)

	return Scored{
		Behavior:       b,
		Score:          situationWeight*sit + knowledgeWeight*ks + bonus,
		SituationScore: sit,
		KnowledgeScore: ks,
		PriorityBonus:  bonus,
	}
}

// knowledgeScore is the weighted mean of normalized knowledge values
// over the dimensions the behavior declares weights for. Missing
// entries contribute nothing.
func knowledgeScore(b Behavior, know knowledge.Map) float64 {
	if len(b.KnowledgeWeights) == 0 || len(know) == 0 {
		return 0
	}
	var sum float64
	var n int
	for key, weight := range b.KnowledgeWeights {
		entry, ok := know[key]
		if !ok {
			continue
		}
		sum += weight * entry.Normalized()
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// #endregion proactive
