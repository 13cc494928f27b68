package behavior

import (
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/signal"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/situation"
)

// #region response-type

// ResponseType distinguishes behaviors that answer the detected signal
// from behaviors that advance the conversation on situation alone.
type ResponseType string

const (
	Reactive  ResponseType = "reactive"
	Proactive ResponseType = "proactive"
)

// #endregion response-type

// #region behavior

// Behavior is one configured response unit. Immutable and shared
// read-only across conversations.
type Behavior struct {
	ID               string
	Category         string
	Priority         signal.Priority
	Affinity         map[situation.Dimension]float64
	KnowledgeWeights map[string]float64
	Type             ResponseType
	TokenBudget      int
	Outputs          []string // shared output refs permit same-category proactive picks
}

// sharesOutput reports whether two behaviors reference a common output.
func (b Behavior) sharesOutput(other Behavior) bool {
	for _, a := range b.Outputs {
		for _, o := range other.Outputs {
			if a == o {
				return true
			}
		}
	}
	return false
}

// #endregion behavior

// #region library

// Library is the static, declaration-ordered behavior set. Declaration
// order is the deterministic tie-break everywhere.
type Library struct {
	behaviors []Behavior
	byID      map[string]int
}

// NewLibrary builds a library preserving declaration order.
func NewLibrary(behaviors []Behavior) *Library {
	byID := make(map[string]int, len(behaviors))
	for i, b := range behaviors {
		byID[b.ID] = i
	}
	return &Library{behaviors: behaviors, byID: byID}
}

// All returns the behaviors in declaration order.
func (l *Library) All() []Behavior {
	return l.behaviors
}

// Get returns a behavior by id.
func (l *Library) Get(id string) (Behavior, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Behavior{}, false
	}
	return l.behaviors[i], true
}

// Len returns the number of behaviors.
func (l *Library) Len() int {
	return len(l.behaviors)
}

// #endregion library

// #region scored

// Scored pairs a behavior with its selection score breakdown.
type Scored struct {
	Behavior       Behavior
	Score          float64
	SituationScore float64
	KnowledgeScore float64
	PriorityBonus  float64
}

// #endregion scored
