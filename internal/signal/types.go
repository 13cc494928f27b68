package signal

import (
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/knowledge"
)

// #region priority

// Priority orders signals and weights their effect on the situation.
type Priority int

const (
	Low Priority = iota
	Medium
	High
	Critical
)

var priorityNames = map[Priority]string{
	Low:      "low",
	Medium:   "medium",
	High:     "high",
	Critical: "critical",
}

// String returns the configuration name of the priority.
func (p Priority) String() string {
	if n, ok := priorityNames[p]; ok {
		return n
	}
	return "low"
}

// ParsePriority resolves a configuration name to a Priority.
func ParsePriority(name string) (Priority, bool) {
	for p, n := range priorityNames {
		if n == name {
			return p, true
		}
	}
	return Low, false
}

// BoostScale returns the multiplier applied to the base situation boost.
func (p Priority) BoostScale() float64 {
	switch p {
	case Critical:
		return 1.5
	case High:
		return 1.0
	case Medium:
		return 0.6
	default:
		return 0.3
	}
}

// #endregion priority

// #region source

// Source records which matching layer produced a signal.
type Source string

const (
	SourceLexical  Source = "lexical"
	SourceSemantic Source = "semantic"
)

// #endregion source

// #region signal

// Signal is a typed detection event derived from one utterance.
// Ephemeral: signals live for exactly one turn.
type Signal struct {
	ID         string // rule id that fired
	Category   string
	Priority   Priority
	Confidence float64 // [0,1]; 1.0 for lexical matches, similarity for semantic
	Source     Source
}

// #endregion signal

// #region rule

// Rule is one configured detection rule. A rule may carry keywords
// (lexical layer), labeled examples (semantic layer), or both.
type Rule struct {
	ID         string
	Category   string
	Priority   Priority
	Keywords   []string // words or phrases; phrases match as substrings
	Examples   []string // labeled examples embedded into the semantic index
	Threshold  float64  // minimum similarity for a semantic match
	Suppresses []string // rule ids silenced when this rule fires on the same utterance
	Effects    []knowledge.Effect
}

// DefaultThreshold is applied when a rule declares none.
const DefaultThreshold = 0.70

// #endregion rule
