package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/knowledge"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/situation"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay run: a recorded
// conversation with canned embeddings, replayed deterministically
// without the embedding service.
type Fixture struct {
	Description string                 `json:"description"`
	Embeddings  map[string][]float32   `json:"embeddings"` // normalized text → vector
	Start       FixtureStart           `json:"start"`
	Turns       []FixtureTurn          `json:"turns"`
	Expected    []FixtureExpectation   `json:"expected"`
}

// FixtureStart is the JSON-serializable initial conversation state.
type FixtureStart struct {
	Situation map[string]float64          `json:"situation"`
	Knowledge map[string]FixtureKnowledge `json:"knowledge"`
}

// FixtureKnowledge mirrors knowledge.Entry with JSON tags.
type FixtureKnowledge struct {
	Type     string  `json:"type"`
	Bool     bool    `json:"bool,omitempty"`
	Number   float64 `json:"number,omitempty"`
	Category string  `json:"category,omitempty"`
	Scale    string  `json:"scale,omitempty"`
}

// FixtureTurn is one replayed utterance.
type FixtureTurn struct {
	Utterance string `json:"utterance"`
}

// FixtureExpectation captures what a turn should produce. Zero values
// mean "don't check".
type FixtureExpectation struct {
	Turn      int      `json:"turn"`
	Intent    string   `json:"intent,omitempty"`
	Reactive  string   `json:"reactive,omitempty"`
	Proactive []string `json:"proactive,omitempty"`
	MaxTokens int      `json:"max_tokens,omitempty"`
}

// #endregion fixture-types

// #region load

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Turns) == 0 {
		return Fixture{}, fmt.Errorf("fixture %s: no turns", path)
	}
	for _, exp := range f.Expected {
		if exp.Turn < 0 || exp.Turn >= len(f.Turns) {
			return Fixture{}, fmt.Errorf("fixture %s: expectation references turn %d of %d", path, exp.Turn, len(f.Turns))
		}
	}
	return f, nil
}

// StartState converts the fixture's start block into engine state.
func (f Fixture) StartState() (situation.Vector, knowledge.Map, error) {
	var vec situation.Vector
	for name, weight := range f.Start.Situation {
		dim, ok := situation.ParseDimension(name)
		if !ok {
			return vec, nil, fmt.Errorf("fixture start: unknown dimension %q", name)
		}
		vec[dim] = weight
	}

	know := make(knowledge.Map, len(f.Start.Knowledge))
	for key, fk := range f.Start.Knowledge {
		know[key] = knowledge.Entry{
			Type:     knowledge.ValueType(fk.Type),
			Bool:     fk.Bool,
			Number:   fk.Number,
			Category: fk.Category,
			Scale:    fk.Scale,
		}
	}
	return vec, know, nil
}

// #endregion load
