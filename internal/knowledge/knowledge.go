package knowledge

import (
	"regexp"
	"strconv"
	"strings"
)

// #region value-types

// ValueType tags how a knowledge entry is stored and normalized.
type ValueType string

const (
	Boolean     ValueType = "boolean"
	Numeric     ValueType = "numeric"
	Categorical ValueType = "categorical"
)

// Scale names the normalization applied to numeric entries.
const (
	ScaleFivePoint = "five_point" // 1–5 → value/5
	ScalePercent   = "percent"    // 0–100 → value/100
)

// #endregion value-types

// #region entry

// Entry is one conversation-scoped fact.
type Entry struct {
	Type     ValueType
	Bool     bool
	Number   float64
	Category string // for categorical entries: "high" | "medium" | "low"
	Scale    string // numeric normalization scale; defaults to five_point
}

// Normalized maps the entry onto [0,1] for behavior scoring.
func (e Entry) Normalized() float64 {
	switch e.Type {
	case Boolean:
		if e.Bool {
			return 1
		}
		return 0
	case Numeric:
		var v float64
		if e.Scale == ScalePercent {
			v = e.Number / 100
		} else {
			v = e.Number / 5
		}
		return clamp01(v)
	case Categorical:
		switch strings.ToLower(e.Category) {
		case "high":
			return 1
		case "medium":
			return 0.5
		default:
			return 0
		}
	}
	return 0
}

// #endregion entry

// #region map

// Map is the flat per-conversation knowledge store. Mutated only by
// signal effects; callers pass it in and persist what comes back.
type Map map[string]Entry

// Clone returns an independent copy.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// #endregion map

// #region effect

// Effect declares how a fired rule mutates knowledge. Value holds a
// literal; FromUtterance extracts the first number in the utterance
// instead (numeric effects only).
type Effect struct {
	Key           string
	Type          ValueType
	Scale         string
	Value         string
	FromUtterance bool
}

var numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// Apply mutates the map with every effect. Effects that cannot produce
// a value (no number in the utterance, unparsable literal) are skipped.
func (m Map) Apply(effects []Effect, utterance string) {
	for _, e := range effects {
		entry, ok := e.resolve(utterance)
		if !ok {
			continue
		}
		m[e.Key] = entry
	}
}

func (e Effect) resolve(utterance string) (Entry, bool) {
	raw := e.Value
	if e.FromUtterance {
		raw = numberPattern.FindString(utterance)
		if raw == "" {
			return Entry{}, false
		}
	}
	switch e.Type {
	case Boolean:
		return Entry{Type: Boolean, Bool: strings.EqualFold(raw, "true")}, true
	case Numeric:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Entry{}, false
		}
		return Entry{Type: Numeric, Number: n, Scale: e.Scale}, true
	case Categorical:
		return Entry{Type: Categorical, Category: strings.ToLower(raw)}, true
	}
	return Entry{}, false
}

// #endregion effect

// #region helpers

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
