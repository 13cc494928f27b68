package situation

// #region dimensions

// Dimension indexes one axis of the situation vector.
type Dimension int

const (
	Discovery Dimension = iota
	Assessment
	Analysis
	Recommendation
	Feasibility
	Clarification
	Validation
	Meta

	// NumDimensions is the fixed size of the situation vector.
	NumDimensions = 8
)

// dimensionNames is also the fixed priority order used to break ties
// in Dominant: earlier wins.
var dimensionNames = [NumDimensions]string{
	"discovery",
	"assessment",
	"analysis",
	"recommendation",
	"feasibility",
	"clarification",
	"validation",
	"meta",
}

// String returns the configuration name of the dimension.
func (d Dimension) String() string {
	if d < 0 || d >= NumDimensions {
		return "unknown"
	}
	return dimensionNames[d]
}

// ParseDimension resolves a configuration name to a Dimension.
func ParseDimension(name string) (Dimension, bool) {
	for i, n := range dimensionNames {
		if n == name {
			return Dimension(i), true
		}
	}
	return 0, false
}

// Dimensions returns every dimension in priority order.
func Dimensions() [NumDimensions]Dimension {
	var out [NumDimensions]Dimension
	for i := range out {
		out[i] = Dimension(i)
	}
	return out
}

// #endregion dimensions

// #region vector

// Vector is the situation weight vector. Value type: copies are cheap
// and callers never share mutable state.
type Vector [NumDimensions]float64

// Map renders the vector keyed by dimension name, for logging and
// diagnostics serialization.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumDimensions)
	for i, w := range v {
		m[Dimension(i).String()] = w
	}
	return m
}

// Sum returns the total weight across all dimensions.
func (v Vector) Sum() float64 {
	var s float64
	for _, w := range v {
		s += w
	}
	return s
}

// #endregion vector

// #region boost

// Boost is one dimension increment derived from a turn's signals.
type Boost struct {
	Dimension Dimension
	Scale     float64 // priority scale applied to the base boost amount
}

// #endregion boost

// #region config

// Config holds decay and boost parameters for the situation update.
type Config struct {
	Baseline    Vector  // decay target; must sum to 1.0
	DecayRate   float64 // per-turn pull toward baseline (default 0.10)
	BoostAmount float64 // base increment per boosted dimension (default 0.15)
	Tolerance   float64 // acceptable sum drift before renormalization is logged
}

// DefaultConfig returns the standard baseline and rates.
func DefaultConfig() Config {
	return Config{
		Baseline:    DefaultBaseline(),
		DecayRate:   0.10,
		BoostAmount: 0.15,
		Tolerance:   1e-6,
	}
}

// DefaultBaseline is discovery-and-meta heavy: new conversations open
// with exploration, and the agent keeps a standing meta weight.
func DefaultBaseline() Vector {
	v := Vector{}
	v[Discovery] = 0.50
	v[Meta] = 0.35
	for i := range v {
		if Dimension(i) == Discovery || Dimension(i) == Meta {
			continue
		}
		v[i] = 0.15 / float64(NumDimensions-2)
	}
	return v
}

// #endregion config

// #region result

// Result bundles the updated vector with drift telemetry.
type Result struct {
	Vector       Vector
	DriftBefore  float64 // |sum - 1.0| measured before renormalization
	Renormalized bool
}

// #endregion result
