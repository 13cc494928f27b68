package situation

import (
	"math"
	"sort"
)

// #region apply

// Apply is a pure function that computes the next situation vector from
// the current one and this turn's boosts. Decay runs before boost so a
// spike from the current turn is not immediately pulled back toward
// baseline. Negative weights are clamped and the vector is renormalized
// to sum 1.0.
func Apply(old Vector, boosts []Boost, config Config) Result {
	vec := old // copy (value type)

	// 1. Decay pass: every dimension moves toward baseline.
	if config.DecayRate > 0 {
		for i := range vec {
			vec[i] += config.DecayRate * (config.Baseline[i] - vec[i])
		}
	}

	// 2. Boost pass: signal-mapped dimensions get a priority-scaled bump.
	for _, b := range boosts {
		if b.Dimension < 0 || b.Dimension >= NumDimensions {
			continue
		}
		vec[b.Dimension] += config.BoostAmount * b.Scale
	}

	// 3. Clamp and renormalize.
	for i := range vec {
		if vec[i] < 0 {
			vec[i] = 0
		}
	}
	drift := math.Abs(vec.Sum() - 1.0)
	vec = normalize(vec, config.Baseline)

	return Result{
		Vector:       vec,
		DriftBefore:  drift,
		Renormalized: drift > config.Tolerance,
	}
}

// #endregion apply

// #region renormalize

// Renormalize corrects sum drift on an existing vector without decay or
// boost. Used when caller-supplied state arrives out of tolerance.
func Renormalize(v Vector, config Config) Result {
	drift := math.Abs(v.Sum() - 1.0)
	return Result{
		Vector:       normalize(v, config.Baseline),
		DriftBefore:  drift,
		Renormalized: drift > config.Tolerance,
	}
}

// normalize rescales v to sum 1.0. A degenerate all-zero vector resets
// to the baseline rather than dividing by zero.
func normalize(v Vector, baseline Vector) Vector {
	sum := v.Sum()
	if sum <= 0 {
		return baseline
	}
	for i := range v {
		v[i] /= sum
	}
	return v
}

// #endregion renormalize

// #region dominant

// Ranked pairs a dimension with its current weight.
type Ranked struct {
	Dimension Dimension
	Weight    float64
}

// Dominant returns the top-n dimensions by weight. Equal weights are
// broken by the fixed dimension priority order (lower index wins).
func Dominant(v Vector, n int) []Ranked {
	ranked := make([]Ranked, 0, NumDimensions)
	for i, w := range v {
		ranked = append(ranked, Ranked{Dimension: Dimension(i), Weight: w})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Weight != ranked[b].Weight {
			return ranked[a].Weight > ranked[b].Weight
		}
		return ranked[a].Dimension < ranked[b].Dimension
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	return ranked[:n]
}

// #endregion dominant
