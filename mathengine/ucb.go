package mathengine

import "math"

// ucbValueEpsilon stabilizes the value-range normalization when all
// strategies in the population have nearly identical scores.
const ucbValueEpsilon = 1e-5

// minDensityFloor keeps the exploration bonus finite when a strategy's
// estimated density collapses to (or below) zero.
const minDensityFloor = 1e-9

// UCBScore computes the dynamic, normalized upper-confidence-bound score for
// a single strategy:
//
//	score = (V - V_min)/(V_max - V_min + ε) + c · τ · 1/√max(p, minDensityFloor)
//
// When the population's value range collapses (V_max - V_min < ε), the
// exploitation term is defined as 0.5 rather than dividing by a
// near-zero range.
func UCBScore(value, density, vMin, vMax, tau, c float64) float64 {
	var normalizedValue float64
	vRange := vMax - vMin
	if vRange < ucbValueEpsilon {
		normalizedValue = 0.5
	} else {
		normalizedValue = (value - vMin) / (vRange + ucbValueEpsilon)
	}

	p := math.Max(density, minDensityFloor)
	explorationBonus := c * tau * (1.0 / math.Sqrt(p))

	return normalizedValue + explorationBonus
}

// BatchUCBScore computes UCBScore for every (value, density) pair, sharing
// the population's V_min/V_max across all strategies.
func BatchUCBScore(values, densities []float64, tau, c float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	vMin, vMax := values[0], values[0]
	for _, v := range values {
		if v < vMin {
			vMin = v
		}
		if v > vMax {
			vMax = v
		}
	}

	for i := range values {
		out[i] = UCBScore(values[i], densities[i], vMin, vMax, tau, c)
	}
	return out
}
