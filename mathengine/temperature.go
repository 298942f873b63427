package mathengine

import "math"

// EffectiveTemperature fits a one-dimensional linear model log p ≈ k·V + c
// over the active population and returns T_eff = |Var(V) / Cov(V, log p)|,
// the inverse of the fitted slope k. A large T_eff means the value/density
// landscape is flat (exploration-friendly); a small one means density is
// sharply concentrated around high-value strategies.
//
// Requires len(values) == len(logDensity) >= 2. Returns +Inf when the
// covariance is too small to estimate a slope reliably (flat regime).
func EffectiveTemperature(values, logDensity []float64) float64 {
	n := len(values)
	if n != len(logDensity) || n < 2 {
		return math.Inf(1)
	}

	varV, covVLogP := sampleVarianceAndCovariance(values, logDensity)
	if math.Abs(covVLogP) < 1e-12 {
		return math.Inf(1)
	}
	return math.Abs(varV / covVLogP)
}

// sampleVarianceAndCovariance returns the sample variance of a and the
// sample covariance of a and b (Bessel-corrected, matching numpy.cov's
// default ddof=1).
func sampleVarianceAndCovariance(a, b []float64) (varA, covAB float64) {
	n := len(a)
	meanA := mean(a)
	meanB := mean(b)

	var sumA2, sumAB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		sumA2 += da * da
		sumAB += da * db
	}
	denom := float64(n - 1)
	return sumA2 / denom, sumAB / denom
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// NormalizedTemperature returns τ = T_eff / T_max. tMax must be positive.
func NormalizedTemperature(tEff, tMax float64) float64 {
	return tEff / tMax
}
