package mathengine

import (
	"math"
	"sort"
)

// EstimateBandwidth picks an adaptive Gaussian-kernel bandwidth h from the
// actual scale of pairwise distances in the embedded population, rather than
// a Silverman rule-of-thumb that assumes low dimensionality. With D ≫ N, as
// is typical for text embeddings, Silverman's rule badly underestimates h.
//
// h = median(pairwise distance) / √2, which keeps ‖x_i − x_j‖²/(2h²) ≈ 1 for
// a typical pair, so the log-density stays in a numerically sane range.
//
// distSq may be nil, in which case it is computed from x.
func EstimateBandwidth(x [][]float64, distSq [][]float64) float64 {
	n := len(x)
	if n <= 1 {
		return 1.0
	}
	if distSq == nil {
		distSq = PairwiseDistSq(x)
	}

	dists := upperTriangle(distSq)
	for i, d := range dists {
		dists[i] = math.Sqrt(d)
	}
	if len(dists) == 0 {
		return 1.0
	}

	m := median(dists)
	if m < 1e-10 {
		return 1e-3
	}
	return m / math.Sqrt2
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// GaussianLogDensity computes the leave-one-in Parzen–Rosenblatt log-density
// of every row of x against the population x itself, using a Gaussian kernel
// of bandwidth h:
//
//	log p_i = -log N + logsumexp_j [ -(D/2)log(2π) - D log h - dist²_ij/(2h²) ]
//
// distSq may be nil, in which case it is computed from x. The result has one
// entry per row of x; an empty x yields an empty result.
func GaussianLogDensity(x [][]float64, h float64, distSq [][]float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	if distSq == nil {
		distSq = PairwiseDistSq(x)
	}
	d := len(x[0])

	constTerm := -0.5*float64(d)*math.Log(2*math.Pi) - float64(d)*math.Log(h)
	twoHSq := 2 * h * h

	logP := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		maxLog := math.Inf(-1)
		for j := 0; j < n; j++ {
			v := constTerm - distSq[i][j]/twoHSq
			row[j] = v
			if v > maxLog {
				maxLog = v
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(v - maxLog)
		}
		logP[i] = -math.Log(float64(n)) + maxLog + math.Log(sumExp)
	}
	return logP
}

// KDEWarningThresholdDims is the dimensionality above which KDE reliability
// degrades sharply unless the population is at least as large as D; callers
// emit an observability warning event rather than failing the computation.
const KDEWarningThresholdDims = 100

// NeedsHighDimWarning reports whether a (N, D) population is in the regime
// where KDE density estimates become unreliable: D > 100 and N < D.
func NeedsHighDimWarning(n, d int) bool {
	return d > KDEWarningThresholdDims && n < d
}

// ComputeKDE is the one-shot convenience entry point used by the Evolution
// node: it computes the distance matrix once, derives the adaptive
// bandwidth, and returns both the bandwidth and the log-densities.
func ComputeKDE(x [][]float64) (bandwidth float64, logDensity []float64) {
	distSq := PairwiseDistSq(x)
	bandwidth = EstimateBandwidth(x, distSq)
	logDensity = GaussianLogDensity(x, bandwidth, distSq)
	return bandwidth, logDensity
}
