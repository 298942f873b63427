package mathengine

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

// SeedFromRunID derives a deterministic PRNG seed from a run identifier, the
// same way the graph runtime seeds its own per-run RNG: a run's Boltzmann
// allocation is reproducible given the same run ID and population, even
// though the allocation itself is a stochastic rounding of fractional quotas.
func SeedFromRunID(runID string) *rand.Rand {
	hash := sha256.Sum256([]byte(runID))
	seed := int64(binary.BigEndian.Uint64(hash[:8])) // #nosec G115 -- deterministic seeding, not security
	return rand.New(rand.NewSource(seed))            // #nosec G404 -- deterministic RNG for reproducible allocation
}

// BoltzmannAllocation distributes an integer child budget across active
// strategies proportionally to exp(V_i / T_eff), normalized by the partition
// function Z = Σ exp(V_j / T_eff). Degenerate temperatures fall back to
// winner-takes-all (T_eff ≈ 0) or uniform allocation (T_eff = +Inf) rather
// than overflowing the exponential.
//
// Fractional quotas are rounded piecewise: q_i ≥ 1 is ceiled; 0 < q_i < 1 is
// rounded up to 1 with probability q_i (using rng), else down to 0. This
// means the sum of the returned quotas can differ from budget either way:
// ceiling can push it above budget (by up to len(values) before any
// minAllocation bump), and rounding fractional quotas down to 0 can leave
// it below budget (budget 1 over three equal values may allocate 0 in all).
//
// If minAllocation > 0, every strategy with a positive weight is bumped up
// to at least that floor after rounding.
func BoltzmannAllocation(values []float64, tEff float64, budget int, rng *rand.Rand, minAllocation int) []int {
	n := len(values)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []int{budget}
	}

	weights := boltzmannWeights(values, tEff)

	var z float64
	for _, w := range weights {
		z += w
	}

	quotas := make([]int, n)
	if z <= 0 {
		// Every weight underflowed to 0; spread the budget uniformly.
		base := budget / n
		for i := range quotas {
			quotas[i] = base
		}
		return applyMinAllocation(quotas, minAllocation)
	}

	for i, w := range weights {
		q := float64(budget) * w / z
		switch {
		case q >= 1:
			quotas[i] = int(math.Ceil(q))
		case q > 0:
			if rng.Float64() < q {
				quotas[i] = 1
			}
		}
	}

	return applyMinAllocation(quotas, minAllocation)
}

// boltzmannWeights computes exp((V_i - V_max)/T_eff) for each strategy,
// subtracting V_max before exponentiating for numerical stability. Handles
// the two degenerate temperature regimes explicitly:
//
//   - T_eff == 0 (or effectively so): winner-takes-all by argmax V.
//   - T_eff == +Inf: uniform weights (flat value landscape).
func boltzmannWeights(values []float64, tEff float64) []float64 {
	n := len(values)
	weights := make([]float64, n)

	if math.IsInf(tEff, 1) {
		for i := range weights {
			weights[i] = 1.0
		}
		return weights
	}

	if tEff <= 1e-9 {
		best := 0
		for i, v := range values {
			if v > values[best] {
				best = i
			}
		}
		weights[best] = 1.0
		return weights
	}

	vMax := values[0]
	for _, v := range values {
		if v > vMax {
			vMax = v
		}
	}
	for i, v := range values {
		weights[i] = math.Exp((v - vMax) / tEff)
	}
	return weights
}

func applyMinAllocation(quotas []int, minAllocation int) []int {
	if minAllocation <= 0 {
		return quotas
	}
	for i, q := range quotas {
		if q < minAllocation {
			quotas[i] = minAllocation
		}
	}
	return quotas
}

// ClampBeamWidth applies the legacy BeamWidth hard ceiling to a single
// strategy's computed child_quota, after Boltzmann allocation has already
// run. A non-positive beamWidth disables the ceiling.
func ClampBeamWidth(quota, beamWidth int) int {
	if beamWidth <= 0 {
		return quota
	}
	if quota > beamWidth {
		return beamWidth
	}
	return quota
}
