package nodes

import "github.com/evobeam/ebs-go/ebs"

// ShouldContinue is the conditional edge predicate named should_continue:
// it returns true while the run should keep evolving, and false once the
// iteration cap, strategy exhaustion, or entropy convergence criterion is
// met. The first iteration always continues.
func ShouldContinue(state ebs.RunState) bool {
	maxIter := state.Config.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}
	if state.IterationCount >= maxIter {
		return false
	}

	if len(state.ActiveStrategies()) == 0 {
		return false
	}

	if !state.HasPrevSpatialEntropy {
		return true
	}

	threshold := state.Config.EntropyChangeThreshold
	if threshold <= 0 {
		threshold = 0.05
	}

	denom := absMax(state.SpatialEntropy, state.PrevSpatialEntropy, 1.0)
	relChange := absFloat(state.SpatialEntropy-state.PrevSpatialEntropy) / denom

	return relChange >= threshold
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func absMax(a, b, floor float64) float64 {
	m := absFloat(a)
	if absFloat(b) > m {
		m = absFloat(b)
	}
	if floor > m {
		m = floor
	}
	return m
}
