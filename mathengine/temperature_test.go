package mathengine_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/evobeam/ebs-go/mathengine"
)

func TestEffectiveTemperatureRequiresTwoSamples(t *testing.T) {
	if got := mathengine.EffectiveTemperature([]float64{0.5}, []float64{-1.0}); !math.IsInf(got, 1) {
		t.Errorf("N=1: got %v, want +Inf", got)
	}
	if got := mathengine.EffectiveTemperature(nil, nil); !math.IsInf(got, 1) {
		t.Errorf("N=0: got %v, want +Inf", got)
	}
}

func TestEffectiveTemperatureFlatRegime(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4}
	logP := []float64{-1.0, -1.0, -1.0, -1.0}

	if got := mathengine.EffectiveTemperature(values, logP); !math.IsInf(got, 1) {
		t.Errorf("zero covariance: got %v, want +Inf", got)
	}
}

// TestEffectiveTemperatureMatchesKnownSlope builds synthetic log p = k*V + b
// for several slopes k and checks T_eff ≈ 1/|k|.
func TestEffectiveTemperatureMatchesKnownSlope(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, k := range []float64{1, 2, 5, 10} {
		n := 200
		values := make([]float64, n)
		logP := make([]float64, n)
		for i := 0; i < n; i++ {
			v := rng.Float64()*10 - 5
			values[i] = v
			logP[i] = k*v + 3.0
		}

		got := mathengine.EffectiveTemperature(values, logP)
		want := 1.0 / math.Abs(k)
		if relErr := math.Abs(got-want) / want; relErr > 0.01 {
			t.Errorf("k=%v: T_eff = %v, want ~%v (rel err %v)", k, got, want, relErr)
		}
	}
}

func TestNormalizedTemperature(t *testing.T) {
	if got := mathengine.NormalizedTemperature(4.0, 2.0); got != 2.0 {
		t.Errorf("got %v, want 2.0", got)
	}
}
