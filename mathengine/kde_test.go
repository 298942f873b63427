package mathengine_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/evobeam/ebs-go/mathengine"
)

func TestEstimateBandwidthDegenerateCases(t *testing.T) {
	if got := mathengine.EstimateBandwidth(nil, nil); got != 1.0 {
		t.Errorf("N<=1: got %v, want 1.0", got)
	}
	if got := mathengine.EstimateBandwidth([][]float64{{0, 0}}, nil); got != 1.0 {
		t.Errorf("N=1: got %v, want 1.0", got)
	}

	identical := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	if got := mathengine.EstimateBandwidth(identical, nil); got != 1e-3 {
		t.Errorf("identical points: got %v, want 1e-3", got)
	}
}

func TestEstimateBandwidthScalesLinearlyWithPopulation(t *testing.T) {
	base := [][]float64{{0, 0}, {1, 0}, {0, 1}, {2, 2}}
	hBase := mathengine.EstimateBandwidth(base, nil)

	const alpha = 3.0
	scaled := make([][]float64, len(base))
	for i, row := range base {
		scaled[i] = make([]float64, len(row))
		for j, v := range row {
			scaled[i][j] = v * alpha
		}
	}
	hScaled := mathengine.EstimateBandwidth(scaled, nil)

	want := hBase * alpha
	if math.Abs(hScaled-want) > 1e-9 {
		t.Errorf("scaled bandwidth = %v, want ~%v (base %v * alpha %v)", hScaled, want, hBase, alpha)
	}
}

func TestGaussianLogDensityStableForHighDimLowN(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n, d = 8, 4096
	x := make([][]float64, n)
	for i := range x {
		row := make([]float64, d)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		x[i] = row
	}

	h := mathengine.EstimateBandwidth(x, nil)
	logP := mathengine.GaussianLogDensity(x, h, nil)

	if len(logP) != n {
		t.Fatalf("expected %d log-densities, got %d", n, len(logP))
	}
	for i, v := range logP {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("logP[%d] = %v, want finite", i, v)
		}
	}
}

func TestGaussianLogDensityEmpty(t *testing.T) {
	if got := mathengine.GaussianLogDensity(nil, 1.0, nil); got != nil {
		t.Errorf("expected nil result for empty input, got %v", got)
	}
}

func TestNeedsHighDimWarning(t *testing.T) {
	cases := []struct {
		n, d int
		want bool
	}{
		{n: 8, d: 4096, want: true},
		{n: 4096, d: 4096, want: false},
		{n: 10, d: 50, want: false},
	}
	for _, c := range cases {
		if got := mathengine.NeedsHighDimWarning(c.n, c.d); got != c.want {
			t.Errorf("NeedsHighDimWarning(%d, %d) = %v, want %v", c.n, c.d, got, c.want)
		}
	}
}

func TestComputeKDEConsistentWithSeparateCalls(t *testing.T) {
	x := [][]float64{{0, 0}, {1, 0}, {0, 1}}
	h, logP := mathengine.ComputeKDE(x)

	wantH := mathengine.EstimateBandwidth(x, nil)
	if math.Abs(h-wantH) > 1e-12 {
		t.Errorf("bandwidth = %v, want %v", h, wantH)
	}

	wantLogP := mathengine.GaussianLogDensity(x, wantH, nil)
	for i := range logP {
		if math.Abs(logP[i]-wantLogP[i]) > 1e-12 {
			t.Errorf("logP[%d] = %v, want %v", i, logP[i], wantLogP[i])
		}
	}
}
