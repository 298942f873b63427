package ebs_test

import (
	"testing"

	"github.com/evobeam/ebs-go/ebs"
)

func TestReduceScalarOverwrite(t *testing.T) {
	cfg := ebs.NewConfig()
	prev := ebs.NewRunState("problem", cfg)
	prev.IterationCount = 2

	delta := ebs.RunState{IterationCount: 3, JudgeContext: "brief"}
	next := ebs.Reduce(prev, delta)

	if next.IterationCount != 3 {
		t.Errorf("IterationCount = %d, want 3", next.IterationCount)
	}
	if next.JudgeContext != "brief" {
		t.Errorf("JudgeContext = %q, want %q", next.JudgeContext, "brief")
	}
	if next.ProblemState != "problem" {
		t.Errorf("ProblemState = %q, unaffected fields must be carried forward", next.ProblemState)
	}
}

func TestReduceHistoryConcatenatesThenTruncates(t *testing.T) {
	cfg := ebs.NewConfig(ebs.WithHistoryRetention(3))
	prev := ebs.NewRunState("p", cfg)
	prev.History = []string{"a", "b"}

	next := ebs.Reduce(prev, ebs.RunState{History: []string{"c", "d"}})

	want := []string{"b", "c", "d"}
	if len(next.History) != len(want) {
		t.Fatalf("History = %v, want %v", next.History, want)
	}
	for i := range want {
		if next.History[i] != want[i] {
			t.Errorf("History[%d] = %q, want %q", i, next.History[i], want[i])
		}
	}
}

func TestReduceStrategiesReplacedWholesale(t *testing.T) {
	cfg := ebs.NewConfig()
	prev := ebs.NewRunState("p", cfg)
	prev.Strategies["a"] = ebs.NewStrategy("a", "A", "", "", nil)

	replacement := map[string]*ebs.Strategy{
		"b": ebs.NewStrategy("b", "B", "", "", nil),
	}
	next := ebs.Reduce(prev, ebs.RunState{Strategies: replacement})

	if _, ok := next.Strategies["a"]; ok {
		t.Errorf("strategy %q survived a wholesale replacement delta", "a")
	}
	if _, ok := next.Strategies["b"]; !ok {
		t.Errorf("expected replacement strategy %q present", "b")
	}
}

func TestReduceSpatialEntropyBookkeeping(t *testing.T) {
	cfg := ebs.NewConfig()
	prev := ebs.NewRunState("p", cfg)
	prev.SpatialEntropy = 1.5

	delta := ebs.RunState{
		SpatialEntropy:        1.2,
		PrevSpatialEntropy:    1.5,
		HasPrevSpatialEntropy: true,
	}
	next := ebs.Reduce(prev, delta)

	if next.SpatialEntropy != 1.2 {
		t.Errorf("SpatialEntropy = %v, want 1.2", next.SpatialEntropy)
	}
	if !next.HasPrevSpatialEntropy || next.PrevSpatialEntropy != 1.5 {
		t.Errorf("PrevSpatialEntropy = %v (has=%v), want 1.5", next.PrevSpatialEntropy, next.HasPrevSpatialEntropy)
	}
}

func TestActiveStrategiesFiltersByStatus(t *testing.T) {
	cfg := ebs.NewConfig()
	state := ebs.NewRunState("p", cfg)

	active := ebs.NewStrategy("a", "A", "", "", nil)
	expanded := ebs.NewStrategy("b", "B", "", "", nil)
	expanded.Status = ebs.StatusExpanded

	state.Strategies["a"] = active
	state.Strategies["b"] = expanded

	got := state.ActiveStrategies()
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("ActiveStrategies() = %v, want only strategy a", got)
	}
}

func TestAppendHistoryDisabledTruncation(t *testing.T) {
	cfg := ebs.NewConfig(ebs.WithHistoryRetention(0))
	state := ebs.NewRunState("p", cfg)

	for i := 0; i < 5; i++ {
		state = state.AppendHistory("entry")
	}
	if len(state.History) != 5 {
		t.Errorf("History length = %d, want 5 (truncation disabled)", len(state.History))
	}
}
