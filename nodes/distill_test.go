package nodes_test

import (
	"context"
	"strings"
	"testing"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/nodes"
)

func TestGlobalDistillerAugmentsProblemStateAndRoutesToGenerate(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: "compressed brief"}}}
	n := nodes.NewGlobalDistiller(chat)

	state := ebs.NewRunState("solve x", ebs.NewConfig())
	state.ResearchContext = "a lot of raw research text"

	result := n.Run(context.Background(), state)

	if !strings.Contains(result.Delta.ProblemState, "[background]") {
		t.Errorf("expected augmented problem state to carry a background marker, got %q", result.Delta.ProblemState)
	}
	if result.Delta.ResearchContext != "compressed brief" {
		t.Errorf("expected research context replaced by compressed brief, got %q", result.Delta.ResearchContext)
	}
	if result.Route.To != "generate" {
		t.Errorf("expected explicit route to generate, got %q", result.Route.To)
	}
}

func TestBuildJudgeContextIsDeterministic(t *testing.T) {
	state := ebs.NewRunState("solve x\nmore detail", ebs.NewConfig())
	state.IterationCount = 2
	state.NormalizedTemperature = 0.5
	state.SpatialEntropy = 0.25
	state.History = []string{"a", "b", "c"}

	s := ebs.NewStrategy("s1", "Strat", "because", "assume", nil)
	s.Score = 0.7
	state.Strategies["s1"] = s

	first := nodes.BuildJudgeContext(state)
	second := nodes.BuildJudgeContext(state)

	if first != second {
		t.Error("expected two calls against an unchanged state to produce byte-identical output")
	}
	if !strings.HasPrefix(first, "# solve x\n") {
		t.Errorf("expected headline to stop at the first newline, got prefix %q", first[:20])
	}
}

func TestShouldDistillJudgeContextThreshold(t *testing.T) {
	cfg := ebs.NewConfig(ebs.WithDistillThreshold(10))
	state := ebs.NewRunState("p", cfg)
	state.JudgeContext = strings.Repeat("x", 4) // 4 chars => ~1 token estimate

	if nodes.ShouldDistillJudgeContext(state) {
		t.Error("expected small context to stay under threshold")
	}

	state.JudgeContext = strings.Repeat("x", 400)
	if !nodes.ShouldDistillJudgeContext(state) {
		t.Error("expected large context to exceed threshold")
	}
}
