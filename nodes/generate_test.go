package nodes_test

import (
	"context"
	"testing"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/nodes"
)

func TestStrategyGeneratorParsesPopulation(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: `{"strategies":[{"strategy_name":"A","rationale":"ra"},{"strategy_name":"B","rationale":"rb"}]}`},
	}}
	n := nodes.NewStrategyGenerator(chat)

	state := ebs.NewRunState("p", ebs.NewConfig())
	result := n.Run(context.Background(), state)

	if len(result.Delta.Strategies) != 2 {
		t.Fatalf("expected 2 generated strategies, got %d", len(result.Delta.Strategies))
	}
	for _, s := range result.Delta.Strategies {
		if !s.IsActive() {
			t.Errorf("expected a freshly generated strategy to be active, got status %q", s.Status)
		}
	}
	if result.Route.To != "judge_distill" {
		t.Errorf("expected explicit route to judge_distill, got %q", result.Route.To)
	}
}

func TestStrategyGeneratorFallsBackOnUnparsableResponse(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: "garbage"}}}
	n := nodes.NewStrategyGenerator(chat)
	n.PopulationSize = 2

	state := ebs.NewRunState("p", ebs.NewConfig())
	result := n.Run(context.Background(), state)

	if len(result.Delta.Strategies) != 2 {
		t.Fatalf("expected fallback population of size 2, got %d", len(result.Delta.Strategies))
	}
}

func TestStrategyGeneratorPreservesExistingStrategies(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: `{"strategies":[{"strategy_name":"new","rationale":"r"}]}`},
	}}
	n := nodes.NewStrategyGenerator(chat)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["existing"] = ebs.NewStrategy("existing", "Existing", "", "", nil)

	result := n.Run(context.Background(), state)

	if _, ok := result.Delta.Strategies["existing"]; !ok {
		t.Error("expected the pre-existing strategy to be carried forward")
	}
	if len(result.Delta.Strategies) != 2 {
		t.Errorf("expected 2 total strategies (1 existing + 1 new), got %d", len(result.Delta.Strategies))
	}
}
