package nodes_test

import (
	"context"
	"testing"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/nodes"
)

func TestPropagationSpawnsChildrenPerQuotaAndExpandsParent(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: `{"strategy_name":"child1","rationale":"r","diff_from_parent":"d"}`},
		{Text: `{"strategy_name":"child2","rationale":"r","diff_from_parent":"d"}`},
	}}
	n := nodes.NewPropagation(chat)

	cfg := ebs.NewConfig(ebs.WithTemperatureCoupling(ebs.CouplingAuto))
	state := ebs.NewRunState("p", cfg)
	state.NormalizedTemperature = 0.7
	parent := ebs.NewStrategy("parent", "Parent", "", "", nil)
	parent.ChildQuota = 2
	state.Strategies["parent"] = parent

	result := n.Run(context.Background(), state)

	if len(result.Delta.Strategies) != 3 {
		t.Fatalf("expected parent + 2 children, got %d strategies", len(result.Delta.Strategies))
	}
	if result.Delta.Strategies["parent"].Status != ebs.StatusExpanded {
		t.Errorf("expected parent transitioned to StatusExpanded, got %q", result.Delta.Strategies["parent"].Status)
	}
	if result.Delta.Strategies["parent"].ChildQuota != 0 {
		t.Errorf("expected parent's ChildQuota reset to 0, got %d", result.Delta.Strategies["parent"].ChildQuota)
	}
	if result.Route.To != "schedule" {
		t.Errorf("expected explicit route to schedule, got %q", result.Route.To)
	}

	for id, s := range result.Delta.Strategies {
		if id == "parent" {
			continue
		}
		if s.ParentID != "parent" {
			t.Errorf("expected child %q to carry ParentID=parent, got %q", id, s.ParentID)
		}
	}
}

func TestPropagationSkipsStrategiesWithZeroQuota(t *testing.T) {
	chat := &model.MockChatModel{}
	n := nodes.NewPropagation(chat)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["s1"] = ebs.NewStrategy("s1", "S1", "", "", nil)

	result := n.Run(context.Background(), state)

	if len(result.Delta.Strategies) != 1 {
		t.Errorf("expected no children spawned, got %d strategies", len(result.Delta.Strategies))
	}
	if result.Delta.Strategies["s1"].Status != ebs.StatusActive {
		t.Errorf("expected strategy with zero quota left active, got %q", result.Delta.Strategies["s1"].Status)
	}
}

func TestPropagationManualCouplingIgnoresNormalizedTemperature(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: `{"strategy_name":"c","rationale":"r","diff_from_parent":"d"}`}}}
	n := nodes.NewPropagation(chat)

	cfg := ebs.NewConfig(ebs.WithTemperatureCoupling(ebs.CouplingManual), ebs.WithManualLLMTemperature(1.3))
	state := ebs.NewRunState("p", cfg)
	state.NormalizedTemperature = 0.1
	parent := ebs.NewStrategy("parent", "Parent", "", "", nil)
	parent.ChildQuota = 1
	state.Strategies["parent"] = parent

	n.Run(context.Background(), state)

	call := chat.Calls[0]
	found := false
	for _, m := range call.Messages {
		if m.Role == model.RoleSystem {
			found = true
			if !contains(m.Content, "1.30") {
				t.Errorf("expected system prompt to reflect the manual temperature 1.30, got %q", m.Content)
			}
		}
	}
	if !found {
		t.Fatal("expected a system message in the chat call")
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
