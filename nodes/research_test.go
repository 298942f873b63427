package nodes_test

import (
	"context"
	"testing"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/nodes"
)

func TestResearcherParsesSufficientStatus(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: `{"research_context":"found it","information_status":"sufficient","missing_items":[]}`},
	}}
	n := nodes.NewResearcher(chat)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Subtasks = []string{"find x"}

	result := n.Run(context.Background(), state)

	if result.Delta.ResearchStatus != ebs.ResearchSufficient {
		t.Errorf("expected sufficient status, got %q", result.Delta.ResearchStatus)
	}
	if result.Delta.ResearchContext != "found it" {
		t.Errorf("unexpected research context: %q", result.Delta.ResearchContext)
	}
	if result.Delta.ResearchIteration != 1 {
		t.Errorf("expected iteration to increment to 1, got %d", result.Delta.ResearchIteration)
	}
}

func TestResearcherDefaultsToSufficientOnUnparsableResponse(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: "not json at all"}}}
	n := nodes.NewResearcher(chat)

	state := ebs.NewRunState("p", ebs.NewConfig())
	result := n.Run(context.Background(), state)

	if result.Delta.ResearchStatus != ebs.ResearchSufficient {
		t.Errorf("expected fallback to sufficient so the loop doesn't spin forever, got %q", result.Delta.ResearchStatus)
	}
	if result.Delta.ResearchContext != "not json at all" {
		t.Errorf("expected raw text to carry through as research context, got %q", result.Delta.ResearchContext)
	}
}

func TestResearcherPreservesPriorContextOnChatError(t *testing.T) {
	chat := &model.MockChatModel{Err: context.DeadlineExceeded}
	n := nodes.NewResearcher(chat)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.ResearchContext = "prior context"
	result := n.Run(context.Background(), state)

	if result.Delta.ResearchContext != "prior context" {
		t.Errorf("expected prior research context to be preserved on error, got %q", result.Delta.ResearchContext)
	}
	if result.Delta.ResearchStatus != ebs.ResearchSufficient {
		t.Errorf("expected error path to report sufficient and stop looping, got %q", result.Delta.ResearchStatus)
	}
}
