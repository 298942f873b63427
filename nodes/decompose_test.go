package nodes_test

import (
	"context"
	"testing"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/nodes"
)

func TestTaskDecomposerParsesStructuredResponse(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: `{"subtasks":["a","b"],"information_needs":[{"topic":"x","type":"procedural","priority":2}]}`},
	}}
	n := nodes.NewTaskDecomposer(chat)

	state := ebs.NewRunState("solve x", ebs.NewConfig())
	result := n.Run(context.Background(), state)

	if len(result.Delta.Subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(result.Delta.Subtasks))
	}
	if len(result.Delta.InformationNeeds) != 1 || result.Delta.InformationNeeds[0].Type != ebs.InformationNeedProcedural {
		t.Fatalf("unexpected information needs: %+v", result.Delta.InformationNeeds)
	}
	if result.Route.To != "research" {
		t.Errorf("expected explicit route to research, got %q", result.Route.To)
	}
}

func TestTaskDecomposerFallsBackOnChatError(t *testing.T) {
	chat := &model.MockChatModel{Err: context.DeadlineExceeded}
	n := nodes.NewTaskDecomposer(chat)

	state := ebs.NewRunState("solve x", ebs.NewConfig())
	result := n.Run(context.Background(), state)

	if len(result.Delta.Subtasks) != 1 || result.Delta.Subtasks[0] != "solve x" {
		t.Errorf("expected single fallback subtask equal to the problem statement, got %+v", result.Delta.Subtasks)
	}
	if len(result.Delta.InformationNeeds) != 1 {
		t.Errorf("expected a single fallback information need, got %+v", result.Delta.InformationNeeds)
	}
}

func TestTaskDecomposerClampsOutOfRangePriority(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: `{"subtasks":["a"],"information_needs":[{"topic":"x","type":"bogus","priority":99}]}`},
	}}
	n := nodes.NewTaskDecomposer(chat)

	state := ebs.NewRunState("p", ebs.NewConfig())
	result := n.Run(context.Background(), state)

	need := result.Delta.InformationNeeds[0]
	if need.Priority != 3 {
		t.Errorf("expected out-of-range priority clamped to 3, got %d", need.Priority)
	}
	if need.Type != ebs.InformationNeedFactual {
		t.Errorf("expected unrecognized type to default to factual, got %q", need.Type)
	}
}
