package nodes_test

import (
	"context"
	"testing"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/nodes"
)

type recordingTool struct {
	name  string
	calls []map[string]interface{}
}

func (r *recordingTool) Name() string { return r.name }

func (r *recordingTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	r.calls = append(r.calls, input)
	return map[string]interface{}{"ok": true}, nil
}

func TestJudgeScoresActiveStrategiesAndClamps(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: `{"scores":[{"strategy_id":"s1","score":1.5},{"strategy_id":"s2","score":-0.2}]}`},
	}}
	n := nodes.NewJudge(chat, nil)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["s1"] = ebs.NewStrategy("s1", "S1", "", "", nil)
	state.Strategies["s2"] = ebs.NewStrategy("s2", "S2", "", "", nil)

	result := n.Run(context.Background(), state)

	if result.Delta.Strategies["s1"].Score != 1 {
		t.Errorf("expected score clamped to 1, got %v", result.Delta.Strategies["s1"].Score)
	}
	if result.Delta.Strategies["s2"].Score != 0 {
		t.Errorf("expected score clamped to 0, got %v", result.Delta.Strategies["s2"].Score)
	}
	if result.Route.To != "evolve" {
		t.Errorf("expected explicit route to evolve, got %q", result.Route.To)
	}
}

func TestJudgeSkipsScoringWithNoActiveStrategies(t *testing.T) {
	chat := &model.MockChatModel{}
	n := nodes.NewJudge(chat, nil)

	state := ebs.NewRunState("p", ebs.NewConfig())
	s := ebs.NewStrategy("s1", "S1", "", "", nil)
	s.Status = ebs.StatusExpanded
	state.Strategies["s1"] = s

	result := n.Run(context.Background(), state)

	if chat.CallCount() != 0 {
		t.Error("expected no inference call when there are no active strategies")
	}
	if result.Route.To != "evolve" {
		t.Errorf("expected explicit route to evolve, got %q", result.Route.To)
	}
}

func TestJudgeInvokesWriteExperienceOnLessonAndToolCall(t *testing.T) {
	tool := &recordingTool{name: "write_experience"}
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{
			Text: `{"scores":[{"strategy_id":"s1","score":0.8,"lesson":"always check boundary cases"}]}`,
			ToolCalls: []model.ToolCall{
				{Name: "write_experience", Input: map[string]interface{}{"title": "t", "content": "c"}},
			},
		},
	}}
	n := nodes.NewJudge(chat, tool)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["s1"] = ebs.NewStrategy("s1", "S1", "", "", nil)

	n.Run(context.Background(), state)

	if len(tool.calls) != 2 {
		t.Fatalf("expected write_experience invoked once for the tool call and once for the lesson, got %d", len(tool.calls))
	}
}

func TestJudgeNeverBlocksScoringWhenToolIsNil(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: `{"scores":[{"strategy_id":"s1","score":0.6,"lesson":"a lesson"}]}`},
	}}
	n := nodes.NewJudge(chat, nil)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["s1"] = ebs.NewStrategy("s1", "S1", "", "", nil)

	result := n.Run(context.Background(), state)

	if result.Delta.Strategies["s1"].Score != 0.6 {
		t.Errorf("expected scoring to proceed without a bound tool, got %v", result.Delta.Strategies["s1"].Score)
	}
}
