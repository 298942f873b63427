package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/graph/tool"
)

// Judge scores each active strategy into [0,1] using the distilled
// judge_context and the strategy's own trajectory. Judge never prunes; it
// only writes Score. It may optionally call a bound write_experience tool
// when it observes a generalisable lesson, but a missing or failing tool
// call never blocks scoring.
type Judge struct {
	Chat model.ChatModel

	// WriteExperience is the optional Knowledge Base tool bound per §2's
	// supplemented-features list; nil when no Knowledge Base is configured.
	WriteExperience tool.Tool
}

// NewJudge constructs a Judge backed by the given chat model. kbTool may
// be nil.
func NewJudge(chat model.ChatModel, kbTool tool.Tool) *Judge {
	return &Judge{Chat: chat, WriteExperience: kbTool}
}

type judgeScore struct {
	StrategyID string  `json:"strategy_id"`
	Score      float64 `json:"score"`
	Lesson     string  `json:"lesson,omitempty"`
}

type judgeOut struct {
	Scores []judgeScore `json:"scores"`
}

// Run implements graph.Node.
func (n *Judge) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	active := state.ActiveStrategies()

	strategies := cloneStrategies(state.Strategies)

	if len(active) == 0 {
		return graph.NodeResult[ebs.RunState]{
			Delta: ebs.RunState{Strategies: strategies, History: []string{"[Judge] no active strategies to score"}},
			Route: graph.Goto("evolve"),
		}
	}

	var tools []model.ToolSpec
	if n.WriteExperience != nil {
		tools = []model.ToolSpec{{
			Name:        n.WriteExperience.Name(),
			Description: "Record a generalisable lesson learned while judging a strategy.",
			Schema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"title": map[string]interface{}{"type": "string"}, "content": map[string]interface{}{"type": "string"}},
			},
		}}
	}

	var b strings.Builder
	b.WriteString(state.JudgeContext)
	b.WriteString("\n\nScore each of the following strategies into [0,1]:\n")
	for _, s := range active {
		fmt.Fprintf(&b, "- id=%s name=%q trajectory_tail=%q\n", s.ID, s.Name, lastEntry(s.Trajectory))
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: "Respond with a single JSON object: {\"scores\":[{\"strategy_id\":...,\"score\":0..1,\"lesson\":optional}]}. Never prune a strategy; only assign a score."},
		{Role: model.RoleUser, Content: b.String()},
	}

	out, err := n.Chat.Chat(ctx, messages, tools)

	scored := map[string]float64{}
	var lessons []judgeScore
	if err == nil {
		var parsed judgeOut
		if extractJSONObject(out.Text, &parsed) {
			for _, sc := range parsed.Scores {
				scored[sc.StrategyID] = clamp01(sc.Score)
				if sc.Lesson != "" {
					lessons = append(lessons, sc)
				}
			}
		}
		for _, call := range out.ToolCalls {
			if n.WriteExperience != nil && call.Name == n.WriteExperience.Name() {
				_, _ = n.WriteExperience.Call(ctx, call.Input)
			}
		}
	}

	for _, s := range lessons {
		if n.WriteExperience == nil {
			continue
		}
		_, _ = n.WriteExperience.Call(ctx, map[string]interface{}{"title": s.StrategyID, "content": s.Lesson})
	}

	for _, s := range active {
		if v, ok := scored[s.ID]; ok {
			strategies[s.ID].Score = v
			strategies[s.ID].Trajectory = append(strategies[s.ID].Trajectory, "[Judge] scored")
		}
	}

	delta := ebs.RunState{
		Strategies: strategies,
		History:    []string{"[Judge] scored " + itoa(len(scored)) + " of " + itoa(len(active)) + " active strategies"},
	}

	return graph.NodeResult[ebs.RunState]{Delta: delta, Route: graph.Goto("evolve")}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lastEntry(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[len(xs)-1]
}

// cloneStrategies returns a shallow copy of the population map with each
// Strategy value copied, so a node can mutate its own view without
// corrupting the version still referenced by prior state snapshots.
func cloneStrategies(src map[string]*ebs.Strategy) map[string]*ebs.Strategy {
	out := make(map[string]*ebs.Strategy, len(src))
	for id, s := range src {
		cp := *s
		cp.Trajectory = append([]string(nil), s.Trajectory...)
		cp.Embedding = s.Embedding
		out[id] = &cp
	}
	return out
}
