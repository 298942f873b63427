package nodes

import (
	"context"
	"fmt"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
)

// Propagation generates children for every active strategy with a
// positive ChildQuota, sampling at a creative temperature derived from the
// configured CouplingStrategy. After emission, parents that produced
// children transition to StatusExpanded with ChildQuota reset to 0.
type Propagation struct {
	Chat model.ChatModel
}

// NewPropagation constructs a Propagation node backed by the given chat
// model.
func NewPropagation(chat model.ChatModel) *Propagation {
	return &Propagation{Chat: chat}
}

type childOut struct {
	Name       string `json:"strategy_name"`
	Rationale  string `json:"rationale"`
	Assumption string `json:"initial_assumption"`
	Diff       string `json:"diff_from_parent"`
}

// Run implements graph.Node.
func (n *Propagation) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	strategies := cloneStrategies(state.Strategies)
	coupling := ebs.NewCouplingStrategy(state.Config)
	llmTemp := coupling.LLMTemperature(state.NormalizedTemperature)

	var spawned int
	for _, parent := range activeFrom(strategies) {
		quota := parent.ChildQuota
		if quota <= 0 {
			continue
		}
		for i := 0; i < quota; i++ {
			child := n.generateChild(ctx, parent, llmTemp)
			strategies[child.ID] = child
			spawned++
		}
		parent.Status = ebs.StatusExpanded
		parent.ChildQuota = 0
	}

	delta := ebs.RunState{
		Strategies: strategies,
		History:    []string{"[Propagation] spawned " + itoa(spawned) + " children at llm_temp=" + floatStr(llmTemp)},
	}

	return graph.NodeResult[ebs.RunState]{Delta: delta, Route: graph.Goto("schedule")}
}

func (n *Propagation) generateChild(ctx context.Context, parent *ebs.Strategy, llmTemp float64) *ebs.Strategy {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: fmt.Sprintf("Produce one child strategy that meaningfully diverges from its parent. Sampling temperature: %.2f. Respond with a single JSON object: {\"strategy_name\":...,\"rationale\":...,\"initial_assumption\":...,\"diff_from_parent\":...}.", llmTemp)},
		{Role: model.RoleUser, Content: "Parent: " + parent.Name + "\n" + parent.Rationale},
	}

	out, err := n.Chat.Chat(ctx, messages, nil)

	name, rationale, assumption, diff := parent.Name+" (variant)", parent.Rationale, parent.Assumption, "mock variant"
	if err == nil {
		var parsed childOut
		if extractJSONObject(out.Text, &parsed) && parsed.Name != "" {
			name, rationale, assumption, diff = parsed.Name, parsed.Rationale, parsed.Assumption, parsed.Diff
		}
	}
	if diff == "" {
		diff = "generated variant"
	}

	return ebs.NewChildStrategy(newID("strat"), parent, name, rationale, assumption, diff)
}
