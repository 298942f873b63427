package nodes

import (
	"context"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
)

// StrategyGenerator produces the initial strategy population from the
// distilled problem and research context. It performs no scoring or
// embedding; those happen later, in Judge and Evolution.
type StrategyGenerator struct {
	Chat model.ChatModel

	// PopulationSize is the number of root strategies to request; 0 uses
	// the default of 4.
	PopulationSize int
}

// NewStrategyGenerator constructs a StrategyGenerator backed by the given
// chat model.
func NewStrategyGenerator(chat model.ChatModel) *StrategyGenerator {
	return &StrategyGenerator{Chat: chat, PopulationSize: 4}
}

type generatedStrategy struct {
	Name       string      `json:"strategy_name"`
	Rationale  string      `json:"rationale"`
	Assumption string      `json:"initial_assumption"`
	Milestones interface{} `json:"milestones"`
}

type generateOut struct {
	Strategies []generatedStrategy `json:"strategies"`
}

// Run implements graph.Node.
func (n *StrategyGenerator) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	size := n.PopulationSize
	if size <= 0 {
		size = 4
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: "Generate an initial population of distinct candidate strategies for the problem. Respond with a single JSON object: {\"strategies\": [{\"strategy_name\":...,\"rationale\":...,\"initial_assumption\":...,\"milestones\":...}]}."},
		{Role: model.RoleUser, Content: state.ProblemState + "\n\n" + state.ResearchContext},
	}

	out, err := n.Chat.Chat(ctx, messages, nil)

	strategies := make(map[string]*ebs.Strategy, len(state.Strategies)+size)
	for id, s := range state.Strategies {
		strategies[id] = s
	}

	var generated []generatedStrategy
	if err == nil {
		var parsed generateOut
		if extractJSONObject(out.Text, &parsed) {
			generated = parsed.Strategies
		}
	}
	if len(generated) == 0 {
		for i := 0; i < size; i++ {
			generated = append(generated, generatedStrategy{
				Name:      "strategy",
				Rationale: "fallback generation after inference failure",
			})
		}
	}

	for _, g := range generated {
		s := ebs.NewStrategy(newID("strat"), g.Name, g.Rationale, g.Assumption, g.Milestones)
		strategies[s.ID] = s
	}

	delta := ebs.RunState{
		Strategies: strategies,
		History:    []string{"[StrategyGenerator] generated " + itoa(len(generated)) + " strategies"},
	}

	return graph.NodeResult[ebs.RunState]{Delta: delta, Route: graph.Goto("judge_distill")}
}
