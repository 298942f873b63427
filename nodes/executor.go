package nodes

import (
	"context"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
)

// ArchiveBranch is called once per strategy hard-pruned by a Synthesize
// decision, with the branch's synthesis rationale only (never its full
// trajectory). Implemented by the Knowledge Base; nil disables archiving.
type ArchiveBranch func(ctx context.Context, strategyID, rationale string)

// Executor drains ArchitectDecisions one at a time, each dispatched by
// concrete type to its own handler; GenerateVariant decisions are handled
// without an inference call.
type Executor struct {
	Chat    model.ChatModel
	Archive ArchiveBranch
}

// NewExecutor constructs an Executor backed by the given chat model.
// archive may be nil if no Knowledge Base is configured.
func NewExecutor(chat model.ChatModel, archive ArchiveBranch) *Executor {
	return &Executor{Chat: chat, Archive: archive}
}

// Run implements graph.Node.
func (n *Executor) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	strategies := cloneStrategies(state.Strategies)
	reportVersion := state.ReportVersion
	finalReport := state.FinalReport

	for _, decision := range state.ArchitectDecisions {
		switch d := decision.(type) {
		case ebs.RefineDecision:
			n.refine(ctx, strategies, d)
		case ebs.GenerateVariantDecision:
			n.generateVariant(ctx, strategies, d)
		case ebs.SynthesizeDecision:
			reportVersion++
			finalReport = n.synthesize(ctx, strategies, d, reportVersion, finalReport)
		}
	}

	delta := ebs.RunState{
		Strategies:         strategies,
		ArchitectDecisions: []ebs.Decision{},
		ReportVersion:      reportVersion,
		FinalReport:        finalReport,
		History:            []string{"[Executor] executed " + itoa(len(state.ArchitectDecisions)) + " decisions"},
	}

	return graph.NodeResult[ebs.RunState]{Delta: delta, Route: graph.Goto("judge_distill")}
}

func (n *Executor) refine(ctx context.Context, strategies map[string]*ebs.Strategy, d ebs.RefineDecision) {
	s, ok := strategies[d.StrategyID]
	if !ok {
		return
	}
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "Refine this strategy per the instruction."},
		{Role: model.RoleUser, Content: d.Instruction + "\n" + d.ContextInjection},
	}
	if _, err := n.Chat.Chat(ctx, messages, nil); err == nil {
		s.Trajectory = append(s.Trajectory, "[Executor] refined: "+d.Instruction)
	}
}

func (n *Executor) generateVariant(ctx context.Context, strategies map[string]*ebs.Strategy, d ebs.GenerateVariantDecision) {
	parent, ok := strategies[d.StrategyID]
	if !ok {
		return
	}
	child := ebs.NewChildStrategy(newID("strat"), parent, parent.Name+" (executor variant)", parent.Rationale, parent.Assumption, d.Instruction)
	strategies[child.ID] = child
}

func (n *Executor) synthesize(ctx context.Context, strategies map[string]*ebs.Strategy, d ebs.SynthesizeDecision, version int, prevReport string) string {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "Fold the named strategies into a single coherent report, extending any prior report rather than discarding it."},
		{Role: model.RoleUser, Content: prevReport + "\n\n" + d.Instruction},
	}

	report := prevReport
	if out, err := n.Chat.Chat(ctx, messages, nil); err == nil && out.Text != "" {
		report = out.Text
	}

	for _, id := range d.StrategyIDs {
		s, ok := strategies[id]
		if !ok {
			continue
		}
		rationale := s.Rationale
		s.Status = ebs.StatusPrunedSynthesized
		s.PrunedAtReportVersion = version
		s.Trajectory = append(s.Trajectory, "[Executor] synthesized into report v"+itoa(version))

		if n.Archive != nil {
			n.Archive(ctx, id, rationale)
		}
	}

	return report
}
