package nodes

import (
	"context"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/graph/tool"
)

// EndNode is the terminal sink of the evolutionary loop: it performs no
// work and stops execution.
type EndNode struct{}

// Run implements graph.Node.
func (EndNode) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	return graph.NodeResult[ebs.RunState]{Route: graph.Stop()}
}

// Graph registers the full node set and the cooperative reasoning loop's
// edges onto engine: decompose → research (looped) → distill → generate →
// judge_distill → judge → evolve → (converged? end : propagate → schedule
// → execute → back to judge_distill).
//
// Nodes whose single successor never depends on state (e.g. decompose →
// research) set an explicit Route themselves and need no edge here; only
// the two state-dependent branch points (the research loop and the
// convergence check) are wired as conditional edges.
func Graph(engine *graph.Engine[ebs.RunState], deps Deps) error {
	if err := engine.Add("decompose", NewTaskDecomposer(deps.Chat)); err != nil {
		return err
	}
	if err := engine.Add("research", NewResearcher(deps.Chat)); err != nil {
		return err
	}
	if err := engine.Add("global_distill", NewGlobalDistiller(deps.Chat)); err != nil {
		return err
	}
	if err := engine.Add("generate", NewStrategyGenerator(deps.Chat)); err != nil {
		return err
	}
	if err := engine.Add("judge_distill", NewJudgeDistiller()); err != nil {
		return err
	}
	if err := engine.Add("judge", NewJudge(deps.Chat, deps.WriteExperience)); err != nil {
		return err
	}
	if err := engine.Add("evolve", NewEvolution(deps.Embedder)); err != nil {
		return err
	}
	if err := engine.Add("propagate", NewPropagation(deps.Chat)); err != nil {
		return err
	}
	if err := engine.Add("schedule", NewArchitectScheduler(deps.Chat, deps.ForceSynthesize)); err != nil {
		return err
	}
	if err := engine.Add("execute", NewExecutor(deps.Chat, deps.Archive)); err != nil {
		return err
	}
	if err := engine.Add("end", EndNode{}); err != nil {
		return err
	}

	if err := engine.StartAt("decompose"); err != nil {
		return err
	}

	if err := engine.Connect("research", "research", ShouldResearchContinue); err != nil {
		return err
	}
	if err := engine.Connect("research", "global_distill", nil); err != nil {
		return err
	}
	if err := engine.Connect("evolve", "propagate", ShouldContinue); err != nil {
		return err
	}
	if err := engine.Connect("evolve", "end", nil); err != nil {
		return err
	}

	return nil
}

// Deps collects the external collaborators every node needs: the
// Inference Service adapters, the optional Knowledge Base hooks, and the
// optional force-synthesize channel from a Simulation Supervisor.
type Deps struct {
	Chat     model.ChatModel
	Embedder model.Embedder

	// WriteExperience is the optional Knowledge Base tool bound to Judge.
	WriteExperience tool.Tool

	// Archive is invoked by Executor for each strategy hard-pruned by a
	// Synthesize decision.
	Archive ArchiveBranch

	// ForceSynthesize is polled by ArchitectScheduler; nil if no
	// Simulation Supervisor is wired in.
	ForceSynthesize func() []string
}
