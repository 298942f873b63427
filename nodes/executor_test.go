package nodes_test

import (
	"context"
	"testing"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/nodes"
)

func TestExecutorDispatchesRefineDecision(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: "done"}}}
	n := nodes.NewExecutor(chat, nil)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["s1"] = ebs.NewStrategy("s1", "S1", "", "", nil)
	state.ArchitectDecisions = []ebs.Decision{
		ebs.RefineDecision{StrategyID: "s1", Instruction: "keep going"},
	}

	result := n.Run(context.Background(), state)

	traj := result.Delta.Strategies["s1"].Trajectory
	if len(traj) == 0 || traj[len(traj)-1] != "[Executor] refined: keep going" {
		t.Errorf("expected a refine trajectory entry, got %v", traj)
	}
	if result.Route.To != "judge_distill" {
		t.Errorf("expected explicit route to judge_distill, got %q", result.Route.To)
	}
}

func TestExecutorDispatchesGenerateVariantDecision(t *testing.T) {
	chat := &model.MockChatModel{}
	n := nodes.NewExecutor(chat, nil)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["s1"] = ebs.NewStrategy("s1", "S1", "r", "a", nil)
	state.ArchitectDecisions = []ebs.Decision{
		ebs.GenerateVariantDecision{StrategyID: "s1", Instruction: "try differently"},
	}

	result := n.Run(context.Background(), state)

	if len(result.Delta.Strategies) != 2 {
		t.Fatalf("expected the original plus one new variant, got %d", len(result.Delta.Strategies))
	}
}

func TestExecutorDispatchesSynthesizeDecisionAndArchives(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: "final folded report"}}}

	var archived []string
	archive := func(ctx context.Context, strategyID, rationale string) {
		archived = append(archived, strategyID)
	}
	n := nodes.NewExecutor(chat, archive)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["s1"] = ebs.NewStrategy("s1", "S1", "because reasons", "", nil)
	state.ArchitectDecisions = []ebs.Decision{
		ebs.SynthesizeDecision{StrategyIDs: []string{"s1"}, Instruction: "fold it in"},
	}

	result := n.Run(context.Background(), state)

	if result.Delta.Strategies["s1"].Status != ebs.StatusPrunedSynthesized {
		t.Errorf("expected s1 hard-pruned as synthesized, got %q", result.Delta.Strategies["s1"].Status)
	}
	if result.Delta.ReportVersion != 1 {
		t.Errorf("expected report version incremented to 1, got %d", result.Delta.ReportVersion)
	}
	if result.Delta.FinalReport != "final folded report" {
		t.Errorf("unexpected final report: %q", result.Delta.FinalReport)
	}
	if len(archived) != 1 || archived[0] != "s1" {
		t.Errorf("expected Archive invoked once with s1, got %v", archived)
	}
}

func TestExecutorSkipsArchiveWhenNilArchiveBranch(t *testing.T) {
	chat := &model.MockChatModel{Responses: []model.ChatOut{{Text: "report"}}}
	n := nodes.NewExecutor(chat, nil)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["s1"] = ebs.NewStrategy("s1", "S1", "", "", nil)
	state.ArchitectDecisions = []ebs.Decision{
		ebs.SynthesizeDecision{StrategyIDs: []string{"s1"}, Instruction: "fold"},
	}

	result := n.Run(context.Background(), state)

	if result.Delta.Strategies["s1"].Status != ebs.StatusPrunedSynthesized {
		t.Error("expected synthesis to proceed without a bound ArchiveBranch")
	}
}
