package nodes

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
)

// ArchitectScheduler prepares the Executor's decision queue from a
// UCB-ranked view of active strategies, requesting an executor_instruction
// and optional context_injection for each from the inference service, and
// honors an operator-issued force-synthesize request on its next visit.
type ArchitectScheduler struct {
	Chat model.ChatModel

	// ForceSynthesize, when non-nil, names strategy ids a pending
	// HIL_FORCE_SYNTHESIZE request asked to fold into a report. Consumed
	// (set back to nil) on the visit it is honored.
	ForceSynthesize func() []string
}

// NewArchitectScheduler constructs an ArchitectScheduler backed by the
// given chat model. forceSynthesize may be nil if no Simulation
// Supervisor is wired in (e.g. a headless run).
func NewArchitectScheduler(chat model.ChatModel, forceSynthesize func() []string) *ArchitectScheduler {
	return &ArchitectScheduler{Chat: chat, ForceSynthesize: forceSynthesize}
}

type architectDecision struct {
	StrategyID          string `json:"strategy_id"`
	ExecutorInstruction string `json:"executor_instruction"`
	ContextInjection    string `json:"context_injection,omitempty"`
}

type architectOut struct {
	Decisions []architectDecision `json:"decisions"`
}

// Run implements graph.Node.
func (n *ArchitectScheduler) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	if n.ForceSynthesize != nil {
		if ids := n.ForceSynthesize(); len(ids) > 0 {
			decisions := []ebs.Decision{ebs.SynthesizeDecision{
				StrategyIDs: ids,
				Instruction: "operator-requested synthesis",
			}}
			delta := ebs.RunState{
				ArchitectDecisions: decisions,
				History:            []string{"[ArchitectScheduler] honoring forced synthesis over " + itoa(len(ids)) + " strategies"},
			}
			return graph.NodeResult[ebs.RunState]{Delta: delta, Route: graph.Goto("execute")}
		}
	}

	active := activeFrom(state.Strategies)
	sort.Slice(active, func(i, j int) bool { return active[i].UCBScore > active[j].UCBScore })

	instructions := n.requestInstructions(ctx, state, active)

	decisions := make([]ebs.Decision, 0, len(active))
	for _, s := range active {
		instruction, contextInjection := defaultInstruction(s), state.JudgeContext
		if d, ok := instructions[s.ID]; ok && d.ExecutorInstruction != "" {
			instruction = d.ExecutorInstruction
			if d.ContextInjection != "" {
				contextInjection = d.ContextInjection
			}
		}
		decisions = append(decisions, ebs.RefineDecision{
			StrategyID:       s.ID,
			Instruction:      instruction,
			ContextInjection: contextInjection,
		})
	}

	delta := ebs.RunState{
		ArchitectDecisions: decisions,
		History:            []string{"[ArchitectScheduler] queued " + itoa(len(decisions)) + " decisions"},
	}

	return graph.NodeResult[ebs.RunState]{Delta: delta, Route: graph.Goto("execute")}
}

// requestInstructions asks the inference service for an executor
// instruction and optional context injection per ranked strategy. A
// failed call or an unparseable response yields an empty map, so every
// strategy falls back to defaultInstruction.
func (n *ArchitectScheduler) requestInstructions(ctx context.Context, state ebs.RunState, active []*ebs.Strategy) map[string]architectDecision {
	result := map[string]architectDecision{}
	if n.Chat == nil || len(active) == 0 {
		return result
	}

	var b strings.Builder
	b.WriteString(state.ProblemState)
	b.WriteString("\n\nFor each of the following strategies, ranked by UCB score, write a concrete executor_instruction and an optional context_injection:\n")
	for i, s := range active {
		fmt.Fprintf(&b, "%d. id=%s name=%q ucb_score=%.3f child_quota=%d rationale=%q assumption=%q\n",
			i+1, s.ID, s.Name, s.UCBScore, s.ChildQuota, s.Rationale, s.Assumption)
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: "Respond with a single JSON object: {\"decisions\":[{\"strategy_id\":...,\"executor_instruction\":...,\"context_injection\":optional}]}. Write one decision per strategy listed."},
		{Role: model.RoleUser, Content: b.String()},
	}

	out, err := n.Chat.Chat(ctx, messages, nil)
	if err != nil {
		return result
	}

	var parsed architectOut
	if !extractJSONObject(out.Text, &parsed) {
		return result
	}
	for _, d := range parsed.Decisions {
		result[d.StrategyID] = d
	}
	return result
}

func defaultInstruction(s *ebs.Strategy) string {
	if s.ChildQuota > 0 {
		return "Continue work; this strategy is also propagating children this round."
	}
	return "Continue work on this strategy using its current trajectory."
}
