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

// GlobalDistiller runs once, before the Strategy Generator, compressing
// raw research context into a short structured brief and augmenting the
// problem statement with a marked background section.
type GlobalDistiller struct {
	Chat model.ChatModel

	// MaxBriefTokens bounds the compressed brief via the chars/4 token
	// estimate; 0 uses the default of 500.
	MaxBriefTokens int
}

// NewGlobalDistiller constructs a GlobalDistiller backed by the given chat
// model.
func NewGlobalDistiller(chat model.ChatModel) *GlobalDistiller {
	return &GlobalDistiller{Chat: chat, MaxBriefTokens: 500}
}

// Run implements graph.Node.
func (n *GlobalDistiller) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	limit := n.MaxBriefTokens
	if limit <= 0 {
		limit = 500
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: fmt.Sprintf("Compress the research context into a brief of at most %d tokens, preserving every fact load-bearing for strategy generation.", limit)},
		{Role: model.RoleUser, Content: state.ResearchContext},
	}

	brief := state.ResearchContext
	if out, err := n.Chat.Chat(ctx, messages, nil); err == nil && out.Text != "" {
		brief = out.Text
	}

	augmented := state.ProblemState + "\n\n[background]\n" + brief

	delta := ebs.RunState{
		ProblemState:    augmented,
		ResearchContext: brief,
		History:         []string{"[GlobalDistiller] compressed research context"},
	}

	return graph.NodeResult[ebs.RunState]{Delta: delta, Route: graph.Goto("generate")}
}

// JudgeDistiller produces judge_context: a deterministic markdown summary
// of the problem, the run's thermodynamic state, grouped strategies, and
// recent history. It never passes raw strategy payloads to the Judge.
type JudgeDistiller struct{}

// NewJudgeDistiller constructs a JudgeDistiller.
func NewJudgeDistiller() *JudgeDistiller { return &JudgeDistiller{} }

// Run implements graph.Node.
func (n *JudgeDistiller) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	brief := BuildJudgeContext(state)

	delta := ebs.RunState{
		JudgeContext: brief,
		History:      []string{"[JudgeDistiller] rebuilt judge context"},
	}

	return graph.NodeResult[ebs.RunState]{Delta: delta, Route: graph.Goto("judge")}
}

// BuildJudgeContext renders the deterministic markdown brief the Judge
// reads instead of the raw strategy population. Two calls against an
// unchanged RunState produce byte-identical output.
func BuildJudgeContext(state ebs.RunState) string {
	var b strings.Builder

	headline := state.ProblemState
	if idx := strings.Index(headline, "\n"); idx >= 0 {
		headline = headline[:idx]
	}
	fmt.Fprintf(&b, "# %s\n\n", headline)
	fmt.Fprintf(&b, "iteration=%d temperature=%.4f entropy=%.4f\n\n",
		state.IterationCount, state.NormalizedTemperature, state.SpatialEntropy)

	var active, pruned, expanded []*ebs.Strategy
	for _, s := range state.Strategies {
		switch s.Status {
		case ebs.StatusActive:
			active = append(active, s)
		case ebs.StatusExpanded:
			expanded = append(expanded, s)
		default:
			pruned = append(pruned, s)
		}
	}
	sort.Slice(active, func(i, j int) bool { return byScoreThenID(active[i], active[j]) })
	sort.Slice(pruned, func(i, j int) bool { return byScoreThenID(pruned[i], pruned[j]) })
	sort.Slice(expanded, func(i, j int) bool { return byScoreThenID(expanded[i], expanded[j]) })

	writeGroup(&b, "Active", active, 5)
	writeGroup(&b, "Pruned", pruned, 3)
	writeGroup(&b, "Expanded", expanded, 3)

	b.WriteString("## Recent history\n")
	tail := state.History
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	for _, h := range tail {
		fmt.Fprintf(&b, "- %s\n", h)
	}

	return b.String()
}

// byScoreThenID orders strategies by descending Score, breaking ties on ID
// so the output is stable across map-iteration-order reruns: without this,
// the common case of several freshly-generated strategies tied at Score==0
// would sort arbitrarily differently across otherwise-identical calls.
func byScoreThenID(a, b *ebs.Strategy) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

func writeGroup(b *strings.Builder, label string, strategies []*ebs.Strategy, limit int) {
	fmt.Fprintf(b, "## %s\n", label)
	if len(strategies) > limit {
		strategies = strategies[:limit]
	}
	for _, s := range strategies {
		fmt.Fprintf(b, "- %s (score=%.2f): %s\n", s.Name, s.Score, s.Rationale)
	}
	b.WriteString("\n")
}

// ShouldDistillJudgeContext is the conditional trigger for re-running the
// Judge Distiller: whenever the accumulated judge_context plus the latest
// history entries exceed the configured token estimate.
func ShouldDistillJudgeContext(state ebs.RunState) bool {
	threshold := state.Config.DistillThreshold
	if threshold <= 0 {
		threshold = 4000
	}
	total := estimateTokens(state.JudgeContext)
	for _, h := range state.History {
		total += estimateTokens(h)
	}
	return total > threshold
}
