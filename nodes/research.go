package nodes

import (
	"context"
	"strconv"
	"strings"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
)

// Researcher performs one self-reflective grounded search call per visit,
// looping until it reports sufficient information or the configured
// iteration cap is reached.
type Researcher struct {
	Chat model.ChatModel
}

// NewResearcher constructs a Researcher backed by the given chat model.
func NewResearcher(chat model.ChatModel) *Researcher {
	return &Researcher{Chat: chat}
}

type researchOut struct {
	ResearchContext   string   `json:"research_context"`
	InformationStatus string   `json:"information_status"`
	MissingItems      []string `json:"missing_items"`
}

// Run implements graph.Node.
func (n *Researcher) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "Perform one grounded research pass over the subtasks and information needs. Respond with a single JSON object: {\"research_context\":..., \"information_status\":\"sufficient|insufficient\", \"missing_items\":[...]}."},
		{Role: model.RoleUser, Content: strings.Join(state.Subtasks, "\n")},
	}

	out, err := n.Chat.Chat(ctx, messages, nil)

	var researchContext string
	status := ebs.ResearchSufficient

	switch {
	case err != nil:
		researchContext = state.ResearchContext
		status = ebs.ResearchSufficient
	default:
		var parsed researchOut
		if extractJSONObject(out.Text, &parsed) {
			researchContext = parsed.ResearchContext
			if researchContext == "" {
				researchContext = out.Text
			}
			switch ebs.ResearchStatus(parsed.InformationStatus) {
			case ebs.ResearchSufficient, ebs.ResearchInsufficient:
				status = ebs.ResearchStatus(parsed.InformationStatus)
			default:
				status = ebs.ResearchSufficient
			}
		} else {
			researchContext = out.Text
			status = ebs.ResearchSufficient
		}
	}

	iteration := state.ResearchIteration + 1

	delta := ebs.RunState{
		ResearchContext:   researchContext,
		ResearchStatus:    status,
		ResearchIteration: iteration,
		History:           []string{"[Researcher] iteration " + strconv.Itoa(iteration) + " status=" + string(status)},
	}

	return graph.NodeResult[ebs.RunState]{Delta: delta}
}

// ShouldResearchContinue is the conditional edge predicate named
// should_research_continue: it routes back to the Researcher while
// information is insufficient and the iteration cap has not been reached,
// otherwise proceeds to the Global Distiller.
func ShouldResearchContinue(state ebs.RunState) bool {
	if state.ResearchStatus == ebs.ResearchSufficient {
		return false
	}
	maxIter := state.Config.MaxResearchIterations
	if maxIter <= 0 {
		maxIter = 3
	}
	return state.ResearchIteration < maxIter
}
