package nodes

import (
	"context"
	"strconv"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
)

// TaskDecomposer asks the Inference Service for a structured breakdown of
// the problem statement into subtasks and research needs.
type TaskDecomposer struct {
	Chat model.ChatModel
}

// NewTaskDecomposer constructs a TaskDecomposer backed by the given chat
// model.
func NewTaskDecomposer(chat model.ChatModel) *TaskDecomposer {
	return &TaskDecomposer{Chat: chat}
}

type decomposeOut struct {
	Subtasks         []string `json:"subtasks"`
	InformationNeeds []struct {
		Topic    string `json:"topic"`
		Type     string `json:"type"`
		Priority int    `json:"priority"`
	} `json:"information_needs"`
}

// Run implements graph.Node.
func (n *TaskDecomposer) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "Decompose the problem into concrete subtasks and the information needed to address them. Respond with a single JSON object: {\"subtasks\": [...], \"information_needs\": [{\"topic\":...,\"type\":\"factual|procedural|conceptual\",\"priority\":1-5}]}."},
		{Role: model.RoleUser, Content: state.ProblemState},
	}

	out, err := n.Chat.Chat(ctx, messages, nil)

	subtasks := []string{state.ProblemState}
	needs := []ebs.InformationNeed{{Topic: state.ProblemState, Type: ebs.InformationNeedFactual, Priority: 5}}

	if err == nil {
		var parsed decomposeOut
		if extractJSONObject(out.Text, &parsed) && len(parsed.Subtasks) > 0 {
			subtasks = parsed.Subtasks
			needs = needs[:0]
			for _, item := range parsed.InformationNeeds {
				needType := ebs.InformationNeedType(item.Type)
				switch needType {
				case ebs.InformationNeedFactual, ebs.InformationNeedProcedural, ebs.InformationNeedConceptual:
				default:
					needType = ebs.InformationNeedFactual
				}
				priority := item.Priority
				if priority < 1 || priority > 5 {
					priority = 3
				}
				needs = append(needs, ebs.InformationNeed{Topic: item.Topic, Type: needType, Priority: priority})
			}
			if len(needs) == 0 {
				needs = []ebs.InformationNeed{{Topic: state.ProblemState, Type: ebs.InformationNeedFactual, Priority: 5}}
			}
		}
	}

	delta := ebs.RunState{
		Subtasks:         subtasks,
		InformationNeeds: needs,
		History:          []string{"[TaskDecomposer] produced " + strconv.Itoa(len(subtasks)) + " subtasks"},
	}

	return graph.NodeResult[ebs.RunState]{Delta: delta, Route: graph.Goto("research")}
}
