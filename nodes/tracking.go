package nodes

import (
	"context"
	"strings"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
)

// TrackedChatModel wraps a ChatModel with a graph.CostTracker, attributing
// every call's estimated token usage and cost to the node that made it.
// Wrap Deps.Chat with one before wiring the graph; the Supervisor detects
// it and broadcasts its Snapshot as a cost_summary message when the run
// ends. RunState.CostSummary is not filled in from it.
type TrackedChatModel struct {
	Inner   model.ChatModel
	Tracker *graph.CostTracker

	// ModelName identifies the backing model for pricing lookups (e.g.
	// "gpt-4o", "claude-3-5-sonnet-20241022"). An unrecognized name costs
	// $0 rather than failing the call.
	ModelName string
}

// NewTrackedChatModel constructs a TrackedChatModel. runID is attributed to
// every recorded call.
func NewTrackedChatModel(inner model.ChatModel, modelName, runID string) *TrackedChatModel {
	return &TrackedChatModel{
		Inner:     inner,
		Tracker:   graph.NewCostTracker(runID, "USD"),
		ModelName: modelName,
	}
}

// Chat implements model.ChatModel, delegating to Inner and recording token
// usage estimated via the chars/4 heuristic (the Inference Service
// interface carries no native usage field).
func (t *TrackedChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	out, err := t.Inner.Chat(ctx, messages, tools)
	if err != nil {
		return out, err
	}

	var input strings.Builder
	for _, m := range messages {
		input.WriteString(m.Content)
	}

	nodeID, _ := ctx.Value(graph.NodeIDKey).(string)
	_ = t.Tracker.RecordLLMCall(t.ModelName, estimateTokens(input.String()), estimateTokens(out.Text), nodeID)

	return out, nil
}

// Snapshot returns the accumulated cost as an ebs.CostSummary.
func (t *TrackedChatModel) Snapshot() ebs.CostSummary {
	input, output := t.Tracker.GetTokenUsage()
	return ebs.CostSummary{
		TotalCostUSD: t.Tracker.GetTotalCost(),
		InputTokens:  input,
		OutputTokens: output,
		CallCount:    len(t.Tracker.GetCallHistory()),
	}
}
