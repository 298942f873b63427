package nodes_test

import (
	"context"
	"errors"
	"testing"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/nodes"
)

func strategyWithScore(id string, score float64) *ebs.Strategy {
	s := ebs.NewStrategy(id, id, "", "", nil)
	s.Score = score
	return s
}

func TestEvolutionEmbedsMissingAndComputesDensities(t *testing.T) {
	embedder := &model.MockEmbedder{Default: []float64{0.1, 0.2}}
	n := nodes.NewEvolution(embedder)

	cfg := ebs.NewConfig(ebs.WithTotalChildBudget(4))
	state := ebs.NewRunState("p", cfg)
	state.Strategies["a"] = strategyWithScore("a", 0.6)
	state.Strategies["b"] = strategyWithScore("b", 0.3)

	result := n.Run(context.Background(), state)

	for id, s := range result.Delta.Strategies {
		if len(s.Embedding) == 0 {
			t.Errorf("expected strategy %q to receive an embedding", id)
		}
		if s.UCBScore == 0 {
			t.Errorf("expected strategy %q to receive a non-zero UCB score", id)
		}
	}
	if result.Delta.IterationCount != state.IterationCount+1 {
		t.Errorf("expected IterationCount incremented, got %d", result.Delta.IterationCount)
	}
	if !result.Delta.HasPrevSpatialEntropy {
		t.Error("expected HasPrevSpatialEntropy set on every Evolution visit")
	}
	if result.Delta.PrevSpatialEntropy != state.SpatialEntropy {
		t.Errorf("expected PrevSpatialEntropy to carry forward the prior SpatialEntropy, got %v", result.Delta.PrevSpatialEntropy)
	}
}

func TestEvolutionMarksEmbeddingFailureAsPrunedError(t *testing.T) {
	embedder := &model.MockEmbedder{Err: errors.New("embedding provider down")}
	n := nodes.NewEvolution(embedder)

	state := ebs.NewRunState("p", ebs.NewConfig())
	state.Strategies["a"] = strategyWithScore("a", 0.5)

	result := n.Run(context.Background(), state)

	if result.Delta.Strategies["a"].Status != ebs.StatusPrunedError {
		t.Errorf("expected embedding failure to mark StatusPrunedError, got %q", result.Delta.Strategies["a"].Status)
	}
}

func TestEvolutionRespectsBeamWidthCeiling(t *testing.T) {
	embedder := &model.MockEmbedder{Default: []float64{1, 0}}
	n := nodes.NewEvolution(embedder)

	cfg := ebs.NewConfig(ebs.WithTotalChildBudget(20), ebs.WithBeamWidth(2))
	state := ebs.NewRunState("p", cfg)
	state.Strategies["a"] = strategyWithScore("a", 0.9)

	result := n.Run(context.Background(), state)

	if q := result.Delta.Strategies["a"].ChildQuota; q > 2 {
		t.Errorf("expected ChildQuota capped at BeamWidth=2, got %d", q)
	}
}

func TestEvolutionSkipsAlreadyEmbeddedStrategies(t *testing.T) {
	embedder := &model.MockEmbedder{}
	n := nodes.NewEvolution(embedder)

	state := ebs.NewRunState("p", ebs.NewConfig())
	s := strategyWithScore("a", 0.5)
	s.Embedding = []float64{9, 9}
	state.Strategies["a"] = s

	result := n.Run(context.Background(), state)

	if len(embedder.Calls) != 0 {
		t.Errorf("expected no embed calls for a strategy that already has an embedding, got %d", len(embedder.Calls))
	}
	got := result.Delta.Strategies["a"].Embedding
	if len(got) != 2 || got[0] != 9 {
		t.Errorf("expected the existing embedding left untouched, got %v", got)
	}
}

func TestEvolutionIgnoresNonActiveStrategies(t *testing.T) {
	embedder := &model.MockEmbedder{Default: []float64{1, 1}}
	n := nodes.NewEvolution(embedder)

	state := ebs.NewRunState("p", ebs.NewConfig())
	expanded := strategyWithScore("x", 0.5)
	expanded.Status = ebs.StatusExpanded
	state.Strategies["x"] = expanded

	result := n.Run(context.Background(), state)

	if len(embedder.Calls) != 0 {
		t.Error("expected an expanded strategy to be excluded from embedding")
	}
	if result.Delta.Strategies["x"].ChildQuota != 0 {
		t.Error("expected an expanded strategy to receive no child quota")
	}
}
