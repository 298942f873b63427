package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/emit"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/graph/store"
	"github.com/evobeam/ebs-go/nodes"
	"github.com/evobeam/ebs-go/supervisor"
)

func newTestSupervisor(t *testing.T) *supervisor.Supervisor {
	t.Helper()
	deps := nodes.Deps{
		Chat:     &model.MockChatModel{},
		Embedder: &model.MockEmbedder{Default: []float64{0.1, 0.2}},
	}
	s, err := supervisor.New(deps, store.NewMemStore[ebs.RunState](), emit.NewNullEmitter())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestStartBroadcastsStartedThenCompleted(t *testing.T) {
	s := newTestSupervisor(t)
	_, sub := s.Subscribe()

	cfg := ebs.NewConfig(ebs.WithMaxIterations(1))
	if err := s.Start(context.Background(), "problem", cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotStarted, gotCompleted bool
	deadline := time.After(2 * time.Second)
	for !gotCompleted {
		select {
		case msg := <-sub:
			if msg.Type == "status" && msg.Data == "started" {
				gotStarted = true
			}
			if msg.Type == "status" && msg.Data == "completed" {
				gotCompleted = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for the run to complete")
		}
	}
	if !gotStarted {
		t.Error("expected a status:started broadcast before completion")
	}
}

func TestStartRejectsConcurrentRuns(t *testing.T) {
	s := newTestSupervisor(t)
	cfg := ebs.NewConfig(ebs.WithMaxIterations(1))

	if err := s.Start(context.Background(), "problem", cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Start(context.Background(), "problem", cfg); err != supervisor.ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStopCancelsTheActiveRun(t *testing.T) {
	s := newTestSupervisor(t)
	_, sub := s.Subscribe()

	cfg := ebs.NewConfig(ebs.WithMaxIterations(1000))
	if err := s.Start(context.Background(), "problem", cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-sub:
			if msg.Type == "status" && msg.Data == "stopped" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for status:stopped")
		}
	}
}

func TestUnsubscribeClosesTheChannel(t *testing.T) {
	s := newTestSupervisor(t)
	id, sub := s.Subscribe()
	s.Unsubscribe(id)

	if _, ok := <-sub; ok {
		t.Error("expected the channel closed after Unsubscribe")
	}
}
