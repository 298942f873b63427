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

func newSupervisorForHIL(t *testing.T) *supervisor.Supervisor {
	t.Helper()
	deps := nodes.Deps{Chat: &model.MockChatModel{}, Embedder: &model.MockEmbedder{}}
	s, err := supervisor.New(deps, store.NewMemStore[ebs.RunState](), emit.NewNullEmitter())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestAskHumanResolvesOnSubmitResponse(t *testing.T) {
	s := newSupervisorForHIL(t)
	_, sub := s.Subscribe()

	resultCh := make(chan string, 1)
	go func() {
		resultCh <- s.AskHuman(context.Background(), "continue?", "ctx", "architect", 5*time.Second)
	}()

	var reqID string
	deadline := time.After(2 * time.Second)
	for reqID == "" {
		select {
		case msg := <-sub:
			if msg.Type == "hil_required" {
				req := msg.Data.(supervisor.HILRequest)
				reqID = req.ID
			}
		case <-deadline:
			t.Fatal("timed out waiting for hil_required broadcast")
		}
	}

	if len(s.PendingRequests()) != 1 {
		t.Fatalf("expected one pending request, got %d", len(s.PendingRequests()))
	}
	if !s.SubmitResponse(reqID, "yes") {
		t.Fatal("expected SubmitResponse to succeed for a pending request")
	}

	select {
	case got := <-resultCh:
		if got != "yes" {
			t.Errorf("expected the submitted response returned, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for AskHuman to return")
	}
	if len(s.PendingRequests()) != 0 {
		t.Error("expected the request removed from PendingRequests after resolution")
	}
}

func TestAskHumanTimesOutWithoutAResponse(t *testing.T) {
	s := newSupervisorForHIL(t)

	got := s.AskHuman(context.Background(), "continue?", "ctx", "architect", 10*time.Millisecond)
	if got == "" {
		t.Error("expected a non-empty timeout sentinel")
	}
	if len(s.PendingRequests()) != 0 {
		t.Error("expected the request cleared after timing out")
	}
}

func TestSubmitResponseFailsForUnknownRequest(t *testing.T) {
	s := newSupervisorForHIL(t)
	if s.SubmitResponse("does-not-exist", "x") {
		t.Error("expected SubmitResponse to fail for an unknown request id")
	}
}

func TestForceSynthesizeIsDrainedOnce(t *testing.T) {
	s := newSupervisorForHIL(t)
	_, sub := s.Subscribe()

	s.ForceSynthesize([]string{"a", "b"}, "operator requested")

	deadline := time.After(2 * time.Second)
	var gotBroadcast bool
	for !gotBroadcast {
		select {
		case msg := <-sub:
			if msg.Type == "HIL_FORCE_SYNTHESIZE" {
				gotBroadcast = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for the force-synthesize broadcast")
		}
	}
}
