package supervisor

import (
	"context"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/emit"
)

// Emit implements emit.Emitter. The Supervisor is wired as the graph
// engine's own emitter, so it sees every node_start/node_end/error event
// directly and can translate them into the streaming broadcast protocol:
// agent_start precedes state_update precedes agent_progress, all for the
// same node boundary.
func (s *Supervisor) Emit(event emit.Event) {
	if s.base != nil {
		s.base.Emit(event)
	}

	switch event.Msg {
	case "node_start":
		if event.NodeID != s.lastAgent {
			s.lastAgent = event.NodeID
			s.broadcast(Message{Type: "agent_start", Data: event.NodeID})
		}
	case "node_end":
		delta, _ := event.Meta["delta"].(ebs.RunState)
		s.broadcast(Message{Type: "state_update", Data: delta})
		s.broadcast(Message{Type: "agent_progress", Data: map[string]interface{}{
			"agent":  event.NodeID,
			"detail": tailOf(delta.History, 1),
		}})
	case "error":
		s.broadcast(Message{Type: "agent_progress", Data: map[string]interface{}{
			"agent":   event.NodeID,
			"message": event.Meta["error"],
		}})
	}
}

// EmitBatch implements emit.Emitter by emitting each event in order.
func (s *Supervisor) EmitBatch(ctx context.Context, events []emit.Event) error {
	for _, e := range events {
		s.Emit(e)
	}
	return nil
}

// Flush implements emit.Emitter, forwarding to the base emitter if any.
func (s *Supervisor) Flush(ctx context.Context) error {
	if s.base != nil {
		return s.base.Flush(ctx)
	}
	return nil
}

// tailOf returns the last n entries of history, or all of it if shorter.
func tailOf(history []string, n int) []string {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
