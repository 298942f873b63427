// Package supervisor implements the Simulation Supervisor: the external
// streaming API that owns one active evolutionary search run at a time,
// broadcasts its progress to any number of subscribers, and arbitrates
// human-in-the-loop requests and operator-forced synthesis.
package supervisor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/emit"
	"github.com/evobeam/ebs-go/graph/store"
	"github.com/evobeam/ebs-go/nodes"
)

// ErrAlreadyRunning is returned by Start when a run is already active.
var ErrAlreadyRunning = graph.ErrAlreadyRunning

// Message is one broadcast unit delivered to every subscriber.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// subscriberBuffer bounds how far behind a slow subscriber may fall before
// it is dropped rather than blocking the run.
const subscriberBuffer = 64

// Supervisor drives a single graph.Engine run, translating its node-visit
// events into the broadcast protocol subscribers consume, and arbitrates
// human-in-the-loop requests raised mid-run.
type Supervisor struct {
	engine *graph.Engine[ebs.RunState]
	base   emit.Emitter

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	subs       map[int]chan Message
	nextSubID  int
	lastAgent  string
	pending    map[string]*hilRequest
	forceQueue []string

	// tracked is deps.Chat, when it is a *nodes.TrackedChatModel, so Start
	// can surface its accumulated cost in the terminal broadcast.
	tracked *nodes.TrackedChatModel
}

// New constructs a Supervisor wired to run the full evolutionary search
// graph. baseEmitter receives every raw engine event for logging/tracing
// (e.g. an emit.LogEmitter or emit.OTelEmitter); it may be nil. The
// engine's step cap is the default Config.MaxSteps from ebs.NewConfig.
func New(deps nodes.Deps, st store.Store[ebs.RunState], baseEmitter emit.Emitter) (*Supervisor, error) {
	s := &Supervisor{
		base:    baseEmitter,
		subs:    make(map[int]chan Message),
		pending: make(map[string]*hilRequest),
	}

	deps.ForceSynthesize = s.drainForceSynthesize
	if tc, ok := deps.Chat.(*nodes.TrackedChatModel); ok {
		s.tracked = tc
	}

	engine := graph.New[ebs.RunState](ebs.Reduce, st, s, graph.WithMaxSteps(ebs.NewConfig().MaxSteps))
	if err := nodes.Graph(engine, deps); err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// Start begins a new run over problem, rejecting if one is already active.
// The graph executes in its own goroutine; Start returns immediately after
// broadcasting {"status","started"}.
func (s *Supervisor) Start(ctx context.Context, problem string, cfg ebs.Config) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.lastAgent = ""
	s.mu.Unlock()

	runID := newID("run")
	initial := ebs.NewRunState(problem, cfg)

	go func() {
		final, err := s.engine.Run(runCtx, runID, initial)

		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()

		s.broadcast(Message{Type: "agent_complete", Data: s.lastAgent})
		if s.tracked != nil {
			s.broadcast(Message{Type: "cost_summary", Data: s.tracked.Snapshot()})
		}
		if err != nil {
			s.broadcast(Message{Type: "status", Data: "stopped"})
			return
		}
		s.broadcast(Message{Type: "status", Data: "completed"})
		if final.FinalReport != "" {
			s.broadcast(Message{Type: "final_report", Data: final.FinalReport})
		}
	}()

	s.broadcast(Message{Type: "status", Data: "started"})
	return nil
}

// Stop cancels the active run, if any. The graph goroutine returns at its
// next suspension point; Stop itself does not block on that.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Subscribe registers a new subscriber and returns its channel and an id
// for later Unsubscribe. The channel is buffered; a subscriber that falls
// too far behind is dropped rather than blocking the run.
func (s *Supervisor) Subscribe() (int, <-chan Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Message, subscriberBuffer)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Supervisor) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// broadcast fans a message out to every subscriber in parallel. A
// subscriber whose buffer is full is logged (via the base emitter, if any)
// and dropped; it never blocks delivery to the others.
func (s *Supervisor) broadcast(msg Message) {
	s.mu.Lock()
	targets := make(map[int]chan Message, len(s.subs))
	for id, ch := range s.subs {
		targets[id] = ch
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for id, ch := range targets {
		wg.Add(1)
		go func(id int, ch chan Message) {
			defer wg.Done()
			select {
			case ch <- msg:
			default:
				s.dropSubscriber(id)
			}
		}(id, ch)
	}
	wg.Wait()
}

func (s *Supervisor) dropSubscriber(id int) {
	s.mu.Lock()
	ch, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
	}
	s.mu.Unlock()

	if ok {
		close(ch)
		if s.base != nil {
			s.base.Emit(emit.Event{Msg: "subscriber_dropped", Meta: map[string]interface{}{"subscriber_id": id}})
		}
	}
}

func newID(prefix string) string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return prefix + "-" + hex.EncodeToString(buf[:])
}
