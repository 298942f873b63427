// Package graph provides the core graph execution engine and runtime for the evolutionary beam search orchestrator.
package graph

import (
	"context"
	"time"

	"github.com/evobeam/ebs-go/graph/emit"
	"github.com/evobeam/ebs-go/graph/store"
)

// contextKey is a private type used for context value keys to avoid collisions
// with keys from other packages.
type contextKey string

// Context keys for propagating execution metadata to nodes.
//
// Example usage in a node:
//
//	func (n *MyNode) Run(ctx context.Context, state MyState) NodeResult[MyState] {
//	    runID := ctx.Value(RunIDKey).(string)
//	    step := ctx.Value(StepIDKey).(int)
//	    // Use metadata for logging, tracing, etc.
//	}
const (
	// RunIDKey is the context key for the unique run identifier.
	RunIDKey contextKey = "ebs.run_id"

	// StepIDKey is the context key for the current iteration number.
	StepIDKey contextKey = "ebs.step_id"

	// NodeIDKey is the context key for the current node identifier.
	NodeIDKey contextKey = "ebs.node_id"
)

// Engine drives a single cooperative reasoning loop to completion: one node
// runs at a time, its delta is merged into the accumulated state, and the
// loop advances to the next node according to either the node's own routing
// decision or the first matching registered edge.
//
// There is no concurrent node execution, work-stealing, or replay machinery:
// the orchestration this Engine drives is a sequential control loop, not a
// scheduler. A single goroutine owns the state at every point in time, so
// reducers never need to resolve concurrent write conflicts.
//
// Type parameter S is the state type shared across the run.
//
// Example:
//
//	reducer := func(prev, delta RunState) RunState {
//	    if delta.Strategy != nil {
//	        prev.Strategy = delta.Strategy
//	    }
//	    prev.Iteration++
//	    return prev
//	}
//
//	st := store.NewMemStore[RunState]()
//	emitter := emit.NewLogEmitter(os.Stdout, false)
//
//	engine := graph.New(reducer, st, emitter, graph.WithMaxSteps(200))
//	engine.Add("decompose", decomposer)
//	engine.StartAt("decompose")
//
//	final, err := engine.Run(ctx, "run-001", RunState{Task: task})
type Engine[S any] struct {
	// reducer merges partial state updates deterministically
	reducer Reducer[S]

	// nodes maps node IDs to Node implementations
	nodes map[string]Node[S]

	// edges defines conditional transitions between nodes, evaluated in
	// registration order when a node doesn't set an explicit Route
	edges []Edge[S]

	// startNode is the entry point for execution
	startNode string

	// store persists run state after each step so a crashed supervisor can resume
	store store.Store[S]

	// emitter receives observability events
	emitter emit.Emitter

	// metrics collects Prometheus-compatible performance metrics.
	// Optional - if nil, metrics are not collected.
	metrics *PrometheusMetrics

	// costTracker tracks LLM API call costs and token usage.
	// Optional - if nil, cost tracking is disabled.
	costTracker *CostTracker

	// opts contains execution configuration
	opts Options
}

// Options configures Engine execution behavior.
//
// Zero values are valid - the Engine will use sensible defaults.
type Options struct {
	// MaxSteps limits the number of loop iterations to prevent a
	// misconfigured convergence criterion from looping forever.
	// If 0, no limit is enforced (use with caution).
	//
	// When MaxSteps is exceeded, Run() returns EngineError with code "MAX_STEPS_EXCEEDED".
	MaxSteps int

	// DefaultNodeTimeout bounds a single node invocation.
	// If 0, no per-node timeout is applied beyond the parent context.
	DefaultNodeTimeout time.Duration

	// RunWallClockBudget bounds the entire Run() call.
	// If 0, no budget is enforced beyond MaxSteps.
	RunWallClockBudget time.Duration

	// Metrics enables Prometheus metrics collection. If nil, metrics are not collected.
	Metrics *PrometheusMetrics

	// CostTracker enables LLM cost tracking with static pricing. If nil, disabled.
	CostTracker *CostTracker
}

// New creates a new Engine with the given configuration.
//
// Supports three configuration patterns:
//
// 1. Options struct:
//
//	engine := New(reducer, st, emitter, Options{MaxSteps: 200})
//
// 2. Functional options (recommended):
//
//	engine := New(
//	    reducer, st, emitter,
//	    WithMaxSteps(200),
//	    WithDefaultNodeTimeout(30*time.Second),
//	)
//
// 3. Mixed (Options struct + functional options, the latter win):
//
//	base := Options{MaxSteps: 200}
//	engine := New(reducer, st, emitter, base, WithMetrics(metrics))
//
// Parameters:
//   - reducer: Function to merge partial state updates (required for Run)
//   - st: Persistence backend for run state (required for Run)
//   - emitter: Observability event receiver (optional, can be nil)
//   - options: Configuration via Options struct or variadic Option functions
//
// The constructor does not validate all parameters to allow flexible
// initialization; validation occurs when Run() is called.
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, options ...interface{}) *Engine[S] {
	cfg := &engineConfig{opts: Options{}}

	for _, opt := range options {
		switch v := opt.(type) {
		case Options:
			cfg.opts = v
		case Option:
			_ = v(cfg)
		default:
			// ignore unknown types for forward compatibility
		}
	}

	return &Engine[S]{
		reducer:     reducer,
		nodes:       make(map[string]Node[S]),
		edges:       make([]Edge[S], 0),
		store:       st,
		emitter:     emitter,
		metrics:     cfg.opts.Metrics,
		costTracker: cfg.opts.CostTracker,
		opts:        cfg.opts,
	}
}

// Add registers a node in the graph.
//
// Nodes must be added before calling StartAt or Run. Node IDs must be
// unique within the graph.
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	if e == nil {
		return &EngineError{Message: "engine is nil", Code: "NIL_ENGINE"}
	}
	if nodeID == "" {
		return &EngineError{Message: "node ID cannot be empty"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil"}
	}
	if _, exists := e.nodes[nodeID]; exists {
		return &EngineError{Message: "duplicate node ID: " + nodeID, Code: "DUPLICATE_NODE"}
	}
	e.nodes[nodeID] = node
	return nil
}

// StartAt sets the entry point for execution.
//
// The node must have been registered via Add() before calling StartAt.
func (e *Engine[S]) StartAt(nodeID string) error {
	if e == nil {
		return &EngineError{Message: "engine is nil", Code: "NIL_ENGINE"}
	}
	if nodeID == "" {
		return &EngineError{Message: "start node ID cannot be empty"}
	}
	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{Message: "start node does not exist: " + nodeID, Code: "NODE_NOT_FOUND"}
	}
	e.startNode = nodeID
	return nil
}

// Connect creates an edge between two nodes.
//
// Edges are evaluated in registration order when a node doesn't set an
// explicit Route in its NodeResult:
//   - Unconditional: always traverse (predicate == nil)
//   - Conditional: only traverse if predicate(state) returns true
//
// Node existence is not validated (lazy validation) to allow flexible
// graph construction order.
func (e *Engine[S]) Connect(from, to string, predicate Predicate[S]) error {
	if e == nil {
		return &EngineError{Message: "engine is nil", Code: "NIL_ENGINE"}
	}
	if from == "" {
		return &EngineError{Message: "from node ID cannot be empty"}
	}
	if to == "" {
		return &EngineError{Message: "to node ID cannot be empty"}
	}
	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: predicate})
	return nil
}

// Run drives the graph from startNode to completion.
//
// Each iteration of the loop:
//  1. Checks MaxSteps and context cancellation/deadline
//  2. Looks up the current node
//  3. Invokes Node.Run, applying DefaultNodeTimeout if configured
//  4. Merges the returned delta into state via the reducer
//  5. Persists the merged state via the store
//  6. Emits node_start/node_end/error/routing_decision events
//  7. Determines the next node from the node's Route, falling back to
//     edge evaluation if Route is the zero value
//
// Returns the final state when a node returns Route.Terminal, or an error
// if validation fails, a node returns a non-nil Err, MaxSteps is exceeded,
// or the context is cancelled.
func (e *Engine[S]) Run(ctx context.Context, runID string, initial S) (S, error) {
	var zero S

	if e == nil {
		return zero, &EngineError{Message: "engine is nil", Code: "NIL_ENGINE"}
	}
	if e.reducer == nil {
		return zero, &EngineError{Message: "reducer is required", Code: "MISSING_REDUCER"}
	}
	if e.store == nil {
		return zero, &EngineError{Message: "store is required", Code: "MISSING_STORE"}
	}
	if e.startNode == "" {
		return zero, &EngineError{Message: "start node not set (call StartAt before Run)", Code: "NO_START_NODE"}
	}
	if _, exists := e.nodes[e.startNode]; !exists {
		return zero, &EngineError{Message: "start node does not exist: " + e.startNode, Code: "NODE_NOT_FOUND"}
	}

	if e.opts.RunWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunWallClockBudget)
		defer cancel()
	}

	currentState := initial
	currentNode := e.startNode
	step := 0

	for {
		step++

		if e.opts.MaxSteps > 0 && step > e.opts.MaxSteps {
			return zero, &EngineError{Message: "run exceeded MaxSteps limit", Code: "MAX_STEPS_EXCEEDED"}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		nodeImpl, exists := e.nodes[currentNode]
		if !exists {
			return zero, &EngineError{Message: "node not found during execution: " + currentNode, Code: "NODE_NOT_FOUND"}
		}

		if e.metrics != nil {
			e.metrics.IncrementNodeVisits(runID, currentNode)
			e.metrics.SetIteration(runID, step)
		}

		e.emitNodeStart(runID, currentNode, step-1)

		nodeCtx := ctx
		var cancelNode context.CancelFunc
		if e.opts.DefaultNodeTimeout > 0 {
			nodeCtx, cancelNode = context.WithTimeout(ctx, e.opts.DefaultNodeTimeout)
		}
		start := time.Now()
		nodeCtx = context.WithValue(nodeCtx, RunIDKey, runID)
		nodeCtx = context.WithValue(nodeCtx, StepIDKey, step)
		nodeCtx = context.WithValue(nodeCtx, NodeIDKey, currentNode)
		result := nodeImpl.Run(nodeCtx, currentState)
		if cancelNode != nil {
			cancelNode()
		}

		if e.metrics != nil {
			status := "success"
			if result.Err != nil {
				status = "error"
			}
			e.metrics.RecordStepLatency(runID, currentNode, time.Since(start), status)
		}

		if result.Err != nil {
			e.emitError(runID, currentNode, step-1, result.Err)
			return zero, result.Err
		}

		currentState = e.reducer(currentState, result.Delta)

		if err := e.store.SaveStep(ctx, runID, step, currentNode, currentState); err != nil {
			return zero, &EngineError{Message: "failed to save step: " + err.Error(), Code: "STORE_ERROR"}
		}

		e.emitNodeEnd(runID, currentNode, step-1, result.Delta)

		if result.Route.Terminal {
			e.emitRoutingDecision(runID, currentNode, step-1, map[string]interface{}{"terminal": true})
			return currentState, nil
		}

		if result.Route.To != "" {
			e.emitRoutingDecision(runID, currentNode, step-1, map[string]interface{}{"next_node": result.Route.To})
			currentNode = result.Route.To
			continue
		}

		nextNode := e.evaluateEdges(currentNode, currentState)
		if nextNode == "" {
			return zero, &EngineError{Message: "no valid route from node: " + currentNode, Code: "NO_ROUTE"}
		}

		e.emitRoutingDecision(runID, currentNode, step-1, map[string]interface{}{"next_node": nextNode, "via_edge": true})
		currentNode = nextNode
	}
}

// evaluateEdges finds the first matching edge from the given node.
//
// Edges are evaluated in registration order:
//  1. An edge with a nil predicate (unconditional) always matches
//  2. An edge with a non-nil predicate matches if predicate(state) is true
//
// Returns empty string if no edge matches.
func (e *Engine[S]) evaluateEdges(fromNode string, state S) string {
	for _, edge := range e.edges {
		if edge.From != fromNode {
			continue
		}
		if edge.When == nil || edge.When(state) {
			return edge.To
		}
	}
	return ""
}

func (e *Engine[S]) emitNodeStart(runID, nodeID string, step int) {
	if e.emitter != nil {
		e.emitter.Emit(emit.Event{RunID: runID, Step: step, NodeID: nodeID, Msg: "node_start"})
	}
}

func (e *Engine[S]) emitNodeEnd(runID, nodeID string, step int, delta S) {
	if e.emitter != nil {
		e.emitter.Emit(emit.Event{
			RunID: runID, Step: step, NodeID: nodeID, Msg: "node_end",
			Meta: map[string]interface{}{"delta": delta},
		})
	}
}

func (e *Engine[S]) emitError(runID, nodeID string, step int, err error) {
	if e.emitter != nil {
		e.emitter.Emit(emit.Event{
			RunID: runID, Step: step, NodeID: nodeID, Msg: "error",
			Meta: map[string]interface{}{"error": err.Error()},
		})
	}
}

func (e *Engine[S]) emitRoutingDecision(runID, nodeID string, step int, meta map[string]interface{}) {
	if e.emitter != nil {
		e.emitter.Emit(emit.Event{RunID: runID, Step: step, NodeID: nodeID, Msg: "routing_decision", Meta: meta})
	}
}

// EngineError represents an error from Engine operations.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
