// Package graph provides the core graph execution engine and runtime for the evolutionary beam search orchestrator.
package graph

import "time"

// Option is a functional option for configuring an Engine.
//
// Functional options provide a clean, extensible API for engine configuration:
// - Chainable: engine := New(reducer, st, emitter, WithMaxSteps(200), WithMetrics(m)).
// - Self-documenting: Option names clearly describe their purpose.
// - Optional: Only specify the configuration you need.
//
// Example:
//
//	engine := graph.New(
//	    reducer,
//	    st,
//	    emitter,
//	    graph.WithMaxSteps(200),
//	    graph.WithDefaultNodeTimeout(30*time.Second),
//	)
type Option func(*engineConfig) error

// engineConfig is an internal struct used to collect options before applying them to an Engine.
type engineConfig struct {
	opts Options
}

// WithMaxSteps limits workflow execution to prevent infinite loops.
//
// Default: 0 (no limit, use with caution).
//
// The engine drives a single node at a time; every node visit counts as
// one step, so one pass of the cooperative reasoning loop (decompose →
// research → distill → generate → evaluate → evolve → propagate → schedule
// → execute) takes several steps. MaxSteps bounds how many node visits a
// run may make, independent of any convergence criteria evaluated inside
// the loop.
//
// When MaxSteps is exceeded, Run() returns EngineError with code "MAX_STEPS_EXCEEDED".
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.MaxSteps = n
		return nil
	}
}

// WithDefaultNodeTimeout sets the maximum execution time for a single node
// invocation (one call to Node.Run).
//
// Default: 0 (no per-node timeout beyond the parent context).
//
// Prevents a single slow inference call from blocking progress indefinitely.
// When exceeded, node execution is cancelled and its context carries
// context.DeadlineExceeded.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.DefaultNodeTimeout = d
		return nil
	}
}

// WithRunWallClockBudget sets the maximum total execution time for Run().
//
// Default: 0 (disabled; workflow runs until completion, convergence, or MaxSteps).
//
// Use this to enforce a hard deadline across an entire simulation run,
// independent of step count, so a run with expensive per-step inference
// calls cannot exceed an operator-set time budget.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.RunWallClockBudget = d
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine := graph.New(reducer, st, emitter, graph.WithMetrics(metrics))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Metrics = metrics
		return nil
	}
}

// WithCostTracker enables LLM cost tracking with static pricing.
//
// Example:
//
//	tracker := graph.NewCostTracker("run-123", "USD")
//	engine := graph.New(reducer, st, emitter, graph.WithCostTracker(tracker))
func WithCostTracker(tracker *CostTracker) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.CostTracker = tracker
		return nil
	}
}
