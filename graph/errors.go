// Package graph provides the core graph execution engine and runtime for the evolutionary beam search orchestrator.
package graph

import "errors"

// ErrMaxStepsExceeded indicates that the graph execution reached the maximum
// allowed step count without completing. This prevents infinite loops and
// runaway executions.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrBackpressure indicates that downstream processing cannot keep up with
// the current execution rate. This typically occurs when an emitter or
// external sink cannot absorb events fast enough.
var ErrBackpressure = errors.New("downstream backpressure exceeded threshold")

// ErrInvalidRetryPolicy indicates a RetryPolicy failed validation (see
// RetryPolicy.Validate).
var ErrInvalidRetryPolicy = errors.New("invalid retry policy configuration")

// ErrNodeNotFound indicates that a route referenced a node ID that was
// never registered with the Engine.
var ErrNodeNotFound = errors.New("referenced node is not registered")

// ErrNoStartNode indicates that Run was called before a start node was
// configured via StartAt.
var ErrNoStartNode = errors.New("no start node configured")

// ErrAlreadyRunning indicates an operation that requires exclusive control
// of a run (e.g. a supervisor's Start) was attempted while one was already
// in flight.
var ErrAlreadyRunning = errors.New("a run is already in progress")
