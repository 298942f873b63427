// Package store provides persistence implementations for run state.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested run ID or checkpoint ID does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistence for run state, so a crashed or restarted
// supervisor can resume a simulation from its last committed step rather
// than starting over.
//
// Implementations can use:
//   - In-memory storage (for testing, see memory.go).
//   - SQLite (for a single-process deployment, see sqlite.go).
//   - Relational databases, key-value stores, or object storage for larger deployments.
//
// Type parameter S is the state type to persist.
type Store[S any] interface {
	// SaveStep persists the state after an iteration of the reasoning loop.
	// Each step is identified by runID + iteration number.
	SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error

	// LoadLatest retrieves the most recently saved state for a given run.
	// Used to resume execution after a crash or restart.
	//
	// Returns ErrNotFound if runID has no saved steps.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// SaveCheckpoint creates a named snapshot of run state, e.g. for a
	// human reviewer to roll back to a prior iteration.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint retrieves a previously saved named checkpoint.
	//
	// Returns ErrNotFound if cpID doesn't exist.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)
}

// StepRecord represents a single iteration of the reasoning loop.
// Used internally by Store implementations to track step-by-step progression.
type StepRecord[S any] struct {
	// Step is the sequential iteration number (1-indexed).
	Step int

	// NodeID identifies which node produced this state.
	NodeID string

	// State is the run state after this step completed.
	State S
}

// Checkpoint represents a named snapshot of run state.
type Checkpoint[S any] struct {
	// ID is the unique checkpoint identifier.
	ID string

	// State is the snapshotted run state.
	State S

	// Step is the iteration number when this checkpoint was created.
	Step int
}
