// Package ebs defines the run state, strategy population, and configuration
// shared by every node in the evolutionary beam search graph.
package ebs

// Status is the lifecycle state of a Strategy within a run.
type Status string

const (
	// StatusActive strategies are eligible for judging, density estimation,
	// and child-budget allocation on the next Evolution visit.
	StatusActive Status = "active"

	// StatusExpanded strategies have already produced their children this
	// round (Propagation zeroes ChildQuota and sets this status on the
	// parent). Expanded strategies are never re-activated.
	StatusExpanded Status = "expanded"

	// StatusPruned strategies were dropped by a legacy hard-pruning path.
	// The current soft-pruning design (Boltzmann allocation) never assigns
	// this status itself; it is retained so a stored population can
	// round-trip values written by older tooling.
	StatusPruned Status = "pruned"

	// StatusPrunedSynthesized is terminal: the strategy was folded into a
	// final report by the Executor's Synthesize decision. No node may
	// re-activate a strategy in this status.
	StatusPrunedSynthesized Status = "pruned_synthesized"

	// StatusPrunedError strategies failed an irrecoverable step (most
	// commonly embedding failure during Evolution) and are excluded from
	// further scoring and allocation.
	StatusPrunedError Status = "pruned_error"

	// StatusCompleted marks a terminal, successful outcome outside the
	// synthesis path. No node in this module assigns it; IsTerminal counts
	// it as terminal.
	StatusCompleted Status = "completed"
)

// InformationNeedType classifies what kind of research a subtask requires.
type InformationNeedType string

const (
	InformationNeedFactual    InformationNeedType = "factual"
	InformationNeedProcedural InformationNeedType = "procedural"
	InformationNeedConceptual InformationNeedType = "conceptual"
)

// InformationNeed is one research gap identified by the TaskDecomposer.
type InformationNeed struct {
	Topic    string
	Type     InformationNeedType
	Priority int // 1 (low) through 5 (high)
}

// Strategy is the unit of evolutionary selection: one candidate direction
// through the problem space, carried through embedding, scoring, soft
// pruning, and propagation until it is either expanded, synthesized, or
// abandoned.
//
// Embedding is assigned once, on first evaluation in Evolution, and is
// immutable afterward. Density and LogDensity are recomputed every
// Evolution visit from the active population and are therefore mutable
// for the lifetime of the strategy.
type Strategy struct {
	ID         string
	Name       string
	Rationale  string
	Assumption string

	// Milestones is an opaque structured payload produced by a generator
	// and passed through untouched by every downstream node.
	Milestones interface{}

	// Embedding is nil until Evolution assigns it; immutable thereafter.
	Embedding []float64

	// Density and LogDensity are KDE outputs over the active population,
	// recomputed on every Evolution visit. Zero value means "not yet
	// computed" and is distinguished from a legitimately tiny density by
	// the Evolution node itself, not by the Strategy type.
	Density    float64
	LogDensity float64

	// Score is the Judge's scalar in [0,1]; 0 until judged.
	Score float64

	// UCBScore is the Evolution node's ranking scalar; undefined (left at
	// its zero value) for strategies that have never been scored.
	UCBScore float64

	// ChildQuota is the number of children this strategy may produce in
	// the next Propagation step. A positive quota requires Status to be
	// StatusActive.
	ChildQuota int

	Status Status

	// Trajectory is an ordered, append-only audit trail: every node that
	// touches this strategy appends one terse entry.
	Trajectory []string

	// ParentID is the id of the strategy this one was derived from, or
	// "" for a root strategy produced by StrategyGenerator.
	ParentID string

	// PrunedAtReportVersion is set when a Synthesize decision retires
	// this strategy; 0 until then.
	PrunedAtReportVersion int
}

// NewStrategy constructs a root Strategy in StatusActive with an initial
// trajectory entry, as produced by the StrategyGenerator node.
func NewStrategy(id, name, rationale, assumption string, milestones interface{}) *Strategy {
	return &Strategy{
		ID:         id,
		Name:       name,
		Rationale:  rationale,
		Assumption: assumption,
		Milestones: milestones,
		Status:     StatusActive,
		Trajectory: []string{"[StrategyGenerator] Initial generation"},
	}
}

// NewChildStrategy constructs a Strategy produced by Propagation from an
// active parent: it inherits Milestones, carries the parent's Trajectory
// forward with one new diff entry appended, and starts at StatusActive
// with no embedding or score.
func NewChildStrategy(id string, parent *Strategy, name, rationale, assumption, diff string) *Strategy {
	trajectory := make([]string, len(parent.Trajectory), len(parent.Trajectory)+1)
	copy(trajectory, parent.Trajectory)
	trajectory = append(trajectory, "[Propagation] "+diff)

	return &Strategy{
		ID:         id,
		Name:       name,
		Rationale:  rationale,
		Assumption: assumption,
		Milestones: parent.Milestones,
		Status:     StatusActive,
		Trajectory: trajectory,
		ParentID:   parent.ID,
	}
}

// IsActive reports whether s is eligible for judging and allocation.
func (s *Strategy) IsActive() bool {
	return s.Status == StatusActive
}

// IsTerminal reports whether s's Status is pruned_synthesized, pruned_error
// or completed. Expanded and pruned strategies are not counted as terminal.
func (s *Strategy) IsTerminal() bool {
	switch s.Status {
	case StatusPrunedSynthesized, StatusPrunedError, StatusCompleted:
		return true
	default:
		return false
	}
}
