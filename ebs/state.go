package ebs

// ResearchStatus reports whether the Researcher believes it has gathered
// enough grounded context to proceed to strategy generation.
type ResearchStatus string

const (
	ResearchSufficient   ResearchStatus = "sufficient"
	ResearchInsufficient ResearchStatus = "insufficient"
)

// CostSummary is the accumulated inference cost and token usage for a run,
// surfaced on terminal events.
type CostSummary struct {
	TotalCostUSD float64
	InputTokens  int64
	OutputTokens int64
	CallCount    int
}

// RunState is the single mutable record that flows through every node of
// the graph. Exactly one node mutates it per visit; the graph runtime
// never mutates it directly, only merges the Delta a node returns via
// Reduce.
type RunState struct {
	ProblemState string

	Subtasks         []string
	InformationNeeds []InformationNeed

	// Strategies is keyed by Strategy.ID so the population tree (recovered
	// through ParentID) never needs an owning back-pointer.
	Strategies map[string]*Strategy

	ResearchContext   string
	ResearchStatus    ResearchStatus
	ResearchIteration int

	JudgeContext string

	// ArchitectDecisions is the queue the ArchitectScheduler fills and the
	// Executor drains one entry at a time, each dispatched by concrete
	// type (RefineDecision, SynthesizeDecision, GenerateVariantDecision).
	ArchitectDecisions []Decision

	SpatialEntropy        float64
	PrevSpatialEntropy    float64
	HasPrevSpatialEntropy bool
	EffectiveTemperature  float64
	NormalizedTemperature float64

	Config Config

	// History is append-only, truncated to Config.HistoryRetention most
	// recent entries on every append.
	History []string

	IterationCount int
	ReportVersion  int

	FinalReport string

	CostSummary CostSummary
}

// NewRunState constructs the initial RunState a Simulation Supervisor
// hands to the graph runtime when a run starts.
func NewRunState(problem string, cfg Config) RunState {
	return RunState{
		ProblemState:   problem,
		Strategies:     make(map[string]*Strategy),
		ResearchStatus: ResearchInsufficient,
		Config:         cfg,
	}
}

// ActiveStrategies returns every strategy currently in StatusActive, in an
// unspecified but stable-within-a-call order.
func (s RunState) ActiveStrategies() []*Strategy {
	out := make([]*Strategy, 0, len(s.Strategies))
	for _, strat := range s.Strategies {
		if strat.IsActive() {
			out = append(out, strat)
		}
	}
	return out
}

// AppendHistory appends an entry and truncates to the configured retention
// window, dropping the oldest entries first. A zero or negative
// HistoryRetention disables truncation.
func (s RunState) AppendHistory(entry string) RunState {
	s.History = append(s.History, entry)
	limit := s.Config.HistoryRetention
	if limit > 0 && len(s.History) > limit {
		s.History = append([]string(nil), s.History[len(s.History)-limit:]...)
	}
	return s
}

// Reduce merges a node's partial-state delta into prev, per the merging
// rule: scalar fields overwrite, History concatenates then truncates, and
// Strategies is replaced wholesale by the node's view (nodes are
// responsible for carrying forward strategies they did not touch).
//
// Reduce is the Reducer[RunState] passed to graph.New.
func Reduce(prev RunState, delta RunState) RunState {
	next := prev

	if delta.ProblemState != "" {
		next.ProblemState = delta.ProblemState
	}
	if delta.Subtasks != nil {
		next.Subtasks = delta.Subtasks
	}
	if delta.InformationNeeds != nil {
		next.InformationNeeds = delta.InformationNeeds
	}
	if delta.Strategies != nil {
		next.Strategies = delta.Strategies
	}
	if delta.ResearchContext != "" {
		next.ResearchContext = delta.ResearchContext
	}
	if delta.ResearchStatus != "" {
		next.ResearchStatus = delta.ResearchStatus
	}
	if delta.ResearchIteration != 0 {
		next.ResearchIteration = delta.ResearchIteration
	}
	if delta.JudgeContext != "" {
		next.JudgeContext = delta.JudgeContext
	}
	if delta.ArchitectDecisions != nil {
		next.ArchitectDecisions = delta.ArchitectDecisions
	}
	if delta.HasPrevSpatialEntropy {
		next.PrevSpatialEntropy = delta.PrevSpatialEntropy
		next.HasPrevSpatialEntropy = true
	}
	if delta.SpatialEntropy != 0 {
		next.SpatialEntropy = delta.SpatialEntropy
	}
	if delta.EffectiveTemperature != 0 {
		next.EffectiveTemperature = delta.EffectiveTemperature
	}
	if delta.NormalizedTemperature != 0 {
		next.NormalizedTemperature = delta.NormalizedTemperature
	}
	if delta.IterationCount != 0 {
		next.IterationCount = delta.IterationCount
	}
	if delta.ReportVersion != 0 {
		next.ReportVersion = delta.ReportVersion
	}
	if delta.FinalReport != "" {
		next.FinalReport = delta.FinalReport
	}
	if delta.CostSummary.CallCount != 0 {
		next.CostSummary = delta.CostSummary
	}
	if len(delta.History) > 0 {
		merged := append(append([]string(nil), next.History...), delta.History...)
		next.History = merged
		limit := next.Config.HistoryRetention
		if limit > 0 && len(next.History) > limit {
			next.History = append([]string(nil), next.History[len(next.History)-limit:]...)
		}
	}

	return next
}
