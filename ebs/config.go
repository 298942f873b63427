package ebs

import "os"

// TemperatureCoupling selects how the Propagation node derives the LLM
// sampling temperature for child generation from the system's normalized
// temperature.
type TemperatureCoupling string

const (
	// CouplingAuto clips the normalized temperature into [0,2] and uses it
	// directly as the LLM sampling temperature.
	CouplingAuto TemperatureCoupling = "auto"

	// CouplingManual ignores the normalized temperature and always uses
	// Config.ManualLLMTemperature.
	CouplingManual TemperatureCoupling = "manual"
)

// Config collects every tunable of the evolutionary beam search loop.
// Construct one with NewConfig and zero or more Option values; every field
// has a documented default so callers only need to override what they
// care about.
//
// Example:
//
//	cfg := ebs.NewConfig(
//	    ebs.WithMaxIterations(5),
//	    ebs.WithTotalChildBudget(8),
//	)
type Config struct {
	// MaxIterations is the hard cap on Evolution visits per run.
	MaxIterations int

	// EntropyChangeThreshold is the relative spatial-entropy change below
	// which the convergence decider ends the run.
	EntropyChangeThreshold float64

	// TotalChildBudget is the total number of children distributed across
	// all active strategies per Evolution visit, via Boltzmann allocation.
	TotalChildBudget int

	// TMax normalizes effective temperature into NormalizedTemperature.
	TMax float64

	// CExplore scales the UCB exploration bonus.
	CExplore float64

	// BeamWidth is a legacy hard ceiling applied to a single strategy's
	// ChildQuota after Boltzmann allocation has already run. 0 disables
	// the ceiling.
	BeamWidth int

	// MaxResearchIterations bounds the Researcher's self-reflective loop.
	MaxResearchIterations int

	// DistillThreshold is the chars/4 token estimate that triggers the
	// Judge Distiller.
	DistillThreshold int

	// TemperatureCoupling selects how Propagation derives its sampling
	// temperature from NormalizedTemperature.
	TemperatureCoupling TemperatureCoupling

	// ManualLLMTemperature is used when TemperatureCoupling is
	// CouplingManual.
	ManualLLMTemperature float64

	// ChildrenPerParent is carried in the configuration record; no node in
	// this module reads it, so a strategy without a ChildQuota gets no
	// fallback child count from it.
	ChildrenPerParent int

	// ThinkingLevel and ThinkingBudget are carried in the configuration
	// record; no node or Inference Service adapter in this module reads
	// them or passes them to a provider.
	ThinkingLevel  string
	ThinkingBudget int

	// HistoryRetention bounds RunState.History to its N most recent
	// entries. Carried from the original per-thread context manager's
	// CONTEXT_HISTORY_LIMIT.
	HistoryRetention int

	// UseMockAgents routes every Inference Service call through
	// model.MockChatModel instead of a live provider, so a full run can be
	// exercised without API keys.
	UseMockAgents bool

	// MaxSteps is the Graph Runtime's recursion cap (Options.MaxSteps).
	// supervisor.New builds its engine with the NewConfig default; the
	// MaxSteps of the Config passed to Supervisor.Start does not change
	// that engine's cap.
	MaxSteps int

	// KBMySQLDSN, when non-empty, configures the Knowledge Base's optional
	// secondary MySQL search index.
	KBMySQLDSN string

	// MaxConcurrentCalls bounds the worker pool used for embedding calls
	// inside Evolution. The Executor runs its decisions one at a time and
	// does not read it.
	MaxConcurrentCalls int
}

// Option configures a Config.
type Option func(*Config)

// NewConfig builds a Config starting from the documented defaults and
// applying opts in order.
func NewConfig(opts ...Option) Config {
	cfg := Config{
		MaxIterations:          10,
		EntropyChangeThreshold: 0.05,
		TotalChildBudget:       6,
		TMax:                   2.0,
		CExplore:               1.0,
		BeamWidth:              3,
		MaxResearchIterations:  3,
		DistillThreshold:       4000,
		TemperatureCoupling:    CouplingAuto,
		ManualLLMTemperature:   1.0,
		ChildrenPerParent:      2,
		ThinkingLevel:          "HIGH",
		ThinkingBudget:         1024,
		HistoryRetention:       envInt("CONTEXT_HISTORY_LIMIT", 50),
		UseMockAgents:          envBool("USE_MOCK_AGENTS", false),
		MaxSteps:               75,
		KBMySQLDSN:             "",
		MaxConcurrentCalls:     4,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True":
		return true
	case "0", "false", "FALSE", "False":
		return false
	default:
		return def
	}
}

// WithMaxIterations overrides Config.MaxIterations.
func WithMaxIterations(n int) Option {
	return func(c *Config) { c.MaxIterations = n }
}

// WithEntropyChangeThreshold overrides Config.EntropyChangeThreshold.
func WithEntropyChangeThreshold(t float64) Option {
	return func(c *Config) { c.EntropyChangeThreshold = t }
}

// WithTotalChildBudget overrides Config.TotalChildBudget.
func WithTotalChildBudget(n int) Option {
	return func(c *Config) { c.TotalChildBudget = n }
}

// WithTMax overrides Config.TMax.
func WithTMax(t float64) Option {
	return func(c *Config) { c.TMax = t }
}

// WithCExplore overrides Config.CExplore.
func WithCExplore(c float64) Option {
	return func(cfg *Config) { cfg.CExplore = c }
}

// WithBeamWidth overrides Config.BeamWidth. Pass 0 to disable the ceiling.
func WithBeamWidth(n int) Option {
	return func(c *Config) { c.BeamWidth = n }
}

// WithMaxResearchIterations overrides Config.MaxResearchIterations.
func WithMaxResearchIterations(n int) Option {
	return func(c *Config) { c.MaxResearchIterations = n }
}

// WithDistillThreshold overrides Config.DistillThreshold.
func WithDistillThreshold(n int) Option {
	return func(c *Config) { c.DistillThreshold = n }
}

// WithTemperatureCoupling overrides Config.TemperatureCoupling.
func WithTemperatureCoupling(mode TemperatureCoupling) Option {
	return func(c *Config) { c.TemperatureCoupling = mode }
}

// WithManualLLMTemperature overrides Config.ManualLLMTemperature.
func WithManualLLMTemperature(t float64) Option {
	return func(c *Config) { c.ManualLLMTemperature = t }
}

// WithChildrenPerParent overrides Config.ChildrenPerParent.
func WithChildrenPerParent(n int) Option {
	return func(c *Config) { c.ChildrenPerParent = n }
}

// WithThinking overrides Config.ThinkingLevel and Config.ThinkingBudget.
func WithThinking(level string, budget int) Option {
	return func(c *Config) {
		c.ThinkingLevel = level
		c.ThinkingBudget = budget
	}
}

// WithHistoryRetention overrides Config.HistoryRetention. 0 or negative
// disables truncation.
func WithHistoryRetention(n int) Option {
	return func(c *Config) { c.HistoryRetention = n }
}

// WithMockAgents overrides Config.UseMockAgents.
func WithMockAgents(on bool) Option {
	return func(c *Config) { c.UseMockAgents = on }
}

// WithMaxSteps overrides Config.MaxSteps.
func WithMaxSteps(n int) Option {
	return func(c *Config) { c.MaxSteps = n }
}

// WithKBMySQLDSN configures the Knowledge Base's optional secondary MySQL
// search index.
func WithKBMySQLDSN(dsn string) Option {
	return func(c *Config) { c.KBMySQLDSN = dsn }
}

// WithMaxConcurrentCalls overrides Config.MaxConcurrentCalls.
func WithMaxConcurrentCalls(n int) Option {
	return func(c *Config) { c.MaxConcurrentCalls = n }
}

// ClipTemperature clamps t into [0, 2], the range CouplingAuto uses for the
// LLM sampling temperature.
func ClipTemperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 2 {
		return 2
	}
	return t
}
