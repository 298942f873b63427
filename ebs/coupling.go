package ebs

// CouplingStrategy derives the LLM sampling temperature Propagation uses
// for child generation from the system's normalized temperature tau.
type CouplingStrategy interface {
	LLMTemperature(tau float64) float64
}

// AutoCoupling clips tau into [0,2] and uses it directly as the sampling
// temperature, so child diversity tracks how flat the value landscape is.
type AutoCoupling struct{}

// LLMTemperature implements CouplingStrategy.
func (AutoCoupling) LLMTemperature(tau float64) float64 {
	return ClipTemperature(tau)
}

// ManualCoupling ignores tau and always returns a fixed temperature.
type ManualCoupling struct {
	Temperature float64
}

// LLMTemperature implements CouplingStrategy.
func (m ManualCoupling) LLMTemperature(_ float64) float64 {
	return m.Temperature
}

// NewCouplingStrategy builds the CouplingStrategy named by cfg's
// TemperatureCoupling, defaulting to AutoCoupling for any unrecognized
// value.
func NewCouplingStrategy(cfg Config) CouplingStrategy {
	if cfg.TemperatureCoupling == CouplingManual {
		return ManualCoupling{Temperature: cfg.ManualLLMTemperature}
	}
	return AutoCoupling{}
}
