package sim

import "fmt"

// HorizonConfig groups the year boundaries of a run.
type HorizonConfig struct {
	FirstYear       int // cold-start year
	LastHistoryYear int // last year solved from historical data (>= FirstYear)
	LastYear        int // last simulated year
}

// SolverConfig groups Year-Solver runtime parameters.
type SolverConfig struct {
	SubSteps      int  // sub-annual integration steps per year (must be > 0)
	Strict        bool // invariant violations become errors instead of warnings
	Workers       int  // regions integrated concurrently (<= 1 = sequential)
	TraceSubSteps bool // report every sub-step to the Recorder, not just years
	Integrator    Integrator
}

// NewHorizonConfig creates a HorizonConfig with all fields explicitly set.
func NewHorizonConfig(firstYear, lastHistoryYear, lastYear int) HorizonConfig {
	return HorizonConfig{
		FirstYear:       firstYear,
		LastHistoryYear: lastHistoryYear,
		LastYear:        lastYear,
	}
}

// NewSolverConfig creates a SolverConfig with all fields explicitly set.
func NewSolverConfig(subSteps int, strict bool, workers int, traceSubSteps bool) SolverConfig {
	return SolverConfig{
		SubSteps:      subSteps,
		Strict:        strict,
		Workers:       workers,
		TraceSubSteps: traceSubSteps,
	}
}

// Validate checks the year ordering.
func (h HorizonConfig) Validate() error {
	var problems []string
	if h.LastHistoryYear < h.FirstYear {
		problems = append(problems, fmt.Sprintf("last history year %d precedes first year %d", h.LastHistoryYear, h.FirstYear))
	}
	if h.LastYear < h.LastHistoryYear {
		problems = append(problems, fmt.Sprintf("last year %d precedes last history year %d", h.LastYear, h.LastHistoryYear))
	}
	if len(problems) > 0 {
		return &ConfigError{Component: "horizon", Problems: problems}
	}
	return nil
}

// Validate checks solver parameters.
func (c SolverConfig) Validate() error {
	var problems []string
	if c.SubSteps <= 0 {
		problems = append(problems, fmt.Sprintf("sub-steps must be > 0, got %d", c.SubSteps))
	}
	if c.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers must be >= 0, got %d", c.Workers))
	}
	switch c.Integrator {
	case IntegratorRK4, IntegratorEuler:
	default:
		problems = append(problems, fmt.Sprintf("unknown integrator %d", int(c.Integrator)))
	}
	if len(problems) > 0 {
		return &ConfigError{Component: "solver", Problems: problems}
	}
	return nil
}

// Phase is the lifecycle phase of a simulated year.
type Phase int

const (
	PhaseColdStart Phase = iota
	PhaseHistorical
	PhaseEndogenous
)

func (p Phase) String() string {
	switch p {
	case PhaseColdStart:
		return "cold-start"
	case PhaseHistorical:
		return "historical"
	case PhaseEndogenous:
		return "endogenous"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// PhaseOf returns the phase year falls in.
func (h HorizonConfig) PhaseOf(year int) Phase {
	switch {
	case year <= h.FirstYear:
		return PhaseColdStart
	case year <= h.LastHistoryYear:
		return PhaseHistorical
	default:
		return PhaseEndogenous
	}
}
