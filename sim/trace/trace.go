package trace

// TraceLevel controls the granularity of result recording.
type TraceLevel string

const (
	// TraceLevelNone disables recording.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelYears records one YearRecord per solved year.
	TraceLevelYears TraceLevel = "years"
	// TraceLevelSubSteps additionally records shares after every sub-step.
	TraceLevelSubSteps TraceLevel = "substeps"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelYears:    true,
	TraceLevelSubSteps: true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// RunTrace collects records during a simulation run.
type RunTrace struct {
	Config   TraceConfig
	Years    []YearRecord
	SubSteps []SubStepRecord
}

// NewRunTrace creates a RunTrace ready for recording.
func NewRunTrace(config TraceConfig) *RunTrace {
	return &RunTrace{
		Config:   config,
		Years:    make([]YearRecord, 0),
		SubSteps: make([]SubStepRecord, 0),
	}
}

// RecordYear appends a year record unless recording is off.
func (rt *RunTrace) RecordYear(record YearRecord) {
	if rt.Config.Level == TraceLevelNone || rt.Config.Level == "" {
		return
	}
	rt.Years = append(rt.Years, record)
}

// RecordSubStep appends a sub-step record when sub-step recording is on.
func (rt *RunTrace) RecordSubStep(record SubStepRecord) {
	if rt.Config.Level != TraceLevelSubSteps {
		return
	}
	rt.SubSteps = append(rt.SubSteps, record)
}

// WantsSubSteps reports whether sub-step records are kept.
func (rt *RunTrace) WantsSubSteps() bool {
	return rt != nil && rt.Config.Level == TraceLevelSubSteps
}
