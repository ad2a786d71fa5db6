// Tracks run-wide solver counters such as skipped regions, valve engagements and
// mandate adjustments.

package sim

import "fmt"

// Metrics aggregates solver statistics for final reporting.
type Metrics struct {
	YearsSolved         int `json:"years_solved"`         // years completed, all phases
	SubSteps            int `json:"sub_steps"`            // endogenous sub-steps completed
	SkippedRegionSteps  int `json:"skipped_region_steps"` // region sub-steps skipped for zero demand
	ValveEngagements    int `json:"valve_engagements"`    // segment sub-steps where exogenous additions were scaled down
	RegulationOverrides int `json:"regulation_overrides"` // exogenous instructions dropped because they exceed a cap
	MandateAdjustments  int `json:"mandate_adjustments"`  // region-segment sub-steps changed by the mandate
	InvariantViolations int `json:"invariant_violations"` // violations logged (or returned in strict mode)
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Print displays the counters at the end of a run.
func (m *Metrics) Print() {
	fmt.Println("=== Solver Metrics ===")
	fmt.Printf("Years Solved         : %d\n", m.YearsSolved)
	fmt.Printf("Sub-steps            : %d\n", m.SubSteps)
	if m.SubSteps > 0 {
		fmt.Printf("Skipped Region Steps : %d\n", m.SkippedRegionSteps)
		fmt.Printf("Valve Engagements    : %d\n", m.ValveEngagements)
		fmt.Printf("Regulation Overrides : %d\n", m.RegulationOverrides)
		fmt.Printf("Mandate Adjustments  : %d\n", m.MandateAdjustments)
	}
	fmt.Printf("Invariant Violations : %d\n", m.InvariantViolations)
}
