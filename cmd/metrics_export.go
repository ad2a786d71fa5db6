package cmd

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// writeMetricsTextfile exports the run's solver counters, final shares and yearly
// emissions in Prometheus text format, for node_exporter's textfile collector. Each
// call uses a private registry, so repeated runs in one process do not collide.
func writeMetricsTextfile(path string, r *RunResults) error {
	reg := prometheus.NewRegistry()

	events := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ftt_solver_events",
		Help: "Solver counters of the last run, by event.",
	}, []string{"run_id", "sector", "event"})
	shares := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ftt_final_share_mean",
		Help: "Mean share across regions in the final simulated year.",
	}, []string{"run_id", "sector", "tech"})
	emissions := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ftt_emissions",
		Help: "Total emissions by simulated year.",
	}, []string{"run_id", "sector", "year"})
	reg.MustRegister(events, shares, emissions)

	m := r.Metrics
	for event, v := range map[string]int{
		"years_solved":         m.YearsSolved,
		"sub_steps":            m.SubSteps,
		"skipped_region_steps": m.SkippedRegionSteps,
		"valve_engagements":    m.ValveEngagements,
		"regulation_overrides": m.RegulationOverrides,
		"mandate_adjustments":  m.MandateAdjustments,
		"invariant_violations": m.InvariantViolations,
	} {
		events.WithLabelValues(r.RunID, r.Sector, event).Set(float64(v))
	}
	if r.Summary != nil {
		for tech, st := range r.Summary.FinalShares {
			shares.WithLabelValues(r.RunID, r.Sector, tech).Set(st.Mean)
		}
		for year, v := range r.Summary.EmissionsByYear {
			emissions.WithLabelValues(r.RunID, r.Sector, strconv.Itoa(year)).Set(v)
		}
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
