package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ftt-sim/ftt-sim/sim"
	"github.com/ftt-sim/ftt-sim/sim/trace"
)

// RunResults is the JSON document written by `run --results`.
type RunResults struct {
	RunID    string                `json:"run_id"`
	Scenario string                `json:"scenario"`
	Sector   string                `json:"sector"`
	Regions  []string              `json:"regions"`
	Techs    []string              `json:"techs"`
	WallTime string                `json:"wall_time,omitempty"`
	Summary  *trace.RunSummary     `json:"summary"`
	Metrics  *sim.Metrics          `json:"metrics"`
	Years    []trace.YearRecord    `json:"years"`
	SubSteps []trace.SubStepRecord `json:"sub_steps,omitempty"`
}

// Save writes the results as indented JSON.
func (r *RunResults) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	logrus.Debugf("Successfully wrote results to '%s'", path)
	return nil
}
