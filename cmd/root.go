package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ftt-sim/ftt-sim/sim"
	"github.com/ftt-sim/ftt-sim/sim/scenario"
	"github.com/ftt-sim/ftt-sim/sim/trace"
)

var (
	// CLI flags for the run command
	scenarioPath    string // Scenario YAML file
	logLevel        string // Log verbosity level
	strict          bool   // Invariant violations abort the run
	workers         int    // Regions integrated concurrently
	subSteps        int    // Sub-steps per year; 0 keeps the scenario's value
	resultsPath     string // Results JSON file
	metricsTextfile string // Prometheus textfile for solver counters
	traceLevel      string // Trace verbosity: none, years, substeps
	printMetrics    bool   // Print solver counters to stdout
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ftt-sim",
	Short: "Technology diffusion simulator for sector market shares",
}

// runOptions is the resolved configuration of one run.
type runOptions struct {
	RunID        string
	ScenarioPath string
	Strict       bool
	Workers      int
	SubSteps     int
	TraceLevel   trace.TraceLevel
}

// runScenario loads, builds and solves a scenario over its whole horizon.
func runScenario(opts runOptions) (*RunResults, error) {
	log := logrus.WithField("run_id", opts.RunID)

	spec, err := scenario.Load(opts.ScenarioPath)
	if err != nil {
		return nil, err
	}
	if opts.SubSteps > 0 {
		spec.SubSteps = opts.SubSteps
	}
	in, err := spec.Build()
	if err != nil {
		return nil, err
	}

	level := opts.TraceLevel
	if level == "" {
		level = trace.TraceLevelYears
	}
	cfg := sim.NewSolverConfig(in.SubSteps, opts.Strict, opts.Workers, level == trace.TraceLevelSubSteps)
	solver, err := sim.NewSolver(in.Dims, in.Sector, in.Horizon, cfg, in.Data, in.Sub)
	if err != nil {
		return nil, err
	}
	rt := trace.NewRunTrace(trace.TraceConfig{Level: level})
	solver.Recorder = sim.NewTraceRecorder(rt, in.Dims)

	log.WithFields(logrus.Fields{
		"sector":    in.Sector.Name,
		"regions":   in.Dims.R(),
		"techs":     in.Dims.T(),
		"sub_steps": in.SubSteps,
	}).Infof("Starting simulation %d-%d (history to %d)", in.Horizon.FirstYear, in.Horizon.LastYear, in.Horizon.LastHistoryYear)

	if _, err := solver.Run(in.Initial, in.Horizon.FirstYear, in.Horizon.LastYear); err != nil {
		return nil, err
	}

	return &RunResults{
		RunID:    opts.RunID,
		Scenario: opts.ScenarioPath,
		Sector:   in.Sector.Name,
		Regions:  in.Dims.Regions,
		Techs:    in.Dims.Techs,
		Years:    rt.Years,
		SubSteps: rt.SubSteps,
		Summary:  trace.Summarize(rt),
		Metrics:  solver.Metrics,
	}, nil
}

// runCmd executes a scenario using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a sector scenario",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			logrus.Fatalf("Scenario file not provided. Exiting simulation.")
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level %q; valid: none, years, substeps", traceLevel)
		}
		if workers < 0 || subSteps < 0 {
			logrus.Fatalf("--workers and --sub-steps must be >= 0")
		}

		runID := uuid.NewString()
		startTime := time.Now()

		results, err := runScenario(runOptions{
			RunID:        runID,
			ScenarioPath: scenarioPath,
			Strict:       strict,
			Workers:      workers,
			SubSteps:     subSteps,
			TraceLevel:   trace.TraceLevel(traceLevel),
		})
		if err != nil {
			logrus.WithField("run_id", runID).Fatalf("Simulation failed: %v", err)
		}
		results.WallTime = time.Since(startTime).String()

		if printMetrics {
			results.Metrics.Print()
		}
		if resultsPath != "" {
			if err := results.Save(resultsPath); err != nil {
				logrus.Fatalf("Unable to write results: %v", err)
			}
		}
		if metricsTextfile != "" {
			if err := writeMetricsTextfile(metricsTextfile, results); err != nil {
				logrus.Fatalf("Unable to write metrics textfile: %v", err)
			}
		}

		logrus.WithField("run_id", runID).Infof("Simulation complete in %s; leading technology %s",
			results.WallTime, results.Summary.LeadingTech)
	},
}

// validateCmd checks a scenario without solving it.
var validateCmd = &cobra.Command{
	Use:   "validate <scenario.yaml>",
	Short: "Validate a scenario file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := scenario.Load(args[0])
		if err != nil {
			return err
		}
		if _, err := spec.Build(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (sector %s, %d regions, %d technologies, %d-%d)\n",
			args[0], spec.Sector.Preset, len(spec.Regions), len(spec.Technologies), spec.FirstYear, spec.LastYear)
		return nil
	},
}

// sectorsCmd lists the built-in sector presets.
var sectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "List sector presets",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, name := range sim.SectorPresetNames() {
			cfg, err := sim.SectorPreset(name)
			if err != nil {
				continue
			}
			cols := make([]string, len(cfg.LearningColumns))
			for i, c := range cfg.LearningColumns {
				cols[i] = c.String()
			}
			fmt.Fprintf(out, "%-10s segments=%d capacity=%s exogenous=%s spillover=%s learns=[%s]\n",
				name, cfg.Segments, cfg.CapacityModel, cfg.ExogenousMode, cfg.Spillover, strings.Join(cols, ","))
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML file")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().BoolVar(&strict, "strict", false, "Abort on the first invariant violation instead of logging it")
	runCmd.Flags().IntVar(&workers, "workers", 1, "Regions integrated concurrently within a sub-step")
	runCmd.Flags().IntVar(&subSteps, "sub-steps", 0, "Sub-annual integration steps per year (0 = scenario value)")
	runCmd.Flags().StringVar(&resultsPath, "results", "", "Write per-year results as JSON to this file")
	runCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write solver counters in Prometheus text format to this file")
	runCmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelYears), "Trace level (none, years, substeps)")
	runCmd.Flags().BoolVar(&printMetrics, "print-metrics", true, "Print solver counters at the end of the run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sectorsCmd)
}
