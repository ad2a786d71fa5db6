package sim

import (
	"fmt"
	"sort"

	"github.com/ftt-sim/ftt-sim/sim/cost"
)

// CapacityModel selects how demand maps onto capacity.
type CapacityModel string

const (
	// CapacityFromLoadFactor distributes demanded output over technologies by share and
	// load factor, then derives capacity from generation (power).
	CapacityFromLoadFactor CapacityModel = "load-factor"
	// CapacityFleet treats demand as the segment's total stock; capacity is share×stock (vehicles, boilers).
	CapacityFleet CapacityModel = "fleet"
)

// DefaultShareTolerance is the absolute tolerance of the per-region share sum check.
const DefaultShareTolerance = 1e-6

// SectorConfig holds everything that differs between sector models.
type SectorConfig struct {
	Name                string
	Segments            int
	CapacityModel       CapacityModel
	ActivityPerCapacity float64 // output per unit capacity per unit load factor per year
	TimeScale           float64 // divides the integrated share change
	Schedule            cost.Schedule
	Transform           cost.Transform
	ExogenousMode       ExogenousMode
	ValveFraction       float64
	ValveLifetime       float64
	Spillover           SpilloverForm
	LearningColumns     []cost.Attribute
	ExcludeExogenous    bool // technologies with an exogenous instruction do not substitute
	Mandate             MandateConfig
	ShareTolerance      float64
}

// TotalShare is the per-region sum of shares: one per segment.
func (c SectorConfig) TotalShare() float64 { return float64(c.Segments) }

// CostOptions returns the cost calculator options of the sector.
func (c SectorConfig) CostOptions() cost.Options {
	return cost.Options{
		Schedule:            c.Schedule,
		Transform:           c.Transform,
		ActivityPerCapacity: c.ActivityPerCapacity,
	}
}

// Validate checks internal consistency. techs is the sector's technology count.
func (c SectorConfig) Validate(techs int) error {
	var problems []string
	if c.Name == "" {
		problems = append(problems, "name is empty")
	}
	if c.Segments < 1 {
		problems = append(problems, fmt.Sprintf("segments must be >= 1, got %d", c.Segments))
	} else if techs%c.Segments != 0 {
		problems = append(problems, fmt.Sprintf("%d technologies do not divide into %d segments", techs, c.Segments))
	}
	switch c.CapacityModel {
	case CapacityFromLoadFactor:
		if c.Segments != 1 {
			problems = append(problems, "load-factor capacity model requires exactly one segment")
		}
	case CapacityFleet:
	default:
		problems = append(problems, fmt.Sprintf("unknown capacity model %q", c.CapacityModel))
	}
	if c.ActivityPerCapacity <= 0 {
		problems = append(problems, fmt.Sprintf("activity per capacity must be > 0, got %v", c.ActivityPerCapacity))
	}
	if c.TimeScale <= 0 {
		problems = append(problems, fmt.Sprintf("time scale must be > 0, got %v", c.TimeScale))
	}
	if c.ValveFraction < 0 || c.ValveLifetime <= 0 {
		problems = append(problems, fmt.Sprintf("valve fraction %v / lifetime %v out of range", c.ValveFraction, c.ValveLifetime))
	}
	switch c.Spillover {
	case SpilloverLinear, SpilloverCapped:
	default:
		problems = append(problems, fmt.Sprintf("unknown spillover form %q", c.Spillover))
	}
	for _, a := range c.LearningColumns {
		if a < 0 || a >= cost.NumAttributes {
			problems = append(problems, fmt.Sprintf("learning column %d out of range", int(a)))
		}
	}
	if c.ShareTolerance <= 0 {
		problems = append(problems, fmt.Sprintf("share tolerance must be > 0, got %v", c.ShareTolerance))
	}
	if err := c.Mandate.Validate(techs); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Mandate.Enabled && c.Mandate.Mode == MandateExogenousSales && c.ExogenousMode != ExogenousAdditions {
		problems = append(problems, "exogenous-sales mandate requires the additions exogenous mode")
	}
	if len(problems) > 0 {
		return &ConfigError{Component: "sector " + c.Name, Problems: problems}
	}
	return nil
}

var sectorPresets = map[string]func() SectorConfig{
	"power": func() SectorConfig {
		return SectorConfig{
			Name:                "power",
			Segments:            1,
			CapacityModel:       CapacityFromLoadFactor,
			ActivityPerCapacity: 8.766, // GWh per MW-year at full load
			TimeScale:           10,
			Schedule:            cost.ScheduleBuildTime,
			Transform:           cost.TransformLinear,
			ExogenousMode:       ExogenousCapacityTarget,
			ValveFraction:       0.95,
			ValveLifetime:       1,
			Spillover:           SpilloverCapped,
			LearningColumns:     []cost.Attribute{cost.InvestmentCost, cost.InvestmentStd, cost.OMCost, cost.OMStd},
			ExcludeExogenous:    true,
			ShareTolerance:      DefaultShareTolerance,
		}
	},
	"freight": func() SectorConfig {
		return SectorConfig{
			Name:                "freight",
			Segments:            5,
			CapacityModel:       CapacityFleet,
			ActivityPerCapacity: 1,
			TimeScale:           1,
			Schedule:            cost.ScheduleUpfront,
			Transform:           cost.TransformLogNormal,
			ExogenousMode:       ExogenousAdditions,
			ValveFraction:       0.8,
			ValveLifetime:       15,
			Spillover:           SpilloverLinear,
			LearningColumns:     []cost.Attribute{cost.InvestmentCost, cost.InvestmentStd},
			Mandate: MandateConfig{
				StartYear: 2025, EndYear: 2041, Ceiling: 1,
				Ramp: RampLinear, AfterEnd: AfterEndOff,
			},
			ShareTolerance: DefaultShareTolerance,
		}
	},
	"transport": func() SectorConfig {
		return SectorConfig{
			Name:                "transport",
			Segments:            1,
			CapacityModel:       CapacityFleet,
			ActivityPerCapacity: 1,
			TimeScale:           1,
			Schedule:            cost.ScheduleUpfront,
			Transform:           cost.TransformLogNormal,
			ExogenousMode:       ExogenousAdditions,
			ValveFraction:       0.8,
			ValveLifetime:       15,
			Spillover:           SpilloverLinear,
			LearningColumns:     []cost.Attribute{cost.InvestmentCost, cost.InvestmentStd},
			Mandate: MandateConfig{
				StartYear: 2025, EndYear: 2036, Ceiling: 1,
				Ramp: RampLinear, AfterEnd: AfterEndOff,
			},
			ShareTolerance: DefaultShareTolerance,
		}
	},
	"heat": func() SectorConfig {
		return SectorConfig{
			Name:                "heat",
			Segments:            1,
			CapacityModel:       CapacityFleet,
			ActivityPerCapacity: 1,
			TimeScale:           1,
			Schedule:            cost.ScheduleUpfront,
			Transform:           cost.TransformLinear,
			ExogenousMode:       ExogenousAdditions,
			ValveFraction:       0.8,
			ValveLifetime:       20,
			Spillover:           SpilloverLinear,
			LearningColumns:     []cost.Attribute{cost.InvestmentCost, cost.InvestmentStd},
			Mandate: MandateConfig{
				StartYear: 2025, EndYear: 2036, Ceiling: 1,
				Ramp: RampLinear, AfterEnd: AfterEndOff,
			},
			ShareTolerance: DefaultShareTolerance,
		}
	},
}

// SectorPreset returns a fresh copy of a named sector preset. The preset's mandate is
// disabled and has no green technologies; scenarios switch it on.
func SectorPreset(name string) (SectorConfig, error) {
	build, ok := sectorPresets[name]
	if !ok {
		return SectorConfig{}, fmt.Errorf("unknown sector preset %q; valid: %v", name, SectorPresetNames())
	}
	return build(), nil
}

// SectorPresetNames returns the preset names in sorted order.
func SectorPresetNames() []string {
	names := make([]string, 0, len(sectorPresets))
	for n := range sectorPresets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
