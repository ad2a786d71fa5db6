// Package scenario loads a sector scenario from YAML and converts it into the typed
// inputs of the Year-Solver.
//
// Regulation and exogenous instructions are written with the conventional numeric
// sentinels (negative = none, 0 = banned); they are converted to tagged values here and
// nowhere else. In every region-keyed map the key "*" applies to all regions and an
// explicit region overrides it.
package scenario

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ftt-sim/ftt-sim/sim"
	"github.com/ftt-sim/ftt-sim/sim/cost"
)

// AllRegions is the wildcard key of region-keyed maps.
const AllRegions = "*"

// Spec is the top-level scenario configuration.
// Loaded from YAML via Load(path).
type Spec struct {
	Version         string                       `yaml:"version"`
	Sector          SectorSpec                   `yaml:"sector"`
	FirstYear       int                          `yaml:"first_year"`
	LastHistoryYear int                          `yaml:"last_history_year"`
	LastYear        int                          `yaml:"last_year"`
	SubSteps        int                          `yaml:"sub_steps"`
	Regions         []string                     `yaml:"regions"`
	Technologies    []TechSpec                   `yaml:"technologies"`
	CostTable       map[string]Costs             `yaml:"cost_table"`               // tech → attribute → value
	CostOverrides   map[string]map[string]Costs  `yaml:"cost_overrides,omitempty"` // region → tech → attribute → value
	Gamma           RegionTechValues             `yaml:"gamma,omitempty"`
	Experience      map[string]float64           `yaml:"experience,omitempty"`
	History         map[int]HistorySpec          `yaml:"history"`
	Demand          map[int]map[string][]float64 `yaml:"demand"` // year → region → per-segment demand
	Policies        map[int]PolicySpec           `yaml:"policies,omitempty"`
	Substitution    [][]float64                  `yaml:"substitution"`
	Spillover       [][]float64                  `yaml:"spillover"`
	Mandate         *MandateSpec                 `yaml:"mandate,omitempty"`
}

// Costs maps cost attribute names onto values.
type Costs map[string]float64

// RegionTechValues maps region → technology → value.
type RegionTechValues map[string]map[string]float64

// SectorSpec selects a sector preset and optionally overrides parts of it.
type SectorSpec struct {
	Preset    string           `yaml:"preset"`
	Overrides *SectorOverrides `yaml:"overrides,omitempty"`
}

// SectorOverrides replaces individual preset fields. Nil fields keep the preset value.
type SectorOverrides struct {
	Name             *string  `yaml:"name,omitempty"`
	Segments         *int     `yaml:"segments,omitempty"`
	TimeScale        *float64 `yaml:"time_scale,omitempty"`
	ValveFraction    *float64 `yaml:"valve_fraction,omitempty"`
	ValveLifetime    *float64 `yaml:"valve_lifetime,omitempty"`
	Spillover        *string  `yaml:"spillover,omitempty"`
	ExogenousMode    *string  `yaml:"exogenous_mode,omitempty"`
	LearningColumns  []string `yaml:"learning_columns,omitempty"`
	ExcludeExogenous *bool    `yaml:"exclude_exogenous,omitempty"`
	ShareTolerance   *float64 `yaml:"share_tolerance,omitempty"`
}

// TechSpec declares one technology.
type TechSpec struct {
	Name              string  `yaml:"name"`
	DefaultLoadFactor float64 `yaml:"default_load_factor"` // load factor when entering a region
}

// HistorySpec is one historical year: region → per-technology values.
type HistorySpec struct {
	Generation map[string][]float64 `yaml:"generation"`
	LoadFactor map[string][]float64 `yaml:"load_factor,omitempty"`
}

// PolicySpec is the policy in force from its year until the next one.
type PolicySpec struct {
	Regulation      RegionTechValues   `yaml:"regulation,omitempty"` // <0 none, 0 banned, >0 cap
	Exogenous       RegionTechValues   `yaml:"exogenous,omitempty"`  // <0 none
	Subsidy         RegionTechValues   `yaml:"subsidy,omitempty"`
	FuelTax         RegionTechValues   `yaml:"fuel_tax,omitempty"`
	FeedIn          RegionTechValues   `yaml:"feed_in,omitempty"`
	RegistrationTax RegionTechValues   `yaml:"registration_tax,omitempty"`
	ShareCeiling    RegionTechValues   `yaml:"share_ceiling,omitempty"`
	ShareFloor      RegionTechValues   `yaml:"share_floor,omitempty"`
	CarbonPrice     map[string]float64 `yaml:"carbon_price,omitempty"` // region → price
}

// MandateSpec configures the green technology mandate.
type MandateSpec struct {
	Enabled     bool     `yaml:"enabled"`
	Mode        string   `yaml:"mode,omitempty"` // sales-share (default) or exogenous-sales
	StartYear   int      `yaml:"start_year"`
	EndYear     int      `yaml:"end_year"`
	Ceiling     float64  `yaml:"ceiling"`
	Ramp        string   `yaml:"ramp"`
	AfterEnd    string   `yaml:"after_end"`
	Green       []string `yaml:"green"`                 // technology names
	Fossil      []string `yaml:"fossil,omitempty"`      // exogenous-sales only
	Replacement float64  `yaml:"replacement,omitempty"` // exogenous-sales only
}

// Load reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML scenario strictly.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if spec.Version == "" {
		spec.Version = "1"
	}
	return &spec, nil
}

// sector resolves the preset and applies overrides.
func (s *Spec) sector() (sim.SectorConfig, error) {
	cfg, err := sim.SectorPreset(s.Sector.Preset)
	if err != nil {
		return sim.SectorConfig{}, err
	}
	o := s.Sector.Overrides
	if o == nil {
		return cfg, nil
	}
	if o.Name != nil {
		cfg.Name = *o.Name
	}
	if o.Segments != nil {
		cfg.Segments = *o.Segments
	}
	if o.TimeScale != nil {
		cfg.TimeScale = *o.TimeScale
	}
	if o.ValveFraction != nil {
		cfg.ValveFraction = *o.ValveFraction
	}
	if o.ValveLifetime != nil {
		cfg.ValveLifetime = *o.ValveLifetime
	}
	if o.Spillover != nil {
		cfg.Spillover = sim.SpilloverForm(*o.Spillover)
	}
	if o.ExogenousMode != nil {
		mode, err := sim.ParseExogenousMode(*o.ExogenousMode)
		if err != nil {
			return sim.SectorConfig{}, err
		}
		cfg.ExogenousMode = mode
	}
	if o.LearningColumns != nil {
		cols := make([]cost.Attribute, 0, len(o.LearningColumns))
		for _, name := range o.LearningColumns {
			a, err := cost.ParseAttribute(name)
			if err != nil {
				return sim.SectorConfig{}, fmt.Errorf("learning_columns: %w", err)
			}
			cols = append(cols, a)
		}
		cfg.LearningColumns = cols
	}
	if o.ExcludeExogenous != nil {
		cfg.ExcludeExogenous = *o.ExcludeExogenous
	}
	if o.ShareTolerance != nil {
		cfg.ShareTolerance = *o.ShareTolerance
	}
	return cfg, nil
}

// Validate checks that all fields in the spec are consistent. Every problem is
// reported, not just the first.
func (s *Spec) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if s.Version != "1" {
		add("unsupported version %q; valid: 1", s.Version)
	}
	sector, err := s.sector()
	if err != nil {
		add("sector: %v", err)
	}
	if s.LastYear <= s.FirstYear {
		add("last_year %d must be after first_year %d", s.LastYear, s.FirstYear)
	}
	if s.LastHistoryYear < s.FirstYear || s.LastHistoryYear >= s.LastYear {
		add("last_history_year %d must be in [first_year, last_year)", s.LastHistoryYear)
	}
	if s.SubSteps <= 0 {
		add("sub_steps must be > 0, got %d", s.SubSteps)
	}

	regions := indexNames(s.Regions, "region", add)
	techNames := make([]string, len(s.Technologies))
	for i, t := range s.Technologies {
		techNames[i] = t.Name
		if t.DefaultLoadFactor < 0 || math.IsNaN(t.DefaultLoadFactor) {
			add("technology %q: default_load_factor must be >= 0", t.Name)
		}
	}
	techs := indexNames(techNames, "technology", add)
	if len(regions) == 0 || len(techs) == 0 {
		add("need at least one region and one technology")
		return &sim.ConfigError{Component: "scenario", Problems: problems}
	}
	if err == nil {
		sector.Mandate = s.mandateConfig(techs)
		if verr := sector.Validate(len(techs)); verr != nil {
			add("%v", verr)
		}
	}
	nTech := len(techs)

	for tech, costs := range s.CostTable {
		if _, ok := techs[tech]; !ok {
			add("cost_table: unknown technology %q", tech)
		}
		checkCosts("cost_table."+tech, costs, add)
	}
	for region, byTech := range s.CostOverrides {
		if _, ok := regions[region]; !ok {
			add("cost_overrides: unknown region %q", region)
		}
		for tech, costs := range byTech {
			if _, ok := techs[tech]; !ok {
				add("cost_overrides.%s: unknown technology %q", region, tech)
			}
			checkCosts("cost_overrides."+region+"."+tech, costs, add)
		}
	}
	checkRegionTech("gamma", s.Gamma, regions, techs, add)
	for tech := range s.Experience {
		if _, ok := techs[tech]; !ok {
			add("experience: unknown technology %q", tech)
		}
	}

	for y := s.FirstYear; y <= s.LastHistoryYear; y++ {
		h, ok := s.History[y]
		if !ok {
			add("history: missing year %d", y)
			continue
		}
		checkRows(fmt.Sprintf("history.%d.generation", y), h.Generation, regions, nTech, add)
		if h.LoadFactor != nil {
			checkRows(fmt.Sprintf("history.%d.load_factor", y), h.LoadFactor, regions, nTech, add)
		}
	}
	segments := sector.Segments
	if segments < 1 {
		segments = 1
	}
	for y := s.LastHistoryYear + 1; y <= s.LastYear; y++ {
		d, ok := s.Demand[y]
		if !ok {
			add("demand: missing year %d", y)
			continue
		}
		checkRows(fmt.Sprintf("demand.%d", y), d, regions, segments, add)
	}

	for y, p := range s.Policies {
		prefix := fmt.Sprintf("policies.%d", y)
		checkRegionTech(prefix+".regulation", p.Regulation, regions, techs, add)
		checkRegionTech(prefix+".exogenous", p.Exogenous, regions, techs, add)
		checkRegionTech(prefix+".subsidy", p.Subsidy, regions, techs, add)
		checkRegionTech(prefix+".fuel_tax", p.FuelTax, regions, techs, add)
		checkRegionTech(prefix+".feed_in", p.FeedIn, regions, techs, add)
		checkRegionTech(prefix+".registration_tax", p.RegistrationTax, regions, techs, add)
		checkRegionTech(prefix+".share_ceiling", p.ShareCeiling, regions, techs, add)
		checkRegionTech(prefix+".share_floor", p.ShareFloor, regions, techs, add)
		for region := range p.CarbonPrice {
			if _, ok := regions[region]; !ok && region != AllRegions {
				add("%s.carbon_price: unknown region %q", prefix, region)
			}
		}
	}

	checkSquare("substitution", s.Substitution, nTech, add)
	checkSquare("spillover", s.Spillover, nTech, add)

	if m := s.Mandate; m != nil {
		for _, g := range m.Green {
			if _, ok := techs[g]; !ok {
				add("mandate.green: unknown technology %q", g)
			}
		}
		for _, f := range m.Fossil {
			if _, ok := techs[f]; !ok {
				add("mandate.fossil: unknown technology %q", f)
			}
		}
	}

	if len(problems) > 0 {
		return &sim.ConfigError{Component: "scenario", Problems: problems}
	}
	return nil
}

// indexNames maps names onto positions, reporting empty and duplicate names.
func indexNames(names []string, kind string, add func(string, ...any)) map[string]int {
	out := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" || n == AllRegions {
			add("%s %d: invalid name %q", kind, i, n)
			continue
		}
		if _, dup := out[n]; dup {
			add("duplicate %s %q", kind, n)
			continue
		}
		out[n] = i
	}
	return out
}

func checkCosts(prefix string, costs Costs, add func(string, ...any)) {
	for name, v := range costs {
		if _, err := cost.ParseAttribute(name); err != nil {
			add("%s: %v", prefix, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			add("%s.%s must be a finite number, got %v", prefix, name, v)
		}
	}
}

func checkRegionTech(prefix string, values RegionTechValues, regions, techs map[string]int, add func(string, ...any)) {
	for region, byTech := range values {
		if _, ok := regions[region]; !ok && region != AllRegions {
			add("%s: unknown region %q", prefix, region)
		}
		for tech, v := range byTech {
			if _, ok := techs[tech]; !ok {
				add("%s.%s: unknown technology %q", prefix, region, tech)
			}
			if math.IsNaN(v) {
				add("%s.%s.%s is NaN", prefix, region, tech)
			}
		}
	}
}

// checkRows verifies a region → row map has every region with a row of width n.
func checkRows(prefix string, rows map[string][]float64, regions map[string]int, n int, add func(string, ...any)) {
	for region, row := range rows {
		if _, ok := regions[region]; !ok {
			add("%s: unknown region %q", prefix, region)
			continue
		}
		if len(row) != n {
			add("%s.%s has %d values, want %d", prefix, region, len(row), n)
		}
	}
	for region := range regions {
		if _, ok := rows[region]; !ok {
			add("%s: missing region %q", prefix, region)
		}
	}
}

func checkSquare(name string, m [][]float64, n int, add func(string, ...any)) {
	if len(m) != n {
		add("%s has %d rows, want %d", name, len(m), n)
		return
	}
	for i, row := range m {
		if len(row) != n {
			add("%s row %d has %d values, want %d", name, i, len(row), n)
		}
		for _, v := range row {
			if math.IsNaN(v) || v < 0 {
				add("%s row %d: values must be non-negative numbers", name, i)
				break
			}
		}
	}
}
