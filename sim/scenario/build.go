package scenario

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/ftt-sim/ftt-sim/sim"
	"github.com/ftt-sim/ftt-sim/sim/cost"
)

// Inputs is everything sim.NewSolver and Solver.Run need for one scenario.
type Inputs struct {
	Dims     sim.Dims
	Sector   sim.SectorConfig
	Horizon  sim.HorizonConfig
	SubSteps int
	Data     sim.ExogenousData
	Sub      sim.Substitution
	Initial  *sim.MarketState // cost table and seeded experience for the first year
}

// Build validates the spec and converts it into solver inputs.
func (s *Spec) Build() (*Inputs, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	sector, err := s.sector()
	if err != nil {
		return nil, err
	}
	dims := sim.Dims{Regions: append([]string(nil), s.Regions...)}
	for _, t := range s.Technologies {
		dims.Techs = append(dims.Techs, t.Name)
	}
	techs := index(dims.Techs)
	nr, nt := dims.R(), dims.T()
	sector.Mandate = s.mandateConfig(techs)

	initial := sim.NewMarketState(nr, nt, sector.Segments)
	if err := s.fillCostTable(initial.CostTable, dims, techs); err != nil {
		return nil, err
	}
	for name, w := range s.Experience {
		initial.Experience[techs[name]] = w
	}

	data := sim.ExogenousData{
		Demand:            make(map[int]*mat.Dense, len(s.Demand)),
		History:           make(map[int]sim.HistoryYear, len(s.History)),
		Policies:          make(map[int]*sim.PolicyTable, len(s.Policies)),
		DefaultLoadFactor: mat.NewDense(nr, nt, nil),
	}
	for t, spec := range s.Technologies {
		for r := 0; r < nr; r++ {
			data.DefaultLoadFactor.Set(r, t, spec.DefaultLoadFactor)
		}
	}
	if s.Gamma != nil {
		data.Gamma = expand(s.Gamma, dims, techs, 0)
	}
	for y, h := range s.History {
		hy := sim.HistoryYear{Generation: rows(h.Generation, dims.Regions, nt)}
		if h.LoadFactor != nil {
			hy.LoadFactor = rows(h.LoadFactor, dims.Regions, nt)
		}
		data.History[y] = hy
	}
	for y, d := range s.Demand {
		data.Demand[y] = rows(d, dims.Regions, sector.Segments)
	}
	for y, p := range s.Policies {
		data.Policies[y] = p.table(dims, techs)
	}

	logrus.WithFields(logrus.Fields{
		"sector":   sector.Name,
		"regions":  nr,
		"techs":    nt,
		"policies": len(data.Policies),
	}).Debug("scenario built")

	return &Inputs{
		Dims:     dims,
		Sector:   sector,
		Horizon:  sim.NewHorizonConfig(s.FirstYear, s.LastHistoryYear, s.LastYear),
		SubSteps: s.SubSteps,
		Data:     data,
		Sub: sim.Substitution{
			Rates:     square(s.Substitution),
			Spillover: square(s.Spillover),
		},
		Initial: initial,
	}, nil
}

// mandateConfig converts the mandate section; unknown technology names are left to Validate.
func (s *Spec) mandateConfig(techs map[string]int) sim.MandateConfig {
	m := s.Mandate
	if m == nil {
		return sim.MandateConfig{}
	}
	cfg := sim.MandateConfig{
		Enabled:     m.Enabled,
		Mode:        sim.MandateMode(m.Mode),
		StartYear:   m.StartYear,
		EndYear:     m.EndYear,
		Ceiling:     m.Ceiling,
		Ramp:        sim.RampShape(m.Ramp),
		AfterEnd:    sim.AfterEndPolicy(m.AfterEnd),
		Replacement: m.Replacement,
	}
	if cfg.Mode == "" {
		cfg.Mode = sim.MandateSalesShare
	}
	if cfg.Ramp == "" {
		cfg.Ramp = sim.RampLinear
	}
	if cfg.AfterEnd == "" {
		cfg.AfterEnd = sim.AfterEndOff
	}
	for _, g := range m.Green {
		if t, ok := techs[g]; ok {
			cfg.Green = append(cfg.Green, t)
		}
	}
	for _, f := range m.Fossil {
		if t, ok := techs[f]; ok {
			cfg.Fossil = append(cfg.Fossil, t)
		}
	}
	return cfg
}

// fillCostTable writes per-technology defaults into every region, then regional overrides.
func (s *Spec) fillCostTable(table cost.Table, dims sim.Dims, techs map[string]int) error {
	set := func(r, t int, costs Costs) error {
		for name, v := range costs {
			a, err := cost.ParseAttribute(name)
			if err != nil {
				return err
			}
			table.Set(r, t, a, v)
		}
		return nil
	}
	for _, name := range dims.Techs {
		costs, ok := s.CostTable[name]
		if !ok {
			logrus.Warnf("technology %q has no cost_table entry; all cost attributes are zero", name)
			continue
		}
		for r := range dims.Regions {
			if err := set(r, techs[name], costs); err != nil {
				return fmt.Errorf("cost_table.%s: %w", name, err)
			}
		}
	}
	for r, region := range dims.Regions {
		for name, costs := range s.CostOverrides[region] {
			if err := set(r, techs[name], costs); err != nil {
				return fmt.Errorf("cost_overrides.%s.%s: %w", region, name, err)
			}
		}
	}
	return nil
}

// table converts a policy section. Regulation and exogenous sentinels become tagged values.
func (p PolicySpec) table(dims sim.Dims, techs map[string]int) *sim.PolicyTable {
	nr, nt := dims.R(), dims.T()
	out := sim.NewPolicyTable(nr, nt)

	if p.Regulation != nil {
		reg := expand(p.Regulation, dims, techs, -1)
		for r := 0; r < nr; r++ {
			for t := 0; t < nt; t++ {
				out.Regulation[r][t] = sim.RegulationFromSentinel(reg.At(r, t))
			}
		}
	}
	if p.Exogenous != nil {
		exo := expand(p.Exogenous, dims, techs, -1)
		for r := 0; r < nr; r++ {
			for t := 0; t < nt; t++ {
				out.Exogenous[r][t] = sim.ExogenousFromSentinel(exo.At(r, t))
			}
		}
	}
	optional := func(v RegionTechValues, fill float64) *mat.Dense {
		if v == nil {
			return nil
		}
		return expand(v, dims, techs, fill)
	}
	out.Subsidy = optional(p.Subsidy, 0)
	out.FuelTax = optional(p.FuelTax, 0)
	out.FeedIn = optional(p.FeedIn, 0)
	out.RegistrationTax = optional(p.RegistrationTax, 0)
	if p.ShareCeiling != nil || p.ShareFloor != nil {
		// a limit given on one side only leaves the other side open
		out.ShareCeiling = expand(p.ShareCeiling, dims, techs, 1)
		out.ShareFloor = expand(p.ShareFloor, dims, techs, 0)
	}
	if p.CarbonPrice != nil {
		out.CarbonPrice = make([]float64, nr)
		for r, region := range dims.Regions {
			if v, ok := p.CarbonPrice[AllRegions]; ok {
				out.CarbonPrice[r] = v
			}
			if v, ok := p.CarbonPrice[region]; ok {
				out.CarbonPrice[r] = v
			}
		}
	}
	return out
}

// expand resolves a region → tech map into an R×T matrix: fill, then the "*" row,
// then explicit regions.
func expand(values RegionTechValues, dims sim.Dims, techs map[string]int, fill float64) *mat.Dense {
	out := mat.NewDense(dims.R(), dims.T(), nil)
	for r, region := range dims.Regions {
		row := out.RawRowView(r)
		for t := range row {
			row[t] = fill
		}
		for _, key := range []string{AllRegions, region} {
			for name, v := range values[key] {
				row[techs[name]] = v
			}
		}
	}
	return out
}

// rows stacks region-keyed rows in region order.
func rows(byRegion map[string][]float64, regions []string, width int) *mat.Dense {
	out := mat.NewDense(len(regions), width, nil)
	for r, region := range regions {
		copy(out.RawRowView(r), byRegion[region])
	}
	return out
}

func square(m [][]float64) *mat.Dense {
	n := len(m)
	out := mat.NewDense(n, n, nil)
	for i, row := range m {
		copy(out.RawRowView(i), row)
	}
	return out
}

func index(names []string) map[string]int {
	out := make(map[string]int, len(names))
	for i, n := range names {
		out[n] = i
	}
	return out
}
