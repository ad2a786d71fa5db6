package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ftt-sim/ftt-sim/sim/cost"
)

// Fixture years: 2010 cold start, 2011 history, 2012-2020 endogenous.
const (
	fixtureFirstYear   = 2010
	fixtureLastHistory = 2011
	fixtureLastYear    = 2020
)

// fleetFixture bundles the inputs of one solver run. newFleetFixture builds a
// three-region, three-technology fleet sector where the third technology is the
// cheapest to run and the first the dearest.
type fleetFixture struct {
	dims    Dims
	sector  SectorConfig
	horizon HorizonConfig
	cfg     SolverConfig
	data    ExogenousData
	sub     Substitution
	initial *MarketState
}

func testSector() SectorConfig {
	return SectorConfig{
		Name:                "fleet",
		Segments:            1,
		CapacityModel:       CapacityFleet,
		ActivityPerCapacity: 1,
		TimeScale:           1,
		Schedule:            cost.ScheduleUpfront,
		Transform:           cost.TransformLinear,
		ExogenousMode:       ExogenousAdditions,
		ValveFraction:       0.8,
		ValveLifetime:       15,
		Spillover:           SpilloverLinear,
		LearningColumns:     []cost.Attribute{cost.InvestmentCost, cost.InvestmentStd},
		ShareTolerance:      DefaultShareTolerance,
	}
}

func newFleetFixture() *fleetFixture {
	dims := Dims{
		Regions: []string{"north", "south", "east"},
		Techs:   []string{"diesel", "hybrid", "electric"},
	}
	regions, techs := dims.R(), dims.T()

	initial := NewMarketState(regions, techs, 1)
	fuel := []float64{20, 15, 5}
	ef := []float64{2.5, 1.8, 0}
	for r := 0; r < regions; r++ {
		for t := 0; t < techs; t++ {
			initial.CostTable.Set(r, t, cost.InvestmentCost, 100)
			initial.CostTable.Set(r, t, cost.InvestmentStd, 10)
			initial.CostTable.Set(r, t, cost.FuelCost, fuel[t])
			initial.CostTable.Set(r, t, cost.FuelStd, 2)
			initial.CostTable.Set(r, t, cost.Lifetime, 10)
			initial.CostTable.Set(r, t, cost.DiscountRate, 0.05)
			initial.CostTable.Set(r, t, cost.EmissionsFactor, ef[t])
			initial.CostTable.Set(r, t, cost.LearningExponent, -0.2)
		}
	}

	// regions differ in size and mix so regional arithmetic is not symmetric
	scale := []float64{1, 0.5, 2}
	history := map[int]HistoryYear{}
	for y, mix := range map[int][]float64{
		2010: {600, 300, 100},
		2011: {590, 305, 110},
	} {
		gen := mat.NewDense(regions, techs, nil)
		for r := 0; r < regions; r++ {
			for t := 0; t < techs; t++ {
				gen.Set(r, t, mix[t]*scale[r]*(1+0.1*float64(r*t)))
			}
		}
		history[y] = HistoryYear{Generation: gen}
	}

	demand := map[int]*mat.Dense{}
	for y := fixtureLastHistory + 1; y <= fixtureLastYear; y++ {
		d := mat.NewDense(regions, 1, nil)
		for r := 0; r < regions; r++ {
			d.Set(r, 0, 1100*scale[r]*math.Pow(1.01, float64(y-fixtureLastHistory)))
		}
		demand[y] = d
	}

	lf := mat.NewDense(regions, techs, nil)
	for i := range lf.RawMatrix().Data {
		lf.RawMatrix().Data[i] = 1
	}

	rates := mat.NewDense(techs, techs, nil)
	for i := 0; i < techs; i++ {
		for j := 0; j < techs; j++ {
			if i != j {
				rates.Set(i, j, 0.5)
			}
		}
	}
	spill := mat.NewDense(techs, techs, nil)
	for i := 0; i < techs; i++ {
		spill.Set(i, i, 1)
	}

	return &fleetFixture{
		dims:    dims,
		sector:  testSector(),
		horizon: NewHorizonConfig(fixtureFirstYear, fixtureLastHistory, fixtureLastYear),
		cfg:     NewSolverConfig(4, false, 1, false),
		data: ExogenousData{
			Demand:            demand,
			History:           history,
			Policies:          map[int]*PolicyTable{},
			DefaultLoadFactor: lf,
		},
		sub:     Substitution{Rates: rates, Spillover: spill},
		initial: initial,
	}
}

// conservationTol is the per-region share sum tolerance the solver must keep.
const conservationTol = 1e-6

// newEntrantFixture is a single-region power sector where wind has no history, a
// historical load factor of zero and a default load factor of 0.4. Wind enters only
// through an exogenous capacity target of 20 from the first endogenous year.
func newEntrantFixture() *fleetFixture {
	dims := Dims{Regions: []string{"grid"}, Techs: []string{"coal", "gas", "wind"}}
	techs := dims.T()
	sector, err := SectorPreset("power")
	if err != nil {
		panic(err)
	}

	initial := NewMarketState(1, techs, 1)
	fuel := []float64{30, 20, 0}
	ef := []float64{1, 0.5, 0}
	for t := 0; t < techs; t++ {
		initial.CostTable.Set(0, t, cost.InvestmentCost, 1000)
		initial.CostTable.Set(0, t, cost.InvestmentStd, 100)
		initial.CostTable.Set(0, t, cost.FuelCost, fuel[t])
		initial.CostTable.Set(0, t, cost.FuelStd, 3)
		initial.CostTable.Set(0, t, cost.Lifetime, 25)
		initial.CostTable.Set(0, t, cost.BuildTime, 2)
		initial.CostTable.Set(0, t, cost.DiscountRate, 0.08)
		initial.CostTable.Set(0, t, cost.EmissionsFactor, ef[t])
		initial.CostTable.Set(0, t, cost.LearningExponent, -0.2)
	}

	history := map[int]HistoryYear{}
	for _, y := range []int{fixtureFirstYear, fixtureLastHistory} {
		history[y] = HistoryYear{
			Generation: mat.NewDense(1, techs, []float64{600, 400, 0}),
			LoadFactor: mat.NewDense(1, techs, []float64{0.5, 0.5, 0}),
		}
	}
	demand := map[int]*mat.Dense{}
	for y := fixtureLastHistory + 1; y <= fixtureLastYear; y++ {
		demand[y] = mat.NewDense(1, 1, []float64{1000})
	}

	policy := NewPolicyTable(1, techs)
	policy.Exogenous[0][2] = ExogenousTarget(20)

	rates := mat.NewDense(techs, techs, nil)
	spill := mat.NewDense(techs, techs, nil)
	for i := 0; i < techs; i++ {
		spill.Set(i, i, 1)
		for j := 0; j < techs; j++ {
			if i != j {
				rates.Set(i, j, 0.5)
			}
		}
	}

	return &fleetFixture{
		dims:    dims,
		sector:  sector,
		horizon: NewHorizonConfig(fixtureFirstYear, fixtureLastHistory, fixtureLastYear),
		cfg:     NewSolverConfig(1, false, 1, false),
		data: ExogenousData{
			Demand:            demand,
			History:           history,
			Policies:          map[int]*PolicyTable{fixtureLastHistory + 1: policy},
			DefaultLoadFactor: mat.NewDense(1, techs, []float64{0.5, 0.5, 0.4}),
		},
		sub:     Substitution{Rates: rates, Spillover: spill},
		initial: initial,
	}
}

func (f *fleetFixture) solver(t *testing.T) *Solver {
	t.Helper()
	s, err := NewSolver(f.dims, f.sector, f.horizon, f.cfg, f.data, f.sub)
	require.NoError(t, err)
	return s
}

// stateRecorder keeps a clone of every recorded year.
type stateRecorder struct {
	years    map[int]*MarketState
	phases   map[int]Phase
	subSteps int
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{years: map[int]*MarketState{}, phases: map[int]Phase{}}
}

func (r *stateRecorder) RecordYear(_ string, phase Phase, state *MarketState) {
	r.years[state.Year] = state.Clone()
	r.phases[state.Year] = phase
}

func (r *stateRecorder) RecordSubStep(string, int, int, *MarketState) {
	r.subSteps++
}

// salesShare returns the share of tech t in the year's sales of region r.
func salesShare(state *MarketState, r, t int) float64 {
	row := state.Sales.RawRowView(r)
	var total float64
	for _, v := range row {
		total += v
	}
	if total == 0 {
		return 0
	}
	return row[t] / total
}
