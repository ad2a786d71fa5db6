package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ftt-sim/ftt-sim/sim/cost"
)

// Recorder receives solved states. Implementations must not retain the state pointer;
// it is reused by the solver.
type Recorder interface {
	RecordYear(sector string, phase Phase, state *MarketState)
	RecordSubStep(sector string, year, subStep int, state *MarketState)
}

// Solver advances one sector one year at a time.
type Solver struct {
	Dims     Dims
	Sector   SectorConfig
	Horizon  HorizonConfig
	Config   SolverConfig
	Data     ExogenousData
	Sub      Substitution
	Recorder Recorder // optional
	Metrics  *Metrics

	green []bool
}

// NewSolver validates every configuration group and returns a ready Solver.
func NewSolver(dims Dims, sector SectorConfig, horizon HorizonConfig, cfg SolverConfig, data ExogenousData, sub Substitution) (*Solver, error) {
	if dims.R() == 0 || dims.T() == 0 {
		return nil, &ConfigError{Component: "dimensions", Problems: []string{"need at least one region and one technology"}}
	}
	if err := sector.Validate(dims.T()); err != nil {
		return nil, err
	}
	if err := horizon.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := sub.Validate(dims.T()); err != nil {
		return nil, err
	}
	for y, p := range data.Policies {
		if err := p.Validate(dims.R(), dims.T()); err != nil {
			return nil, fmt.Errorf("policy for %d: %w", y, err)
		}
	}
	return &Solver{
		Dims:    dims,
		Sector:  sector,
		Horizon: horizon,
		Config:  cfg,
		Data:    data,
		Sub:     sub,
		Metrics: NewMetrics(),
		green:   sector.Mandate.GreenMask(dims.T()),
	}, nil
}

// Run solves every year in [from, to]. When from is the first year, initial supplies
// the cost table and any seeded experience; otherwise it is the solved state of from-1.
// Returns the state of the last solved year.
func (s *Solver) Run(initial *MarketState, from, to int) (*MarketState, error) {
	if from < s.Horizon.FirstYear || to < from {
		return nil, &ConfigError{Component: "run", Problems: []string{
			fmt.Sprintf("years [%d, %d] outside horizon starting %d", from, to, s.Horizon.FirstYear)}}
	}
	var lag *MarketState
	if from > s.Horizon.FirstYear {
		lag = initial.Clone()
	}
	working := initial.Clone()
	for year := from; year <= to; year++ {
		policy := s.Data.PolicyFor(year, s.Dims.R(), s.Dims.T())
		solved, err := s.SolveYear(working, lag, policy, s.Sub, year)
		if err != nil {
			return nil, fmt.Errorf("%s year %d: %w", s.Sector.Name, year, err)
		}
		if s.Recorder != nil {
			s.Recorder.RecordYear(s.Sector.Name, s.Horizon.PhaseOf(year), solved)
		}
		lag = solved.Clone()
		working = solved
	}
	return lag, nil
}

// SolveYear overwrites state with the solution of year and returns it. lag is the
// previous year's solved state; it is read, never modified, and may be nil only for
// the cold-start year.
func (s *Solver) SolveYear(state, lag *MarketState, policy *PolicyTable, sub Substitution, year int) (*MarketState, error) {
	phase := s.Horizon.PhaseOf(year)
	if phase != PhaseColdStart && lag == nil {
		return nil, &DataDefectError{Sector: s.Sector.Name, Year: year, Reason: "no time-lag state for a non-initial year"}
	}
	if state.CostTable.Regions() != s.Dims.R() || state.CostTable.Techs() != s.Dims.T() {
		return nil, &DataDefectError{Sector: s.Sector.Name, Year: year, Field: "cost_table",
			Reason: fmt.Sprintf("table is %dx%d, want %dx%d", state.CostTable.Regions(), state.CostTable.Techs(), s.Dims.R(), s.Dims.T())}
	}
	logrus.WithFields(logrus.Fields{"sector": s.Sector.Name, "year": year}).Debugf("solving %s year", phase)

	var err error
	switch phase {
	case PhaseColdStart:
		err = s.coldStart(state, policy, year)
	case PhaseHistorical:
		err = s.historical(state, lag, policy, sub, year)
	default:
		err = s.endogenous(state, lag, policy, sub, year)
	}
	if err != nil {
		return nil, err
	}
	state.Year = year
	s.Metrics.YearsSolved++
	return state, nil
}

// coldStart derives the initial state from the first year's history.
func (s *Solver) coldStart(state *MarketState, policy *PolicyTable, year int) error {
	if err := s.fromHistory(state, nil, year); err != nil {
		return err
	}
	if floats.Sum(state.Experience) == 0 {
		for t := range state.Experience {
			state.Experience[t] = floats.Sum(mat.Col(nil, t, state.Capacity))
		}
	}
	state.Sales.Zero()
	state.SubStepSales.Zero()
	return s.levelise(state, policy, year)
}

// historical derives the state from history and accumulates experience from the
// implied additions. Costs follow the policy but do not learn.
func (s *Solver) historical(state, lag *MarketState, policy *PolicyTable, sub Substitution, year int) error {
	state.CostTable = lag.CostTable.Clone()
	if err := s.fromHistory(state, lag, year); err != nil {
		return err
	}
	additions := HistoricalAdditions(state.Capacity, lag.Capacity, state.CostTable)
	state.Sales.Copy(additions)
	state.SubStepSales.Copy(additions)
	dw := ExperienceIncrement(GlobalAdditions(additions), sub.Spillover, s.Sector.Spillover)
	for t := range state.Experience {
		state.Experience[t] = lag.Experience[t] + dw[t]
	}
	ctx := stepContext{sector: s.Sector.Name, dims: s.Dims, year: year}
	if err := s.report(checkExperience(ctx, lag.Experience, state.Experience)); err != nil {
		return err
	}
	return s.levelise(state, policy, year)
}

// fromHistory fills generation, load factor, capacity, shares and emissions from the
// historical record of year.
func (s *Solver) fromHistory(state, lag *MarketState, year int) error {
	hist, ok := s.Data.History[year]
	if !ok || hist.Generation == nil {
		return &DataDefectError{Sector: s.Sector.Name, Year: year, Field: "history", Reason: "no historical generation"}
	}
	regions, techs := s.Dims.R(), s.Dims.T()
	if r, c := hist.Generation.Dims(); r != regions || c != techs {
		return &DataDefectError{Sector: s.Sector.Name, Year: year, Field: "history",
			Reason: fmt.Sprintf("generation is %dx%d, want %dx%d", r, c, regions, techs)}
	}
	switch {
	case hist.LoadFactor != nil:
		state.LoadFactor.Copy(hist.LoadFactor)
	case lag != nil:
		state.LoadFactor.Copy(lag.LoadFactor)
	case s.Data.DefaultLoadFactor != nil:
		state.LoadFactor.Copy(s.Data.DefaultLoadFactor)
	default:
		return &DataDefectError{Sector: s.Sector.Name, Year: year, Field: "load_factor", Reason: "no historical or default load factor"}
	}
	state.Generation.Copy(hist.Generation)
	for r := 0; r < regions; r++ {
		for t := 0; t < techs; t++ {
			g := state.Generation.At(r, t)
			if math.IsNaN(g) {
				return &DataDefectError{Sector: s.Sector.Name, Year: year, Region: s.Dims.Regions[r],
					Tech: s.Dims.Techs[t], Field: "generation", Reason: "NaN"}
			}
			state.Capacity.Set(r, t, g/s.capacityDivisor(state.LoadFactor.At(r, t)))
		}
	}
	s.sharesFromCapacity(state, nil)
	if demand, ok := s.Data.Demand[year]; ok {
		if err := s.checkDemand(demand, year); err != nil {
			return err
		}
		state.Demand = mat.DenseCopyOf(demand)
	} else {
		state.Demand = s.observedDemand(state)
	}
	s.emissions(state, nil)
	return nil
}

// endogenous integrates the substitution dynamics over the year's sub-steps.
func (s *Solver) endogenous(state, lag *MarketState, policy *PolicyTable, sub Substitution, year int) error {
	current, ok := s.Data.Demand[year]
	if !ok {
		return &DataDefectError{Sector: s.Sector.Name, Year: year, Field: "demand", Reason: "no demand for year"}
	}
	if err := s.checkDemand(current, year); err != nil {
		return err
	}
	lagDemand := lag.Demand
	if lagDemand == nil {
		lagDemand = current
	}

	// Costs see this year's carbon price and policy before the first sub-step.
	if err := s.levelise(state, policy, year); err != nil {
		return err
	}
	gate := RegulationGate(lag.Capacity, policy)
	if extra, n := s.Sector.Mandate.ExogenousSalesAdditions(lag.Shares, lag.Capacity, s.Sector.Segments, year); n > 0 {
		policy = policy.WithAdditions(extra)
		s.Metrics.MandateAdjustments += n
	}
	state.Demand = mat.DenseCopyOf(current)
	state.Sales.Zero()

	n := s.Config.SubSteps
	dt := 1 / float64(n)
	prev := state.Clone()
	regions := s.Dims.R()
	outcomes := make([]regionOutcome, regions)

	for step := 1; step <= n; step++ {
		demand := interpolateDemand(lagDemand, current, float64(step)*dt)

		var g errgroup.Group
		if s.Config.Workers > 1 {
			g.SetLimit(s.Config.Workers)
		} else {
			g.SetLimit(1)
		}
		for r := 0; r < regions; r++ {
			r := r
			g.Go(func() error {
				outcomes[r] = s.integrateRegion(r, regionStep{
					state: state, prev: prev, lag: lag, gate: gate, policy: policy,
					sub: sub, demand: demand, dt: dt,
				})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		active := make([]bool, regions)
		for r, o := range outcomes {
			active[r] = o.active
			if !o.active {
				s.Metrics.SkippedRegionSteps++
			}
			s.Metrics.ValveEngagements += o.valve
			s.Metrics.RegulationOverrides += o.dropped
		}

		s.physical(state, demand, active)
		sales, _ := SubStepSales(SalesInputs{
			Cap: state.Capacity, CapDt: prev.Capacity, CapLag: lag.Capacity,
			Shares: state.Shares, SharesDt: prev.Shares,
			Table: state.CostTable, Dt: dt,
		})
		if s.Sector.Mandate.Enabled {
			share := s.Sector.Mandate.MandateShare(year)
			if adjusted := ApplyMandate(sales, state.Capacity, s.green, share, s.Sector.Segments); adjusted > 0 {
				s.Metrics.MandateAdjustments += adjusted
				s.sharesFromCapacity(state, active)
				s.outputFromCapacity(state, active)
				s.emissions(state, active)
			}
		}
		state.SubStepSales.Copy(sales)
		state.Sales.Add(state.Sales, sales)

		ctx := stepContext{sector: s.Sector.Name, dims: s.Dims, year: year, subStep: step}
		if err := s.report(checkShares(ctx, state.Shares, active, s.Sector.TotalShare(), s.Sector.ShareTolerance)); err != nil {
			return err
		}

		learned, err := ApplyLearning(state.CostTable, prev.CostTable, prev.Experience, sales, sub.Spillover, s.Sector.Spillover, s.Sector.LearningColumns)
		if err != nil {
			return &DataDefectError{Sector: s.Sector.Name, Year: year, Field: "experience", Err: err}
		}
		copy(state.Experience, learned.Experience)
		if err := s.report(checkExperience(ctx, prev.Experience, state.Experience)); err != nil {
			return err
		}
		if err := s.levelise(state, policy, year); err != nil {
			return err
		}

		s.Metrics.SubSteps++
		if s.Config.TraceSubSteps && s.Recorder != nil {
			s.Recorder.RecordSubStep(s.Sector.Name, year, step, state)
		}
		prev = state.Clone()
	}
	return nil
}

// regionStep carries the read-only inputs of one region's sub-step.
type regionStep struct {
	state, prev, lag *MarketState
	gate             *mat.Dense
	policy           *PolicyTable
	sub              Substitution
	demand           *mat.Dense
	dt               float64
}

type regionOutcome struct {
	active  bool
	valve   int
	dropped int
}

// integrateRegion runs the substitution kernel and the reconciler for region r and
// writes the region's shares and load factors. It touches only row r of state.
func (s *Solver) integrateRegion(r int, in regionStep) regionOutcome {
	if floats.Sum(in.demand.RawRowView(r)) == 0 {
		return regionOutcome{}
	}
	techs := s.Dims.T()
	prevShares := in.prev.Shares.RawRowView(r)
	exo := make([]Exogenous, techs)
	regs := make([]Regulation, techs)
	for t := 0; t < techs; t++ {
		exo[t] = in.policy.ExogenousAt(r, t)
		regs[t] = in.policy.RegulationAt(r, t)
	}

	flowIn := RegionFlowInputs{
		Shares:     prevShares,
		Cost:       in.prev.Costs.Generalised.RawRowView(r),
		Std:        in.prev.Costs.GeneralisedStd.RawRowView(r),
		Gate:       in.gate.RawRowView(r),
		Rates:      in.sub.Rates,
		Segments:   s.Sector.Segments,
		Dt:         in.dt,
		TimeScale:  s.Sector.TimeScale,
		Integrator: s.Config.Integrator,
	}
	flowIn.Eligible = Eligible(flowIn.Shares, flowIn.Cost, flowIn.Std, exo, s.Sector.ExcludeExogenous)
	if in.policy.ShareCeiling != nil && in.policy.ShareFloor != nil {
		flowIn.Ceiling = in.policy.ShareCeiling.RawRowView(r)
		flowIn.Floor = in.policy.ShareFloor.RawRowView(r)
	}
	endoShares := EndogenousShares(prevShares, PairwiseFlows(flowIn))

	lf := in.state.LoadFactor.RawRowView(r)
	copy(lf, in.prev.LoadFactor.RawRowView(r))
	s.entrantLoadFactors(r, in.lag, endoShares, lf)

	res := Reconcile(ReconcileInputs{
		EndoShares:    endoShares,
		EndoCap:       s.capacityFor(endoShares, lf, in.demand.RawRowView(r)),
		PrevCap:       in.prev.Capacity.RawRowView(r),
		Gate:          in.gate.RawRowView(r),
		Regulation:    regs,
		Exogenous:     exo,
		Mode:          s.Sector.ExogenousMode,
		Segments:      s.Sector.Segments,
		Dt:            in.dt,
		ValveFraction: s.Sector.ValveFraction,
		ValveLifetime: s.Sector.ValveLifetime,
	})
	// exogenous instructions can bring in technologies the substitution did not
	s.entrantLoadFactors(r, in.lag, res.Shares, lf)
	copy(in.state.Shares.RawRowView(r), res.Shares)

	out := regionOutcome{active: true, dropped: len(res.Dropped)}
	for _, v := range res.ValveScale {
		if v < 1 {
			out.valve++
		}
	}
	if len(res.Dropped) > 0 {
		logrus.WithFields(logrus.Fields{
			"sector": s.Sector.Name, "region": s.Dims.Regions[r], "count": len(res.Dropped),
		}).Debug("exogenous instructions overridden by regulation")
	}
	return out
}

// entrantLoadFactors gives technologies absent from region r last year, and holding a
// share now, the default load factor of the region.
func (s *Solver) entrantLoadFactors(r int, lag *MarketState, shares, lf []float64) {
	if s.Data.DefaultLoadFactor == nil {
		return
	}
	for t := range shares {
		if lag.Shares.At(r, t) == 0 && shares[t] > 0 {
			lf[t] = s.Data.DefaultLoadFactor.At(r, t)
		}
	}
}

// capacityFor maps one region's shares onto capacity under the sector's capacity model.
func (s *Solver) capacityFor(shares, lf, demand []float64) []float64 {
	out := make([]float64, len(shares))
	if s.Sector.CapacityModel == CapacityFleet {
		for t := range shares {
			out[t] = shares[t] * demand[SegmentOf(t, s.Sector.Segments)]
		}
		return out
	}
	var weight float64
	for t := range shares {
		weight += shares[t] * lf[t]
	}
	if weight == 0 {
		return out
	}
	for t := range shares {
		gen := shares[t] * demand[0] * lf[t] / weight
		out[t] = gen / s.capacityDivisor(lf[t])
	}
	return out
}

// physical recomputes capacity, generation and emissions of active regions from shares.
func (s *Solver) physical(state *MarketState, demand *mat.Dense, active []bool) {
	for r := range active {
		if !active[r] {
			continue
		}
		row := s.capacityFor(state.Shares.RawRowView(r), state.LoadFactor.RawRowView(r), demand.RawRowView(r))
		state.Capacity.SetRow(r, row)
	}
	s.outputFromCapacity(state, active)
	s.emissions(state, active)
}

// outputFromCapacity sets generation = capacity × load factor × activity per capacity.
func (s *Solver) outputFromCapacity(state *MarketState, active []bool) {
	regions, techs := state.Capacity.Dims()
	for r := 0; r < regions; r++ {
		if active != nil && !active[r] {
			continue
		}
		for t := 0; t < techs; t++ {
			lf := state.LoadFactor.At(r, t)
			state.Generation.Set(r, t, state.Capacity.At(r, t)*lf*s.Sector.ActivityPerCapacity)
		}
	}
}

// sharesFromCapacity renormalises shares to capacity inside each segment. A segment
// with no capacity keeps its shares.
func (s *Solver) sharesFromCapacity(state *MarketState, active []bool) {
	regions, techs := state.Capacity.Dims()
	for r := 0; r < regions; r++ {
		if active != nil && !active[r] {
			continue
		}
		for seg := 0; seg < s.Sector.Segments; seg++ {
			members := segmentTechs(seg, s.Sector.Segments, techs)
			var total float64
			for _, t := range members {
				total += state.Capacity.At(r, t)
			}
			if total == 0 {
				continue
			}
			for _, t := range members {
				state.Shares.Set(r, t, state.Capacity.At(r, t)/total)
			}
		}
	}
}

func (s *Solver) emissions(state *MarketState, active []bool) {
	regions, techs := state.Generation.Dims()
	for r := 0; r < regions; r++ {
		if active != nil && !active[r] {
			continue
		}
		for t := 0; t < techs; t++ {
			state.Emissions.Set(r, t, state.Generation.At(r, t)*state.CostTable.At(r, t, cost.EmissionsFactor))
		}
	}
}

// observedDemand derives the demand a history-derived state satisfies.
func (s *Solver) observedDemand(state *MarketState) *mat.Dense {
	regions, techs := state.Capacity.Dims()
	demand := mat.NewDense(regions, s.Sector.Segments, nil)
	for r := 0; r < regions; r++ {
		for t := 0; t < techs; t++ {
			seg := SegmentOf(t, s.Sector.Segments)
			v := state.Capacity.At(r, t)
			if s.Sector.CapacityModel == CapacityFromLoadFactor {
				v = state.Generation.At(r, t)
			}
			demand.Set(r, seg, demand.At(r, seg)+v)
		}
	}
	return demand
}

// capacityDivisor converts output into capacity, trapping zero load factors.
func (s *Solver) capacityDivisor(lf float64) float64 {
	return math.Max(lf, cost.LoadFactorFloor) * s.Sector.ActivityPerCapacity
}

func (s *Solver) checkDemand(demand *mat.Dense, year int) error {
	if r, c := demand.Dims(); r != s.Dims.R() || c != s.Sector.Segments {
		return &DataDefectError{Sector: s.Sector.Name, Year: year, Field: "demand",
			Reason: fmt.Sprintf("demand is %dx%d, want %dx%d", r, c, s.Dims.R(), s.Sector.Segments)}
	}
	for r := 0; r < s.Dims.R(); r++ {
		for _, v := range demand.RawRowView(r) {
			if math.IsNaN(v) {
				return &DataDefectError{Sector: s.Sector.Name, Year: year, Region: s.Dims.Regions[r], Field: "demand", Reason: "NaN"}
			}
		}
	}
	return nil
}

// levelise refreshes the carbon column and recomputes the state's costs.
func (s *Solver) levelise(state *MarketState, policy *PolicyTable, year int) error {
	cost.RefreshCarbon(state.CostTable, policy.CarbonPrice)
	costs, err := cost.Levelise(state.CostTable, policy.CostPolicy(), state.LoadFactor, s.Data.Gamma, s.Sector.CostOptions())
	if err != nil {
		var defect *cost.DataDefectError
		if errors.As(err, &defect) {
			return &DataDefectError{
				Sector: s.Sector.Name, Year: year,
				Region: s.Dims.Regions[defect.Region], Tech: s.Dims.Techs[defect.Tech],
				Field: defect.Field, Reason: "NaN", Err: err,
			}
		}
		return err
	}
	state.Costs = costs
	return nil
}

func (s *Solver) report(violations []InvariantViolation) error {
	s.Metrics.InvariantViolations += len(violations)
	return reportViolations(violations, s.Config.Strict)
}

// interpolateDemand returns lag + (cur-lag)·frac.
func interpolateDemand(lag, cur *mat.Dense, frac float64) *mat.Dense {
	var out mat.Dense
	out.Sub(cur, lag)
	out.Scale(frac, &out)
	out.Add(lag, &out)
	return &out
}
