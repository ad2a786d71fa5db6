package cost

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Schedule selects how investment is laid out over the cash-flow schedule.
type Schedule int

const (
	// ScheduleUpfront pays investment in year 0; service starts immediately (vehicles, boilers).
	ScheduleUpfront Schedule = iota
	// ScheduleBuildTime spreads investment over the build years; service starts afterwards (plants).
	ScheduleBuildTime
)

// Transform selects how the mean/std pair becomes the compared generalised cost.
type Transform int

const (
	// TransformLinear adds gamma to the taxed cost and keeps the std.
	TransformLinear Transform = iota
	// TransformLogNormal moves the taxed cost and its std into log10 space before adding gamma.
	TransformLogNormal
)

// LoadFactorFloor traps zero load factors before they are used as denominators.
const LoadFactorFloor = 1e-6

// Options configures the calculator for one sector.
type Options struct {
	Schedule  Schedule
	Transform Transform
	// ActivityPerCapacity converts one unit of capacity at load factor 1 into annual output
	// (8.766 MWh per kW-year for power, 1 for fleets whose load factor is activity per vehicle).
	ActivityPerCapacity float64
}

// Policy holds the region×technology policy cost components. Nil matrices read as zero.
type Policy struct {
	Subsidy         *mat.Dense // fraction of investment (negative for a subsidy)
	RegistrationTax *mat.Dense // fraction of investment, paid with it
	FuelTax         *mat.Dense // per unit output, every service year
	FeedIn          *mat.Dense // per unit output, added after levelising
}

func at(m *mat.Dense, r, t int) float64 {
	if m == nil {
		return 0
	}
	return m.At(r, t)
}

// Levelised holds the region×technology cost outputs.
type Levelised struct {
	Bare           *mat.Dense // without policy costs
	BareStd        *mat.Dense // propagated std of Bare
	Taxed          *mat.Dense // including subsidies, taxes, carbon and feed-in
	Generalised    *mat.Dense // compared value: transformed Taxed plus gamma
	GeneralisedStd *mat.Dense // std in the same space as Generalised
}

// NewLevelised allocates zeroed outputs.
func NewLevelised(regions, techs int) Levelised {
	return Levelised{
		Bare:           mat.NewDense(regions, techs, nil),
		BareStd:        mat.NewDense(regions, techs, nil),
		Taxed:          mat.NewDense(regions, techs, nil),
		Generalised:    mat.NewDense(regions, techs, nil),
		GeneralisedStd: mat.NewDense(regions, techs, nil),
	}
}

// Clone deep-copies the outputs. Zero-value Levelised clones to zero value.
func (l Levelised) Clone() Levelised {
	if l.Bare == nil {
		return Levelised{}
	}
	return Levelised{
		Bare:           mat.DenseCopyOf(l.Bare),
		BareStd:        mat.DenseCopyOf(l.BareStd),
		Taxed:          mat.DenseCopyOf(l.Taxed),
		Generalised:    mat.DenseCopyOf(l.Generalised),
		GeneralisedStd: mat.DenseCopyOf(l.GeneralisedStd),
	}
}

// DataDefectError reports a NaN in a cost input. Downstream numerics cannot recover from it.
type DataDefectError struct {
	Region int
	Tech   int
	Field  string
}

func (e *DataDefectError) Error() string {
	return fmt.Sprintf("cost input %s is NaN at region %d, technology %d", e.Field, e.Region, e.Tech)
}

// Levelise computes levelised costs for every region and technology.
// loadFactor and gamma are region×technology; gamma may be nil.
func Levelise(table Table, policy Policy, loadFactor, gamma *mat.Dense, opts Options) (Levelised, error) {
	out := NewLevelised(table.Regions(), table.Techs())
	for r := 0; r < table.Regions(); r++ {
		if err := LeveliseRegion(table, policy, loadFactor, gamma, opts, r, out); err != nil {
			return Levelised{}, err
		}
	}
	return out, nil
}

// LeveliseRegion fills row r of out. Regions are independent, so callers may run
// regions concurrently as long as each writes its own row.
func LeveliseRegion(table Table, policy Policy, loadFactor, gamma *mat.Dense, opts Options, r int, out Levelised) error {
	if err := checkRegion(table, policy, loadFactor, gamma, r); err != nil {
		return err
	}
	perCapacity := opts.ActivityPerCapacity
	if perCapacity <= 0 {
		perCapacity = 1
	}
	n := scheduleLength(table, opts, r)

	for t := 0; t < table.Techs(); t++ {
		row := table.Row(r, t)
		lf := math.Max(loadFactor.At(r, t), LoadFactorFloor)
		conv := 1 / (lf * perCapacity)

		investYears, serviceStart := 1.0, 0.0
		if opts.Schedule == ScheduleBuildTime {
			investYears = buildYears(row[BuildTime])
			serviceStart = investYears
		}
		lifetime := row[Lifetime]

		inv := row[InvestmentCost] * conv / investYears
		dinv := row[InvestmentStd] * conv / investYears
		invPolicy := inv * (at(policy.Subsidy, r, t) + at(policy.RegistrationTax, r, t))
		running := row[FuelCost] + row[OMCost] + row[StorageCost]
		runningPolicy := row[CarbonCost] + at(policy.FuelTax, r, t)
		runningVar := row[FuelStd]*row[FuelStd] + row[OMStd]*row[OMStd]

		var bare, taxed, std, utility float64
		for y := 0; y < n; y++ {
			fy := float64(y)
			disc := math.Pow(1+row[DiscountRate], fy)
			inService := fy >= serviceStart && fy < serviceStart+lifetime

			var expense, taxedExpense, variance float64
			if fy < investYears {
				expense += inv
				taxedExpense += inv + invPolicy
				variance += dinv * dinv
			}
			if inService {
				expense += running
				taxedExpense += running + runningPolicy
				variance += runningVar
			}
			bare += expense / disc
			taxed += taxedExpense / disc
			std += math.Sqrt(variance) / disc

			// year 0 always counts so short or zero-lifetime technologies keep a finite cost
			if y == 0 {
				utility++
			} else if inService {
				utility += 1 / disc
			}
		}

		bareCost := bare / utility
		taxedCost := taxed/utility + at(policy.FeedIn, r, t)
		stdCost := std / utility
		g := at(gamma, r, t)

		out.Bare.Set(r, t, bareCost)
		out.BareStd.Set(r, t, stdCost)
		out.Taxed.Set(r, t, taxedCost)
		gen, genStd := transform(opts.Transform, taxedCost, stdCost)
		out.Generalised.Set(r, t, gen+g)
		out.GeneralisedStd.Set(r, t, genStd)
	}
	return nil
}

// transform maps the taxed mean/std pair into the space technologies are compared in.
// A non-positive mean has no log-normal counterpart and keeps its linear value.
func transform(tr Transform, mean, std float64) (float64, float64) {
	if tr != TransformLogNormal || mean <= 0 {
		return mean, std
	}
	v := std * std
	m2 := mean * mean
	return math.Log10(m2 / math.Sqrt(v+m2)), math.Sqrt(math.Log10(1 + v/m2))
}

func buildYears(bt float64) float64 {
	if bt < 1 {
		return 1
	}
	return bt
}

// scheduleLength is the longest lifetime (plus build time) across the region's technologies.
func scheduleLength(table Table, opts Options, r int) int {
	n := 1
	for t := 0; t < table.Techs(); t++ {
		span := table.At(r, t, Lifetime)
		if opts.Schedule == ScheduleBuildTime {
			span += buildYears(table.At(r, t, BuildTime))
		}
		if l := int(math.Ceil(span)); l > n {
			n = l
		}
	}
	return n
}

func checkRegion(table Table, policy Policy, loadFactor, gamma *mat.Dense, r int) error {
	for t := 0; t < table.Techs(); t++ {
		for a, v := range table.Row(r, t) {
			if math.IsNaN(v) {
				return &DataDefectError{Region: r, Tech: t, Field: Attribute(a).String()}
			}
		}
		checks := []struct {
			name string
			m    *mat.Dense
		}{
			{"load_factor", loadFactor},
			{"gamma", gamma},
			{"subsidy", policy.Subsidy},
			{"registration_tax", policy.RegistrationTax},
			{"fuel_tax", policy.FuelTax},
			{"feed_in", policy.FeedIn},
		}
		for _, c := range checks {
			if math.IsNaN(at(c.m, r, t)) {
				return &DataDefectError{Region: r, Tech: t, Field: c.name}
			}
		}
	}
	return nil
}
