package sim

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ftt-sim/ftt-sim/sim/cost"
)

// SalesInputs holds the capacity and share snapshots sales are derived from.
// Cap is the current sub-step, CapDt the previous sub-step and CapLag the previous year.
type SalesInputs struct {
	Cap, CapDt, CapLag *mat.Dense
	Shares, SharesDt   *mat.Dense
	Table              cost.Table
	Dt                 float64
}

// SubStepSales returns the sales of one sub-step and the end-of-life replacements they include.
//
// Replacements follow the year's capacity trend: while capacity is not shrinking,
// CapDt·dt/lifetime retires; when shares fall by less than depreciation, the remainder of
// depreciation is replaced; otherwise nothing is.
func SubStepSales(in SalesInputs) (sales, eol *mat.Dense) {
	regions, techs := in.Cap.Dims()
	sales = mat.NewDense(regions, techs, nil)
	eol = mat.NewDense(regions, techs, nil)
	for r := 0; r < regions; r++ {
		for t := 0; t < techs; t++ {
			lifetime := serviceLifetime(in.Table.At(r, t, cost.Lifetime))
			capGrowth := in.Cap.At(r, t) - in.CapLag.At(r, t)
			capGrowthDt := in.Cap.At(r, t) - in.CapDt.At(r, t)
			shareGrowthDt := in.Shares.At(r, t) - in.SharesDt.At(r, t)
			shareDep := in.SharesDt.At(r, t) * in.Dt / lifetime

			var e float64
			switch {
			case capGrowth >= 0:
				e = in.CapDt.At(r, t) * in.Dt / lifetime
			case -shareDep < shareGrowthDt && shareGrowthDt < 0:
				e = (shareGrowthDt + shareDep) * in.CapLag.At(r, t)
			}
			e = math.Max(e, 0)
			eol.Set(r, t, e)

			if capGrowthDt > 0 {
				sales.Set(r, t, capGrowthDt+e)
			} else {
				sales.Set(r, t, e)
			}
		}
	}
	return sales, eol
}

// HistoricalAdditions estimates the additions of a historical year from the capacity
// change: growth plus retirements when capacity grew, retirements alone otherwise.
func HistoricalAdditions(capacity, capLag *mat.Dense, table cost.Table) *mat.Dense {
	regions, techs := capacity.Dims()
	out := mat.NewDense(regions, techs, nil)
	for r := 0; r < regions; r++ {
		for t := 0; t < techs; t++ {
			retire := capLag.At(r, t) / serviceLifetime(table.At(r, t, cost.Lifetime))
			growth := capacity.At(r, t) - capLag.At(r, t)
			if growth > 0 {
				out.Set(r, t, growth+retire)
			} else {
				out.Set(r, t, retire)
			}
		}
	}
	return out
}

// serviceLifetime floors lifetimes at one year so retirement rates stay finite.
func serviceLifetime(lt float64) float64 {
	if lt < 1 {
		return 1
	}
	return lt
}
