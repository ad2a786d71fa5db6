package sim

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// negativeShareSlack absorbs round-off below zero.
const negativeShareSlack = 1e-12

// stepContext locates a check in the run.
type stepContext struct {
	sector  string
	dims    Dims
	year    int
	subStep int
}

func (c stepContext) region(r int) string {
	if r < len(c.dims.Regions) {
		return c.dims.Regions[r]
	}
	return ""
}

func (c stepContext) tech(t int) string {
	if t < len(c.dims.Techs) {
		return c.dims.Techs[t]
	}
	return ""
}

// checkShares verifies, for every active region, that shares are finite and non-negative
// and sum to total within tol.
func checkShares(ctx stepContext, shares *mat.Dense, active []bool, total, tol float64) []InvariantViolation {
	var out []InvariantViolation
	regions, techs := shares.Dims()
	for r := 0; r < regions; r++ {
		if active != nil && !active[r] {
			continue
		}
		row := shares.RawRowView(r)
		for t := 0; t < techs; t++ {
			v := row[t]
			switch {
			case math.IsNaN(v) || math.IsInf(v, 0):
				out = append(out, ctx.violation(r, t, ViolationNonFinite, v))
			case v < -negativeShareSlack:
				out = append(out, ctx.violation(r, t, ViolationNegativeShare, v))
			}
		}
		if sum := floats.Sum(row); math.Abs(sum-total) > tol {
			out = append(out, ctx.violation(r, -1, ViolationShareSum, sum))
		}
	}
	return out
}

// checkExperience verifies that experience did not fall.
func checkExperience(ctx stepContext, before, after []float64) []InvariantViolation {
	var out []InvariantViolation
	for t := range after {
		if t < len(before) && after[t] < before[t] {
			v := ctx.violation(-1, t, ViolationExperienceDecline, after[t]-before[t])
			out = append(out, v)
		}
	}
	return out
}

func (c stepContext) violation(r, t int, kind ViolationKind, value float64) InvariantViolation {
	v := InvariantViolation{
		Sector:  c.sector,
		Year:    c.year,
		SubStep: c.subStep,
		Kind:    kind,
		Value:   value,
	}
	if r >= 0 {
		v.Region = c.region(r)
	}
	if t >= 0 {
		v.Tech = c.tech(t)
	}
	return v
}

// reportViolations logs every violation; in strict mode it also returns them as an error.
func reportViolations(violations []InvariantViolation, strict bool) error {
	if len(violations) == 0 {
		return nil
	}
	for _, v := range violations {
		logrus.WithFields(logrus.Fields{
			"sector":   v.Sector,
			"region":   v.Region,
			"tech":     v.Tech,
			"year":     v.Year,
			"sub_step": v.SubStep,
			"value":    v.Value,
		}).Warnf("invariant violated: %s", v.Kind)
	}
	if strict {
		return &InvariantError{Violations: violations}
	}
	return nil
}
