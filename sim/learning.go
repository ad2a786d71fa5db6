package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ftt-sim/ftt-sim/sim/cost"
)

// SpilloverForm selects how global additions spill over between technologies.
type SpilloverForm string

const (
	// SpilloverLinear is dW = B·I.
	SpilloverLinear SpilloverForm = "linear"
	// SpilloverCapped is dW_i = Σ_j min(I_j, I_i)·B_ij, so a technology cannot learn
	// more from a neighbour than it deployed itself.
	SpilloverCapped SpilloverForm = "capped"
)

// learningThreshold is the experience below which costs do not learn.
const learningThreshold = 0.1

// GlobalAdditions sums additions over regions.
func GlobalAdditions(additions *mat.Dense) []float64 {
	_, techs := additions.Dims()
	out := make([]float64, techs)
	for t := range out {
		out[t] = floats.Sum(mat.Col(nil, t, additions))
	}
	return out
}

// ExperienceIncrement maps global additions to experience gained through the spill-over matrix.
func ExperienceIncrement(additions []float64, spillover *mat.Dense, form SpilloverForm) []float64 {
	n := len(additions)
	dw := make([]float64, n)
	if form == SpilloverCapped {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				dw[i] += math.Min(additions[j], additions[i]) * spillover.At(i, j)
			}
		}
		return dw
	}
	mat.NewVecDense(n, dw).MulVec(spillover, mat.NewVecDense(n, additions))
	return dw
}

// LearningResult reports what one learning-by-doing update did.
type LearningResult struct {
	Experience []float64
	Increment  []float64
}

// ApplyLearning accumulates experience from this sub-step's additions and lowers the
// learning columns of table relative to base (the cost table at the start of the
// sub-step): c = c_base·(1 + b·dW/W) for technologies with W above the threshold.
func ApplyLearning(table, base cost.Table, experienceDt []float64, additions *mat.Dense, spillover *mat.Dense, form SpilloverForm, columns []cost.Attribute) (LearningResult, error) {
	global := GlobalAdditions(additions)
	dw := ExperienceIncrement(global, spillover, form)
	w := make([]float64, len(dw))
	for t := range dw {
		if math.IsNaN(dw[t]) {
			return LearningResult{}, fmt.Errorf("experience increment for technology %d is NaN", t)
		}
		w[t] = experienceDt[t] + dw[t]
	}

	for t := range w {
		if w[t] <= learningThreshold {
			continue
		}
		for r := 0; r < table.Regions(); r++ {
			factor := 1 + base.At(r, t, cost.LearningExponent)*dw[t]/w[t]
			for _, c := range columns {
				table.Set(r, t, c, base.At(r, t, c)*factor)
			}
		}
	}
	return LearningResult{Experience: w, Increment: dw}, nil
}
