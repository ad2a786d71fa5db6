package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Integrator selects the per-sub-step integration scheme of the substitution kernel.
type Integrator int

const (
	// IntegratorRK4 is the classical fourth-order Runge-Kutta step.
	IntegratorRK4 Integrator = iota
	// IntegratorEuler is a single forward-Euler step, kept for convergence studies.
	IntegratorEuler
)

// growthLimitWidth is the share distance over which the ceiling/floor limits switch on.
const growthLimitWidth = 0.1

// RegionFlowInputs is one region's view of the substitution kernel inputs.
// All slices have one entry per technology.
type RegionFlowInputs struct {
	Shares   []float64 // shares at the start of the sub-step
	Cost     []float64 // generalised cost
	Std      []float64 // generalised cost std
	Gate     []float64 // IsRegulated per technology
	Eligible []bool
	Rates    *mat.Dense // T×T substitution frequencies

	// Optional growth limits; nil disables them.
	Ceiling []float64
	Floor   []float64

	Segments   int
	Dt         float64
	TimeScale  float64
	Integrator Integrator
}

// Eligible marks the technologies that take part in substitution: positive share,
// a non-zero cost and std, and (when excludeExogenous is set) no exogenous instruction.
func Eligible(shares, cost, std []float64, exo []Exogenous, excludeExogenous bool) []bool {
	out := make([]bool, len(shares))
	for t := range shares {
		out[t] = shares[t] > 0 && cost[t] != 0 && std[t] != 0
		if out[t] && excludeExogenous && t < len(exo) {
			if _, ok := exo[t].Value(); ok {
				out[t] = false
			}
		}
	}
	return out
}

// PairwiseFlows returns the T×T share-flow matrix of one sub-step. Entry (i,j) is the
// share gained by i from j; the matrix is exactly skew-symmetric.
func PairwiseFlows(in RegionFlowInputs) *mat.Dense {
	n := len(in.Shares)
	flows := mat.NewDense(n, n, nil)
	timeScale := in.TimeScale
	if timeScale <= 0 {
		timeScale = 1
	}

	gmax := make([]float64, n)
	gmin := make([]float64, n)
	for t := 0; t < n; t++ {
		gmax[t], gmin[t] = 1, 1
		if in.Ceiling != nil && in.Floor != nil {
			gmax[t] = math.Tanh(1.25 * (in.Ceiling[t] - in.Shares[t]) / growthLimitWidth)
			gmin[t] = math.Tanh(1.25 * (in.Shares[t] - in.Floor[t]) / growthLimitWidth)
		}
	}

	for i := 0; i < n; i++ {
		if !in.Eligible[i] {
			continue
		}
		for j := 0; j < i; j++ {
			if !in.Eligible[j] || SegmentOf(i, in.Segments) != SegmentOf(j, in.Segments) {
				continue
			}
			fij, fji := preferences(in.Cost[i], in.Cost[j], in.Std[i], in.Std[j], in.Gate[i], in.Gate[j])
			rate := in.Rates.At(i, j)*fij*gmax[i]*gmin[j] - in.Rates.At(j, i)*fji*gmax[j]*gmin[i]

			var dS float64
			if in.Integrator == IntegratorEuler {
				dS = in.Shares[i] * in.Shares[j] * rate * in.Dt / timeScale
			} else {
				dS = rk4Step(in.Shares[i], in.Shares[j], rate, in.Dt) / timeScale
			}
			flows.Set(i, j, dS)
			flows.Set(j, i, -dS)
		}
	}
	return flows
}

// preferences returns the regulation-adjusted probabilities that i is preferred over j
// and j over i.
func preferences(ci, cj, di, dj, ri, rj float64) (fij, fji float64) {
	dF := math.Sqrt2 * math.Sqrt(di*di+dj*dj)
	f := 0.5 * (1 + math.Tanh(1.25*(cj-ci)/dF))
	fij = f*(1-ri)*(1-rj) + rj*(1-ri) + 0.5*ri*rj
	fji = (1-f)*(1-rj)*(1-ri) + ri*(1-rj) + 0.5*rj*ri
	return fij, fji
}

// rk4Step integrates dS_i/dt = S_i S_j rate over dt with preference and frequency
// frozen at the start of the step. The product form keeps S_i + S_j constant.
func rk4Step(si, sj, rate, dt float64) float64 {
	k1 := si * sj * rate
	k2 := (si + dt*k1/2) * (sj - dt*k1/2) * rate
	k3 := (si + dt*k2/2) * (sj - dt*k2/2) * rate
	k4 := (si + dt*k3) * (sj - dt*k3) * rate
	return (k1 + 2*k2 + 2*k3 + k4) * dt / 6
}

// EndogenousShares applies the row sums of flows to start.
func EndogenousShares(start []float64, flows *mat.Dense) []float64 {
	out := make([]float64, len(start))
	for i := range start {
		out[i] = start[i] + floats.Sum(flows.RawRowView(i))
	}
	return out
}
