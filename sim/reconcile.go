package sim

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ExogenousMode says how an Exogenous value is read by the reconciler.
type ExogenousMode int

const (
	// ExogenousCapacityTarget treats the value as the capacity the technology must reach.
	ExogenousCapacityTarget ExogenousMode = iota
	// ExogenousAdditions treats the value as yearly capacity additions, spread over sub-steps.
	ExogenousAdditions
)

func (m ExogenousMode) String() string {
	switch m {
	case ExogenousCapacityTarget:
		return "capacity-target"
	case ExogenousAdditions:
		return "additions"
	default:
		return fmt.Sprintf("ExogenousMode(%d)", int(m))
	}
}

// ParseExogenousMode maps a mode name ("capacity-target" or "additions") onto an ExogenousMode.
func ParseExogenousMode(name string) (ExogenousMode, error) {
	for _, m := range []ExogenousMode{ExogenousCapacityTarget, ExogenousAdditions} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown exogenous mode %q; valid: capacity-target, additions", name)
}

// ReconcileInputs is one region's view of the reconciler inputs, one entry per technology.
type ReconcileInputs struct {
	EndoShares []float64
	EndoCap    []float64
	PrevCap    []float64 // capacity at the start of the sub-step
	Gate       []float64
	Regulation []Regulation
	Exogenous  []Exogenous

	Mode          ExogenousMode
	Segments      int
	Dt            float64
	ValveFraction float64
	ValveLifetime float64
}

// ReconcileResult holds the reconciled shares and the capacity corrections behind them.
type ReconcileResult struct {
	Shares     []float64
	Regulatory []float64 // dU_REG
	Exogenous  []float64 // dU_exo after the valve
	ValveScale []float64 // per segment; 1 when the valve did not engage
	Dropped    []int     // technologies whose exogenous instruction lost to regulation
}

// Reconcile blends the endogenous capacity with regulatory corrections and exogenous
// instructions and renormalises shares inside each segment.
func Reconcile(in ReconcileInputs) ReconcileResult {
	n := len(in.EndoShares)
	segments := in.Segments
	if segments < 1 {
		segments = 1
	}
	res := ReconcileResult{
		Shares:     make([]float64, n),
		Regulatory: make([]float64, n),
		Exogenous:  make([]float64, n),
		ValveScale: make([]float64, segments),
	}

	for seg := 0; seg < segments; seg++ {
		techs := segmentTechs(seg, segments, n)
		var prevTotal, endoTotal float64
		for _, t := range techs {
			prevTotal += in.PrevCap[t]
			endoTotal += in.EndoCap[t]
		}

		for _, t := range techs {
			res.Regulatory[t] = -(in.EndoCap[t] - in.EndoShares[t]*prevTotal) * in.Gate[t]

			v, ok := in.Exogenous[t].Value()
			if !ok {
				continue
			}
			var dU float64
			switch in.Mode {
			case ExogenousAdditions:
				dU = v * in.Dt
				if limit, capped := in.Regulation[t].Limit(); capped && in.EndoCap[t]+dU > limit {
					res.Dropped = append(res.Dropped, t)
					continue
				}
			default:
				if limit, capped := in.Regulation[t].Limit(); capped && v > limit {
					res.Dropped = append(res.Dropped, t)
					continue
				}
				dU = v - (in.EndoCap[t] + res.Regulatory[t])
			}
			res.Exogenous[t] = dU
		}

		// safety valve on total exogenous additions
		res.ValveScale[seg] = 1
		var exoTotal float64
		for _, t := range techs {
			exoTotal += res.Exogenous[t]
		}
		lifetime := in.ValveLifetime
		if lifetime <= 0 {
			lifetime = 1
		}
		limit := in.ValveFraction * endoTotal / lifetime
		if in.Mode == ExogenousAdditions {
			limit *= in.Dt
		}
		if in.ValveFraction > 0 && exoTotal > limit && limit > 0 {
			scale := limit / exoTotal
			res.ValveScale[seg] = scale
			for _, t := range techs {
				res.Exogenous[t] *= scale
			}
		}

		var denom float64
		for _, t := range techs {
			denom += in.EndoCap[t] + res.Regulatory[t] + res.Exogenous[t]
		}
		for _, t := range techs {
			if denom == 0 {
				res.Shares[t] = in.EndoShares[t]
				continue
			}
			res.Shares[t] = (in.EndoCap[t] + res.Regulatory[t] + res.Exogenous[t]) / denom
		}
	}
	return res
}

// shareSum returns the total of a region's shares.
func shareSum(shares []float64) float64 { return floats.Sum(shares) }
