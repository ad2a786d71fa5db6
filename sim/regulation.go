package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

type regulationKind uint8

const (
	regulationNone regulationKind = iota
	regulationBanned
	regulationCapped
)

// Regulation is the regulatory instruction for one region and technology.
// The zero value is Unregulated.
type Regulation struct {
	kind  regulationKind
	limit float64
}

// Unregulated places no limit on the technology.
func Unregulated() Regulation { return Regulation{} }

// Banned forbids any capacity of the technology.
func Banned() Regulation { return Regulation{kind: regulationBanned} }

// CappedAt limits capacity to limit. A non-positive limit is a ban.
func CappedAt(limit float64) Regulation {
	if limit <= 0 {
		return Banned()
	}
	return Regulation{kind: regulationCapped, limit: limit}
}

// RegulationFromSentinel converts the input-file encoding: negative means no
// regulation, 0 a ban, anything else a capacity cap.
func RegulationFromSentinel(v float64) Regulation {
	switch {
	case v < 0:
		return Unregulated()
	case v == 0:
		return Banned()
	default:
		return CappedAt(v)
	}
}

// Sentinel converts back to the input-file encoding.
func (r Regulation) Sentinel() float64 {
	switch r.kind {
	case regulationBanned:
		return 0
	case regulationCapped:
		return r.limit
	default:
		return -1
	}
}

// Active reports whether the regulation limits capacity at all.
func (r Regulation) Active() bool { return r.kind != regulationNone }

// Limit returns the capacity limit (0 for a ban) and whether one exists.
func (r Regulation) Limit() (float64, bool) {
	switch r.kind {
	case regulationBanned:
		return 0, true
	case regulationCapped:
		return r.limit, true
	default:
		return 0, false
	}
}

func (r Regulation) String() string {
	switch r.kind {
	case regulationBanned:
		return "banned"
	case regulationCapped:
		return fmt.Sprintf("capped(%g)", r.limit)
	default:
		return "unregulated"
	}
}

// IsRegulated returns a smooth [0,1] indicator of how far current capacity has run
// into the regulation. Unregulated is exactly 0 and banned exactly 1; a cap switches
// on over roughly 10% either side of the limit.
func IsRegulated(current float64, reg Regulation) float64 {
	switch reg.kind {
	case regulationNone:
		return 0
	case regulationBanned:
		return 1
	}
	return 0.5 + 0.5*math.Tanh(1.5+10*(current-reg.limit)/reg.limit)
}

// RegulationGate evaluates IsRegulated for every region and technology.
func RegulationGate(capacity *mat.Dense, policy *PolicyTable) *mat.Dense {
	regions, techs := capacity.Dims()
	gate := mat.NewDense(regions, techs, nil)
	for r := 0; r < regions; r++ {
		for t := 0; t < techs; t++ {
			gate.Set(r, t, IsRegulated(capacity.At(r, t), policy.RegulationAt(r, t)))
		}
	}
	return gate
}
