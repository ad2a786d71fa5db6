package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RampShape is the form of the mandate's yearly share schedule.
type RampShape string

const (
	RampLinear  RampShape = "linear"
	RampSigmoid RampShape = "sigmoid"
)

// AfterEndPolicy says what the mandate does once EndYear is reached.
type AfterEndPolicy string

const (
	AfterEndOff  AfterEndPolicy = "off"
	AfterEndHold AfterEndPolicy = "hold"
)

// MandateMode selects how a mandate acts on the market.
type MandateMode string

const (
	// MandateSalesShare lifts green technologies to a minimum share of sub-step sales.
	MandateSalesShare MandateMode = "sales-share"
	// MandateExogenousSales moves a slice of the fleet from fossil to green technologies
	// every year through exogenous additions.
	MandateExogenousSales MandateMode = "exogenous-sales"
)

const (
	// sigmoidHalfPoint shapes the sigmoid ramp x/(x+k).
	sigmoidHalfPoint = 0.8
	// An exogenous-sales mandate pauses in a region-segment whose fossil share is below
	// fossilStopMultiple times the yearly amount, or whose green share is above
	// 1 - greenStopMultiple times it.
	fossilStopMultiple = 1.8
	greenStopMultiple  = 2
)

// MandateConfig configures a green-technology mandate.
type MandateConfig struct {
	Enabled   bool
	Mode      MandateMode // empty means MandateSalesShare
	StartYear int
	EndYear   int
	Ceiling   float64
	Ramp      RampShape
	AfterEnd  AfterEndPolicy
	Green     []int // technology indices

	// exogenous-sales only
	Fossil      []int   // technologies that give up the mandated additions
	Replacement float64 // yearly fleet fraction replaced at the full ramp, e.g. 1/lifetime
}

func (m MandateConfig) mode() MandateMode {
	if m.Mode == "" {
		return MandateSalesShare
	}
	return m.Mode
}

// Validate checks the mandate window and green technology indices.
func (m MandateConfig) Validate(techs int) error {
	if !m.Enabled {
		return nil
	}
	var problems []string
	if m.EndYear <= m.StartYear {
		problems = append(problems, fmt.Sprintf("end year %d must be after start year %d", m.EndYear, m.StartYear))
	}
	if m.Ceiling <= 0 || m.Ceiling > 1 || math.IsNaN(m.Ceiling) {
		problems = append(problems, fmt.Sprintf("ceiling must be in (0, 1], got %v", m.Ceiling))
	}
	switch m.Ramp {
	case RampLinear, RampSigmoid:
	default:
		problems = append(problems, fmt.Sprintf("unknown ramp %q", m.Ramp))
	}
	switch m.AfterEnd {
	case AfterEndOff, AfterEndHold:
	default:
		problems = append(problems, fmt.Sprintf("unknown after_end %q", m.AfterEnd))
	}
	if len(m.Green) == 0 {
		problems = append(problems, "no green technologies")
	}
	for _, g := range m.Green {
		if g < 0 || g >= techs {
			problems = append(problems, fmt.Sprintf("green technology index %d out of range [0, %d)", g, techs))
		}
	}
	switch m.mode() {
	case MandateSalesShare:
		if m.Ramp == RampSigmoid {
			problems = append(problems, "sigmoid ramp applies to exogenous-sales mandates only")
		}
	case MandateExogenousSales:
		if len(m.Fossil) == 0 {
			problems = append(problems, "no fossil technologies")
		}
		green := m.GreenMask(techs)
		for _, f := range m.Fossil {
			switch {
			case f < 0 || f >= techs:
				problems = append(problems, fmt.Sprintf("fossil technology index %d out of range [0, %d)", f, techs))
			case green[f]:
				problems = append(problems, fmt.Sprintf("technology %d is both green and fossil", f))
			}
		}
		if m.Replacement <= 0 || m.Replacement > 1 || math.IsNaN(m.Replacement) {
			problems = append(problems, fmt.Sprintf("replacement must be in (0, 1], got %v", m.Replacement))
		}
		if m.AfterEnd == AfterEndHold {
			problems = append(problems, "exogenous-sales mandates stop at the end year")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown mandate mode %q", m.Mode))
	}
	if len(problems) > 0 {
		return &ConfigError{Component: "mandate", Problems: problems}
	}
	return nil
}

// MandateShare returns the minimum green share of sales required in year. It is zero
// for exogenous-sales mandates.
func (m MandateConfig) MandateShare(year int) float64 {
	if !m.Enabled || m.mode() != MandateSalesShare || year < m.StartYear {
		return 0
	}
	if year >= m.EndYear {
		if m.AfterEnd == AfterEndHold {
			return m.Ceiling
		}
		return 0
	}
	return m.Ceiling * float64(year-m.StartYear) / float64(m.EndYear-m.StartYear)
}

// ExogenousSalesShare returns the fleet fraction an exogenous-sales mandate moves from
// fossil to green technologies in year: Ceiling × Replacement × ramp, where the ramp at
// x = (year-start+1)/(end-start) is x (linear) or x/(x+0.8) (sigmoid). Zero outside
// [StartYear, EndYear) and for sales-share mandates.
func (m MandateConfig) ExogenousSalesShare(year int) float64 {
	if !m.Enabled || m.mode() != MandateExogenousSales || year < m.StartYear || year >= m.EndYear {
		return 0
	}
	x := float64(year-m.StartYear+1) / float64(m.EndYear-m.StartYear)
	if m.Ramp == RampSigmoid {
		x = x / (x + sigmoidHalfPoint)
	}
	return m.Ceiling * m.Replacement * x
}

// ExogenousSalesAdditions converts an exogenous-sales mandate into yearly capacity
// additions (R×T) from last year's shares and capacity. In each region-segment the
// amount ExogenousSalesShare(year) × fleet goes to the green technologies in proportion
// to their shares (equally when they hold none) and is taken from the fossil
// technologies in proportion to theirs. Region-segments too close to either end of the
// transition are left alone. Returns the additions and the number of region-segments
// that received any; nil when the mandate is inactive in year.
func (m MandateConfig) ExogenousSalesAdditions(shares, capacity *mat.Dense, segments, year int) (*mat.Dense, int) {
	amount := m.ExogenousSalesShare(year)
	if amount <= 0 {
		return nil, 0
	}
	if segments < 1 {
		segments = 1
	}
	regions, techs := shares.Dims()
	green := m.GreenMask(techs)
	fossil := make([]bool, techs)
	for _, f := range m.Fossil {
		if f >= 0 && f < techs && !green[f] {
			fossil[f] = true
		}
	}

	out := mat.NewDense(regions, techs, nil)
	engaged := 0
	for seg := 0; seg < segments; seg++ {
		members := segmentTechs(seg, segments, techs)
		var greens, fossils []int
		for _, t := range members {
			switch {
			case green[t]:
				greens = append(greens, t)
			case fossil[t]:
				fossils = append(fossils, t)
			}
		}
		if len(greens) == 0 || len(fossils) == 0 {
			continue
		}
		for r := 0; r < regions; r++ {
			var sumGreen, sumFossil, fleet float64
			for _, g := range greens {
				sumGreen += shares.At(r, g)
			}
			for _, f := range fossils {
				sumFossil += shares.At(r, f)
			}
			for _, t := range members {
				fleet += capacity.At(r, t)
			}
			if fleet <= 0 || sumFossil < fossilStopMultiple*amount || sumGreen > 1-greenStopMultiple*amount {
				continue
			}
			moved := amount * fleet
			for _, g := range greens {
				frac := 1 / float64(len(greens))
				if sumGreen > 0 {
					frac = shares.At(r, g) / sumGreen
				}
				out.Set(r, g, moved*frac)
			}
			for _, f := range fossils {
				out.Set(r, f, -moved*shares.At(r, f)/sumFossil)
			}
			engaged++
		}
	}
	return out, engaged
}

// GreenMask returns a per-technology membership mask of the green set.
func (m MandateConfig) GreenMask(techs int) []bool {
	mask := make([]bool, techs)
	for _, g := range m.Green {
		if g >= 0 && g < techs {
			mask[g] = true
		}
	}
	return mask
}

// ApplyMandate lifts green sales to share of each region's segment sales, scaling
// non-green sales down so the segment total is unchanged. Capacity moves with the
// sales change and is floored at zero. Both matrices are modified in place.
//
// A region with no green sales borrows the distribution of global green sales, taken
// from sales as passed in so regions do not see each other's adjustments; with no green
// sales anywhere the target is split equally. Returns the number of adjusted
// region-segments.
func ApplyMandate(sales, capacity *mat.Dense, green []bool, share float64, segments int) int {
	if share <= 0 {
		return 0
	}
	if segments < 1 {
		segments = 1
	}
	regions, techs := sales.Dims()
	pre := mat.DenseCopyOf(sales)
	adjusted := 0

	for seg := 0; seg < segments; seg++ {
		var greens, others []int
		for _, t := range segmentTechs(seg, segments, techs) {
			if green[t] {
				greens = append(greens, t)
			} else {
				others = append(others, t)
			}
		}
		if len(greens) == 0 {
			continue
		}

		pool := make([]float64, len(greens))
		var poolTotal float64
		for i, g := range greens {
			for r := 0; r < regions; r++ {
				pool[i] += pre.At(r, g)
			}
			poolTotal += pool[i]
		}

		for r := 0; r < regions; r++ {
			before := make(map[int]float64, len(greens)+len(others))
			var total, greenTotal, otherTotal float64
			for _, g := range greens {
				before[g] = sales.At(r, g)
				greenTotal += before[g]
			}
			for _, o := range others {
				before[o] = sales.At(r, o)
				otherTotal += before[o]
			}
			total = greenTotal + otherTotal
			if total <= 0 || greenTotal/total >= share {
				continue
			}
			target := total * share

			switch {
			case greenTotal > 0:
				for _, g := range greens {
					sales.Set(r, g, before[g]*target/greenTotal)
				}
			case poolTotal > 0:
				for i, g := range greens {
					sales.Set(r, g, target*pool[i]/poolTotal)
				}
			default:
				for _, g := range greens {
					sales.Set(r, g, target/float64(len(greens)))
				}
			}

			remaining := total - target
			switch {
			case otherTotal > 0:
				for _, o := range others {
					sales.Set(r, o, before[o]*remaining/otherTotal)
				}
			case len(others) > 0:
				for _, o := range others {
					sales.Set(r, o, remaining/float64(len(others)))
				}
			}

			for t, b := range before {
				capacity.Set(r, t, math.Max(capacity.At(r, t)+sales.At(r, t)-b, 0))
			}
			adjusted++
		}
	}
	return adjusted
}
