package sim

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ftt-sim/ftt-sim/sim/cost"
)

// Exogenous is an exogenous capacity instruction for one region and technology.
// Whether the value is an absolute target or yearly additions depends on the
// sector's ExogenousMode. The zero value is NoExogenous.
type Exogenous struct {
	set   bool
	value float64
}

// NoExogenous leaves the technology to the endogenous dynamics.
func NoExogenous() Exogenous { return Exogenous{} }

// ExogenousTarget sets an exogenous capacity value.
func ExogenousTarget(v float64) Exogenous { return Exogenous{set: true, value: v} }

// ExogenousFromSentinel converts the input-file encoding, where negative means none.
func ExogenousFromSentinel(v float64) Exogenous {
	if v < 0 {
		return NoExogenous()
	}
	return ExogenousTarget(v)
}

// Value returns the instruction and whether one is set.
func (e Exogenous) Value() (float64, bool) { return e.value, e.set }

// PolicyTable holds the policy inputs of one simulation year.
// Regulation and Exogenous are indexed [region][tech]; nil matrices read as zero
// and nil ShareCeiling/ShareFloor disable the growth limits.
type PolicyTable struct {
	Regulation [][]Regulation
	Exogenous  [][]Exogenous

	Subsidy         *mat.Dense
	FuelTax         *mat.Dense
	FeedIn          *mat.Dense
	RegistrationTax *mat.Dense

	ShareCeiling *mat.Dense
	ShareFloor   *mat.Dense

	CarbonPrice []float64 // per region
}

// NewPolicyTable returns an unregulated policy table with no exogenous instructions.
func NewPolicyTable(regions, techs int) *PolicyTable {
	p := &PolicyTable{
		Regulation: make([][]Regulation, regions),
		Exogenous:  make([][]Exogenous, regions),
	}
	for r := 0; r < regions; r++ {
		p.Regulation[r] = make([]Regulation, techs)
		p.Exogenous[r] = make([]Exogenous, techs)
	}
	return p
}

// RegulationAt returns the regulation of a cell; a missing row means unregulated.
func (p *PolicyTable) RegulationAt(r, t int) Regulation {
	if p == nil || r >= len(p.Regulation) || t >= len(p.Regulation[r]) {
		return Unregulated()
	}
	return p.Regulation[r][t]
}

// ExogenousAt returns the exogenous instruction of a cell; a missing row means none.
func (p *PolicyTable) ExogenousAt(r, t int) Exogenous {
	if p == nil || r >= len(p.Exogenous) || t >= len(p.Exogenous[r]) {
		return NoExogenous()
	}
	return p.Exogenous[r][t]
}

// CostPolicy returns the cost calculator's view of the table.
func (p *PolicyTable) CostPolicy() cost.Policy {
	if p == nil {
		return cost.Policy{}
	}
	return cost.Policy{
		Subsidy:         p.Subsidy,
		RegistrationTax: p.RegistrationTax,
		FuelTax:         p.FuelTax,
		FeedIn:          p.FeedIn,
	}
}

// WithAdditions returns a copy of p whose exogenous instruction in each cell with a
// non-zero extra is the existing value (zero when unset) plus extra. p is not modified;
// the copy shares every other field with it.
func (p *PolicyTable) WithAdditions(extra *mat.Dense) *PolicyTable {
	var out PolicyTable
	if p != nil {
		out = *p
	}
	regions, techs := extra.Dims()
	out.Exogenous = make([][]Exogenous, regions)
	for r := 0; r < regions; r++ {
		out.Exogenous[r] = make([]Exogenous, techs)
		for t := 0; t < techs; t++ {
			cur := p.ExogenousAt(r, t)
			add := extra.At(r, t)
			if add == 0 {
				out.Exogenous[r][t] = cur
				continue
			}
			v, _ := cur.Value()
			out.Exogenous[r][t] = ExogenousTarget(v + add)
		}
	}
	return &out
}

// Validate checks that every populated field matches the sector dimensions.
func (p *PolicyTable) Validate(regions, techs int) error {
	var problems []string
	if len(p.Regulation) != 0 && len(p.Regulation) != regions {
		problems = append(problems, fmt.Sprintf("regulation has %d regions, want %d", len(p.Regulation), regions))
	}
	for r, row := range p.Regulation {
		if len(row) != techs {
			problems = append(problems, fmt.Sprintf("regulation region %d has %d technologies, want %d", r, len(row), techs))
		}
	}
	if len(p.Exogenous) != 0 && len(p.Exogenous) != regions {
		problems = append(problems, fmt.Sprintf("exogenous has %d regions, want %d", len(p.Exogenous), regions))
	}
	for r, row := range p.Exogenous {
		if len(row) != techs {
			problems = append(problems, fmt.Sprintf("exogenous region %d has %d technologies, want %d", r, len(row), techs))
		}
	}
	matrices := []struct {
		name string
		m    *mat.Dense
	}{
		{"subsidy", p.Subsidy},
		{"fuel_tax", p.FuelTax},
		{"feed_in", p.FeedIn},
		{"registration_tax", p.RegistrationTax},
		{"share_ceiling", p.ShareCeiling},
		{"share_floor", p.ShareFloor},
	}
	for _, m := range matrices {
		if m.m == nil {
			continue
		}
		if r, c := m.m.Dims(); r != regions || c != techs {
			problems = append(problems, fmt.Sprintf("%s is %dx%d, want %dx%d", m.name, r, c, regions, techs))
		}
	}
	if (p.ShareCeiling == nil) != (p.ShareFloor == nil) {
		problems = append(problems, "share_ceiling and share_floor must be set together")
	}
	if p.CarbonPrice != nil && len(p.CarbonPrice) != regions {
		problems = append(problems, fmt.Sprintf("carbon_price has %d regions, want %d", len(p.CarbonPrice), regions))
	}
	if len(problems) > 0 {
		return &ConfigError{Component: "policy", Problems: problems}
	}
	return nil
}

// String summarises the active instructions, for debug logging.
func (p *PolicyTable) String() string {
	var regs, exos int
	for r := range p.Regulation {
		for _, reg := range p.Regulation[r] {
			if reg.Active() {
				regs++
			}
		}
	}
	for r := range p.Exogenous {
		for _, e := range p.Exogenous[r] {
			if _, ok := e.Value(); ok {
				exos++
			}
		}
	}
	parts := []string{fmt.Sprintf("regulated=%d", regs), fmt.Sprintf("exogenous=%d", exos)}
	if p.ShareCeiling != nil {
		parts = append(parts, "growth-limits")
	}
	return "policy{" + strings.Join(parts, " ") + "}"
}
