package sim

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ftt-sim/ftt-sim/sim/cost"
)

// Dims names the region and technology axes of a sector.
type Dims struct {
	Regions []string
	Techs   []string
}

// R returns the number of regions.
func (d Dims) R() int { return len(d.Regions) }

// T returns the number of technologies.
func (d Dims) T() int { return len(d.Techs) }

// SegmentOf returns the market segment technology t belongs to.
func SegmentOf(t, segments int) int {
	if segments <= 1 {
		return 0
	}
	return t % segments
}

// segmentTechs lists the technologies of one segment in ascending order.
func segmentTechs(seg, segments, techs int) []int {
	var out []int
	for t := 0; t < techs; t++ {
		if SegmentOf(t, segments) == seg {
			out = append(out, t)
		}
	}
	return out
}

// MarketState is everything a sector carries from one year (or sub-step) to the next.
// Region×technology arrays are R×T; Demand is R×Segments.
type MarketState struct {
	Year int

	Shares       *mat.Dense
	Capacity     *mat.Dense
	Generation   *mat.Dense // service output (electricity, vehicle-km, useful heat)
	LoadFactor   *mat.Dense
	Emissions    *mat.Dense
	Sales        *mat.Dense // year to date
	SubStepSales *mat.Dense // last sub-step only

	Demand *mat.Dense

	Costs      cost.Levelised
	Experience []float64 // global, one entry per technology
	CostTable  cost.Table
}

// NewMarketState allocates a zeroed state.
func NewMarketState(regions, techs, segments int) *MarketState {
	if segments < 1 {
		segments = 1
	}
	return &MarketState{
		Shares:       mat.NewDense(regions, techs, nil),
		Capacity:     mat.NewDense(regions, techs, nil),
		Generation:   mat.NewDense(regions, techs, nil),
		LoadFactor:   mat.NewDense(regions, techs, nil),
		Emissions:    mat.NewDense(regions, techs, nil),
		Sales:        mat.NewDense(regions, techs, nil),
		SubStepSales: mat.NewDense(regions, techs, nil),
		Demand:       mat.NewDense(regions, segments, nil),
		Costs:        cost.NewLevelised(regions, techs),
		Experience:   make([]float64, techs),
		CostTable:    cost.NewTable(regions, techs),
	}
}

// Dims returns the region and technology counts of the state.
func (s *MarketState) Dims() (regions, techs int) {
	return s.Shares.Dims()
}

// Clone deep-copies the state. Time-lag snapshots are always clones, never aliases.
func (s *MarketState) Clone() *MarketState {
	c := &MarketState{
		Year:         s.Year,
		Shares:       copyDense(s.Shares),
		Capacity:     copyDense(s.Capacity),
		Generation:   copyDense(s.Generation),
		LoadFactor:   copyDense(s.LoadFactor),
		Emissions:    copyDense(s.Emissions),
		Sales:        copyDense(s.Sales),
		SubStepSales: copyDense(s.SubStepSales),
		Demand:       copyDense(s.Demand),
		Costs:        s.Costs.Clone(),
		Experience:   append([]float64(nil), s.Experience...),
	}
	if s.CostTable != nil {
		c.CostTable = s.CostTable.Clone()
	}
	return c
}

func copyDense(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}
