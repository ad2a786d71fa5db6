package cost

import (
	"gonum.org/v1/gonum/mat"
)

// Table is the cost attribute table: one techs×NumAttributes matrix per region.
type Table []*mat.Dense

// NewTable allocates a zeroed table for the given dimensions.
func NewTable(regions, techs int) Table {
	t := make(Table, regions)
	for r := range t {
		t[r] = mat.NewDense(techs, int(NumAttributes), nil)
	}
	return t
}

// Regions returns the number of regions in the table.
func (t Table) Regions() int { return len(t) }

// Techs returns the number of technologies per region (0 for an empty table).
func (t Table) Techs() int {
	if len(t) == 0 {
		return 0
	}
	rows, _ := t[0].Dims()
	return rows
}

// At returns one attribute of one technology in one region.
func (t Table) At(region, tech int, a Attribute) float64 {
	return t[region].At(tech, int(a))
}

// Set writes one attribute of one technology in one region.
func (t Table) Set(region, tech int, a Attribute, v float64) {
	t[region].Set(tech, int(a), v)
}

// Row returns the attribute row of a technology. The slice aliases the table.
func (t Table) Row(region, tech int) []float64 {
	return t[region].RawRowView(tech)
}

// Clone deep-copies the table.
func (t Table) Clone() Table {
	c := make(Table, len(t))
	for r, m := range t {
		c[r] = mat.DenseCopyOf(m)
	}
	return c
}

// CopyColumns overwrites the given attribute columns with the values held in src.
func (t Table) CopyColumns(src Table, cols ...Attribute) {
	for r := range t {
		techs, _ := t[r].Dims()
		for tech := 0; tech < techs; tech++ {
			for _, a := range cols {
				t[r].Set(tech, int(a), src[r].At(tech, int(a)))
			}
		}
	}
}

// RefreshCarbon rewrites the CarbonCost column as carbon price × emissions factor.
// carbonPrice is indexed by region; a nil slice clears the column.
func RefreshCarbon(t Table, carbonPrice []float64) {
	for r := range t {
		price := 0.0
		if carbonPrice != nil {
			price = carbonPrice[r]
		}
		techs, _ := t[r].Dims()
		for tech := 0; tech < techs; tech++ {
			t[r].Set(tech, int(CarbonCost), price*t[r].At(tech, int(EmissionsFactor)))
		}
	}
}
