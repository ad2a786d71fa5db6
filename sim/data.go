package sim

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Substitution holds the fixed technology×technology matrices of a sector.
type Substitution struct {
	Rates     *mat.Dense // pairwise replacement frequencies A_ij
	Spillover *mat.Dense // learning spill-over B_ij
}

// Validate checks that both matrices are techs×techs.
func (s Substitution) Validate(techs int) error {
	var problems []string
	for _, m := range []struct {
		name string
		m    *mat.Dense
	}{{"substitution", s.Rates}, {"spillover", s.Spillover}} {
		if m.m == nil {
			problems = append(problems, m.name+" matrix is missing")
			continue
		}
		if r, c := m.m.Dims(); r != techs || c != techs {
			problems = append(problems, fmt.Sprintf("%s matrix is %dx%d, want %dx%d", m.name, r, c, techs, techs))
		}
	}
	if len(problems) > 0 {
		return &ConfigError{Component: "substitution", Problems: problems}
	}
	return nil
}

// HistoryYear is the observed data of one historical year.
type HistoryYear struct {
	Generation *mat.Dense // R×T service output
	LoadFactor *mat.Dense // R×T; nil keeps the previous year's (or default) load factors
}

// ExogenousData is the year-indexed input a sector is driven by.
type ExogenousData struct {
	Demand            map[int]*mat.Dense // R×Segments
	History           map[int]HistoryYear
	Policies          map[int]*PolicyTable
	DefaultLoadFactor *mat.Dense // R×T load factor of technologies entering a region
	Gamma             *mat.Dense // R×T intangible preference; nil means zero
}

// PolicyFor returns the policy of the latest year not after year. Policies persist
// until replaced; with none defined the result is unregulated.
func (d ExogenousData) PolicyFor(year, regions, techs int) *PolicyTable {
	years := make([]int, 0, len(d.Policies))
	for y := range d.Policies {
		if y <= year {
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return NewPolicyTable(regions, techs)
	}
	sort.Ints(years)
	return d.Policies[years[len(years)-1]]
}
