package trace

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ShareStats describes one technology's shares across regions in the final recorded year.
type ShareStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// RunSummary aggregates statistics from a RunTrace.
type RunSummary struct {
	YearsRecorded    int                   `json:"years_recorded"`
	SubStepsRecorded int                   `json:"sub_steps_recorded"`
	FirstYear        int                   `json:"first_year"`
	LastYear         int                   `json:"last_year"`
	FinalShares      map[string]ShareStats `json:"final_shares"`      // tech → stats over regions
	EmissionsByYear  map[int]float64       `json:"emissions_by_year"` // sum over regions and technologies
	LeadingTech      string                `json:"leading_tech"`      // largest mean share in the final year
}

// Summarize computes aggregate statistics from a RunTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *RunTrace) *RunSummary {
	summary := &RunSummary{
		FinalShares:     make(map[string]ShareStats),
		EmissionsByYear: make(map[int]float64),
	}
	if rt == nil || len(rt.Years) == 0 {
		if rt != nil {
			summary.SubStepsRecorded = len(rt.SubSteps)
		}
		return summary
	}

	summary.YearsRecorded = len(rt.Years)
	summary.SubStepsRecorded = len(rt.SubSteps)
	summary.FirstYear = rt.Years[0].Year
	summary.LastYear = rt.Years[0].Year
	final := rt.Years[0]
	for _, y := range rt.Years {
		if y.Year < summary.FirstYear {
			summary.FirstYear = y.Year
		}
		if y.Year >= summary.LastYear {
			summary.LastYear = y.Year
			final = y
		}
		for _, reg := range y.Regions {
			for _, tr := range reg.Techs {
				summary.EmissionsByYear[y.Year] += tr.Emissions
			}
		}
	}

	byTech := make(map[string][]float64)
	var order []string
	for _, reg := range final.Regions {
		for _, tr := range reg.Techs {
			if _, seen := byTech[tr.Tech]; !seen {
				order = append(order, tr.Tech)
			}
			byTech[tr.Tech] = append(byTech[tr.Tech], tr.Share)
		}
	}
	sort.Strings(order)
	best := -1.0
	for _, tech := range order {
		shares := byTech[tech]
		mean, std := stat.MeanStdDev(shares, nil)
		if len(shares) < 2 {
			std = 0
		}
		summary.FinalShares[tech] = ShareStats{
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(shares),
			Max:    floats.Max(shares),
		}
		if mean > best {
			best = mean
			summary.LeadingTech = tech
		}
	}
	return summary
}
