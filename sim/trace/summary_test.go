package trace

import (
	"math"
	"testing"
)

func yearWithShares(year int, shares map[string][]float64, emissions float64) YearRecord {
	rec := YearRecord{Sector: "heat", Year: year}
	regions := 0
	for _, s := range shares {
		regions = len(s)
	}
	for r := 0; r < regions; r++ {
		reg := RegionRecord{Region: string(rune('A' + r))}
		for tech, s := range shares {
			reg.Techs = append(reg.Techs, TechRecord{Tech: tech, Share: s[r], Emissions: emissions})
		}
		rec.Regions = append(rec.Regions, reg)
	}
	return rec
}

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	rt := NewRunTrace(TraceConfig{Level: TraceLevelYears})

	// WHEN summarized
	summary := Summarize(rt)

	// THEN all counts are zero
	if summary.YearsRecorded != 0 || summary.SubStepsRecorded != 0 {
		t.Errorf("expected 0 records, got %d years %d sub-steps", summary.YearsRecorded, summary.SubStepsRecorded)
	}
	if len(summary.FinalShares) != 0 {
		t.Error("expected empty final shares")
	}
	if summary.LeadingTech != "" {
		t.Errorf("expected no leading tech, got %q", summary.LeadingTech)
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.YearsRecorded != 0 {
		t.Errorf("expected 0 years, got %d", summary.YearsRecorded)
	}
}

func TestSummarize_FinalYearShareStatistics(t *testing.T) {
	// GIVEN two years, the later one with known shares over two regions
	rt := NewRunTrace(TraceConfig{Level: TraceLevelYears})
	rt.RecordYear(yearWithShares(2020, map[string][]float64{"gas": {1, 1}, "hp": {0, 0}}, 2))
	rt.RecordYear(yearWithShares(2021, map[string][]float64{"gas": {0.6, 0.2}, "hp": {0.4, 0.8}}, 1))

	// WHEN summarized
	summary := Summarize(rt)

	// THEN statistics describe 2021
	if summary.FirstYear != 2020 || summary.LastYear != 2021 {
		t.Errorf("expected years 2020-2021, got %d-%d", summary.FirstYear, summary.LastYear)
	}
	hp := summary.FinalShares["hp"]
	if math.Abs(hp.Mean-0.6) > 1e-12 {
		t.Errorf("expected hp mean 0.6, got %v", hp.Mean)
	}
	if hp.Min != 0.4 || hp.Max != 0.8 {
		t.Errorf("expected hp range [0.4, 0.8], got [%v, %v]", hp.Min, hp.Max)
	}
	wantStd := math.Sqrt(0.08) // sample std of {0.4, 0.8}
	if math.Abs(hp.StdDev-wantStd) > 1e-12 {
		t.Errorf("expected hp std %v, got %v", wantStd, hp.StdDev)
	}
	if summary.LeadingTech != "hp" {
		t.Errorf("expected leading tech hp, got %q", summary.LeadingTech)
	}
}

func TestSummarize_EmissionsSummedPerYear(t *testing.T) {
	// GIVEN 2 regions × 2 techs with 1.5 emissions each
	rt := NewRunTrace(TraceConfig{Level: TraceLevelYears})
	rt.RecordYear(yearWithShares(2030, map[string][]float64{"a": {0.5, 0.5}, "b": {0.5, 0.5}}, 1.5))

	summary := Summarize(rt)

	if got := summary.EmissionsByYear[2030]; math.Abs(got-6) > 1e-12 {
		t.Errorf("expected 6 total emissions, got %v", got)
	}
}
