package sim

import (
	"github.com/ftt-sim/ftt-sim/sim/trace"
)

// TraceRecorder adapts a trace.RunTrace to the Recorder interface by copying the
// solved state into pure-data records.
type TraceRecorder struct {
	Trace *trace.RunTrace
	Dims  Dims
}

// NewTraceRecorder returns a Recorder writing into rt.
func NewTraceRecorder(rt *trace.RunTrace, dims Dims) *TraceRecorder {
	return &TraceRecorder{Trace: rt, Dims: dims}
}

// RecordYear implements Recorder.
func (tr *TraceRecorder) RecordYear(sector string, phase Phase, state *MarketState) {
	rec := trace.YearRecord{
		Sector:     sector,
		Year:       state.Year,
		Phase:      phase.String(),
		Experience: make(map[string]float64, tr.Dims.T()),
	}
	for t, name := range tr.Dims.Techs {
		rec.Experience[name] = state.Experience[t]
	}
	for r, region := range tr.Dims.Regions {
		reg := trace.RegionRecord{
			Region: region,
			Demand: append([]float64(nil), state.Demand.RawRowView(r)...),
			Techs:  make([]trace.TechRecord, tr.Dims.T()),
		}
		for t, name := range tr.Dims.Techs {
			reg.Techs[t] = trace.TechRecord{
				Tech:       name,
				Share:      state.Shares.At(r, t),
				Capacity:   state.Capacity.At(r, t),
				Generation: state.Generation.At(r, t),
				Sales:      state.Sales.At(r, t),
				Emissions:  state.Emissions.At(r, t),
				Cost:       state.Costs.Generalised.At(r, t),
				CostStd:    state.Costs.GeneralisedStd.At(r, t),
			}
		}
		rec.Regions = append(rec.Regions, reg)
	}
	tr.Trace.RecordYear(rec)
}

// RecordSubStep implements Recorder.
func (tr *TraceRecorder) RecordSubStep(sector string, year, subStep int, state *MarketState) {
	if !tr.Trace.WantsSubSteps() {
		return
	}
	rec := trace.SubStepRecord{
		Sector:  sector,
		Year:    year,
		SubStep: subStep,
		Shares:  make(map[string][]float64, tr.Dims.R()),
	}
	for r, region := range tr.Dims.Regions {
		rec.Shares[region] = append([]float64(nil), state.Shares.RawRowView(r)...)
	}
	tr.Trace.RecordSubStep(rec)
}
