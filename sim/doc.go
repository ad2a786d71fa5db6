// Package sim provides the FTT market-share dynamics engine.
//
// # Reading Guide
//
// Start with these files to understand one simulated year:
//   - state.go: MarketState, the bundle of region×technology arrays a sector carries between years
//   - shares.go: the pairwise substitution kernel (one RK4 step per sub-step)
//   - solver.go: the Year-Solver state machine (cold start, historical, endogenous)
//
// # Architecture
//
// A year runs leaf-first: levelised costs (sim/cost) feed the regulation gate and the
// pairwise substitution kernel; the reconciler blends the kernel's endogenous capacity with
// exogenous instructions and regulatory caps; sales are derived from the capacity change and
// the mandate adjuster reallocates them towards green technologies; learning-by-doing lowers
// the cost table before costs are recomputed for the next sub-step.
//
// Sector-specific behaviour (segment count, capacity model, valve, spill-over form, mandate
// ramp) is data in SectorConfig; see the presets in sector.go.
//
// Sub-packages:
//   - sim/cost/: levelised cost calculator
//   - sim/scenario/: YAML scenario loading and conversion into solver inputs
//   - sim/trace/: pure-data per-year records and run summaries
package sim
