package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/ftt-sim/ftt-sim/sim/internal/testutil"
)

func linearMandate() MandateConfig {
	return MandateConfig{
		Enabled: true, StartYear: 2025, EndYear: 2035, Ceiling: 1,
		Ramp: RampLinear, AfterEnd: AfterEndOff, Green: []int{3, 4},
	}
}

func TestMandateShare_LinearBoundaries(t *testing.T) {
	m := linearMandate()
	tests := []struct {
		year int
		want float64
	}{
		{2020, 0},
		{2024, 0},
		{2025, 0},
		{2030, 0.5},
		{2034, 0.9},
		{2035, 0}, // off after end
		{2050, 0},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, m.MandateShare(tc.year), 1e-12, "year %d", tc.year)
	}
}

func TestMandateShare_HoldAfterEnd(t *testing.T) {
	m := linearMandate()
	m.AfterEnd = AfterEndHold
	m.Ceiling = 0.8

	assert.Equal(t, 0.8, m.MandateShare(2035))
	assert.Equal(t, 0.8, m.MandateShare(2060))
}

func TestMandateShare_MonotonicInsideWindow(t *testing.T) {
	m := linearMandate()
	prev := -1.0
	for y := m.StartYear; y < m.EndYear; y++ {
		got := m.MandateShare(y)
		assert.GreaterOrEqual(t, got, prev, "year %d", y)
		assert.LessOrEqual(t, got, m.Ceiling)
		prev = got
	}
}

func heatPumpMandate() MandateConfig {
	return MandateConfig{
		Enabled: true, Mode: MandateExogenousSales, StartYear: 2025, EndYear: 2035, Ceiling: 1,
		Ramp: RampSigmoid, AfterEnd: AfterEndOff, Green: []int{2}, Fossil: []int{0}, Replacement: 0.05,
	}
}

func TestExogenousSalesShare_Ramps(t *testing.T) {
	tests := []struct {
		name string
		ramp RampShape
		year int
		want float64
	}{
		{"before start", RampSigmoid, 2024, 0},
		{"sigmoid first year", RampSigmoid, 2025, 0.05 * 0.1 / 0.9}, // x = 1/10
		{"sigmoid last year", RampSigmoid, 2034, 0.05 / 1.8},        // x = 1
		{"linear first year", RampLinear, 2025, 0.05 * 0.1},
		{"linear last year", RampLinear, 2034, 0.05},
		{"after end", RampSigmoid, 2035, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := heatPumpMandate()
			m.Ramp = tc.ramp
			assert.InDelta(t, tc.want, m.ExogenousSalesShare(tc.year), 1e-12)
		})
	}
}

func TestMandateModes_AreExclusive(t *testing.T) {
	// GIVEN one mandate of each mode
	sales := linearMandate()
	exo := heatPumpMandate()

	// THEN each only answers for its own mechanism
	assert.Equal(t, 0.0, sales.ExogenousSalesShare(2030))
	assert.Equal(t, 0.0, exo.MandateShare(2030))
	assert.Positive(t, exo.ExogenousSalesShare(2030))
}

func TestExogenousSalesAdditions_MovesFleetFromFossilToGreen(t *testing.T) {
	// GIVEN fossil at 60%, an untouched tech at 20% and green at 20% of a 1000 fleet
	m := heatPumpMandate()
	shares := testutil.Dense([]float64{0.6, 0.2, 0.2})
	capacity := testutil.Dense([]float64{600, 200, 200})

	// WHEN the mandate converts 2030 into additions
	additions, engaged := m.ExogenousSalesAdditions(shares, capacity, 1, 2030)

	// THEN green gains what fossil loses and the other tech is untouched
	require.NotNil(t, additions)
	assert.Equal(t, 1, engaged)
	moved := m.ExogenousSalesShare(2030) * 1000
	assert.InDelta(t, moved, additions.At(0, 2), 1e-9)
	assert.InDelta(t, -moved, additions.At(0, 0), 1e-9)
	assert.Equal(t, 0.0, additions.At(0, 1))
}

func TestExogenousSalesAdditions_ProportionalSplitAndBackup(t *testing.T) {
	// GIVEN two fossil and two green techs; region 1 has no green share yet
	m := heatPumpMandate()
	m.Green = []int{2, 3}
	m.Fossil = []int{0, 1}
	shares := testutil.Dense(
		[]float64{0.6, 0.2, 0.15, 0.05},
		[]float64{0.5, 0.5, 0, 0},
	)
	capacity := testutil.Filled(2, 4, 100)

	additions, engaged := m.ExogenousSalesAdditions(shares, capacity, 1, 2030)

	require.Equal(t, 2, engaged)
	moved := m.ExogenousSalesShare(2030) * 400
	// region 0 splits by share inside each group
	assert.InDelta(t, moved*0.75, additions.At(0, 2), 1e-9)
	assert.InDelta(t, moved*0.25, additions.At(0, 3), 1e-9)
	assert.InDelta(t, -moved*0.75, additions.At(0, 0), 1e-9)
	assert.InDelta(t, -moved*0.25, additions.At(0, 1), 1e-9)
	// region 1 has no green share, so green splits equally
	assert.InDelta(t, moved/2, additions.At(1, 2), 1e-9)
	assert.InDelta(t, moved/2, additions.At(1, 3), 1e-9)
	assert.InDelta(t, 0, floats.Sum(additions.RawRowView(1)), 1e-9)
}

func TestExogenousSalesAdditions_StopConditions(t *testing.T) {
	m := heatPumpMandate()
	m.Ramp = RampLinear
	amount := m.ExogenousSalesShare(2034) // 0.05
	tests := []struct {
		name   string
		shares []float64
	}{
		{"too little fossil left", []float64{fossilStopMultiple*amount - 0.01, 0.5, 0.5 - fossilStopMultiple*amount + 0.01}},
		{"nearly all green", []float64{0.095, 0, 0.905}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			additions, engaged := m.ExogenousSalesAdditions(testutil.Dense(tc.shares), testutil.Filled(1, 3, 100), 1, 2034)

			assert.Equal(t, 0, engaged)
			assert.Equal(t, 0.0, additions.At(0, 0))
			assert.Equal(t, 0.0, additions.At(0, 2))
		})
	}
}

func TestExogenousSalesAdditions_InactiveYear(t *testing.T) {
	additions, engaged := heatPumpMandate().ExogenousSalesAdditions(testutil.Dense([]float64{0.8, 0.1, 0.1}), testutil.Filled(1, 3, 1), 1, 2040)

	assert.Nil(t, additions)
	assert.Equal(t, 0, engaged)
}

func TestMandateShare_Disabled(t *testing.T) {
	m := linearMandate()
	m.Enabled = false
	assert.Equal(t, 0.0, m.MandateShare(2030))
}

func TestMandateConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *MandateConfig)
	}{
		{"end before start", func(m *MandateConfig) { m.EndYear = m.StartYear }},
		{"ceiling above one", func(m *MandateConfig) { m.Ceiling = 1.5 }},
		{"zero ceiling", func(m *MandateConfig) { m.Ceiling = 0 }},
		{"green out of range", func(m *MandateConfig) { m.Green = []int{9} }},
		{"unknown ramp", func(m *MandateConfig) { m.Ramp = "cubic" }},
		{"sigmoid sales-share", func(m *MandateConfig) { m.Ramp = RampSigmoid }},
		{"unknown mode", func(m *MandateConfig) { m.Mode = "quota" }},
		{"exogenous-sales without fossil", func(m *MandateConfig) { *m = heatPumpMandate(); m.Fossil = nil }},
		{"green and fossil overlap", func(m *MandateConfig) { *m = heatPumpMandate(); m.Fossil = []int{2} }},
		{"exogenous-sales without replacement", func(m *MandateConfig) { *m = heatPumpMandate(); m.Replacement = 0 }},
		{"exogenous-sales held after end", func(m *MandateConfig) { *m = heatPumpMandate(); m.AfterEnd = AfterEndHold }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := linearMandate()
			tc.mutate(&m)
			var cfgErr *ConfigError
			require.ErrorAs(t, m.Validate(5), &cfgErr)
		})
	}
	assert.NoError(t, linearMandate().Validate(5))
	assert.NoError(t, heatPumpMandate().Validate(5))
}

func TestApplyMandate_LiftsGreenShare(t *testing.T) {
	// GIVEN 5 techs, the last 2 green, with green at 10% of sales
	sales := testutil.Dense([]float64{30, 30, 30, 6, 4})
	capacity := testutil.Dense([]float64{300, 300, 300, 60, 40})
	green := []bool{false, false, false, true, true}

	// WHEN a 30% mandate is applied
	adjusted := ApplyMandate(sales, capacity, green, 0.3, 1)

	// THEN green is 30% of an unchanged total, split in the original proportion
	assert.Equal(t, 1, adjusted)
	row := sales.RawRowView(0)
	assert.InDelta(t, 100.0, floats.Sum(row), 1e-9)
	assert.InDelta(t, 18.0, row[3], 1e-9)
	assert.InDelta(t, 12.0, row[4], 1e-9)
	assert.InDelta(t, 70.0/3.0, row[0], 1e-9)

	// AND capacity moved with sales
	assert.InDelta(t, 300+70.0/3.0-30, capacity.At(0, 0), 1e-9)
	assert.InDelta(t, 60+12.0, capacity.At(0, 3), 1e-9)
}

func TestApplyMandate_SingleGreenOfFive(t *testing.T) {
	// GIVEN 5 techs where only tech 2 is green, holding 10% of sales
	sales := testutil.Dense([]float64{40, 30, 10, 10, 10})
	capacity := testutil.Filled(1, 5, 500)
	green := []bool{false, false, true, false, false}

	// WHEN a 30% mandate is applied
	adjusted := ApplyMandate(sales, capacity, green, 0.3, 1)

	// THEN tech 2 reaches 30% and the rest shrink by 70/90 with the total unchanged
	assert.Equal(t, 1, adjusted)
	row := sales.RawRowView(0)
	assert.InDelta(t, 100.0, floats.Sum(row), 1e-9)
	assert.InDelta(t, 30.0, row[2], 1e-9)
	assert.InDelta(t, 0.3, row[2]/floats.Sum(row), 1e-12)
	for i, before := range map[int]float64{0: 40, 1: 30, 3: 10, 4: 10} {
		assert.InDelta(t, before*70/90, row[i], 1e-9, "tech %d", i)
	}
}

func TestApplyMandate_AlreadyCompliant_NoOp(t *testing.T) {
	sales := testutil.Dense([]float64{10, 10})
	capacity := testutil.Dense([]float64{100, 100})

	adjusted := ApplyMandate(sales, capacity, []bool{false, true}, 0.4, 1)

	assert.Equal(t, 0, adjusted)
	assert.Equal(t, []float64{10, 10}, sales.RawRowView(0))
}

func TestApplyMandate_ZeroSales_NoOp(t *testing.T) {
	sales := testutil.Dense([]float64{0, 0})
	capacity := testutil.Dense([]float64{1, 1})

	adjusted := ApplyMandate(sales, capacity, []bool{false, true}, 0.5, 1)

	assert.Equal(t, 0, adjusted)
	assert.Equal(t, []float64{1, 1}, capacity.RawRowView(0))
}

func TestApplyMandate_NoGreenSales_UsesGlobalDistribution(t *testing.T) {
	// GIVEN region 0 with no green sales and region 1 selling green 1:3
	sales := testutil.Dense(
		[]float64{10, 0, 0},
		[]float64{10, 5, 15},
	)
	capacity := testutil.Filled(2, 3, 100)
	green := []bool{false, true, true}

	ApplyMandate(sales, capacity, green, 0.2, 1)

	// THEN region 0 borrows the global green split
	assert.InDelta(t, 0.5, sales.At(0, 1), 1e-12)
	assert.InDelta(t, 1.5, sales.At(0, 2), 1e-12)
	assert.InDelta(t, 8.0, sales.At(0, 0), 1e-12)
}

func TestApplyMandate_NoGreenAnywhere_EqualSplit(t *testing.T) {
	sales := testutil.Dense([]float64{10, 0, 0})
	capacity := testutil.Filled(1, 3, 100)

	ApplyMandate(sales, capacity, []bool{false, true, true}, 0.5, 1)

	assert.Equal(t, []float64{5, 2.5, 2.5}, sales.RawRowView(0))
}

func TestApplyMandate_CapacityFlooredAtZero(t *testing.T) {
	sales := testutil.Dense([]float64{10, 0})
	capacity := testutil.Dense([]float64{2, 0})

	ApplyMandate(sales, capacity, []bool{false, true}, 1, 1)

	assert.Equal(t, 0.0, capacity.At(0, 0))
	testutil.AssertNonNegative(t, "capacity", capacity)
}

func TestApplyMandate_PerSegment(t *testing.T) {
	// GIVEN 2 segments; techs 2 and 3 are the green ones of segments 0 and 1
	sales := testutil.Dense([]float64{10, 20, 0, 0})
	capacity := testutil.Filled(1, 4, 50)
	green := []bool{false, false, true, true}

	adjusted := ApplyMandate(sales, capacity, green, 0.5, 2)

	// THEN each segment is balanced separately
	assert.Equal(t, 2, adjusted)
	assert.Equal(t, []float64{5, 10, 5, 10}, sales.RawRowView(0))
}
