package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ftt-sim/ftt-sim/sim/internal/testutil"
)

func TestIsRegulated_Sentinels(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		reg     Regulation
		want    float64
	}{
		{"unregulated is exactly zero", 1e9, Unregulated(), 0},
		{"ban with no capacity is exactly one", 0, Banned(), 1},
		{"ban with capacity is exactly one", 50, Banned(), 1},
		{"sentinel -1 is unregulated", 5, RegulationFromSentinel(-1), 0},
		{"sentinel 0 is a ban", 5, RegulationFromSentinel(0), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRegulated(tc.current, tc.reg))
		})
	}
}

func TestIsRegulated_CapTransition(t *testing.T) {
	capped := CappedAt(100)

	// at the cap the indicator sits at 0.5+0.5·tanh(1.5)
	assert.InDelta(t, 0.5+0.5*math.Tanh(1.5), IsRegulated(100, capped), 1e-15)

	// 20% over the cap it is effectively on
	assert.InDelta(t, 1.0, IsRegulated(120, capped), 1e-3)

	// 50% under the cap it is effectively off
	assert.Less(t, IsRegulated(50, capped), 1e-3)
}

func TestIsRegulated_MonotonicInCapacity(t *testing.T) {
	capped := CappedAt(10)
	prev := -1.0
	for c := 0.0; c <= 20; c += 0.5 {
		got := IsRegulated(c, capped)
		assert.GreaterOrEqual(t, got, prev, "capacity %v", c)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}
}

func TestRegulation_SentinelRoundTrip(t *testing.T) {
	for _, v := range []float64{-1, 0, 42} {
		assert.Equal(t, v, RegulationFromSentinel(v).Sentinel())
	}
	limit, ok := CappedAt(-3).Limit()
	assert.True(t, ok, "non-positive cap is a ban")
	assert.Equal(t, 0.0, limit)
	_, ok = Unregulated().Limit()
	assert.False(t, ok)
}

func TestRegulationGate_AllCells(t *testing.T) {
	// GIVEN one region with an unregulated, a banned and a capped technology
	policy := NewPolicyTable(1, 3)
	policy.Regulation[0][1] = Banned()
	policy.Regulation[0][2] = CappedAt(10)
	capacity := testutil.Dense([]float64{5, 5, 20})

	// WHEN the gate is evaluated
	gate := RegulationGate(capacity, policy)

	// THEN each cell follows its regulation
	assert.Equal(t, 0.0, gate.At(0, 0))
	assert.Equal(t, 1.0, gate.At(0, 1))
	assert.InDelta(t, 1.0, gate.At(0, 2), 1e-6)
}

func TestPolicyTable_WithAdditions(t *testing.T) {
	// GIVEN a policy with one exogenous target and a ban
	policy := NewPolicyTable(1, 3)
	policy.Exogenous[0][0] = ExogenousTarget(5)
	policy.Regulation[0][1] = Banned()

	// WHEN additions land on the targeted and an unset technology
	got := policy.WithAdditions(testutil.Dense([]float64{-2, 0, 3}))

	// THEN the targets sum, untouched cells keep their instruction and p is unchanged
	v, ok := got.ExogenousAt(0, 0).Value()
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	_, ok = got.ExogenousAt(0, 1).Value()
	assert.False(t, ok)
	v, _ = got.ExogenousAt(0, 2).Value()
	assert.Equal(t, 3.0, v)
	assert.Equal(t, policy.Regulation, got.Regulation)
	v, _ = policy.ExogenousAt(0, 0).Value()
	assert.Equal(t, 5.0, v)
	_, ok = policy.ExogenousAt(0, 2).Value()
	assert.False(t, ok)
}
