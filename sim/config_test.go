package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSolverConfig_FieldEquivalence(t *testing.T) {
	got := NewSolverConfig(4, true, 8, false)
	want := SolverConfig{SubSteps: 4, Strict: true, Workers: 8}
	assert.Equal(t, want, got)
}

func TestNewHorizonConfig_FieldEquivalence(t *testing.T) {
	got := NewHorizonConfig(2010, 2020, 2050)
	want := HorizonConfig{FirstYear: 2010, LastHistoryYear: 2020, LastYear: 2050}
	assert.Equal(t, want, got)
}

func TestSolverConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SolverConfig
		wantErr bool
	}{
		{"valid", NewSolverConfig(4, false, 1, false), false},
		{"zero sub-steps", NewSolverConfig(0, false, 1, false), true},
		{"negative sub-steps", NewSolverConfig(-2, false, 1, false), true},
		{"negative workers", NewSolverConfig(4, false, -1, false), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				var cfgErr *ConfigError
				require.ErrorAs(t, err, &cfgErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHorizonConfig_PhaseOf(t *testing.T) {
	h := NewHorizonConfig(2010, 2015, 2030)
	assert.Equal(t, PhaseColdStart, h.PhaseOf(2010))
	assert.Equal(t, PhaseHistorical, h.PhaseOf(2011))
	assert.Equal(t, PhaseHistorical, h.PhaseOf(2015))
	assert.Equal(t, PhaseEndogenous, h.PhaseOf(2016))
	assert.Error(t, NewHorizonConfig(2010, 2005, 2030).Validate())
	assert.Error(t, NewHorizonConfig(2010, 2015, 2012).Validate())
}

func TestSectorPresets_Validate(t *testing.T) {
	// GIVEN every preset with a technology count its segments divide
	for _, name := range SectorPresetNames() {
		t.Run(name, func(t *testing.T) {
			cfg, err := SectorPreset(name)
			require.NoError(t, err)
			assert.NoError(t, cfg.Validate(cfg.Segments*4))
			assert.Equal(t, float64(cfg.Segments), cfg.TotalShare())
		})
	}
}

func TestSectorPreset_ReturnsFreshCopy(t *testing.T) {
	a, err := SectorPreset("power")
	require.NoError(t, err)
	a.LearningColumns[0] = 99

	b, err := SectorPreset("power")
	require.NoError(t, err)
	assert.NotEqual(t, a.LearningColumns[0], b.LearningColumns[0])
}

func TestSectorPreset_Unknown(t *testing.T) {
	_, err := SectorPreset("hydrogen")
	assert.ErrorContains(t, err, "unknown sector preset")
}

func TestSectorConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *SectorConfig)
		techs  int
	}{
		{"load-factor with segments", func(c *SectorConfig) { c.Segments = 2 }, 4},
		{"techs not divisible", func(c *SectorConfig) { c.CapacityModel = CapacityFleet; c.Segments = 3 }, 4},
		{"zero time scale", func(c *SectorConfig) { c.TimeScale = 0 }, 4},
		{"bad spillover", func(c *SectorConfig) { c.Spillover = "quadratic" }, 4},
		{"zero tolerance", func(c *SectorConfig) { c.ShareTolerance = 0 }, 4},
		{"exogenous-sales mandate with capacity targets", func(c *SectorConfig) {
			c.Mandate = MandateConfig{
				Enabled: true, Mode: MandateExogenousSales, StartYear: 2025, EndYear: 2035, Ceiling: 1,
				Ramp: RampLinear, AfterEnd: AfterEndOff, Green: []int{2}, Fossil: []int{0}, Replacement: 0.05,
			}
		}, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := SectorPreset("power")
			require.NoError(t, err)
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate(tc.techs))
		})
	}
}
