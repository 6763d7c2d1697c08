package validation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeproof/domain/core"
	"edgeproof/internal/bootstrap"
	"edgeproof/internal/dsr"
	"edgeproof/internal/fdr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, bootstrap.Stationary, cfg.RCMethod)
	assert.Equal(t, 10.0, cfg.AvgBlockLength)
	assert.Equal(t, 1000, cfg.NSim)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 0.05, cfg.Alpha)
	assert.Equal(t, 0.10, cfg.Q)
	assert.Equal(t, fdr.BH, cfg.FDRMethod)
	assert.True(t, cfg.NTrials.IsAuto())
	assert.False(t, cfg.EnableRomanoWolf)
	assert.Equal(t, 16, cfg.CSCVSplits)
	assert.Equal(t, 1000, cfg.CSCVMaxSplits)
	assert.Equal(t, 252.0, cfg.PeriodsPerYear)
	assert.True(t, cfg.Recenter)
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	doc := `
rc_method: Fixed
block_size: 20
n_sim: 500
n_trials: 12
fdr_method: by
enable_romano_wolf: true
timeout: 90s
capacity:
  multipliers: [1, 3]
  participation_impact: false
  costs:
    fee_bps: 2
    max_participation_pct: 10
`
	cfg, err := LoadConfig([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, bootstrap.Fixed, cfg.RCMethod)
	assert.Equal(t, 20, cfg.BlockSize)
	assert.Equal(t, 500, cfg.NSim)
	assert.Equal(t, fdr.BY, cfg.FDRMethod)
	assert.True(t, cfg.EnableRomanoWolf)
	assert.Equal(t, Duration(90*time.Second), cfg.Timeout)
	n, ok := cfg.NTrials.Explicit()
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	assert.Equal(t, []float64{1, 3}, cfg.Capacity.Multipliers)
	assert.False(t, cfg.Capacity.ParticipationImpact)
	assert.Equal(t, 2.0, cfg.Capacity.Costs.FeeBps)
	assert.Equal(t, 10.0, cfg.Capacity.Costs.MaxParticipationPct)

	// untouched fields keep their defaults
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 16, cfg.CSCVSplits)
}

func TestLoadConfig_AutoTrials(t *testing.T) {
	cfg, err := LoadConfig([]byte("n_trials: auto\n"))
	require.NoError(t, err)
	assert.True(t, cfg.NTrials.IsAuto())
}

func TestConfig_ValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown method", func(c *Config) { c.RCMethod = "circular" }},
		{"short stationary block", func(c *Config) { c.AvgBlockLength = 0.5 }},
		{"fixed without block", func(c *Config) { c.RCMethod = bootstrap.Fixed; c.BlockSize = 0 }},
		{"no draws", func(c *Config) { c.NSim = 0 }},
		{"alpha", func(c *Config) { c.Alpha = 1 }},
		{"q", func(c *Config) { c.Q = 0 }},
		{"fdr method", func(c *Config) { c.FDRMethod = "holm" }},
		{"trials", func(c *Config) { c.NTrials = dsr.Explicit(0) }},
		{"one split", func(c *Config) { c.CSCVSplits = 1 }},
		{"max splits", func(c *Config) { c.CSCVMaxSplits = 0 }},
		{"break alpha", func(c *Config) { c.BreakAlpha = 0 }},
		{"periods", func(c *Config) { c.PeriodsPerYear = 0 }},
		{"statistic", func(c *Config) { c.RCStatistic = "sortino" }},
		{"seed strategy", func(c *Config) { c.SeedStrategy = "time" }},
		{"multipliers", func(c *Config) { c.Capacity.Multipliers = nil }},
		{"negative fee", func(c *Config) { c.Capacity.Costs.FeeBps = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, core.IsValidationError(err), err.Error())
		})
	}
}

func TestConfig_OddSplitsPassValidation(t *testing.T) {
	// odd S is reported as a CSCV skip reason, not rejected
	cfg := DefaultConfig()
	cfg.CSCVSplits = 5
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Fingerprint(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Workers = 8
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.NSim = 999
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = Duration(2 * time.Minute)
	cfg.NTrials = dsr.Explicit(7)

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timeout":"2m0s"`)
	assert.Contains(t, string(raw), `"n_trials":7`)

	var back Config
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, cfg.Fingerprint(), back.Fingerprint())
	assert.Equal(t, cfg.Timeout, back.Timeout)
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := LoadConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Fingerprint(), cfg.Fingerprint())

	path := filepath.Join(t.TempDir(), "validation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n_sim: 250\n"), 0o600))
	cfg, err = LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.NSim)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("n_sim: [\n"), 0o600))
	_, err = LoadConfigFile(path)
	assert.True(t, core.IsValidationError(err))
}
