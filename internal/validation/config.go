package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"edgeproof/domain/core"
	"edgeproof/internal/bootstrap"
	"edgeproof/internal/capacity"
	"edgeproof/internal/dsr"
	"edgeproof/internal/fdr"
	"edgeproof/internal/realitycheck"
	"edgeproof/internal/seeding"
)

// Config is the engine configuration of one validation run. Field names
// follow the external record contract.
type Config struct {
	RCMethod       bootstrap.Method `json:"rc_method" yaml:"rc_method"`
	AvgBlockLength float64          `json:"avg_block_length" yaml:"avg_block_length"`
	BlockSize      int              `json:"block_size" yaml:"block_size"`
	NSim           int              `json:"n_sim" yaml:"n_sim"`
	Seed           int64            `json:"seed" yaml:"seed"`
	SeedStrategy   string           `json:"seed_strategy" yaml:"seed_strategy"`
	RCStatistic    string           `json:"rc_statistic" yaml:"rc_statistic"`
	Recenter       bool             `json:"recenter" yaml:"recenter"`

	Alpha     float64        `json:"alpha" yaml:"alpha"`
	Q         float64        `json:"q" yaml:"q"`
	FDRMethod fdr.Method     `json:"fdr_method" yaml:"fdr_method"`
	NTrials   dsr.TrialCount `json:"n_trials" yaml:"n_trials"`
	// TrialsMinObs is the finite-observation floor for a column to enter the
	// effective-trials correlation matrix
	TrialsMinObs int `json:"trials_min_obs" yaml:"trials_min_obs"`

	EnableRomanoWolf bool `json:"enable_romano_wolf" yaml:"enable_romano_wolf"`

	CSCVSplits    int `json:"cscv_splits" yaml:"cscv_splits"`
	CSCVMaxSplits int `json:"cscv_max_splits" yaml:"cscv_max_splits"`

	// HACLag < 0 selects the Newey-West default lag rule
	HACLag     int     `json:"hac_lag" yaml:"hac_lag"`
	BreakAlpha float64 `json:"break_alpha" yaml:"break_alpha"`

	// Workers <= 0 uses GOMAXPROCS
	Workers        int      `json:"workers" yaml:"workers"`
	Timeout        Duration `json:"timeout" yaml:"timeout"`
	PeriodsPerYear float64  `json:"periods_per_year" yaml:"periods_per_year"`

	Capacity CapacityConfig `json:"capacity" yaml:"capacity"`
}

// CapacityConfig configures the capacity curve of the primary hypothesis
type CapacityConfig struct {
	Multipliers         []float64           `json:"multipliers" yaml:"multipliers"`
	ParticipationImpact bool                `json:"participation_impact" yaml:"participation_impact"`
	Costs               capacity.CostConfig `json:"costs" yaml:"costs"`
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		RCMethod:         bootstrap.Stationary,
		AvgBlockLength:   10,
		BlockSize:        10,
		NSim:             1000,
		Seed:             42,
		SeedStrategy:     "sha256",
		RCStatistic:      "mean",
		Recenter:         true,
		Alpha:            0.05,
		Q:                0.10,
		FDRMethod:        fdr.BH,
		NTrials:          dsr.Auto(),
		TrialsMinObs:     10,
		EnableRomanoWolf: false,
		CSCVSplits:       16,
		CSCVMaxSplits:    1000,
		HACLag:           -1,
		BreakAlpha:       0.05,
		Workers:          0,
		Timeout:          0,
		PeriodsPerYear:   252,
		Capacity: CapacityConfig{
			Multipliers:         []float64{1, 2, 5, 10, 20, 50},
			ParticipationImpact: true,
			Costs:               capacity.DefaultCostConfig(),
		},
	}
}

// Normalized returns c with method names in their canonical spelling
func (c Config) Normalized() Config {
	if m, err := bootstrap.ParseMethod(string(c.RCMethod)); err == nil {
		c.RCMethod = m
	}
	if m, err := fdr.ParseMethod(string(c.FDRMethod)); err == nil {
		c.FDRMethod = m
	}
	c.SeedStrategy = strings.ToLower(strings.TrimSpace(c.SeedStrategy))
	c.RCStatistic = strings.ToLower(strings.TrimSpace(c.RCStatistic))
	return c
}

// Validate rejects invalid combinations before any computation
func (c Config) Validate() error {
	c = c.Normalized()
	if _, err := bootstrap.ParseMethod(string(c.RCMethod)); err != nil {
		return err
	}
	if _, err := bootstrap.NewEngine(c.RCMethod, c.AvgBlockLength, c.BlockSize, c.Seed); err != nil {
		return err
	}
	if c.NSim < 1 {
		return core.NewValidationError("n_sim", fmt.Sprintf("must be >= 1, got %d", c.NSim))
	}
	if _, err := seeding.ByName(c.SeedStrategy); err != nil {
		return err
	}
	if _, err := realitycheck.StatisticByName(c.RCStatistic); err != nil {
		return err
	}
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return core.NewValidationError("alpha", fmt.Sprintf("must lie in (0, 1), got %v", c.Alpha))
	}
	if !(c.Q > 0 && c.Q <= 1) {
		return core.NewValidationError("q", fmt.Sprintf("must lie in (0, 1], got %v", c.Q))
	}
	if _, err := fdr.ParseMethod(string(c.FDRMethod)); err != nil {
		return err
	}
	if err := c.NTrials.Validate(); err != nil {
		return err
	}
	if c.TrialsMinObs < 2 {
		return core.NewValidationError("trials_min_obs", fmt.Sprintf("must be >= 2, got %d", c.TrialsMinObs))
	}
	if c.CSCVSplits < 2 {
		return core.NewValidationError("cscv_splits", fmt.Sprintf("must be >= 2, got %d", c.CSCVSplits))
	}
	if c.CSCVMaxSplits < 1 {
		return core.NewValidationError("cscv_max_splits", fmt.Sprintf("must be >= 1, got %d", c.CSCVMaxSplits))
	}
	if !(c.BreakAlpha > 0 && c.BreakAlpha < 1) {
		return core.NewValidationError("break_alpha", fmt.Sprintf("must lie in (0, 1), got %v", c.BreakAlpha))
	}
	if c.Timeout < 0 {
		return core.NewValidationError("timeout", "must not be negative")
	}
	if !(c.PeriodsPerYear > 0) {
		return core.NewValidationError("periods_per_year", fmt.Sprintf("must be > 0, got %v", c.PeriodsPerYear))
	}
	if len(c.Capacity.Multipliers) == 0 {
		return core.NewValidationError("capacity.multipliers", "at least one multiplier required")
	}
	for _, m := range c.Capacity.Multipliers {
		if !(m > 0) {
			return core.NewValidationError("capacity.multipliers", fmt.Sprintf("must be > 0, got %v", m))
		}
	}
	return c.Capacity.Costs.Validate()
}

// Fingerprint hashes every field that influences the record
func (c Config) Fingerprint() core.Hash {
	f := core.NewFingerprinter("config").
		String(string(c.RCMethod)).Float(c.AvgBlockLength).Int(int64(c.BlockSize)).
		Int(int64(c.NSim)).Int(c.Seed).String(c.SeedStrategy).String(c.RCStatistic).Bool(c.Recenter).
		Float(c.Alpha).Float(c.Q).String(string(c.FDRMethod)).String(c.NTrials.String()).
		Int(int64(c.TrialsMinObs)).Bool(c.EnableRomanoWolf).
		Int(int64(c.CSCVSplits)).Int(int64(c.CSCVMaxSplits)).
		Int(int64(c.HACLag)).Float(c.BreakAlpha).Float(c.PeriodsPerYear).
		Floats(c.Capacity.Multipliers).Bool(c.Capacity.ParticipationImpact)
	costs := c.Capacity.Costs
	f.Floats([]float64{
		costs.FeeBps, costs.SlippageBps, costs.SpreadBps, costs.ImpactK,
		costs.ImpactAlpha, costs.ImpactBpsPerPct, costs.ImpactCapBps, costs.MaxParticipationPct,
	})
	return f.Sum()
}

// LoadConfig overlays a YAML document onto DefaultConfig and validates it
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config: %v", core.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.Normalized(), nil
}

// LoadConfigFile reads a YAML config file; an empty path yields the defaults
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return LoadConfig(data)
}

// Duration accepts Go duration strings ("90s") in YAML and JSON
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: timeout must be a duration string", core.ErrInvalidConfig)
		}
		*d = Duration(n)
		return nil
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: timeout: %v", core.ErrInvalidConfig, err)
	}
	*d = Duration(parsed)
	return nil
}
