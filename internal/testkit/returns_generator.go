package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"edgeproof/domain/core"
	"edgeproof/domain/series"
	"edgeproof/internal/pbo"
)

// ReturnsGeneratorConfig configures synthetic strategy returns. Every
// hypothesis loads on one common factor, so FactorLoading controls how
// correlated the set is.
type ReturnsGeneratorConfig struct {
	Hypotheses    int       `json:"hypotheses"`
	Periods       int       `json:"periods"`
	Drift         float64   `json:"drift"`          // per-period mean of every hypothesis
	EdgeDrift     float64   `json:"edge_drift"`     // extra mean of the first hypothesis
	Vol           float64   `json:"vol"`            // per-period idiosyncratic volatility
	FactorLoading float64   `json:"factor_loading"` // in [0, 1]
	AR            float64   `json:"ar"`             // AR(1) coefficient of the idiosyncratic part
	NaNRate       float64   `json:"nan_rate"`
	BreakAt       int       `json:"break_at"` // period where BreakShift is added; 0 disables
	BreakShift    float64   `json:"break_shift"`
	StartDate     time.Time `json:"start_date"`
	Seed          int64     `json:"seed"`
}

// DefaultReturnsConfig returns a small, uncorrelated, zero-edge set
func DefaultReturnsConfig() ReturnsGeneratorConfig {
	return ReturnsGeneratorConfig{
		Hypotheses: 5,
		Periods:    500,
		Vol:        0.01,
		StartDate:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:       42,
	}
}

// ReturnsGenerator produces deterministic return sets
type ReturnsGenerator struct {
	config ReturnsGeneratorConfig
	rng    *rand.Rand
}

// NewReturnsGenerator creates a generator
func NewReturnsGenerator(config ReturnsGeneratorConfig) *ReturnsGenerator {
	return &ReturnsGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// HypothesisID names the k-th generated hypothesis
func HypothesisID(k int) core.HypothesisID {
	return core.HypothesisID(fmt.Sprintf("strategy_%02d", k+1))
}

// Columns returns the raw k×T value matrix
func (g *ReturnsGenerator) Columns() [][]float64 {
	c := g.config
	factor := make([]float64, c.Periods)
	for t := range factor {
		factor[t] = g.rng.NormFloat64()
	}
	loading := math.Max(0, math.Min(1, c.FactorLoading))
	idio := math.Sqrt(1 - loading*loading)

	cols := make([][]float64, c.Hypotheses)
	for k := range cols {
		col := make([]float64, c.Periods)
		var prev float64
		for t := range col {
			e := c.AR*prev + g.rng.NormFloat64()
			prev = e
			v := c.Drift + c.Vol*(loading*factor[t]+idio*e)
			if k == 0 {
				v += c.EdgeDrift
				if c.BreakAt > 0 && t >= c.BreakAt {
					v += c.BreakShift
				}
			}
			if c.NaNRate > 0 && g.rng.Float64() < c.NaNRate {
				v = math.NaN()
			}
			col[t] = v
		}
		cols[k] = col
	}
	return cols
}

// Generate builds a HypothesisSet on a daily index
func (g *ReturnsGenerator) Generate() (series.HypothesisSet, error) {
	set := series.HypothesisSet{}
	for k, col := range g.Columns() {
		if err := set.Add(series.FromValues(HypothesisID(k), g.config.StartDate, col)); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Turnover draws a positive turnover series of length n around mean
func (g *ReturnsGenerator) Turnover(n int, mean float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = mean * (0.5 + g.rng.Float64())
	}
	return out
}

// WalkForwardRows draws splits whose test metric decays from the train metric
func (g *ReturnsGenerator) WalkForwardRows(splits int) []pbo.WalkForwardRow {
	rows := make([]pbo.WalkForwardRow, splits)
	for i := range rows {
		train := 1 + 0.5*g.rng.NormFloat64()
		rows[i] = pbo.WalkForwardRow{
			SplitID:     fmt.Sprintf("wf_%03d", i+1),
			TrainMetric: train,
			TestMetric:  0.3*train + 0.5*g.rng.NormFloat64(),
		}
	}
	return rows
}
