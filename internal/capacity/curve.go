// Package capacity models how net performance decays as notional grows,
// using a participation-based market-impact cost per unit of turnover.
package capacity

import (
	"fmt"
	"math"

	"edgeproof/domain/core"
	"edgeproof/domain/stats"

	mstats "github.com/montanaflynn/stats"
)

// CostConfig prices one unit of turnover. All costs are in basis points.
type CostConfig struct {
	FeeBps              float64 `json:"fee_bps" yaml:"fee_bps"`
	SlippageBps         float64 `json:"slippage_bps" yaml:"slippage_bps"`
	SpreadBps           float64 `json:"spread_bps" yaml:"spread_bps"`
	ImpactK             float64 `json:"impact_k" yaml:"impact_k"`
	ImpactAlpha         float64 `json:"impact_alpha" yaml:"impact_alpha"`
	ImpactBpsPerPct     float64 `json:"impact_bps_per_pct" yaml:"impact_bps_per_pct"`
	ImpactCapBps        float64 `json:"impact_cap_bps" yaml:"impact_cap_bps"`
	MaxParticipationPct float64 `json:"max_participation_pct" yaml:"max_participation_pct"`
}

// DefaultCostConfig is a liquid-futures style schedule
func DefaultCostConfig() CostConfig {
	return CostConfig{
		FeeBps:              1,
		SlippageBps:         1,
		SpreadBps:           0.5,
		ImpactK:             2,
		ImpactAlpha:         0.5,
		ImpactBpsPerPct:     5,
		ImpactCapBps:        100,
		MaxParticipationPct: 25,
	}
}

// Validate rejects negative costs and a non-positive participation cap
func (c CostConfig) Validate() error {
	for name, v := range map[string]float64{
		"fee_bps":            c.FeeBps,
		"slippage_bps":       c.SlippageBps,
		"spread_bps":         c.SpreadBps,
		"impact_k":           c.ImpactK,
		"impact_alpha":       c.ImpactAlpha,
		"impact_bps_per_pct": c.ImpactBpsPerPct,
		"impact_cap_bps":     c.ImpactCapBps,
	} {
		if !(v >= 0) || math.IsInf(v, 0) {
			return core.NewValidationError(name, fmt.Sprintf("must be a finite value >= 0, got %v", v))
		}
	}
	if !(c.MaxParticipationPct > 0) || c.MaxParticipationPct > 100 {
		return core.NewValidationError("max_participation_pct", fmt.Sprintf("must lie in (0, 100], got %v", c.MaxParticipationPct))
	}
	return nil
}

// Config of one curve
type Config struct {
	Multipliers         []float64
	Costs               CostConfig
	ParticipationImpact bool
	PeriodsPerYear      float64
}

// Columns is the table header; the first two entries are fixed
var Columns = []string{
	"notional_multiplier",
	"sharpe_annual",
	"mean_net_return",
	"vol_annual",
	"participation_pct",
	"impact_bps",
	"total_cost_bps",
}

// Row is one multiplier. Field order matches Columns.
type Row struct {
	NotionalMultiplier float64 `json:"notional_multiplier"`
	SharpeAnnual       float64 `json:"sharpe_annual"`
	MeanNetReturn      float64 `json:"mean_net_return"`
	VolAnnual          float64 `json:"vol_annual"`
	ParticipationPct   float64 `json:"participation_pct"`
	ImpactBps          float64 `json:"impact_bps"`
	TotalCostBps       float64 `json:"total_cost_bps"`
}

// Values returns the row in Columns order
func (r Row) Values() []float64 {
	return []float64{
		r.NotionalMultiplier,
		r.SharpeAnnual,
		r.MeanNetReturn,
		r.VolAnnual,
		r.ParticipationPct,
		r.ImpactBps,
		r.TotalCostBps,
	}
}

// Curve is the capacity table. SharpeStrictlyIncreasing is reported, not
// enforced; it is false for fewer than two rows.
type Curve struct {
	Columns                  []string `json:"columns"`
	Rows                     []Row    `json:"rows"`
	SharpeStrictlyIncreasing bool     `json:"sharpe_strictly_increasing"`
	ParticipationImpact      bool     `json:"participation_impact"`
	N                        int      `json:"n"`

	SkippedReason stats.SkipReason `json:"skipped_reason,omitempty"`
}

// Participation is min(max_participation_pct, m·mean(turnover)·100)
func Participation(multiplier, meanTurnover, maxPct float64) float64 {
	return math.Min(maxPct, multiplier*meanTurnover*100)
}

// ImpactBps is the capped linear participation impact when participation
// mode is on, otherwise impact_k·m^impact_alpha
func ImpactBps(c CostConfig, multiplier, participationPct float64, participationMode bool) float64 {
	if participationMode {
		return math.Min(c.ImpactCapBps, c.ImpactBpsPerPct*participationPct)
	}
	return c.ImpactK * math.Pow(multiplier, c.ImpactAlpha)
}

// Build computes one row per multiplier: net_t = gross_t − cost_bps/1e4 ·
// turnover_t, annualised with PeriodsPerYear. Periods where either input is
// non-finite are excluded.
func Build(gross, turnover []float64, cfg Config) (Curve, error) {
	curve := Curve{Columns: Columns, ParticipationImpact: cfg.ParticipationImpact}
	if turnover == nil {
		curve.SkippedReason = stats.SkipTurnoverMissing
		return curve, nil
	}
	if len(gross) != len(turnover) {
		return Curve{}, core.NewShapeError("turnover", len(turnover), len(gross))
	}
	if len(cfg.Multipliers) == 0 {
		return Curve{}, core.NewValidationError("capacity.multipliers", "at least one multiplier required")
	}
	for _, m := range cfg.Multipliers {
		if !(m > 0) || math.IsInf(m, 0) {
			return Curve{}, core.NewValidationError("capacity.multipliers", fmt.Sprintf("must be finite and > 0, got %v", m))
		}
	}
	if err := cfg.Costs.Validate(); err != nil {
		return Curve{}, err
	}
	periods := cfg.PeriodsPerYear
	if !(periods > 0) {
		periods = 252
	}

	var g, tv []float64
	for i := range gross {
		if isFinite(gross[i]) && isFinite(turnover[i]) {
			g = append(g, gross[i])
			tv = append(tv, turnover[i])
		}
	}
	curve.N = len(g)
	if len(g) < 2 {
		curve.SkippedReason = stats.SkipFewFinite
		return curve, nil
	}
	meanTurnover, _ := mstats.Mean(tv)

	rows := make([]Row, 0, len(cfg.Multipliers))
	net := make([]float64, len(g))
	for _, m := range cfg.Multipliers {
		part := Participation(m, meanTurnover, cfg.Costs.MaxParticipationPct)
		impact := ImpactBps(cfg.Costs, m, part, cfg.ParticipationImpact)
		total := cfg.Costs.FeeBps + cfg.Costs.SlippageBps + cfg.Costs.SpreadBps + impact

		for i := range g {
			net[i] = g[i] - total/1e4*tv[i]
		}
		mean, _ := mstats.Mean(net)
		sd, _ := mstats.StandardDeviationSample(net)
		if !(sd > 0) {
			curve.SkippedReason = stats.SkipZeroVariance
			return curve, nil
		}

		rows = append(rows, Row{
			NotionalMultiplier: m,
			SharpeAnnual:       mean / sd * math.Sqrt(periods),
			MeanNetReturn:      mean,
			VolAnnual:          sd * math.Sqrt(periods),
			ParticipationPct:   part,
			ImpactBps:          impact,
			TotalCostBps:       total,
		})
	}

	curve.Rows = rows
	curve.SharpeStrictlyIncreasing = len(rows) >= 2
	for i := 1; i < len(rows); i++ {
		if !(rows[i].SharpeAnnual > rows[i-1].SharpeAnnual) {
			curve.SharpeStrictlyIncreasing = false
			break
		}
	}
	return curve, nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
