// Package moments computes the per-series summary statistics that feed the
// Sharpe deflation: sample mean, n-1 variance, skewness, excess kurtosis and
// the raw (per-period) Sharpe ratio.
package moments

import (
	"math"

	"edgeproof/domain/series"
	"edgeproof/domain/stats"

	"gonum.org/v1/gonum/stat"
)

// StatisticSummary is computed once per series per run and never mutated.
// Kurtosis is excess kurtosis (normal = 0).
type StatisticSummary struct {
	RawSR    float64 `json:"raw_sr"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance_estimate"`
	StdDev   float64 `json:"std_dev"`
	Skew     float64 `json:"skew"`
	Kurtosis float64 `json:"kurtosis"`
	N        int     `json:"n"`
	NTotal   int     `json:"n_total"`
	NNaN     int     `json:"n_nan"`

	SkippedReason stats.SkipReason `json:"skipped_reason,omitempty"`
}

// Skipped reports whether the summary carries no usable moments
func (s StatisticSummary) Skipped() bool { return s.SkippedReason.Skipped() }

// Estimate summarises xs. Non-finite values are excluded from the moments but
// counted in NTotal and NNaN.
func Estimate(xs []float64) StatisticSummary {
	finite := series.Finite(xs)
	summary := StatisticSummary{
		N:      len(finite),
		NTotal: len(xs),
		NNaN:   len(xs) - len(finite),
	}

	if len(finite) < 2 {
		summary.SkippedReason = stats.SkipFewFinite
		return summary
	}

	mean, variance := stat.MeanVariance(finite, nil)
	summary.Mean = mean
	summary.Variance = variance
	summary.StdDev = math.Sqrt(variance)

	if !(summary.StdDev > 0) || math.IsInf(variance, 0) {
		summary.SkippedReason = stats.SkipZeroVariance
		return summary
	}

	summary.RawSR = mean / summary.StdDev

	// gonum's estimators divide by (n-2) and (n-3)
	if len(finite) >= 3 {
		summary.Skew = stat.Skew(finite, nil)
	}
	if len(finite) >= 4 {
		summary.Kurtosis = stat.ExKurtosis(finite, nil)
	}

	return summary
}

// EstimateSeries is Estimate over a ReturnSeries
func EstimateSeries(s *series.ReturnSeries) StatisticSummary {
	return Estimate(s.Values())
}
