// Package pbo estimates the probability of backtest overfitting, either as a
// walk-forward median-underperformance proxy or through combinatorially
// symmetric cross-validation (CSCV).
package pbo

import (
	"math"

	"edgeproof/domain/stats"

	mstats "github.com/montanaflynn/stats"
)

// WalkForwardRow is one split of an external walk-forward evaluation
type WalkForwardRow struct {
	SplitID     string  `json:"split_id" yaml:"split_id"`
	TrainMetric float64 `json:"train_metric" yaml:"train_metric"`
	TestMetric  float64 `json:"test_metric" yaml:"test_metric"`
}

// WalkForwardResult is a heuristic, not a calibrated overfitting probability
type WalkForwardResult struct {
	PBO        float64 `json:"pbo_walk_forward"`
	MedianTest float64 `json:"median_test_metric"`
	NRows      int     `json:"n_rows"`
	NSplits    int     `json:"n_splits"`
	NNonFinite int     `json:"n_non_finite"`

	SkippedReason stats.SkipReason `json:"skipped_reason,omitempty"`
}

// WalkForward is the share of rows whose test metric falls strictly below the
// median test metric. Rows with a non-finite test metric are excluded and
// counted; at least two distinct split ids must remain.
func WalkForward(rows []WalkForwardRow) WalkForwardResult {
	tests := make([]float64, 0, len(rows))
	splits := make(map[string]struct{}, len(rows))
	var res WalkForwardResult
	for _, r := range rows {
		if !isFinite(r.TestMetric) {
			res.NNonFinite++
			continue
		}
		tests = append(tests, r.TestMetric)
		splits[r.SplitID] = struct{}{}
	}
	res.NRows = len(tests)
	res.NSplits = len(splits)

	if len(splits) < 2 {
		res.SkippedReason = stats.SkipWalkForwardLow
		return res
	}

	median, err := mstats.Median(tests)
	if err != nil {
		res.SkippedReason = stats.SkipWalkForwardLow
		return res
	}
	res.MedianTest = median

	var below int
	for _, v := range tests {
		if v < median {
			below++
		}
	}
	res.PBO = float64(below) / float64(len(tests))
	return res
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
