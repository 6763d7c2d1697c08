// Package dsr computes the deflated Sharpe ratio: the standardized exceedance
// of an observed per-period Sharpe ratio over the extreme-value
// approximation of the best Sharpe expected from N null trials.
package dsr

import (
	"math"

	"edgeproof/domain/stats"
	"edgeproof/internal/moments"
	"edgeproof/internal/trials"
)

// VarianceFloor bounds σ̂²(SR) from below
const VarianceFloor = 1e-12

// Result of one deflation
type Result struct {
	RawSR           float64 `json:"raw_sr"`
	SigmaSR         float64 `json:"sigma_sr"`
	ExpectedMaxNull float64 `json:"expected_max_null"`
	DSR             float64 `json:"deflated_sr"`
	NTrials         float64 `json:"n_trials_used"`

	SkippedReason stats.SkipReason `json:"skipped_reason,omitempty"`
}

func (r Result) Skipped() bool { return r.SkippedReason.Skipped() }

// SharpeVariance is [1 + ½SR² − γ·SR + ¼κ·SR²] / n with κ the excess
// kurtosis, floored at VarianceFloor. The second return is false when the
// expression is not finite.
func SharpeVariance(sr, skew, exKurt float64, n int) (float64, bool) {
	if n <= 0 {
		return 0, false
	}
	v := (1 + 0.5*sr*sr - skew*sr + 0.25*exKurt*sr*sr) / float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < VarianceFloor {
		v = VarianceFloor
	}
	return v, true
}

// Compute deflates summary.RawSR against nTrials trials:
// DSR = SR/σ̂(SR) − √(2·ln N).
func Compute(summary moments.StatisticSummary, nTrials float64) Result {
	res := Result{RawSR: summary.RawSR, NTrials: nTrials}

	if summary.Skipped() {
		res.SkippedReason = stats.SkipMomentsMissing
		return res
	}
	if !(nTrials >= 1) || math.IsInf(nTrials, 0) {
		res.SkippedReason = stats.SkipInvalidTrials
		return res
	}

	variance, ok := SharpeVariance(summary.RawSR, summary.Skew, summary.Kurtosis, summary.N)
	if !ok {
		res.SkippedReason = stats.SkipNonFiniteVariance
		return res
	}

	penalty := math.Sqrt(2 * math.Log(nTrials))
	res.SigmaSR = math.Sqrt(variance)
	res.ExpectedMaxNull = res.SigmaSR * penalty
	res.DSR = summary.RawSR/res.SigmaSR - penalty
	return res
}

// TrialSource records where the trial count came from
type TrialSource string

const (
	SourceExplicit TrialSource = "explicit"
	SourceEigen    TrialSource = "eigen"
	SourceNominal  TrialSource = "nominal"
)

// ResolveTrials turns a TrialCount into the N handed to Compute. Auto uses
// the effective-trials estimate, falling back to the nominal hypothesis count
// when that estimate was skipped.
func ResolveTrials(tc TrialCount, eff trials.Result, nominal int) (float64, TrialSource) {
	if n, ok := tc.Explicit(); ok {
		return float64(n), SourceExplicit
	}
	if !eff.SkippedReason.Skipped() && eff.NEff > 0 {
		return math.Max(1, eff.NEff), SourceEigen
	}
	if nominal < 1 {
		nominal = 1
	}
	return float64(nominal), SourceNominal
}
