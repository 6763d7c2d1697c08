// Package hac tests whether a series has non-zero mean using a Newey-West
// long-run variance with Bartlett weights.
package hac

import (
	"math"

	"edgeproof/domain/series"
	"edgeproof/domain/stats"

	gstat "gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinObservations below which inference is skipped
const MinObservations = 30

// Result of mean inference
type Result struct {
	TStat  float64 `json:"t_hac_mean"`
	PValue float64 `json:"p_hac_mean"`
	Mean   float64 `json:"mean"`
	LRV    float64 `json:"long_run_variance"`
	Lag    int     `json:"lag"`
	N      int     `json:"n"`

	SkippedReason stats.SkipReason `json:"hac_skipped_reason,omitempty"`
}

func (r Result) Skipped() bool { return r.SkippedReason.Skipped() }

// DefaultLag is ⌊4·(n/100)^(2/9)⌋ capped at n/3
func DefaultLag(n int) int {
	if n <= 0 {
		return 0
	}
	lag := int(math.Floor(4 * math.Pow(float64(n)/100, 2.0/9)))
	if ceiling := n / 3; lag > ceiling {
		lag = ceiling
	}
	return lag
}

// LongRunVariance is γ₀ + 2·Σ_{j=1..lag} (1 − j/(lag+1))·γ_j over the
// demeaned series, with autocovariances divided by n.
func LongRunVariance(xs []float64, lag int) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	mean := gstat.Mean(xs, nil)
	resid := make([]float64, n)
	for i, v := range xs {
		resid[i] = v - mean
	}

	lrv := autocovariance(resid, 0)
	if lag >= n {
		lag = n - 1
	}
	for j := 1; j <= lag; j++ {
		w := 1 - float64(j)/float64(lag+1)
		lrv += 2 * w * autocovariance(resid, j)
	}
	return lrv
}

func autocovariance(resid []float64, j int) float64 {
	var s float64
	for t := j; t < len(resid); t++ {
		s += resid[t] * resid[t-j]
	}
	return s / float64(len(resid))
}

// MeanTest computes t = mean·√n / √LRV and p = 2·(1 − Φ(|t|)). Non-finite
// values are excluded. lag < 0 selects DefaultLag.
func MeanTest(xs []float64, lag int) Result {
	finite := series.Finite(xs)
	res := Result{N: len(finite)}
	if res.N < MinObservations {
		res.SkippedReason = stats.SkipHACLowN
		return res
	}
	if lag < 0 {
		lag = DefaultLag(res.N)
	}
	res.Lag = lag
	res.Mean = gstat.Mean(finite, nil)
	if !(gstat.Variance(finite, nil) > 0) {
		res.SkippedReason = stats.SkipZeroVariance
		return res
	}
	res.LRV = LongRunVariance(finite, lag)

	if math.IsNaN(res.LRV) || math.IsInf(res.LRV, 0) {
		res.SkippedReason = stats.SkipNonFiniteVariance
		return res
	}
	if !(res.LRV > 0) {
		res.SkippedReason = stats.SkipZeroVariance
		return res
	}

	res.TStat = res.Mean * math.Sqrt(float64(res.N)) / math.Sqrt(res.LRV)
	res.PValue = TwoSidedP(res.TStat)
	return res
}

// TwoSidedP is 2·(1 − Φ(|z|))
func TwoSidedP(z float64) float64 {
	return 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
}
