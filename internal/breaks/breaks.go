// Package breaks screens a return series for a single shift in its mean:
// a HAC-scaled CUSUM test and a sup-Chow scan over trimmed break dates.
package breaks

import (
	"math"
	"time"

	"edgeproof/domain/stats"
	"edgeproof/internal/hac"

	"gonum.org/v1/gonum/floats"
	gstat "gonum.org/v1/gonum/stat"
)

const (
	CUSUMName = "cusum_mean_shift"
	ChowName  = "sup_chow_mean_shift"

	CalibrationKolmogorov = "hac_kolmogorov"
	CalibrationAndrews    = "andrews_asymptotic"

	MinCUSUMObservations = 20
	MinChowObservations  = 100

	// Trim is the share of observations excluded at each end of the sup-Chow scan
	Trim = 0.15

	DefaultAlpha = 0.05
)

// Result is shared by both tests. EstimatedBreakIndex addresses the input
// slice, including any non-finite entries skipped by the test.
type Result struct {
	TestName            string     `json:"test_name"`
	Stat                float64    `json:"stat"`
	PValue              float64    `json:"p_value"`
	BreakSuspected      bool       `json:"break_suspected"`
	EstimatedBreakIndex int        `json:"estimated_break_index"`
	EstimatedBreakDate  *time.Time `json:"estimated_break_date,omitempty"`
	CalibrationMethod   string     `json:"calibration_method"`
	N                   int        `json:"n"`

	SkippedReason stats.SkipReason `json:"skipped_reason,omitempty"`
}

func (r Result) Skipped() bool { return r.SkippedReason.Skipped() }

// finiteView keeps the finite values and their positions in the original slice
func finiteView(xs []float64) (values []float64, positions []int) {
	for i, v := range xs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
			positions = append(positions, i)
		}
	}
	return values, positions
}

func (r *Result) locate(k int, positions []int, index []time.Time) {
	r.EstimatedBreakIndex = positions[k]
	if positions[k] < len(index) {
		date := index[positions[k]]
		r.EstimatedBreakDate = &date
	}
}

func alphaOrDefault(alpha float64) float64 {
	if !(alpha > 0 && alpha < 1) {
		return DefaultAlpha
	}
	return alpha
}

// CUSUM computes max_k |S_k| / (σ̂_LR·√n) over partial sums of the demeaned
// series, σ̂²_LR being the Newey-West long-run variance at the default lag.
// Under no break the statistic follows sup|Brownian bridge|. index may be nil.
func CUSUM(xs []float64, index []time.Time, alpha float64) Result {
	values, positions := finiteView(xs)
	n := len(values)
	res := Result{TestName: CUSUMName, CalibrationMethod: CalibrationKolmogorov, N: n}
	if n < MinCUSUMObservations {
		res.SkippedReason = stats.SkipCUSUMLowN
		return res
	}
	if !(gstat.Variance(values, nil) > 0) {
		res.SkippedReason = stats.SkipZeroVariance
		return res
	}
	lrv := hac.LongRunVariance(values, hac.DefaultLag(n))
	if math.IsNaN(lrv) || math.IsInf(lrv, 0) || !(lrv > 0) {
		res.SkippedReason = stats.SkipNonFiniteVariance
		return res
	}

	mean := gstat.Mean(values, nil)
	resid := make([]float64, n)
	for i, v := range values {
		resid[i] = v - mean
	}
	partial := floats.CumSum(make([]float64, n), resid)
	for i, s := range partial {
		partial[i] = math.Abs(s)
	}
	k := floats.MaxIdx(partial)

	res.Stat = partial[k] / (math.Sqrt(lrv) * math.Sqrt(float64(n)))
	res.PValue = KolmogorovSurvival(res.Stat)
	res.BreakSuspected = res.PValue < alphaOrDefault(alpha)
	// S_k covers observations 0..k, so the shift starts at k+1
	next := k + 1
	if next >= n {
		next = n - 1
	}
	res.locate(next, positions, index)
	return res
}

// KolmogorovSurvival is P(sup|B(t)| > x) = 2·Σ_{k≥1} (−1)^{k−1}·exp(−2k²x²)
func KolmogorovSurvival(x float64) float64 {
	if !(x > 0) {
		return 1
	}
	var sum float64
	for k := 1; k <= 100; k++ {
		term := math.Exp(-2 * float64(k*k) * x * x)
		if k%2 == 1 {
			sum += term
		} else {
			sum -= term
		}
		if term < 1e-16 {
			break
		}
	}
	return clamp01(2 * sum)
}

// SupChow scans every break date in the central 70% of the sample and
// reports the largest Chow F for a shift in mean (one restriction).
func SupChow(xs []float64, index []time.Time, alpha float64) Result {
	values, positions := finiteView(xs)
	n := len(values)
	res := Result{TestName: ChowName, CalibrationMethod: CalibrationAndrews, N: n}
	if n < MinChowObservations {
		res.SkippedReason = stats.SkipChowLowN
		return res
	}
	if !(gstat.Variance(values, nil) > 0) {
		res.SkippedReason = stats.SkipZeroVariance
		return res
	}

	prefix := floats.CumSum(make([]float64, n), values)
	var sumSq float64
	for _, v := range values {
		sumSq += v * v
	}
	total := prefix[n-1]
	fitRestricted := total * total / float64(n)

	lo := int(math.Ceil(Trim * float64(n)))
	hi := int(math.Floor((1 - Trim) * float64(n)))
	best, bestK := math.Inf(-1), lo
	for k := lo; k <= hi; k++ {
		s1 := prefix[k-1]
		s2 := total - s1
		fitUnrestricted := s1*s1/float64(k) + s2*s2/float64(n-k)
		rssU := sumSq - fitUnrestricted
		var f float64
		if rssU <= 0 {
			f = math.Inf(1)
		} else {
			f = (fitUnrestricted - fitRestricted) / (rssU / float64(n-2))
		}
		if f > best {
			best, bestK = f, k
		}
	}

	res.Stat = best
	res.PValue = AndrewsPValue(best, Trim, 1-Trim)
	res.BreakSuspected = res.PValue < alphaOrDefault(alpha)
	res.locate(bestK, positions, index)
	return res
}

// AndrewsPValue approximates P(sup F > c) for one restriction with the scan
// restricted to [pi1, pi2] (Andrews 1993, Hansen 1997 approximation):
// c^{1/2}·e^{−c/2} / (√2·Γ(1/2)) · [(1 − 1/c)·ln λ + 2/c],
// λ = pi2(1−pi1) / (pi1(1−pi2)). The expression only describes the upper
// tail; below its maximum the p-value is interpolated linearly up to 1 at c = 0.
func AndrewsPValue(c, pi1, pi2 float64) float64 {
	if math.IsInf(c, 1) {
		return 0
	}
	if !(c > 0) {
		return 1
	}
	logLambda := math.Log(pi2 * (1 - pi1) / (pi1 * (1 - pi2)))

	peak, peakP := 0.0, 0.0
	for x := 0.01; x <= 10; x += 0.01 {
		if p := andrewsTail(x, logLambda); p > peakP {
			peak, peakP = x, p
		}
	}
	peakP = clamp01(peakP)
	if c < peak {
		return 1 - (1-peakP)*c/peak
	}
	return clamp01(math.Min(peakP, andrewsTail(c, logLambda)))
}

func andrewsTail(c, logLambda float64) float64 {
	density := math.Sqrt(c) * math.Exp(-c/2) / (math.Sqrt2 * math.Gamma(0.5))
	return density * ((1-1/c)*logLambda + 2/c)
}

func clamp01(p float64) float64 {
	if math.IsNaN(p) || p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}
