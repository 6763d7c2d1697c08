package breaks

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"edgeproof/domain/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailyIndex(n int) []time.Time {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	index := make([]time.Time, n)
	for i := range index {
		index[i] = start.AddDate(0, 0, i)
	}
	return index
}

func shifted(seed int64, n, at int, jump float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = rng.NormFloat64()
		if i >= at {
			xs[i] += jump
		}
	}
	return xs
}

func alternating(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = 1
		if i%2 == 1 {
			xs[i] = -1
		}
	}
	return xs
}

func TestCUSUM_DetectsMeanShift(t *testing.T) {
	xs := shifted(1, 300, 150, 1.0)
	index := dailyIndex(300)

	res := CUSUM(xs, index, 0.05)

	require.False(t, res.Skipped())
	assert.Equal(t, CalibrationKolmogorov, res.CalibrationMethod)
	assert.Equal(t, CUSUMName, res.TestName)
	assert.True(t, res.BreakSuspected)
	assert.Less(t, res.PValue, 0.01)
	assert.InDelta(t, 150, res.EstimatedBreakIndex, 25)
	require.NotNil(t, res.EstimatedBreakDate)
	assert.Equal(t, index[res.EstimatedBreakIndex], *res.EstimatedBreakDate)
}

func TestCUSUM_StableSeries(t *testing.T) {
	res := CUSUM(alternating(200), nil, 0.05)

	require.False(t, res.Skipped())
	assert.False(t, res.BreakSuspected)
	assert.Greater(t, res.PValue, 0.5)
	assert.Nil(t, res.EstimatedBreakDate)
}

func TestSupChow_DetectsMeanShift(t *testing.T) {
	xs := shifted(2, 300, 120, 1.0)

	res := SupChow(xs, dailyIndex(300), 0.05)

	require.False(t, res.Skipped())
	assert.Equal(t, CalibrationAndrews, res.CalibrationMethod)
	assert.True(t, res.BreakSuspected)
	assert.Greater(t, res.Stat, 20.0)
	assert.InDelta(t, 120, res.EstimatedBreakIndex, 25)
	assert.GreaterOrEqual(t, res.EstimatedBreakIndex, 45, "scan is trimmed")
	assert.LessOrEqual(t, res.EstimatedBreakIndex, 255, "scan is trimmed")
}

func TestSupChow_StableSeries(t *testing.T) {
	res := SupChow(alternating(200), nil, 0.05)
	require.False(t, res.Skipped())
	assert.False(t, res.BreakSuspected)
}

func TestBreakIndexSkipsNonFinite(t *testing.T) {
	xs := shifted(3, 300, 150, 2.0)
	for i := 0; i < 10; i++ {
		xs[i] = math.NaN()
	}

	res := SupChow(xs, dailyIndex(300), 0.05)

	assert.Equal(t, 290, res.N)
	assert.InDelta(t, 150, res.EstimatedBreakIndex, 10)
}

func TestMinimumObservations(t *testing.T) {
	short := shifted(4, 19, 10, 1)
	assert.Equal(t, stats.SkipCUSUMLowN, CUSUM(short, nil, 0.05).SkippedReason)
	assert.Equal(t, "n < 20", CUSUM(short, nil, 0.05).SkippedReason.String())

	medium := shifted(4, 99, 50, 1)
	assert.False(t, CUSUM(medium, nil, 0.05).Skipped())
	assert.Equal(t, stats.SkipChowLowN, SupChow(medium, nil, 0.05).SkippedReason)
}

func TestConstantSeriesSkips(t *testing.T) {
	xs := make([]float64, 150)
	for i := range xs {
		xs[i] = 0.003
	}
	assert.Equal(t, stats.SkipZeroVariance, CUSUM(xs, nil, 0.05).SkippedReason)
	assert.Equal(t, stats.SkipZeroVariance, SupChow(xs, nil, 0.05).SkippedReason)
}

func TestKolmogorovSurvival(t *testing.T) {
	assert.InDelta(t, 0.05, KolmogorovSurvival(1.3581), 1e-3)
	assert.InDelta(t, 0.01, KolmogorovSurvival(1.6276), 1e-3)
	assert.Equal(t, 1.0, KolmogorovSurvival(0))
	assert.InDelta(t, 1.0, KolmogorovSurvival(0.2), 1e-6)
}

func TestAndrewsPValue_CriticalValues(t *testing.T) {
	assert.InDelta(t, 0.10, AndrewsPValue(7.12, Trim, 1-Trim), 2e-3)
	assert.InDelta(t, 0.05, AndrewsPValue(8.68, Trim, 1-Trim), 2e-3)
	assert.InDelta(t, 0.01, AndrewsPValue(12.16, Trim, 1-Trim), 2e-3)

	assert.Equal(t, 1.0, AndrewsPValue(0, Trim, 1-Trim))
	assert.Equal(t, 0.0, AndrewsPValue(math.Inf(1), Trim, 1-Trim))

	prev := 1.0
	for c := 0.1; c < 30; c += 0.1 {
		p := AndrewsPValue(c, Trim, 1-Trim)
		assert.LessOrEqual(t, p, prev+1e-12, "p-value must not increase with c (c=%v)", c)
		prev = p
	}
}
