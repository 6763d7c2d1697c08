package moments

import (
	"math"
	"testing"

	"edgeproof/domain/stats"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_KnownValues(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}

	s := Estimate(xs)

	assert.False(t, s.Skipped())
	assert.Equal(t, 5, s.N)
	assert.InDelta(t, 3.0, s.Mean, 1e-12)
	assert.InDelta(t, 2.5, s.Variance, 1e-12, "variance must use the n-1 denominator")
	assert.InDelta(t, 3.0/math.Sqrt(2.5), s.RawSR, 1e-12)
	assert.InDelta(t, 0.0, s.Skew, 1e-12, "symmetric data has zero skew")
	assert.Less(t, s.Kurtosis, 0.0, "uniform-like data is platykurtic")
}

func TestEstimate_NaNExcludedButCounted(t *testing.T) {
	xs := []float64{1, math.NaN(), 2, 3, math.Inf(1), 4, 5}

	s := Estimate(xs)

	assert.Equal(t, 5, s.N)
	assert.Equal(t, 7, s.NTotal)
	assert.Equal(t, 2, s.NNaN)
	assert.InDelta(t, 3.0, s.Mean, 1e-12)
}

func TestEstimate_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		xs     []float64
		reason stats.SkipReason
	}{
		{"empty", nil, stats.SkipFewFinite},
		{"single", []float64{0.01}, stats.SkipFewFinite},
		{"only nan", []float64{math.NaN(), math.NaN(), 1}, stats.SkipFewFinite},
		{"constant", []float64{0.02, 0.02, 0.02, 0.02}, stats.SkipZeroVariance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Estimate(tt.xs)
			assert.Equal(t, tt.reason, s.SkippedReason)
			assert.Equal(t, 0.0, s.RawSR)
		})
	}
}

func TestEstimate_ShortSeriesSkipsHigherMoments(t *testing.T) {
	s := Estimate([]float64{1, 3})
	assert.False(t, s.Skipped())
	assert.Equal(t, 0.0, s.Skew)
	assert.Equal(t, 0.0, s.Kurtosis)

	s = Estimate([]float64{1, 3, 8})
	assert.NotEqual(t, 0.0, s.Skew)
	assert.Equal(t, 0.0, s.Kurtosis)
}
