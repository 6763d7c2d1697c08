package realitycheck

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"edgeproof/domain/core"
	"edgeproof/domain/series"
	"edgeproof/domain/stats"
	"edgeproof/internal/bootstrap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alignedSet(t *testing.T, seed int64, n int, means ...float64) *series.AlignedSet {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	set := series.HypothesisSet{}
	for k, mu := range means {
		values := make([]float64, n)
		for i := range values {
			values[i] = mu + 0.01*rng.NormFloat64()
		}
		id := core.HypothesisID(string(rune('a' + k)))
		require.NoError(t, set.Add(series.FromValues(id, start, values)))
	}
	aligned, err := set.Align()
	require.NoError(t, err)
	return aligned
}

func baseConfig() Config {
	return Config{
		Method:         bootstrap.Stationary,
		AvgBlockLength: 5,
		NSim:           200,
		Seed:           42,
		Recenter:       true,
		RetainNull:     true,
		Workers:        4,
	}
}

func TestRun_PValueBounds(t *testing.T) {
	set := alignedSet(t, 1, 250, 0, 0, 0)
	cfg := baseConfig()

	res, err := Run(context.Background(), set, cfg)
	require.NoError(t, err)
	require.False(t, res.Skipped())

	assert.Greater(t, res.PValue, 0.0)
	assert.LessOrEqual(t, res.PValue, 1.0)
	assert.GreaterOrEqual(t, res.PValue, 1.0/float64(cfg.NSim+1))
	assert.Equal(t, cfg.NSim, res.ActualNSim)
	assert.False(t, res.Shortfall)
	assert.Len(t, res.NullMatrix, cfg.NSim)
}

func TestRun_StrongSignalHitsMinimumPValue(t *testing.T) {
	set := alignedSet(t, 2, 300, 0, 0.02)
	cfg := baseConfig()

	res, err := Run(context.Background(), set, cfg)
	require.NoError(t, err)

	assert.Equal(t, core.HypothesisID("b"), res.Best)
	assert.InDelta(t, 1.0/float64(cfg.NSim+1), res.PValue, 1e-15)
}

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	set := alignedSet(t, 3, 180, 0.001, 0, -0.001)

	for _, method := range []bootstrap.Method{bootstrap.Stationary, bootstrap.Fixed} {
		cfg := baseConfig()
		cfg.Method = method
		cfg.BlockSize = 6

		cfg.Workers = 1
		serial, err := Run(context.Background(), set, cfg)
		require.NoError(t, err)

		cfg.Workers = 8
		parallel, err := Run(context.Background(), set, cfg)
		require.NoError(t, err)

		assert.Equal(t, serial.PValue, parallel.PValue)
		assert.Equal(t, serial.NullMatrix, parallel.NullMatrix)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	set := alignedSet(t, 4, 100, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, set, baseConfig())
	require.NoError(t, err)

	assert.Equal(t, stats.SkipNoDraws, res.SkippedReason)
	assert.Equal(t, 0, res.ActualNSim)
	assert.Equal(t, 200, res.RequestedNSim)
	assert.True(t, res.Shortfall)
}

func TestRun_NonFiniteObserved(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	set := series.HypothesisSet{}
	require.NoError(t, set.Add(series.FromValues("flat", start, []float64{1, 1, 1, 1})))
	aligned, err := set.Align()
	require.NoError(t, err)

	cfg := baseConfig()
	cfg.Statistic = Sharpe
	res, err := Run(context.Background(), aligned, cfg)
	require.NoError(t, err)
	assert.Equal(t, stats.SkipNonFiniteObserved, res.SkippedReason)
}

func TestRun_RejectsBadConfig(t *testing.T) {
	set := alignedSet(t, 5, 50, 0)

	cfg := baseConfig()
	cfg.NSim = 0
	_, err := Run(context.Background(), set, cfg)
	assert.True(t, core.IsValidationError(err))

	cfg = baseConfig()
	cfg.AvgBlockLength = 0
	_, err = Run(context.Background(), set, cfg)
	assert.True(t, core.IsValidationError(err))
}

// twinsAndShifted returns columns a and b with identical values and c = a + 0.01
func twinsAndShifted(t *testing.T, n int) *series.AlignedSet {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	a := make([]float64, n)
	c := make([]float64, n)
	for i := range a {
		a[i] = 0.01 * rng.NormFloat64()
		c[i] = a[i] + 0.01
	}
	set := series.HypothesisSet{}
	require.NoError(t, set.Add(series.FromValues("a", start, a)))
	require.NoError(t, set.Add(series.FromValues("b", start, append([]float64(nil), a...))))
	require.NoError(t, set.Add(series.FromValues("c", start, c)))
	aligned, err := set.Align()
	require.NoError(t, err)
	return aligned
}

func TestRun_OneIndexSequencePerDraw(t *testing.T) {
	set := twinsAndShifted(t, 250)
	cfg := baseConfig()

	res, err := Run(context.Background(), set, cfg)
	require.NoError(t, err)
	require.False(t, res.Skipped())
	require.Len(t, res.NullMatrix, cfg.NSim)
	assert.Equal(t, core.HypothesisID("c"), res.Best)

	for b, row := range res.NullMatrix {
		assert.Equal(t, row[0], row[1], "draw %d", b)
		assert.InDelta(t, row[0], row[2], 1e-12, "draw %d", b)
	}
	assert.InDelta(t, 1/float64(cfg.NSim+1), res.PValue, 1e-15)
}

func TestRun_UncentredNull(t *testing.T) {
	set := twinsAndShifted(t, 250)
	cfg := baseConfig()
	cfg.Recenter = false

	res, err := Run(context.Background(), set, cfg)
	require.NoError(t, err)
	require.False(t, res.Skipped())
	assert.False(t, res.Recentered)

	for b, row := range res.NullMatrix {
		assert.Equal(t, row[0], row[1], "draw %d", b)
		assert.InDelta(t, 0.01, row[2]-row[0], 1e-12, "draw %d", b)
	}
	// the raw resampled max straddles the observed max
	assert.Greater(t, res.PValue, 0.3)
	assert.Less(t, res.PValue, 0.7)
}

func TestRomanoWolf_MonotoneAndAnchoredOnReality(t *testing.T) {
	set := alignedSet(t, 6, 250, 0.002, 0.0005, 0, -0.001)

	res, err := Run(context.Background(), set, baseConfig())
	require.NoError(t, err)

	rw := RomanoWolf(res)
	require.False(t, rw.SkippedReason.Skipped())
	require.Len(t, rw.Order, 4)

	assert.Equal(t, res.Best, rw.Order[0])
	assert.InDelta(t, res.PValue, rw.AdjustedP[rw.Order[0]], 1e-15, "first step uses the full max")
	for j := 1; j < len(rw.Order); j++ {
		assert.GreaterOrEqual(t, rw.AdjustedP[rw.Order[j]], rw.AdjustedP[rw.Order[j-1]])
	}
	for _, p := range rw.AdjustedP {
		assert.Greater(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestStepdown_RejectedIsPrefixAtAlpha(t *testing.T) {
	rw := StepdownResult{
		AdjustedP: map[core.HypothesisID]float64{"a": 0.01, "b": 0.05, "c": 0.2},
		Order:     []core.HypothesisID{"a", "b", "c"},
	}
	assert.Equal(t, []core.HypothesisID{"a", "b"}, rw.Rejected(0.05))
	assert.Equal(t, []core.HypothesisID{"a"}, rw.Rejected(0.01))
	assert.Nil(t, rw.Rejected(0.001))
	assert.Nil(t, StepdownResult{}.Rejected(0.05))
}

func TestRomanoWolf_EmptyWithoutNullMatrix(t *testing.T) {
	set := alignedSet(t, 7, 120, 0, 0.001)
	cfg := baseConfig()

	res, err := Run(context.Background(), set, cfg)
	require.NoError(t, err)

	restored := res.Snapshot().Result()
	rw := RomanoWolf(restored)
	assert.Equal(t, stats.SkipNullNotRetained, rw.SkippedReason)
	assert.Empty(t, rw.AdjustedP)

	cfg.RetainNull = false
	res, err = Run(context.Background(), set, cfg)
	require.NoError(t, err)
	assert.Nil(t, res.NullMatrix)
	assert.Equal(t, stats.SkipNullNotRetained, RomanoWolf(res).SkippedReason)
}

func TestRomanoWolf_NonFiniteObserved(t *testing.T) {
	res := Result{
		IDs:        []core.HypothesisID{"a", "b"},
		Observed:   []float64{0.1, math.NaN()},
		NullMatrix: [][]float64{{0, 0}},
	}
	rw := RomanoWolf(res)
	assert.Equal(t, stats.SkipNonFiniteObserved, rw.SkippedReason)
	assert.Empty(t, rw.AdjustedP)
}

func TestSnapshot_RoundTripPreservesScalars(t *testing.T) {
	res := Result{
		IDs:           []core.HypothesisID{"a", "b"},
		Observed:      []float64{0.3, math.NaN()},
		ObservedMax:   0.3,
		Best:          "a",
		PValue:        0.04,
		RequestedNSim: 100,
		ActualNSim:    90,
		Shortfall:     true,
		Method:        bootstrap.Fixed,
		BlockParam:    7,
		NullMatrix:    [][]float64{{1, 2}},
	}

	back := res.Snapshot().Result()

	assert.Nil(t, back.NullMatrix)
	assert.Equal(t, 0.3, back.Observed[0])
	assert.True(t, math.IsNaN(back.Observed[1]))
	assert.Equal(t, res.PValue, back.PValue)
	assert.Equal(t, res.Shortfall, back.Shortfall)
	assert.Equal(t, res.Method, back.Method)
}

func TestStatistics(t *testing.T) {
	assert.InDelta(t, 2.0, Mean([]float64{1, math.NaN(), 3}), 1e-15)
	assert.True(t, math.IsNaN(Mean([]float64{math.NaN()})))
	assert.True(t, math.IsNaN(Sharpe([]float64{2, 2, 2})))
	assert.InDelta(t, 2/math.Sqrt(2), Sharpe([]float64{1, 3}), 1e-12)

	_, err := StatisticByName("sortino")
	assert.Error(t, err)
}
