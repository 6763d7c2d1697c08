// Package realitycheck implements White's Reality Check: a max-statistic
// bootstrap test over a hypothesis set in which every draw applies one shared
// index sequence to all hypotheses, plus the Romano-Wolf stepdown over the
// same joint null.
package realitycheck

import (
	"context"
	"fmt"
	"math"

	"edgeproof/domain/core"
	"edgeproof/domain/series"
	"edgeproof/domain/stats"
	"edgeproof/internal/bootstrap"
)

// Config of one Reality Check run
type Config struct {
	Method         bootstrap.Method
	AvgBlockLength float64
	BlockSize      int
	NSim           int
	Seed           int64

	// Recenter subtracts each hypothesis' observed statistic from its
	// resampled statistic before taking the max.
	Recenter bool
	// RetainNull keeps the draw×hypothesis null matrix for Romano-Wolf
	RetainNull bool
	Workers    int
	Statistic  Statistic
}

// Result of one run. NullMatrix holds one row per completed draw (in draw
// order) and one column per hypothesis; it is nil unless RetainNull was set
// or when the result was restored from a cache.
type Result struct {
	IDs         []core.HypothesisID
	Observed    []float64
	ObservedMax float64
	Best        core.HypothesisID

	PValue        float64
	RequestedNSim int
	ActualNSim    int
	Shortfall     bool

	Method     bootstrap.Method
	BlockParam float64
	Seed       int64
	Recentered bool

	NullMatrix [][]float64

	SkippedReason stats.SkipReason
}

func (r Result) Skipped() bool { return r.SkippedReason.Skipped() }

// ObservedFor returns the observed statistic of id
func (r Result) ObservedFor(id core.HypothesisID) (float64, bool) {
	for k, candidate := range r.IDs {
		if candidate == id {
			return r.Observed[k], true
		}
	}
	return math.NaN(), false
}

// Run computes T_obs = max_k f(x_k) and, for each draw b, T*(b) = max_k
// f(x_k[idx_b]) (minus f(x_k) when recentred). The p-value is
// (1 + #{T*(b) ≥ T_obs}) / (B + 1) over the B draws that completed before ctx
// ended.
func Run(ctx context.Context, set *series.AlignedSet, cfg Config) (Result, error) {
	if set == nil || set.Width() == 0 {
		return Result{}, fmt.Errorf("%w: empty hypothesis set", core.ErrInsufficientData)
	}
	if cfg.NSim < 1 {
		return Result{}, core.NewValidationError("n_sim", fmt.Sprintf("must be >= 1, got %d", cfg.NSim))
	}
	engine, err := bootstrap.NewEngine(cfg.Method, cfg.AvgBlockLength, cfg.BlockSize, cfg.Seed)
	if err != nil {
		return Result{}, err
	}
	f := cfg.Statistic
	if f == nil {
		f = Mean
	}

	k := set.Width()
	n := set.Len()
	res := Result{
		IDs:           append([]core.HypothesisID(nil), set.IDs...),
		Observed:      make([]float64, k),
		RequestedNSim: cfg.NSim,
		Method:        engine.Method(),
		BlockParam:    engine.BlockParam(),
		Seed:          cfg.Seed,
		Recentered:    cfg.Recenter,
	}

	best := -1
	for j, col := range set.Columns {
		res.Observed[j] = f(col)
		if isFinite(res.Observed[j]) && (best < 0 || res.Observed[j] > res.Observed[best]) {
			best = j
		}
	}
	if best < 0 {
		res.ObservedMax = math.NaN()
		res.SkippedReason = stats.SkipNonFiniteObserved
		return res, nil
	}
	res.ObservedMax = res.Observed[best]
	res.Best = res.IDs[best]

	nullMax := make([]float64, cfg.NSim)
	var rows [][]float64
	if cfg.RetainNull {
		rows = make([][]float64, cfg.NSim)
	}

	progress := bootstrap.Run(ctx, cfg.NSim, cfg.Workers, func(b int) {
		idx := engine.Draw(b, n)
		row := make([]float64, k)
		for j, col := range set.Columns {
			v := f(bootstrap.Apply(col, idx))
			if cfg.Recenter {
				v -= res.Observed[j]
			}
			row[j] = v
		}
		nullMax[b] = maxFinite(row)
		if rows != nil {
			rows[b] = row
		}
	})

	res.ActualNSim = progress.Completed
	res.Shortfall = progress.Shortfall()
	if res.ActualNSim == 0 {
		res.SkippedReason = stats.SkipNoDraws
		return res, nil
	}

	var exceed int
	for b, done := range progress.Done {
		if !done {
			continue
		}
		if nullMax[b] >= res.ObservedMax {
			exceed++
		}
		if rows != nil {
			res.NullMatrix = append(res.NullMatrix, rows[b])
		}
	}
	res.PValue = float64(1+exceed) / float64(res.ActualNSim+1)
	return res, nil
}

// maxFinite is the max over finite entries, -Inf when there are none
func maxFinite(row []float64) float64 {
	m := math.Inf(-1)
	for _, v := range row {
		if isFinite(v) && v > m {
			m = v
		}
	}
	return m
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
