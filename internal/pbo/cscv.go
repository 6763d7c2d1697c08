package pbo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"edgeproof/domain/core"
	"edgeproof/domain/stats"
	"edgeproof/internal/bootstrap"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/combin"
)

// CSCVConfig of one overfitting estimate
type CSCVConfig struct {
	Splits    int // S, number of contiguous blocks; must be even
	MaxSplits int // cap on sampled partitions; <= 0 means C(S, S/2)
	Seed      int64
	Workers   int
}

// CSCVResult reports PBO as the share of sampled partitions in which the
// in-sample winner ranks in the bottom half out of sample.
type CSCVResult struct {
	PBO             float64   `json:"pbo_cscv"`
	NSplits         int       `json:"n_splits"`
	RequestedSplits int       `json:"requested_splits"`
	NPossibleSplits float64   `json:"n_possible_splits"`
	MedianLogit     *float64  `json:"median_logit,omitempty"`
	DroppedPeriods  int       `json:"dropped_periods"`
	Lambdas         []float64 `json:"-"`

	SkippedReason stats.SkipReason `json:"skipped_reason,omitempty"`
}

func (r CSCVResult) Skipped() bool { return r.SkippedReason.Skipped() }

const (
	// maxExactS bounds S for which C(S, S/2) is computed exactly in an int
	maxExactS = 60
	// maxUncappedSplits bounds the partitions sampled when MaxSplits <= 0
	maxUncappedSplits = 1 << 20
)

// CSCV estimates PBO over a T×J matrix of per-period returns. The earliest
// T mod S periods are dropped so the S blocks are equal. Each of the
// min(C(S,S/2), MaxSplits) iterations draws a random permutation of block
// indices (split s seeds with Seed+s) and takes the first S/2 as train;
// partitions are sampled, not enumerated, even when the cap exceeds
// C(S,S/2). Strategies are scored by per-period Sharpe, the in-sample winner
// is located by midrank among the J out-of-sample scores, and
// λ = logit(rank/J).
func CSCV(ctx context.Context, rows [][]float64, cfg CSCVConfig) (CSCVResult, error) {
	T := len(rows)
	J := 0
	if T > 0 {
		J = len(rows[0])
	}
	for t, row := range rows {
		if len(row) != J {
			return CSCVResult{}, core.NewShapeError(fmt.Sprintf("row %d", t), len(row), J)
		}
	}

	S := cfg.Splits
	switch {
	case J < 2:
		return CSCVResult{SkippedReason: stats.SkipFewCandidates}, nil
	case S%2 != 0:
		return CSCVResult{SkippedReason: stats.SkipOddSplits}, nil
	case S < 2:
		return CSCVResult{}, core.NewValidationError("cscv_splits", fmt.Sprintf("must be >= 2, got %d", S))
	case T < S*4:
		return CSCVResult{SkippedReason: stats.SkipFewPeriods}, nil
	}

	res := CSCVResult{NPossibleSplits: possibleSplits(S)}
	switch {
	case cfg.MaxSplits > 0 && float64(cfg.MaxSplits) < res.NPossibleSplits:
		res.RequestedSplits = cfg.MaxSplits
	case res.NPossibleSplits <= maxUncappedSplits:
		res.RequestedSplits = int(res.NPossibleSplits)
	default:
		return CSCVResult{}, core.NewValidationError("cscv_max_splits",
			fmt.Sprintf("required when C(%d, %d) exceeds %d", S, S/2, maxUncappedSplits))
	}

	res.DroppedPeriods = T % S
	blocks := blockMoments(rows[res.DroppedPeriods:], S, J)

	lambdas := make([]float64, res.RequestedSplits)
	progress := bootstrap.Run(ctx, res.RequestedSplits, cfg.Workers, func(s int) {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(s)))
		perm := rng.Perm(S)
		lambdas[s] = splitLogit(blocks, perm[:S/2], perm[S/2:], J)
	})

	res.NSplits = progress.Completed
	if res.NSplits == 0 {
		res.SkippedReason = stats.SkipNoDraws
		return res, nil
	}

	var below int
	finite := make([]float64, 0, res.NSplits)
	res.Lambdas = make([]float64, 0, res.NSplits)
	for s, done := range progress.Done {
		if !done {
			continue
		}
		l := lambdas[s]
		res.Lambdas = append(res.Lambdas, l)
		if l < 0 {
			below++
		}
		if isFinite(l) {
			finite = append(finite, l)
		}
	}
	res.PBO = float64(below) / float64(res.NSplits)

	if median, err := mstats.Median(finite); err == nil {
		res.MedianLogit = &median
	}
	return res, nil
}

// possibleSplits is C(S, S/2), exact up to maxExactS and from the gamma
// function beyond
func possibleSplits(S int) float64 {
	if S > maxExactS {
		return combin.GeneralizedBinomial(float64(S), float64(S/2))
	}
	return float64(combin.Binomial(S, S/2))
}

// moment holds sufficient statistics of the finite values of one strategy in one block
type moment struct {
	n          int
	sum, sumSq float64
}

func (m *moment) add(o moment) {
	m.n += o.n
	m.sum += o.sum
	m.sumSq += o.sumSq
}

// sharpe is mean/stddev; undefined or degenerate scores rank lowest
func (m moment) sharpe() float64 {
	if m.n < 2 {
		return math.Inf(-1)
	}
	mean := m.sum / float64(m.n)
	variance := (m.sumSq - m.sum*mean) / float64(m.n-1)
	if !(variance > 0) {
		return math.Inf(-1)
	}
	return mean / math.Sqrt(variance)
}

// blockMoments splits rows into S contiguous blocks; len(rows) is a multiple of S
func blockMoments(rows [][]float64, S, J int) [][]moment {
	size := len(rows) / S
	blocks := make([][]moment, S)
	for i := range blocks {
		blocks[i] = make([]moment, J)
		for _, row := range rows[i*size : (i+1)*size] {
			for j, v := range row {
				if isFinite(v) {
					blocks[i][j].n++
					blocks[i][j].sum += v
					blocks[i][j].sumSq += v * v
				}
			}
		}
	}
	return blocks
}

func scores(blocks [][]moment, picked []int, J int) []float64 {
	agg := make([]moment, J)
	for _, b := range picked {
		for j := range agg {
			agg[j].add(blocks[b][j])
		}
	}
	out := make([]float64, J)
	for j, m := range agg {
		out[j] = m.sharpe()
	}
	return out
}

func splitLogit(blocks [][]moment, train, test []int, J int) float64 {
	inSample := scores(blocks, train, J)
	winner := 0
	isRanks := midranks(inSample)
	for j := 1; j < J; j++ {
		if isRanks[j] > isRanks[winner] {
			winner = j
		}
	}

	oosRanks := midranks(scores(blocks, test, J))
	return logit(oosRanks[winner] / float64(J))
}

// midranks assigns 1-based ascending ranks, averaging ties
func midranks(xs []float64) []float64 {
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	ranks := make([]float64, len(xs))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && xs[order[j+1]] == xs[order[i]] {
			j++
		}
		mid := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = mid
		}
		i = j + 1
	}
	return ranks
}

func logit(w float64) float64 {
	return math.Log(w / (1 - w))
}
