package validation

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"edgeproof/domain/core"
	"edgeproof/domain/series"
	"edgeproof/internal/breaks"
	"edgeproof/internal/hac"
	"edgeproof/internal/moments"
)

// SeriesAnalysis is the per-hypothesis output that does not depend on the
// rest of the set
type SeriesAnalysis struct {
	ID      core.HypothesisID
	Moments moments.StatisticSummary
	HAC     hac.Result
	CUSUM   breaks.Result
	SupChow breaks.Result
}

// ConcurrentExecutor runs per-series analyses on a bounded pool
type ConcurrentExecutor struct {
	workers    int
	hacLag     int
	breakAlpha float64
}

// NewConcurrentExecutor creates an executor; workers <= 0 uses GOMAXPROCS
func NewConcurrentExecutor(workers, hacLag int, breakAlpha float64) *ConcurrentExecutor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &ConcurrentExecutor{workers: workers, hacLag: hacLag, breakAlpha: breakAlpha}
}

// Analyze returns one SeriesAnalysis per id, in the order of ids. Each series
// is analysed on its own full index, not the aligned intersection. The work
// is bounded and closed-form, so it is not cancellable.
func (e *ConcurrentExecutor) Analyze(set series.HypothesisSet, ids []core.HypothesisID) ([]SeriesAnalysis, error) {
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrHypothesisAbsent, id)
		}
	}

	out := make([]SeriesAnalysis, len(ids))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, id := range ids {
		i, s := i, set[id]
		g.Go(func() error {
			out[i] = e.analyze(s)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (e *ConcurrentExecutor) analyze(s *series.ReturnSeries) SeriesAnalysis {
	values := s.Values()
	times := s.Times()
	return SeriesAnalysis{
		ID:      s.ID,
		Moments: moments.Estimate(values),
		HAC:     hac.MeanTest(values, e.hacLag),
		CUSUM:   breaks.CUSUM(values, times, e.breakAlpha),
		SupChow: breaks.SupChow(values, times, e.breakAlpha),
	}
}
