package bootstrap

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Progress reports how much of a parallel draw loop finished. Done[b] is set
// only for draws whose work function returned.
type Progress struct {
	Requested int
	Completed int
	Done      []bool
	Err       error // context error when the loop stopped early
}

// Shortfall reports whether fewer than 95% of the requested draws completed
func (p Progress) Shortfall() bool {
	return IsShortfall(p.Completed, p.Requested)
}

// IsShortfall is actual < 0.95·requested
func IsShortfall(actual, requested int) bool {
	return float64(actual) < 0.95*float64(requested)
}

// Run calls fn(b) for b in [0, n) on at most workers goroutines. fn must
// write only to state owned by draw b. Cancellation of ctx stops scheduling
// new draws; draws already running finish and are counted.
func Run(ctx context.Context, n, workers int, fn func(b int)) Progress {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	progress := Progress{Requested: n, Done: make([]bool, n)}

	var g errgroup.Group
	g.SetLimit(workers)
	for b := 0; b < n; b++ {
		if ctx.Err() != nil {
			break
		}
		b := b
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			fn(b)
			progress.Done[b] = true
			return nil
		})
	}
	_ = g.Wait()

	for _, done := range progress.Done {
		if done {
			progress.Completed++
		}
	}
	if progress.Completed < n {
		progress.Err = ctx.Err()
	}
	return progress
}
