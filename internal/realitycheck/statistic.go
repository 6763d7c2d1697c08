package realitycheck

import (
	"fmt"
	"math"
	"strings"

	"edgeproof/domain/core"
	"edgeproof/domain/series"

	"gonum.org/v1/gonum/stat"
)

// Statistic maps one (possibly resampled) series to a scalar performance
// measure. Non-finite inputs are ignored; NaN means undefined.
type Statistic func(xs []float64) float64

// Mean is the average of the finite values
func Mean(xs []float64) float64 {
	finite := series.Finite(xs)
	if len(finite) == 0 {
		return math.NaN()
	}
	return stat.Mean(finite, nil)
}

// Sharpe is the per-period mean over sample standard deviation of the finite values
func Sharpe(xs []float64) float64 {
	finite := series.Finite(xs)
	if len(finite) < 2 {
		return math.NaN()
	}
	mean, variance := stat.MeanVariance(finite, nil)
	if !(variance > 0) {
		return math.NaN()
	}
	return mean / math.Sqrt(variance)
}

// StatisticByName resolves the config spelling of a statistic
func StatisticByName(name string) (Statistic, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mean":
		return Mean, nil
	case "sharpe":
		return Sharpe, nil
	}
	return nil, core.NewValidationError("rc_statistic", fmt.Sprintf("unknown statistic %q (want mean or sharpe)", name))
}
