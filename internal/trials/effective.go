// Package trials shrinks a nominal trial count to an effective number of
// independent trials using the eigenvalue participation ratio of the
// candidates' correlation matrix.
package trials

import (
	"fmt"
	"math"

	"edgeproof/domain/core"
	"edgeproof/domain/stats"

	"gonum.org/v1/gonum/mat"
	gstat "gonum.org/v1/gonum/stat"
)

// DefaultMinObservations is the finite-observation floor for a column to enter the matrix
const DefaultMinObservations = 10

// Result is the effective-trials estimate. NEff = (Σλ)² / Σλ² with negative
// eigenvalues clamped to zero.
type Result struct {
	NEff        float64             `json:"n_eff"`
	NUsed       int                 `json:"n_used"`
	NDropped    int                 `json:"n_dropped"`
	DroppedIDs  []core.HypothesisID `json:"dropped_ids,omitempty"`
	Eigenvalues []float64           `json:"-"`

	SkippedReason stats.SkipReason `json:"skipped_reason,omitempty"`
}

// FromCorrelation computes NEff from an m×m correlation matrix
func FromCorrelation(corr mat.Symmetric) (Result, error) {
	m := corr.SymmetricDim()
	if m == 0 {
		return Result{SkippedReason: stats.SkipNoColumns}, nil
	}
	for i := 0; i < m; i++ {
		for j := 0; j <= i; j++ {
			if v := corr.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return Result{}, fmt.Errorf("%w: correlation[%d][%d]", core.ErrNonFinite, i, j)
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(corr, false); !ok {
		return Result{}, fmt.Errorf("eigendecomposition of %dx%d correlation matrix failed", m, m)
	}
	values := eig.Values(nil)

	var sum, sumSq float64
	for i, v := range values {
		if v < 0 {
			values[i] = 0
			v = 0
		}
		sum += v
		sumSq += v * v
	}

	result := Result{NUsed: m, Eigenvalues: values}
	if sumSq == 0 {
		result.SkippedReason = stats.SkipZeroVariance
		return result, nil
	}
	result.NEff = sum * sum / sumSq
	return result, nil
}

// FromColumns drops columns with fewer than minObs finite values or zero
// variance, builds a pairwise-complete Pearson correlation matrix over the
// survivors and delegates to FromCorrelation.
func FromColumns(ids []core.HypothesisID, columns [][]float64, minObs int) (Result, error) {
	if len(ids) != len(columns) {
		return Result{}, core.NewShapeError("ids", len(ids), len(columns))
	}
	if minObs <= 0 {
		minObs = DefaultMinObservations
	}
	for k := 1; k < len(columns); k++ {
		if len(columns[k]) != len(columns[0]) {
			return Result{}, core.NewShapeError(fmt.Sprintf("column %s", ids[k]), len(columns[k]), len(columns[0]))
		}
	}

	var used [][]float64
	var dropped []core.HypothesisID
	for k, col := range columns {
		if usableColumn(col, minObs) {
			used = append(used, col)
		} else {
			dropped = append(dropped, ids[k])
		}
	}

	if len(used) == 0 {
		return Result{
			NDropped:      len(dropped),
			DroppedIDs:    dropped,
			SkippedReason: stats.SkipNoColumns,
		}, nil
	}

	corr := CorrelationMatrix(used)
	result, err := FromCorrelation(corr)
	if err != nil {
		return Result{}, err
	}
	result.NDropped = len(dropped)
	result.DroppedIDs = dropped
	return result, nil
}

// CorrelationMatrix builds a pairwise-complete Pearson correlation matrix.
// Pairs with fewer than three joint finite observations, or with a constant
// side on their joint support, are treated as uncorrelated. Pairwise
// completion can yield an indefinite matrix; FromCorrelation clamps the
// resulting negative eigenvalues.
func CorrelationMatrix(columns [][]float64) *mat.SymDense {
	m := len(columns)
	corr := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < m; j++ {
			corr.SetSym(i, j, pairwiseCorrelation(columns[i], columns[j]))
		}
	}
	return corr
}

func pairwiseCorrelation(x, y []float64) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for t := range x {
		if isFinite(x[t]) && isFinite(y[t]) {
			xs = append(xs, x[t])
			ys = append(ys, y[t])
		}
	}
	if len(xs) < 3 {
		return 0
	}
	r := gstat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func usableColumn(col []float64, minObs int) bool {
	finite := make([]float64, 0, len(col))
	for _, v := range col {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) < minObs || len(finite) < 2 {
		return false
	}
	return gstat.Variance(finite, nil) > 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
