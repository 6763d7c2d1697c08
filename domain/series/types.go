package series

import (
	"fmt"
	"math"
	"sort"
	"time"

	"edgeproof/domain/core"
)

// Point is a single timestamped return observation
type Point struct {
	Time  time.Time `json:"t"`
	Value float64   `json:"v"`
}

// ReturnSeries is an ordered return stream for one hypothesis.
// INVARIANTS:
// - Timestamps strictly increasing, no duplicates
// - NaN values are preserved in place and counted, never silently dropped
type ReturnSeries struct {
	ID     core.HypothesisID
	points []Point
}

// New validates ordering and builds a read-only series. The input slice is copied.
func New(id core.HypothesisID, points []Point) (*ReturnSeries, error) {
	for i := 1; i < len(points); i++ {
		if !points[i].Time.After(points[i-1].Time) {
			return nil, fmt.Errorf("%w: series %s at position %d (%s after %s)",
				core.ErrUnsortedIndex, id, i,
				points[i].Time.Format(time.RFC3339), points[i-1].Time.Format(time.RFC3339))
		}
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return &ReturnSeries{ID: id, points: cp}, nil
}

// FromValues builds a series on a synthetic daily index starting at start.
// Useful when the caller only has positional returns.
func FromValues(id core.HypothesisID, start time.Time, values []float64) *ReturnSeries {
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Time: start.AddDate(0, 0, i), Value: v}
	}
	return &ReturnSeries{ID: id, points: points}
}

// Len returns the number of observations including NaN
func (s *ReturnSeries) Len() int { return len(s.points) }

// Points returns a copy of the observations
func (s *ReturnSeries) Points() []Point {
	cp := make([]Point, len(s.points))
	copy(cp, s.points)
	return cp
}

// Values returns a copy of the values in index order
func (s *ReturnSeries) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// Times returns a copy of the timestamps
func (s *ReturnSeries) Times() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Time
	}
	return out
}

// NaNCount reports how many observations are not finite
func (s *ReturnSeries) NaNCount() int {
	return CountNonFinite(s.Values())
}

// CountNonFinite counts NaN and ±Inf entries
func CountNonFinite(xs []float64) int {
	n := 0
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			n++
		}
	}
	return n
}

// Finite returns the finite entries of xs in order
func Finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// HypothesisSet maps hypothesis identifiers to their return series
type HypothesisSet map[core.HypothesisID]*ReturnSeries

// IDs returns the member identifiers in sorted order
func (h HypothesisSet) IDs() []core.HypothesisID {
	ids := make([]core.HypothesisID, 0, len(h))
	for id := range h {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Add inserts a series, rejecting duplicates
func (h HypothesisSet) Add(s *ReturnSeries) error {
	if _, exists := h[s.ID]; exists {
		return fmt.Errorf("%w: duplicate hypothesis %s", core.ErrInvalidConfig, s.ID)
	}
	h[s.ID] = s
	return nil
}
