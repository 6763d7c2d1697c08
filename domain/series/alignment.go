package series

import (
	"fmt"
	"time"

	"edgeproof/domain/core"
)

// AlignedSet is a HypothesisSet restricted to the common timestamps of all
// members. Columns[k] holds the values of IDs[k] on Index. Joint resampling
// (Reality Check, Romano-Wolf, CSCV) must run on this shape so that one index
// draw addresses the same period in every column.
type AlignedSet struct {
	IDs     []core.HypothesisID
	Index   []time.Time
	Columns [][]float64
	// Dropped counts, per hypothesis, the observations outside the intersection
	Dropped map[core.HypothesisID]int
}

// Align intersects timestamps across all members
func (h HypothesisSet) Align() (*AlignedSet, error) {
	if len(h) == 0 {
		return nil, fmt.Errorf("%w: empty hypothesis set", core.ErrInsufficientData)
	}

	ids := h.IDs()

	// Count membership of each instant; an instant is kept when every series has it
	counts := make(map[int64]int)
	for _, id := range ids {
		for _, p := range h[id].points {
			counts[p.Time.UnixNano()]++
		}
	}

	// The first series is sorted, so walking it yields a sorted common index
	index := make([]time.Time, 0, h[ids[0]].Len())
	for _, p := range h[ids[0]].points {
		if counts[p.Time.UnixNano()] == len(ids) {
			index = append(index, p.Time)
		}
	}
	if len(index) == 0 {
		return nil, fmt.Errorf("%w: hypotheses share no timestamps", core.ErrInsufficientData)
	}

	keep := make(map[int64]struct{}, len(index))
	for _, t := range index {
		keep[t.UnixNano()] = struct{}{}
	}

	aligned := &AlignedSet{
		IDs:     ids,
		Index:   index,
		Columns: make([][]float64, len(ids)),
		Dropped: make(map[core.HypothesisID]int, len(ids)),
	}
	for k, id := range ids {
		col := make([]float64, 0, len(index))
		for _, p := range h[id].points {
			if _, ok := keep[p.Time.UnixNano()]; ok {
				col = append(col, p.Value)
			}
		}
		aligned.Columns[k] = col
		aligned.Dropped[id] = h[id].Len() - len(col)
	}

	return aligned, nil
}

// Len returns the number of aligned periods
func (a *AlignedSet) Len() int { return len(a.Index) }

// Width returns the number of hypotheses
func (a *AlignedSet) Width() int { return len(a.IDs) }

// Column returns the aligned values of one hypothesis
func (a *AlignedSet) Column(id core.HypothesisID) ([]float64, bool) {
	for k, candidate := range a.IDs {
		if candidate == id {
			return a.Columns[k], true
		}
	}
	return nil, false
}

// Rows returns the T×J period-major view used by CSCV
func (a *AlignedSet) Rows() [][]float64 {
	rows := make([][]float64, a.Len())
	for t := range rows {
		row := make([]float64, a.Width())
		for k := range a.Columns {
			row[k] = a.Columns[k][t]
		}
		rows[t] = row
	}
	return rows
}

// Fingerprint hashes ids, index and values for cache keys
func (a *AlignedSet) Fingerprint(f *core.Fingerprinter) *core.Fingerprinter {
	f.Int(int64(len(a.IDs)))
	for k, id := range a.IDs {
		f.String(string(id)).Floats(a.Columns[k])
	}
	f.Int(int64(len(a.Index)))
	for _, t := range a.Index {
		f.Int(t.UnixNano())
	}
	return f
}
