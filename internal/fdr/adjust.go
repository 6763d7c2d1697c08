// Package fdr applies Benjamini-Hochberg and Benjamini-Yekutieli false
// discovery rate adjustment to a family of p-values.
package fdr

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"edgeproof/domain/core"
	"edgeproof/domain/stats"
)

// Method selects the adjustment procedure
type Method string

const (
	BH Method = "BH" // independence or positive dependence
	BY Method = "BY" // arbitrary dependence
)

// ParseMethod accepts "bh"/"by" in any case
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case BH:
		return BH, nil
	case BY:
		return BY, nil
	}
	return "", core.NewValidationError("fdr_method", fmt.Sprintf("unknown method %q (want BH or BY)", s))
}

// PValue is one raw p-value keyed by hypothesis
type PValue struct {
	ID core.HypothesisID
	P  float64
}

// Adjusted is the per-hypothesis outcome
type Adjusted struct {
	RawP        float64 `json:"raw_p"`
	AdjustedP   float64 `json:"adjusted_p"`
	IsDiscovery bool    `json:"is_discovery"`
	Rank        int     `json:"rank"`
}

// Result maps hypotheses to their adjusted p-values. Hypotheses whose raw
// p-value was NaN are listed in Dropped and absent from Entries.
type Result struct {
	Method  Method                         `json:"method"`
	Q       float64                        `json:"q"`
	M       int                            `json:"m"`
	Entries map[core.HypothesisID]Adjusted `json:"entries,omitempty"`
	Dropped []core.HypothesisID            `json:"dropped,omitempty"`

	SkippedReason stats.SkipReason `json:"skipped_reason,omitempty"`
}

// Discoveries returns the discovered hypotheses in ascending raw-p order
func (r Result) Discoveries() []core.HypothesisID {
	type ranked struct {
		id   core.HypothesisID
		rank int
	}
	var found []ranked
	for id, e := range r.Entries {
		if e.IsDiscovery {
			found = append(found, ranked{id, e.Rank})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].rank < found[j].rank })

	ids := make([]core.HypothesisID, len(found))
	for i, f := range found {
		ids[i] = f.id
	}
	return ids
}

// Adjust ranks the finite p-values ascending (ties keep input order), scales
// them by m/i (BH) or m·c_m/i (BY), caps at 1 and then enforces a running
// maximum from rank 1 upward. A hypothesis is a discovery when its adjusted
// p-value is at most q.
func Adjust(pvalues []PValue, method Method, q float64) (Result, error) {
	if method != BH && method != BY {
		return Result{}, core.NewValidationError("fdr_method", fmt.Sprintf("unknown method %q", method))
	}
	if !(q > 0 && q <= 1) {
		return Result{}, core.NewValidationError("q", fmt.Sprintf("must lie in (0, 1], got %v", q))
	}

	result := Result{Method: method, Q: q}
	kept := make([]PValue, 0, len(pvalues))
	seen := make(map[core.HypothesisID]struct{}, len(pvalues))
	for _, pv := range pvalues {
		if _, dup := seen[pv.ID]; dup {
			return Result{}, fmt.Errorf("%w: duplicate hypothesis %s", core.ErrShapeMismatch, pv.ID)
		}
		seen[pv.ID] = struct{}{}

		if math.IsNaN(pv.P) {
			result.Dropped = append(result.Dropped, pv.ID)
			continue
		}
		if pv.P < 0 || pv.P > 1 {
			return Result{}, fmt.Errorf("%w: p-value %v for %s outside [0, 1]", core.ErrInvalidConfig, pv.P, pv.ID)
		}
		kept = append(kept, pv)
	}

	if len(kept) == 0 {
		result.SkippedReason = stats.SkipNoPValues
		return result, nil
	}

	raw := make([]float64, len(kept))
	for i, pv := range kept {
		raw[i] = pv.P
	}
	adjusted, order := AdjustValues(raw, method)

	result.M = len(kept)
	result.Entries = make(map[core.HypothesisID]Adjusted, len(kept))
	for rank, idx := range order {
		pv := kept[idx]
		result.Entries[pv.ID] = Adjusted{
			RawP:        pv.P,
			AdjustedP:   adjusted[idx],
			IsDiscovery: adjusted[idx] <= q,
			Rank:        rank + 1,
		}
	}
	return result, nil
}

// AdjustValues adjusts a slice of finite p-values and returns the adjusted
// values in input order together with the ascending rank order (order[r] is
// the input index at rank r+1).
func AdjustValues(p []float64, method Method) (adjusted []float64, order []int) {
	m := len(p)
	order = make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })

	scale := float64(m)
	if method == BY {
		scale *= HarmonicNumber(m)
	}

	adjusted = make([]float64, m)
	running := 0.0
	for r, idx := range order {
		v := math.Min(1, p[idx]*scale/float64(r+1))
		if v > running {
			running = v
		}
		adjusted[idx] = running
	}
	return adjusted, order
}

// HarmonicNumber returns c_m = Σ_{j=1}^m 1/j
func HarmonicNumber(m int) float64 {
	var c float64
	for j := 1; j <= m; j++ {
		c += 1 / float64(j)
	}
	return c
}
