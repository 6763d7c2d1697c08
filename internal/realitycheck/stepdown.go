package realitycheck

import (
	"math"
	"sort"

	"edgeproof/domain/core"
	"edgeproof/domain/stats"
)

// StepdownResult carries Romano-Wolf adjusted p-values. It is empty, with a
// reason, when the null matrix is unavailable or an observed statistic is
// not finite.
type StepdownResult struct {
	AdjustedP map[core.HypothesisID]float64 `json:"adjusted_p_values"`
	Order     []core.HypothesisID           `json:"order,omitempty"`

	SkippedReason stats.SkipReason `json:"skipped_reason,omitempty"`
}

// RomanoWolf walks hypotheses in decreasing observed statistic. At step j the
// null distribution is the per-draw max over the hypotheses not yet stepped
// past, and p_j = (1 + #{max ≥ T_j}) / (B + 1). Adjusted p-values are then
// made non-decreasing in step order.
func RomanoWolf(res Result) StepdownResult {
	out := StepdownResult{AdjustedP: map[core.HypothesisID]float64{}}

	if len(res.NullMatrix) == 0 {
		out.SkippedReason = stats.SkipNullNotRetained
		return out
	}
	for _, v := range res.Observed {
		if !isFinite(v) {
			out.SkippedReason = stats.SkipNonFiniteObserved
			return out
		}
	}

	k := len(res.IDs)
	order := make([]int, k)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return res.Observed[order[a]] > res.Observed[order[b]] })

	draws := len(res.NullMatrix)
	// suffixMax[b] is the max of draw b over order[j:]
	stepP := make([]float64, k)
	suffixMax := make([]float64, draws)
	for b := range suffixMax {
		suffixMax[b] = math.Inf(-1)
	}
	for j := k - 1; j >= 0; j-- {
		col := order[j]
		var exceed int
		for b, row := range res.NullMatrix {
			if v := row[col]; isFinite(v) && v > suffixMax[b] {
				suffixMax[b] = v
			}
			if suffixMax[b] >= res.Observed[col] {
				exceed++
			}
		}
		stepP[j] = float64(1+exceed) / float64(draws+1)
	}

	running := 0.0
	out.Order = make([]core.HypothesisID, k)
	for j, col := range order {
		if stepP[j] > running {
			running = stepP[j]
		}
		id := res.IDs[col]
		out.Order[j] = id
		out.AdjustedP[id] = running
	}
	return out
}

// Rejected returns, in step order, the hypotheses whose adjusted p-value is
// at most alpha. Since adjusted p-values are non-decreasing along Order, the
// result is always a prefix of Order.
func (s StepdownResult) Rejected(alpha float64) []core.HypothesisID {
	var out []core.HypothesisID
	for _, id := range s.Order {
		if s.AdjustedP[id] > alpha {
			break
		}
		out = append(out, id)
	}
	return out
}
