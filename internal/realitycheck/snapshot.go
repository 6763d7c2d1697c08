package realitycheck

import (
	"math"

	"edgeproof/domain/core"
	"edgeproof/domain/stats"
	"edgeproof/internal/bootstrap"
)

// Snapshot is the serialisable form of a Result. Non-finite statistics
// become null and the null matrix is not kept.
type Snapshot struct {
	IDs           []core.HypothesisID `json:"ids"`
	Observed      []*float64          `json:"observed"`
	ObservedMax   *float64            `json:"observed_max,omitempty"`
	Best          core.HypothesisID   `json:"best,omitempty"`
	PValue        float64             `json:"p_value"`
	RequestedNSim int                 `json:"requested_n_sim"`
	ActualNSim    int                 `json:"actual_n_sim"`
	Shortfall     bool                `json:"shortfall"`
	Method        bootstrap.Method    `json:"method"`
	BlockParam    float64             `json:"block_param"`
	Seed          int64               `json:"seed"`
	Recentered    bool                `json:"recentered"`
	SkippedReason stats.SkipReason    `json:"skipped_reason,omitempty"`
}

// Snapshot drops the null matrix
func (r Result) Snapshot() Snapshot {
	s := Snapshot{
		IDs:           r.IDs,
		Observed:      make([]*float64, len(r.Observed)),
		ObservedMax:   finitePtr(r.ObservedMax),
		Best:          r.Best,
		PValue:        r.PValue,
		RequestedNSim: r.RequestedNSim,
		ActualNSim:    r.ActualNSim,
		Shortfall:     r.Shortfall,
		Method:        r.Method,
		BlockParam:    r.BlockParam,
		Seed:          r.Seed,
		Recentered:    r.Recentered,
		SkippedReason: r.SkippedReason,
	}
	for k, v := range r.Observed {
		s.Observed[k] = finitePtr(v)
	}
	return s
}

// Result restores a Result without its null matrix
func (s Snapshot) Result() Result {
	r := Result{
		IDs:           s.IDs,
		Observed:      make([]float64, len(s.Observed)),
		ObservedMax:   valueOrNaN(s.ObservedMax),
		Best:          s.Best,
		PValue:        s.PValue,
		RequestedNSim: s.RequestedNSim,
		ActualNSim:    s.ActualNSim,
		Shortfall:     s.Shortfall,
		Method:        s.Method,
		BlockParam:    s.BlockParam,
		Seed:          s.Seed,
		Recentered:    s.Recentered,
		SkippedReason: s.SkippedReason,
	}
	for k, v := range s.Observed {
		r.Observed[k] = valueOrNaN(v)
	}
	return r
}

func finitePtr(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

func valueOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
