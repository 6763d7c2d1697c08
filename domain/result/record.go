// Package result defines the versioned record produced by one validation run.
// Every numeric field is a pointer that is nil, and omitted from JSON, when
// its paired skipped-reason sibling is populated.
package result

import (
	"math"
	"time"

	"edgeproof/domain/core"
	"edgeproof/domain/stats"
)

// SchemaVersion of Record
const SchemaVersion = "1.0.0"

// Record is created once at the end of a run and not mutated afterwards
type Record struct {
	SchemaVersion     string            `json:"schema_version"`
	RunID             core.RunID        `json:"run_id"`
	CreatedAt         time.Time         `json:"created_at"`
	InputFingerprint  core.Hash         `json:"input_fingerprint"`
	ConfigFingerprint core.Hash         `json:"config_fingerprint"`
	Primary           core.HypothesisID `json:"primary"`
	NHypotheses       int               `json:"n_hypotheses"`
	NPeriods          int               `json:"n_periods"`
	PeriodStart       *time.Time        `json:"period_start,omitempty"`
	PeriodEnd         *time.Time        `json:"period_end,omitempty"`

	RawSR              *float64         `json:"raw_sr,omitempty"`
	RawSRSkippedReason stats.SkipReason `json:"raw_sr_skipped_reason,omitempty"`

	DeflatedSR              *float64         `json:"deflated_sr,omitempty"`
	DeflatedSRSkippedReason stats.SkipReason `json:"deflated_sr_skipped_reason,omitempty"`
	NTrialsUsed             *float64         `json:"n_trials_used,omitempty"`
	NTrialsSource           string           `json:"n_trials_source,omitempty"`

	NTrialsEffEigen         *float64            `json:"n_trials_eff_eigen,omitempty"`
	NTrialsEffSkippedReason stats.SkipReason    `json:"n_trials_eff_skipped_reason,omitempty"`
	NTrialsEffColumnsUsed   int                 `json:"n_trials_eff_columns_used"`
	NTrialsEffDroppedIDs    []core.HypothesisID `json:"n_trials_eff_dropped_ids,omitempty"`

	RCPValue          *float64            `json:"rc_p_value,omitempty"`
	RCSkippedReason   stats.SkipReason    `json:"rc_skipped_reason,omitempty"`
	RealityCheck      *RealityCheckDetail `json:"reality_check,omitempty"`
	RWAdjustedPValues *PValueMap          `json:"rw_adjusted_p_values,omitempty"`
	RWRejected        []core.HypothesisID `json:"rw_rejected,omitempty"`
	RWSkippedReason   stats.SkipReason    `json:"rw_skipped_reason,omitempty"`

	PBOCSCV              *float64         `json:"pbo_cscv,omitempty"`
	PBOCSCVSkippedReason stats.SkipReason `json:"pbo_cscv_skipped_reason,omitempty"`
	CSCV                 *CSCVDetail      `json:"cscv,omitempty"`

	PBOWalkForward              *float64         `json:"pbo_walk_forward,omitempty"`
	PBOWalkForwardSkippedReason stats.SkipReason `json:"pbo_walk_forward_skipped_reason,omitempty"`

	THACMean         *float64         `json:"t_hac_mean,omitempty"`
	PHACMean         *float64         `json:"p_hac_mean,omitempty"`
	HACLag           *int             `json:"hac_lag,omitempty"`
	HACSkippedReason stats.SkipReason `json:"hac_skipped_reason,omitempty"`

	FDR        FDRSummary        `json:"fdr"`
	Hypotheses []HypothesisEntry `json:"hypotheses"`
	Capacity   CapacityTable     `json:"capacity"`

	Warnings []string `json:"warnings,omitempty"`
}

// PValueMap maps hypotheses to adjusted p-values
type PValueMap map[core.HypothesisID]float64

// RealityCheckDetail carries provenance of the bootstrap run
type RealityCheckDetail struct {
	Statistic     string            `json:"statistic"`
	Method        string            `json:"method"`
	BlockParam    float64           `json:"block_param"`
	Seed          int64             `json:"seed"`
	Recentered    bool              `json:"recentered"`
	RequestedNSim int               `json:"requested_n_sim"`
	ActualNSim    int               `json:"actual_n_sim"`
	Shortfall     bool              `json:"shortfall"`
	ObservedMax   *float64          `json:"observed_max,omitempty"`
	Best          core.HypothesisID `json:"best,omitempty"`
	CacheHit      bool              `json:"cache_hit"`
	// Significant is rc_p_value <= Alpha; false when the test was skipped
	Alpha       float64 `json:"alpha"`
	Significant bool    `json:"significant"`
}

// CSCVDetail describes the sampled partitions
type CSCVDetail struct {
	Splits          int      `json:"s"`
	NSplits         int      `json:"n_splits"`
	RequestedSplits int      `json:"requested_splits"`
	NPossibleSplits float64  `json:"n_possible_splits"`
	DroppedPeriods  int      `json:"dropped_periods"`
	MedianLogit     *float64 `json:"median_logit,omitempty"`
	Seed            int64    `json:"seed"`
}

// FDRSummary is the family-wide multiple testing outcome over per-hypothesis HAC p-values
type FDRSummary struct {
	Method        string              `json:"method"`
	Q             float64             `json:"q"`
	M             int                 `json:"m"`
	Discoveries   []core.HypothesisID `json:"discoveries"`
	Dropped       []core.HypothesisID `json:"dropped,omitempty"`
	SkippedReason stats.SkipReason    `json:"skipped_reason,omitempty"`
}

// HypothesisEntry holds the per-series statistics
type HypothesisEntry struct {
	ID     core.HypothesisID `json:"id"`
	N      int               `json:"n"`
	NTotal int               `json:"n_total"`
	NNaN   int               `json:"n_nan"`

	RawSR             *float64         `json:"raw_sr,omitempty"`
	Mean              *float64         `json:"mean,omitempty"`
	Variance          *float64         `json:"variance_estimate,omitempty"`
	Skew              *float64         `json:"skew,omitempty"`
	Kurtosis          *float64         `json:"kurtosis,omitempty"`
	MomentsSkipReason stats.SkipReason `json:"moments_skipped_reason,omitempty"`

	DeflatedSR              *float64         `json:"deflated_sr,omitempty"`
	DeflatedSRSkippedReason stats.SkipReason `json:"deflated_sr_skipped_reason,omitempty"`

	THAC             *float64         `json:"t_hac_mean,omitempty"`
	PHAC             *float64         `json:"p_hac_mean,omitempty"`
	HACSkippedReason stats.SkipReason `json:"hac_skipped_reason,omitempty"`

	FDRAdjustedP *float64 `json:"fdr_adjusted_p,omitempty"`
	IsDiscovery  bool     `json:"is_discovery"`

	RCObserved *float64 `json:"rc_observed,omitempty"`
	RWAdjusted *float64 `json:"rw_adjusted_p,omitempty"`

	Breaks []BreakDiagnostic `json:"breaks"`
}

// BreakDiagnostic is one structural break test on one series
type BreakDiagnostic struct {
	TestName            string           `json:"test_name"`
	Stat                *float64         `json:"stat,omitempty"`
	PValue              *float64         `json:"p_value,omitempty"`
	BreakSuspected      bool             `json:"break_suspected"`
	EstimatedBreakIndex *int             `json:"estimated_break_index,omitempty"`
	EstimatedBreakDate  *time.Time       `json:"estimated_break_date,omitempty"`
	CalibrationMethod   string           `json:"calibration_method"`
	SkippedReason       stats.SkipReason `json:"skipped_reason,omitempty"`
}

// CapacityTable rows start with (notional_multiplier, sharpe_annual)
type CapacityTable struct {
	Series                   core.HypothesisID `json:"series,omitempty"`
	Columns                  []string          `json:"columns"`
	Rows                     [][]float64       `json:"rows"`
	SharpeStrictlyIncreasing bool              `json:"sharpe_strictly_increasing"`
	SkippedReason            stats.SkipReason  `json:"skipped_reason,omitempty"`
}

// Float returns nil for non-finite values
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Int returns a pointer to v
func Int(v int) *int { return &v }

// Entry returns the entry of id
func (r Record) Entry(id core.HypothesisID) (HypothesisEntry, bool) {
	for _, e := range r.Hypotheses {
		if e.ID == id {
			return e, true
		}
	}
	return HypothesisEntry{}, false
}

// Skips lists every populated top-level skip reason keyed by field
func (r Record) Skips() map[string]stats.SkipReason {
	out := map[string]stats.SkipReason{}
	for field, reason := range map[string]stats.SkipReason{
		"raw_sr":           r.RawSRSkippedReason,
		"deflated_sr":      r.DeflatedSRSkippedReason,
		"n_trials_eff":     r.NTrialsEffSkippedReason,
		"rc":               r.RCSkippedReason,
		"rw":               r.RWSkippedReason,
		"pbo_cscv":         r.PBOCSCVSkippedReason,
		"pbo_walk_forward": r.PBOWalkForwardSkippedReason,
		"hac":              r.HACSkippedReason,
		"fdr":              r.FDR.SkippedReason,
		"capacity":         r.Capacity.SkippedReason,
	} {
		if reason.Skipped() {
			out[field] = reason
		}
	}
	return out
}
