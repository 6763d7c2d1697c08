package stats

// ============================================================================
// SKIP VOCABULARY
// ============================================================================
// Every numeric result has a paired skip reason. When a precondition is unmet
// the reason is populated and the numeric fields must not be read.

// SkipReason explains why a statistic was not produced
type SkipReason string

// Skipped reports whether the reason is populated
func (r SkipReason) Skipped() bool { return r != "" }

// String returns the reason text
func (r SkipReason) String() string { return string(r) }

const (
	// InsufficientData
	SkipFewFinite      SkipReason = "fewer than 2 finite observations"
	SkipHACLowN        SkipReason = "n < 30"
	SkipCUSUMLowN      SkipReason = "n < 20"
	SkipChowLowN       SkipReason = "n < 100"
	SkipFewPeriods     SkipReason = "T < S*4"
	SkipNoColumns      SkipReason = "no column with sufficient valid data"
	SkipNoPValues      SkipReason = "no finite p-values"
	SkipWalkForwardLow SkipReason = "fewer than 2 distinct splits"

	// NumericalDegeneracy
	SkipZeroVariance      SkipReason = "zero variance"
	SkipNonFiniteVariance SkipReason = "non-finite variance"
	SkipNonFiniteObserved SkipReason = "non-finite observed statistic"
	SkipMomentsMissing    SkipReason = "moments unavailable"

	// ConfigurationError
	SkipFewCandidates SkipReason = "J < 2"
	SkipOddSplits     SkipReason = "S must be even"
	SkipInvalidTrials SkipReason = "n_trials < 1"

	// PartialCompletion and provenance
	SkipNoDraws           SkipReason = "no bootstrap draws completed"
	SkipNullNotRetained   SkipReason = "null matrix not retained"
	SkipDisabled          SkipReason = "disabled by configuration"
	SkipTurnoverMissing   SkipReason = "turnover not supplied"
	SkipWalkForwardAbsent SkipReason = "walk-forward rows not supplied"
)

// Category groups reasons into the error taxonomy used for metrics labels
func (r SkipReason) Category() string {
	switch r {
	case "":
		return ""
	case SkipFewFinite, SkipHACLowN, SkipCUSUMLowN, SkipChowLowN, SkipFewPeriods,
		SkipNoColumns, SkipNoPValues, SkipWalkForwardLow:
		return "insufficient_data"
	case SkipZeroVariance, SkipNonFiniteVariance, SkipNonFiniteObserved, SkipMomentsMissing:
		return "numerical_degeneracy"
	case SkipFewCandidates, SkipOddSplits, SkipInvalidTrials:
		return "configuration"
	case SkipNoDraws:
		return "partial_completion"
	default:
		return "not_applicable"
	}
}
