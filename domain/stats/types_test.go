package stats

import "testing"

func TestSkipReason_Category(t *testing.T) {
	cases := []struct {
		reason SkipReason
		want   string
	}{
		{"", ""},
		{SkipHACLowN, "insufficient_data"},
		{SkipFewPeriods, "insufficient_data"},
		{SkipZeroVariance, "numerical_degeneracy"},
		{SkipFewCandidates, "configuration"},
		{SkipOddSplits, "configuration"},
		{SkipNoDraws, "partial_completion"},
		{SkipDisabled, "not_applicable"},
	}

	for _, tc := range cases {
		if got := tc.reason.Category(); got != tc.want {
			t.Errorf("%q: expected category %q, got %q", tc.reason, tc.want, got)
		}
	}
}

func TestSkipReason_Skipped(t *testing.T) {
	if SkipReason("").Skipped() {
		t.Error("empty reason must not count as skipped")
	}
	if !SkipHACLowN.Skipped() {
		t.Error("populated reason must count as skipped")
	}
	if SkipHACLowN.String() != "n < 30" {
		t.Errorf("unexpected text %q", SkipHACLowN.String())
	}
}
