package dsr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"edgeproof/domain/core"

	"gopkg.in/yaml.v3"
)

// TrialCount is either Explicit(n) or Auto. The zero value is Auto.
type TrialCount struct {
	explicit bool
	n        int
}

// Explicit fixes the trial count at n
func Explicit(n int) TrialCount { return TrialCount{explicit: true, n: n} }

// Auto defers the trial count to the effective-trials estimate
func Auto() TrialCount { return TrialCount{} }

func (t TrialCount) IsAuto() bool { return !t.explicit }

// Explicit returns the fixed count and whether one was set
func (t TrialCount) Explicit() (int, bool) { return t.n, t.explicit }

func (t TrialCount) String() string {
	if t.IsAuto() {
		return "auto"
	}
	return strconv.Itoa(t.n)
}

// Validate rejects explicit counts below one
func (t TrialCount) Validate() error {
	if t.explicit && t.n < 1 {
		return core.NewValidationError("n_trials", fmt.Sprintf("must be >= 1 or \"auto\", got %d", t.n))
	}
	return nil
}

func parseTrialCount(s string) (TrialCount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return Auto(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return TrialCount{}, core.NewValidationError("n_trials", fmt.Sprintf("want an integer or \"auto\", got %q", s))
	}
	return Explicit(n), nil
}

// ParseTrialCount reads "auto" or a decimal integer
func ParseTrialCount(s string) (TrialCount, error) { return parseTrialCount(s) }

func (t TrialCount) MarshalJSON() ([]byte, error) {
	if t.IsAuto() {
		return []byte(`"auto"`), nil
	}
	return []byte(strconv.Itoa(t.n)), nil
}

func (t *TrialCount) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Explicit(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return core.NewValidationError("n_trials", fmt.Sprintf("want an integer or \"auto\", got %s", data))
	}
	parsed, err := parseTrialCount(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TrialCount) MarshalYAML() (interface{}, error) {
	if t.IsAuto() {
		return "auto", nil
	}
	return t.n, nil
}

func (t *TrialCount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return core.NewValidationError("n_trials", "want a scalar")
	}
	parsed, err := parseTrialCount(node.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
