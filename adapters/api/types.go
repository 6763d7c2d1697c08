package api

import (
	"encoding/json"
	"math"
	"time"

	"edgeproof/domain/core"
	"edgeproof/domain/series"
	"edgeproof/internal/pbo"
	"edgeproof/internal/validation"
)

// WirePoint is one observation on the wire; a null value is a missing return
type WirePoint struct {
	T time.Time `json:"t"`
	V *float64  `json:"v"`
}

// ValidationRequest is the body of POST /v1/validations
type ValidationRequest struct {
	RunID   core.RunID        `json:"run_id"`
	Primary core.HypothesisID `json:"primary"`
	// Config overlays the defaults; absent fields keep their default
	Config      json.RawMessage                   `json:"config"`
	Series      map[core.HypothesisID][]WirePoint `json:"series"`
	Turnover    []*float64                        `json:"turnover"`
	WalkForward []pbo.WalkForwardRow              `json:"walk_forward"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// toRequest converts the wire form into an orchestrator request
func (v ValidationRequest) toRequest() (validation.Request, error) {
	cfg := validation.DefaultConfig()
	if len(v.Config) > 0 && string(v.Config) != "null" {
		if err := json.Unmarshal(v.Config, &cfg); err != nil {
			return validation.Request{}, core.NewValidationError("config", err.Error())
		}
	}
	if len(v.Series) == 0 {
		return validation.Request{}, core.NewValidationError("series", "at least one hypothesis required")
	}

	set := make(series.HypothesisSet, len(v.Series))
	for id, wire := range v.Series {
		if id == "" {
			return validation.Request{}, core.NewValidationError("series", "empty hypothesis id")
		}
		points := make([]series.Point, len(wire))
		for i, p := range wire {
			points[i] = series.Point{Time: p.T.UTC(), Value: orNaN(p.V)}
		}
		s, err := series.New(id, points)
		if err != nil {
			return validation.Request{}, err
		}
		if err := set.Add(s); err != nil {
			return validation.Request{}, err
		}
	}

	var turnover []float64
	if v.Turnover != nil {
		turnover = make([]float64, len(v.Turnover))
		for i, t := range v.Turnover {
			turnover[i] = orNaN(t)
		}
	}

	return validation.Request{
		RunID:       v.RunID,
		Set:         set,
		Primary:     v.Primary,
		Turnover:    turnover,
		WalkForward: v.WalkForward,
		Config:      cfg,
	}, nil
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
