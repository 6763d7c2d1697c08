package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeproof/domain/core"
	"edgeproof/domain/result"
	"edgeproof/internal"
	internalapi "edgeproof/internal/api"
	apperrors "edgeproof/internal/errors"
	"edgeproof/internal/metrics"
	"edgeproof/internal/testkit"
	"edgeproof/internal/validation"
)

type fixture struct {
	server *httptest.Server
	repo   *testkit.InMemoryResultRepository
	hub    *internalapi.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	quiet := internal.NewLoggerTo(io.Discard, internal.LogLevelError, false)
	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	require.NoError(t, err)
	hub := internalapi.NewHub(time.Second)
	t.Cleanup(hub.Close)

	orch := validation.NewOrchestrator(
		validation.WithLogger(quiet),
		validation.WithMetrics(recorder),
		validation.WithProgress(hub),
	)
	repo := testkit.NewInMemoryResultRepository()
	srv := httptest.NewServer(NewServer(orch,
		WithRepository(repo),
		WithMetrics(registry),
		WithEvents(internalapi.NewRouter(hub)),
		WithLogger(quiet),
	))
	t.Cleanup(srv.Close)
	return &fixture{server: srv, repo: repo, hub: hub}
}

func validationBody(t *testing.T, mutate func(*ValidationRequest)) []byte {
	t.Helper()
	gc := testkit.DefaultReturnsConfig()
	gc.Hypotheses = 3
	gc.Periods = 120
	gc.EdgeDrift = 0.002
	gen := testkit.NewReturnsGenerator(gc)
	set, err := gen.Generate()
	require.NoError(t, err)

	req := ValidationRequest{
		RunID:  "api-run",
		Config: json.RawMessage(`{"n_sim": 99, "cscv_splits": 4, "workers": 2}`),
		Series: make(map[core.HypothesisID][]WirePoint, len(set)),
	}
	for id, s := range set {
		values := s.Values()
		for i, ts := range s.Times() {
			v := values[i]
			req.Series[id] = append(req.Series[id], WirePoint{T: ts, V: &v})
		}
	}
	first := testkit.HypothesisID(0)
	req.Series[first][5].V = nil
	for _, tv := range gen.Turnover(gc.Periods, 0.2) {
		tv := tv
		req.Turnover = append(req.Turnover, &tv)
	}
	if mutate != nil {
		mutate(&req)
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return body
}

func (f *fixture) post(t *testing.T, body []byte) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(f.server.URL+"/v1/validations", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decodeError(t *testing.T, raw []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func TestCreateValidation_PersistsAndServesRecord(t *testing.T) {
	f := newFixture(t)

	resp, raw := f.post(t, validationBody(t, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var rec result.Record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, core.RunID("api-run"), rec.RunID)
	assert.Equal(t, 3, rec.NHypotheses)
	require.NotNil(t, rec.RealityCheck)
	assert.Equal(t, 99, rec.RealityCheck.RequestedNSim)
	assert.Equal(t, 1, rec.Hypotheses[0].NNaN)
	assert.Empty(t, rec.Capacity.SkippedReason)

	resp, raw = f.get(t, "/v1/validations/api-run")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stored result.Record
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, rec.InputFingerprint, stored.InputFingerprint)

	resp, raw = f.get(t, "/v1/validations/api-run/report")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "<title>Validation run api-run</title>")

	resp, raw = f.get(t, "/v1/validations?limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"run_id":"api-run"`)
}

func TestCreateValidation_StreamsProgress(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.post(t, validationBody(t, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := f.get(t, "/v1/events/api-run")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"stage":"reality_check"`)
	assert.Contains(t, string(raw), `"stage":"completed"`)
}

func TestCreateValidation_BadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body []byte
	}{
		{"malformed json", []byte(`{"series":`)},
		{"invalid config", validationBody(t, func(r *ValidationRequest) {
			r.Config = json.RawMessage(`{"alpha": 2}`)
		})},
		{"unknown primary", validationBody(t, func(r *ValidationRequest) { r.Primary = "missing" })},
		{"no series", []byte(`{"run_id":"x","series":{}}`)},
		{"turnover length", validationBody(t, func(r *ValidationRequest) { r.Turnover = r.Turnover[:10] })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := f.post(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))
			assert.NotEmpty(t, decodeError(t, raw).Error)
		})
	}
	assert.Equal(t, 0, f.repo.Len())
}

type failingRunner struct{ err error }

func (r failingRunner) Run(context.Context, validation.Request) (result.Record, error) {
	return result.Record{}, r.err
}

func TestCreateValidation_InternalErrors(t *testing.T) {
	quiet := internal.NewLoggerTo(io.Discard, internal.LogLevelError, false)
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantText string
	}{
		{"uncoded error is masked", errors.New("disk /var/secret full"), apperrors.CodeInternalError, "validation service failed"},
		{"coded error keeps its message", apperrors.DatabaseError("save record", errors.New("conn reset")), apperrors.CodeDatabaseError, "save record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(NewServer(failingRunner{err: tt.err}, WithLogger(quiet)))
			defer srv.Close()
			f := &fixture{server: srv}

			resp, raw := f.post(t, validationBody(t, nil))
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			e := decodeError(t, raw)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Contains(t, e.Error, tt.wantText)
			assert.NotContains(t, e.Error, "secret")
		})
	}
}

func TestGetValidation_NotFound(t *testing.T) {
	f := newFixture(t)

	resp, raw := f.get(t, "/v1/validations/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, decodeError(t, raw).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.post(t, validationBody(t, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "edgeproof_run_duration_seconds")
}
