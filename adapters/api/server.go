// Package api is the HTTP surface of the validation service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edgeproof/domain/core"
	"edgeproof/domain/result"
	"edgeproof/internal"
	apperrors "edgeproof/internal/errors"
	"edgeproof/internal/validation"
	"edgeproof/ports"
)

const maxBodyBytes = 64 << 20

// Runner executes one validation request
type Runner interface {
	Run(ctx context.Context, req validation.Request) (result.Record, error)
}

// Server routes validation requests to the orchestrator and stored records
// to the repository
type Server struct {
	router     *chi.Mux
	runner     Runner
	repository ports.ResultRepository
	gatherer   prometheus.Gatherer
	events     http.Handler
	logger     *internal.Logger
}

// Option configures a Server
type Option func(*Server)

// WithRepository persists every finished record and enables the read endpoints
func WithRepository(repo ports.ResultRepository) Option {
	return func(s *Server) { s.repository = repo }
}

// WithMetrics serves g on /metrics
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithEvents mounts a progress stream handler under /v1/events
func WithEvents(h http.Handler) Option {
	return func(s *Server) { s.events = h }
}

// WithLogger replaces the default logger
func WithLogger(l *internal.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the HTTP server
func NewServer(runner Runner, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		runner: runner,
		logger: internal.DefaultLogger.With("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/v1/validations", func(r chi.Router) {
		r.Post("/", s.handleCreateValidation)
		r.Get("/", s.handleListValidations)
		r.Get("/{id}", s.handleGetValidation)
		r.Get("/{id}/report", s.handleReport)
	})
	if s.events != nil {
		s.router.Mount("/v1/events", s.events)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(),
			time.Since(start).Round(time.Microsecond), middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain and application errors onto HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, apperrors.CodeInternalError
	switch {
	case errors.Is(err, core.ErrHypothesisAbsent), core.IsValidationError(err):
		status, code = http.StatusBadRequest, apperrors.CodeInvalidInput
	case core.IsNotFoundError(err):
		status, code = http.StatusNotFound, apperrors.CodeNotFound
	default:
		switch c := apperrors.GetCode(err, ""); c {
		case apperrors.CodeInvalidInput, apperrors.CodeConfigInvalid:
			status, code = http.StatusBadRequest, c
		case apperrors.CodeNotFound:
			status, code = http.StatusNotFound, c
		case "":
		default:
			code = c
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
		// uncoded failures are not echoed to the client
		if code == apperrors.CodeInternalError {
			err = apperrors.InternalError("validation service failed")
		}
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
