package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"edgeproof/domain/core"
	apperrors "edgeproof/internal/errors"
	"edgeproof/internal/report"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateValidation runs a validation synchronously and returns the record
func (s *Server) handleCreateValidation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body ValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, apperrors.InvalidInput("malformed request body: "+err.Error()))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.writeError(w, err)
		return
	}

	rec, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.repository != nil {
		if err := s.repository.Save(r.Context(), rec); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetValidation(w http.ResponseWriter, r *http.Request) {
	if s.repository == nil {
		s.writeError(w, apperrors.NotFound("result store"))
		return
	}
	rec, err := s.repository.Get(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleReport renders a stored record; ?format=md returns Markdown
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.repository == nil {
		s.writeError(w, apperrors.NotFound("result store"))
		return
	}
	rec, err := s.repository.Get(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write(report.Markdown(*rec))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(report.HTML(*rec))
}

func (s *Server) handleListValidations(w http.ResponseWriter, r *http.Request) {
	if s.repository == nil {
		s.writeError(w, apperrors.NotFound("result store"))
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, apperrors.InvalidInput("limit must be a positive integer"))
			return
		}
		limit = n
	}
	summaries, err := s.repository.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": summaries})
}
