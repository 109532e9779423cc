// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aznory/listinglens/internal/assembler"
	"github.com/aznory/listinglens/internal/models"
	"github.com/aznory/listinglens/internal/normalizer"
	"github.com/aznory/listinglens/internal/pipeline"
	"github.com/aznory/listinglens/internal/usage"
)

const maxBodyBytes = 1 << 20

// RunHistory reads persisted runs; nil disables the history endpoint.
type RunHistory func(ctx context.Context, asin string, limit int) ([]assembler.CombinedResult, error)

type Server struct {
	pipeline *pipeline.Pipeline
	guard    *usage.Guard
	history  RunHistory
}

func New(p *pipeline.Pipeline, guard *usage.Guard, history RunHistory) *Server {
	return &Server{pipeline: p, guard: guard, history: history}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// The bare /analyze route degrades to whatever stages the plan allows;
	// the stage-specific routes fail with the guard result instead.
	mux.HandleFunc("POST /analyze", s.analyzeHandler(pipeline.StagePlan, false))
	mux.HandleFunc("POST /analyze/score", s.analyzeHandler(pipeline.StageScore, false))
	mux.HandleFunc("POST /analyze/reasoning", s.analyzeHandler(pipeline.StageReasoning, true))
	mux.HandleFunc("POST /analyze/improvement-plan", s.handleImprove)
	mux.HandleFunc("GET /usage/status", s.handleUsageStatus)
	mux.HandleFunc("GET /runs/{asin}", s.handleRuns)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func accountID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Account-ID")); id != "" {
		return id
	}
	return "anonymous"
}

func (s *Server) analyzeHandler(stage pipeline.Stage, strict bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := s.decodeRequest(w, r, stage, strict)
		if !ok {
			return
		}
		result, err := s.pipeline.Analyze(r.Context(), req)
		s.respond(w, req, result, err)
	}
}

// handleImprove synthesizes a plan against the latest stored run when one
// exists, and falls back to a full analysis otherwise.
func (s *Server) handleImprove(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r, pipeline.StagePlan, true)
	if !ok {
		return
	}
	result, err := s.pipeline.Improve(r.Context(), req)
	s.respond(w, req, result, err)
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, stage pipeline.Stage, strict bool) (pipeline.Request, bool) {
	var payload models.RawAnalysisPayload
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return pipeline.Request{}, false
	}
	return pipeline.Request{
		AccountID:   accountID(r),
		Payload:     payload,
		Stage:       stage,
		StrictStage: strict,
		DryRun:      r.URL.Query().Get("dryRun") == "true",
	}, true
}

func (s *Server) respond(w http.ResponseWriter, req pipeline.Request, result assembler.CombinedResult, err error) {
	if err != nil {
		if denied, ok := pipeline.IsDenied(err); ok {
			writeJSON(w, http.StatusTooManyRequests, denied)
			return
		}
		if errors.Is(err, normalizer.ErrMissingASIN) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("[Server] Analysis failed",
			slog.String("account_id", req.AccountID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUsageStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.guard.Status(r.Context(), accountID(r))
	if err != nil {
		slog.Error("[Server] Usage status lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "usage status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	asin := r.PathValue("asin")
	if asin == "" {
		writeError(w, http.StatusBadRequest, "missing asin")
		return
	}

	if latest, ok := s.pipeline.LatestRun(r.Context(), asin); ok {
		writeJSON(w, http.StatusOK, []assembler.CombinedResult{latest})
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotFound, "no runs found")
		return
	}
	runs, err := s.history(r.Context(), asin, 10)
	if err != nil {
		slog.Error("[Server] Run history lookup failed",
			slog.String("asin", asin),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "run history unavailable")
		return
	}
	if len(runs) == 0 {
		writeError(w, http.StatusNotFound, "no runs found")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[Server] Failed to encode response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
