// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fpang/profile-agent/internal/jobs"
	"github.com/fpang/profile-agent/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"
)

// Status reports controller state. *jobs.Controller implements it.
type Status interface {
	IsProcessing(ctx context.Context) bool
	Uptime() time.Duration
}

// RunLookup finds stored reports. Get returns nil, nil for unknown runs.
type RunLookup interface {
	Get(ctx context.Context, runID string) (*jobs.Report, error)
}

// Server wires HTTP handlers.
type Server struct {
	status  Status
	trigger http.Handler
	runs    RunLookup
	now     func() time.Time
}

// New constructs the server. runs may be nil, which disables /runs.
func New(status Status, trigger http.Handler, runs RunLookup) *Server {
	return &Server{status: status, trigger: trigger, runs: runs, now: time.Now}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)
	r.Post("/webhook", s.trigger.ServeHTTP)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Mount("/metrics", metrics.Handler())

	return gzhttp.GzipHandler(r)
}

type statusResponse struct {
	IsProcessing bool    `json:"isProcessing"`
	Uptime       float64 `json:"uptime"`
	Timestamp    string  `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		IsProcessing: s.status.IsProcessing(r.Context()),
		Uptime:       s.status.Uptime().Seconds(),
		Timestamp:    s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, "run history disabled", http.StatusNotFound)
		return
	}
	id := jobs.NormalizeRunID(chi.URLParam(r, "id"))
	report, err := s.runs.Get(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("runId", id).Msg("Run lookup failed")
		http.Error(w, "run lookup failed", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// requestLogger logs each request and counts it by route pattern.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
