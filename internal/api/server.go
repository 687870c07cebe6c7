// Package api serves a read-only inspection surface over the history
// index and pins manifest. It mutates nothing: the pipeline is driven
// exclusively through the RPC front-end.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/site2ts/internal/artifact"
	"github.com/mattjoyce/site2ts/internal/history"
	"github.com/mattjoyce/site2ts/internal/log"
)

// HistoryReader is the slice of the history store the API needs.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// PinsReader loads the pins manifest.
type PinsReader interface {
	LoadPins() (*artifact.Pins, error)
}

// Server is the inspection HTTP server.
type Server struct {
	listen    string
	history   HistoryReader
	pins      PinsReader
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a Server bound to listen.
func New(listen string, hist HistoryReader, pins PinsReader) *Server {
	return &Server{
		listen:  listen,
		history: hist,
		pins:    pins,
		logger:  log.WithComponent("api"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/runs", s.handleRuns)
	r.Get("/api/pins", s.handlePins)

	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()
	s.server = &http.Server{
		Addr:              s.listen,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("inspection api listening", "addr", s.listen)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "history unavailable"})
		return
	}

	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		out = append(out, map[string]any{
			"jobId":      run.JobID,
			"stage":      run.Stage,
			"artifactId": run.ArtifactID,
			"status":     run.Status,
			"digest":     run.Digest,
			"error":      run.Error,
			"startedAt":  run.StartedAt.UTC().Format(time.RFC3339),
			"durationMs": run.DurationMs,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) handlePins(w http.ResponseWriter, r *http.Request) {
	pins, err := s.pins.LoadPins()
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "pins not written: run init first"})
			return
		}
		s.logger.Error("failed to read pins", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "pins unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, pins)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
