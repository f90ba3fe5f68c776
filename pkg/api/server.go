package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nordlys-io/sxwatch/pkg/journal"
	"github.com/nordlys-io/sxwatch/pkg/poll"
)

// Interfaces for dependencies to enable mocking

// SnapshotSource is the coordinator surface the API serves from.
type SnapshotSource interface {
	View() poll.View
	Lines() []string
}

// EventSource serves the operational event journal. Optional.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]journal.Event, error)
}

// Server encapsulates the HTTP API server.
type Server struct {
	src    SnapshotSource
	events EventSource
	server *http.Server
}

// NewServer creates the API server. events may be nil, in which case
// /v1/events serves an empty list.
func NewServer(src SnapshotSource, events EventSource, addr string) *Server {
	s := &Server{src: src, events: events}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/lines", s.handleLines)
	mux.HandleFunc("GET /v1/lines/{ref}", s.handleLine)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("api: listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	view := s.src.View()

	status := "ok"
	if view.BackingOff {
		status = "backing_off"
	}
	if view.Lines == nil {
		status = "starting"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Fresh:         view.Fresh,
		BackingOff:    view.BackingOff,
		ThrottleCount: view.ThrottleCount,
		FetchedAt:     view.FetchedAt,
		Truncated:     view.Truncated,
		LineCount:     len(s.src.Lines()),
	})
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.View())
}

func (s *Server) handleLine(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	view := s.src.View()

	snap, ok := view.Lines[ref]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "line not monitored: " + ref})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	if s.events == nil {
		writeJSON(w, http.StatusOK, []journal.Event{})
		return
	}

	events, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if events == nil {
		events = []journal.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}
