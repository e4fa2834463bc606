package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor is the read side of a runner.
type Monitor interface {
	Status() runner.Status
	Samples() ([]domain.LatticeSample, bool)
}

// Server exposes a runner's progress over HTTP.
type Server struct {
	Monitor  Monitor
	Markers  ports.MarkerStore
	Streams  *StreamManager
	Gatherer prometheus.Gatherer
	Version  string
	Logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMarkers enables GET /markers backed by store.
func WithMarkers(store ports.MarkerStore) Option {
	return func(s *Server) { s.Markers = store }
}

// WithGatherer serves g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.Gatherer = g }
}

// WithStreams publishes the events of sm on /events.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

// WithLogger configures request error logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.Logger = l }
}

// NewHandler creates the HTTP handler for monitor.
//
//	GET /health   liveness
//	GET /info     application and version
//	GET /status   runner.Status snapshot
//	GET /samples  lattice samples of a constrained optimization
//	GET /markers  continuation marker of ?dir=
//	GET /markers/pending  directories holding a marker, for listing stores
//	GET /events   lifecycle events as server-sent events
//	GET /metrics  Prometheus exposition
func NewHandler(monitor Monitor, opts ...Option) http.Handler {
	s := &Server{
		Monitor:  monitor,
		Streams:  NewStreamManager(),
		Gatherer: prometheus.DefaultGatherer,
		Version:  "dev",
		Logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/status", s.GetStatus)
	r.Get("/samples", s.GetSamples)
	r.Get("/markers", s.GetMarker)
	r.Get("/markers/pending", s.ListPending)
	r.Get("/events", s.SubscribeEvents)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"app": "strata", "version": s.Version})
}

// GetStatus handles GET /status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.Monitor.Status())
}

// GetSamples handles GET /samples. It answers 404 when the running sequence
// does not sample lattice lengths.
func (s *Server) GetSamples(w http.ResponseWriter, r *http.Request) {
	samples, ok := s.Monitor.Samples()
	if !ok {
		http.Error(w, "current sequence records no lattice samples", http.StatusNotFound)
		return
	}
	if samples == nil {
		samples = []domain.LatticeSample{}
	}
	s.writeJSON(w, samples)
}

// GetMarker handles GET /markers?dir=. Without dir it reports the marker of
// the directory being run.
func (s *Server) GetMarker(w http.ResponseWriter, r *http.Request) {
	if s.Markers == nil {
		http.Error(w, "marker store not configured", http.StatusNotImplemented)
		return
	}
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		dir = s.Monitor.Status().Dir
	}
	if dir == "" || !filepath.IsAbs(dir) {
		http.Error(w, "dir must be an absolute path", http.StatusBadRequest)
		return
	}
	m, err := s.Markers.Load(r.Context(), dir)
	if errors.Is(err, domain.ErrMarkerNotFound) {
		http.Error(w, fmt.Sprintf("no continuation marker in %s", dir), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load marker", http.StatusInternalServerError)
		s.Logger.Error("marker load failed", "dir", dir, "err", err)
		return
	}
	s.writeJSON(w, m)
}

// ListPending handles GET /markers/pending.
func (s *Server) ListPending(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.Markers.(ports.MarkerLister)
	if !ok {
		http.Error(w, "marker store cannot list directories", http.StatusNotImplemented)
		return
	}
	dirs, err := lister.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list markers", http.StatusInternalServerError)
		s.Logger.Error("marker list failed", "err", err)
		return
	}
	if dirs == nil {
		dirs = []string{}
	}
	s.writeJSON(w, dirs)
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
