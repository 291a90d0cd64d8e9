// Package server serves the hwmeter status API and the Prometheus endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/hwmeter/internal/inspector"
	"github.com/HerbHall/hwmeter/internal/pollster"
	"github.com/HerbHall/hwmeter/internal/version"
)

// SampleReader reads the latest stored samples.
type SampleReader interface {
	Latest(ctx context.Context, resourceID string) ([]pollster.Sample, error)
}

// InspectorLister lists inspectors in priority order.
type InspectorLister interface {
	Inspectors() []inspector.Inspector
}

// PollStatus reports on the polling loop.
type PollStatus interface {
	LastCycle() (time.Time, time.Duration)
	Hosts() []string
}

// Deps are the data sources behind the API. Samples may be nil when the
// store is disabled.
type Deps struct {
	Samples    SampleReader
	Inspectors InspectorLister
	Status     PollStatus
	Gatherer   prometheus.Gatherer
	// RateLimit caps API requests per second; 0 disables the limit.
	RateLimit float64
}

// Server is the hwmeter status API.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *zap.Logger
	mux        *http.ServeMux
	limiter    *rate.Limiter
}

// New creates a new Server instance.
func New(addr string, deps Deps, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
		mux:    mux,
	}
	if deps.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(deps.RateLimit), max(1, int(deps.RateLimit)))
	}

	s.registerRoutes()

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.limit(s.handleHealth))
	s.mux.HandleFunc("GET /api/v1/samples", s.limit(s.handleSamples))
	s.mux.HandleFunc("GET /api/v1/inspectors", s.limit(s.handleInspectors))

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			RateLimited(w, "too many requests", r.URL.Path)
			return
		}
		next(w, r)
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Hwmeter-Version", version.Short())
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("writing response", zap.Error(err))
	}
}

// handleHealth returns the server health status and the last poll cycle.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"service": "hwmeter",
		"version": version.Map(),
	}
	if s.deps.Status != nil {
		start, took := s.deps.Status.LastCycle()
		cycle := map[string]any{"completed": !start.IsZero()}
		if !start.IsZero() {
			cycle["started_at"] = start.UTC().Format(time.RFC3339)
			cycle["duration_ms"] = took.Milliseconds()
		}
		resp["hosts"] = len(s.deps.Status.Hosts())
		resp["last_cycle"] = cycle
	}
	s.writeJSON(w, resp)
}

// handleSamples returns the latest samples, optionally for one resource.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if s.deps.Samples == nil {
		Unavailable(w, "sample store is disabled", r.URL.Path)
		return
	}
	resourceID := r.URL.Query().Get("resource_id")
	if resourceID != "" && !validResourceID(resourceID) {
		BadRequest(w, fmt.Sprintf("resource_id %q is not a hex host ID", resourceID), r.URL.Path)
		return
	}
	samples, err := s.deps.Samples.Latest(r.Context(), resourceID)
	if err != nil {
		s.logger.Error("reading samples", zap.String("resource_id", resourceID), zap.Error(err))
		InternalError(w, "failed to read samples", r.URL.Path)
		return
	}
	if resourceID != "" && len(samples) == 0 {
		NotFound(w, fmt.Sprintf("resource %s has no samples", resourceID), r.URL.RequestURI())
		return
	}
	s.writeJSON(w, samples)
}

// validResourceID reports whether id looks like a host ID: a compact
// lowercase MAC or a derived hex token.
func validResourceID(id string) bool {
	if len(id) > 64 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// handleInspectors lists inspectors in priority order with their capabilities.
func (s *Server) handleInspectors(w http.ResponseWriter, r *http.Request) {
	type inspectorResponse struct {
		Name         string   `json:"name"`
		Priority     int      `json:"priority"`
		Capabilities []string `json:"capabilities"`
	}
	var insps []inspector.Inspector
	if s.deps.Inspectors != nil {
		insps = s.deps.Inspectors.Inspectors()
	}
	out := make([]inspectorResponse, 0, len(insps))
	for i, insp := range insps {
		caps := inspector.Capabilities(insp)
		if caps == nil {
			caps = []string{}
		}
		out = append(out, inspectorResponse{Name: insp.Name(), Priority: i, Capabilities: caps})
	}
	s.writeJSON(w, out)
}
