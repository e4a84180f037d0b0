package observe

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// readyCheckTimeout bounds a single readiness probe.
const readyCheckTimeout = 5 * time.Second

// HealthCheck probes one dependency for the readiness endpoint. Check must
// respect context cancellation and return nil when the dependency is usable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ServerOption is a functional option for [NewMetricsServer].
type ServerOption func(*MetricsServer)

// WithHealthCheck registers a readiness probe served on /readyz. Options
// may be repeated; checks run sequentially in registration order.
func WithHealthCheck(name string, check func(ctx context.Context) error) ServerOption {
	return func(s *MetricsServer) {
		s.checks = append(s.checks, HealthCheck{Name: name, Check: check})
	}
}

// MetricsServer exposes the Prometheus scrape endpoint plus liveness and
// readiness probes. It is the only HTTP surface of the application and is
// optional; a session runs fine without it.
type MetricsServer struct {
	srv    *http.Server
	checks []HealthCheck
}

// NewMetricsServer returns a server that serves /metrics, /healthz, and
// /readyz on addr.
func NewMetricsServer(addr string, opts ...ServerOption) *MetricsServer {
	s := &MetricsServer{}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /readyz", s.readyz)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine. Listen failures are
// logged, not fatal.
func (s *MetricsServer) Start() {
	go func() {
		slog.Info("metrics endpoint listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics endpoint failed", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// probeResult is the JSON body of the health endpoints.
type probeResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthz is a liveness probe; a process that can serve HTTP is alive.
func (s *MetricsServer) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResult{Status: "ok"})
}

// readyz returns 200 only when every registered check passes.
func (s *MetricsServer) readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checks))
	status := http.StatusOK
	res := probeResult{Status: "ok", Checks: checks}

	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			checks[c.Name] = "ok"
		}
	}

	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
