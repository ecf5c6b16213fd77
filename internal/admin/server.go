// Package admin implements the Admin Surface (spec §6.2): health,
// readiness, liveness, policy reload, a policy summary, Prometheus
// metrics, and audit-log export. Policy reload, the policy summary and
// audit export are gated by a constant-time-compared admin token and a
// shared request-rate budget; health, readiness, liveness and metrics are
// not.
package admin

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/obsmetrics"
	"github.com/Skelf-Research/checkstream-sub000/internal/registry"
)

// defaultReadHeaderTimeout matches the proxy and metrics-exporter server
// lifecycles elsewhere in this codebase.
const defaultReadHeaderTimeout = 10 * time.Second

// defaultRateLimit bounds sustained admin request throughput; burst allows
// a short catch-up after an idle period. Both are overridable via options
// for deployments with a different operational cadence.
const (
	defaultRateLimit = 5 // requests/sec
	defaultBurst     = 10
)

// Exporter streams audit records appended after since (exclusive) to w, as
// newline-delimited JSON. Implemented by audit.FileSink; sinks that can't
// support range export leave this nil and /admin/audit/export reports 501.
type Exporter interface {
	Export(ctx context.Context, since string, w io.Writer) error
}

// Prober reports whether the configured upstream is currently reachable,
// for the health endpoint's backend_reachable field.
type Prober func(ctx context.Context, baseURL string) bool

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address used by ListenAndServe.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithExporter wires an audit log exporter for GET /admin/audit/export.
func WithExporter(exp Exporter) ServerOption {
	return func(s *Server) { s.exporter = exp }
}

// WithProber overrides the default backend-reachability check, for tests.
func WithProber(p Prober) ServerOption {
	return func(s *Server) { s.prober = p }
}

// WithRateLimit overrides the default admin-endpoint rate limit.
func WithRateLimit(requestsPerSecond float64, burst int) ServerOption {
	return func(s *Server) { s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// Server is the Admin Surface's HTTP server.
type Server struct {
	store    *config.Store
	registry *registry.Registry
	exporter Exporter
	prober   Prober
	limiter  *rate.Limiter

	startedAt time.Time
	ready     atomic.Bool

	addr    string
	httpSrv *http.Server
}

// registerMetricsOnce keeps obsmetrics.Register from running twice, which
// would fail with an already-registered error: in a single process exactly one
// admin.Server should own exposing /metrics against the default
// registerer, but nothing stops a test suite from building more than one.
var registerMetricsOnce sync.Once

// NewServer builds a Server. store supplies the live configuration
// snapshot and policy_version; registry supplies the loaded-classifier
// count reported by /admin/health.
func NewServer(store *config.Store, reg *registry.Registry, opts ...ServerOption) *Server {
	registerMetricsOnce.Do(func() {
		_ = obsmetrics.Register(prometheus.DefaultRegisterer)
	})

	s := &Server{
		store:     store,
		registry:  reg,
		prober:    defaultProber,
		limiter:   rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReady flips the readiness flag /admin/ready reports. Call this once
// startup preload (internal/registry.Registry.Preload) has finished.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

// Handler returns an http.Handler implementing the admin surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/health", s.handleHealth)
	mux.HandleFunc("GET /admin/ready", s.handleReady)
	mux.HandleFunc("GET /admin/live", s.handleLive)
	mux.HandleFunc("POST /admin/reload-policies", s.withAuth(s.withRateLimit(s.handleReloadPolicies)))
	mux.HandleFunc("GET /admin/policies", s.withAuth(s.withRateLimit(s.handlePolicies)))
	mux.HandleFunc("GET /admin/audit/export", s.withAuth(s.withRateLimit(s.handleAuditExport)))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	return s.httpSrv.Serve(ln)
}

// Shutdown gracefully drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
