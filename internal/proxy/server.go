// Package proxy implements the Streaming Proxy Core (spec §4.7): the
// client-facing chat-completion surface that runs every request through
// the ingress/midstream/egress phase engine and relays it to an upstream
// LLM backend, preserving SSE framing.
package proxy

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Skelf-Research/checkstream-sub000/internal/audit"
	"github.com/Skelf-Research/checkstream-sub000/internal/buffer"
	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/extract"
	"github.com/Skelf-Research/checkstream-sub000/internal/phase"
)

// defaultReadHeaderTimeout mitigates Slowloris-style slow-header attacks,
// matching the teacher's runtime/a2a/server.go.
const defaultReadHeaderTimeout = 10 * time.Second

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address used by ListenAndServe.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithUpstreamHTTPClient overrides the *http.Client used to reach
// upstream, for tests that point at an httptest.Server.
func WithUpstreamHTTPClient(client *http.Client) ServerOption {
	return func(s *Server) { s.upstream = newUpstreamClient(client) }
}

// Server is the Streaming Proxy Core's HTTP server.
type Server struct {
	store     *config.Store
	engine    *phase.Engine
	extractor *extract.Extractor
	chain     *audit.Chain
	upstream  *upstreamClient

	addr    string
	httpSrv *http.Server
}

// NewServer builds a Server. store supplies the live configuration
// snapshot, engine runs the three phases, extractor pulls text out of
// request/response bodies, and chain receives the finished audit record
// for every request.
func NewServer(store *config.Store, engine *phase.Engine, extractor *extract.Extractor, chain *audit.Chain, opts ...ServerOption) *Server {
	s := &Server{
		store:     store,
		engine:    engine,
		extractor: extractor,
		chain:     chain,
		upstream:  newUpstreamClient(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns an http.Handler implementing the chat-completion
// surface (spec §6.1).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleCompletion)
	mux.HandleFunc("POST /v1/messages", s.handleCompletion)
	mux.HandleFunc("POST /v1/completions", s.handleCompletion)
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

// bufferConfigFrom builds a buffer.Config from a proxy snapshot's
// streaming settings (spec §4.2).
func bufferConfigFrom(cfg config.StreamingConfig) buffer.Config {
	c := buffer.DefaultConfig()
	if cfg.MaxBufferSize > 0 {
		c.MaxBufferSize = cfg.MaxBufferSize
	}
	c.ContextChunks = cfg.ContextChunks
	c.Delimiter = cfg.Delimiter
	return c
}
