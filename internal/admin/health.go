package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// buildVersion is overridable at link time via
// -ldflags "-X github.com/Skelf-Research/checkstream-sub000/internal/admin.buildVersion=...".
var buildVersion = "dev"

type healthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	UptimeSeconds    int64  `json:"uptime_s"`
	PolicyVersion    uint64 `json:"policy_version"`
	ModelsLoaded     int    `json:"models_loaded"`
	BackendReachable bool   `json:"backend_reachable"`
}

// handleHealth implements GET /admin/health (spec §6.2).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()

	ctx, cancel := context.WithTimeout(r.Context(), defaultProbeTimeout)
	defer cancel()
	reachable := s.prober(ctx, snap.Catalog.Proxy.UpstreamBaseURL)

	status := "ok"
	if !reachable {
		status = "degraded"
	}

	resp := healthResponse{
		Status:           status,
		Version:          buildVersion,
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
		PolicyVersion:    snap.Version,
		ModelsLoaded:     s.registry.LoadedCount(),
		BackendReachable: reachable,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleReady implements GET /admin/ready: 200 once SetReady(true) has
// been called (normally after startup preload completes), 503 until then
// (spec §6.2: "200 if warm, 503 otherwise").
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleLive implements GET /admin/live: 200 while the process is up,
// unconditionally (spec §6.2).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// defaultProbeTimeout bounds how long the health endpoint waits on an
// unreachable upstream before reporting degraded, so a slow backend never
// makes the health check itself slow.
const defaultProbeTimeout = 2 * time.Second

// defaultProber issues a HEAD request against baseURL. Any non-network
// response (even a 404 or 401 from the provider's root path) counts as
// reachable; only a transport-level failure reports false.
func defaultProber(ctx context.Context, baseURL string) bool {
	if baseURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}
