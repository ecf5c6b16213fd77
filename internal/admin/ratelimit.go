package admin

import (
	"net/http"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// withRateLimit rejects a request with 429 once the shared admin token
// bucket is exhausted (spec §7: "RateLimited — 429; only for
// administrative endpoints").
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, ctxerr.New("admin", "withRateLimit", ctxerr.ErrRateLimited))
			return
		}
		next(w, r)
	}
}
