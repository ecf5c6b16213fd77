package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// withAuth requires a matching X-Admin-Token header on every request when
// an admin token is configured, comparing it in constant time (spec
// §6.2: "Admin token, if configured, is required on write endpoints and
// is compared in constant time"). Deployments that leave admin_token
// unset run these endpoints unauthenticated, matching the teacher
// pattern of trusting network-level isolation for the admin plane when no
// token is configured.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := s.store.Current().Catalog.Proxy.AdminToken
		if want == "" {
			next(w, r)
			return
		}
		got := r.Header.Get("X-Admin-Token")
		if got == "" {
			writeError(w, http.StatusUnauthorized, ctxerr.New("admin", "withAuth", ctxerr.ErrAuthRequired))
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(w, http.StatusForbidden, ctxerr.New("admin", "withAuth", ctxerr.ErrForbidden))
			return
		}
		next(w, r)
	}
}
