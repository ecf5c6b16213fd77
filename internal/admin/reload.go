package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

type reloadResponse struct {
	PreviousVersion uint64 `json:"previous_version"`
	NewVersion      uint64 `json:"new_version"`
	ReloadTimeMS    int64  `json:"reload_time_ms"`
}

// handleReloadPolicies implements POST /admin/reload-policies: re-reads and
// re-validates both catalogs, swapping them in only if they load cleanly. A
// failed reload leaves the previous snapshot live (spec §4.6) and is
// reported as an error rather than a version bump.
func (s *Server) handleReloadPolicies(w http.ResponseWriter, r *http.Request) {
	previous := s.store.Current().Version

	start := time.Now()
	err := s.store.Reload()
	elapsed := time.Since(start)

	if err != nil {
		writeError(w, http.StatusInternalServerError, ctxerr.New("admin", "handleReloadPolicies", err))
		return
	}

	resp := reloadResponse{
		PreviousVersion: previous,
		NewVersion:      s.store.Current().Version,
		ReloadTimeMS:    elapsed.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
