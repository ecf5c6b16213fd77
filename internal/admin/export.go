package admin

import (
	"net/http"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// handleAuditExport implements GET /admin/audit/export?since=<hash>,
// streaming the audit log as newline-delimited JSON (SPEC_FULL.md §12 item
// 5). When no Exporter was wired via WithExporter, s.exporter is nil and
// this reports 501.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, ctxerr.New("admin", "handleAuditExport", errNotImplemented))
		return
	}

	since := r.URL.Query().Get("since")

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		defer f.Flush()
	}

	if err := s.exporter.Export(r.Context(), since, w); err != nil {
		// Headers are already sent; best effort is all we can do here.
		return
	}
}
