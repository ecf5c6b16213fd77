package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// errorResponse mirrors the proxy surface's wire error shape (spec §6.1)
// so operators see one consistent error body across both HTTP surfaces.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, ctxerr.ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ctxerr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, ctxerr.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ctxerr.ErrNotFound):
		return "not_found"
	case errors.Is(err, errNotImplemented):
		return "not_implemented"
	default:
		return "internal_error"
	}
}

// errNotImplemented marks an admin endpoint that exists in the routing
// table but has no backing implementation for the current deployment, e.g.
// audit export when no Exporter was wired.
var errNotImplemented = errors.New("not implemented")

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorBody{
		Code:    codeFor(err),
		Message: err.Error(),
	}})
}
