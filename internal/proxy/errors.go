package proxy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// errStreamingUnsupported is returned when the ResponseWriter backing a
// streaming request does not implement http.Flusher.
func errStreamingUnsupported() error {
	return ctxerr.New("proxy", "handleStreaming", ctxerr.ErrInternal).WithDetails(map[string]any{
		"reason": "response writer does not support flushing",
	})
}

// errorResponse is the error shape named in spec §6.1.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// codeFor maps a taxonomy sentinel (spec §7) to its wire code. Unmatched
// errors fall back to "internal_error", never leaking the underlying cause.
func codeFor(err error) string {
	switch {
	case errors.Is(err, ctxerr.ErrPolicyBlocked):
		return "content_policy"
	case errors.Is(err, ctxerr.ErrInvalidRequest):
		return "validation_error"
	case errors.Is(err, ctxerr.ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ctxerr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, ctxerr.ErrNotFound):
		return "not_found"
	case errors.Is(err, ctxerr.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ctxerr.ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ctxerr.ErrTimeout):
		return "timeout"
	default:
		return "internal_error"
	}
}

// statusFor resolves the HTTP status for err. An explicit StatusCode set on
// the ContextualError itself (e.g. 413 for an oversized body) takes
// precedence over the taxonomy default, which falls back to 500 for any
// error outside the bounded taxonomy (spec §7, "Internal... unexpected
// failure").
func statusFor(err error) int {
	var cerr *ctxerr.ContextualError
	if errors.As(err, &cerr) && cerr.StatusCode != 0 {
		return cerr.StatusCode
	}
	if status := ctxerr.StatusFor(err); status != 0 {
		return status
	}
	return http.StatusInternalServerError
}

// writeError writes the §6.1 error body with the status derived from §7.
// Internal errors never include Cause text or Details in the response
// body, only a correlation id the caller already has via the request-id
// header (spec §7, "stack traces and configuration content never leave
// the process").
func writeError(w http.ResponseWriter, requestID string, err error) {
	status := statusFor(err)
	body := errorResponse{Error: errorBody{
		Code:    codeFor(err),
		Message: publicMessage(err, status),
	}}

	var cerr *ctxerr.ContextualError
	if errors.As(err, &cerr) && status != http.StatusInternalServerError {
		body.Error.Details = cerr.Details
	}
	if requestID != "" {
		body.Error.Details = mergeRequestID(body.Error.Details, requestID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func mergeRequestID(details map[string]any, requestID string) map[string]any {
	if details == nil {
		details = make(map[string]any, 1)
	}
	details["request_id"] = requestID
	return details
}

// publicMessage returns a message safe to return to the client: the
// error's own text for the bounded taxonomy, or a generic correlation
// message for anything that resolved to a 500.
func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal error, see request id for correlation"
	}
	return err.Error()
}
