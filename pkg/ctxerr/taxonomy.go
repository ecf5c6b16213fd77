package ctxerr

import "errors"

// Sentinel errors for the bounded error taxonomy in spec §7. Each is wrapped
// as the Cause of a *ContextualError so callers can use errors.Is while still
// getting component/operation/status context from the wrapping error.
var (
	// ErrInvalidRequest covers malformed bodies, missing required fields, and
	// oversized requests. Maps to HTTP 4xx, code "validation_error".
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAuthRequired covers missing admin credentials. Maps to HTTP 401.
	ErrAuthRequired = errors.New("authentication required")

	// ErrForbidden covers insufficient admin credentials. Maps to HTTP 403.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound covers an unknown pipeline or classifier explicitly
	// referenced by a request. Maps to HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited applies only to administrative endpoints. Maps to HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrBackendUnavailable covers upstream connection failure, non-2xx
	// response, or a stream aborted before any content. Maps to HTTP 502.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrTimeout covers an upstream or phase deadline exceeded. Maps to
	// HTTP 504 when surfaced to the client.
	ErrTimeout = errors.New("timeout")

	// ErrPolicyBlocked is returned when the ingress decision demands a
	// block. Maps to HTTP 400, code "content_policy".
	ErrPolicyBlocked = errors.New("content policy violation")

	// ErrInternal covers unexpected failures. Maps to HTTP 500.
	ErrInternal = errors.New("internal error")

	// ErrInvalidInput is a classifier-contract error: the classifier could
	// not interpret the given text.
	ErrInvalidInput = errors.New("invalid classifier input")

	// ErrModelUnavailable is a classifier-contract error: the backing model
	// could not be loaded or reached.
	ErrModelUnavailable = errors.New("model unavailable")
)

// StatusFor returns the HTTP status code conventionally associated with a
// taxonomy sentinel, or 0 if err does not match any of them.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return 400
	case errors.Is(err, ErrPolicyBlocked):
		return 400
	case errors.Is(err, ErrAuthRequired):
		return 401
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrRateLimited):
		return 429
	case errors.Is(err, ErrBackendUnavailable):
		return 502
	case errors.Is(err, ErrTimeout):
		return 504
	case errors.Is(err, ErrInternal):
		return 500
	default:
		return 0
	}
}
