// Package ctxerr provides the structured error type used across CheckStream's
// packages.
//
// ContextualError captures the component and operation where an error
// occurred, an optional HTTP/application status code, and optional
// structured details. It implements the error and Unwrap interfaces for
// use with errors.Is and errors.As.
//
// Usage:
//
//	err := ctxerr.New("ingress", "Classify", cause).WithStatusCode(502)
package ctxerr

import "fmt"

// ContextualError is a structured error type that provides consistent
// context about where and why an error occurred across CheckStream modules.
type ContextualError struct {
	// Component identifies the package that produced the error (e.g. "ingress", "registry").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP status code associated with the error.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns the same error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the same error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}
