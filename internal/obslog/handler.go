package obslog

import (
	"context"
	"log/slog"
)

// ContextHandler wraps an slog.Handler and injects request-scoped fields
// (see context.go) into every record, so call sites don't have to thread
// request id / tenant / phase through every log call by hand.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next so that Handle() enriches records with any
// fields present in the context.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle enriches the record with context fields, then delegates.
func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	fields := extractFields(ctx)
	if fields.RequestID != "" {
		record.AddAttrs(slog.String(string(KeyRequestID), fields.RequestID))
	}
	if fields.Tenant != "" {
		record.AddAttrs(slog.String(string(KeyTenant), fields.Tenant))
	}
	if fields.Phase != "" {
		record.AddAttrs(slog.String(string(KeyPhase), fields.Phase))
	}
	if fields.Pipeline != "" {
		record.AddAttrs(slog.String(string(KeyPipeline), fields.Pipeline))
	}
	if fields.Classifier != "" {
		record.AddAttrs(slog.String(string(KeyClassifier), fields.Classifier))
	}
	return h.next.Handle(ctx, record)
}

// WithAttrs delegates to the wrapped handler, preserving context injection.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup delegates to the wrapped handler, preserving context injection.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
