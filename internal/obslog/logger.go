// Package obslog provides structured logging for CheckStream and a
// secret-redaction helper.
//
// It wraps log/slog with:
//   - A global DefaultLogger configurable via LOG_LEVEL.
//   - Per-module level overrides (see ModuleConfig in modules.go).
//   - Context-carried fields (request id, tenant, phase, pipeline, classifier)
//     automatically attached to every log line (see context.go, handler.go).
//   - RedactSensitiveData, which masks API keys and bearer tokens in a
//     string; the logging functions here do not apply it themselves.
package obslog

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// DefaultLogger is the global structured logger instance. Safe for
// concurrent use; reassigned wholesale by SetLevel.
var DefaultLogger *slog.Logger

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	DefaultLogger = slog.New(NewContextHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// SetLevel replaces DefaultLogger with one at the given level.
func SetLevel(level slog.Level) {
	DefaultLogger = slog.New(NewContextHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// SetVerbose is a convenience wrapper for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
		return
	}
	SetLevel(slog.LevelInfo)
}

// Info logs at info level with structured key/value attributes.
func Info(msg string, args ...any) { DefaultLogger.Info(msg, args...) }

// InfoContext logs at info level, pulling request-scoped fields from ctx.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs at debug level with structured key/value attributes.
func Debug(msg string, args ...any) { DefaultLogger.Debug(msg, args...) }

// DebugContext logs at debug level, pulling request-scoped fields from ctx.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs at warn level with structured key/value attributes.
func Warn(msg string, args ...any) { DefaultLogger.Warn(msg, args...) }

// WarnContext logs at warn level, pulling request-scoped fields from ctx.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs at error level with structured key/value attributes.
func Error(msg string, args ...any) { DefaultLogger.Error(msg, args...) }

// ErrorContext logs at error level, pulling request-scoped fields from ctx.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// secretPatterns matches common secret shapes that must never reach a log sink.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),     // OpenAI-style API keys
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{32,}`), // Anthropic-style API keys
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.-]+`), // Bearer tokens
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),    // Google-style API keys
}

// RedactSensitiveData replaces API keys, bearer tokens, and similar secrets
// in a string with a redacted form that preserves a short prefix for
// debugging while hiding the sensitive portion. Callers apply it
// explicitly; Info, Warn, Error and the context handler log values as given.
func RedactSensitiveData(input string) string {
	result := input
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return result
}
