// Package buffer implements the Streaming Buffer (spec §3, §4.2): a bounded,
// windowed view over a live token stream, created per request on stream open
// and destroyed on stream close.
package buffer

import "strings"

// Config controls windowing and eviction behavior.
type Config struct {
	// ContextChunks is K in the windowing policy: 0 means "entire buffer",
	// >0 means "last N chunks".
	ContextChunks int
	// MaxBufferSize bounds retained chunks; oldest are evicted first.
	MaxBufferSize int
	// Delimiter joins chunks when building context text.
	Delimiter string
}

// DefaultConfig returns sane defaults: unbounded context window, a generous
// eviction bound, and no delimiter between chunks (matching raw
// concatenation of a token stream).
func DefaultConfig() Config {
	return Config{ContextChunks: 0, MaxBufferSize: 256, Delimiter: ""}
}

// Buffer accumulates recent output chunks and produces a windowed context
// string for classifier input (spec §4.2).
type Buffer struct {
	chunks []string
	cfg    Config
}

// New creates a Buffer with the given config.
func New(cfg Config) *Buffer {
	return &Buffer{cfg: cfg}
}

// Append adds chunk, evicting the oldest retained chunks until len <=
// MaxBufferSize. The invariant append(c); context() always includes c holds
// regardless of MaxBufferSize, since c is the newest chunk and eviction only
// removes from the front.
func (b *Buffer) Append(chunk string) {
	b.chunks = append(b.chunks, chunk)
	if b.cfg.MaxBufferSize > 0 && len(b.chunks) > b.cfg.MaxBufferSize {
		overflow := len(b.chunks) - b.cfg.MaxBufferSize
		b.chunks = b.chunks[overflow:]
	}
}

// Context returns the join, per config, of the last K chunks (or all
// retained chunks if ContextChunks == 0).
func (b *Buffer) Context() string {
	if len(b.chunks) == 0 {
		return ""
	}
	k := b.cfg.ContextChunks
	if k <= 0 || k > len(b.chunks) {
		k = len(b.chunks)
	}
	window := b.chunks[len(b.chunks)-k:]
	return strings.Join(window, b.cfg.Delimiter)
}

// Reset clears all retained chunks, used at conversational boundaries.
func (b *Buffer) Reset() {
	b.chunks = nil
}

// Len returns the number of chunks currently retained.
func (b *Buffer) Len() int {
	return len(b.chunks)
}

// IsEmpty reports whether the buffer currently holds no chunks.
func (b *Buffer) IsEmpty() bool {
	return len(b.chunks) == 0
}
