package buffer

import (
	"fmt"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestContextWindow_EntireBuffer(t *testing.T) {
	b := New(Config{ContextChunks: 0, MaxBufferSize: 10, Delimiter: "|"})
	b.Append("a")
	b.Append("b")
	b.Append("c")
	assert.Equal(t, "a|b|c", b.Context())
}

func TestContextWindow_SingleChunk(t *testing.T) {
	b := New(Config{ContextChunks: 1, MaxBufferSize: 10, Delimiter: "|"})
	b.Append("a")
	b.Append("b")
	assert.Equal(t, "b", b.Context())
}

func TestContextWindow_LastN(t *testing.T) {
	b := New(Config{ContextChunks: 2, MaxBufferSize: 10, Delimiter: "|"})
	b.Append("a")
	b.Append("b")
	b.Append("c")
	assert.Equal(t, "b|c", b.Context())
}

func TestContextWindow_FewerThanN(t *testing.T) {
	b := New(Config{ContextChunks: 5, MaxBufferSize: 10, Delimiter: "|"})
	b.Append("a")
	b.Append("b")
	assert.Equal(t, "a|b", b.Context())
}

func TestEviction_BoundsLength(t *testing.T) {
	b := New(Config{ContextChunks: 0, MaxBufferSize: 3, Delimiter: ""})
	for i := 0; i < 10; i++ {
		b.Append(fmt.Sprintf("%d", i))
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, "789", b.Context())
}

func TestReset(t *testing.T) {
	b := New(Config{MaxBufferSize: 10})
	b.Append("a")
	b.Reset()
	assert.True(t, b.IsEmpty())
	assert.Equal(t, "", b.Context())
}

// TestProperty_BufferBound is the universal property from spec §8.1: for any
// sequence of appends, len() never exceeds MaxBufferSize, and the last
// appended chunk is always in context().
func TestProperty_BufferBound(t *testing.T) {
	f := func(chunks []string, maxSize uint8) bool {
		size := int(maxSize)
		if size == 0 {
			size = 1
		}
		b := New(Config{ContextChunks: 0, MaxBufferSize: size, Delimiter: "\x00"})
		for _, c := range chunks {
			b.Append(c)
			if b.Len() > size {
				return false
			}
		}
		if len(chunks) > 0 {
			last := chunks[len(chunks)-1]
			if !containsChunk(b.Context(), "\x00", last) {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func containsChunk(joined, delim, target string) bool {
	if joined == target {
		return true
	}
	for _, part := range splitAll(joined, delim) {
		if part == target {
			return true
		}
	}
	return false
}

func splitAll(s, sep string) []string {
	var out []string
	start := 0
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			out = append(out, s[start:i])
			start = i + len(sep)
		}
	}
	out = append(out, s[start:])
	return out
}
