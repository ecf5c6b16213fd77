package proxy

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// doneMarker is the terminal SSE payload OpenAI-style streams send (spec
// §6.1, "ending in data: [DONE]").
const doneMarker = "[DONE]"

// sseFrame is one event read off an upstream stream: an optional named
// event (Anthropic style, e.g. "content_block_delta") and its raw data
// payload, which for both providers is a single JSON object per event.
type sseFrame struct {
	Event string
	Data  []byte
}

// writeSSEData writes a single `data: <payload>\n\n` frame and flushes it
// immediately, mirroring the teacher's writeSSE helper (grounded on
// server/a2a/server_stream.go's writeSSE, minus the JSON-RPC envelope
// CheckStream's wire protocol doesn't use).
func writeSSEData(w http.ResponseWriter, flusher http.Flusher, payload []byte) {
	_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// writeSSEEvent writes a named `event: <name>\ndata: <payload>\n\n` frame,
// for Anthropic-style streams (spec §6.1).
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

// writeSSEDone writes the OpenAI-style terminal frame and flushes it.
func writeSSEDone(w http.ResponseWriter, flusher http.Flusher) {
	_, _ = fmt.Fprintf(w, "data: %s\n\n", doneMarker)
	flusher.Flush()
}

// setSSEHeaders sets the standard SSE response headers (grounded on
// server/a2a/server_stream.go's handleStreamMessage).
func setSSEHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

// sseReader parses an upstream SSE body into a sequence of frames. It
// tolerates either provider's framing: OpenAI sends unnamed `data:` lines
// per event, Anthropic sends an `event:` line followed by `data:`.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(body io.Reader) *sseReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	return &sseReader{scanner: scanner}
}

// Next returns the next frame, io.EOF when the stream ends normally, or a
// scan error. A frame whose Data is exactly "[DONE]" signals the OpenAI
// terminal marker; the caller checks for it explicitly.
func (r *sseReader) Next() (sseFrame, error) {
	var frame sseFrame
	var data strings.Builder
	sawAny := false

	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case line == "":
			if sawAny {
				frame.Data = []byte(data.String())
				return frame, nil
			}
			continue
		case strings.HasPrefix(line, "event:"):
			frame.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			sawAny = true
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			sawAny = true
		default:
			// ignore comment lines and unrecognized fields (id:, retry:)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return sseFrame{}, err
	}
	if sawAny {
		frame.Data = []byte(data.String())
		return frame, nil
	}
	return sseFrame{}, io.EOF
}
