package proxy

import (
	"encoding/json"

	"github.com/Skelf-Research/checkstream-sub000/internal/extract"
)

// contentFilterReason is the finish-reason/stop-reason value both provider
// shapes use to signal a policy termination (spec §4.4: "finish_reason is
// set to a content-filter marker").
const contentFilterReason = "content_filter"

// redactionMarker replaces one chunk's delta when midstream decides
// Redact (spec §4.4).
const redactionMarker = "[REDACTED]"

// terminateFrame is a single synthetic SSE event to emit for the
// Terminate action: a refusal-carrying delta and, where the provider
// shape requires it, a named event.
type terminateFrame struct {
	event   string // empty for OpenAI-style unnamed data frames
	payload []byte
}

// buildTerminateFrames returns the synthetic frame(s) that close a
// streamed response after a midstream Terminate decision, carrying
// refusalText and a content-filter finish/stop reason.
func buildTerminateFrames(route extract.Route, refusalText string) []terminateFrame {
	switch route {
	case extract.RouteMessages:
		deltaPayload, _ := json.Marshal(map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": refusalText},
		})
		stopPayload, _ := json.Marshal(map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": contentFilterReason},
		})
		return []terminateFrame{
			{event: "content_block_delta", payload: deltaPayload},
			{event: "message_delta", payload: stopPayload},
		}
	case extract.RouteCompletions:
		payload, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"text": refusalText, "finish_reason": contentFilterReason}},
		})
		return []terminateFrame{{payload: payload}}
	default: // chat_completions
		payload, _ := json.Marshal(map[string]any{
			"object": "chat.completion.chunk",
			"choices": []any{map[string]any{
				"index":         0,
				"delta":         map[string]any{"content": refusalText},
				"finish_reason": contentFilterReason,
			}},
		})
		return []terminateFrame{{payload: payload}}
	}
}

// replaceDeltaText rewrites frame's JSON payload so its extracted text
// reads as replacement, preserving every other field (spec §4.7: "frame
// framing, id, and other fields are preserved").
func replaceDeltaText(route extract.Route, payload []byte, replacement string) []byte {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return payload
	}

	switch route {
	case extract.RouteChatCompletions, extract.RouteCompletions:
		if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]any); ok {
				if delta, ok := choice["delta"].(map[string]any); ok {
					delta["content"] = replacement
				} else if _, ok := choice["text"]; ok {
					choice["text"] = replacement
				}
			}
		}
	case extract.RouteMessages:
		if delta, ok := raw["delta"].(map[string]any); ok {
			delta["text"] = replacement
		}
	}

	out, err := json.Marshal(raw)
	if err != nil {
		return payload
	}
	return out
}
