package proxy

import (
	"encoding/json"

	"github.com/Skelf-Research/checkstream-sub000/internal/extract"
)

// replaceResponseText overwrites the assistant text fields of a
// non-streaming upstream response body with replacement, for the Redact
// and Terminate midstream actions applied to a collected (non-streamed)
// response (spec §4.7: "running midstream once over the full text").
// Anything the raw shape doesn't recognize is left untouched rather than
// erroring, since replacement is best-effort on an upstream-controlled
// shape.
func replaceResponseText(route extract.Route, body []byte, replacement string) []byte {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return body
	}

	switch route {
	case extract.RouteChatCompletions:
		choices, _ := raw["choices"].([]any)
		if len(choices) == 0 {
			return body
		}
		choice, _ := choices[0].(map[string]any)
		if choice == nil {
			return body
		}
		msg, _ := choice["message"].(map[string]any)
		if msg == nil {
			msg = map[string]any{}
			choice["message"] = msg
		}
		msg["content"] = replacement
	case extract.RouteMessages:
		raw["content"] = []any{map[string]any{"type": "text", "text": replacement}}
	case extract.RouteCompletions:
		choices, _ := raw["choices"].([]any)
		if len(choices) == 0 {
			return body
		}
		choice, _ := choices[0].(map[string]any)
		if choice == nil {
			return body
		}
		choice["text"] = replacement
	}

	out, err := json.Marshal(raw)
	if err != nil {
		return body
	}
	return out
}
