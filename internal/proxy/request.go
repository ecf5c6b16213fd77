package proxy

import (
	"encoding/json"

	"github.com/Skelf-Research/checkstream-sub000/internal/extract"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// routeForPath maps an incoming request path to the Route the extractor
// and augmentation logic key off of (spec §6.1).
func routeForPath(path string) (extract.Route, bool) {
	switch path {
	case "/v1/chat/completions":
		return extract.RouteChatCompletions, true
	case "/v1/messages":
		return extract.RouteMessages, true
	case "/v1/completions":
		return extract.RouteCompletions, true
	default:
		return "", false
	}
}

// parsedRequest is the proxy's working view of an inbound request body:
// the decoded JSON (for re-marshaling after augmentation) plus the fields
// the phase engine and upstream call need.
type parsedRequest struct {
	route extract.Route
	raw   map[string]any
	model string
	text  string
	stream bool
}

// parseRequest decodes body for route, extracting the upstream model name,
// the stream flag, and the user-authored text (spec §4.7 step 1).
func parseRequest(route extract.Route, body []byte, extractor *extract.Extractor) (*parsedRequest, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ctxerr.New("proxy", "parseRequest", ctxerr.ErrInvalidRequest).WithDetails(map[string]any{"reason": "body is not a JSON object"})
	}

	model, _ := raw["model"].(string)
	stream, _ := raw["stream"].(bool)

	text, err := extractor.UserText(route, body)
	if err != nil {
		return nil, ctxerr.New("proxy", "parseRequest", ctxerr.ErrInvalidRequest).WithDetails(map[string]any{"reason": err.Error()})
	}

	return &parsedRequest{route: route, raw: raw, model: model, text: text, stream: stream}, nil
}

// augmentedBody returns pr's JSON body with systemText injected as the
// ingress phase's Augment action prescribes (spec §4.4): a prepended
// system message for chat-style routes, a prepended system field for
// Anthropic messages, and a prefixed prompt for legacy completions.
func (pr *parsedRequest) augmentedBody(systemText string) ([]byte, error) {
	switch pr.route {
	case extract.RouteChatCompletions:
		msgs, _ := pr.raw["messages"].([]any)
		systemMsg := map[string]any{"role": "system", "content": systemText}
		pr.raw["messages"] = append([]any{systemMsg}, msgs...)
	case extract.RouteMessages:
		existing, _ := pr.raw["system"].(string)
		if existing != "" {
			pr.raw["system"] = systemText + "\n" + existing
		} else {
			pr.raw["system"] = systemText
		}
	case extract.RouteCompletions:
		existing, _ := pr.raw["prompt"].(string)
		pr.raw["prompt"] = systemText + "\n" + existing
	}
	return json.Marshal(pr.raw)
}

// deltaRouteFor picks the route passed to DeltaText: Anthropic content_block_delta frames
// nest their text under "delta" regardless of which request route
// produced the stream, so RouteMessages covers every `event:`-framed
// upstream response.
func deltaRouteFor(route extract.Route, eventName string) extract.Route {
	if eventName != "" {
		return extract.RouteMessages
	}
	return route
}
