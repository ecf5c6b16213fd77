// Package extract pulls the user-facing text out of OpenAI- and
// Anthropic-shaped chat-completion request and response bodies, using
// configurable JMESPath expressions instead of hand-written type
// switches per provider shape (SPEC_FULL.md §11).
package extract

import (
	"encoding/json"
	"strings"

	"github.com/jmespath/go-jmespath"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// Route names one request-body shape the proxy accepts (spec §6.1).
type Route string

const (
	RouteChatCompletions Route = "chat_completions" // OpenAI /v1/chat/completions
	RouteMessages        Route = "messages"         // Anthropic /v1/messages
	RouteCompletions     Route = "completions"      // legacy /v1/completions
)

// defaultExpressions give each route a JMESPath expression that returns
// every user-authored text fragment as a list of strings. They match the
// shapes named in spec §6.1 and are deliberately permissive (missing
// fields evaluate to null/empty rather than erroring).
var defaultExpressions = map[Route]string{
	RouteChatCompletions: `messages[?role=='user'].content`,
	RouteMessages:        `messages[?role=='user'].content`,
	RouteCompletions:     `[prompt]`,
}

// deltaExpressions extract the incremental text of one streamed SSE
// frame (spec §4.7 step 5, "extract its text"). OpenAI-style frames
// nest the delta under choices[0]; Anthropic-style content_block_delta
// frames carry it directly under delta.
var deltaExpressions = map[Route]string{
	RouteChatCompletions: `choices[0].delta.content`,
	RouteMessages:        `delta.text`,
	RouteCompletions:     `choices[0].text`,
}

// responseExpressions extract the full assistant text from a
// non-streaming upstream response body (spec §4.7, "Non-streaming
// requests... collecting the upstream response into a single text").
var responseExpressions = map[Route]string{
	RouteChatCompletions: `[choices[0].message.content]`,
	RouteMessages:        `content`,
	RouteCompletions:     `[choices[0].text]`,
}

// Extractor extracts user text from a JSON request body for a given
// route, using a compiled JMESPath expression. The expression for a route
// can be overridden via WithExpression to support non-standard body
// shapes without a code change.
type Extractor struct {
	compiled         map[Route]*jmespath.JMESPath
	deltaCompiled    map[Route]*jmespath.JMESPath
	responseCompiled map[Route]*jmespath.JMESPath
}

// New builds an Extractor with the default expression for every known
// route, compiled once up front so UserText, DeltaText and
// FullResponseText never pay parse cost per request.
func New() (*Extractor, error) {
	e := &Extractor{
		compiled:         make(map[Route]*jmespath.JMESPath, len(defaultExpressions)),
		deltaCompiled:    make(map[Route]*jmespath.JMESPath, len(deltaExpressions)),
		responseCompiled: make(map[Route]*jmespath.JMESPath, len(responseExpressions)),
	}
	for route, expr := range defaultExpressions {
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, ctxerr.New("extract", "New", err)
		}
		e.compiled[route] = compiled
	}
	for route, expr := range deltaExpressions {
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, ctxerr.New("extract", "New", err)
		}
		e.deltaCompiled[route] = compiled
	}
	for route, expr := range responseExpressions {
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, ctxerr.New("extract", "New", err)
		}
		e.responseCompiled[route] = compiled
	}
	return e, nil
}

// WithExpression overrides the JMESPath expression used for route.
func (e *Extractor) WithExpression(route Route, expression string) error {
	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return ctxerr.New("extract", "WithExpression", err).WithDetails(map[string]any{
			"route": string(route), "expression": expression,
		})
	}
	e.compiled[route] = compiled
	return nil
}

// UserText extracts and joins every user-authored text fragment found in
// body for route. Anthropic content blocks (`[{"type":"text","text":...}]`)
// and plain string content are both handled: non-string matches are
// flattened by extracting their "text" field when present.
func (e *Extractor) UserText(route Route, body []byte) (string, error) {
	compiled, ok := e.compiled[route]
	if !ok {
		return "", ctxerr.New("extract", "UserText", ErrUnknownRoute).WithDetails(map[string]any{"route": string(route)})
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", ctxerr.New("extract", "UserText", err)
	}

	result, err := compiled.Search(data)
	if err != nil {
		return "", ctxerr.New("extract", "UserText", err)
	}

	fragments := flatten(result)
	return strings.Join(fragments, "\n"), nil
}

// DeltaText extracts the incremental text carried by one streamed SSE
// frame's decoded JSON payload for route. A frame with no textual delta
// (e.g. a role-only OpenAI delta, or an Anthropic message_start event)
// returns an empty string and no error.
func (e *Extractor) DeltaText(route Route, payload any) (string, error) {
	compiled, ok := e.deltaCompiled[route]
	if !ok {
		return "", ctxerr.New("extract", "DeltaText", ErrUnknownRoute).WithDetails(map[string]any{"route": string(route)})
	}
	result, err := compiled.Search(payload)
	if err != nil {
		return "", ctxerr.New("extract", "DeltaText", err)
	}
	text, _ := result.(string)
	return text, nil
}

// FullResponseText extracts the complete assistant text from a
// non-streaming upstream response body for route (spec §4.7: "collecting
// the upstream response into a single text").
func (e *Extractor) FullResponseText(route Route, body []byte) (string, error) {
	compiled, ok := e.responseCompiled[route]
	if !ok {
		return "", ctxerr.New("extract", "FullResponseText", ErrUnknownRoute).WithDetails(map[string]any{"route": string(route)})
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", ctxerr.New("extract", "FullResponseText", err)
	}

	result, err := compiled.Search(data)
	if err != nil {
		return "", ctxerr.New("extract", "FullResponseText", err)
	}

	fragments := flatten(result)
	return strings.Join(fragments, "\n"), nil
}

// flatten walks a JMESPath result (a list of strings, content blocks, or
// nested lists of either) and collects every string it can find.
func flatten(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, flatten(item)...)
		}
		return out
	case map[string]any:
		if text, ok := val["text"].(string); ok {
			return []string{text}
		}
		return nil
	default:
		return nil
	}
}
