package proxy

import (
	"bytes"
	"context"
	"net/http"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// forwardedHeaders are copied verbatim from the client request onto the
// upstream request (spec §6.1: "Authorization / x-api-key /
// anthropic-version headers are forwarded verbatim to the upstream").
var forwardedHeaders = []string{"Authorization", "X-Api-Key", "Anthropic-Version", "Content-Type"}

// upstreamClient opens upstream chat-completion connections. It is a thin
// wrapper over http.Client so it can be swapped for a fake in tests.
type upstreamClient struct {
	client *http.Client
}

func newUpstreamClient(client *http.Client) *upstreamClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &upstreamClient{client: client}
}

// Do opens the upstream connection at baseURL+path, forwarding method,
// body, and the allowlisted headers from incoming. A non-2xx response or
// transport failure is reported as ErrBackendUnavailable (spec §7).
func (u *upstreamClient) Do(ctx context.Context, baseURL, path string, body []byte, incoming http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, ctxerr.New("proxy", "upstreamClient.Do", ctxerr.ErrBackendUnavailable).WithDetails(map[string]any{"reason": err.Error()})
	}
	for _, name := range forwardedHeaders {
		if v := incoming.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, ctxerr.New("proxy", "upstreamClient.Do", ctxerr.ErrBackendUnavailable).WithDetails(map[string]any{"reason": err.Error()})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, ctxerr.New("proxy", "upstreamClient.Do", ctxerr.ErrBackendUnavailable).WithDetails(map[string]any{
			"upstream_status": resp.StatusCode,
		})
	}
	return resp, nil
}
