package proxy

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Skelf-Research/checkstream-sub000/internal/audit"
	"github.com/Skelf-Research/checkstream-sub000/internal/extract"
	"github.com/Skelf-Research/checkstream-sub000/internal/obslog"
	"github.com/Skelf-Research/checkstream-sub000/internal/obsmetrics"
	"github.com/Skelf-Research/checkstream-sub000/internal/phase"
	"github.com/Skelf-Research/checkstream-sub000/internal/pipeline"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// defaultMaxRequestBodyBytesFallback guards against a misconfigured
// snapshot with a zero MaxRequestBodyBytes; config.applyDefaults already
// fills this in normally, this is a last-resort floor.
const defaultMaxRequestBodyBytesFallback = 10 << 20

// handleCompletion implements the seven-step request lifecycle of spec
// §4.7 for all three chat-completion routes.
func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := audit.NewID()
	snap := s.store.Current()
	tenant := resolveTenant(snap, r.Header.Get("X-Tenant-Id"))

	setSecurityHeaders(w.Header())

	route, ok := routeForPath(r.URL.Path)
	if !ok {
		s.fail(w, extract.Route(""), requestID, start, audit.Record{ID: requestID, Tenant: tenant, StartedAt: start},
			ctxerr.New("proxy", "handleCompletion", ctxerr.ErrNotFound))
		return
	}
	rec := audit.Record{ID: requestID, Tenant: tenant, StartedAt: start}

	// Step 1: parse body (bounded size; spec §6.3).
	body, err := readBody(r, snap.Catalog.Proxy.MaxRequestBodyBytes)
	if err != nil {
		s.fail(w, route, requestID, start, rec, err)
		return
	}
	pr, err := parseRequest(route, body, s.extractor)
	if err != nil {
		s.fail(w, route, requestID, start, rec, err)
		return
	}
	rec.UpstreamModel = pr.model

	ctx := r.Context()

	// Step 2: ingress phase.
	ingressOut := s.engine.Ingress(ctx, pr.text)
	rec.IngressDecision = toPhaseDecision(ingressOut.Decision)

	if ingressOut.Action == phase.IngressBlock {
		ruleID := classifierNameOf(ingressOut.Decision)
		rec.TriggeredRuleID = ruleID
		rec.FinalAction = audit.ActionBlock
		blockErr := ctxerr.New("ingress", "Block", ctxerr.ErrPolicyBlocked).WithDetails(map[string]any{
			"message": refusalTextFor(snap, ruleID),
			"rule_id": ruleID,
		})
		s.fail(w, route, requestID, start, rec, blockErr)
		return
	}

	forwardBody := body
	if ingressOut.Action == phase.IngressAugment {
		ruleID := classifierNameOf(ingressOut.Decision)
		forwardBody, err = pr.augmentedBody(augmentTextFor(snap, ruleID))
		if err != nil {
			s.fail(w, route, requestID, start, rec, ctxerr.New("proxy", "handleCompletion", ctxerr.ErrInternal))
			return
		}
	}

	// Step 3: SSRF guard on the configured upstream.
	guard := NewSSRFGuard(snap.Catalog.Proxy.DevMode, snap.Catalog.Proxy.AllowedUpstreamHosts)
	if err := guard.CheckURL(snap.Catalog.Proxy.UpstreamBaseURL); err != nil {
		obsmetrics.SSRFRejectionsTotal.WithLabelValues(ssrfReason(err)).Inc()
		rec.FinalAction = audit.ActionBlock
		rec.TriggeredRuleID = "ssrf_guard"
		s.fail(w, route, requestID, start, rec, err)
		return
	}

	// Step 4: open the upstream connection, forwarding the (possibly
	// augmented) body and the caller's authorization header verbatim.
	resp, err := s.upstream.Do(ctx, snap.Catalog.Proxy.UpstreamBaseURL, r.URL.Path, forwardBody, r.Header)
	if err != nil {
		rec.FinalAction = audit.ActionBlock
		s.fail(w, route, requestID, start, rec, err)
		return
	}
	defer resp.Body.Close()

	if pr.stream {
		s.handleStreaming(w, r, &rec, route, resp, requestID, start)
		return
	}
	s.handleNonStreaming(w, &rec, route, resp, requestID, start)
}

// ssrfReason pulls the guard's rejection reason out of a ContextualError
// for the SSRFRejectionsTotal metric label.
func ssrfReason(err error) string {
	var cerr *ctxerr.ContextualError
	if errors.As(err, &cerr) {
		if reason, ok := cerr.Details["reason"].(string); ok {
			return reason
		}
	}
	return "unknown"
}

// readBody enforces spec §6.3's request body cap, returning an error that
// maps to HTTP 413 when exceeded.
func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBodyBytesFallback
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, ctxerr.New("proxy", "readBody", ctxerr.ErrInvalidRequest).
			WithStatusCode(http.StatusRequestEntityTooLarge).
			WithDetails(map[string]any{"reason": "request body exceeds max_request_body_bytes"})
	}
	return data, nil
}

// toPhaseDecision adapts a pipeline.StageResult into the audit package's
// PhaseDecision, or nil if no decision was produced (sr is nil, e.g. every
// stage was skipped). A decision with an empty classifier name, such as
// the degradation ladder's synthetic one, is still adapted.
func toPhaseDecision(sr *pipeline.StageResult) *audit.PhaseDecision {
	if sr == nil {
		return nil
	}
	return &audit.PhaseDecision{
		ClassifierName: sr.ClassifierName,
		Label:          sr.Result.Label,
		Score:          sr.Result.Score,
	}
}

func classifierNameOf(sr *pipeline.StageResult) string {
	if sr == nil {
		return ""
	}
	return sr.ClassifierName
}

// fail writes the §6.1 error body for a request that never produced (or
// will not produce) a normal response, sets the decision headers to
// "block", and appends the audit record. Used for every terminal error
// path that occurs before or instead of relaying an upstream response:
// unknown route, oversized/malformed body, ingress block, SSRF rejection,
// and upstream connection failure.
func (s *Server) fail(w http.ResponseWriter, route extract.Route, requestID string, start time.Time, rec audit.Record, err error) {
	rec.FinishedAt = time.Now()
	if rec.FinalAction == "" {
		rec.FinalAction = audit.ActionBlock
	}
	latencyMs := float64(rec.FinishedAt.Sub(start).Microseconds()) / 1000
	setDecisionHeaders(w.Header(), requestID, decisionBlock, rec.TriggeredRuleID, latencyMs)
	writeError(w, requestID, err)
	obsmetrics.ProxyRequestsTotal.WithLabelValues(string(route), "error").Inc()
	s.appendAudit(rec)
	obslog.Warn("proxy: request failed", "request_id", requestID, "route", string(route), "error", err)
}

// appendAudit hands rec to the audit chain; a sink write failure is
// already logged and counted by Chain itself (spec §7).
func (s *Server) appendAudit(rec audit.Record) {
	if s.chain == nil {
		return
	}
	if _, err := s.chain.Append(rec); err != nil {
		obslog.Error("proxy: failed to compute audit chain linkage", "id", rec.ID, "error", err)
	}
}
