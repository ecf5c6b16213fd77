package proxy

import (
	"io"
	"net/http"
	"time"

	"github.com/Skelf-Research/checkstream-sub000/internal/audit"
	"github.com/Skelf-Research/checkstream-sub000/internal/extract"
	"github.com/Skelf-Research/checkstream-sub000/internal/phase"
)

// handleNonStreaming implements §4.7's closing note: "Non-streaming
// requests are handled by collecting the upstream response into a single
// text, running midstream once over the full text, then egress, then
// returning one JSON body."
func (s *Server) handleNonStreaming(w http.ResponseWriter, rec *audit.Record, route extract.Route, resp *http.Response, requestID string, start time.Time) {
	snap := s.store.Current()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.fail(w, route, requestID, start, *rec, errStreamingUnsupported())
		return
	}

	text, err := s.extractor.FullResponseText(route, body)
	if err != nil {
		// Upstream returned a shape the extractor couldn't parse; relay it
		// unmodified rather than failing a request upstream already served.
		text = ""
	}

	midOut := s.engine.Midstream(resp.Request.Context(), text)
	rec.MidstreamEvents = []audit.MidstreamEvent{{
		ChunkIndex: 0,
		Action:     string(midOut.Action),
		Decision:   decisionOrZero(midOut.Decision),
	}}

	outBody := body
	finalAction := audit.ActionPass
	triggeredRule := ""

	switch midOut.Action {
	case phase.MidstreamRedact:
		triggeredRule = classifierNameOf(midOut.Decision)
		outBody = replaceResponseText(route, body, redactionMarker)
		finalAction = audit.ActionRedact
	case phase.MidstreamTerminate:
		triggeredRule = classifierNameOf(midOut.Decision)
		outBody = replaceResponseText(route, body, refusalTextFor(snap, triggeredRule))
		finalAction = audit.ActionBlock
	case phase.MidstreamPass:
	}

	egressOut := s.engine.Egress(resp.Request.Context(), text)
	rec.EgressDecision = toPhaseDecision(egressOut.Decision)
	rec.FinalAction = finalAction
	rec.TriggeredRuleID = triggeredRule
	rec.FinishedAt = time.Now()

	latencyMs := float64(rec.FinishedAt.Sub(start).Microseconds()) / 1000
	d := decisionAllow
	if finalAction == audit.ActionBlock {
		d = decisionBlock
	} else if finalAction == audit.ActionRedact {
		d = decisionRedact
	}
	setDecisionHeaders(w.Header(), requestID, d, triggeredRule, latencyMs)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(outBody)

	s.appendAudit(*rec)
}
