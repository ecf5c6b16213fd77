package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Skelf-Research/checkstream-sub000/internal/audit"
	"github.com/Skelf-Research/checkstream-sub000/internal/buffer"
	"github.com/Skelf-Research/checkstream-sub000/internal/extract"
	"github.com/Skelf-Research/checkstream-sub000/internal/obslog"
	"github.com/Skelf-Research/checkstream-sub000/internal/phase"
	"github.com/Skelf-Research/checkstream-sub000/internal/pipeline"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// handleStreaming implements §4.7 steps 5–7 for a streamed upstream
// response: consume chunks, run midstream per chunk (or on the decimation
// schedule), translate the decision into forward/replace/terminate, flush
// the resulting SSE frame, then run egress and append the audit record.
func (s *Server) handleStreaming(w http.ResponseWriter, r *http.Request, rec *audit.Record, route extract.Route, resp *http.Response, requestID string, start time.Time) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, route, requestID, start, *rec, errStreamingUnsupported())
		return
	}

	snap := s.store.Current()
	setSSEHeaders(w.Header())
	setDecisionHeaders(w.Header(), requestID, decisionAllow, "", 0)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	buf := buffer.New(bufferConfigFrom(snap.Catalog.Proxy.Streaming))
	decimator := phase.NewDecimator(snap.Catalog.Proxy.MidstreamDecimation)

	var fullText strings.Builder
	var finalAction = audit.ActionPass
	var triggeredRule string
	chunkIndex := 0
	terminated := false

	reader := newSSEReader(resp.Body)
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			obslog.Warn("proxy: upstream stream read failed", "request_id", requestID, "error", err)
			break
		}

		if string(frame.Data) == doneMarker {
			writeSSEDone(w, flusher)
			break
		}

		var payload any
		_ = json.Unmarshal(frame.Data, &payload)
		deltaText, _ := s.extractor.DeltaText(deltaRouteFor(route, frame.Event), payload)
		if deltaText == "" {
			forwardFrame(w, flusher, frame)
			continue
		}

		fullText.WriteString(deltaText)
		buf.Append(deltaText)

		outFrame := frame
		if decimator.ShouldEvaluate() {
			midOut := s.engine.Midstream(r.Context(), buf.Context())
			rec.MidstreamEvents = append(rec.MidstreamEvents, audit.MidstreamEvent{
				ChunkIndex: chunkIndex,
				Action:     string(midOut.Action),
				Decision:   decisionOrZero(midOut.Decision),
			})

			switch midOut.Action {
			case phase.MidstreamRedact:
				outFrame.Data = replaceDeltaText(route, frame.Data, redactionMarker)
				if finalAction == audit.ActionPass {
					finalAction = audit.ActionRedact
				}
				triggeredRule = classifierNameOf(midOut.Decision)
			case phase.MidstreamTerminate:
				forwardTerminate(w, flusher, route, refusalTextFor(snap, classifierNameOf(midOut.Decision)))
				finalAction = audit.ActionBlock
				triggeredRule = classifierNameOf(midOut.Decision)
				terminated = true
			case phase.MidstreamPass:
			}
		}

		if terminated {
			break
		}
		forwardFrame(w, flusher, outFrame)
		chunkIndex++
	}

	if !terminated {
		egressOut := s.engine.Egress(r.Context(), fullText.String())
		rec.EgressDecision = toPhaseDecision(egressOut.Decision)
	}

	rec.FinalAction = finalAction
	rec.TriggeredRuleID = firstNonEmpty(rec.TriggeredRuleID, triggeredRule)
	rec.FinishedAt = time.Now()
	s.appendAudit(*rec)
}

func forwardFrame(w http.ResponseWriter, flusher http.Flusher, frame sseFrame) {
	if frame.Event != "" {
		writeSSEEvent(w, flusher, frame.Event, frame.Data)
		return
	}
	writeSSEData(w, flusher, frame.Data)
}

func forwardTerminate(w http.ResponseWriter, flusher http.Flusher, route extract.Route, refusalText string) {
	for _, f := range buildTerminateFrames(route, refusalText) {
		if f.event != "" {
			writeSSEEvent(w, flusher, f.event, f.payload)
			continue
		}
		writeSSEData(w, flusher, f.payload)
	}
	writeSSEDone(w, flusher)
}

func decisionOrZero(sr *pipeline.StageResult) audit.PhaseDecision {
	d := toPhaseDecision(sr)
	if d == nil {
		return audit.PhaseDecision{}
	}
	return *d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
