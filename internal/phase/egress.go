package phase

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Skelf-Research/checkstream-sub000/internal/obsmetrics"
	"github.com/Skelf-Research/checkstream-sub000/internal/pipeline"
)

// EgressResult is the egress phase's decision, used only for audit and
// optional footer injection (spec §4.4) — it never gates client delivery.
type EgressResult struct {
	Decision *pipeline.StageResult
}

// Egress runs the configured egress pipeline (with fallback ladder)
// against the full accumulated response text. Egress latency is
// deliberately kept off the client-facing critical path by the caller
// (internal/proxy invokes it after the terminal SSE event has already been
// flushed); Egress itself still respects the configured pipeline timeout.
func (e *Engine) Egress(ctx context.Context, fullText string) EgressResult {
	ctx, span := tracer.Start(ctx, "checkstream.phase.egress")
	defer span.End()

	snap := e.store.Current()
	start := time.Now()
	out := e.runPhase(ctx, "egress", snap.Catalog.Proxy.Egress, fullText)
	obsmetrics.StageLatencyMilliseconds.WithLabelValues("egress").Observe(float64(time.Since(start).Milliseconds()))
	obsmetrics.RequestsTotal.WithLabelValues("egress", "audited").Inc()
	span.SetAttributes(attribute.String("checkstream.degradation_path", string(out.path)))

	return EgressResult{Decision: out.result.FinalDecision}
}
