package phase

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/obsmetrics"
	"github.com/Skelf-Research/checkstream-sub000/internal/pipeline"
)

// MidstreamAction is the action produced by the midstream phase for one
// chunk (spec §4.4).
type MidstreamAction string

const (
	MidstreamRedact    MidstreamAction = "redact"
	MidstreamTerminate MidstreamAction = "terminate"
	MidstreamPass      MidstreamAction = "pass"
)

// MidstreamResult is the midstream phase's decision translated to an
// action for the chunk that triggered evaluation.
type MidstreamResult struct {
	Action   MidstreamAction
	Decision *pipeline.StageResult
}

// Decimator decides, per chunk index, whether the midstream phase should
// actually run (spec §4.4: "invoked either per chunk or on a decimation
// schedule"). A decimation of 0 or 1 evaluates every chunk.
type Decimator struct {
	every int
	count int
}

// NewDecimator builds a Decimator from the configured midstream_decimation
// value.
func NewDecimator(every int) *Decimator {
	if every < 1 {
		every = 1
	}
	return &Decimator{every: every}
}

// ShouldEvaluate reports whether the next chunk should be evaluated and
// advances the internal counter. Skipped chunks are still forwarded
// unchanged by the caller (spec §4.4).
func (d *Decimator) ShouldEvaluate() bool {
	d.count++
	if d.count >= d.every {
		d.count = 0
		return true
	}
	return false
}

// Midstream runs the configured midstream pipeline (with fallback ladder)
// against the buffer's current context text and maps the resulting score
// to an action per chunk_threshold/hard_stop_threshold (spec §4.4).
func (e *Engine) Midstream(ctx context.Context, bufferContext string) MidstreamResult {
	ctx, span := tracer.Start(ctx, "checkstream.phase.midstream")
	defer span.End()

	snap := e.store.Current()
	start := time.Now()
	out := e.runPhase(ctx, "midstream", snap.Catalog.Proxy.Midstream, bufferContext)
	obsmetrics.StageLatencyMilliseconds.WithLabelValues("midstream").Observe(float64(time.Since(start).Milliseconds()))

	action := midstreamActionFor(out.result, snap.Catalog.Proxy)
	obsmetrics.RequestsTotal.WithLabelValues("midstream", string(action)).Inc()
	span.SetAttributes(
		attribute.String("checkstream.action", string(action)),
		attribute.String("checkstream.degradation_path", string(out.path)),
	)

	return MidstreamResult{Action: action, Decision: out.result.FinalDecision}
}

func midstreamActionFor(res *pipeline.ExecutionResult, proxyCfg config.ProxyConfig) MidstreamAction {
	if res == nil || res.FinalDecision == nil {
		return MidstreamPass
	}
	score := res.FinalDecision.Result.Score
	if proxyCfg.HardStopThreshold != nil && score >= *proxyCfg.HardStopThreshold {
		return MidstreamTerminate
	}
	if score >= proxyCfg.ChunkThreshold {
		return MidstreamRedact
	}
	return MidstreamPass
}
