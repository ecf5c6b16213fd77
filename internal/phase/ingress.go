package phase

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/obsmetrics"
	"github.com/Skelf-Research/checkstream-sub000/internal/pipeline"
)

// IngressAction is the action produced by the ingress phase (spec §4.4).
type IngressAction string

const (
	IngressBlock   IngressAction = "block"
	IngressAugment IngressAction = "augment"
	IngressPass    IngressAction = "pass"
)

// IngressResult is the ingress phase's decision translated to an action.
type IngressResult struct {
	Action   IngressAction
	Decision *pipeline.StageResult
}

// Ingress runs the configured ingress pipeline (with fallback ladder)
// against the extracted user text and maps the resulting score to an
// action per the configured safety thresholds (spec §4.4): score at or
// above safety_threshold.block blocks; at or above safety_threshold.modify
// (and below block) augments; otherwise passes.
func (e *Engine) Ingress(ctx context.Context, text string) IngressResult {
	ctx, span := tracer.Start(ctx, "checkstream.phase.ingress")
	defer span.End()

	snap := e.store.Current()
	start := time.Now()
	out := e.runPhase(ctx, "ingress", snap.Catalog.Proxy.Ingress, text)
	obsmetrics.StageLatencyMilliseconds.WithLabelValues("ingress").Observe(float64(time.Since(start).Milliseconds()))

	action := ingressActionFor(out.result, snap.Catalog.Proxy.SafetyThreshold)
	obsmetrics.RequestsTotal.WithLabelValues("ingress", string(action)).Inc()
	span.SetAttributes(
		attribute.String("checkstream.action", string(action)),
		attribute.String("checkstream.degradation_path", string(out.path)),
	)

	return IngressResult{Action: action, Decision: out.result.FinalDecision}
}

func ingressActionFor(res *pipeline.ExecutionResult, thresholds config.SafetyThreshold) IngressAction {
	if res == nil || res.FinalDecision == nil {
		return IngressPass
	}
	score := res.FinalDecision.Result.Score
	switch {
	case score >= thresholds.Block:
		return IngressBlock
	case score >= thresholds.Modify:
		return IngressAugment
	default:
		return IngressPass
	}
}
