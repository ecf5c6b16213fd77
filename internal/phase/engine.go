// Package phase implements the Phase Engine (spec §4.4): it wires the
// ingress, midstream, and egress pipelines to the proxy lifecycle, and
// implements the fallback-and-degradation ladder (spec §4.5) that keeps a
// single misbehaving pipeline or classifier from taking the proxy down.
package phase

import (
	"context"
	"time"

	"github.com/Skelf-Research/checkstream-sub000/internal/classifier"
	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/obslog"
	"github.com/Skelf-Research/checkstream-sub000/internal/obsmetrics"
	"github.com/Skelf-Research/checkstream-sub000/internal/pipeline"
)

// degradationPath names which rung of the fallback ladder produced a
// phase's decision (spec §4.5).
type degradationPath string

const (
	pathPrimary   degradationPath = "primary"
	pathFallback  degradationPath = "fallback"
	pathEmergency degradationPath = "emergency"
	pathFailOpen  degradationPath = "fail_open"
	pathFailClose degradationPath = "fail_closed"
)

// Engine runs a phase's pipeline (with fallback) against input text and
// returns the aggregated decision.
type Engine struct {
	store     *config.Store
	lookup    pipeline.Lookup
	executor  *pipeline.Executor
	emergency classifier.Classifier // optional tier-A-only last resort, spec §4.5
}

// New builds an Engine. emergency may be nil if the deployment has no
// configured emergency classifier, in which case the ladder falls straight
// through to the fail-open/fail-closed synthetic decision.
func New(store *config.Store, lookup pipeline.Lookup, emergency classifier.Classifier) *Engine {
	return &Engine{
		store:     store,
		lookup:    lookup,
		executor:  pipeline.NewExecutor(lookup),
		emergency: emergency,
	}
}

// outcome bundles a phase's resolved decision with the ladder path that
// produced it, for logging, metrics, and audit.
type outcome struct {
	result *pipeline.ExecutionResult
	path   degradationPath
}

// runPhase executes pp.Primary, falling back through pp.Fallback, the
// emergency classifier, and finally a synthetic fail-open/fail-closed
// decision, in that order (spec §4.5). phaseName is used only for logging
// and metrics labels.
func (e *Engine) runPhase(ctx context.Context, phaseName string, pp config.PhasePipelines, input string) outcome {
	snap := e.store.Current()
	timeout := time.Duration(snap.Catalog.Proxy.PipelineTimeoutMS) * time.Millisecond

	if res, ok := e.tryPipeline(ctx, phaseName, pp.Primary, input, timeout); ok {
		return outcome{result: res, path: pathPrimary}
	}

	if pp.Fallback != "" {
		if res, ok := e.tryPipeline(ctx, phaseName, pp.Fallback, input, timeout); ok {
			obsmetrics.RecordDegradation(phaseName, string(pathFallback))
			obslog.Warn("phase: primary pipeline failed, fallback succeeded", "phase", phaseName, "pipeline", pp.Fallback)
			return outcome{result: res, path: pathFallback}
		}
	}

	if e.emergency != nil {
		if res, ok := e.tryEmergency(ctx, input); ok {
			obsmetrics.RecordDegradation(phaseName, string(pathEmergency))
			obslog.Warn("phase: primary and fallback failed, emergency classifier succeeded", "phase", phaseName)
			return outcome{result: res, path: pathEmergency}
		}
	}

	path := pathFailClose
	score := 1.0
	if snap.Catalog.Proxy.FailOpen {
		path = pathFailOpen
		score = 0.0
	}
	obsmetrics.RecordDegradation(phaseName, string(path))
	obslog.Error("phase: all pipelines and emergency classifier failed, using synthetic decision",
		"phase", phaseName, "fail_open", snap.Catalog.Proxy.FailOpen)

	return outcome{result: syntheticDecision(score), path: path}
}

func (e *Engine) tryPipeline(ctx context.Context, phaseName, pipelineName, input string, timeout time.Duration) (*pipeline.ExecutionResult, bool) {
	if pipelineName == "" {
		return nil, false
	}
	snap := e.store.Current()
	entry, ok := snap.Catalog.Pipelines[pipelineName]
	if !ok {
		obslog.Error("phase: referenced pipeline missing from snapshot", "phase", phaseName, "pipeline", pipelineName)
		return nil, false
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := e.executor.Execute(pctx, entry.ToPipelineSpec(pipelineName), input)
	elapsed := time.Since(start)
	obsmetrics.PipelineLatencySeconds.WithLabelValues(pipelineName).Observe(elapsed.Seconds())

	if err != nil {
		status := "error"
		if pctx.Err() != nil {
			status = "timeout"
		}
		obsmetrics.PipelineExecutionsTotal.WithLabelValues(pipelineName, status).Inc()
		obslog.Warn("phase: pipeline execution failed", "phase", phaseName, "pipeline", pipelineName, "error", err)
		return nil, false
	}

	obsmetrics.PipelineExecutionsTotal.WithLabelValues(pipelineName, "success").Inc()
	if res.FinalDecision != nil {
		obsmetrics.RecordPolicyTrigger(res.FinalDecision.ClassifierName, res.FinalDecision.Result.Label)
	}
	return &res, true
}

func (e *Engine) tryEmergency(ctx context.Context, input string) (*pipeline.ExecutionResult, bool) {
	res, err := e.emergency.Classify(ctx, input)
	if err != nil {
		return nil, false
	}
	return &pipeline.ExecutionResult{
		FinalDecision: &pipeline.StageResult{
			StageName:      "emergency",
			ClassifierName: e.emergency.Name(),
			Result:         res,
		},
	}, true
}

// syntheticDecision builds the fabricated decision used when every real
// evaluation path has failed (spec §4.5).
func syntheticDecision(score float64) *pipeline.ExecutionResult {
	label := "synthetic_pass"
	if score > 0 {
		label = "synthetic_block"
	}
	return &pipeline.ExecutionResult{
		FinalDecision: &pipeline.StageResult{
			StageName:      "degraded",
			ClassifierName: "",
			Result:         classifier.Result{Score: score, Label: label},
		},
	}
}
