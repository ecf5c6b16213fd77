package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Skelf-Research/checkstream-sub000/internal/classifier"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// Lookup resolves a classifier name to a Classifier instance. Implemented by
// the model registry (internal/registry); kept as a function type here to
// avoid an import cycle between pipeline and registry.
type Lookup func(name string) (classifier.Classifier, error)

// Executor executes Pipeline Specifications against a name->Classifier
// mapping supplied via Lookup (spec §4.3).
type Executor struct {
	lookup Lookup
}

// NewExecutor creates an Executor bound to lookup.
func NewExecutor(lookup Lookup) *Executor {
	return &Executor{lookup: lookup}
}

// Execute runs spec's stages against input in order, accumulating history
// for Sequential/Conditional stages, and returns the Pipeline Execution
// Result. A stage-level classifier failure (per §4.5's error policy) aborts
// execution and is returned as an error; callers needing graceful
// degradation do so at the phase level (internal/phase), not here.
func (e *Executor) Execute(ctx context.Context, spec Spec, input string) (ExecutionResult, error) {
	start := time.Now()
	result := ExecutionResult{PerStageResults: make([]StageResult, 0, len(spec.Stages))}

	for _, stage := range spec.Stages {
		stageCtx := ctx
		var cancel context.CancelFunc
		if stage.Timeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, time.Duration(stage.Timeout)*time.Millisecond)
		}

		sr, err := e.executeStage(stageCtx, stage, input, flattenMembers(result.PerStageResults))
		if cancel != nil {
			cancel()
		}
		if err != nil {
			return result, err
		}

		result.PerStageResults = append(result.PerStageResults, sr)
		if !sr.Skipped {
			srCopy := sr
			result.FinalDecision = &srCopy
		}
	}

	result.TotalLatencyUS = time.Since(start).Microseconds()
	return result, nil
}

func (e *Executor) executeStage(ctx context.Context, stage StageSpec, input string, prior []MemberResult) (StageResult, error) {
	switch stage.Kind {
	case KindSingle:
		return e.executeSingle(ctx, stage, input)
	case KindParallel:
		return e.executeParallel(ctx, stage, input)
	case KindSequential:
		return e.executeSequential(ctx, stage, input)
	case KindConditional:
		return e.executeConditional(ctx, stage, input, prior)
	default:
		return StageResult{}, ctxerr.New("pipeline", "executeStage", ctxerr.ErrInvalidRequest).
			WithDetails(map[string]any{"stage": stage.Name, "kind": string(stage.Kind)})
	}
}

func (e *Executor) invoke(ctx context.Context, name, input string) (classifier.Result, error) {
	c, err := e.lookup(name)
	if err != nil {
		return classifier.Result{}, err
	}
	return c.Classify(ctx, input)
}

func (e *Executor) executeSingle(ctx context.Context, stage StageSpec, input string) (StageResult, error) {
	start := time.Now()
	res, err := e.invoke(ctx, stage.Classifier, input)
	latency := time.Since(start).Microseconds()
	if err != nil {
		return StageResult{}, stageFailure(stage.Name, stage.Classifier, err)
	}
	return StageResult{
		StageName:      stage.Name,
		ClassifierName: stage.Classifier,
		Result:         res,
		StageLatencyUS: latency,
		Members:        []MemberResult{{ClassifierName: stage.Classifier, Result: res}},
	}, nil
}

// executeParallel fans out to all listed classifiers concurrently and
// reduces with the stage's aggregation strategy. Stage latency is wall
// clock from fan-out to reduction (spec §4.3). A stage with zero successful
// members fails; otherwise degradation is left to the aggregation (All,
// MaxScore "best available") per spec §5.
func (e *Executor) executeParallel(ctx context.Context, stage StageSpec, input string) (StageResult, error) {
	start := time.Now()
	members := make([]MemberResult, len(stage.Classifiers))

	var wg sync.WaitGroup
	for i, name := range stage.Classifiers {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			res, err := e.invoke(ctx, name, input)
			members[i] = MemberResult{ClassifierName: name, Result: res, Err: err}
		}(i, name)
	}
	wg.Wait()

	anyOK := false
	for _, m := range members {
		if m.Err == nil {
			anyOK = true
			break
		}
	}
	if !anyOK {
		return StageResult{}, stageFailure(stage.Name, "", fmt.Errorf("all %d classifiers failed", len(members)))
	}

	decision := aggregate(stage.Aggregation, members)
	latency := time.Since(start).Microseconds()

	return StageResult{
		StageName:      stage.Name,
		ClassifierName: decision.ClassifierName,
		Result:         decision.Result,
		StageLatencyUS: latency,
		Members:        members,
	}, nil
}

// executeSequential invokes each classifier in order; each "sees" the
// accumulated prior results only for diagnostic/history purposes (spec
// §4.3) — the text input does not change between members. The final result
// is the last classifier's result.
func (e *Executor) executeSequential(ctx context.Context, stage StageSpec, input string) (StageResult, error) {
	start := time.Now()
	members := make([]MemberResult, 0, len(stage.Classifiers))

	for _, name := range stage.Classifiers {
		res, err := e.invoke(ctx, name, input)
		if err != nil {
			return StageResult{}, stageFailure(stage.Name, name, err)
		}
		members = append(members, MemberResult{ClassifierName: name, Result: res})
	}

	last := members[len(members)-1]
	return StageResult{
		StageName:      stage.Name,
		ClassifierName: last.ClassifierName,
		Result:         last.Result,
		StageLatencyUS: time.Since(start).Microseconds(),
		Members:        members,
	}, nil
}

// executeConditional evaluates stage.Condition against prior (the flattened
// history of every earlier stage in the pipeline); if true, invokes the
// classifier as in Single. If false, the classifier is never invoked — the
// skip is recorded with near-zero latency (spec §4.3, §8.4).
func (e *Executor) executeConditional(ctx context.Context, stage StageSpec, input string, prior []MemberResult) (StageResult, error) {
	start := time.Now()
	if !evaluate(stage.Condition, prior) {
		return StageResult{
			StageName:      stage.Name,
			Skipped:        true,
			StageLatencyUS: time.Since(start).Microseconds(),
		}, nil
	}
	return e.executeSingle(ctx, stage, input)
}

func stageFailure(stageName, classifierName string, cause error) error {
	e := ctxerr.New("pipeline", "executeStage", cause).WithDetails(map[string]any{
		"stage": stageName,
	})
	if classifierName != "" {
		e.Details["classifier"] = classifierName
	}
	return e
}
