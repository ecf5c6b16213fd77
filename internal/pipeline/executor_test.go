package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/Skelf-Research/checkstream-sub000/internal/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClassifier is a deterministic test double that also counts invocations,
// used to verify laziness (spec §8.4) and determinism (spec §8.3).
type fakeClassifier struct {
	name  string
	tier  classifier.Tier
	score float64
	label string
	err   error
	calls int32
}

func (f *fakeClassifier) Name() string          { return f.name }
func (f *fakeClassifier) Tier() classifier.Tier { return f.tier }
func (f *fakeClassifier) Classify(_ context.Context, _ string) (classifier.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return classifier.Result{}, f.err
	}
	return classifier.Result{Score: f.score, Label: f.label, Tier: f.tier}, nil
}

func lookupFrom(classifiers ...*fakeClassifier) Lookup {
	m := make(map[string]*fakeClassifier, len(classifiers))
	for _, c := range classifiers {
		m[c.name] = c
	}
	return func(name string) (classifier.Classifier, error) {
		c, ok := m[name]
		if !ok {
			return nil, fmt.Errorf("unknown classifier %q", name)
		}
		return c, nil
	}
}

func TestExecute_Single(t *testing.T) {
	toxic := &fakeClassifier{name: "toxicity", tier: classifier.TierA, score: 0.2, label: "clean"}
	exec := NewExecutor(lookupFrom(toxic))

	spec := Spec{Name: "basic-safety", Stages: []StageSpec{
		{Name: "toxicity_check", Kind: KindSingle, Classifier: "toxicity"},
	}}

	res, err := exec.Execute(context.Background(), spec, "hello")
	require.NoError(t, err)
	require.NotNil(t, res.FinalDecision)
	assert.Equal(t, 0.2, res.FinalDecision.Result.Score)
}

func TestExecute_Parallel_MaxScore(t *testing.T) {
	toxicity := &fakeClassifier{name: "toxicity", score: 0.3}
	pii := &fakeClassifier{name: "pii", score: 0.9}
	injection := &fakeClassifier{name: "prompt_injection", score: 0.1}
	exec := NewExecutor(lookupFrom(toxicity, pii, injection))

	spec := Spec{Name: "quick-scan", Stages: []StageSpec{
		{
			Name:        "scan",
			Kind:        KindParallel,
			Classifiers: []string{"toxicity", "pii", "prompt_injection"},
			Aggregation: AggMaxScore,
		},
	}}

	res, err := exec.Execute(context.Background(), spec, "text")
	require.NoError(t, err)
	require.NotNil(t, res.FinalDecision)
	assert.Equal(t, "pii", res.FinalDecision.ClassifierName)
	assert.Equal(t, 0.9, res.FinalDecision.Result.Score)
}

func TestExecute_Parallel_PartialFailureMaxScoreSurvives(t *testing.T) {
	ok := &fakeClassifier{name: "ok", score: 0.5}
	broken := &fakeClassifier{name: "broken", err: fmt.Errorf("boom")}
	exec := NewExecutor(lookupFrom(ok, broken))

	spec := Spec{Stages: []StageSpec{
		{Name: "scan", Kind: KindParallel, Classifiers: []string{"ok", "broken"}, Aggregation: AggMaxScore},
	}}

	res, err := exec.Execute(context.Background(), spec, "text")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.FinalDecision.ClassifierName)
}

func TestExecute_Parallel_AllFail(t *testing.T) {
	a := &fakeClassifier{name: "a", err: fmt.Errorf("boom")}
	b := &fakeClassifier{name: "b", err: fmt.Errorf("boom")}
	exec := NewExecutor(lookupFrom(a, b))

	spec := Spec{Stages: []StageSpec{
		{Name: "scan", Kind: KindParallel, Classifiers: []string{"a", "b"}, Aggregation: AggMaxScore},
	}}

	_, err := exec.Execute(context.Background(), spec, "text")
	require.Error(t, err)
}

func TestExecute_Sequential_LastWins(t *testing.T) {
	first := &fakeClassifier{name: "first", score: 0.2}
	second := &fakeClassifier{name: "second", score: 0.8}
	exec := NewExecutor(lookupFrom(first, second))

	spec := Spec{Stages: []StageSpec{
		{Name: "seq", Kind: KindSequential, Classifiers: []string{"first", "second"}},
	}}

	res, err := exec.Execute(context.Background(), spec, "text")
	require.NoError(t, err)
	assert.Equal(t, "second", res.FinalDecision.ClassifierName)
	assert.Equal(t, 0.8, res.FinalDecision.Result.Score)
}

func TestExecute_Conditional_Lazy(t *testing.T) {
	fast := &fakeClassifier{name: "toxicity_fast", score: 0.05}
	full := &fakeClassifier{name: "toxicity_full", score: 0.9}
	exec := NewExecutor(lookupFrom(fast, full))

	spec := Spec{Stages: []StageSpec{
		{Name: "fast", Kind: KindSingle, Classifier: "toxicity_fast"},
		{
			Name:       "escalate",
			Kind:       KindConditional,
			Classifier: "toxicity_full",
			Condition:  Condition{Kind: CondAnyAboveThreshold, Threshold: 0.3},
		},
	}}

	res, err := exec.Execute(context.Background(), spec, "good morning")
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&full.calls), "conditional classifier must not be invoked when the condition is false")
	// final decision is the last non-skipped stage: the fast stage.
	assert.Equal(t, "toxicity_fast", res.FinalDecision.ClassifierName)
	require.Len(t, res.PerStageResults, 2)
	assert.True(t, res.PerStageResults[1].Skipped)
}

func TestExecute_Conditional_Escalates(t *testing.T) {
	fast := &fakeClassifier{name: "toxicity_fast", score: 0.6}
	full := &fakeClassifier{name: "toxicity_full", score: 0.9}
	exec := NewExecutor(lookupFrom(fast, full))

	spec := Spec{Stages: []StageSpec{
		{Name: "fast", Kind: KindSingle, Classifier: "toxicity_fast"},
		{
			Name:       "escalate",
			Kind:       KindConditional,
			Classifier: "toxicity_full",
			Condition:  Condition{Kind: CondAnyAboveThreshold, Threshold: 0.3},
		},
	}}

	res, err := exec.Execute(context.Background(), spec, "you are an idiot")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&full.calls))
	assert.Equal(t, "toxicity_full", res.FinalDecision.ClassifierName)
	assert.Equal(t, 0.9, res.FinalDecision.Result.Score)
}

func TestAggregate_FirstPositive_DeclaredOrderNotCompletionOrder(t *testing.T) {
	members := []MemberResult{
		{ClassifierName: "early", Result: classifier.Result{Score: 0.6}},
		{ClassifierName: "later", Result: classifier.Result{Score: 0.95}},
	}
	decision := aggregate(AggFirstPositive, members)
	assert.Equal(t, "early", decision.ClassifierName, "first_positive must use declared order, not score magnitude")
}

func TestAggregate_Unanimous_Consensus(t *testing.T) {
	members := []MemberResult{
		{ClassifierName: "a", Result: classifier.Result{Score: 0.6}},
		{ClassifierName: "b", Result: classifier.Result{Score: 0.8}},
	}
	decision := aggregate(AggUnanimous, members)
	assert.Equal(t, "b", decision.ClassifierName) // consensus above 0.5 -> max score
}

func TestAggregate_Unanimous_Disagreement(t *testing.T) {
	members := []MemberResult{
		{ClassifierName: "a", Result: classifier.Result{Score: 0.6}},
		{ClassifierName: "b", Result: classifier.Result{Score: 0.2}},
	}
	decision := aggregate(AggUnanimous, members)
	assert.Equal(t, "disagreement", decision.Result.Label)
	assert.Equal(t, 0.2, decision.Result.Score)
}

func TestAggregate_WeightedAverage(t *testing.T) {
	members := []MemberResult{
		{ClassifierName: "a", Result: classifier.Result{Score: 0.4, Label: "x"}},
		{ClassifierName: "b", Result: classifier.Result{Score: 0.8, Label: "x"}},
	}
	decision := aggregate(AggWeightedAverage, members)
	assert.InDelta(t, 0.6, decision.Result.Score, 0.0001)
	assert.Equal(t, "x", decision.Result.Label)
}

func TestExecute_UnknownStageKind(t *testing.T) {
	exec := NewExecutor(lookupFrom())
	spec := Spec{Stages: []StageSpec{{Name: "bad", Kind: "nonsense"}}}
	_, err := exec.Execute(context.Background(), spec, "x")
	require.Error(t, err)
}
