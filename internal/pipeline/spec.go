// Package pipeline implements the Pipeline Executor (spec §3, §4.3): given a
// Pipeline Specification and a name->Classifier mapping, it executes stages
// against an input string and returns a Pipeline Execution Result.
package pipeline

// StageKind tags the Stage Specification variant (spec §3).
type StageKind string

const (
	KindSingle      StageKind = "single"
	KindParallel    StageKind = "parallel"
	KindSequential  StageKind = "sequential"
	KindConditional StageKind = "conditional"
)

// Aggregation tags the strategy used to reduce a Parallel stage's classifier
// results to one (spec §3, §4.3).
type Aggregation string

const (
	AggAll             Aggregation = "all"
	AggMaxScore        Aggregation = "max_score"
	AggMinScore        Aggregation = "min_score"
	AggFirstPositive   Aggregation = "first_positive"
	AggUnanimous       Aggregation = "unanimous"
	AggWeightedAverage Aggregation = "weighted_average"
)

// ConditionKind tags the predicate used by a Conditional stage (spec §3, §4.3).
type ConditionKind string

const (
	CondAlways              ConditionKind = "always"
	CondAnyAboveThreshold   ConditionKind = "any_above_threshold"
	CondAllAboveThreshold   ConditionKind = "all_above_threshold"
	CondClassifierTriggered ConditionKind = "classifier_triggered"
)

// Condition is the predicate evaluated against the flattened list of all
// prior stage results (spec §4.3).
type Condition struct {
	Kind ConditionKind
	// Threshold is used by AnyAboveThreshold/AllAboveThreshold.
	Threshold float64
	// ClassifierName is used by ClassifierTriggered.
	ClassifierName string
}

// StageSpec is the tagged-variant Stage Specification (spec §3). Only the
// fields relevant to Kind are populated:
//   - Single: Classifier
//   - Parallel: Classifiers, Aggregation
//   - Sequential: Classifiers
//   - Conditional: Classifier, Condition
type StageSpec struct {
	Name        string
	Kind        StageKind
	Classifier  string   // Single, Conditional
	Classifiers []string // Parallel, Sequential
	Aggregation Aggregation
	Condition   Condition
	// Timeout bounds this stage's execution; zero means inherit the
	// pipeline-level deadline from the caller's context.
	Timeout int64 // milliseconds, 0 = no stage-specific timeout
}

// Spec is the Pipeline Specification (spec §3): an ordered list of stages
// executed against a single text input. Stages after the first see the
// accumulated stage-result history.
type Spec struct {
	Name        string
	Description string
	Stages      []StageSpec
}
