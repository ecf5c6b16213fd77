package pipeline

import "github.com/Skelf-Research/checkstream-sub000/internal/classifier"

// StageResult is one stage's contribution to a Pipeline Execution Result
// (spec §3): the stage's name, the classifier that produced the decision
// (empty for a skipped Conditional stage or a WeightedAverage-aggregated
// Parallel stage, whose synthetic decision belongs to no single
// classifier), its result, and the wall clock the stage took.
type StageResult struct {
	StageName      string
	ClassifierName string
	Result         classifier.Result
	StageLatencyUS int64
	// Skipped is true for a Conditional stage whose condition evaluated to
	// false; Result is the zero value in that case.
	Skipped bool
	// Members holds every individual classifier result produced by a
	// Parallel or Sequential stage, in declared order, for diagnostics and
	// for Condition evaluation over "prior stage results" (spec §4.3).
	Members []MemberResult
}

// MemberResult is one classifier's contribution within a Parallel or
// Sequential stage.
type MemberResult struct {
	ClassifierName string
	Result         classifier.Result
	Err            error
}

// ExecutionResult is the Pipeline Execution Result (spec §3).
type ExecutionResult struct {
	PerStageResults []StageResult
	TotalLatencyUS  int64
	// FinalDecision is the aggregated result of the last stage that
	// produced one; nil if every stage was skipped.
	FinalDecision *StageResult
}

// flattenMembers returns every MemberResult across every stage executed so
// far, in stage order then declared member order, for Condition evaluation
// (spec §4.3: "evaluated over the flattened list of all prior stage results").
func flattenMembers(stages []StageResult) []MemberResult {
	var all []MemberResult
	for _, s := range stages {
		if s.Skipped {
			continue
		}
		if len(s.Members) > 0 {
			all = append(all, s.Members...)
			continue
		}
		all = append(all, MemberResult{ClassifierName: s.ClassifierName, Result: s.Result})
	}
	return all
}
