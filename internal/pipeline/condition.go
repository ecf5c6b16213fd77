package pipeline

// evaluate decides whether a Conditional stage's classifier should be
// invoked, given the flattened list of all prior stage results (spec §4.3).
func evaluate(cond Condition, prior []MemberResult) bool {
	switch cond.Kind {
	case CondAlways:
		return true
	case CondAnyAboveThreshold:
		for _, m := range prior {
			if m.Err == nil && m.Result.Score > cond.Threshold {
				return true
			}
		}
		return false
	case CondAllAboveThreshold:
		if len(prior) == 0 {
			return false
		}
		for _, m := range prior {
			if m.Err != nil || m.Result.Score <= cond.Threshold {
				return false
			}
		}
		return true
	case CondClassifierTriggered:
		for _, m := range prior {
			if m.ClassifierName == cond.ClassifierName && m.Err == nil && m.Result.Score > 0.5 {
				return true
			}
		}
		return false
	default:
		return false
	}
}
