package classifier

import (
	"context"
	"regexp"
	"time"
)

// PatternClassifier is a tier-A classifier backed by one or more compiled
// regular expressions. It is deterministic and never blocks, matching the
// contract in spec §4.1. Grounded on the teacher's banned-words guardrail
// hook, generalized from a fixed word list to arbitrary named patterns with
// one configurable score for the whole classifier.
type PatternClassifier struct {
	name     string
	label    string
	patterns []*regexp.Regexp
	// score is the value reported when any pattern matches; a classifier
	// that needs graded severity should register multiple PatternClassifiers
	// composed in a pipeline (spec §4.3 Parallel/MaxScore).
	score float64
}

var _ Classifier = (*PatternClassifier)(nil)

// NewPatternClassifier compiles patterns (already-valid regexp source
// strings) into a named tier-A classifier. label is reported on match;
// score is the fixed score reported on match (default 1.0 if zero).
func NewPatternClassifier(name, label string, patterns []string, score float64) (*PatternClassifier, error) {
	if score == 0 {
		score = 1.0
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return &PatternClassifier{name: name, label: label, patterns: compiled, score: score}, nil
}

// NewWordListClassifier builds a word-boundary, case-insensitive pattern
// classifier from a plain word list — the built-in "banned words" shape.
func NewWordListClassifier(name string, words []string) *PatternClassifier {
	patterns := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return &PatternClassifier{name: name, label: "banned_word", patterns: patterns, score: 1.0}
}

// Name returns the classifier's unique name.
func (p *PatternClassifier) Name() string { return p.name }

// Tier reports tier A.
func (p *PatternClassifier) Tier() Tier { return TierA }

// Classify runs every compiled pattern against text and returns the
// configured score/label on first match, or a zero score otherwise.
func (p *PatternClassifier) Classify(_ context.Context, text string) (Result, error) {
	start := time.Now()
	for _, re := range p.patterns {
		if re.MatchString(text) {
			return Result{
				Score:     p.score,
				Label:     p.label,
				Tier:      TierA,
				LatencyUS: time.Since(start).Microseconds(),
			}, nil
		}
	}
	return Result{
		Score:     0,
		Label:     "clean",
		Tier:      TierA,
		LatencyUS: time.Since(start).Microseconds(),
	}, nil
}
