// Package classifier defines the Classifier capability contract (spec §3, §4.1)
// and the two concrete classifier families: pattern-based (tier A) and
// ML-backed (tier B/C).
package classifier

import "context"

// Tier is the latency class of a classifier.
type Tier string

const (
	// TierA is sub-millisecond, deterministic, pattern-based.
	TierA Tier = "A"
	// TierB is a small ML model, typically under 5ms.
	TierB Tier = "B"
	// TierC is a larger ML model, typically under 10ms.
	TierC Tier = "C"
)

// Result is the outcome of a single classify call. Score is monotonically
// increasing with "more dangerous / more triggered".
type Result struct {
	Score     float64
	Label     string
	Tier      Tier
	LatencyUS int64
	Metadata  map[string]any
}

// Classifier is the primitive capability: given text, return a score in
// [0,1], a label, a tier tag, and latency. Implementations must be
// idempotent and pure with respect to their input, safe to invoke
// concurrently from multiple goroutines, and must not mutate shared state
// visible to callers. A Classifier is a polymorphic handle (interface) so
// alternative implementations — regex, ML, remote service for testing —
// are interchangeable (spec DESIGN NOTES).
type Classifier interface {
	// Classify scores text. Suspends on I/O or compute for ML-backed
	// implementations; pattern-based implementations return synchronously.
	// A failure is returned as an error, never silently converted to a score.
	Classify(ctx context.Context, text string) (Result, error)

	// Name returns the unique classifier name.
	Name() string

	// Tier returns the classifier's latency class.
	Tier() Tier
}
