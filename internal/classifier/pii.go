package classifier

// Built-in pattern-based PII classifiers, registered directly by the loader
// without going through the ML path (spec §4.6).

// piiPatterns maps a PII kind to the regex that detects it. Kept simple and
// deterministic per spec §4.1's pattern-based family.
var piiPatterns = map[string]string{
	"ssn":         `\b\d{3}-\d{2}-\d{4}\b`,
	"email":       `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
	"credit_card": `\b(?:\d[ -]*?){13,16}\b`,
	"phone":       `\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`,
}

// NewBuiltinPII creates the "pii" built-in classifier: a single
// PatternClassifier matching any of the standard PII shapes at score 0.98,
// sufficient by default to cross a typical chunk_threshold (spec Scenario C).
func NewBuiltinPII() (*PatternClassifier, error) {
	patterns := make([]string, 0, len(piiPatterns))
	for _, p := range piiPatterns {
		patterns = append(patterns, p)
	}
	return NewPatternClassifier("pii", "pii_detected", patterns, 0.98)
}
