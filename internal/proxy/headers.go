package proxy

import (
	"net/http"
	"strconv"
)

// decision is the value of X-CheckStream-Decision (spec §6.1).
type decision string

const (
	decisionAllow  decision = "allow"
	decisionBlock  decision = "block"
	decisionRedact decision = "redact"
)

// setSecurityHeaders sets the fixed security headers required on every
// response (spec §4.7).
func setSecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Security-Policy", "default-src 'none'")
}

// setDecisionHeaders sets the three CheckStream decision headers (spec
// §4.7, §6.1). ruleTriggered is "none" when no rule fired.
func setDecisionHeaders(h http.Header, requestID string, d decision, ruleTriggered string, latencyMs float64) {
	if ruleTriggered == "" {
		ruleTriggered = "none"
	}
	h.Set("X-Request-Id", requestID)
	h.Set("X-CheckStream-Decision", string(d))
	h.Set("X-CheckStream-Rule-Triggered", ruleTriggered)
	h.Set("X-CheckStream-Latency-Ms", strconv.FormatFloat(latencyMs, 'f', 3, 64))
}
