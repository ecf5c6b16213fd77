// Package obsmetrics exposes CheckStream's Prometheus metrics: request
// counts by phase/decision, pipeline and classifier latency, policy
// trigger counts, and degradation-path counts (spec §4.5, §5, §6.2).
package obsmetrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "checkstream"

var (
	// RequestsTotal counts proxied requests by phase and the action taken.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of proxied requests by phase and action",
		},
		[]string{"phase", "action"}, // action: pass, block, augment, redact, terminate, audited
	)

	// PipelineExecutionsTotal counts pipeline executions by name and outcome.
	PipelineExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_executions_total",
			Help:      "Total number of pipeline executions by pipeline name and outcome",
		},
		[]string{"pipeline", "outcome"}, // outcome: success, error, timeout
	)

	// PipelineLatencySeconds is a histogram of total pipeline execution
	// latency.
	PipelineLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_latency_seconds",
			Help:      "Pipeline execution latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"pipeline"},
	)

	// ClassifierLatencyMicroseconds is a histogram of individual classifier
	// invocation latency, in microseconds (classifier latency is frequently
	// sub-millisecond for tier A patterns, so seconds-scale buckets would
	// collapse them all into the first bucket).
	ClassifierLatencyMicroseconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_latency_us",
			Help:      "Classifier invocation latency in microseconds",
			Buckets:   []float64{50, 100, 250, 500, 1000, 5000, 25000, 100000, 500000},
		},
		[]string{"classifier", "tier"},
	)

	// PolicyTriggersTotal counts a triggered policy decision by the
	// classifier/rule responsible, for the health of the safety layer
	// independent of overall request volume.
	PolicyTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_triggers_total",
			Help:      "Total number of triggered policy decisions by classifier and label",
		},
		[]string{"classifier", "label"},
	)

	// DegradationsTotal counts fallback/emergency/synthetic decision paths
	// taken when a primary pipeline fails or times out (spec §4.5).
	DegradationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degradations_total",
			Help:      "Total number of phase degradation events by phase and path",
		},
		[]string{"phase", "path"}, // path: fallback, emergency, fail_open, fail_closed; phase "audit" uses path sink_write_failed
	)

	// StageLatencyMilliseconds is a histogram of per-phase latency, labeled
	// by phase, for the critical-path budget in spec §5.
	StageLatencyMilliseconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Phase latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"stage"}, // stage: ingress, midstream, egress
	)

	// AuditAppendsTotal is a gauge-like counter tracking the number of
	// records appended to the audit chain since startup.
	AuditAppendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_appends_total",
			Help:      "Total number of audit records appended",
		},
	)

	// ProxyRequestsTotal counts completed proxy HTTP requests by route and
	// final outcome, independent of the per-phase RequestsTotal breakdown.
	ProxyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Total number of proxy HTTP requests by route and outcome",
		},
		[]string{"route", "outcome"}, // outcome: allow, block, redact, error
	)

	// SSRFRejectionsTotal counts upstream_base_url values rejected by the
	// SSRF guard (spec §6.3), labeled by reason.
	SSRFRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ssrf_rejections_total",
			Help:      "Total number of upstream URLs rejected by the SSRF guard",
		},
		[]string{"reason"},
	)

	allCollectors = []prometheus.Collector{
		RequestsTotal,
		PipelineExecutionsTotal,
		PipelineLatencySeconds,
		ClassifierLatencyMicroseconds,
		PolicyTriggersTotal,
		DegradationsTotal,
		StageLatencyMilliseconds,
		AuditAppendsTotal,
		ProxyRequestsTotal,
		SSRFRejectionsTotal,
	}
)

// Register registers every CheckStream collector against reg. Called once
// at startup with prometheus.DefaultRegisterer (or a dedicated registry in
// tests, to avoid duplicate-registration errors across test packages).
// The first collector the registerer refuses ends the loop with its error.
func Register(reg prometheus.Registerer) error {
	for _, c := range allCollectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordDegradation records a phase's fallback to a non-primary decision
// path (spec §4.5: "every degradation path emits a structured log event
// and increments a distinct metric").
func RecordDegradation(phase, path string) {
	DegradationsTotal.WithLabelValues(phase, path).Inc()
}

// RecordPolicyTrigger records a non-clean classifier decision.
func RecordPolicyTrigger(classifierName, label string) {
	if label == "" || label == "clean" {
		return
	}
	PolicyTriggersTotal.WithLabelValues(classifierName, label).Inc()
}
