package obsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegister_NoDuplicateCollectorPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
}

func TestRecordDegradation_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	before := testutil.ToFloat64(DegradationsTotal.WithLabelValues("ingress", "fallback"))
	RecordDegradation("ingress", "fallback")
	after := testutil.ToFloat64(DegradationsTotal.WithLabelValues("ingress", "fallback"))
	require.Equal(t, before+1, after)
}

func TestRecordPolicyTrigger_SkipsCleanLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	before := testutil.ToFloat64(PolicyTriggersTotal.WithLabelValues("toxicity", "toxic"))
	RecordPolicyTrigger("toxicity", "clean")
	RecordPolicyTrigger("toxicity", "toxic")
	after := testutil.ToFloat64(PolicyTriggersTotal.WithLabelValues("toxicity", "toxic"))
	require.Equal(t, before+1, after)
}
