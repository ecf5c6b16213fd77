package phase

import "go.opentelemetry.io/otel"

// tracer emits one span per phase invocation (ingress/midstream/egress),
// giving the phase-ordering guarantee observable in a trace viewer without
// the guarantee itself depending on tracing being configured: with no
// SDK TracerProvider registered, otel's default no-op tracer makes these
// calls free.
var tracer = otel.Tracer("github.com/Skelf-Research/checkstream-sub000/internal/phase")
