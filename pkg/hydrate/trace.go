package hydrate

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// defaultTracerName identifies coordinator spans with the global tracer
// provider. Configure the provider with otel.SetTracerProvider before
// constructing coordinators; with none set, spans are no-ops.
const defaultTracerName = "replay"

// tracerOrDefault returns t, or the global provider's tracer when nil.
func tracerOrDefault(t trace.Tracer) trace.Tracer {
	if t != nil {
		return t
	}
	return otel.Tracer(defaultTracerName)
}
