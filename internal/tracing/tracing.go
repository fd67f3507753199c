package tracing

import (
	"fmt"

	mutiktracing "github.com/mutik-labs/mutik/pkg/mutik/v1/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name stores use for their spans.
const TracerName = "github.com/mutik-labs/mutik"

// Span attribute keys.
const (
	AttrStoreName     = attribute.Key("mutik.store.name")
	AttrStoreVersion  = attribute.Key("mutik.store.version")
	AttrStoreOp       = attribute.Key("mutik.store.op")
	AttrChanged       = attribute.Key("mutik.mutation.changed")
	AttrListenerCount = attribute.Key("mutik.store.listeners")
	AttrScenario      = attribute.Key("mutik.scenario.name")
	AttrStepIndex     = attribute.Key("mutik.step.index")
	AttrStepAction    = attribute.Key("mutik.step.action")
)

// GetTracer returns the store tracer from tp, or from the global OTel
// provider when tp is nil.
func GetTracer(tp mutiktracing.TracerProvider) oteltrace.Tracer {
	if tp == nil {
		return otel.Tracer(TracerName)
	}
	return tp.GetTracer(TracerName)
}

// RecordError records err on span and marks the span failed.
func RecordError(span oteltrace.Span, err error) {
	if err == nil || span == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err, oteltrace.WithStackTrace(true))
	span.SetStatus(codes.Error, err.Error())
}

// RecordPanic records a recovered panic value on span.
func RecordPanic(span oteltrace.Span, recovered interface{}) {
	if recovered == nil || span == nil || !span.IsRecording() {
		return
	}
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", recovered)
	}
	RecordError(span, err)
}
