package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TracerProvider defines the interface for accessing the tracer provider used
// by stores. It lets applications hand mutik their existing OpenTelemetry
// setup or provide a custom implementation.
type TracerProvider interface {
	// GetTracer returns a Tracer instance with the specified name and options.
	GetTracer(name string, opts ...trace.TracerOption) trace.Tracer

	// Shutdown flushes buffered spans and releases exporter resources.
	// Providers without an exporter return nil.
	Shutdown(ctx context.Context) error
}
