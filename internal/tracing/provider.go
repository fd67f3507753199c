package tracing

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	mutiktracing "github.com/mutik-labs/mutik/pkg/mutik/v1/tracing"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"
)

const (
	defaultGRPCEndpoint = "localhost:4317"
	defaultHTTPEndpoint = "localhost:4318"
	defaultHTTPPath     = "/v1/traces"
	defaultTimeout      = 10 * time.Second
	defaultServiceName  = "mutik"
)

// ExporterConfig is the subset of the standard OTEL_* environment that
// selects and configures the OTLP span exporter.
type ExporterConfig struct {
	Disabled    bool
	Protocol    string
	Endpoint    string
	HTTPPath    string
	Headers     map[string]string
	Timeout     time.Duration
	Compression string
	Insecure    bool
	ServiceName string
}

// ExporterConfigFromEnv reads an ExporterConfig from OTEL_* variables,
// filling protocol-specific defaults.
func ExporterConfigFromEnv() ExporterConfig {
	cfg := ExporterConfig{
		Disabled:    strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true"),
		Protocol:    strings.ToLower(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")),
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		HTTPPath:    os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
		Headers:     parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Timeout:     parseTimeout(os.Getenv("OTEL_EXPORTER_OTLP_TIMEOUT"), defaultTimeout),
		Compression: strings.ToLower(os.Getenv("OTEL_EXPORTER_OTLP_COMPRESSION")),
		Insecure:    isInsecure(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"), os.Getenv("OTEL_EXPORTER_OTLP_TRACES_INSECURE")),
		ServiceName: os.Getenv("OTEL_SERVICE_NAME"),
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "grpc"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.HTTPPath == "" {
		cfg.HTTPPath = defaultHTTPPath
	}
	if cfg.Endpoint == "" {
		switch cfg.Protocol {
		case "grpc":
			cfg.Endpoint = defaultGRPCEndpoint
		case "http", "http/protobuf":
			cfg.Endpoint = defaultHTTPEndpoint
		}
	}
	return cfg
}

// OtelTracerProvider implements mutiktracing.TracerProvider on top of either
// the OpenTelemetry SDK or the official no-op provider.
type OtelTracerProvider struct {
	provider    trace.TracerProvider
	exporter    sdktrace.SpanExporter
	sdkProvider *sdktrace.TracerProvider
}

// NewNoOpProvider returns a provider whose tracers discard every span.
func NewNoOpProvider() (*OtelTracerProvider, error) {
	return &OtelTracerProvider{provider: noop.NewTracerProvider()}, nil
}

// NewProviderFromEnv builds a provider from ExporterConfigFromEnv. Tracing
// falls back to no-op when disabled or when the exporter cannot be built.
// The global OTel provider is left untouched.
func NewProviderFromEnv(ctx context.Context) (*OtelTracerProvider, error) {
	return NewProvider(ctx, ExporterConfigFromEnv())
}

// NewProvider builds a provider from an explicit exporter configuration.
func NewProvider(ctx context.Context, cfg ExporterConfig) (*OtelTracerProvider, error) {
	if cfg.Disabled {
		fmt.Fprintln(os.Stderr, "Info: OpenTelemetry tracing disabled via OTEL_SDK_DISABLED.")
		return NewNoOpProvider()
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)),
		resource.WithProcess(), resource.WithOS(), resource.WithHost(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to create OTel resource: %v. Using default.\n", err)
		res = resource.Default()
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to create OTLP exporter: %v. Using NoOp tracer.\n", err)
		return NewNoOpProvider()
	}

	sdkTP := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	return &OtelTracerProvider{provider: sdkTP, exporter: exporter, sdkProvider: sdkTP}, nil
}

func newExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithHeaders(cfg.Headers),
			otlptracegrpc.WithTimeout(cfg.Timeout),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}
		if cfg.Compression == "gzip" {
			opts = append(opts, otlptracegrpc.WithCompressor(gzip.Name))
		}
		return otlptracegrpc.New(ctx, opts...)

	case "http", "http/protobuf":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithURLPath(cfg.HTTPPath),
			otlptracehttp.WithHeaders(cfg.Headers),
			otlptracehttp.WithTimeout(cfg.Timeout),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if cfg.Compression == "gzip" {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.Protocol)
	}
}

// GetTracer returns a named tracer from the wrapped provider.
func (p *OtelTracerProvider) GetTracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p == nil || p.provider == nil {
		return noop.NewTracerProvider().Tracer(name, opts...)
	}
	return p.provider.Tracer(name, opts...)
}

// Shutdown flushes and stops the SDK provider and its exporter. It is a
// no-op for the no-op provider.
func (p *OtelTracerProvider) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.sdkProvider != nil {
		if err := p.sdkProvider.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("shutting down tracer provider: %w", err)
		}
	}
	if p.exporter != nil {
		if err := p.exporter.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shutting down span exporter: %w", err)
		}
	}
	return firstErr
}

// IsEffectivelyNoOp reports whether spans from this provider are discarded.
func (p *OtelTracerProvider) IsEffectivelyNoOp() bool {
	return p == nil || p.sdkProvider == nil
}

// parseHeaders converts a comma-separated key=value list into a map.
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}
	for _, pair := range strings.Split(headerStr, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		if key := strings.TrimSpace(kv[0]); key != "" {
			headers[key] = strings.TrimSpace(kv[1])
		}
	}
	return headers
}

// parseTimeout accepts integer milliseconds (the OTLP form) or a Go duration.
func parseTimeout(timeoutStr string, fallback time.Duration) time.Duration {
	if timeoutStr == "" {
		return fallback
	}
	if ms, err := strconv.ParseInt(timeoutStr, 10, 64); err == nil {
		if ms < 0 {
			return fallback
		}
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(timeoutStr); err == nil && d >= 0 {
		return d
	}
	fmt.Fprintf(os.Stderr, "Warning: Invalid OTLP timeout format '%s', using default %v\n", timeoutStr, fallback)
	return fallback
}

func isInsecure(flags ...string) bool {
	for _, flag := range flags {
		if strings.EqualFold(strings.TrimSpace(flag), "true") {
			return true
		}
	}
	return false
}

var _ mutiktracing.TracerProvider = (*OtelTracerProvider)(nil)
