// Package observability wires OpenTelemetry trace export into Genkit.
//
// Spans are sent to a local collector agent over OTLP HTTP (default
// localhost:4318). The agent buffers, authenticates, and forwards to the
// tracing backend, so the application never needs backend credentials.
//
// Tracing is best-effort: if the exporter cannot be created, the pipeline
// runs without it rather than failing startup.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultEndpoint is the default collector OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the collector OTLP HTTP endpoint (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment tag (dev, staging, prod)
	Environment string
	// ServiceName is the service name reported on spans
	ServiceName string
}

// Setup registers an OTLP exporter with Genkit's TracerProvider.
//
// Returns a shutdown function that flushes pending spans. If Endpoint is
// empty, DefaultEndpoint is used.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Genkit's TracerProvider reads the service identity from the OTEL
	// environment variables.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local agent, no TLS
	)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
