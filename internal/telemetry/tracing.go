package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "home-dispatch"

// Tracer returns the tracer used by the dispatcher and adapters. Until
// SetupTracing installs a provider it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// SetupTracing installs a tracer provider that writes spans to w. The
// returned function flushes and stops it.
func SetupTracing(w io.Writer) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
