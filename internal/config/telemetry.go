package config

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SetupTelemetry installs an OTLP/HTTP trace exporter when telemetry is
// enabled. The returned function flushes and stops it.
func SetupTelemetry(ctx context.Context, cfg *Config) (func(), error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.GetTelemetryEnabled() {
		return func() {}, nil
	}
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return func() {}, err
	}
	res, rerr := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.GetServiceName()),
		),
	)
	if rerr != nil {
		return func() {}, rerr
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	slog.Info("Telemetry enabled", "service", cfg.GetServiceName())
	return func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to shut down tracer provider", "error", err)
		}
	}, nil
}
