package telemetry

import (
	"context"

	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Setup installs a global OTLP/HTTP tracer provider when an endpoint is
// configured. Without one it returns a no-op shutdown and leaves the global
// provider untouched.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// ProvideTracerProvider hands components the global provider after Setup ran.
func ProvideTracerProvider(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (trace.TracerProvider, error) {
	shutdown, err := Setup(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	if cfg.Telemetry.Endpoint != "" {
		logger.Info("tracing enabled", zap.String("endpoint", cfg.Telemetry.Endpoint))
	}

	lc.Append(fx.Hook{OnStop: shutdown})

	return otel.GetTracerProvider(), nil
}

var Module = fx.Options(
	fx.Provide(ProvideTracerProvider),
)
