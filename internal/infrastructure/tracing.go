package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/pkg/lifecycle"
)

// Tracing owns the process tracer provider.
type Tracing struct {
	provider *sdktrace.TracerProvider
	logger   *slog.Logger
}

// NewTracing installs the global tracer provider. When tracing is disabled a
// no-op provider is installed and spans cost nothing.
func NewTracing(cfg *config.TracingConfig, version, env string, logger *slog.Logger) (*Tracing, error) {
	logger = logger.With("system", "tracing")
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Tracing{logger: logger}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", version),
			attribute.String("deployment.environment", env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(provider)

	logger.Info("tracing initialized", "endpoint", cfg.Endpoint, "sample_ratio", cfg.SampleRatio)
	return &Tracing{provider: provider, logger: logger}, nil
}

// Tracer returns a named tracer from the installed provider.
func (t *Tracing) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Start flushes and stops the exporter on shutdown.
func (t *Tracing) Start(lc *lifecycle.Coordinator) {
	if t.provider == nil {
		return
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := t.provider.Shutdown(ctx); err != nil {
			t.logger.Error("tracer provider shutdown failed", "error", err)
			return
		}
		t.logger.Info("tracer provider stopped")
	})
}
