// Package telemetry wraps OpenTelemetry tracing: one span per connection
// lifetime and one per dispatched task, exported to an OTLP collector when
// configured, discarded via a no-op provider otherwise. It also offers a
// tool.execute span helper, which the executor does not call.
// Never load-bearing for correctness — purely an operational aid.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config mirrors config.OTelConfig without importing internal/config, the
// same separation the executor's AuditRecorder interface uses to avoid a
// dependency from a leaf package into a higher-level one.
type Config struct {
	Endpoint string
	Insecure bool
}

// Provider owns the tracer used across the agent and the shutdown hook
// that flushes pending spans.
type Provider struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Tracer returns the tracer to start spans from.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes and closes the exporter, if one was configured. Safe to
// call on a no-op provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Init builds a Provider for agentName. With cfg.Endpoint empty, spans are
// created against a no-op tracer provider — negligible overhead, always-on
// code path, no collector required for the server to emit spans
// unconditionally.
func Init(ctx context.Context, agentName string, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		tp := trace.NewNoopTracerProvider()
		return &Provider{tracer: tp.Tracer("smith")}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "smith"),
			attribute.String("service.instance.id", agentName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		tracer:   tp.Tracer("smith"),
		shutdown: tp.Shutdown,
	}, nil
}

// StartToolExecute opens a tool.execute span carrying tool.name. Nothing in
// the agent calls it: tools.Executor runs tools without opening a span, so
// individual tool executions are not traced.
func (p *Provider) StartToolExecute(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		attribute.String("tool.name", toolName),
	))
}

// StartConnection opens the connection span covering one controller
// session's lifetime.
func (p *Provider) StartConnection(ctx context.Context, remoteAddr string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "connection", trace.WithAttributes(
		attribute.String("connection.remote_addr", remoteAddr),
	))
}

// StartTask opens the task child span for one dispatched task id.
func (p *Provider) StartTask(ctx context.Context, taskID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "task", trace.WithAttributes(
		attribute.String("task.id", taskID),
	))
}
