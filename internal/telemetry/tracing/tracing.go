// Package tracing wraps the OpenTelemetry SDK in a small facade so the rest
// of the codebase depends on a narrow interface instead of the otel API
// directly (the teacher's engine/internal/telemetry/tracing carries the
// same shape, built on a hand-rolled generator there; here the generator is
// the real otel SDK since every check execution is itself a unit of work
// worth tracing, not just an internal crawl stage).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts one span per check execution.
type Tracer interface {
	StartCheckSpan(ctx context.Context, checkID string) (context.Context, Span)
}

// Span is the narrow span contract the rest of the codebase consumes.
type Span interface {
	End()
	TraceID() string
}

type otelTracer struct {
	tracer trace.Tracer
}

type otelSpan struct {
	span trace.Span
}

// New builds a process-wide tracer backed by an always-sampling OTel
// TracerProvider. There is no configured exporter: this spec has no
// external tracing backend to ship to (§1 scopes metrics/log export out of
// core), so spans exist only to mint stable, correlatable trace ids for
// CheckResult.trace_id and for log correlation (internal/telemetry/logging).
func New(serviceName string) Tracer {
	res, _ := resource.Merge(resource.Default(), resource.NewSchemaless(attribute.String("service.name", serviceName)))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &otelTracer{tracer: tp.Tracer("veris-sentinel")}
}

func (t *otelTracer) StartCheckSpan(ctx context.Context, checkID string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "check.run", trace.WithAttributes(attribute.String("check.id", checkID)))
	return ctx, &otelSpan{span: span}
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) TraceID() string {
	sc := s.span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// ExtractTraceID pulls the active span's trace id out of ctx, returning ""
// if none is active. Used by the logging facade for correlation.
func ExtractTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
