package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry TracerProvider to produce one span per
// agent turn and per tool call, grounded on haasonsaas-nexus's
// observability.Tracer (Start/StartSpan/RecordError/TraceToolExecution
// shape), trimmed to the spans this module actually emits and without its
// OTLP exporter wiring — nothing in this process's dependency set ships an
// OTLP exporter, so spans are recorded in-process for any
// sdktrace.SpanProcessor a caller registers (e.g. in tests, a
// tracetest.SpanRecorder) rather than exported over the network.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer creates a TracerProvider named serviceName with every
// processor in processors attached (pass none to keep spans in-memory
// only), sets it as the global provider, and returns a Tracer plus a
// shutdown function that must be called on exit.
func NewTracer(serviceName string, processors ...sdktrace.SpanProcessor) (*Tracer, func(context.Context) error) {
	opts := make([]sdktrace.TracerProviderOption, 0, len(processors))
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &Tracer{
			provider: provider,
			tracer:   provider.Tracer(serviceName),
		}, func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		}
}

// StartAgentTurn opens a span covering one full agent turn.
func (t *Tracer) StartAgentTurn(ctx context.Context, agentKind, model string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "agent.turn", trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("agent.kind", agentKind),
			attribute.String("llm.model", model),
		),
	)
}

// StartToolExecution opens a span covering one tool call.
func (t *Tracer) StartToolExecution(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("tool.%s", toolName), trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("tool.name", toolName)),
	)
}

// TraceAgentTurn is a convenience wrapper around StartAgentTurn that hides
// the raw trace.Span behind an end closure, so callers outside this
// package never need to import go.opentelemetry.io/otel/trace directly.
// Safe to call on a nil Tracer: returns ctx unchanged and a no-op end
// function.
func (t *Tracer) TraceAgentTurn(ctx context.Context, agentKind, model string) (context.Context, func(err error)) {
	if t == nil {
		return ctx, func(error) {}
	}
	ctx, span := t.StartAgentTurn(ctx, agentKind, model)
	return ctx, func(err error) {
		RecordError(span, err)
		span.End()
	}
}

// TraceToolExecution is TraceAgentTurn's counterpart for one tool call.
func (t *Tracer) TraceToolExecution(ctx context.Context, toolName string) (context.Context, func(err error)) {
	if t == nil {
		return ctx, func(error) {}
	}
	ctx, span := t.StartToolExecution(ctx, toolName)
	return ctx, func(err error) {
		RecordError(span, err)
		span.End()
	}
}

// RecordError records err on span and marks it failed, a no-op if err is
// nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown tears down the underlying provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
