// Package apm wires OpenTelemetry tracing: exporter selection, a thin tracer
// wrapper and helpers to correlate logs with spans.
package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span is an otel span that can also mark itself failed in one call.
type Span interface {
	trace.Span
	NoticeError(err error)
}

type span struct{ trace.Span }

// NoticeError records err and sets the error status. Nil is ignored.
func (s span) NoticeError(err error) {
	if err == nil {
		return
	}
	s.RecordError(err)
	s.SetStatus(codes.Error, err.Error())
}

// Tracer starts spans under one instrumentation name.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	SpanFromContext(ctx context.Context) Span
}

type tracer struct{ name string }

// NewTracer resolves the global provider at span start, so it may be
// created before NewTraceProvider runs.
func NewTracer(name string) Tracer {
	return tracer{name: name}
}

func (t tracer) StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, s := otel.Tracer(t.name).Start(ctx, name, opts...)
	return ctx, span{s}
}

func (t tracer) SpanFromContext(ctx context.Context) Span {
	return span{trace.SpanFromContext(ctx)}
}

// TraceID returns the active span's trace id, or "" outside a sampled span.
// Its signature matches logger.TraceIDFn.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
