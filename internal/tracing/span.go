package tracing

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartRunSpan starts the root span covering a whole ramp run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, runID string, rates []int, window time.Duration) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "rampede.run")
	span.SetAttributes(
		attribute.String("rampede.run_id", runID),
		attribute.IntSlice("rampede.rates", rates),
		attribute.Int64("rampede.window_ms", window.Milliseconds()),
	)
	return ctx, span
}

// StartLevelSpan starts a span for one rate level, parented to whatever span
// rides in ctx.
func StartLevelSpan(ctx context.Context, tracer trace.Tracer, index, rate int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "rampede.level")
	span.SetAttributes(
		attribute.Int("rampede.level_index", index),
		attribute.Int("rampede.rate", rate),
	)
	return ctx, span
}

// StartDispatchSpan starts a client span for a single dispatched request.
func StartDispatchSpan(ctx context.Context, tracer trace.Tracer, method, url string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "rampede.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("rampede.url", url),
	)
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
