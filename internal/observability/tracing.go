package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with query-specific span creation methods.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// NewTracer creates a new Tracer using the given TracerProvider.
func NewTracer(tp trace.TracerProvider, serviceName string) *Tracer {
	return &Tracer{
		tracer:      tp.Tracer(TracerName),
		serviceName: serviceName,
	}
}

// StartSpan starts a new span with the given name and attributes.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartQuery starts the span of a flat or grouped query over items of the named shape.
func (t *Tracer) StartQuery(ctx context.Context, shape string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanQuery, trace.WithAttributes(
		ShapeAttr(shape),
		ModeAttr(ModeQuery),
	))
}

// StartTree starts the span of a hierarchical query over items of the named shape.
func (t *Tracer) StartTree(ctx context.Context, shape string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanTree, trace.WithAttributes(
		ShapeAttr(shape),
		ModeAttr(ModeTree),
	))
}

// StartStage starts a child span for one pipeline stage.
func (t *Tracer) StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "datasource."+stage, trace.WithAttributes(StageAttr(stage)))
}

// StartDBQuery starts a span for a database query.
func (t *Tracer) StartDBQuery(ctx context.Context, operation string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "db.query", trace.WithAttributes(
		attribute.String("db.operation", operation),
	))
}

// RecordError records an error on the span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddRequest adds the serialized request descriptors to a span.
func (t *Tracer) AddRequest(span trace.Span, filter, sort, group, aggregate string, page, pageSize int) {
	var attrs []attribute.KeyValue
	if filter != "" {
		attrs = append(attrs, attribute.String(AttrRequestFilter, filter))
	}
	if sort != "" {
		attrs = append(attrs, attribute.String(AttrRequestSort, sort))
	}
	if group != "" {
		attrs = append(attrs, attribute.String(AttrRequestGroup, group))
	}
	if aggregate != "" {
		attrs = append(attrs, attribute.String(AttrRequestAggregate, aggregate))
	}
	if pageSize > 0 {
		attrs = append(attrs,
			attribute.Int(AttrRequestPage, page),
			attribute.Int(AttrRequestPageSize, pageSize),
		)
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

// SetResult records the filtered total and the materialized count on a span.
func (t *Tracer) SetResult(span trace.Span, total, count int) {
	span.SetAttributes(ResultTotalAttr(int64(total)), ResultCountAttr(int64(count)))
}

// LoggerWithTrace returns a logger enriched with trace context.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logger
	}
	return logger.With(
		slog.String(LogFieldTraceID, span.SpanContext().TraceID().String()),
		slog.String(LogFieldSpanID, span.SpanContext().SpanID().String()),
	)
}
