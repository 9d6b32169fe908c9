// Package observability provides OpenTelemetry-based instrumentation for query processing.
//
// It supports distributed tracing, metrics collection, Server-Timing stage metrics
// and structured logging enriched with trace context.
//
// All observability features are opt-in. When not configured, no-op implementations
// are used.
package observability

import "go.opentelemetry.io/otel/attribute"

// Instrumentation identity constants
const (
	// TracerName is the instrumentation name for tracing.
	TracerName = "github.com/nlstn/go-datasource"
	// MeterName is the instrumentation name for metrics.
	MeterName = "github.com/nlstn/go-datasource"
)

// Span names.
const (
	SpanQuery = "datasource.query"
	SpanTree  = "datasource.tree"
)

// Semantic attribute keys.
const (
	AttrShape = "datasource.shape"
	AttrMode  = "datasource.mode"
	AttrStage = "datasource.stage"

	// Request attributes
	AttrRequestFilter    = "datasource.request.filter"
	AttrRequestSort      = "datasource.request.sort"
	AttrRequestGroup     = "datasource.request.group"
	AttrRequestAggregate = "datasource.request.aggregate"
	AttrRequestPage      = "datasource.request.page"
	AttrRequestPageSize  = "datasource.request.page_size"

	// Result attributes
	AttrResultTotal = "datasource.result.total"
	AttrResultCount = "datasource.result.count"

	// Error attributes
	AttrErrorKind = "datasource.error.kind"
)

// Modes for the datasource.mode attribute.
const (
	ModeQuery = "query"
	ModeTree  = "tree"
)

// Pipeline stages, used as span event names and Server-Timing metric names.
const (
	StageCompile     = "compile"
	StageFilter      = "filter"
	StageTotal       = "total"
	StageAggregates  = "aggregates"
	StageSort        = "sort"
	StagePage        = "page"
	StageGroup       = "group"
	StageClosure     = "closure"
	StageMaterialize = "materialize"
)

// Log field keys for structured logging with trace context.
const (
	LogFieldTraceID     = "trace_id"
	LogFieldSpanID      = "span_id"
	LogFieldShape       = "shape"
	LogFieldDuration    = "duration_ms"
	LogFieldResultCount = "result_count"
	LogFieldError       = "error"
	LogFieldErrorKind   = "error_kind"
)

// ShapeAttr creates an attribute for the item shape name.
func ShapeAttr(name string) attribute.KeyValue {
	return attribute.String(AttrShape, name)
}

// ModeAttr creates an attribute for the processing mode.
func ModeAttr(mode string) attribute.KeyValue {
	return attribute.String(AttrMode, mode)
}

// StageAttr creates an attribute for a pipeline stage.
func StageAttr(stage string) attribute.KeyValue {
	return attribute.String(AttrStage, stage)
}

// ResultTotalAttr creates an attribute for the filtered total.
func ResultTotalAttr(total int64) attribute.KeyValue {
	return attribute.Int64(AttrResultTotal, total)
}

// ResultCountAttr creates an attribute for the number of materialized rows or groups.
func ResultCountAttr(count int64) attribute.KeyValue {
	return attribute.Int64(AttrResultCount, count)
}

// ErrorKindAttr creates an attribute for the error classification.
func ErrorKindAttr(kind string) attribute.KeyValue {
	return attribute.String(AttrErrorKind, kind)
}
