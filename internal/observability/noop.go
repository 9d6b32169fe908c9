package observability

import (
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// NewNoopTracer creates a tracer that does nothing.
func NewNoopTracer() *Tracer {
	return &Tracer{
		tracer:      tracenoop.NewTracerProvider().Tracer(""),
		serviceName: "",
	}
}

// NewNoopMetrics creates metrics that do nothing.
func NewNoopMetrics() *Metrics {
	meter := noop.NewMeterProvider().Meter("")
	m := &Metrics{}

	// Note: noop meter never returns errors, but we must check them to satisfy the linter.
	m.queryDuration, _ = meter.Float64Histogram("datasource.query.duration")      //nolint:errcheck
	m.queryCount, _ = meter.Int64Counter("datasource.query.count")                //nolint:errcheck
	m.resultCount, _ = meter.Int64Histogram("datasource.result.count")            //nolint:errcheck
	m.dbQueryDuration, _ = meter.Float64Histogram("datasource.db.query.duration") //nolint:errcheck
	m.errorCount, _ = meter.Int64Counter("datasource.error.count")                //nolint:errcheck
	m.recordTypes, _ = meter.Int64Gauge("datasource.aggregate.record_types")      //nolint:errcheck

	return m
}
