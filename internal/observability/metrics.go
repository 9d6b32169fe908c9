package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the query metric instruments.
type Metrics struct {
	queryDuration   metric.Float64Histogram
	queryCount      metric.Int64Counter
	resultCount     metric.Int64Histogram
	dbQueryDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
	recordTypes     metric.Int64Gauge
}

// NewMetrics creates a new Metrics instance with the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	// Instrument creation only fails for invalid parameters; fall back to an
	// undescribed instrument so recording still works.
	var err error

	m.queryDuration, err = meter.Float64Histogram(
		"datasource.query.duration",
		metric.WithDescription("Duration of query processing in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.queryDuration, _ = meter.Float64Histogram("datasource.query.duration")
	}

	m.queryCount, err = meter.Int64Counter(
		"datasource.query.count",
		metric.WithDescription("Total number of processed queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		m.queryCount, _ = meter.Int64Counter("datasource.query.count")
	}

	m.resultCount, err = meter.Int64Histogram(
		"datasource.result.count",
		metric.WithDescription("Number of rows or top-level groups returned per query"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		m.resultCount, _ = meter.Int64Histogram("datasource.result.count")
	}

	m.dbQueryDuration, err = meter.Float64Histogram(
		"datasource.db.query.duration",
		metric.WithDescription("Duration of database queries in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.dbQueryDuration, _ = meter.Float64Histogram("datasource.db.query.duration")
	}

	m.errorCount, err = meter.Int64Counter(
		"datasource.error.count",
		metric.WithDescription("Total number of failed queries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.errorCount, _ = meter.Int64Counter("datasource.error.count")
	}

	m.recordTypes, err = meter.Int64Gauge(
		"datasource.aggregate.record_types",
		metric.WithDescription("Number of synthesized aggregate record types"),
		metric.WithUnit("{type}"),
	)
	if err != nil {
		m.recordTypes, _ = meter.Int64Gauge("datasource.aggregate.record_types")
	}

	return m
}

// RecordQuery records metrics for a completed query.
func (m *Metrics) RecordQuery(ctx context.Context, shape, mode string, duration time.Duration) {
	attrs := metric.WithAttributes(ShapeAttr(shape), ModeAttr(mode))
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.queryCount.Add(ctx, 1, attrs)
}

// RecordResultCount records the number of rows or groups returned by a query.
func (m *Metrics) RecordResultCount(ctx context.Context, shape string, count int64) {
	m.resultCount.Record(ctx, count, metric.WithAttributes(ShapeAttr(shape)))
}

// RecordDBQuery records metrics for a database query.
func (m *Metrics) RecordDBQuery(ctx context.Context, operation string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("db.operation", operation))
	m.dbQueryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordError records a failed query.
func (m *Metrics) RecordError(ctx context.Context, shape, mode, kind string) {
	attrs := metric.WithAttributes(
		ShapeAttr(shape),
		ModeAttr(mode),
		ErrorKindAttr(kind),
	)
	m.errorCount.Add(ctx, 1, attrs)
}

// RecordRecordTypes records the size of the aggregate record type cache.
func (m *Metrics) RecordRecordTypes(ctx context.Context, n int) {
	m.recordTypes.Record(ctx, int64(n))
}
