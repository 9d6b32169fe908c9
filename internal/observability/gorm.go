package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	gormSpanKey             = "datasource:gorm:span"
	gormStartTimeKey        = "datasource:gorm:start"
	gormTimingStartKey      = "datasource:gorm:timing_start"
	gormTracingCallbacks    = "datasource"
	gormTimingCallbacksName = "datasource_server_timing"
)

// RegisterGORMCallbacks registers GORM callbacks for database query tracing.
// Sources only read, so the query, row and raw chains are instrumented.
// This should be called after GORM is initialized and observability is configured.
func RegisterGORMCallbacks(db *gorm.DB, cfg *Config) error {
	if cfg == nil || cfg.TracerProvider == nil || !cfg.EnableDetailedDBTracing {
		return nil
	}

	tracer := cfg.Tracer()

	if err := db.Callback().Query().Before("gorm:query").Register(gormTracingCallbacks+":before_query", beforeSpan(tracer, "db.query")); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register(gormTracingCallbacks+":after_query", afterSpan(tracer, cfg, "SELECT")); err != nil {
		return err
	}

	if err := db.Callback().Row().Before("gorm:row").Register(gormTracingCallbacks+":before_row", beforeSpan(tracer, "db.row")); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register(gormTracingCallbacks+":after_row", afterSpan(tracer, cfg, "ROW")); err != nil {
		return err
	}

	if err := db.Callback().Raw().Before("gorm:raw").Register(gormTracingCallbacks+":before_raw", beforeSpan(tracer, "db.raw")); err != nil {
		return err
	}
	if err := db.Callback().Raw().After("gorm:raw").Register(gormTracingCallbacks+":after_raw", afterSpan(tracer, cfg, "RAW")); err != nil {
		return err
	}

	return nil
}

// RegisterServerTimingCallbacks registers GORM callbacks for server timing metrics.
// These callbacks track database operation duration and add it to the request's
// database time accumulator, reported as the "db" Server-Timing metric by FlushDBTime.
// This is independent of the tracing callbacks and can be enabled without OpenTelemetry.
func RegisterServerTimingCallbacks(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register(gormTimingCallbacksName+":before_query", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register(gormTimingCallbacksName+":after_query", afterTiming); err != nil {
		return err
	}

	if err := db.Callback().Row().Before("gorm:row").Register(gormTimingCallbacksName+":before_row", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register(gormTimingCallbacksName+":after_row", afterTiming); err != nil {
		return err
	}

	if err := db.Callback().Raw().Before("gorm:raw").Register(gormTimingCallbacksName+":before_raw", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Raw().After("gorm:raw").Register(gormTimingCallbacksName+":after_raw", afterTiming); err != nil {
		return err
	}

	return nil
}

// beforeTiming records the start time of a database operation for server timing.
func beforeTiming(db *gorm.DB) {
	db.InstanceSet(gormTimingStartKey, time.Now())
}

// afterTiming calculates the duration of a database operation and adds it to the accumulator.
func afterTiming(db *gorm.DB) {
	startTimeVal, ok := db.InstanceGet(gormTimingStartKey)
	if !ok {
		return
	}

	startTime, ok := startTimeVal.(time.Time)
	if !ok {
		return
	}

	if db.Statement != nil && db.Statement.Context != nil {
		AddDBTime(db.Statement.Context, time.Since(startTime))
	}
}

func beforeSpan(tracer *Tracer, spanName string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		ctx, span := tracer.StartSpan(ctx, spanName,
			attribute.String("db.system", "gorm"),
		)

		db.Statement.Context = ctx
		db.InstanceSet(gormSpanKey, span)
		db.InstanceSet(gormStartTimeKey, time.Now())
	}
}

func afterSpan(tracer *Tracer, cfg *Config, operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		spanVal, ok := db.InstanceGet(gormSpanKey)
		if !ok {
			return
		}

		span, ok := spanVal.(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		if db.Statement != nil {
			if table := db.Statement.Table; table != "" {
				span.SetAttributes(attribute.String("db.sql.table", table))
			}
			span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
		}

		tracer.RecordError(span, db.Error)

		if startTimeVal, ok := db.InstanceGet(gormStartTimeKey); ok {
			if startTime, ok := startTimeVal.(time.Time); ok {
				cfg.Metrics().RecordDBQuery(db.Statement.Context, operation, time.Since(startTime))
			}
		}
	}
}
