// Package gormsource provides queryables backed by a GORM database.
//
// Rows are loaded lazily on every enumeration and processed in memory; the
// database is only asked for the rows of a model or table. SQL result order is
// unspecified, so these sources require stable ordering for paging.
package gormsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/observability"
	"github.com/nlstn/go-datasource/internal/queryable"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Option configures a source.
type Option func(*config)

type config struct {
	scopes []func(*gorm.DB) *gorm.DB
}

// WithScope applies a GORM scope to every load, e.g. to preload associations
// or to restrict rows before they reach the query pipeline.
func WithScope(scope func(*gorm.DB) *gorm.DB) Option {
	return func(c *config) {
		c.scopes = append(c.scopes, scope)
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns a queryable over every row of model T.
func Model[T any](db *gorm.DB, opts ...Option) queryable.Queryable {
	cfg := newConfig(opts)
	return queryable.Lazy(member.ShapeOf[T](), func(ctx context.Context) ([]interface{}, error) {
		var rows []T
		if err := db.WithContext(ctx).Scopes(cfg.scopes...).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load %T rows: %w", *new(T), err)
		}
		items := make([]interface{}, len(rows))
		for i, row := range rows {
			items[i] = row
		}
		return items, nil
	}, true)
}

// Table returns a queryable over every row of the named table as open
// objects keyed by column name.
func Table(db *gorm.DB, table string, opts ...Option) queryable.Queryable {
	cfg := newConfig(opts)
	return queryable.Lazy(member.ShapeOf[map[string]interface{}](), func(ctx context.Context) ([]interface{}, error) {
		var rows []map[string]interface{}
		if err := db.WithContext(ctx).Table(table).Scopes(cfg.scopes...).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load table %s: %w", table, err)
		}
		items := make([]interface{}, len(rows))
		for i, row := range rows {
			items[i] = row
		}
		return items, nil
	}, true)
}

// Open connects to dsn. A "postgres://" or "postgresql://" URL selects
// PostgreSQL; anything else is a SQLite path, optionally prefixed "sqlite:".
// Query tracing and Server-Timing callbacks are registered per cfg.
func Open(dsn string, cfg *observability.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := observability.RegisterGORMCallbacks(db, cfg); err != nil {
		return nil, fmt.Errorf("failed to register tracing callbacks: %w", err)
	}
	if cfg.ServerTimingEnabled() {
		if err := observability.RegisterServerTimingCallbacks(db); err != nil {
			return nil, fmt.Errorf("failed to register server timing callbacks: %w", err)
		}
	}
	return db, nil
}
