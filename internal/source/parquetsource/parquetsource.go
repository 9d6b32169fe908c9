// Package parquetsource provides queryables over Apache Parquet files.
package parquetsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/queryable"
	"github.com/parquet-go/parquet-go"
)

// file is an open parquet file together with its OS handle.
type file struct {
	os *os.File
	pq *parquet.File
}

func open(path string) (*file, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pq, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return &file{os: f, pq: pq}, nil
}

func (f *file) Close() error {
	return f.os.Close()
}

// Load returns a queryable over the rows of the file at path as open objects
// keyed by column name. The file is read on every enumeration.
func Load(path string) queryable.Queryable {
	return queryable.Lazy(member.ShapeOf[map[string]interface{}](), func(ctx context.Context) ([]interface{}, error) {
		f, err := open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		reader := parquet.NewReader(f.pq)
		defer func() { _ = reader.Close() }()

		var items []interface{}
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			row := make(map[string]interface{})
			if err := reader.Read(&row); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("failed to read row: %w", err)
			}
			items = append(items, row)
		}
		return items, nil
	}, false)
}

// Typed returns a queryable over the rows of the file at path decoded into T
// using its parquet struct tags.
func Typed[T any](path string) queryable.Queryable {
	return queryable.Lazy(member.ShapeOf[T](), func(ctx context.Context) ([]interface{}, error) {
		f, err := open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		reader := parquet.NewGenericReader[T](f.pq)
		defer func() { _ = reader.Close() }()

		rows := make([]T, reader.NumRows())
		n, err := reader.Read(rows)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
		items := make([]interface{}, n)
		for i := range items {
			items[i] = rows[i]
		}
		return items, nil
	}, false)
}

// Columns returns the top-level column names of the file at path in schema order.
func Columns(path string) ([]string, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fields := f.pq.Schema().Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name()
	}
	return names, nil
}

// Write writes rows to a new parquet file at path using T's parquet struct tags.
func Write[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = f.Close() }()

	writer := parquet.NewGenericWriter[T](f)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}
