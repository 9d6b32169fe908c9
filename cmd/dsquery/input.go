package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/nlstn/go-datasource"
	"github.com/nlstn/go-datasource/internal/observability"
	"github.com/nlstn/go-datasource/internal/source/arrowsource"
	"github.com/nlstn/go-datasource/internal/source/gormsource"
	"github.com/nlstn/go-datasource/internal/source/parquetsource"
)

// openSource returns the queryable selected by the flags and a function
// releasing what it holds.
func openSource(o *options, cfg *observability.Config) (datasource.Queryable, func(), error) {
	if o.db != "" {
		db, err := gormsource.Open(o.db, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return gormsource.Table(db, o.table), closeDB, nil
	}

	switch ext := strings.ToLower(filepath.Ext(o.input)); ext {
	case ".json":
		rows, err := readJSON(o.input)
		if err != nil {
			return nil, nil, err
		}
		return datasource.From(rows), func() {}, nil
	case ".parquet":
		return parquetsource.Load(o.input), func() {}, nil
	case ".arrow", ".arrows":
		src, err := openArrowStream(o.input)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported input format %q", ext)
	}
}

// readJSON reads a JSON array of objects.
func readJSON(path string) ([]map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return rows, nil
}

// openArrowStream reads an Arrow IPC stream file. The schema is taken from
// a first read; every enumeration reopens the file.
func openArrowStream(path string) (datasource.Queryable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader, err := ipc.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read arrow stream: %w", err)
	}
	schema := reader.Schema()
	reader.Release()

	return arrowsource.FromReader(schema, func(context.Context) (array.RecordReader, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return ipc.NewReader(bytes.NewReader(data))
	})
}
