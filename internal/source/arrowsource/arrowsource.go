// Package arrowsource exposes Apache Arrow record batches as tabular items.
package arrowsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/queryable"
	"github.com/shopspring/decimal"
)

// ErrUnsupportedType is returned for columns whose Arrow type has no Go mapping.
var ErrUnsupportedType = errors.New("unsupported arrow type")

// Row is one row of a record batch. Values are read from the batch on demand,
// so the batch must stay retained while the row is in use.
type Row struct {
	batch   arrow.RecordBatch
	index   int
	columns map[string]int
}

// Value returns the value of column at the row, or nil when it is null.
func (r Row) Value(column string) (interface{}, bool) {
	i, ok := r.columns[column]
	if !ok {
		return nil, false
	}
	return extractValue(r.batch.Column(i), r.index), true
}

// Map copies the row into an open object keyed by column name.
func (r Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.columns))
	for name, i := range r.columns {
		m[name] = extractValue(r.batch.Column(i), r.index)
	}
	return m
}

// MarshalJSON encodes the row as an object keyed by column name.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

var (
	rowType     = reflect.TypeOf(Row{})
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// Shape returns the tabular shape of rows with the given schema.
func Shape(schema *arrow.Schema) (member.Shape, error) {
	columns := make([]member.Column, 0, schema.NumFields())
	for _, field := range schema.Fields() {
		t, err := goType(field.Type)
		if err != nil {
			return member.Shape{}, fmt.Errorf("column %q: %w", field.Name, err)
		}
		columns = append(columns, member.Column{Name: field.Name, Type: t})
	}
	return member.Shape{Type: rowType, Columns: columns}, nil
}

func goType(dt arrow.DataType) (reflect.Type, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return reflect.TypeOf(false), nil
	case arrow.INT8:
		return reflect.TypeOf(int8(0)), nil
	case arrow.INT16:
		return reflect.TypeOf(int16(0)), nil
	case arrow.INT32:
		return reflect.TypeOf(int32(0)), nil
	case arrow.INT64:
		return reflect.TypeOf(int64(0)), nil
	case arrow.UINT8:
		return reflect.TypeOf(uint8(0)), nil
	case arrow.UINT16:
		return reflect.TypeOf(uint16(0)), nil
	case arrow.UINT32:
		return reflect.TypeOf(uint32(0)), nil
	case arrow.UINT64:
		return reflect.TypeOf(uint64(0)), nil
	case arrow.FLOAT32:
		return reflect.TypeOf(float32(0)), nil
	case arrow.FLOAT64:
		return reflect.TypeOf(float64(0)), nil
	case arrow.STRING, arrow.LARGE_STRING:
		return reflect.TypeOf(""), nil
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		return timeType, nil
	case arrow.DECIMAL128:
		return decimalType, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
}

func extractValue(col arrow.Array, idx int) interface{} {
	if col.IsNull(idx) {
		return nil
	}
	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(idx)
	case *array.Int8:
		return arr.Value(idx)
	case *array.Int16:
		return arr.Value(idx)
	case *array.Int32:
		return arr.Value(idx)
	case *array.Int64:
		return arr.Value(idx)
	case *array.Uint8:
		return arr.Value(idx)
	case *array.Uint16:
		return arr.Value(idx)
	case *array.Uint32:
		return arr.Value(idx)
	case *array.Uint64:
		return arr.Value(idx)
	case *array.Float32:
		return arr.Value(idx)
	case *array.Float64:
		return arr.Value(idx)
	case *array.String:
		return arr.Value(idx)
	case *array.LargeString:
		return arr.Value(idx)
	case *array.Date32:
		return arr.Value(idx).ToTime().UTC()
	case *array.Date64:
		return arr.Value(idx).ToTime().UTC()
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(idx).ToTime(unit).UTC()
	case *array.Decimal128:
		scale := arr.DataType().(*arrow.Decimal128Type).Scale
		return decimal.NewFromBigInt(arr.Value(idx).BigInt(), -scale)
	}
	return nil
}

// Rows returns the rows of the batches. The batches are retained and released
// by the caller once the rows are no longer used.
func Rows(schema *arrow.Schema, batches ...arrow.RecordBatch) []interface{} {
	columns := make(map[string]int, schema.NumFields())
	for i, field := range schema.Fields() {
		columns[field.Name] = i
	}

	var n int64
	for _, b := range batches {
		n += b.NumRows()
	}
	items := make([]interface{}, 0, n)
	for _, b := range batches {
		for i := 0; i < int(b.NumRows()); i++ {
			items = append(items, Row{batch: b, index: i, columns: columns})
		}
	}
	return items
}

// FromRecords returns a queryable over the rows of in-memory record batches.
func FromRecords(schema *arrow.Schema, batches ...arrow.RecordBatch) (queryable.Queryable, error) {
	shape, err := Shape(schema)
	if err != nil {
		return nil, err
	}
	return queryable.FromElements(shape, Rows(schema, batches...)), nil
}

// Opener starts a fresh read of a record stream.
type Opener func(ctx context.Context) (array.RecordReader, error)

// FromReader returns a queryable that drains a new record reader on every
// enumeration. The rows keep the batches they were read from retained.
func FromReader(schema *arrow.Schema, open Opener) (queryable.Queryable, error) {
	shape, err := Shape(schema)
	if err != nil {
		return nil, err
	}
	return queryable.Lazy(shape, func(ctx context.Context) ([]interface{}, error) {
		reader, err := open(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open record reader: %w", err)
		}
		defer reader.Release()

		var batches []arrow.RecordBatch
		for reader.Next() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			batch := reader.Record()
			batch.Retain()
			batches = append(batches, batch)
		}
		if err := reader.Err(); err != nil {
			return nil, fmt.Errorf("failed to read records: %w", err)
		}
		return Rows(schema, batches...), nil
	}, false), nil
}
