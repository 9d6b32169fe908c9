package arrowsource

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/grammar"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var citySchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "population", Type: arrow.PrimitiveTypes.Float64},
}, nil)

func cityBatch(t *testing.T) arrow.RecordBatch {
	t.Helper()
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), citySchema)
	defer builder.Release()

	builder.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3, 4}, nil)
	builder.Field(1).(*array.StringBuilder).AppendValues([]string{"Berlin", "Hamburg", "", "Munich"}, []bool{true, true, false, true})
	builder.Field(2).(*array.Float64Builder).AppendValues([]float64{3.6, 1.8, 0.1, 1.5}, nil)

	batch := builder.NewRecordBatch()
	t.Cleanup(batch.Release)
	return batch
}

func TestShape(t *testing.T) {
	shape, err := Shape(citySchema)
	require.NoError(t, err)
	assert.Equal(t, member.KindTabular, member.KindOf(shape))
	col, ok := shape.Column("Population")
	require.True(t, ok)
	assert.Equal(t, "population", col.Name)
}

func TestShapeUnsupported(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String)}}, nil)
	_, err := Shape(schema)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRowValue(t *testing.T) {
	rows := Rows(citySchema, cityBatch(t))
	require.Len(t, rows, 4)

	row := rows[2].(Row)
	v, ok := row.Value("name")
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = row.Value("missing")
	assert.False(t, ok)
	assert.Equal(t, map[string]interface{}{"id": int64(3), "name": nil, "population": 0.1}, row.Map())
}

func TestFromRecordsThroughPipeline(t *testing.T) {
	src, err := FromRecords(citySchema, cityBatch(t))
	require.NoError(t, err)

	f, err := grammar.ParseFilter("population~gt~1")
	require.NoError(t, err)
	req := &descriptor.Request{
		Filters:    []descriptor.Filter{f},
		Sorts:      []descriptor.SortDescriptor{{Member: "name"}},
		Aggregates: []descriptor.AggregateDescriptor{descriptor.NewAggregateDescriptor("population", descriptor.AggregateMax)},
	}
	res, err := pipeline.Execute(context.Background(), src, req, pipeline.Options{Lift: true})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)

	var names []interface{}
	for _, item := range res.Data {
		v, _ := item.(Row).Value("name")
		names = append(names, v)
	}
	assert.Equal(t, []interface{}{"Berlin", "Hamburg", "Munich"}, names)
	assert.Equal(t, 3.6, res.AggregateValues()["Max_population"])
}

func TestFromReader(t *testing.T) {
	batch := cityBatch(t)
	opens := 0
	src, err := FromReader(citySchema, func(context.Context) (array.RecordReader, error) {
		opens++
		return array.NewRecordReader(citySchema, []arrow.RecordBatch{batch})
	})
	require.NoError(t, err)

	n, err := src.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	_, err = src.ToSlice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, opens)
}

func TestRowMarshalJSON(t *testing.T) {
	rows := Rows(citySchema, cityBatch(t))
	data, err := json.Marshal(rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 1, "name": "Berlin", "population": 3.6}`, string(data))
}
