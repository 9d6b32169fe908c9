package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/nlstn/go-datasource/internal/source/parquetsource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const peopleJSON = `[
	{"ID": 1, "Name": "Jane", "Age": 52, "City": "Oslo", "Boss": null},
	{"ID": 2, "Name": "John", "Age": 31, "City": "Oslo", "Boss": 1},
	{"ID": 3, "Name": "Jill", "Age": 27, "City": "Bergen", "Boss": 2},
	{"ID": 4, "Name": "Mark", "Age": 45, "City": "Bergen", "Boss": null}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

type jsonResult struct {
	Data             []map[string]interface{}          `json:"data"`
	Total            int                               `json:"total"`
	AggregateResults map[string]map[string]interface{} `json:"aggregateResults"`
}

func decode(t *testing.T, out string) jsonResult {
	t.Helper()
	var res jsonResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res
}

func names(rows []map[string]interface{}, column string) []interface{} {
	out := make([]interface{}, len(rows))
	for i, row := range rows {
		out[i] = row[column]
	}
	return out
}

func TestJSONInput(t *testing.T) {
	path := writeFile(t, "people.json", peopleJSON)
	out, _, err := runCLI(t, "-f", "json", "-filter", "Age~gt~30", "-sort", "Age-desc", "-aggregate", "Age-max", path)
	require.NoError(t, err)

	res := decode(t, out)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []interface{}{"Jane", "Mark", "John"}, names(res.Data, "Name"))
	assert.Equal(t, 52.0, res.AggregateResults["Max_Age"]["value"])
}

func TestTableGroups(t *testing.T) {
	path := writeFile(t, "people.json", peopleJSON)
	out, _, err := runCLI(t, "-group", "City-asc", "-aggregate", "Age-sum", path)
	require.NoError(t, err)

	assert.Contains(t, out, "City: Bergen")
	assert.Contains(t, out, "City: Oslo")
	assert.Contains(t, out, "Sum_Age")
	assert.Contains(t, out, "Total: 4")
	assert.Less(t, strings.Index(out, "City: Bergen"), strings.Index(out, "City: Oslo"))
}

func TestTableRows(t *testing.T) {
	path := writeFile(t, "people.json", peopleJSON)
	out, _, err := runCLI(t, "-pagesize", "2", "-page", "2", "-sort", "ID-asc", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Jill")
	assert.Contains(t, out, "Mark")
	assert.NotContains(t, out, "Jane")
	assert.Contains(t, out, "Total: 4")
}

func TestSaveAndLoad(t *testing.T) {
	path := writeFile(t, "people.json", peopleJSON)
	snapshot := filepath.Join(t.TempDir(), "request.msgpack")

	first, _, err := runCLI(t, "-f", "jsonl", "-filter", "City~eq~'bergen'", "-sort", "Age-asc", "-save", snapshot, path)
	require.NoError(t, err)

	second, _, err := runCLI(t, "-f", "jsonl", "-load", snapshot, path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, strings.Split(strings.TrimSpace(second), "\n"), 2)
}

func TestCompressedSnapshot(t *testing.T) {
	path := writeFile(t, "people.json", peopleJSON)
	snapshot := filepath.Join(t.TempDir(), "request.msgpack.zst")

	_, _, err := runCLI(t, "-f", "jsonl", "-group", "City-desc", "-aggregate", "Age-count", "-save", snapshot, path)
	require.NoError(t, err)

	req, err := loadSnapshot(snapshot)
	require.NoError(t, err)
	require.Len(t, req.Groups, 1)
	assert.Equal(t, "City", req.Groups[0].Member)
	require.Len(t, req.Aggregates, 1)
	assert.Equal(t, "Age", req.Aggregates[0].Member)
}

func TestTreeMode(t *testing.T) {
	path := writeFile(t, "people.json", peopleJSON)
	out, _, err := runCLI(t, "-f", "json", "-id", "ID", "-parent", "Boss", "-filter", "Name~eq~'Jill'", "-sort", "ID-asc", path)
	require.NoError(t, err)

	res := decode(t, out)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []interface{}{"Jane", "John", "Jill"}, names(res.Data, "Name"))
}

type product struct {
	ID    uint `gorm:"primaryKey"`
	Name  string
	Price float64
}

func TestDatabaseInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&product{}))
	require.NoError(t, db.Create([]product{
		{Name: "Pen", Price: 2},
		{Name: "Lamp", Price: 25},
		{Name: "Desk", Price: 180},
	}).Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	out, stderr, err := runCLI(t, "-f", "json", "-timing", "-db", "sqlite:"+path, "-table", "products", "-filter", "price~gt~5", "-sort", "price-desc")
	require.NoError(t, err)

	res := decode(t, out)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []interface{}{"Desk", "Lamp"}, names(res.Data, "name"))
	assert.Contains(t, stderr, "Server-Timing:")
}

func TestParquetInput(t *testing.T) {
	type city struct {
		Name       string  `parquet:"name"`
		Population float64 `parquet:"population"`
	}
	path := filepath.Join(t.TempDir(), "cities.parquet")
	require.NoError(t, parquetsource.Write(path, []city{{"Oslo", 0.7}, {"Bergen", 0.29}, {"Tromso", 0.08}}))

	out, _, err := runCLI(t, "-f", "json", "-filter", "population~gte~0.2", "-sort", "name-asc", path)
	require.NoError(t, err)
	res := decode(t, out)
	assert.Equal(t, []interface{}{"Bergen", "Oslo"}, names(res.Data, "name"))
}

func TestArrowInput(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "label", Type: arrow.BinaryTypes.String},
	}, nil)
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	builder.Field(1).(*array.StringBuilder).AppendValues([]string{"a", "b", "c"}, nil)
	record := builder.NewRecordBatch()
	defer record.Release()

	path := filepath.Join(t.TempDir(), "labels.arrows")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := ipc.NewWriter(f, ipc.WithSchema(schema))
	require.NoError(t, w.Write(record))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	out, _, err := runCLI(t, "-f", "json", "-filter", "id~neq~2", path)
	require.NoError(t, err)
	res := decode(t, out)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []interface{}{"a", "c"}, names(res.Data, "label"))
}

func TestFlagErrors(t *testing.T) {
	path := writeFile(t, "people.json", peopleJSON)
	tests := []struct {
		name string
		args []string
	}{
		{"missing input", nil},
		{"db without table", []string{"-db", "sqlite::memory:"}},
		{"id without parent", []string{"-id", "ID", path}},
		{"negative page size", []string{"-pagesize", "-1", path}},
		{"unknown format", []string{"-f", "xml", path}},
		{"unsupported input", []string{writeFile(t, "people.csv", "a,b")}},
		{"bad filter", []string{"-filter", "Age~gt~", path}},
		{"load missing snapshot", []string{"-load", filepath.Join(t.TempDir(), "missing"), path}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
