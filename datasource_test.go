package datasource

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"github.com/nlstn/go-datasource/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

type status int

const (
	statusActive status = iota + 1
	statusRetired
)

type person struct {
	ID     int
	Name   string
	Age    int
	City   string
	Status status
	Boss   *int
}

func intPtr(v int) *int { return &v }

func people() []person {
	return []person{
		{ID: 1, Name: "Jane", Age: 52, City: "Oslo", Status: statusActive},
		{ID: 2, Name: "John", Age: 31, City: "Oslo", Status: statusActive, Boss: intPtr(1)},
		{ID: 3, Name: "Jill", Age: 27, City: "Bergen", Status: statusRetired, Boss: intPtr(2)},
		{ID: 4, Name: "Mark", Age: 45, City: "Bergen", Status: statusActive},
		{ID: 5, Name: "Mary", Age: 38, City: "Oslo", Status: statusRetired, Boss: intPtr(4)},
	}
}

func personIDs(items []interface{}) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.(person).ID
	}
	return out
}

func mustFilter(t *testing.T, text string) Filter {
	t.Helper()
	f, err := ParseFilter(text)
	require.NoError(t, err)
	return f
}

func TestToResult(t *testing.T) {
	p := New()
	req := &Request{
		Filters:    []Filter{mustFilter(t, "Age~gt~30~and~Name~startswith~'j'")},
		Sorts:      []SortDescriptor{{Member: "Age", Direction: Descending}},
		Aggregates: []AggregateDescriptor{NewAggregateDescriptor("Age", AggregateMax, AggregateCount)},
		Page:       1,
		PageSize:   1,
	}
	res, err := p.ToResult(context.Background(), From(people()), req, ResultOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []int{1}, personIDs(res.Data))
	assert.Equal(t, map[string]interface{}{"Max_Age": 52, "Count_Age": 2}, res.AggregateValues())
}

func TestToResultGroups(t *testing.T) {
	req := &Request{
		Groups: []GroupDescriptor{{
			SortDescriptor:     SortDescriptor{Member: "City"},
			AggregateFunctions: []AggregateFunction{{Kind: AggregateSum, SourceField: "Age"}},
		}},
	}
	res, err := New().ToResult(context.Background(), From(people()), req, ResultOptions{})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)

	bergen := res.Data[0].(*Group)
	assert.Equal(t, "Bergen", bergen.Key)
	assert.Equal(t, 2, bergen.ItemCount)
	assert.Equal(t, int64(72), bergen.AggregateResults()["Sum_Age"].Value)

	oslo := res.Data[1].(*Group)
	assert.Equal(t, "Oslo", oslo.Key)
	assert.Equal(t, 3, oslo.ItemCount)
}

func TestToResultSelectorAndErrors(t *testing.T) {
	opts := ResultOptions{
		Selector: func(item interface{}) (interface{}, error) { return item.(person).Name, nil },
		Errors:   map[string]string{"Age": "required"},
	}
	req := &Request{Sorts: []SortDescriptor{{Member: "Name"}}}
	res, err := New().ToResult(context.Background(), From(people()), req, opts)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Jane", "Jill", "John", "Mark", "Mary"}, res.Data)
	assert.Equal(t, opts.Errors, res.Errors)
}

func TestToResultNilRequest(t *testing.T) {
	res, err := New().ToResult(context.Background(), From(people()), nil, ResultOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Len(t, res.Data, 5)
}

func TestToResultLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	p := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	req := &Request{Filters: []Filter{mustFilter(t, "Salary~gt~10")}}
	_, err := p.ToResult(context.Background(), From(people()), req, ResultOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMember)
	assert.Contains(t, buf.String(), "datasource: request failed")
	assert.Contains(t, buf.String(), "kind=configuration")
}

func TestWithoutLifting(t *testing.T) {
	type holder struct{ Person *person }
	items := []holder{{Person: &people()[0]}, {}}

	req := &Request{Filters: []Filter{mustFilter(t, "Person.Age~gt~30")}}
	res, err := New().ToResult(context.Background(), From(items), req, ResultOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	_, err = New(WithLiftMemberAccess(false)).ToResult(context.Background(), From(items), req, ResultOptions{})
	assert.Error(t, err)
}

func TestWithObservability(t *testing.T) {
	p := New(WithObservability(
		observability.WithTracerProvider(tracenoop.NewTracerProvider()),
		observability.WithMeterProvider(metricnoop.NewMeterProvider()),
		observability.WithRequestTracing(),
		observability.WithServerTiming(),
	))
	require.True(t, p.Observability().IsEnabled())

	ctx, header := observability.WithServerTimingHeader(context.Background())
	req := &Request{
		Filters:    []Filter{mustFilter(t, "City~eq~'Oslo'")},
		Aggregates: []AggregateDescriptor{NewAggregateDescriptor("Age", AggregateAverage)},
	}
	res, err := p.ToResult(ctx, From(people()), req, ResultOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.NotEmpty(t, header.Metrics)
}

func TestToTreeResult(t *testing.T) {
	req := &Request{
		Filters: []Filter{mustFilter(t, "Name~eq~'Jill'")},
		Sorts:   []SortDescriptor{{Member: "ID"}},
	}
	res, err := New().ToTreeResult(context.Background(), From(people()), req, TreeOptions{ID: "ID", ParentID: "Boss"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []int{1, 2, 3}, personIDs(res.Data))
}

func TestToTreeResultDepth(t *testing.T) {
	req := &Request{Filters: []Filter{mustFilter(t, "ID~eq~3")}}
	_, err := New(WithMaxHierarchyDepth(1)).ToTreeResult(context.Background(), From(people()), req, TreeOptions{ID: "ID", ParentID: "Boss"})
	require.ErrorIs(t, err, ErrHierarchyDepthExceeded)
	assert.Equal(t, KindConfiguration, ErrorKind(err))
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = ParseFilter("Age~gt~")
	require.Error(t, err)
	var gerr *GrammarError
	assert.True(t, errors.As(err, &gerr))
	assert.Equal(t, KindValidation, ErrorKind(err))
}

func TestRegisterEnumType(t *testing.T) {
	require.NoError(t, RegisterEnumType(status(0), map[string]int64{"Active": 1, "Retired": 2}))

	req := &Request{Filters: []Filter{mustFilter(t, "Status~eq~'retired'")}}
	res, err := New().ToResult(context.Background(), From(people()), req, ResultOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, personIDs(res.Data))

	assert.Error(t, RegisterEnumType(nil, map[string]int64{"A": 1}))
	assert.Error(t, RegisterEnumType(status(0), nil))
}

type reading struct {
	values map[string]float64
}

func TestRegisterTypeDescriptor(t *testing.T) {
	err := RegisterTypeDescriptor(reading{}, PropertyDescriptor{
		Name: "Celsius",
		Type: reflect.TypeOf(float64(0)),
		GetValue: func(item interface{}) (interface{}, error) {
			return item.(reading).values["celsius"], nil
		},
	})
	require.NoError(t, err)

	items := []reading{
		{values: map[string]float64{"celsius": 4}},
		{values: map[string]float64{"celsius": 21}},
		{values: map[string]float64{"celsius": 17}},
	}
	req := &Request{
		Filters: []Filter{mustFilter(t, "Celsius~gte~10")},
		Sorts:   []SortDescriptor{{Member: "Celsius"}},
	}
	res, err := New().ToResult(context.Background(), From(items), req, ResultOptions{})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, 17.0, res.Data[0].(reading).values["celsius"])

	assert.Error(t, RegisterTypeDescriptor(nil))
	assert.Error(t, RegisterTypeDescriptor(reading{}, PropertyDescriptor{Name: "Broken"}))
}

func TestWithLoggerNil(t *testing.T) {
	p := New(WithLogger(nil))
	assert.Equal(t, slog.Default(), p.logger)
}

func TestRequestRoundTrip(t *testing.T) {
	sorts, err := ParseSorts("Age-desc~Name-asc")
	require.NoError(t, err)
	aggs, err := ParseAggregates("Age-sum-max")
	require.NoError(t, err)
	groups, err := ParseGroups("City-asc")
	require.NoError(t, err)

	req := &Request{
		Filters:    []Filter{mustFilter(t, "Age~gt~30~and~City~eq~'Oslo'")},
		Sorts:      sorts,
		Groups:     groups,
		Aggregates: aggs,
		Page:       2,
		PageSize:   5,
	}
	data, err := MarshalRequest(req)
	require.NoError(t, err)
	back, err := UnmarshalRequest(data)
	require.NoError(t, err)

	assert.Equal(t, FormatFilter(req.Filter()), FormatFilter(back.Filter()))
	assert.Equal(t, req.Sorts, back.Sorts)
	assert.Equal(t, req.Page, back.Page)
	assert.Equal(t, req.PageSize, back.PageSize)

	res, err := New().ToResult(context.Background(), From(people()), back, ResultOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}
