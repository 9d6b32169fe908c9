package aggregate

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/nlstn/go-datasource/internal/compile"
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/expr"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type employee struct {
	Department string
	Salary     float64
	Age        int16
	Bonus      *int
	Price      decimal.Decimal
}

func ptr[T any](v T) *T { return &v }

func employees() []interface{} {
	return []interface{}{
		employee{Department: "Sales", Salary: 100, Age: 30, Bonus: ptr(5), Price: decimal.RequireFromString("1.50")},
		employee{Department: "Sales", Salary: 200, Age: 40, Price: decimal.RequireFromString("2.50")},
		employee{Department: "IT", Salary: 300, Age: 50, Bonus: ptr(7), Price: decimal.RequireFromString("3.00")},
	}
}

func compileFunctions(t *testing.T, fns ...descriptor.AggregateFunction) []Function {
	t.Helper()
	c := compile.New(member.NewStrategy(member.ShapeOf[employee](), member.WithLifting(true)))
	out, err := Compile(c, fns)
	require.NoError(t, err)
	return out
}

func fn(kind descriptor.AggregateKind, field string) descriptor.AggregateFunction {
	return descriptor.AggregateFunction{Kind: kind, SourceField: field}
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name     string
		fn       descriptor.AggregateFunction
		expected interface{}
		empty    interface{}
	}{
		{name: "Count", fn: fn(descriptor.AggregateCount, "Salary"), expected: 3, empty: 0},
		{name: "Sum widens int16", fn: fn(descriptor.AggregateSum, "Age"), expected: int64(120), empty: int64(0)},
		{name: "Sum skips nil", fn: fn(descriptor.AggregateSum, "Bonus"), expected: int64(12), empty: int64(0)},
		{name: "Sum float", fn: fn(descriptor.AggregateSum, "Salary"), expected: 600.0, empty: 0.0},
		{name: "Average", fn: fn(descriptor.AggregateAverage, "Salary"), expected: 200.0, empty: 0.0},
		{name: "Average int", fn: fn(descriptor.AggregateAverage, "Age"), expected: 40.0, empty: 0.0},
		{name: "Min", fn: fn(descriptor.AggregateMin, "Age"), expected: int16(30), empty: int16(0)},
		{name: "Max string", fn: fn(descriptor.AggregateMax, "Department"), expected: "Sales", empty: ""},
		{name: "Max pointer", fn: fn(descriptor.AggregateMax, "Bonus"), expected: 7, empty: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := compileFunctions(t, tt.fn)[0]

			v, err := f.Aggregate(employees())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)

			v, err = f.Aggregate(nil)
			require.NoError(t, err)
			assert.Equal(t, tt.empty, v)
		})
	}
}

func TestDecimalAggregates(t *testing.T) {
	fns := compileFunctions(t, fn(descriptor.AggregateSum, "Price"), fn(descriptor.AggregateAverage, "Price"))

	sum, err := fns[0].Aggregate(employees())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7").Equal(sum.(decimal.Decimal)))

	avg, err := fns[1].Aggregate(employees())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2.3333333333333333").Equal(avg.(decimal.Decimal)))
}

func TestCompileErrors(t *testing.T) {
	c := compile.New(member.NewStrategy(member.ShapeOf[employee]()))

	_, err := Compile(c, []descriptor.AggregateFunction{fn("median", "Salary")})
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = Compile(c, []descriptor.AggregateFunction{fn(descriptor.AggregateSum, "Department")})
	assert.ErrorIs(t, err, ErrUnsupportedField)

	_, err = Compile(c, []descriptor.AggregateFunction{fn(descriptor.AggregateSum, "Salry")})
	assert.ErrorIs(t, err, member.ErrInvalidMember)

	_, err = Compile(c, []descriptor.AggregateFunction{fn(descriptor.AggregateCount, "Anything")})
	assert.NoError(t, err)
}

func TestProjectionAndResults(t *testing.T) {
	fns := compileFunctions(t,
		fn(descriptor.AggregateCount, "Salary"),
		descriptor.AggregateFunction{Kind: descriptor.AggregateAverage, SourceField: "Salary", ResultFormat: "%.1f"},
	)

	p, err := NewProjection(fns)
	require.NoError(t, err)
	require.Equal(t, 2, p.Type.NumField())
	assert.Equal(t, "Count_Salary", p.Type.Field(0).Name)
	assert.Equal(t, "Average_Salary", p.Type.Field(1).Name)

	record, results, err := Scope(p, employees())
	require.NoError(t, err)
	assert.Equal(t, 3, reflect.ValueOf(record).Field(0).Interface())

	require.Len(t, results, 2)
	assert.Equal(t, Result{
		Member:              "Salary",
		FunctionName:        "Average_Salary",
		AggregateMethodName: "Average",
		Value:               200.0,
		ResultFormat:        "%.1f",
	}, results[1])
	assert.Equal(t, "200.0", results[1].FormattedValue())
	assert.Equal(t, "3", results[0].FormattedValue())
}

func TestRecordTypeCache(t *testing.T) {
	fields := []RecordField{
		{Name: "Sum_CacheA", Type: reflect.TypeOf(int64(0))},
		{Name: "Max_CacheB", Type: reflect.TypeOf("")},
	}

	var wg sync.WaitGroup
	types := make([]reflect.Type, 16)
	for i := range types {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			typ, err := RecordType(fields)
			assert.NoError(t, err)
			types[i] = typ
		}(i)
	}
	wg.Wait()

	for _, typ := range types {
		assert.Equal(t, types[0], typ)
	}

	reordered, err := RecordType([]RecordField{fields[1], fields[0]})
	require.NoError(t, err)
	assert.NotEqual(t, types[0], reordered)

	retyped, err := RecordType([]RecordField{{Name: "Sum_CacheA", Type: reflect.TypeOf(0.0)}, fields[1]})
	require.NoError(t, err)
	assert.NotEqual(t, types[0], retyped)

	_, err = RecordType([]RecordField{{Name: "lower", Type: reflect.TypeOf(0)}})
	assert.Error(t, err)
}

type spanFunction struct {
	fn    descriptor.AggregateFunction
	field *expr.Lambda
}

func (s spanFunction) Descriptor() descriptor.AggregateFunction { return s.fn }
func (s spanFunction) ResultType() reflect.Type                 { return reflect.TypeOf(0.0) }

func (s spanFunction) Aggregate(items []interface{}) (interface{}, error) {
	if len(items) == 0 {
		return 0.0, nil
	}
	lo, hi := 0.0, 0.0
	for i, item := range items {
		v, err := s.field.Compile()(item)
		if err != nil {
			return nil, err
		}
		f := v.(float64)
		if i == 0 || f < lo {
			lo = f
		}
		if i == 0 || f > hi {
			hi = f
		}
	}
	return hi - lo, nil
}

func TestRegisterCustomFunction(t *testing.T) {
	Register("span", func(fn descriptor.AggregateFunction, field *expr.Lambda) (Function, error) {
		if field == nil {
			return nil, errors.New("span requires a field")
		}
		return spanFunction{fn: fn, field: field}, nil
	})

	fns := compileFunctions(t, fn("span", "Salary"))
	v, err := fns[0].Aggregate(employees())
	require.NoError(t, err)
	assert.Equal(t, 200.0, v)
	assert.Equal(t, "Span_Salary", fns[0].Descriptor().FunctionName())
}
