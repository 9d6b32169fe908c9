package descriptor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPaging(t *testing.T) {
	r := &Request{Page: 0, PageSize: 10}
	r.Normalize()
	assert.Equal(t, 1, r.Page)
	assert.Equal(t, 0, r.Skip())

	r.Page = 3
	assert.Equal(t, 20, r.Skip())

	r.Page = math.MaxInt/2 + 2
	r.PageSize = 2
	assert.Equal(t, math.MaxInt, r.Skip())

	r.PageSize = 0
	assert.False(t, r.Paged())
	assert.Equal(t, 0, r.Skip())
}

func TestRequestFilterCombinesWithAnd(t *testing.T) {
	a := &FilterDescriptor{Member: "A", Operator: OpIsEqualTo, Value: 1}
	b := &FilterDescriptor{Member: "B", Operator: OpIsEqualTo, Value: 2}

	assert.Nil(t, (&Request{}).Filter())
	assert.Same(t, a, (&Request{Filters: []Filter{a}}).Filter())

	combined, ok := (&Request{Filters: []Filter{a, b}}).Filter().(*CompositeFilterDescriptor)
	require.True(t, ok)
	assert.Equal(t, LogicalAnd, combined.LogicalOperator)
	assert.Len(t, combined.Children, 2)
}

func TestRequestSnapshotRoundTrip(t *testing.T) {
	filter := &FilterDescriptor{Member: "Age", Operator: OpIsGreaterThan, Value: 30.0}
	req := &Request{
		Filters:    []Filter{filter},
		Sorts:      []SortDescriptor{{Member: "Name", Direction: Descending}},
		Groups:     []GroupDescriptor{{SortDescriptor: SortDescriptor{Member: "Department"}}},
		Aggregates: []AggregateDescriptor{NewAggregateDescriptor("Salary", AggregateAverage)},
		Page:       2,
		PageSize:   25,
	}

	data, err := MarshalRequest(req)
	require.NoError(t, err)

	var seen string
	decoded, err := UnmarshalRequest(data, func(text string) (Filter, error) {
		seen = text
		return filter, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Age~gt~30", seen)
	assert.Equal(t, req.Sorts, decoded.Sorts)
	require.Len(t, decoded.Groups, 1)
	assert.Equal(t, req.Groups[0].SortDescriptor, decoded.Groups[0].SortDescriptor)
	assert.Equal(t, Functions(req.Aggregates), decoded.Groups[0].AggregateFunctions)
	assert.Equal(t, req.Aggregates, decoded.Aggregates)
	assert.Equal(t, 2, decoded.Page)
	assert.Equal(t, 25, decoded.PageSize)
	require.Len(t, decoded.Filters, 1)
}

func TestUnmarshalRequestEmpty(t *testing.T) {
	_, err := UnmarshalRequest(nil, nil)
	assert.ErrorIs(t, err, errEmptySnapshot)
}

func TestDistributeAggregates(t *testing.T) {
	req := &Request{
		Groups: []GroupDescriptor{
			{SortDescriptor: SortDescriptor{Member: "Region"}},
			{SortDescriptor: SortDescriptor{Member: "City"}},
		},
		Aggregates: []AggregateDescriptor{NewAggregateDescriptor("Sales", AggregateSum, AggregateMax)},
	}
	req.DistributeAggregates()

	for _, g := range req.Groups {
		require.Len(t, g.AggregateFunctions, 2)
		assert.Equal(t, "Sum_Sales", g.AggregateFunctions[0].FunctionName())
		assert.Equal(t, "Max_Sales", g.AggregateFunctions[1].FunctionName())
	}

	req.Groups[0].AggregateFunctions[0].Name = "Renamed"
	assert.Equal(t, "Sum_Sales", req.Groups[1].AggregateFunctions[0].FunctionName())
}
