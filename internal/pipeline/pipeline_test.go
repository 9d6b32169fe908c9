package pipeline

import (
	"context"
	"math"
	"testing"

	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/grammar"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/queryable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type employee struct {
	ID         int
	Name       string
	Department string
	Team       string
	Salary     float64
	Manager    *employee
}

func staff() []employee {
	return []employee{
		{ID: 1, Name: "Ann", Department: "Sales", Team: "East", Salary: 100},
		{ID: 2, Name: "Bob", Department: "IT", Team: "Ops", Salary: 200},
		{ID: 3, Name: "Cid", Department: "Sales", Team: "West", Salary: 300},
		{ID: 4, Name: "Dee", Department: "IT", Team: "Dev", Salary: 400},
		{ID: 5, Name: "Eve", Department: "Sales", Team: "East", Salary: 500},
	}
}

func ids(items []interface{}) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.(employee).ID
	}
	return out
}

func filter(t *testing.T, text string) descriptor.Filter {
	t.Helper()
	f, err := grammar.ParseFilter(text)
	require.NoError(t, err)
	return f
}

func TestFilterSortPage(t *testing.T) {
	req := &descriptor.Request{
		Filters:  []descriptor.Filter{filter(t, "Salary~gt~100")},
		Sorts:    []descriptor.SortDescriptor{{Member: "Salary", Direction: descriptor.Descending}},
		Page:     2,
		PageSize: 2,
	}
	res, err := Execute(context.Background(), queryable.From(staff()), req, Options{Lift: true})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, []int{3, 2}, ids(res.Data))
	assert.Nil(t, res.AggregateResults)
}

func TestPagingInvariant(t *testing.T) {
	src := queryable.From(staff())
	for pageSize := 1; pageSize <= 6; pageSize++ {
		for page := 1; page <= 7; page++ {
			req := &descriptor.Request{Page: page, PageSize: pageSize}
			res, err := Execute(context.Background(), src, req, Options{})
			require.NoError(t, err)

			want := pageSize
			if rest := res.Total - (page-1)*pageSize; rest < want {
				want = max(0, rest)
			}
			assert.Len(t, res.Data, want, "page %d size %d", page, pageSize)
		}
	}

	res, err := Execute(context.Background(), src, &descriptor.Request{Page: math.MaxInt/2 + 2, PageSize: 2}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Empty(t, res.Data)
}

func TestUnpagedAndPageClamp(t *testing.T) {
	res, err := Execute(context.Background(), queryable.From(staff()), &descriptor.Request{Page: 0, PageSize: 2}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids(res.Data))

	res, err = Execute(context.Background(), queryable.From(staff()), nil, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Data, 5)
	assert.Equal(t, 5, res.Total)
}

func TestAggregatesIgnorePaging(t *testing.T) {
	req := &descriptor.Request{
		Filters: []descriptor.Filter{filter(t, "Department~eq~'sales'")},
		Aggregates: []descriptor.AggregateDescriptor{
			descriptor.NewAggregateDescriptor("Salary", descriptor.AggregateSum, descriptor.AggregateMax),
			descriptor.NewAggregateDescriptor("ID", descriptor.AggregateCount),
		},
		Page:     1,
		PageSize: 1,
	}
	res, err := Execute(context.Background(), queryable.From(staff()), req, Options{})
	require.NoError(t, err)

	assert.Len(t, res.Data, 1)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, map[string]interface{}{
		"Sum_Salary": 900.0,
		"Max_Salary": 500.0,
		"Count_ID":   3,
	}, res.AggregateValues())
	assert.Equal(t, "Sum", res.AggregateResults["Sum_Salary"].AggregateMethodName)
}

func TestGroupAverageByDepartment(t *testing.T) {
	req := &descriptor.Request{
		Groups: []descriptor.GroupDescriptor{{
			SortDescriptor: descriptor.SortDescriptor{Member: "Department"},
			AggregateFunctions: []descriptor.AggregateFunction{
				{Kind: descriptor.AggregateAverage, SourceField: "Salary"},
			},
		}},
	}
	res, err := Execute(context.Background(), queryable.From(staff()), req, Options{})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)

	it := res.Data[0].(*Group)
	sales := res.Data[1].(*Group)
	assert.Equal(t, "IT", it.Key)
	assert.Equal(t, "Sales", sales.Key)
	assert.Equal(t, "Department", it.Member)
	assert.False(t, it.HasSubgroups)
	assert.Equal(t, 5, it.ItemCount+sales.ItemCount)

	assert.Equal(t, 300.0, it.AggregateResults()["Average_Salary"].Value)
	assert.Equal(t, 300.0, sales.AggregateResults()["Average_Salary"].Value)
	assert.NotNil(t, sales.AggregateProjection)
	assert.Equal(t, []int{2, 4}, ids(it.Items))
}

func TestGroupTotalsMatchFilteredCount(t *testing.T) {
	req := &descriptor.Request{
		Filters: []descriptor.Filter{filter(t, "Salary~gte~200")},
		Groups: []descriptor.GroupDescriptor{
			{SortDescriptor: descriptor.SortDescriptor{Member: "Team"}},
		},
	}
	res, err := Execute(context.Background(), queryable.From(staff()), req, Options{})
	require.NoError(t, err)

	sum := 0
	for _, g := range res.Data {
		sum += g.(*Group).ItemCount
	}
	assert.Equal(t, res.Total, sum)
}

func TestNestedGroupsScopeAggregatesToEnclosingKeys(t *testing.T) {
	sum := []descriptor.AggregateFunction{{Kind: descriptor.AggregateSum, SourceField: "Salary"}}
	req := &descriptor.Request{
		Groups: []descriptor.GroupDescriptor{
			{SortDescriptor: descriptor.SortDescriptor{Member: "Department", Direction: descriptor.Descending}, AggregateFunctions: sum},
			{SortDescriptor: descriptor.SortDescriptor{Member: "Team"}, AggregateFunctions: sum},
		},
		PageSize: 2,
		Page:     1,
	}
	res, err := Execute(context.Background(), queryable.From(staff()), req, Options{})
	require.NoError(t, err)

	// Descending department order puts Sales first; the page holds Ann and Eve (East),
	// ordered by Team within Sales.
	require.Len(t, res.Data, 1)
	sales := res.Data[0].(*Group)
	assert.Equal(t, "Sales", sales.Key)
	assert.True(t, sales.HasSubgroups)
	assert.Equal(t, 2, sales.ItemCount)
	// Aggregates use every Sales row, not only the page.
	assert.Equal(t, 900.0, sales.AggregateResults()["Sum_Salary"].Value)

	require.Len(t, sales.Subgroups, 1)
	east := sales.Subgroups[0]
	assert.Equal(t, "East", east.Key)
	assert.Equal(t, "Team", east.Member)
	assert.Equal(t, []int{1, 5}, ids(east.Items))
	assert.Equal(t, 600.0, east.AggregateResults()["Sum_Salary"].Value)
}

func TestSyntheticSortForStableProviders(t *testing.T) {
	rows := staff()
	reversed := make([]interface{}, len(rows))
	for i, e := range rows {
		reversed[len(rows)-1-i] = e
	}
	src := queryable.Lazy(member.ShapeOf[employee](), func(context.Context) ([]interface{}, error) {
		return reversed, nil
	}, true)

	req := &descriptor.Request{Page: 1, PageSize: 2}
	res, err := Execute(context.Background(), src, req, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids(res.Data))
	assert.Empty(t, req.Sorts)

	// Without the policy the provider order is kept.
	res, err = Execute(context.Background(), src, req, Options{StableOrdering: func(queryable.Queryable) bool { return false }})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4}, ids(res.Data))

	// An explicit sort suppresses the synthetic one.
	req.Sorts = []descriptor.SortDescriptor{{Member: "Name", Direction: descriptor.Descending}}
	res, err = Execute(context.Background(), src, req, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4}, ids(res.Data))
	assert.Len(t, req.Sorts, 1)
}

func TestAlwaysStableOrdering(t *testing.T) {
	rows := staff()
	rows[0], rows[4] = rows[4], rows[0]
	res, err := Execute(context.Background(), queryable.From(rows), &descriptor.Request{}, Options{StableOrdering: AlwaysStableOrdering})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(res.Data))
}

func TestSelectorAndErrors(t *testing.T) {
	modelErrors := map[string][]string{"Name": {"required"}}
	opts := Options{
		Selector: func(item interface{}) (interface{}, error) {
			return item.(employee).Name, nil
		},
		Errors: modelErrors,
	}
	req := &descriptor.Request{Sorts: []descriptor.SortDescriptor{{Member: "Name"}}, PageSize: 2, Page: 1}
	res, err := Execute(context.Background(), queryable.From(staff()), req, opts)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Ann", "Bob"}, res.Data)
	assert.Equal(t, modelErrors, res.Errors)

	req.Groups = []descriptor.GroupDescriptor{{SortDescriptor: descriptor.SortDescriptor{Member: "Department"}}}
	res, err = Execute(context.Background(), queryable.From(staff()), req, opts)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Bob", "Dee"}, res.Data[0].(*Group).Items)
}

func TestCompileErrorsDoNotEnumerate(t *testing.T) {
	loads := 0
	src := queryable.Lazy(member.ShapeOf[employee](), func(context.Context) ([]interface{}, error) {
		loads++
		return nil, nil
	}, false)

	tests := []struct {
		name string
		req  *descriptor.Request
		kind error
	}{
		{"unknown filter member", &descriptor.Request{Filters: []descriptor.Filter{filter(t, "Salry~gt~1")}}, member.ErrInvalidMember},
		{"unknown sort member", &descriptor.Request{Sorts: []descriptor.SortDescriptor{{Member: "Nope"}}}, member.ErrInvalidMember},
		{"unknown group member", &descriptor.Request{Groups: []descriptor.GroupDescriptor{{SortDescriptor: descriptor.SortDescriptor{Member: "Nope"}}}}, member.ErrInvalidMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Execute(context.Background(), src, tt.req, Options{})
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	_, err := Execute(context.Background(), src, &descriptor.Request{
		Aggregates: []descriptor.AggregateDescriptor{descriptor.NewAggregateDescriptor("Name", descriptor.AggregateSum)},
	}, Options{})
	assert.Error(t, err)
	assert.Equal(t, 0, loads)
}

func TestLiftingInFilter(t *testing.T) {
	rows := staff()
	rows[1].Manager = &employee{Name: "Zed"}

	req := &descriptor.Request{Filters: []descriptor.Filter{filter(t, "Manager.Name~eq~'zed'")}}
	res, err := Execute(context.Background(), queryable.From(rows), req, Options{Lift: true})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids(res.Data))

	_, err = Execute(context.Background(), queryable.From(rows), req, Options{Lift: false})
	assert.Error(t, err)
}
