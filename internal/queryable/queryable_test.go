package queryable

import (
	"context"
	"errors"
	"testing"

	"github.com/nlstn/go-datasource/internal/compile"
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type employee struct {
	ID         int
	Name       string
	Department string
	Salary     float64
}

var employees = []employee{
	{ID: 1, Name: "Ann", Department: "Sales", Salary: 100},
	{ID: 2, Name: "Bob", Department: "IT", Salary: 200},
	{ID: 3, Name: "Cid", Department: "Sales", Salary: 300},
	{ID: 4, Name: "Dee", Department: "IT", Salary: 400},
	{ID: 5, Name: "Eve", Department: "HR", Salary: 500},
}

func compiler() *compile.Compiler {
	return compile.New(member.NewStrategy(member.ShapeOf[employee]()))
}

func names(t *testing.T, q Queryable) []string {
	t.Helper()
	items, err := q.ToSlice(context.Background())
	require.NoError(t, err)
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.(employee).Name
	}
	return out
}

func TestWhereAndCount(t *testing.T) {
	c := compiler()
	pred, err := c.Filter(&descriptor.FilterDescriptor{Member: "Salary", Operator: descriptor.OpIsGreaterThan, Value: 250})
	require.NoError(t, err)

	q := From(employees).Where(pred)
	n, err := q.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"Cid", "Dee", "Eve"}, names(t, q))
}

func TestOrderByThenBy(t *testing.T) {
	c := compiler()
	dept, err := c.Key("Department")
	require.NoError(t, err)
	salary, err := c.Key("Salary")
	require.NoError(t, err)

	q := From(employees).OrderBy(dept, descriptor.Ascending).ThenBy(salary, descriptor.Descending)
	assert.Equal(t, []string{"Eve", "Dee", "Bob", "Cid", "Ann"}, names(t, q))

	// OrderBy discards the previous chain.
	q = q.OrderBy(salary, descriptor.Ascending)
	assert.Equal(t, []string{"Ann", "Bob", "Cid", "Dee", "Eve"}, names(t, q))
}

func TestThenByWithoutOrderBy(t *testing.T) {
	salary, err := compiler().Key("Salary")
	require.NoError(t, err)
	q := From(employees).ThenBy(salary, descriptor.Descending)
	assert.Equal(t, []string{"Eve", "Dee", "Cid", "Bob", "Ann"}, names(t, q))
}

func TestSkipTake(t *testing.T) {
	tests := []struct {
		name string
		skip int
		take int
		want []string
	}{
		{"first page", 0, 2, []string{"Ann", "Bob"}},
		{"middle page", 2, 2, []string{"Cid", "Dee"}},
		{"partial last page", 4, 2, []string{"Eve"}},
		{"past the end", 10, 2, []string{}},
		{"take more than available", 0, 10, []string{"Ann", "Bob", "Cid", "Dee", "Eve"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := From(employees).Skip(tt.skip).Take(tt.take)
			assert.Equal(t, tt.want, names(t, q))
		})
	}
}

func TestNegativeTake(t *testing.T) {
	_, err := From(employees).Take(-1).ToSlice(context.Background())
	assert.Error(t, err)
}

func TestImmutable(t *testing.T) {
	salary, err := compiler().Key("Salary")
	require.NoError(t, err)

	base := From(employees)
	sorted := base.OrderBy(salary, descriptor.Descending)
	_ = sorted.Take(1)

	assert.Equal(t, []string{"Ann", "Bob", "Cid", "Dee", "Eve"}, names(t, base))
	assert.Equal(t, []string{"Eve", "Dee", "Cid", "Bob", "Ann"}, names(t, sorted))
}

func TestGroupBy(t *testing.T) {
	dept, err := compiler().Key("Department")
	require.NoError(t, err)

	q := From(employees).GroupBy(dept)
	assert.Equal(t, member.ShapeOf[*Grouping]().Type, q.Shape().Type)

	items, err := q.ToSlice(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	var keys []interface{}
	total := 0
	for _, item := range items {
		g := item.(*Grouping)
		keys = append(keys, g.Key)
		total += len(g.Items)
	}
	assert.Equal(t, []interface{}{"Sales", "IT", "HR"}, keys)
	assert.Equal(t, len(employees), total)
}

func TestGroupByPointerKeys(t *testing.T) {
	type row struct{ Code *int }
	one, two := 1, 2
	otherOne := 1
	rows := []row{{Code: &one}, {Code: nil}, {Code: &otherOne}, {Code: &two}}

	key, err := compile.New(member.NewStrategy(member.ShapeOf[row]())).Key("Code")
	require.NoError(t, err)

	items, err := From(rows).GroupBy(key).ToSlice(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 1, items[0].(*Grouping).Key)
	assert.Len(t, items[0].(*Grouping).Items, 2)
	assert.Nil(t, items[1].(*Grouping).Key)
}

func TestSelect(t *testing.T) {
	q := From(employees).Select(member.ShapeOf[string](), func(item interface{}) (interface{}, error) {
		return item.(employee).Department, nil
	})
	assert.Equal(t, member.ShapeOf[string]().Type, q.Shape().Type)

	items, err := q.Take(2).ToSlice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Sales", "IT"}, items)
}

func TestFromSlice(t *testing.T) {
	q, err := FromSlice([]*employee{{Name: "X"}, {Name: "Y"}})
	require.NoError(t, err)
	n, err := q.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = FromSlice(42)
	assert.Error(t, err)
}

func TestLazy(t *testing.T) {
	loads := 0
	errLoad := errors.New("boom")
	fail := false
	q := Lazy(member.ShapeOf[employee](), func(context.Context) ([]interface{}, error) {
		loads++
		if fail {
			return nil, errLoad
		}
		return []interface{}{employees[0], employees[1]}, nil
	}, true)

	assert.True(t, RequiresStableOrdering(q))
	assert.True(t, RequiresStableOrdering(q.Take(1)))
	assert.False(t, RequiresStableOrdering(From(employees)))
	assert.Equal(t, 0, loads)

	n, err := q.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, loads)

	fail = true
	_, err = q.ToSlice(context.Background())
	assert.ErrorIs(t, err, errLoad)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := From(employees).Skip(1).ToSlice(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
