// Package queryable defines the composable sequence the query pipeline runs
// against and provides the in-memory implementation.
package queryable

import (
	"context"
	"fmt"
	"reflect"

	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/expr"
	"github.com/nlstn/go-datasource/internal/member"
)

// Selector maps one element to another.
type Selector func(item interface{}) (interface{}, error)

// Queryable is a lazily evaluated sequence. Every operator returns a new
// Queryable and leaves the receiver unchanged; nothing is evaluated until
// Count or ToSlice.
type Queryable interface {
	// Shape describes the elements of the sequence.
	Shape() member.Shape
	Where(predicate *expr.Lambda) Queryable
	// OrderBy starts a new ordering, discarding any previous one.
	OrderBy(key *expr.Lambda, direction descriptor.SortDirection) Queryable
	// ThenBy adds a tie-breaker to the current ordering.
	ThenBy(key *expr.Lambda, direction descriptor.SortDirection) Queryable
	Skip(n int) Queryable
	Take(n int) Queryable
	// GroupBy yields one *Grouping per distinct key in order of first appearance.
	GroupBy(key *expr.Lambda) Queryable
	Select(shape member.Shape, selector Selector) Queryable
	Count(ctx context.Context) (int, error)
	ToSlice(ctx context.Context) ([]interface{}, error)
}

// StableOrderingRequirer is implemented by providers that only page
// deterministically over an ordered sequence.
type StableOrderingRequirer interface {
	RequiresStableOrdering() bool
}

// RequiresStableOrdering reports whether q declares that paging needs an explicit order.
func RequiresStableOrdering(q Queryable) bool {
	r, ok := q.(StableOrderingRequirer)
	return ok && r.RequiresStableOrdering()
}

// Loader produces the elements of a source.
type Loader func(ctx context.Context) ([]interface{}, error)

type source struct {
	shape  member.Shape
	load   Loader
	stable bool
}

// Lazy creates a queryable whose elements are produced by load on every
// enumeration. requiresStable marks providers that need an explicit order
// for deterministic paging.
func Lazy(shape member.Shape, load Loader, requiresStable bool) Queryable {
	return &query{src: &source{shape: shape, load: load, stable: requiresStable}, shape: shape}
}

// From creates an in-memory queryable over items.
func From[T any](items []T) Queryable {
	elems := make([]interface{}, len(items))
	for i, item := range items {
		elems[i] = item
	}
	return fromElements(member.ShapeOf[T](), elems)
}

// FromSlice creates an in-memory queryable over any slice or array value.
func FromSlice(items interface{}) (Queryable, error) {
	v := reflect.ValueOf(items)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("queryable source must be a slice, got %T", items)
	}
	elems := make([]interface{}, v.Len())
	for i := range elems {
		elems[i] = v.Index(i).Interface()
	}
	return fromElements(member.Shape{Type: v.Type().Elem()}, elems), nil
}

// FromElements creates an in-memory queryable over elements of a known shape.
func FromElements(shape member.Shape, elems []interface{}) Queryable {
	return fromElements(shape, elems)
}

func fromElements(shape member.Shape, elems []interface{}) Queryable {
	load := func(context.Context) ([]interface{}, error) {
		out := make([]interface{}, len(elems))
		copy(out, elems)
		return out, nil
	}
	return &query{src: &source{shape: shape, load: load}, shape: shape}
}

type query struct {
	src   *source
	shape member.Shape
	ops   []operator
}

func (q *query) with(op operator, shape member.Shape) *query {
	ops := make([]operator, len(q.ops), len(q.ops)+1)
	copy(ops, q.ops)
	return &query{src: q.src, shape: shape, ops: append(ops, op)}
}

func (q *query) Shape() member.Shape { return q.shape }

func (q *query) RequiresStableOrdering() bool { return q.src.stable }

func (q *query) Where(predicate *expr.Lambda) Queryable {
	return q.with(whereOp{predicate: predicate}, q.shape)
}

func (q *query) OrderBy(key *expr.Lambda, direction descriptor.SortDirection) Queryable {
	return q.with(orderOp{keys: []sortKey{{key: key, direction: direction}}}, q.shape)
}

func (q *query) ThenBy(key *expr.Lambda, direction descriptor.SortDirection) Queryable {
	if n := len(q.ops); n > 0 {
		if last, ok := q.ops[n-1].(orderOp); ok {
			keys := append(append([]sortKey(nil), last.keys...), sortKey{key: key, direction: direction})
			ops := append(append([]operator(nil), q.ops[:n-1]...), orderOp{keys: keys})
			return &query{src: q.src, shape: q.shape, ops: ops}
		}
	}
	return q.OrderBy(key, direction)
}

func (q *query) Skip(n int) Queryable {
	return q.with(skipOp{n: n}, q.shape)
}

func (q *query) Take(n int) Queryable {
	return q.with(takeOp{n: n}, q.shape)
}

func (q *query) GroupBy(key *expr.Lambda) Queryable {
	return q.with(groupOp{key: key}, member.ShapeOf[*Grouping]())
}

func (q *query) Select(shape member.Shape, selector Selector) Queryable {
	return q.with(selectOp{selector: selector}, shape)
}

func (q *query) Count(ctx context.Context) (int, error) {
	items, err := q.ToSlice(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (q *query) ToSlice(ctx context.Context) ([]interface{}, error) {
	items, err := q.src.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, op := range q.ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if items, err = op.apply(items); err != nil {
			return nil, err
		}
	}
	return items, nil
}
