package queryable

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/expr"
)

type operator interface {
	apply(items []interface{}) ([]interface{}, error)
}

type whereOp struct {
	predicate *expr.Lambda
}

func (o whereOp) apply(items []interface{}) ([]interface{}, error) {
	pred, err := o.predicate.CompilePredicate()
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		ok, err := pred(item)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

type sortKey struct {
	key       *expr.Lambda
	direction descriptor.SortDirection
}

type orderOp struct {
	keys []sortKey
}

func (o orderOp) apply(items []interface{}) ([]interface{}, error) {
	fns := make([]func(interface{}) (interface{}, error), len(o.keys))
	for i, k := range o.keys {
		fns[i] = k.key.Compile()
	}

	type row struct {
		item interface{}
		keys []interface{}
	}
	rows := make([]row, len(items))
	for i, item := range items {
		keys := make([]interface{}, len(fns))
		for j, fn := range fns {
			v, err := fn(item)
			if err != nil {
				return nil, err
			}
			keys[j] = v
		}
		rows[i] = row{item: item, keys: keys}
	}

	sort.SliceStable(rows, func(a, b int) bool {
		for j, k := range o.keys {
			c := expr.Order(rows[a].keys[j], rows[b].keys[j])
			if c == 0 {
				continue
			}
			if k.direction == descriptor.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r.item
	}
	return out, nil
}

type skipOp struct {
	n int
}

func (o skipOp) apply(items []interface{}) ([]interface{}, error) {
	if o.n <= 0 {
		return items, nil
	}
	if o.n >= len(items) {
		return []interface{}{}, nil
	}
	return items[o.n:], nil
}

type takeOp struct {
	n int
}

func (o takeOp) apply(items []interface{}) ([]interface{}, error) {
	if o.n < 0 {
		return nil, fmt.Errorf("take count must not be negative, got %d", o.n)
	}
	if o.n >= len(items) {
		return items, nil
	}
	return items[:o.n], nil
}

// Grouping is the element produced by GroupBy.
type Grouping struct {
	Key   interface{}
	Items []interface{}
}

type groupOp struct {
	key *expr.Lambda
}

func (o groupOp) apply(items []interface{}) ([]interface{}, error) {
	fn := o.key.Compile()
	index := make(map[interface{}]*Grouping)
	var groups []interface{}
	for _, item := range items {
		k, err := fn(item)
		if err != nil {
			return nil, err
		}
		k = expr.Normalize(k)
		mk := groupKey(k)
		g, ok := index[mk]
		if !ok {
			g = &Grouping{Key: k}
			index[mk] = g
			groups = append(groups, g)
		}
		g.Items = append(g.Items, item)
	}
	return groups, nil
}

// groupKey returns a map key for k, printing values that are not hashable.
func groupKey(k interface{}) interface{} {
	if k == nil || reflect.TypeOf(k).Comparable() {
		return k
	}
	return fmt.Sprintf("%#v", k)
}

type selectOp struct {
	selector Selector
}

func (o selectOp) apply(items []interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(items))
	for i, item := range items {
		v, err := o.selector(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
