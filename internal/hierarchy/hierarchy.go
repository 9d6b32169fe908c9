// Package hierarchy runs requests over parent/child data: filter matches are
// widened with their ancestors and aggregates are computed per parent over
// whole subtrees.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/nlstn/go-datasource/internal/aggregate"
	"github.com/nlstn/go-datasource/internal/compile"
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/expr"
	"github.com/nlstn/go-datasource/internal/observability"
	"github.com/nlstn/go-datasource/internal/pipeline"
	"github.com/nlstn/go-datasource/internal/queryable"
)

// DefaultMaxDepth bounds the number of closure iterations.
const DefaultMaxDepth = 512

var (
	// ErrHierarchyDepthExceeded is returned when a closure does not settle
	// within the configured number of iterations.
	ErrHierarchyDepthExceeded = errors.New("hierarchy depth exceeded")
	// ErrMissingSelector is returned when the id or parent id member is empty.
	ErrMissingSelector = errors.New("hierarchy requires id and parent id members")
)

// Options configures a hierarchical execution.
type Options struct {
	pipeline.Options
	// ID and ParentID are member paths of the identifier and parent identifier.
	ID       string
	ParentID string
	// Root optionally restricts the returned rows, typically to the top level.
	// Aggregates are seeded from the restricted rows.
	Root descriptor.Filter
	// MaxDepth defaults to DefaultMaxDepth.
	MaxDepth int
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Result is one page of a hierarchical query.
type Result struct {
	Data  []interface{} `json:"data"`
	Total int           `json:"total"`
	// AggregateResults maps a parent key to the aggregates of the subtrees
	// below it. A nil parent has the key "".
	AggregateResults map[string]map[string]aggregate.Result `json:"aggregateResults,omitempty"`
	Errors           interface{}                            `json:"errors,omitempty"`
}

type tree struct {
	compiler *compile.Compiler
	id       func(interface{}) (interface{}, error)
	parentID func(interface{}) (interface{}, error)
	opts     Options
}

// Execute runs req over source as a tree. Filters select matches, which are
// returned together with all their ancestors; sorting, paging and grouping
// then apply to that set. Request aggregates are computed per parent key.
func Execute(ctx context.Context, source queryable.Queryable, req *descriptor.Request, opts Options) (*Result, error) {
	if opts.ID == "" || opts.ParentID == "" {
		return nil, ErrMissingSelector
	}
	r := descriptor.Request{}
	if req != nil {
		r = *req
	}

	shape := source.Shape()
	t := &tree{compiler: opts.Compiler(shape), opts: opts}

	idKey, err := t.compiler.Key(opts.ID)
	if err != nil {
		return nil, err
	}
	parentKey, err := t.compiler.Key(opts.ParentID)
	if err != nil {
		return nil, err
	}
	t.id, t.parentID = idKey.Compile(), parentKey.Compile()

	var filter, root *expr.Lambda
	if f := r.Filter(); f != nil {
		if filter, err = t.compiler.Filter(f); err != nil {
			return nil, err
		}
	}
	if opts.Root != nil {
		if root, err = t.compiler.Filter(opts.Root); err != nil {
			return nil, err
		}
	}
	var projection *aggregate.Projection
	if fns := descriptor.Functions(r.Aggregates); len(fns) > 0 {
		functions, err := aggregate.Compile(t.compiler, fns)
		if err != nil {
			return nil, err
		}
		if projection, err = aggregate.NewProjection(functions); err != nil {
			return nil, err
		}
	}

	all, err := source.ToSlice(ctx)
	if err != nil {
		return nil, err
	}
	full := queryable.FromElements(shape, all)

	visible := full
	if filter != nil {
		matches, err := full.Where(filter).ToSlice(ctx)
		if err != nil {
			return nil, err
		}
		var withAncestors []interface{}
		err = closure(ctx, opts.Observability, func(ctx context.Context) error {
			withAncestors, err = t.ancestors(ctx, full, all, matches)
			return err
		})
		if err != nil {
			return nil, err
		}
		visible = queryable.FromElements(shape, withAncestors)
	}

	data := visible
	if root != nil {
		data = data.Where(root)
	}

	page := r
	page.Filters = nil
	page.Aggregates = nil
	pipeOpts := opts.Options
	policy := pipeOpts.StableOrdering
	if policy == nil {
		policy = pipeline.ProviderStableOrdering
	}
	pipeOpts.StableOrdering = func(queryable.Queryable) bool { return policy(source) }

	res, err := pipeline.Execute(ctx, data, &page, pipeOpts)
	if err != nil {
		return nil, err
	}
	out := &Result{Data: res.Data, Total: res.Total, Errors: res.Errors}

	if projection != nil {
		err = closure(ctx, opts.Observability, func(ctx context.Context) error {
			out.AggregateResults, err = t.aggregates(ctx, data, visible, projection)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func closure(ctx context.Context, cfg *observability.Config, fn func(context.Context) error) error {
	ctx, s := cfg.StartStage(ctx, observability.StageClosure)
	err := fn(ctx)
	s.End(err)
	return err
}

// ancestors returns matches and every ancestor of a match, in source order.
func (t *tree) ancestors(ctx context.Context, full queryable.Queryable, all, matches []interface{}) ([]interface{}, error) {
	included := newKeySet()
	if err := t.include(included, matches, t.id); err != nil {
		return nil, err
	}

	frontier := matches
	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= t.opts.maxDepth() {
			return nil, fmt.Errorf("%w: ancestor closure after %d iterations", ErrHierarchyDepthExceeded, depth)
		}
		parents, err := t.keys(frontier, t.parentID)
		if err != nil {
			return nil, err
		}
		if len(parents) == 0 {
			break
		}
		pred, err := t.compiler.In(t.opts.ID, parents)
		if err != nil {
			return nil, err
		}
		found, err := full.Where(pred).ToSlice(ctx)
		if err != nil {
			return nil, err
		}
		if frontier, err = t.fresh(included, found, t.id); err != nil {
			return nil, err
		}
	}

	out := make([]interface{}, 0, included.len())
	for _, item := range all {
		id, err := t.id(item)
		if err != nil {
			return nil, err
		}
		if included.has(id) {
			out = append(out, item)
		}
	}
	return out, nil
}

// descendants returns seeds and every descendant of a seed within scope.
func (t *tree) descendants(ctx context.Context, scope queryable.Queryable, seeds []interface{}) ([]interface{}, error) {
	included := newKeySet()
	if err := t.include(included, seeds, t.id); err != nil {
		return nil, err
	}
	out := append([]interface{}(nil), seeds...)

	frontier := seeds
	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= t.opts.maxDepth() {
			return nil, fmt.Errorf("%w: descendant closure after %d iterations", ErrHierarchyDepthExceeded, depth)
		}
		ids, err := t.keys(frontier, t.id)
		if err != nil {
			return nil, err
		}
		pred, err := t.compiler.In(t.opts.ParentID, ids)
		if err != nil {
			return nil, err
		}
		found, err := scope.Where(pred).ToSlice(ctx)
		if err != nil {
			return nil, err
		}
		if frontier, err = t.fresh(included, found, t.id); err != nil {
			return nil, err
		}
		out = append(out, frontier...)
	}
	return out, nil
}

// aggregates groups the seeds by parent key and aggregates each group's
// subtree within scope.
func (t *tree) aggregates(ctx context.Context, seeds, scope queryable.Queryable, projection *aggregate.Projection) (map[string]map[string]aggregate.Result, error) {
	parentKey, err := t.compiler.Key(t.opts.ParentID)
	if err != nil {
		return nil, err
	}
	groups, err := seeds.GroupBy(parentKey).ToSlice(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]aggregate.Result, len(groups))
	for _, item := range groups {
		g := item.(*queryable.Grouping)
		subtree, err := t.descendants(ctx, scope, g.Items)
		if err != nil {
			return nil, err
		}
		_, results, err := aggregate.Scope(projection, subtree)
		if err != nil {
			return nil, err
		}
		values := make(map[string]aggregate.Result, len(results))
		for _, res := range results {
			values[res.FunctionName] = res
		}
		out[ParentKey(g.Key)] = values
	}
	return out, nil
}

// ParentKey formats a parent identifier as an aggregate result key.
func ParentKey(key interface{}) string {
	key = expr.Normalize(key)
	if key == nil {
		return ""
	}
	return fmt.Sprint(key)
}

// keys evaluates sel over items and returns the distinct non-nil values.
func (t *tree) keys(items []interface{}, sel func(interface{}) (interface{}, error)) ([]interface{}, error) {
	seen := newKeySet()
	var out []interface{}
	for _, item := range items {
		k, err := sel(item)
		if err != nil {
			return nil, err
		}
		k = expr.Normalize(k)
		if k == nil || seen.has(k) {
			continue
		}
		seen.add(k)
		out = append(out, k)
	}
	return out, nil
}

func (t *tree) include(set *keySet, items []interface{}, sel func(interface{}) (interface{}, error)) error {
	for _, item := range items {
		k, err := sel(item)
		if err != nil {
			return err
		}
		set.add(k)
	}
	return nil
}

// fresh adds the keys of items to set and returns the items that were not in it.
func (t *tree) fresh(set *keySet, items []interface{}, sel func(interface{}) (interface{}, error)) ([]interface{}, error) {
	var out []interface{}
	for _, item := range items {
		k, err := sel(item)
		if err != nil {
			return nil, err
		}
		if set.has(k) {
			continue
		}
		set.add(k)
		out = append(out, item)
	}
	return out, nil
}

// keySet holds normalized identifiers.
type keySet struct {
	m map[interface{}]struct{}
}

func newKeySet() *keySet {
	return &keySet{m: make(map[interface{}]struct{})}
}

func hashKey(k interface{}) interface{} {
	k = expr.Normalize(k)
	if k == nil || reflect.TypeOf(k).Comparable() {
		return k
	}
	return fmt.Sprintf("%#v", k)
}

func (s *keySet) add(k interface{}) {
	s.m[hashKey(k)] = struct{}{}
}

func (s *keySet) has(k interface{}) bool {
	_, ok := s.m[hashKey(k)]
	return ok
}

func (s *keySet) len() int { return len(s.m) }
