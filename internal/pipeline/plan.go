package pipeline

import (
	"log/slog"

	"github.com/nlstn/go-datasource/internal/aggregate"
	"github.com/nlstn/go-datasource/internal/compile"
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/expr"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/queryable"
)

type sortKey struct {
	descriptor.SortDescriptor
	key *expr.Lambda
}

type level struct {
	descriptor.GroupDescriptor
	key        *expr.Lambda
	projection *aggregate.Projection
}

// plan holds everything compiled from a request. It is built before the
// source is touched so that invalid requests fail without enumerating it.
type plan struct {
	shape      member.Shape
	compiler   *compile.Compiler
	filter     *expr.Lambda
	aggregates *aggregate.Projection
	sorts      []sortKey
	levels     []level
	groupKey   *expr.Lambda
}

func newPlan(source queryable.Queryable, r *descriptor.Request, opts Options, logger *slog.Logger) (*plan, error) {
	shape := source.Shape()
	p := &plan{shape: shape, compiler: opts.Compiler(shape)}

	if f := r.Filter(); f != nil {
		filter, err := p.compiler.Filter(f)
		if err != nil {
			return nil, err
		}
		p.filter = filter
	}

	if fns := descriptor.Functions(r.Aggregates); len(fns) > 0 {
		projection, err := projectionFor(p.compiler, fns)
		if err != nil {
			return nil, err
		}
		p.aggregates = projection
	}

	sorts := make([]descriptor.SortDescriptor, 0, len(r.Groups)+len(r.Sorts)+1)
	for _, g := range r.Groups {
		sorts = append(sorts, g.Sort())
	}
	sorts = append(sorts, r.Sorts...)
	if len(r.Sorts) == 0 && opts.stableOrdering()(source) {
		if name, ok := member.FirstOrderable(shape); ok {
			sorts = append(sorts, descriptor.SortDescriptor{Member: name, Direction: descriptor.Ascending})
			logger.Debug("datasource: synthetic sort", "member", name)
		} else {
			logger.Debug("datasource: no orderable member for synthetic sort")
		}
	}
	for _, s := range sorts {
		key, err := p.compiler.Sort(s)
		if err != nil {
			return nil, err
		}
		p.sorts = append(p.sorts, sortKey{SortDescriptor: s, key: key})
	}

	if len(r.Groups) > 0 {
		groupKey, err := compile.New(member.NewStrategy(member.ShapeOf[*queryable.Grouping]())).Key("Key")
		if err != nil {
			return nil, err
		}
		p.groupKey = groupKey
	}
	for _, g := range r.Groups {
		key, err := p.compiler.Key(g.Member)
		if err != nil {
			return nil, err
		}
		lvl := level{GroupDescriptor: g, key: key}
		if len(g.AggregateFunctions) > 0 {
			fns := descriptor.Functions([]descriptor.AggregateDescriptor{{AggregateFunctions: g.AggregateFunctions}})
			if lvl.projection, err = projectionFor(p.compiler, fns); err != nil {
				return nil, err
			}
		}
		p.levels = append(p.levels, lvl)
	}
	return p, nil
}

func projectionFor(c *compile.Compiler, fns []descriptor.AggregateFunction) (*aggregate.Projection, error) {
	functions, err := aggregate.Compile(c, fns)
	if err != nil {
		return nil, err
	}
	return aggregate.NewProjection(functions)
}

// order applies the sort chain to q.
func (p *plan) order(q queryable.Queryable) queryable.Queryable {
	for i, s := range p.sorts {
		if i == 0 {
			q = q.OrderBy(s.key, s.Direction)
		} else {
			q = q.ThenBy(s.key, s.Direction)
		}
	}
	return q
}
