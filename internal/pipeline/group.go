package pipeline

import (
	"context"
	"fmt"

	"github.com/nlstn/go-datasource/internal/aggregate"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/queryable"
)

// keyEquality is one enclosing group: items whose member equals key.
type keyEquality struct {
	member string
	key    interface{}
}

// groups builds level depth over src. Items are grouped from src, which may
// be paged; aggregates are scoped to notPaged narrowed by the key of this
// group and of every enclosing group.
func (p *plan) groups(ctx context.Context, src, notPaged queryable.Queryable, depth int, enclosing []keyEquality, opts Options) queryable.Queryable {
	lvl := p.levels[depth]
	return src.
		GroupBy(lvl.key).
		OrderBy(p.groupKey, lvl.Direction).
		Select(member.ShapeOf[*Group](), func(item interface{}) (interface{}, error) {
			g, ok := item.(*queryable.Grouping)
			if !ok {
				return nil, fmt.Errorf("group level %s: unexpected element %T", lvl.Member, item)
			}
			return p.project(ctx, g, notPaged, depth, enclosing, opts)
		})
}

func (p *plan) project(ctx context.Context, g *queryable.Grouping, notPaged queryable.Queryable, depth int, enclosing []keyEquality, opts Options) (*Group, error) {
	lvl := p.levels[depth]
	scope := append(enclosing[:len(enclosing):len(enclosing)], keyEquality{member: lvl.Member, key: g.Key})

	out := &Group{
		Key:       g.Key,
		ItemCount: len(g.Items),
		Member:    lvl.Member,
	}

	if depth+1 < len(p.levels) {
		out.HasSubgroups = true
		inner := queryable.FromElements(p.shape, g.Items)
		subgroups, err := p.groups(ctx, inner, notPaged, depth+1, scope, opts).ToSlice(ctx)
		if err != nil {
			return nil, err
		}
		out.Subgroups = make([]*Group, len(subgroups))
		for i, sg := range subgroups {
			out.Subgroups[i] = sg.(*Group)
		}
	} else {
		items, err := opts.project(g.Items)
		if err != nil {
			return nil, err
		}
		out.Items = items
	}

	if lvl.projection != nil {
		scoped := notPaged
		for _, k := range scope {
			pred, err := p.compiler.KeyEquals(k.member, k.key)
			if err != nil {
				return nil, err
			}
			scoped = scoped.Where(pred)
		}
		items, err := scoped.ToSlice(ctx)
		if err != nil {
			return nil, err
		}
		record, results, err := aggregate.Scope(lvl.projection, items)
		if err != nil {
			return nil, err
		}
		out.AggregateProjection = record
		out.Aggregates = results
	}
	return out, nil
}
