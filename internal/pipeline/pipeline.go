// Package pipeline executes a query request against a queryable source:
// filter, total, aggregates, sort, page, group and materialize.
package pipeline

import (
	"context"

	"github.com/nlstn/go-datasource/internal/aggregate"
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/observability"
	"github.com/nlstn/go-datasource/internal/queryable"
)

// Execute runs req against source. The request is not modified; a synthetic
// sort added for stable paging never appears in it.
func Execute(ctx context.Context, source queryable.Queryable, req *descriptor.Request, opts Options) (*Result, error) {
	r := descriptor.Request{}
	if req != nil {
		r = *req
	}
	r.Normalize()

	logger := observability.LoggerWithTrace(ctx, opts.logger())
	cfg := opts.Observability

	var p *plan
	err := stage(ctx, cfg, observability.StageCompile, func(context.Context) error {
		var err error
		p, err = newPlan(source, &r, opts, logger)
		return err
	})
	if err != nil {
		return nil, err
	}

	data := source
	if p.filter != nil {
		data = data.Where(p.filter)
		logger.Debug("datasource: filter compiled", "predicate", p.filter.String())
	}

	result := &Result{Errors: opts.Errors}
	err = stage(ctx, cfg, observability.StageTotal, func(ctx context.Context) error {
		var err error
		result.Total, err = data.Count(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if p.aggregates != nil {
		err = stage(ctx, cfg, observability.StageAggregates, func(ctx context.Context) error {
			scope := source
			if p.filter != nil {
				scope = scope.Where(p.filter)
			}
			items, err := scope.ToSlice(ctx)
			if err != nil {
				return err
			}
			_, results, err := aggregate.Scope(p.aggregates, items)
			if err != nil {
				return err
			}
			result.AggregateResults = resultMap(results)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	data = p.order(data)
	notPaged := data
	if r.Paged() {
		data = data.Skip(r.Skip()).Take(r.PageSize)
	}

	if len(p.levels) > 0 {
		data = p.groups(ctx, data, notPaged, 0, nil, opts)
	}

	err = stage(ctx, cfg, observability.StageMaterialize, func(ctx context.Context) error {
		items, err := data.ToSlice(ctx)
		if err != nil {
			return err
		}
		if len(p.levels) == 0 {
			items, err = opts.project(items)
			if err != nil {
				return err
			}
		}
		result.Data = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// stage runs fn as one observed pipeline stage.
func stage(ctx context.Context, cfg *observability.Config, name string, fn func(context.Context) error) error {
	ctx, s := cfg.StartStage(ctx, name)
	err := fn(ctx)
	s.End(err)
	return err
}
