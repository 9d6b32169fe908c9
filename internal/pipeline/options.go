package pipeline

import (
	"log/slog"

	"github.com/nlstn/go-datasource/internal/compile"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/observability"
	"github.com/nlstn/go-datasource/internal/queryable"
)

// Selector projects one materialized row.
type Selector func(item interface{}) (interface{}, error)

// StableOrderingPolicy reports whether paging over q needs an explicit order.
// When it does and the request has no sort, a synthetic ascending sort on the
// first orderable member is applied.
type StableOrderingPolicy func(q queryable.Queryable) bool

// ProviderStableOrdering asks the provider through queryable.RequiresStableOrdering.
func ProviderStableOrdering(q queryable.Queryable) bool {
	return queryable.RequiresStableOrdering(q)
}

// AlwaysStableOrdering applies the synthetic sort for every provider.
func AlwaysStableOrdering(queryable.Queryable) bool { return true }

// Options configures one execution.
type Options struct {
	// Lift guards member chains against nil intermediates.
	Lift bool
	// Resolver resolves members of interface-typed items.
	Resolver member.Resolver
	// StableOrdering defaults to ProviderStableOrdering.
	StableOrdering StableOrderingPolicy
	// Selector projects rows; nil keeps them as they are.
	Selector Selector
	// Errors is copied into the result verbatim.
	Errors interface{}
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Observability may be nil.
	Observability *observability.Config
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) stableOrdering() StableOrderingPolicy {
	if o.StableOrdering == nil {
		return ProviderStableOrdering
	}
	return o.StableOrdering
}

// Compiler returns the compiler for items of shape configured by these options.
func (o Options) Compiler(shape member.Shape) *compile.Compiler {
	return compile.New(member.NewStrategy(shape, member.WithLifting(o.Lift), member.WithResolver(o.Resolver)))
}

func (o Options) project(items []interface{}) ([]interface{}, error) {
	if o.Selector == nil {
		return items, nil
	}
	out := make([]interface{}, len(items))
	for i, item := range items {
		v, err := o.Selector(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
