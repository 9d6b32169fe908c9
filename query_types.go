package datasource

import (
	"github.com/nlstn/go-datasource/internal/aggregate"
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/hierarchy"
	"github.com/nlstn/go-datasource/internal/member"
	"github.com/nlstn/go-datasource/internal/pipeline"
	"github.com/nlstn/go-datasource/internal/queryable"
)

// Request describes one query: filters are combined with AND, groups are
// applied outermost first, Page is 1-based and PageSize <= 0 returns every item.
//
// Example:
//
//	req := &datasource.Request{
//	    Filters:    []datasource.Filter{datasource.And(ageFilter, nameFilter)},
//	    Sorts:      []datasource.SortDescriptor{{Member: "Name"}},
//	    Groups:     []datasource.GroupDescriptor{{SortDescriptor: datasource.SortDescriptor{Member: "Department"}}},
//	    Aggregates: []datasource.AggregateDescriptor{datasource.NewAggregateDescriptor("Salary", datasource.AggregateSum)},
//	    Page:       2,
//	    PageSize:   10,
//	}
type Request = descriptor.Request

// Filter is either a *FilterDescriptor or a *CompositeFilterDescriptor.
type Filter = descriptor.Filter

// FilterDescriptor compares one member with a value.
type FilterDescriptor = descriptor.FilterDescriptor

// CompositeFilterDescriptor combines child filters with one logical operator.
type CompositeFilterDescriptor = descriptor.CompositeFilterDescriptor

// FilterOperator re-exports the supported filter operators.
type FilterOperator = descriptor.FilterOperator

// LogicalOperator re-exports the supported logical operators.
type LogicalOperator = descriptor.LogicalOperator

// SortDescriptor orders items by a member.
type SortDescriptor = descriptor.SortDescriptor

// SortDirection orders keys ascending or descending.
type SortDirection = descriptor.SortDirection

// GroupDescriptor groups items by a member.
type GroupDescriptor = descriptor.GroupDescriptor

// AggregateDescriptor requests aggregate kinds over one member.
type AggregateDescriptor = descriptor.AggregateDescriptor

// AggregateFunction requests one aggregate over a member.
type AggregateFunction = descriptor.AggregateFunction

// AggregateKind names an aggregate function.
type AggregateKind = descriptor.AggregateKind

// AggregateResult is one computed aggregate value.
type AggregateResult = aggregate.Result

// Result is one page of a flat or grouped query.
type Result = pipeline.Result

// Group is one group of a grouped result.
type Group = pipeline.Group

// TreeResult is one page of a hierarchical query.
type TreeResult = hierarchy.Result

// Selector projects one returned row.
type Selector = pipeline.Selector

// StableOrderingPolicy reports whether paging over a source needs an explicit order.
type StableOrderingPolicy = pipeline.StableOrderingPolicy

// Queryable is a lazily evaluated, composable collection of items.
type Queryable = queryable.Queryable

// Shape describes the items of a Queryable.
type Shape = member.Shape

// Column describes one column of a tabular shape.
type Column = member.Column

// Row is implemented by tabular items.
type Row = member.Row

// Resolver resolves a member of an interface-typed item.
type Resolver = member.Resolver

// PropertyDescriptor exposes one property of a type through a getter.
type PropertyDescriptor = member.PropertyDescriptor

// Filter operators.
const (
	OpIsLessThan             = descriptor.OpIsLessThan
	OpIsLessThanOrEqualTo    = descriptor.OpIsLessThanOrEqualTo
	OpIsEqualTo              = descriptor.OpIsEqualTo
	OpIsNotEqualTo           = descriptor.OpIsNotEqualTo
	OpIsGreaterThanOrEqualTo = descriptor.OpIsGreaterThanOrEqualTo
	OpIsGreaterThan          = descriptor.OpIsGreaterThan
	OpStartsWith             = descriptor.OpStartsWith
	OpEndsWith               = descriptor.OpEndsWith
	OpContains               = descriptor.OpContains
	OpIsContainedIn          = descriptor.OpIsContainedIn
	OpDoesNotContain         = descriptor.OpDoesNotContain
	OpIsNull                 = descriptor.OpIsNull
	OpIsNotNull              = descriptor.OpIsNotNull
	OpIsEmpty                = descriptor.OpIsEmpty
	OpIsNotEmpty             = descriptor.OpIsNotEmpty
	OpIsNullOrEmpty          = descriptor.OpIsNullOrEmpty
	OpIsNotNullOrEmpty       = descriptor.OpIsNotNullOrEmpty
)

// Logical operators, sort directions and built-in aggregate kinds.
const (
	LogicalAnd = descriptor.LogicalAnd
	LogicalOr  = descriptor.LogicalOr

	Ascending  = descriptor.Ascending
	Descending = descriptor.Descending

	AggregateSum     = descriptor.AggregateSum
	AggregateCount   = descriptor.AggregateCount
	AggregateAverage = descriptor.AggregateAverage
	AggregateMin     = descriptor.AggregateMin
	AggregateMax     = descriptor.AggregateMax
)

// And combines filters with a logical AND.
func And(children ...Filter) *CompositeFilterDescriptor {
	return descriptor.And(children...)
}

// Or combines filters with a logical OR.
func Or(children ...Filter) *CompositeFilterDescriptor {
	return descriptor.Or(children...)
}

// NewAggregateDescriptor requests the given kinds over member.
func NewAggregateDescriptor(member string, kinds ...AggregateKind) AggregateDescriptor {
	return descriptor.NewAggregateDescriptor(member, kinds...)
}

// From returns an in-memory Queryable over items.
func From[T any](items []T) Queryable {
	return queryable.From(items)
}

// FromSlice returns an in-memory Queryable over a slice value of any type.
func FromSlice(items interface{}) (Queryable, error) {
	return queryable.FromSlice(items)
}
