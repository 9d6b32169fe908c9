package descriptor

import "strings"

// FilterOperator represents a filter comparison operator. The values are the
// spellings used by the filter grammar.
type FilterOperator string

const (
	OpIsLessThan             FilterOperator = "lt"
	OpIsLessThanOrEqualTo    FilterOperator = "lte"
	OpIsEqualTo              FilterOperator = "eq"
	OpIsNotEqualTo           FilterOperator = "neq"
	OpIsGreaterThanOrEqualTo FilterOperator = "gte"
	OpIsGreaterThan          FilterOperator = "gt"
	OpStartsWith             FilterOperator = "startswith"
	OpEndsWith               FilterOperator = "endswith"
	OpContains               FilterOperator = "contains"
	OpIsContainedIn          FilterOperator = "substringof"
	OpDoesNotContain         FilterOperator = "doesnotcontain"
	OpIsNull                 FilterOperator = "isnull"
	OpIsNotNull              FilterOperator = "isnotnull"
	OpIsEmpty                FilterOperator = "isempty"
	OpIsNotEmpty             FilterOperator = "isnotempty"
	OpIsNullOrEmpty          FilterOperator = "isnullorempty"
	OpIsNotNullOrEmpty       FilterOperator = "isnotnullorempty"
)

var operatorAliases = map[string]FilterOperator{
	"lt":               OpIsLessThan,
	"le":               OpIsLessThanOrEqualTo,
	"lte":              OpIsLessThanOrEqualTo,
	"eq":               OpIsEqualTo,
	"ne":               OpIsNotEqualTo,
	"neq":              OpIsNotEqualTo,
	"ge":               OpIsGreaterThanOrEqualTo,
	"gte":              OpIsGreaterThanOrEqualTo,
	"gt":               OpIsGreaterThan,
	"startswith":       OpStartsWith,
	"endswith":         OpEndsWith,
	"contains":         OpContains,
	"substringof":      OpIsContainedIn,
	"notsubstringof":   OpDoesNotContain,
	"doesnotcontain":   OpDoesNotContain,
	"isnull":           OpIsNull,
	"isnotnull":        OpIsNotNull,
	"isempty":          OpIsEmpty,
	"isnotempty":       OpIsNotEmpty,
	"isnullorempty":    OpIsNullOrEmpty,
	"isnotnullorempty": OpIsNotNullOrEmpty,
}

// ParseFilterOperator maps a grammar spelling (including the short aliases
// ne, le, ge and notsubstringof) to its operator.
func ParseFilterOperator(s string) (FilterOperator, bool) {
	op, ok := operatorAliases[strings.ToLower(s)]
	return op, ok
}

// IsUnary reports whether the operator takes no operand.
func (op FilterOperator) IsUnary() bool {
	switch op {
	case OpIsNull, OpIsNotNull, OpIsEmpty, OpIsNotEmpty, OpIsNullOrEmpty, OpIsNotNullOrEmpty:
		return true
	}
	return false
}

// IsStringFunction reports whether the operator is a substring test.
func (op FilterOperator) IsStringFunction() bool {
	switch op {
	case OpStartsWith, OpEndsWith, OpContains, OpIsContainedIn, OpDoesNotContain:
		return true
	}
	return false
}

// IsOrdering reports whether the operator is one of lt, lte, gt, gte.
func (op FilterOperator) IsOrdering() bool {
	switch op {
	case OpIsLessThan, OpIsLessThanOrEqualTo, OpIsGreaterThan, OpIsGreaterThanOrEqualTo:
		return true
	}
	return false
}

var negations = map[FilterOperator]FilterOperator{
	OpIsEqualTo:              OpIsNotEqualTo,
	OpIsNotEqualTo:           OpIsEqualTo,
	OpIsLessThan:             OpIsGreaterThanOrEqualTo,
	OpIsGreaterThanOrEqualTo: OpIsLessThan,
	OpIsGreaterThan:          OpIsLessThanOrEqualTo,
	OpIsLessThanOrEqualTo:    OpIsGreaterThan,
	OpContains:               OpDoesNotContain,
	OpDoesNotContain:         OpContains,
	OpIsNull:                 OpIsNotNull,
	OpIsNotNull:              OpIsNull,
	OpIsEmpty:                OpIsNotEmpty,
	OpIsNotEmpty:             OpIsEmpty,
	OpIsNullOrEmpty:          OpIsNotNullOrEmpty,
	OpIsNotNullOrEmpty:       OpIsNullOrEmpty,
}

// Negate returns the operator matching exactly the items op rejects.
func (op FilterOperator) Negate() (FilterOperator, bool) {
	n, ok := negations[op]
	return n, ok
}

// LogicalOperator combines the children of a composite filter.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// Filter is implemented by *FilterDescriptor and *CompositeFilterDescriptor.
type Filter interface {
	filterNode()
}

// FilterDescriptor compares one member against a value.
type FilterDescriptor struct {
	Member   string
	Operator FilterOperator
	Value    interface{}
}

func (*FilterDescriptor) filterNode() {}

// CompositeFilterDescriptor combines child filters with a logical operator.
// Children are evaluated in order; an empty composite matches everything.
type CompositeFilterDescriptor struct {
	LogicalOperator LogicalOperator
	Children        []Filter
}

func (*CompositeFilterDescriptor) filterNode() {}

// And combines filters with the AND operator.
func And(children ...Filter) *CompositeFilterDescriptor {
	return &CompositeFilterDescriptor{LogicalOperator: LogicalAnd, Children: children}
}

// Or combines filters with the OR operator.
func Or(children ...Filter) *CompositeFilterDescriptor {
	return &CompositeFilterDescriptor{LogicalOperator: LogicalOr, Children: children}
}

// Members returns every member referenced by f, in order of appearance.
func Members(f Filter) []string {
	var out []string
	var walk func(Filter)
	walk = func(f Filter) {
		switch n := f.(type) {
		case *FilterDescriptor:
			out = append(out, n.Member)
		case *CompositeFilterDescriptor:
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	walk(f)
	return out
}
