// Package compile turns filter, sort and group descriptors into expression
// lambdas over the items of a shape.
package compile

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/expr"
	"github.com/nlstn/go-datasource/internal/member"
)

// Compiler compiles descriptors against one member strategy. All lambdas it
// returns share the strategy's parameter.
type Compiler struct {
	strategy *member.Strategy
}

// New creates a compiler for the given strategy.
func New(strategy *member.Strategy) *Compiler {
	return &Compiler{strategy: strategy}
}

// Strategy returns the member strategy used by the compiler.
func (c *Compiler) Strategy() *member.Strategy {
	return c.strategy
}

func (c *Compiler) lambda(body expr.Expression) *expr.Lambda {
	return expr.NewLambda(c.strategy.Parameter(), body)
}

// Filter compiles f into a predicate lambda. A nil filter and an empty
// composite accept every item.
func (c *Compiler) Filter(f descriptor.Filter) (*expr.Lambda, error) {
	if f == nil {
		return c.lambda(expr.ConstantOf(true)), nil
	}
	body, err := c.filter(f)
	if err != nil {
		return nil, err
	}
	return c.lambda(body), nil
}

// Predicate compiles f into a Go predicate.
func (c *Compiler) Predicate(f descriptor.Filter) (func(item interface{}) (bool, error), error) {
	l, err := c.Filter(f)
	if err != nil {
		return nil, err
	}
	return l.CompilePredicate()
}

func (c *Compiler) filter(f descriptor.Filter) (expr.Expression, error) {
	switch n := f.(type) {
	case *descriptor.CompositeFilterDescriptor:
		return c.composite(n)
	case *descriptor.FilterDescriptor:
		body, err := c.leaf(n)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", descriptor.SerializeFilter(n), err)
		}
		return body, nil
	}
	return nil, fmt.Errorf("unsupported filter %T", f)
}

func (c *Compiler) composite(n *descriptor.CompositeFilterDescriptor) (expr.Expression, error) {
	if len(n.Children) == 0 {
		return expr.ConstantOf(true), nil
	}

	op := expr.OpAndAlso
	if n.LogicalOperator == descriptor.LogicalOr {
		op = expr.OpOrElse
	}

	var result expr.Expression
	for _, child := range n.Children {
		body, err := c.filter(child)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = body
			continue
		}
		if result, err = expr.NewBinary(op, result, body); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (c *Compiler) leaf(f *descriptor.FilterDescriptor) (expr.Expression, error) {
	m, err := c.strategy.Access(f.Member)
	if err != nil {
		return nil, err
	}

	if f.Operator.IsUnary() {
		return c.unary(f.Operator, m)
	}
	if f.Operator.IsStringFunction() {
		return c.stringFunction(f, m)
	}
	return c.comparison(f, m)
}

func (c *Compiler) unary(op descriptor.FilterOperator, m expr.Expression) (expr.Expression, error) {
	t := m.Type()
	switch op {
	case descriptor.OpIsNull, descriptor.OpIsNotNull:
		if !expr.IsNilable(t) {
			return expr.ConstantOf(op == descriptor.OpIsNotNull), nil
		}
		binOp := expr.OpEqual
		if op == descriptor.OpIsNotNull {
			binOp = expr.OpNotEqual
		}
		return expr.NewBinary(binOp, m, expr.Default(t))

	case descriptor.OpIsEmpty, descriptor.OpIsNotEmpty:
		if !isStringType(t) && t.Kind() != reflect.Interface {
			return nil, incompatible(string(op), t, stringType, nil)
		}
		empty, err := expr.NewConstant("", t)
		if err != nil {
			return nil, err
		}
		binOp := expr.OpEqual
		if op == descriptor.OpIsNotEmpty {
			binOp = expr.OpNotEqual
		}
		return expr.NewBinary(binOp, m, empty)

	case descriptor.OpIsNullOrEmpty, descriptor.OpIsNotNullOrEmpty:
		if !isStringType(t) && t.Kind() != reflect.Interface {
			return nil, incompatible(string(op), t, stringType, nil)
		}
		call := nullOrEmptyCall(m)
		if op == descriptor.OpIsNotNullOrEmpty {
			return expr.NewNot(call)
		}
		return call, nil
	}
	return nil, incompatible(string(op), t, nil, errors.New("unsupported unary operator"))
}

func (c *Compiler) stringFunction(f *descriptor.FilterDescriptor, m expr.Expression) (expr.Expression, error) {
	t := m.Type()
	if !isStringType(t) && t.Kind() != reflect.Interface {
		return nil, incompatible(string(f.Operator), t, reflect.TypeOf(f.Value), nil)
	}
	value, err := expr.NewConstant(f.Value, stringType)
	if err != nil {
		return nil, err
	}

	lift := c.strategy.Lifting()
	switch f.Operator {
	case descriptor.OpStartsWith:
		return substringCall("StartsWith", m, value, lift, strings.HasPrefix), nil
	case descriptor.OpEndsWith:
		return substringCall("EndsWith", m, value, lift, strings.HasSuffix), nil
	case descriptor.OpContains:
		return substringCall("Contains", m, value, lift, strings.Contains), nil
	case descriptor.OpDoesNotContain:
		return expr.NewNot(substringCall("Contains", m, value, lift, strings.Contains))
	case descriptor.OpIsContainedIn:
		return substringCall("IsContainedIn", m, value, lift, func(haystack, needle string) bool {
			return strings.Contains(needle, haystack)
		}), nil
	}
	return nil, incompatible(string(f.Operator), t, stringType, errors.New("unsupported string operator"))
}

var comparisonOps = map[descriptor.FilterOperator]expr.BinaryOp{
	descriptor.OpIsEqualTo:              expr.OpEqual,
	descriptor.OpIsNotEqualTo:           expr.OpNotEqual,
	descriptor.OpIsLessThan:             expr.OpLessThan,
	descriptor.OpIsLessThanOrEqualTo:    expr.OpLessThanOrEqual,
	descriptor.OpIsGreaterThan:          expr.OpGreaterThan,
	descriptor.OpIsGreaterThanOrEqualTo: expr.OpGreaterThanOrEqual,
}

func (c *Compiler) comparison(f *descriptor.FilterDescriptor, m expr.Expression) (expr.Expression, error) {
	op, ok := comparisonOps[f.Operator]
	if !ok {
		return nil, incompatible(string(f.Operator), m.Type(), nil, errors.New("unsupported operator"))
	}

	value, err := expr.NewConstant(f.Value, m.Type())
	if err != nil {
		return nil, err
	}
	left, right, err := promote(string(f.Operator), m, value)
	if err != nil {
		return nil, err
	}

	// a null literal is a null test, never a string comparison
	if isStringType(left.Type()) && !isNullConstant(right) {
		lift := c.strategy.Lifting()
		left, right = normalizeString(left, lift), normalizeString(right, lift)
		if op.IsOrdering() {
			zero := expr.ConstantOf(0)
			return expr.NewBinary(op, compareCall(left, right), zero)
		}
	} else if left.Type().Kind() == reflect.Interface && !isNullConstant(right) {
		lift := c.strategy.Lifting()
		left, right = normalizeString(left, lift), normalizeString(right, lift)
	}

	b, err := expr.NewBinary(op, left, right)
	if err != nil {
		return nil, incompatible(string(f.Operator), left.Type(), right.Type(), err)
	}
	return b, nil
}

func isNullConstant(e expr.Expression) bool {
	c, ok := e.(*expr.Constant)
	if !ok {
		return false
	}
	return expr.Normalize(c.Value.Interface()) == nil
}

// promote reconciles operand types: identical types and dynamic operands pass
// through, T and *T meet at *T, and a value assignable to the other side is
// converted to it.
func promote(op string, left, right expr.Expression) (expr.Expression, expr.Expression, error) {
	lt, rt := left.Type(), right.Type()
	switch {
	case lt == rt, lt.Kind() == reflect.Interface, rt.Kind() == reflect.Interface:
		return left, right, nil
	case lt.Kind() == reflect.Pointer && lt.Elem() == rt:
		return left, expr.NewConvert(right, lt), nil
	case rt.Kind() == reflect.Pointer && rt.Elem() == lt:
		return expr.NewConvert(left, rt), right, nil
	case rt.AssignableTo(lt):
		return left, expr.NewConvert(right, lt), nil
	case lt.AssignableTo(rt):
		return expr.NewConvert(left, rt), right, nil
	}
	return nil, nil, incompatible(op, lt, rt, nil)
}
