// Package member resolves member paths such as Address.City or Lines[0].Qty
// into expressions over the items of a shape.
package member

import (
	"fmt"
	"reflect"

	"github.com/beevik/etree"
	"github.com/nlstn/go-datasource/internal/expr"
)

// Option configures a Strategy.
type Option func(*Strategy)

// WithLifting guards every nilable step of a member chain so that a nil
// intermediate yields the default value of the chain instead of an error.
func WithLifting(enabled bool) Option {
	return func(s *Strategy) {
		s.lift = enabled
	}
}

// WithResolver sets the callback used for members of dynamic values.
func WithResolver(resolver Resolver) Option {
	return func(s *Strategy) {
		if resolver != nil {
			s.resolver = resolver
		}
	}
}

// Strategy builds member access expressions rooted at a single parameter.
type Strategy struct {
	shape    Shape
	kind     Kind
	lift     bool
	resolver Resolver
	param    *expr.Parameter
}

// NewStrategy creates a strategy for items of the given shape.
func NewStrategy(shape Shape, opts ...Option) *Strategy {
	t := shape.Type
	if t == nil {
		t = anyType
	}
	s := &Strategy{
		shape:    shape,
		kind:     KindOf(shape),
		resolver: DefaultResolver,
		param:    expr.NewParameter("item", t),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Strategy) Kind() Kind                 { return s.kind }
func (s *Strategy) Shape() Shape               { return s.shape }
func (s *Strategy) Lifting() bool              { return s.lift }
func (s *Strategy) Parameter() *expr.Parameter { return s.param }

// Lambda returns item => item.<path>.
func (s *Strategy) Lambda(path string) (*expr.Lambda, error) {
	body, err := s.Access(path)
	if err != nil {
		return nil, err
	}
	return expr.NewLambda(s.param, body), nil
}

// Access returns the expression reading path from the strategy's parameter.
func (s *Strategy) Access(path string) (expr.Expression, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, &InvalidMemberError{Member: path, Type: s.param.Type(), Err: err}
	}
	return s.build(s.param, segments, true, path)
}

func (s *Strategy) build(target expr.Expression, segments []Segment, root bool, path string) (expr.Expression, error) {
	if len(segments) == 0 {
		return target, nil
	}

	next, err := s.step(target, segments[0], root, len(segments) == 1, path)
	if err != nil {
		return nil, err
	}
	rest, err := s.build(next, segments[1:], false, path)
	if err != nil {
		return nil, err
	}

	if !s.lift || !expr.IsNilable(target.Type()) {
		return rest, nil
	}
	notNil, err := expr.NewBinary(expr.OpNotEqual, target, expr.Default(target.Type()))
	if err != nil {
		return nil, err
	}
	return expr.NewCondition(notNil, rest, expr.Default(rest.Type()))
}

func (s *Strategy) invalid(path string, candidates []string, seg Segment, err error) *InvalidMemberError {
	e := invalidMember(path, s.param.Type(), nil)
	e.Suggestion = suggest(seg.Name, candidates, 3)
	e.Err = err
	return e
}

func (s *Strategy) step(target expr.Expression, seg Segment, root, last bool, path string) (expr.Expression, error) {
	if seg.IsIndexer() {
		return s.index(target, seg, path)
	}

	t := target.Type()
	name := seg.Name

	if root && s.kind == KindTabular {
		col, ok := s.shape.Column(name)
		if !ok {
			names := make([]string, len(s.shape.Columns))
			for i, c := range s.shape.Columns {
				names[i] = c.Name
			}
			return nil, s.invalid(path, names, seg, nil)
		}
		return columnAccess(target, col.Name, col.Type), nil
	}

	if props, ok := descriptorFor(t); ok && t.Kind() != reflect.Interface {
		prop, ok := findProperty(props, name)
		if !ok {
			return nil, s.invalid(path, propertyNames(props), seg, nil)
		}
		return expr.NewCall(prop.Name, prop.Type, func(args []reflect.Value) (reflect.Value, error) {
			item := itemOf(args[0])
			if item == nil {
				return reflect.Value{}, nil
			}
			v, err := prop.GetValue(item)
			return reflect.ValueOf(v), err
		}, target), nil
	}

	switch {
	case t == elementType:
		if last {
			return expr.NewCall("text:"+name, stringType, func(args []reflect.Value) (reflect.Value, error) {
				el, _ := itemOf(args[0]).(*etree.Element)
				return reflect.ValueOf(elementText(childElement(el, name))), nil
			}, target), nil
		}
		return expr.NewCall("element:"+name, elementType, func(args []reflect.Value) (reflect.Value, error) {
			el, _ := itemOf(args[0]).(*etree.Element)
			return reflect.ValueOf(childElement(el, name)), nil
		}, target), nil

	case t.Kind() == reflect.Interface && !t.Implements(rowType):
		resolver := s.resolver
		return expr.NewCall(name, anyType, func(args []reflect.Value) (reflect.Value, error) {
			v, err := resolver(itemOf(args[0]), name)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(v), nil
		}, target), nil

	case t.Implements(rowType):
		return columnAccess(target, name, anyType), nil

	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		return expr.NewIndex(target, expr.ConstantOf(name))
	}

	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, s.invalid(path, nil, seg, nil)
	}
	sf, ok := structField(st, name)
	if !ok {
		return nil, s.invalid(path, fieldNames(st), seg, nil)
	}
	return expr.NewField(target, sf)
}

func (s *Strategy) index(target expr.Expression, seg Segment, path string) (expr.Expression, error) {
	current := target
	for _, arg := range seg.Args {
		t := current.Type()
		switch {
		case t.Implements(rowType):
			current = columnAccess(current, toString(arg), anyType)
		case t.Kind() == reflect.Interface:
			arg := arg
			current = expr.NewCall("index", anyType, func(args []reflect.Value) (reflect.Value, error) {
				v, err := indexValue(itemOf(args[0]), arg)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(v), nil
			}, current)
		default:
			next, err := expr.NewIndex(current, expr.ConstantOf(arg))
			if err != nil {
				return nil, s.invalid(path, nil, seg, err)
			}
			current = next
		}
	}
	return current, nil
}

func columnAccess(target expr.Expression, name string, t reflect.Type) expr.Expression {
	return expr.NewCall(name, t, func(args []reflect.Value) (reflect.Value, error) {
		row, ok := itemOf(args[0]).(Row)
		if !ok {
			return reflect.Value{}, nil
		}
		v, _ := row.Value(name)
		return reflect.ValueOf(v), nil
	}, target)
}

func itemOf(v reflect.Value) interface{} {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

func toString(arg interface{}) string {
	if s, ok := arg.(string); ok {
		return s
	}
	return fmt.Sprint(arg)
}
