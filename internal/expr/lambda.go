package expr

import (
	"fmt"
	"reflect"
)

// Lambda is a single-parameter function over items.
type Lambda struct {
	Param *Parameter
	Body  Expression
}

// NewLambda creates param => body.
func NewLambda(param *Parameter, body Expression) *Lambda {
	return &Lambda{Param: param, Body: body}
}

func (l *Lambda) String() string {
	return l.Param.String() + " => " + l.Body.String()
}

// Type is the type of the body.
func (l *Lambda) Type() reflect.Type {
	return l.Body.Type()
}

// Invoke evaluates the body with the parameter bound to item.
func (l *Lambda) Invoke(item interface{}) (out reflect.Value, err error) {
	arg, err := bind(item, l.Param.Type())
	if err != nil {
		return reflect.Value{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = reflect.Value{}, fmt.Errorf("evaluating %s: %v", l, r)
		}
	}()
	return l.Body.eval(&scope{params: map[*Parameter]reflect.Value{l.Param: arg}})
}

// Compile returns a function producing the body's value as interface{}.
func (l *Lambda) Compile() func(item interface{}) (interface{}, error) {
	return func(item interface{}) (interface{}, error) {
		v, err := l.Invoke(item)
		if err != nil {
			return nil, err
		}
		if !v.IsValid() || !v.CanInterface() {
			return nil, nil
		}
		return v.Interface(), nil
	}
}

// CompilePredicate returns the body as a predicate. The body must be bool.
func (l *Lambda) CompilePredicate() (func(item interface{}) (bool, error), error) {
	if l.Body.Type().Kind() != reflect.Bool {
		return nil, fmt.Errorf("%w: predicate body is %s", ErrTypeMismatch, l.Body.Type())
	}
	return func(item interface{}) (bool, error) {
		v, err := l.Invoke(item)
		if err != nil {
			return false, err
		}
		return v.Bool(), nil
	}, nil
}

// True is the predicate that accepts every item of type t.
func True(t reflect.Type) *Lambda {
	return NewLambda(NewParameter("item", t), ConstantOf(true))
}

func bind(item interface{}, t reflect.Type) (reflect.Value, error) {
	if item == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(item)
	if v.Type() == t {
		return v, nil
	}
	if v.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	}
	if t.Kind() == reflect.Pointer && v.Type() == t.Elem() {
		out := reflect.New(t.Elem())
		out.Elem().Set(v)
		return out, nil
	}
	if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type() == t {
		return v.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: item of type %s for parameter of type %s", ErrTypeMismatch, v.Type(), t)
}
