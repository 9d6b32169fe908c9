// Package expr implements a small typed expression tree evaluated through
// reflection. Trees are built once per request and evaluated per item; every
// node reports its static type so builders can type-check before evaluation.
package expr

import (
	"fmt"
	"reflect"
	"strings"
)

// Expression is a node of the expression tree.
type Expression interface {
	// Type is the static type of the values the node produces.
	Type() reflect.Type
	String() string
	eval(s *scope) (reflect.Value, error)
}

type scope struct {
	params map[*Parameter]reflect.Value
}

// Parameter is a lambda input.
type Parameter struct {
	Name string
	typ  reflect.Type
}

// NewParameter creates a parameter of type t.
func NewParameter(name string, t reflect.Type) *Parameter {
	return &Parameter{Name: name, typ: t}
}

func (p *Parameter) Type() reflect.Type { return p.typ }
func (p *Parameter) String() string     { return p.Name }

func (p *Parameter) eval(s *scope) (reflect.Value, error) {
	v, ok := s.params[p]
	if !ok {
		return reflect.Value{}, fmt.Errorf("parameter %s is not bound", p.Name)
	}
	return v, nil
}

// Constant is a fixed value.
type Constant struct {
	Value reflect.Value
}

// NewConstant creates a constant of type t. A nil value yields the zero value of t.
func NewConstant(value interface{}, t reflect.Type) (*Constant, error) {
	v, err := Coerce(value, t)
	if err != nil {
		return nil, err
	}
	return &Constant{Value: v}, nil
}

// Default is the zero value of t.
func Default(t reflect.Type) *Constant {
	return &Constant{Value: reflect.Zero(t)}
}

// ConstantOf wraps v with its dynamic type.
func ConstantOf(v interface{}) *Constant {
	if v == nil {
		return Default(anyType)
	}
	return &Constant{Value: reflect.ValueOf(v)}
}

func (c *Constant) Type() reflect.Type { return c.Value.Type() }

func (c *Constant) String() string {
	if isNil(c.Value) {
		return "null"
	}
	if c.Value.Kind() == reflect.String {
		return fmt.Sprintf("%q", c.Value.String())
	}
	return fmt.Sprint(c.Value.Interface())
}

func (c *Constant) eval(*scope) (reflect.Value, error) { return c.Value, nil }

// Field reads a struct field, dereferencing a pointer target.
type Field struct {
	Target Expression
	Field  reflect.StructField
}

// NewField accesses sf on target. target must be a struct or a pointer to one.
func NewField(target Expression, sf reflect.StructField) (*Field, error) {
	t := target.Type()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: field %s on %s", ErrTypeMismatch, sf.Name, target.Type())
	}
	return &Field{Target: target, Field: sf}, nil
}

func (f *Field) Type() reflect.Type { return f.Field.Type }
func (f *Field) String() string     { return f.Target.String() + "." + f.Field.Name }

func (f *Field) eval(s *scope) (reflect.Value, error) {
	v, err := f.Target.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilDereference, f)
		}
		v = v.Elem()
	}
	out, err := v.FieldByIndexErr(f.Field.Index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilDereference, f)
	}
	return out, nil
}

// Index reads an element of a slice, array or map.
type Index struct {
	Target Expression
	Key    Expression
}

// NewIndex indexes target with key, coercing constant keys to the key type.
func NewIndex(target Expression, key Expression) (*Index, error) {
	t := target.Type()
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		if !isIntegralKind(key.Type().Kind()) {
			return nil, fmt.Errorf("%w: index of %s must be an integer, got %s", ErrTypeMismatch, t, key.Type())
		}
	case reflect.Map:
		if key.Type() != t.Key() {
			c, ok := key.(*Constant)
			if !ok {
				return nil, fmt.Errorf("%w: key of %s must be %s, got %s", ErrTypeMismatch, t, t.Key(), key.Type())
			}
			v, err := coerceValue(c.Value, t.Key())
			if err != nil {
				return nil, err
			}
			key = &Constant{Value: v}
		}
	default:
		return nil, fmt.Errorf("%w: %s cannot be indexed", ErrTypeMismatch, t)
	}
	return &Index{Target: target, Key: key}, nil
}

func (i *Index) Type() reflect.Type {
	if i.Target.Type().Kind() == reflect.String {
		return reflect.TypeOf(byte(0))
	}
	return i.Target.Type().Elem()
}

func (i *Index) String() string { return i.Target.String() + "[" + i.Key.String() + "]" }

func (i *Index) eval(s *scope) (reflect.Value, error) {
	v, err := i.Target.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}
	k, err := i.Key.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}

	if v.Kind() == reflect.Map {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilDereference, i)
		}
		out := v.MapIndex(k)
		if !out.IsValid() {
			return reflect.Zero(i.Type()), nil
		}
		return out, nil
	}

	var n int64
	if k.CanInt() {
		n = k.Int()
	} else {
		n = int64(k.Uint())
	}
	if n < 0 || n >= int64(v.Len()) {
		return reflect.Value{}, fmt.Errorf("%w: %s with length %d", ErrIndexOutOfRange, i, v.Len())
	}
	return v.Index(int(n)), nil
}

// Func is the implementation behind a Call.
type Func func(args []reflect.Value) (reflect.Value, error)

// Call invokes a Go function on evaluated arguments.
type Call struct {
	Name   string
	Args   []Expression
	Result reflect.Type
	Fn     Func
}

// NewCall creates a call producing values of type result.
func NewCall(name string, result reflect.Type, fn Func, args ...Expression) *Call {
	return &Call{Name: name, Args: args, Result: result, Fn: fn}
}

func (c *Call) Type() reflect.Type { return c.Result }

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (c *Call) eval(s *scope) (reflect.Value, error) {
	args := make([]reflect.Value, len(c.Args))
	for i, a := range c.Args {
		v, err := a.eval(s)
		if err != nil {
			return reflect.Value{}, err
		}
		args[i] = v
	}
	out, err := c.Fn(args)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%s: %w", c.Name, err)
	}
	return conform(out, c.Result)
}

// conform adapts a dynamically produced value to the declared type.
func conform(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch {
	case !v.IsValid():
		return reflect.Zero(t), nil
	case v.Type() == t:
		return v, nil
	case t.Kind() == reflect.Interface && v.Type().Implements(t):
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	case v.Kind() == reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		return conform(v.Elem(), t)
	}
	return coerceValue(v, t)
}

// Condition evaluates IfTrue or IfFalse depending on Test.
type Condition struct {
	Test    Expression
	IfTrue  Expression
	IfFalse Expression
}

// NewCondition requires a bool test and branches of the same type.
func NewCondition(test, ifTrue, ifFalse Expression) (*Condition, error) {
	if test.Type().Kind() != reflect.Bool {
		return nil, fmt.Errorf("%w: condition test is %s", ErrTypeMismatch, test.Type())
	}
	if ifTrue.Type() != ifFalse.Type() {
		return nil, fmt.Errorf("%w: condition branches are %s and %s", ErrTypeMismatch, ifTrue.Type(), ifFalse.Type())
	}
	return &Condition{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}, nil
}

func (c *Condition) Type() reflect.Type { return c.IfTrue.Type() }

func (c *Condition) String() string {
	return "iif(" + c.Test.String() + ", " + c.IfTrue.String() + ", " + c.IfFalse.String() + ")"
}

func (c *Condition) eval(s *scope) (reflect.Value, error) {
	test, err := c.Test.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}
	if test.Bool() {
		return c.IfTrue.eval(s)
	}
	return c.IfFalse.eval(s)
}

// Not negates a bool operand.
type Not struct {
	Operand Expression
}

// NewNot requires a bool operand.
func NewNot(operand Expression) (*Not, error) {
	if operand.Type().Kind() != reflect.Bool {
		return nil, fmt.Errorf("%w: not applied to %s", ErrTypeMismatch, operand.Type())
	}
	return &Not{Operand: operand}, nil
}

func (n *Not) Type() reflect.Type { return n.Operand.Type() }
func (n *Not) String() string     { return "!" + n.Operand.String() }

func (n *Not) eval(s *scope) (reflect.Value, error) {
	v, err := n.Operand.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(!v.Bool()), nil
}

// Convert changes the type of its operand using the rules of Coerce.
type Convert struct {
	Operand Expression
	To      reflect.Type
}

// NewConvert converts operand to t.
func NewConvert(operand Expression, t reflect.Type) *Convert {
	return &Convert{Operand: operand, To: t}
}

func (c *Convert) Type() reflect.Type { return c.To }
func (c *Convert) String() string     { return "convert(" + c.Operand.String() + ", " + c.To.String() + ")" }

func (c *Convert) eval(s *scope) (reflect.Value, error) {
	v, err := c.Operand.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}
	return coerceValue(v, c.To)
}

// Coalesce yields the dereferenced Left unless it is nil, then Right.
type Coalesce struct {
	Left  Expression
	Right Expression
}

// NewCoalesce requires a nilable Left whose element type is Right's type.
func NewCoalesce(left, right Expression) (*Coalesce, error) {
	lt := left.Type()
	if !IsNilable(lt) {
		return nil, fmt.Errorf("%w: coalesce of non-nilable %s", ErrTypeMismatch, lt)
	}
	if lt.Kind() == reflect.Pointer && lt.Elem() != right.Type() {
		return nil, fmt.Errorf("%w: coalesce of %s with %s", ErrTypeMismatch, lt, right.Type())
	}
	return &Coalesce{Left: left, Right: right}, nil
}

func (c *Coalesce) Type() reflect.Type { return c.Right.Type() }
func (c *Coalesce) String() string     { return "(" + c.Left.String() + " ?? " + c.Right.String() + ")" }

func (c *Coalesce) eval(s *scope) (reflect.Value, error) {
	v, err := c.Left.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}
	if isNil(v) {
		return c.Right.eval(s)
	}
	if v.Kind() == reflect.Pointer {
		return v.Elem(), nil
	}
	return conform(v, c.Right.Type())
}
