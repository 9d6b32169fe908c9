package expr

import (
	"fmt"
	"reflect"
)

// BinaryOp is the operator of a Binary node.
type BinaryOp int

const (
	OpEqual BinaryOp = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAndAlso
	OpOrElse
)

var binaryOpSymbols = [...]string{
	OpEqual:              "==",
	OpNotEqual:           "!=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpAndAlso:            "&&",
	OpOrElse:             "||",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpSymbols) {
		return binaryOpSymbols[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// IsOrdering reports whether op is one of <, <=, >, >=.
func (op BinaryOp) IsOrdering() bool {
	return op >= OpLessThan && op <= OpGreaterThanOrEqual
}

var (
	boolType = reflect.TypeOf(false)
	anyType  = reflect.TypeOf((*interface{})(nil)).Elem()
)

// Binary is a comparison or a short-circuit logical operator.
//
// Comparisons of nilable operands are lifted: two nils are equal, a nil and a
// non-nil value are unequal and every ordering involving nil is false.
// Interface-typed operands are compared at run time with Compare.
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

// NewBinary type-checks the operands. Comparisons require identical static
// types unless one side is an interface; ordering requires an orderable type.
func NewBinary(op BinaryOp, left, right Expression) (*Binary, error) {
	lt, rt := left.Type(), right.Type()

	if op == OpAndAlso || op == OpOrElse {
		if lt.Kind() != reflect.Bool || rt.Kind() != reflect.Bool {
			return nil, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, lt, op, rt)
		}
		return &Binary{Op: op, Left: left, Right: right}, nil
	}

	dynamic := lt.Kind() == reflect.Interface || rt.Kind() == reflect.Interface
	if lt != rt && !dynamic {
		return nil, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, lt, op, rt)
	}
	if op.IsOrdering() && (!IsOrderable(lt) || !IsOrderable(rt)) {
		return nil, fmt.Errorf("%w: %s %s %s", ErrNotOrderable, lt, op, rt)
	}
	return &Binary{Op: op, Left: left, Right: right}, nil
}

func (b *Binary) Type() reflect.Type { return boolType }

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

func (b *Binary) eval(s *scope) (reflect.Value, error) {
	l, err := b.Left.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}

	switch b.Op {
	case OpAndAlso:
		if !l.Bool() {
			return reflect.ValueOf(false), nil
		}
		return b.evalBool(s)
	case OpOrElse:
		if l.Bool() {
			return reflect.ValueOf(true), nil
		}
		return b.evalBool(s)
	}

	r, err := b.Right.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}
	result, err := compareOp(b.Op, l, r)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%s: %w", b, err)
	}
	return reflect.ValueOf(result), nil
}

func (b *Binary) evalBool(s *scope) (reflect.Value, error) {
	r, err := b.Right.eval(s)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(r.Bool()), nil
}

func compareOp(op BinaryOp, l, r reflect.Value) (bool, error) {
	l, r = indirect(l), indirect(r)
	lnil, rnil := isNil(l), isNil(r)
	if lnil || rnil {
		switch op {
		case OpEqual:
			return lnil && rnil, nil
		case OpNotEqual:
			return lnil != rnil, nil
		}
		return false, nil
	}

	switch op {
	case OpEqual:
		return equalValues(l, r), nil
	case OpNotEqual:
		return !equalValues(l, r), nil
	}

	c, err := compareValues(l, r)
	if err != nil {
		return false, err
	}
	switch op {
	case OpLessThan:
		return c < 0, nil
	case OpLessThanOrEqual:
		return c <= 0, nil
	case OpGreaterThan:
		return c > 0, nil
	case OpGreaterThanOrEqual:
		return c >= 0, nil
	}
	return false, fmt.Errorf("unsupported operator %s", op)
}
