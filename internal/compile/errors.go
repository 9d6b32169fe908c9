package compile

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrIncompatibleOperands is matched by every IncompatibleOperandsError.
var ErrIncompatibleOperands = errors.New("incompatible operands")

// IncompatibleOperandsError reports an operator applied to operand types it
// is not defined for, after coercion and promotion were attempted.
type IncompatibleOperandsError struct {
	Operator string
	Left     reflect.Type
	Right    reflect.Type
	Err      error
}

func (e *IncompatibleOperandsError) Error() string {
	msg := fmt.Sprintf("operator %s is not defined for %s and %s", e.Operator, typeName(e.Left), typeName(e.Right))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrIncompatibleOperands.
func (e *IncompatibleOperandsError) Is(target error) bool {
	return target == ErrIncompatibleOperands
}

func (e *IncompatibleOperandsError) Unwrap() error {
	return e.Err
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "null"
	}
	return t.String()
}

func incompatible(op string, left, right reflect.Type, err error) *IncompatibleOperandsError {
	return &IncompatibleOperandsError{Operator: op, Left: left, Right: right, Err: err}
}
