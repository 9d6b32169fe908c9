package expr

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrTypeCoercion is matched by every TypeCoercionError.
	ErrTypeCoercion = errors.New("type coercion failed")

	// ErrTypeMismatch is returned when a node is built from operands of incompatible static types.
	ErrTypeMismatch = errors.New("operand types do not match")

	// ErrNotOrderable is returned when an ordering operator is applied to a type without an order.
	ErrNotOrderable = errors.New("type is not orderable")

	// ErrNotComparable is returned when two runtime values cannot be compared.
	ErrNotComparable = errors.New("values are not comparable")

	// ErrNilDereference is returned when a member is accessed through a nil value.
	ErrNilDereference = errors.New("member access through nil value")

	// ErrIndexOutOfRange is returned by index access past the end of a slice or array.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// TypeCoercionError reports a literal that cannot be converted to the member type.
type TypeCoercionError struct {
	Value  interface{}
	Target reflect.Type
	Err    error
}

func (e *TypeCoercionError) Error() string {
	msg := fmt.Sprintf("cannot convert %#v to %s", e.Value, e.Target)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrTypeCoercion.
func (e *TypeCoercionError) Is(target error) bool {
	return target == ErrTypeCoercion
}

func (e *TypeCoercionError) Unwrap() error {
	return e.Err
}

func coercionError(v reflect.Value, target reflect.Type, err error) *TypeCoercionError {
	var value interface{}
	if v.IsValid() && v.CanInterface() {
		value = v.Interface()
	}
	return &TypeCoercionError{Value: value, Target: target, Err: err}
}
