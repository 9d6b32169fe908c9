package expr

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	bytesType   = reflect.TypeOf([]byte(nil))
	float64Type = reflect.TypeOf(float64(0))
)

// Compare orders two runtime values. Nil sorts before everything else,
// numbers of different widths compare by value and operands of different
// types are reconciled through Coerce before comparing.
func Compare(a, b interface{}) (int, error) {
	return compareValues(reflect.ValueOf(a), reflect.ValueOf(b))
}

// Order is Compare made total: values that cannot be compared are ordered by
// type name and then by their printed form.
func Order(a, b interface{}) int {
	if c, err := Compare(a, b); err == nil {
		return c
	}
	if c := strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)); c != 0 {
		return c
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// Equal reports whether two runtime values are equal under Compare, falling
// back to deep equality for types without an order.
func Equal(a, b interface{}) bool {
	return equalValues(reflect.ValueOf(a), reflect.ValueOf(b))
}

// Normalize dereferences pointers and interfaces so that a *int and an int
// holding the same number produce the same value. Nil pointers become nil.
func Normalize(v interface{}) interface{} {
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// indirect unwraps pointers and interfaces; a nil anywhere yields the zero Value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// IsNilable reports whether values of t can be nil.
func IsNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func equalValues(a, b reflect.Value) bool {
	a, b = indirect(a), indirect(b)
	if !a.IsValid() || !b.IsValid() {
		return !a.IsValid() && !b.IsValid()
	}
	if c, err := compareValues(a, b); err == nil {
		return c == 0
	}
	if a.Type() == b.Type() && a.Type().Comparable() {
		return a.Interface() == b.Interface()
	}
	return reflect.DeepEqual(a.Interface(), b.Interface())
}

func compareValues(a, b reflect.Value) (int, error) {
	a, b = indirect(a), indirect(b)
	switch {
	case !a.IsValid() && !b.IsValid():
		return 0, nil
	case !a.IsValid():
		return -1, nil
	case !b.IsValid():
		return 1, nil
	}

	if a.Type() != b.Type() {
		if isNumeric(a.Kind()) && isNumeric(b.Kind()) {
			return compareNumbers(a, b), nil
		}
		if isNumeric(a.Kind()) && b.Kind() == reflect.String || a.Kind() == reflect.String && isNumeric(b.Kind()) {
			return compareNumberWithText(a, b)
		}
		if cb, err := coerceValue(b, a.Type()); err == nil {
			b = cb
		} else if ca, err := coerceValue(a, b.Type()); err == nil {
			a = ca
		} else {
			return 0, fmt.Errorf("%w: %s and %s", ErrNotComparable, a.Type(), b.Type())
		}
	}

	switch a.Type() {
	case timeType:
		return a.Interface().(time.Time).Compare(b.Interface().(time.Time)), nil
	case decimalType:
		return a.Interface().(decimal.Decimal).Cmp(b.Interface().(decimal.Decimal)), nil
	case uuidType:
		x, y := a.Interface().(uuid.UUID), b.Interface().(uuid.UUID)
		return bytes.Compare(x[:], y[:]), nil
	}

	switch kind := a.Kind(); {
	case isNumeric(kind):
		return compareNumbers(a, b), nil
	case kind == reflect.String:
		return strings.Compare(a.String(), b.String()), nil
	case kind == reflect.Bool:
		return compareBools(a.Bool(), b.Bool()), nil
	case kind == reflect.Slice && a.Type().Elem().Kind() == reflect.Uint8:
		return bytes.Compare(a.Bytes(), b.Bytes()), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrNotComparable, a.Type())
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func isNumeric(kind reflect.Kind) bool {
	return isIntegralKind(kind) || kind == reflect.Float32 || kind == reflect.Float64
}

func isSigned(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isFloat(kind reflect.Kind) bool {
	return kind == reflect.Float32 || kind == reflect.Float64
}

func compareNumbers(a, b reflect.Value) int {
	ak, bk := a.Kind(), b.Kind()
	switch {
	case isFloat(ak) || isFloat(bk):
		return cmp.Compare(toFloat(a), toFloat(b))
	case isSigned(ak) && isSigned(bk):
		return cmp.Compare(a.Int(), b.Int())
	case !isSigned(ak) && !isSigned(bk):
		return cmp.Compare(a.Uint(), b.Uint())
	case isSigned(ak):
		if a.Int() < 0 {
			return -1
		}
		return cmp.Compare(uint64(a.Int()), b.Uint())
	default:
		if b.Int() < 0 {
			return 1
		}
		return cmp.Compare(a.Uint(), uint64(b.Int()))
	}
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isFloat(v.Kind()):
		return v.Float()
	case isSigned(v.Kind()):
		return float64(v.Int())
	}
	return float64(v.Uint())
}

// IsOrderable reports whether ordering operators apply to values of t.
func IsOrderable(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType, decimalType, uuidType, bytesType:
		return true
	}
	kind := t.Kind()
	return kind == reflect.Interface || kind == reflect.String || isNumeric(kind)
}

// compareNumberWithText compares a number with text holding a number or an
// enum member name. Text that is neither is not comparable.
func compareNumberWithText(a, b reflect.Value) (int, error) {
	num, other, sign := a, b, 1
	if !isNumeric(a.Kind()) {
		num, other, sign = b, a, -1
	}
	for _, target := range []reflect.Type{float64Type, num.Type()} {
		if c, err := coerceValue(other, target); err == nil {
			return sign * compareNumbers(num, c), nil
		}
	}
	return 0, fmt.Errorf("%w: %s and %s", ErrNotComparable, a.Type(), b.Type())
}
