package compile

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nlstn/go-datasource/internal/expr"
)

var (
	stringType = reflect.TypeOf("")
	boolType   = reflect.TypeOf(false)
	intType    = reflect.TypeOf(0)
	anyType    = reflect.TypeOf((*interface{})(nil)).Elem()
)

// isStringType reports whether t is a string kind or a pointer to one.
func isStringType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.String
}

// runtimeString reads a string operand. Named string types are converted;
// dynamic values are formatted through expr.Coerce.
func runtimeString(v reflect.Value) (string, bool, error) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return "", false, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return "", false, nil
	}
	if v.Kind() == reflect.String {
		return v.String(), true, nil
	}
	s, err := expr.Coerce(v.Interface(), stringType)
	if err != nil {
		return "", false, err
	}
	return s.String(), true, nil
}

// normalizeString produces the lower-cased form of a string operand. With
// lifting a nil string reads as empty; without it a nil string is an error.
// Dynamic operands are lower-cased only when they hold a string.
func normalizeString(e expr.Expression, lift bool) expr.Expression {
	t := e.Type()
	if t.Kind() == reflect.Interface {
		return expr.NewCall("ToLower", anyType, func(args []reflect.Value) (reflect.Value, error) {
			v := args[0]
			for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
				v = v.Elem()
			}
			if v.IsValid() && v.Kind() == reflect.String {
				return reflect.ValueOf(strings.ToLower(v.String())), nil
			}
			return args[0], nil
		}, e)
	}

	return expr.NewCall("ToLower", stringType, func(args []reflect.Value) (reflect.Value, error) {
		s, ok, err := runtimeString(args[0])
		if err != nil {
			return reflect.Value{}, err
		}
		if !ok {
			if lift {
				return reflect.ValueOf(""), nil
			}
			return reflect.Value{}, fmt.Errorf("%w: %s", expr.ErrNilDereference, e)
		}
		return reflect.ValueOf(strings.ToLower(s)), nil
	}, e)
}

type stringTest func(haystack, needle string) bool

// substringCall compiles a case-insensitive substring test. A nil dynamic
// operand never matches.
func substringCall(name string, member, value expr.Expression, lift bool, test stringTest) expr.Expression {
	return expr.NewCall(name, boolType, func(args []reflect.Value) (reflect.Value, error) {
		m, mok, err := runtimeString(args[0])
		if err != nil {
			return reflect.Value{}, err
		}
		v, vok, err := runtimeString(args[1])
		if err != nil {
			return reflect.Value{}, err
		}
		if !mok || !vok {
			if !lift && member.Type().Kind() == reflect.Pointer && !mok {
				return reflect.Value{}, fmt.Errorf("%w: %s", expr.ErrNilDereference, member)
			}
			return reflect.ValueOf(false), nil
		}
		return reflect.ValueOf(test(strings.ToLower(m), strings.ToLower(v))), nil
	}, member, value)
}

// compareCall is the three-way comparison used for string ordering.
func compareCall(left, right expr.Expression) expr.Expression {
	return expr.NewCall("Compare", intType, func(args []reflect.Value) (reflect.Value, error) {
		c, err := expr.Compare(args[0].Interface(), args[1].Interface())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(c), nil
	}, left, right)
}

// nullOrEmptyCall tests for nil or the empty string.
func nullOrEmptyCall(member expr.Expression) expr.Expression {
	return expr.NewCall("IsNullOrEmpty", boolType, func(args []reflect.Value) (reflect.Value, error) {
		s, ok, err := runtimeString(args[0])
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(!ok || s == ""), nil
	}, member)
}
