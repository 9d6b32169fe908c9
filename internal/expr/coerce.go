package expr

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NullLiteral is the filter literal that stands for nil.
const NullLiteral = "null"

// timeLayouts are tried in order when a string is coerced to time.Time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15-04-05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var (
	errOverflow     = errors.New("value out of range")
	errUnsupported  = errors.New("unsupported conversion")
	errUnknownEnum  = errors.New("unknown enum member")
	errNilToNonNull = errors.New("nil cannot be assigned to a non-nullable type")
)

// Coerce converts a literal to target. The null literal and nil become nil
// for nilable targets; strings name enum members, UUIDs, decimals, times and
// numbers; numbers convert between widths with range checks (floats round
// half to even when the target is integral); T becomes *T.
func Coerce(value interface{}, target reflect.Type) (reflect.Value, error) {
	return coerceValue(reflect.ValueOf(value), target)
}

func isNullLiteral(v reflect.Value) bool {
	return v.Kind() == reflect.String && strings.EqualFold(v.String(), NullLiteral)
}

func coerceValue(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	if v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			v = reflect.Value{}
		} else {
			v = v.Elem()
		}
	}

	if !v.IsValid() || (IsNilable(target) && isNullLiteral(v)) {
		if IsNilable(target) {
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, coercionError(v, target, errNilToNonNull)
	}

	if v.Type() == target {
		return v, nil
	}

	switch {
	case target.Kind() == reflect.Interface:
		if !v.Type().Implements(target) {
			return reflect.Value{}, coercionError(v, target, errUnsupported)
		}
		out := reflect.New(target).Elem()
		out.Set(v)
		return out, nil

	case target.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer:
		inner, err := coerceValue(v, target.Elem())
		if err != nil {
			return reflect.Value{}, coercionError(v, target, errors.Unwrap(err))
		}
		out := reflect.New(target.Elem())
		out.Elem().Set(inner)
		return out, nil

	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			if IsNilable(target) {
				return reflect.Zero(target), nil
			}
			return reflect.Value{}, coercionError(v, target, errNilToNonNull)
		}
		if target.Kind() == reflect.Pointer {
			inner, err := coerceValue(v.Elem(), target.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out := reflect.New(target.Elem())
			out.Elem().Set(inner)
			return out, nil
		}
		return coerceValue(v.Elem(), target)
	}

	out, err := coerceScalar(v, target)
	if err != nil {
		return reflect.Value{}, coercionError(v, target, err)
	}
	return out, nil
}

func coerceScalar(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	switch target {
	case timeType:
		return coerceTime(v)
	case decimalType:
		return coerceDecimal(v)
	case uuidType:
		return coerceUUID(v)
	}

	if v.Type() == decimalType {
		return coerceFromDecimal(v.Interface().(decimal.Decimal), target)
	}

	switch kind := target.Kind(); {
	case kind == reflect.String:
		s, err := formatScalar(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(s).Convert(target), nil

	case kind == reflect.Bool:
		switch {
		case v.Kind() == reflect.Bool:
			return v.Convert(target), nil
		case v.Kind() == reflect.String:
			b, err := strconv.ParseBool(strings.TrimSpace(v.String()))
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(b).Convert(target), nil
		}

	case isIntegralKind(kind):
		if v.Kind() == reflect.String {
			if enum, ok := ParseEnum(target, v.String()); ok {
				return enum, nil
			}
			if _, isEnum := EnumMembers(target); isEnum {
				if _, err := strconv.ParseFloat(v.String(), 64); err != nil {
					return reflect.Value{}, fmt.Errorf("%w %q", errUnknownEnum, v.String())
				}
			}
		}
		return coerceInteger(v, target)

	case isFloat(kind):
		return coerceFloat(v, target)

	case kind == reflect.Slice && target.Elem().Kind() == reflect.Uint8 && v.Kind() == reflect.String:
		return reflect.ValueOf([]byte(v.String())).Convert(target), nil
	}

	if v.Kind() == target.Kind() && v.Type().ConvertibleTo(target) {
		return v.Convert(target), nil
	}
	return reflect.Value{}, errUnsupported
}

func formatScalar(v reflect.Value) (string, error) {
	if v.CanInterface() {
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String(), nil
		}
	}
	switch kind := v.Kind(); {
	case kind == reflect.String:
		return v.String(), nil
	case kind == reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case isSigned(kind):
		if name, ok := EnumName(v); ok {
			return name, nil
		}
		return strconv.FormatInt(v.Int(), 10), nil
	case isIntegralKind(kind):
		if name, ok := EnumName(v); ok {
			return name, nil
		}
		return strconv.FormatUint(v.Uint(), 10), nil
	case isFloat(kind):
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), nil
	}
	return "", errUnsupported
}

func parseNumber(v reflect.Value) (reflect.Value, error) {
	s := strings.TrimSpace(v.String())
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return reflect.ValueOf(i), nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return reflect.ValueOf(u), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(f), nil
}

func coerceInteger(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	if v.Kind() == reflect.String {
		n, err := parseNumber(v)
		if err != nil {
			return reflect.Value{}, err
		}
		v = n
	}

	out := reflect.New(target).Elem()
	switch kind := v.Kind(); {
	case isSigned(kind):
		i := v.Int()
		if isSigned(target.Kind()) {
			if out.OverflowInt(i) {
				return reflect.Value{}, errOverflow
			}
			out.SetInt(i)
		} else {
			if i < 0 || out.OverflowUint(uint64(i)) {
				return reflect.Value{}, errOverflow
			}
			out.SetUint(uint64(i))
		}
	case isIntegralKind(kind):
		u := v.Uint()
		if isSigned(target.Kind()) {
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return reflect.Value{}, errOverflow
			}
			out.SetInt(int64(u))
		} else {
			if out.OverflowUint(u) {
				return reflect.Value{}, errOverflow
			}
			out.SetUint(u)
		}
	case isFloat(kind):
		f := math.RoundToEven(v.Float())
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return reflect.Value{}, errOverflow
		}
		if isSigned(target.Kind()) {
			if f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
				return reflect.Value{}, errOverflow
			}
			out.SetInt(int64(f))
		} else {
			if f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
				return reflect.Value{}, errOverflow
			}
			out.SetUint(uint64(f))
		}
	default:
		return reflect.Value{}, errUnsupported
	}
	return out, nil
}

func coerceFloat(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	if v.Kind() == reflect.String {
		n, err := parseNumber(v)
		if err != nil {
			return reflect.Value{}, err
		}
		v = n
	}
	if !isNumeric(v.Kind()) {
		return reflect.Value{}, errUnsupported
	}
	out := reflect.New(target).Elem()
	f := toFloat(v)
	if out.OverflowFloat(f) {
		return reflect.Value{}, errOverflow
	}
	out.SetFloat(f)
	return out, nil
}

func coerceTime(v reflect.Value) (reflect.Value, error) {
	if v.Kind() != reflect.String {
		return reflect.Value{}, errUnsupported
	}
	s := strings.TrimSpace(v.String())
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return reflect.ValueOf(t), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("unrecognized time format %q", s)
}

func coerceDecimal(v reflect.Value) (reflect.Value, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch kind := v.Kind(); {
	case kind == reflect.String:
		d, err = decimal.NewFromString(strings.TrimSpace(v.String()))
	case isSigned(kind):
		d = decimal.NewFromInt(v.Int())
	case isIntegralKind(kind):
		d, err = decimal.NewFromString(strconv.FormatUint(v.Uint(), 10))
	case isFloat(kind):
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return reflect.Value{}, errOverflow
		}
		d = decimal.NewFromFloat(f)
	default:
		return reflect.Value{}, errUnsupported
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(d), nil
}

func coerceFromDecimal(d decimal.Decimal, target reflect.Type) (reflect.Value, error) {
	switch kind := target.Kind(); {
	case kind == reflect.String:
		return reflect.ValueOf(d.String()).Convert(target), nil
	case isFloat(kind):
		f, _ := d.Float64()
		return coerceFloat(reflect.ValueOf(f), target)
	case isIntegralKind(kind):
		rounded := d.RoundBank(0)
		if !rounded.IsInteger() || rounded.BigInt().BitLen() > 64 {
			return reflect.Value{}, errOverflow
		}
		if rounded.Sign() < 0 {
			return coerceInteger(reflect.ValueOf(rounded.IntPart()), target)
		}
		return coerceInteger(reflect.ValueOf(rounded.BigInt().Uint64()), target)
	}
	return reflect.Value{}, errUnsupported
}

func coerceUUID(v reflect.Value) (reflect.Value, error) {
	switch {
	case v.Kind() == reflect.String:
		id, err := uuid.Parse(strings.TrimSpace(v.String()))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(id), nil
	case v.Type().ConvertibleTo(uuidType) && v.Kind() == reflect.Array:
		return v.Convert(uuidType), nil
	}
	return reflect.Value{}, errUnsupported
}
