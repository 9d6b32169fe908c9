package aggregate

import (
	"fmt"
	"reflect"

	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/expr"
	"github.com/shopspring/decimal"
)

var (
	intType     = reflect.TypeOf(0)
	int64Type   = reflect.TypeOf(int64(0))
	uint64Type  = reflect.TypeOf(uint64(0))
	float64Type = reflect.TypeOf(float64(0))
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

type numberClass int

const (
	classSigned numberClass = iota
	classUnsigned
	classFloat
	classDecimal
	classDynamic
)

// classify maps a field type to the canonical width its reducer works in.
func classify(t reflect.Type) (numberClass, bool) {
	t = elemType(t)
	if t == decimalType {
		return classDecimal, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return classSigned, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return classUnsigned, true
	case reflect.Float32, reflect.Float64:
		return classFloat, true
	case reflect.Interface:
		return classDynamic, true
	}
	return 0, false
}

type baseFunction struct {
	fn    descriptor.AggregateFunction
	field *expr.Lambda
	typ   reflect.Type
}

func (b baseFunction) Descriptor() descriptor.AggregateFunction { return b.fn }
func (b baseFunction) ResultType() reflect.Type                 { return b.typ }

func requireField(fn descriptor.AggregateFunction, field *expr.Lambda) error {
	if field == nil {
		return fmt.Errorf("%s requires a source field", fn.Kind)
	}
	return nil
}

type countFunction struct{ baseFunction }

func newCount(fn descriptor.AggregateFunction, _ *expr.Lambda) (Function, error) {
	return countFunction{baseFunction{fn: fn, typ: intType}}, nil
}

func (f countFunction) Aggregate(items []interface{}) (interface{}, error) {
	return len(items), nil
}

type sumFunction struct {
	baseFunction
	class numberClass
}

func newSum(fn descriptor.AggregateFunction, field *expr.Lambda) (Function, error) {
	if err := requireField(fn, field); err != nil {
		return nil, err
	}
	class, ok := classify(field.Type())
	if !ok {
		return nil, fmt.Errorf("%w: sum over %s", ErrUnsupportedField, field.Type())
	}
	var typ reflect.Type
	switch class {
	case classSigned:
		typ = int64Type
	case classUnsigned:
		typ = uint64Type
	case classDecimal:
		typ = decimalType
	default:
		typ = float64Type
	}
	return sumFunction{baseFunction{fn: fn, field: field, typ: typ}, class}, nil
}

func (f sumFunction) Aggregate(items []interface{}) (interface{}, error) {
	vals, err := values(f.field, items)
	if err != nil {
		return nil, err
	}
	switch f.class {
	case classSigned:
		var sum int64
		for _, v := range vals {
			sum += v.Int()
		}
		return sum, nil
	case classUnsigned:
		var sum uint64
		for _, v := range vals {
			sum += v.Uint()
		}
		return sum, nil
	case classDecimal:
		sum := decimal.Zero
		for _, v := range vals {
			sum = sum.Add(v.Interface().(decimal.Decimal))
		}
		return sum, nil
	}
	return floatSum(vals)
}

func floatSum(vals []reflect.Value) (float64, error) {
	var sum float64
	for _, v := range vals {
		f, err := expr.Coerce(v.Interface(), float64Type)
		if err != nil {
			return 0, err
		}
		sum += f.Float()
	}
	return sum, nil
}

type averageFunction struct {
	baseFunction
	class numberClass
}

func newAverage(fn descriptor.AggregateFunction, field *expr.Lambda) (Function, error) {
	if err := requireField(fn, field); err != nil {
		return nil, err
	}
	class, ok := classify(field.Type())
	if !ok {
		return nil, fmt.Errorf("%w: average over %s", ErrUnsupportedField, field.Type())
	}
	typ := float64Type
	if class == classDecimal {
		typ = decimalType
	}
	return averageFunction{baseFunction{fn: fn, field: field, typ: typ}, class}, nil
}

func (f averageFunction) Aggregate(items []interface{}) (interface{}, error) {
	vals, err := values(f.field, items)
	if err != nil {
		return nil, err
	}
	if f.class == classDecimal {
		if len(vals) == 0 {
			return decimal.Zero, nil
		}
		sum := decimal.Zero
		for _, v := range vals {
			sum = sum.Add(v.Interface().(decimal.Decimal))
		}
		return sum.Div(decimal.NewFromInt(int64(len(vals)))), nil
	}
	if len(vals) == 0 {
		return 0.0, nil
	}
	sum, err := floatSum(vals)
	if err != nil {
		return nil, err
	}
	return sum / float64(len(vals)), nil
}

type extremeFunction struct {
	baseFunction
	// sign is -1 for min and 1 for max
	sign int
}

func newExtreme(fn descriptor.AggregateFunction, field *expr.Lambda, sign int) (Function, error) {
	if err := requireField(fn, field); err != nil {
		return nil, err
	}
	t := elemType(field.Type())
	if !expr.IsOrderable(t) {
		return nil, fmt.Errorf("%w: %s over %s", ErrUnsupportedField, fn.Kind, field.Type())
	}
	return extremeFunction{baseFunction{fn: fn, field: field, typ: t}, sign}, nil
}

func newMin(fn descriptor.AggregateFunction, field *expr.Lambda) (Function, error) {
	return newExtreme(fn, field, -1)
}

func newMax(fn descriptor.AggregateFunction, field *expr.Lambda) (Function, error) {
	return newExtreme(fn, field, 1)
}

func (f extremeFunction) Aggregate(items []interface{}) (interface{}, error) {
	vals, err := values(f.field, items)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return reflect.Zero(f.typ).Interface(), nil
	}
	best := vals[0].Interface()
	for _, v := range vals[1:] {
		c, err := expr.Compare(v.Interface(), best)
		if err != nil {
			return nil, err
		}
		if c*f.sign > 0 {
			best = v.Interface()
		}
	}
	return best, nil
}
