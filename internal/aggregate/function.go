// Package aggregate implements aggregate functions over item scopes and the
// synthesized record types that carry several results at once.
package aggregate

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/nlstn/go-datasource/internal/compile"
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/expr"
)

var (
	// ErrUnknownFunction is returned for an aggregate kind without a registered factory.
	ErrUnknownFunction = errors.New("unknown aggregate function")

	// ErrUnsupportedField is returned when a reducer cannot handle the source field type.
	ErrUnsupportedField = errors.New("aggregate function does not support field type")
)

// Function reduces a scope of items to one value.
type Function interface {
	// Descriptor is the request the function was compiled from, with SourceField set.
	Descriptor() descriptor.AggregateFunction
	ResultType() reflect.Type
	Aggregate(items []interface{}) (interface{}, error)
}

// Factory compiles one aggregate function. field selects the source field
// and is nil when the function has no source field.
type Factory func(fn descriptor.AggregateFunction, field *expr.Lambda) (Function, error)

var registry = struct {
	sync.RWMutex
	factories map[descriptor.AggregateKind]Factory
}{
	factories: map[descriptor.AggregateKind]Factory{
		descriptor.AggregateCount:   newCount,
		descriptor.AggregateSum:     newSum,
		descriptor.AggregateAverage: newAverage,
		descriptor.AggregateMin:     newMin,
		descriptor.AggregateMax:     newMax,
	},
}

// Register adds or replaces the factory for kind.
func Register(kind descriptor.AggregateKind, factory Factory) {
	registry.Lock()
	defer registry.Unlock()
	registry.factories[kind] = factory
}

func factoryFor(kind descriptor.AggregateKind) (Factory, bool) {
	registry.RLock()
	defer registry.RUnlock()
	f, ok := registry.factories[kind]
	return f, ok
}

// Compile resolves the source field of every function with c and builds the
// functions. Count never resolves its field.
func Compile(c *compile.Compiler, functions []descriptor.AggregateFunction) ([]Function, error) {
	out := make([]Function, 0, len(functions))
	for _, fn := range functions {
		factory, ok := factoryFor(fn.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, fn.Kind)
		}

		var field *expr.Lambda
		if fn.SourceField != "" && fn.Kind != descriptor.AggregateCount {
			l, err := c.Key(fn.SourceField)
			if err != nil {
				return nil, fmt.Errorf("aggregate %s: %w", fn.FunctionName(), err)
			}
			field = l
		}

		f, err := factory(fn, field)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", fn.FunctionName(), err)
		}
		out = append(out, f)
	}
	return out, nil
}

// values evaluates field over items, skipping nil results.
func values(field *expr.Lambda, items []interface{}) ([]reflect.Value, error) {
	out := make([]reflect.Value, 0, len(items))
	for _, item := range items {
		v, err := field.Invoke(item)
		if err != nil {
			return nil, err
		}
		for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
			if v.IsNil() {
				v = reflect.Value{}
				break
			}
			v = v.Elem()
		}
		if v.IsValid() {
			out = append(out, v)
		}
	}
	return out, nil
}

// elemType strips pointers from t.
func elemType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
