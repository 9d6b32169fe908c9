package member

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/beevik/etree"
)

// Resolver reads a named member of an item whose type is only known at run
// time. A nil result with a nil error means the member is absent.
type Resolver func(item interface{}, name string) (interface{}, error)

// DefaultResolver handles maps with string keys, tabular rows, markup
// elements, registered type descriptors and structs.
func DefaultResolver(item interface{}, name string) (interface{}, error) {
	if item == nil {
		return nil, nil
	}

	switch x := item.(type) {
	case map[string]interface{}:
		return x[name], nil
	case Row:
		v, _ := x.Value(name)
		return v, nil
	case *etree.Element:
		return childElement(x, name), nil
	}

	v := reflect.ValueOf(item)
	if props, ok := descriptorFor(v.Type()); ok {
		prop, ok := findProperty(props, name)
		if !ok {
			return nil, invalidMember(name, v.Type(), propertyNames(props))
		}
		return prop.GetValue(item)
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		out := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !out.IsValid() {
			return nil, nil
		}
		return out.Interface(), nil
	case reflect.Struct:
		sf, ok := structField(v.Type(), name)
		if !ok {
			return nil, invalidMember(name, v.Type(), fieldNames(v.Type()))
		}
		out, err := v.FieldByIndexErr(sf.Index)
		if err != nil {
			return nil, nil
		}
		return out.Interface(), nil
	}
	return nil, invalidMember(name, v.Type(), nil)
}

func childElement(el *etree.Element, name string) *etree.Element {
	if el == nil {
		return nil
	}
	return el.SelectElement(name)
}

func elementText(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}

// indexValue applies an indexer argument to a runtime value. Missing map keys
// and nil containers yield nil.
func indexValue(item interface{}, arg interface{}) (interface{}, error) {
	v := reflect.ValueOf(item)
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Map:
		key, err := mapKey(v.Type().Key(), arg)
		if err != nil {
			return nil, err
		}
		out := v.MapIndex(key)
		if !out.IsValid() {
			return nil, nil
		}
		return out.Interface(), nil
	case reflect.Slice, reflect.Array, reflect.String:
		n, err := intArg(arg)
		if err != nil {
			return nil, err
		}
		if n < 0 || n >= v.Len() {
			return nil, fmt.Errorf("index %d out of range for length %d", n, v.Len())
		}
		return v.Index(n).Interface(), nil
	}
	return nil, fmt.Errorf("%s cannot be indexed", v.Type())
}

func mapKey(t reflect.Type, arg interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(arg)
	if v.Type() == t {
		return v, nil
	}
	if t.Kind() == reflect.String {
		return reflect.ValueOf(fmt.Sprint(arg)).Convert(t), nil
	}
	if v.Type().ConvertibleTo(t) && v.Kind() != reflect.String {
		return v.Convert(t), nil
	}
	if s, ok := arg.(string); ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64 {
			return reflect.ValueOf(n).Convert(t), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("indexer argument %v does not fit key type %s", arg, t)
}

func intArg(arg interface{}) (int, error) {
	switch x := arg.(type) {
	case int:
		return x, nil
	case string:
		return strconv.Atoi(x)
	}
	return 0, fmt.Errorf("indexer argument %v is not an integer", arg)
}
