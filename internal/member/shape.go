package member

import (
	"reflect"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/nlstn/go-datasource/internal/expr"
)

// Column describes one column of a tabular item shape.
type Column struct {
	Name string
	Type reflect.Type
}

// Row is implemented by tabular items. Value reports false for unknown columns.
type Row interface {
	Value(column string) (interface{}, bool)
}

// Shape describes the items a member path is resolved against.
// Columns is only consulted when Type implements Row.
type Shape struct {
	Type    reflect.Type
	Columns []Column
}

// ShapeOf returns the shape of values of type T.
func ShapeOf[T any]() Shape {
	return Shape{Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// Column returns the column with the given name, matching case-insensitively
// when there is no exact match.
func (s Shape) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Kind is the resolution strategy chosen for a shape.
type Kind int

const (
	KindStatic Kind = iota
	KindDynamic
	KindTabular
	KindDescriptor
	KindMarkup
)

func (k Kind) String() string {
	switch k {
	case KindDynamic:
		return "dynamic"
	case KindTabular:
		return "tabular"
	case KindDescriptor:
		return "descriptor"
	case KindMarkup:
		return "markup"
	}
	return "static"
}

var (
	rowType     = reflect.TypeOf((*Row)(nil)).Elem()
	elementType = reflect.TypeOf((*etree.Element)(nil))
	anyType     = reflect.TypeOf((*interface{})(nil)).Elem()
	stringType  = reflect.TypeOf("")
)

// KindOf selects the strategy for a shape: tabular rows, registered type
// descriptors, markup elements, dynamic objects and finally static members.
func KindOf(shape Shape) Kind {
	t := shape.Type
	switch {
	case t == nil:
		return KindDynamic
	case len(shape.Columns) > 0 && t.Implements(rowType):
		return KindTabular
	case hasDescriptor(t):
		return KindDescriptor
	case t == elementType:
		return KindMarkup
	case t.Kind() == reflect.Interface || (t.Kind() == reflect.Map && t.Key().Kind() == reflect.String):
		return KindDynamic
	}
	return KindStatic
}

// PropertyDescriptor exposes one property of a type through a getter instead
// of a struct field.
type PropertyDescriptor struct {
	Name     string
	Type     reflect.Type
	GetValue func(item interface{}) (interface{}, error)
}

var descriptorRegistry = struct {
	sync.RWMutex
	data map[reflect.Type][]PropertyDescriptor
}{
	data: make(map[reflect.Type][]PropertyDescriptor),
}

// RegisterTypeDescriptor makes the given properties the members of t (and *t).
func RegisterTypeDescriptor(t reflect.Type, properties ...PropertyDescriptor) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	copied := make([]PropertyDescriptor, len(properties))
	copy(copied, properties)

	descriptorRegistry.Lock()
	defer descriptorRegistry.Unlock()
	descriptorRegistry.data[t] = copied
}

func descriptorFor(t reflect.Type) ([]PropertyDescriptor, bool) {
	if t == nil {
		return nil, false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	descriptorRegistry.RLock()
	defer descriptorRegistry.RUnlock()
	props, ok := descriptorRegistry.data[t]
	return props, ok
}

func hasDescriptor(t reflect.Type) bool {
	_, ok := descriptorFor(t)
	return ok
}

func findProperty(props []PropertyDescriptor, name string) (PropertyDescriptor, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	for _, p := range props {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return PropertyDescriptor{}, false
}

func propertyNames(props []PropertyDescriptor) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name
	}
	return names
}

// jsonFieldName returns the name from a json struct tag, "" when there is none.
func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// structField finds an exported field by Go name, then by json tag name,
// then by either name ignoring case. Promoted fields of embedded structs are found too.
func structField(t reflect.Type, name string) (reflect.StructField, bool) {
	if sf, ok := t.FieldByName(name); ok && sf.IsExported() {
		return sf, true
	}

	var match reflect.StructField
	found := false
	visitFields(t, func(sf reflect.StructField) bool {
		if jsonFieldName(sf) == name {
			match, found = sf, true
			return false
		}
		return true
	})
	if found {
		return match, true
	}

	visitFields(t, func(sf reflect.StructField) bool {
		jsonName := jsonFieldName(sf)
		if strings.EqualFold(sf.Name, name) || (jsonName != "" && strings.EqualFold(jsonName, name)) {
			match, found = sf, true
			return false
		}
		return true
	})
	return match, found
}

// visitFields walks exported fields breadth-first through embedded structs.
// Index paths are absolute from t.
func visitFields(t reflect.Type, fn func(reflect.StructField) bool) {
	type level struct {
		t     reflect.Type
		index []int
	}
	queue := []level{{t: t}}
	seen := map[reflect.Type]bool{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur.t] {
			continue
		}
		seen[cur.t] = true

		for i := 0; i < cur.t.NumField(); i++ {
			sf := cur.t.Field(i)
			sf.Index = append(append([]int(nil), cur.index...), i)
			if sf.Anonymous {
				et := sf.Type
				if et.Kind() == reflect.Pointer {
					et = et.Elem()
				}
				if et.Kind() == reflect.Struct {
					queue = append(queue, level{t: et, index: sf.Index})
				}
				continue
			}
			if !sf.IsExported() || jsonFieldName(sf) == "-" {
				continue
			}
			if !fn(sf) {
				return
			}
		}
	}
}

func fieldNames(t reflect.Type) []string {
	var names []string
	visitFields(t, func(sf reflect.StructField) bool {
		names = append(names, sf.Name)
		if j := jsonFieldName(sf); j != "" {
			names = append(names, j)
		}
		return true
	})
	return names
}

// FirstOrderable returns the first member of shape whose values can be
// ordered: a column of a tabular shape, a property of a registered type
// descriptor or an exported field of a struct. Dynamic and markup shapes have
// no static members and report false.
func FirstOrderable(shape Shape) (string, bool) {
	orderable := func(t reflect.Type) bool {
		return t != nil && expr.IsOrderable(t)
	}

	switch KindOf(shape) {
	case KindTabular:
		for _, c := range shape.Columns {
			if orderable(c.Type) {
				return c.Name, true
			}
		}
	case KindDescriptor:
		props, _ := descriptorFor(shape.Type)
		for _, p := range props {
			if orderable(p.Type) {
				return p.Name, true
			}
		}
	case KindStatic:
		t := shape.Type
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return "", false
		}
		var name string
		visitFields(t, func(sf reflect.StructField) bool {
			if orderable(sf.Type) {
				name = sf.Name
				return false
			}
			return true
		})
		return name, name != ""
	}
	return "", false
}
