package compile

import (
	"fmt"
	"reflect"

	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/expr"
)

// Key compiles the key selector of a sort or group member. Direction is
// applied by the caller when ordering.
func (c *Compiler) Key(member string) (*expr.Lambda, error) {
	return c.strategy.Lambda(member)
}

// Sort compiles a sort descriptor into its key selector.
func (c *Compiler) Sort(s descriptor.SortDescriptor) (*expr.Lambda, error) {
	return c.Key(s.Member)
}

// KeyEquals compiles item => item.<member> == key using exact, case-sensitive
// equality. It scopes group aggregates to the items of one group.
func (c *Compiler) KeyEquals(member string, key interface{}) (*expr.Lambda, error) {
	m, err := c.strategy.Access(member)
	if err != nil {
		return nil, err
	}
	value, err := expr.NewConstant(key, m.Type())
	if err != nil {
		return nil, err
	}
	b, err := expr.NewBinary(expr.OpEqual, m, value)
	if err != nil {
		return nil, incompatible(string(descriptor.OpIsEqualTo), m.Type(), value.Type(), err)
	}
	return c.lambda(b), nil
}

// In compiles a set-membership predicate: item => keys contains item.<member>.
// Keys are matched after dereferencing, so an int64 key matches a *int64 member.
func (c *Compiler) In(member string, keys []interface{}) (*expr.Lambda, error) {
	m, err := c.strategy.Access(member)
	if err != nil {
		return nil, err
	}
	set, err := newKeySet(m.Type(), keys)
	if err != nil {
		return nil, err
	}
	call := expr.NewCall("In", boolType, func(args []reflect.Value) (reflect.Value, error) {
		var v interface{}
		if args[0].IsValid() && args[0].CanInterface() {
			v = args[0].Interface()
		}
		return reflect.ValueOf(set.contains(v)), nil
	}, m)
	return c.lambda(call), nil
}

// keySet holds normalized keys. Hashable keys are looked up in a map, the
// rest are compared one by one.
type keySet struct {
	hashed map[interface{}]struct{}
	others []interface{}
}

func newKeySet(t reflect.Type, keys []interface{}) (*keySet, error) {
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}

	s := &keySet{hashed: make(map[interface{}]struct{}, len(keys))}
	for _, k := range keys {
		k = expr.Normalize(k)
		if k != nil && base.Kind() != reflect.Interface {
			v, err := expr.Coerce(k, base)
			if err != nil {
				return nil, fmt.Errorf("key %v: %w", k, err)
			}
			k = v.Interface()
		}
		s.add(k)
	}
	return s, nil
}

func (s *keySet) add(k interface{}) {
	if k == nil || reflect.TypeOf(k).Comparable() {
		s.hashed[k] = struct{}{}
		return
	}
	s.others = append(s.others, k)
}

func (s *keySet) contains(v interface{}) bool {
	v = expr.Normalize(v)
	if v == nil || reflect.TypeOf(v).Comparable() {
		if _, ok := s.hashed[v]; ok {
			return true
		}
	}
	for _, k := range s.others {
		if expr.Equal(k, v) {
			return true
		}
	}
	return false
}
