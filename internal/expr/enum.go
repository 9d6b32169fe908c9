package expr

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// EnumMember is one named value of an enum type.
type EnumMember struct {
	Name  string
	Value int64
}

var enumRegistry = struct {
	sync.RWMutex
	data map[reflect.Type][]EnumMember
}{
	data: make(map[reflect.Type][]EnumMember),
}

// RegisterEnumMembers registers the members of an integral enum type so that
// filter literals can name them.
func RegisterEnumMembers(enumType reflect.Type, members []EnumMember) error {
	if enumType == nil {
		return fmt.Errorf("enum type cannot be nil")
	}

	baseType := resolveEnumBaseType(enumType)
	if baseType == nil {
		return fmt.Errorf("enum type %s must be an integral type", enumType)
	}

	if len(members) == 0 {
		return fmt.Errorf("enum type %s must have at least one member", baseType.Name())
	}

	seenNames := make(map[string]struct{})
	normalized := make([]EnumMember, len(members))
	for i, member := range members {
		if member.Name == "" {
			return fmt.Errorf("enum type %s has a member with an empty name", baseType.Name())
		}
		key := strings.ToLower(member.Name)
		if _, exists := seenNames[key]; exists {
			return fmt.Errorf("enum type %s has duplicate member name %s", baseType.Name(), member.Name)
		}
		seenNames[key] = struct{}{}
		normalized[i] = member
	}

	sortMembers(normalized)

	enumRegistry.Lock()
	defer enumRegistry.Unlock()
	enumRegistry.data[baseType] = normalized
	return nil
}

// EnumMembers returns the members registered for t, falling back to an
// EnumMembers() map[string]<integer> method declared on the type.
func EnumMembers(t reflect.Type) ([]EnumMember, bool) {
	baseType := resolveEnumBaseType(t)
	if baseType == nil {
		return nil, false
	}

	enumRegistry.RLock()
	members, ok := enumRegistry.data[baseType]
	enumRegistry.RUnlock()
	if ok {
		return members, true
	}

	members, err := extractEnumMembersViaMethod(baseType)
	if err != nil || len(members) == 0 {
		return nil, false
	}
	if err := RegisterEnumMembers(baseType, members); err != nil {
		return nil, false
	}
	return members, true
}

// ParseEnum resolves name (case-insensitive) to a value of enumType.
func ParseEnum(enumType reflect.Type, name string) (reflect.Value, bool) {
	members, ok := EnumMembers(enumType)
	if !ok {
		return reflect.Value{}, false
	}
	for _, m := range members {
		if strings.EqualFold(m.Name, name) {
			out := reflect.New(enumType).Elem()
			if out.CanInt() {
				out.SetInt(m.Value)
			} else {
				out.SetUint(uint64(m.Value))
			}
			return out, true
		}
	}
	return reflect.Value{}, false
}

// EnumName returns the member name of v when v's type is a registered enum.
func EnumName(v reflect.Value) (string, bool) {
	members, ok := EnumMembers(v.Type())
	if !ok {
		return "", false
	}
	var value int64
	if v.CanInt() {
		value = v.Int()
	} else {
		if v.Uint() > math.MaxInt64 {
			return "", false
		}
		value = int64(v.Uint())
	}
	for _, m := range members {
		if m.Value == value {
			return m.Name, true
		}
	}
	return "", false
}

func sortMembers(members []EnumMember) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Value == members[j].Value {
			return members[i].Name < members[j].Name
		}
		return members[i].Value < members[j].Value
	})
}

// resolveEnumBaseType unwraps pointers to find the underlying integral type.
func resolveEnumBaseType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		// builtin int kinds are never enums
		return nil
	}
	if !isIntegralKind(t.Kind()) {
		return nil
	}
	return t
}

func extractEnumMembersViaMethod(enumType reflect.Type) ([]EnumMember, error) {
	method := reflect.New(enumType).Elem().MethodByName("EnumMembers")
	if !method.IsValid() {
		method = reflect.New(enumType).MethodByName("EnumMembers")
	}
	if !method.IsValid() {
		return nil, nil
	}

	if method.Type().NumIn() != 0 || method.Type().NumOut() != 1 {
		return nil, fmt.Errorf("EnumMembers method on type %s must have signature EnumMembers() map[string]<integer>", enumType.Name())
	}
	resultType := method.Type().Out(0)
	if resultType.Kind() != reflect.Map || resultType.Key().Kind() != reflect.String || !isIntegralKind(resultType.Elem().Kind()) {
		return nil, fmt.Errorf("EnumMembers method on type %s must return map[string]<integer>", enumType.Name())
	}

	mapValue := method.Call(nil)[0]
	if mapValue.IsNil() {
		return nil, fmt.Errorf("EnumMembers method on type %s returned nil", enumType.Name())
	}

	members := make([]EnumMember, 0, mapValue.Len())
	iter := mapValue.MapRange()
	for iter.Next() {
		value := iter.Value()
		var memberValue int64
		if value.CanInt() {
			memberValue = value.Int()
		} else {
			if value.Uint() > math.MaxInt64 {
				return nil, fmt.Errorf("enum type %s member %s exceeds maximum supported value", enumType.Name(), iter.Key().String())
			}
			memberValue = int64(value.Uint())
		}
		members = append(members, EnumMember{Name: iter.Key().String(), Value: memberValue})
	}
	sortMembers(members)
	return members, nil
}

func isIntegralKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
