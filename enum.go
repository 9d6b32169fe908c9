package datasource

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/nlstn/go-datasource/internal/expr"
	"github.com/nlstn/go-datasource/internal/member"
)

// EnumMember describes a single enum member when registering enums programmatically.
type EnumMember = expr.EnumMember

// RegisterEnumType registers the members of an integral enum type so that
// filter literals can name them, e.g. "Status~eq~'Active'".
// The enumValue parameter accepts either a zero value of the enum type or a pointer to the enum type.
func RegisterEnumType(enumValue interface{}, members map[string]int64) error {
	if enumValue == nil {
		return fmt.Errorf("enumValue cannot be nil")
	}
	if len(members) == 0 {
		return fmt.Errorf("enum members cannot be empty")
	}

	enumType := reflect.TypeOf(enumValue)
	if enumType.Kind() == reflect.Pointer {
		enumType = enumType.Elem()
	}

	converted := make([]EnumMember, 0, len(members))
	for name, value := range members {
		converted = append(converted, EnumMember{Name: name, Value: value})
	}

	sort.Slice(converted, func(i, j int) bool {
		if converted[i].Value == converted[j].Value {
			return converted[i].Name < converted[j].Name
		}
		return converted[i].Value < converted[j].Value
	})

	return expr.RegisterEnumMembers(enumType, converted)
}

// RegisterTypeDescriptor makes properties the members of the type of value,
// replacing its struct fields for filtering, sorting, grouping and aggregation.
func RegisterTypeDescriptor(value interface{}, properties ...PropertyDescriptor) error {
	if value == nil {
		return fmt.Errorf("value cannot be nil")
	}
	if len(properties) == 0 {
		return fmt.Errorf("type descriptor for %T needs at least one property", value)
	}
	for _, p := range properties {
		if p.Name == "" || p.Type == nil || p.GetValue == nil {
			return fmt.Errorf("type descriptor for %T has an incomplete property %q", value, p.Name)
		}
	}
	member.RegisterTypeDescriptor(reflect.TypeOf(value), properties...)
	return nil
}
