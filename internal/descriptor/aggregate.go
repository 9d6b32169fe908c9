package descriptor

import (
	"fmt"
	"strings"
	"unicode"
)

// AggregateKind names an aggregate function, e.g. "sum". Built-in kinds are
// listed below; custom kinds are registered with the aggregate framework.
type AggregateKind string

const (
	AggregateSum     AggregateKind = "sum"
	AggregateCount   AggregateKind = "count"
	AggregateAverage AggregateKind = "average"
	AggregateMin     AggregateKind = "min"
	AggregateMax     AggregateKind = "max"
)

// MethodName returns the capitalized kind, e.g. "Average".
func (k AggregateKind) MethodName() string {
	s := string(k)
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// AggregateFunction requests one aggregate over SourceField.
type AggregateFunction struct {
	Kind        AggregateKind
	SourceField string
	// Name overrides the generated FunctionName when set.
	Name string
	// ResultFormat is an fmt format applied to the computed value, e.g. "%.2f".
	ResultFormat string
}

// FunctionName identifies the function inside a scope. It is stable per
// source field and kind and is a valid exported Go identifier, so it can name
// a field of a synthesized record.
func (f AggregateFunction) FunctionName() string {
	if f.Name != "" {
		return f.Name
	}
	var b strings.Builder
	b.WriteString(f.Kind.MethodName())
	b.WriteByte('_')
	for _, r := range f.SourceField {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// AggregateDescriptor lists the aggregate functions requested for a member.
type AggregateDescriptor struct {
	Member             string
	AggregateFunctions []AggregateFunction
}

// NewAggregateDescriptor creates a descriptor for member with one function per kind.
func NewAggregateDescriptor(member string, kinds ...AggregateKind) AggregateDescriptor {
	d := AggregateDescriptor{Member: member}
	for _, k := range kinds {
		d.AggregateFunctions = append(d.AggregateFunctions, AggregateFunction{Kind: k, SourceField: member})
	}
	return d
}

// Functions flattens the functions of all descriptors. Repeated requests for
// the same kind over the same field are dropped; distinct functions whose
// generated names collide, such as Sum over "a.b" and "a_b", get a numeric
// suffix so every result stays addressable.
func Functions(descriptors []AggregateDescriptor) []AggregateFunction {
	type identity struct {
		kind  AggregateKind
		field string
		name  string
	}
	seen := make(map[identity]struct{})
	names := make(map[string]int)
	var out []AggregateFunction
	for _, d := range descriptors {
		for _, f := range d.AggregateFunctions {
			if f.SourceField == "" {
				f.SourceField = d.Member
			}
			id := identity{kind: f.Kind, field: f.SourceField, name: f.Name}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			name := f.FunctionName()
			names[name]++
			if n := names[name]; n > 1 {
				f.Name = fmt.Sprintf("%s_%d", name, n)
				names[f.Name]++
			}
			out = append(out, f)
		}
	}
	return out
}
