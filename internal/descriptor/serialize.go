package descriptor

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Separator joins grammar tokens and serialized descriptor collections.
const Separator = "~"

// DateTimeLayout is the layout of datetime'...' literals.
const DateTimeLayout = "2006-01-02T15-04-05"

// SerializeFilter writes f as filter grammar text that parses back to an
// equal descriptor.
func SerializeFilter(f Filter) string {
	var b strings.Builder
	writeFilter(&b, pruneEmpty(f), true)
	return b.String()
}

// pruneEmpty removes empty composites, which match every item and have no
// grammar form. It returns nil when f as a whole matches every item.
func pruneEmpty(f Filter) Filter {
	n, ok := f.(*CompositeFilterDescriptor)
	if !ok {
		return f
	}
	var children []Filter
	for _, c := range n.Children {
		p := pruneEmpty(c)
		if p == nil {
			if n.LogicalOperator == LogicalOr {
				return nil
			}
			continue
		}
		children = append(children, p)
	}
	if len(children) == 0 {
		return nil
	}
	return &CompositeFilterDescriptor{LogicalOperator: n.LogicalOperator, Children: children}
}

func writeFilter(b *strings.Builder, f Filter, root bool) {
	switch n := f.(type) {
	case *FilterDescriptor:
		b.WriteString(n.Member)
		b.WriteString(Separator)
		b.WriteString(string(n.Operator))
		if n.Operator.IsUnary() {
			return
		}
		b.WriteString(Separator)
		b.WriteString(FormatValue(n.Value))
	case *CompositeFilterDescriptor:
		if len(n.Children) == 1 {
			writeFilter(b, n.Children[0], root)
			return
		}
		if !root {
			b.WriteByte('(')
		}
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(Separator)
				b.WriteString(string(n.LogicalOperator))
				b.WriteString(Separator)
			}
			writeFilter(b, c, false)
		}
		if !root {
			b.WriteByte(')')
		}
	}
}

// FormatValue writes a filter value as a grammar literal.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return "datetime'" + x.Format(DateTimeLayout) + "'"
	case fmt.Stringer:
		return quote(x.String())
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "null"
		}
		return FormatValue(rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.String:
		return quote(rv.String())
	}
	return quote(fmt.Sprint(v))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// SerializeSorts writes sorts as member-asc|desc tokens joined by Separator.
func SerializeSorts(sorts []SortDescriptor) string {
	tokens := make([]string, len(sorts))
	for i, s := range sorts {
		tokens[i] = serializeSort(s)
	}
	return join(tokens)
}

func serializeSort(s SortDescriptor) string {
	return s.Member + "-" + s.Direction.String()
}

// DeserializeSorts parses the output of SerializeSorts.
func DeserializeSorts(s string) ([]SortDescriptor, error) {
	var out []SortDescriptor
	for _, token := range split(s) {
		sd, err := deserializeSort(token)
		if err != nil {
			return nil, err
		}
		out = append(out, sd)
	}
	return out, nil
}

func deserializeSort(token string) (SortDescriptor, error) {
	idx := strings.LastIndex(token, "-")
	if idx <= 0 {
		return SortDescriptor{}, fmt.Errorf("%w: %q", errInvalidSortToken, token)
	}
	sd := SortDescriptor{Member: token[:idx]}
	switch strings.ToLower(token[idx+1:]) {
	case "asc":
		sd.Direction = Ascending
	case "desc":
		sd.Direction = Descending
	default:
		return SortDescriptor{}, fmt.Errorf("%w: %q", errInvalidSortToken, token)
	}
	return sd, nil
}

// SerializeGroups writes groups as member-asc|desc tokens. Group aggregates
// travel separately as aggregate tokens.
func SerializeGroups(groups []GroupDescriptor) string {
	tokens := make([]string, len(groups))
	for i, g := range groups {
		tokens[i] = serializeSort(g.SortDescriptor)
	}
	return join(tokens)
}

// DeserializeGroups parses the output of SerializeGroups.
func DeserializeGroups(s string) ([]GroupDescriptor, error) {
	sorts, err := DeserializeSorts(s)
	if err != nil {
		return nil, err
	}
	out := make([]GroupDescriptor, len(sorts))
	for i, sd := range sorts {
		out[i] = GroupDescriptor{SortDescriptor: sd}
	}
	return out, nil
}

// SerializeAggregates writes aggregates as member-fn1-fn2 tokens.
func SerializeAggregates(aggregates []AggregateDescriptor) string {
	tokens := make([]string, len(aggregates))
	for i, a := range aggregates {
		parts := []string{a.Member}
		for _, f := range a.AggregateFunctions {
			parts = append(parts, string(f.Kind))
		}
		tokens[i] = strings.Join(parts, "-")
	}
	return join(tokens)
}

// DeserializeAggregates parses the output of SerializeAggregates.
func DeserializeAggregates(s string) ([]AggregateDescriptor, error) {
	var out []AggregateDescriptor
	for _, token := range split(s) {
		parts := strings.Split(token, "-")
		if len(parts) < 2 || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidAggregateToken, token)
		}
		kinds := make([]AggregateKind, 0, len(parts)-1)
		for _, p := range parts[1:] {
			if p == "" {
				return nil, fmt.Errorf("%w: %q", errInvalidAggregateToken, token)
			}
			kinds = append(kinds, AggregateKind(strings.ToLower(p)))
		}
		out = append(out, NewAggregateDescriptor(parts[0], kinds...))
	}
	return out, nil
}

func join(tokens []string) string {
	if len(tokens) == 0 {
		return Separator
	}
	return strings.Join(tokens, Separator)
}

func split(s string) []string {
	var out []string
	for _, part := range strings.Split(s, Separator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
