package aggregate

import (
	"fmt"
	"go/token"
	"reflect"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// RecordField is one (name, type) pair of a record signature.
type RecordField struct {
	Name string
	Type reflect.Type
}

type recordEntry struct {
	fields []RecordField
	typ    reflect.Type
}

// recordCache maps signature hashes to synthesized struct types. Entries in a
// bucket are compared field by field, so hash collisions are harmless.
var recordCache = struct {
	sync.RWMutex
	buckets map[uint64][]recordEntry
	size    int
}{
	buckets: make(map[uint64][]recordEntry),
}

func signatureHash(fields []RecordField) uint64 {
	d := xxhash.New()
	for _, f := range fields {
		_, _ = d.WriteString(f.Name)
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(f.Type.PkgPath())
		_, _ = d.WriteString(".")
		_, _ = d.WriteString(f.Type.String())
		_, _ = d.WriteString(";")
	}
	return d.Sum64()
}

func sameSignature(a, b []RecordField) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}

func lookupRecord(hash uint64, fields []RecordField) (reflect.Type, bool) {
	for _, e := range recordCache.buckets[hash] {
		if sameSignature(e.fields, fields) {
			return e.typ, true
		}
	}
	return nil, false
}

// RecordType returns the struct type with one exported field per entry, in
// order. Identical signatures always yield the identical type.
func RecordType(fields []RecordField) (reflect.Type, error) {
	hash := signatureHash(fields)

	recordCache.RLock()
	typ, ok := lookupRecord(hash, fields)
	recordCache.RUnlock()
	if ok {
		return typ, nil
	}

	recordCache.Lock()
	defer recordCache.Unlock()
	if typ, ok := lookupRecord(hash, fields); ok {
		return typ, nil
	}

	structFields := make([]reflect.StructField, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if !token.IsIdentifier(f.Name) || !token.IsExported(f.Name) {
			return nil, fmt.Errorf("record field %q is not an exported identifier", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("duplicate record field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		structFields[i] = reflect.StructField{
			Name: f.Name,
			Type: f.Type,
			Tag:  reflect.StructTag(fmt.Sprintf(`json:"%s" msgpack:"%s"`, f.Name, f.Name)),
		}
	}

	typ = reflect.StructOf(structFields)
	copied := append([]RecordField(nil), fields...)
	recordCache.buckets[hash] = append(recordCache.buckets[hash], recordEntry{fields: copied, typ: typ})
	recordCache.size++
	return typ, nil
}

// CachedRecordTypes reports how many record types have been synthesized.
func CachedRecordTypes() int {
	recordCache.RLock()
	defer recordCache.RUnlock()
	return recordCache.size
}

// fieldName turns a function name into an exported identifier.
func fieldName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'):
			b.WriteRune(r)
		case '0' <= r && r <= '9':
			if i == 0 {
				b.WriteByte('N')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if !token.IsExported(s) {
		s = "X" + s
	}
	return s
}

// Projection computes every function of a scope into one synthesized record.
type Projection struct {
	Type      reflect.Type
	functions []Function
}

// NewProjection synthesizes (or reuses) the record type for functions.
func NewProjection(functions []Function) (*Projection, error) {
	fields := make([]RecordField, len(functions))
	for i, f := range functions {
		fields[i] = RecordField{Name: fieldName(f.Descriptor().FunctionName()), Type: f.ResultType()}
	}
	typ, err := RecordType(fields)
	if err != nil {
		return nil, err
	}
	return &Projection{Type: typ, functions: functions}, nil
}

// Functions returns the functions in field order.
func (p *Projection) Functions() []Function {
	return p.functions
}

// Compute reduces items with every function and returns the record as a struct value.
func (p *Projection) Compute(items []interface{}) (interface{}, error) {
	record := reflect.New(p.Type).Elem()
	for i, f := range p.functions {
		v, err := f.Aggregate(items)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", f.Descriptor().FunctionName(), err)
		}
		if v == nil {
			continue
		}
		rv := reflect.ValueOf(v)
		field := record.Field(i)
		if !rv.Type().AssignableTo(field.Type()) {
			return nil, fmt.Errorf("aggregate %s produced %s, want %s", f.Descriptor().FunctionName(), rv.Type(), field.Type())
		}
		field.Set(rv)
	}
	return record.Interface(), nil
}
