package datasource

import (
	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/nlstn/go-datasource/internal/grammar"
)

// FormatFilter writes f in the filter grammar, so that ParseFilter(FormatFilter(f))
// describes the same filter.
func FormatFilter(f Filter) string {
	return descriptor.SerializeFilter(f)
}

// ParseSorts parses "member-asc~member-desc" tokens.
func ParseSorts(s string) ([]SortDescriptor, error) {
	return descriptor.DeserializeSorts(s)
}

// ParseGroups parses "member-asc~member-desc" tokens.
func ParseGroups(s string) ([]GroupDescriptor, error) {
	return descriptor.DeserializeGroups(s)
}

// ParseAggregates parses "member-sum-max~member-count" tokens.
func ParseAggregates(s string) ([]AggregateDescriptor, error) {
	return descriptor.DeserializeAggregates(s)
}

// MarshalRequest encodes r as a compact binary snapshot.
func MarshalRequest(r *Request) ([]byte, error) {
	return descriptor.MarshalRequest(r)
}

// UnmarshalRequest decodes a snapshot written by MarshalRequest.
func UnmarshalRequest(data []byte) (*Request, error) {
	return descriptor.UnmarshalRequest(data, grammar.ParseFilter)
}
