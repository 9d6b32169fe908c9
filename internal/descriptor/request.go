package descriptor

import (
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Request describes one query: filters are combined with AND, groups are
// applied outermost first, Page is 1-based and PageSize <= 0 means unpaged.
type Request struct {
	Filters    []Filter
	Sorts      []SortDescriptor
	Groups     []GroupDescriptor
	Aggregates []AggregateDescriptor
	Page       int
	PageSize   int
}

// Normalize clamps Page to at least 1.
func (r *Request) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
}

// Paged reports whether the request asks for a page rather than every item.
func (r *Request) Paged() bool {
	return r.PageSize > 0
}

// Skip returns the number of items before the requested page. It saturates
// at math.MaxInt instead of overflowing.
func (r *Request) Skip() int {
	if !r.Paged() || r.Page <= 1 {
		return 0
	}
	if r.Page-1 > math.MaxInt/r.PageSize {
		return math.MaxInt
	}
	return (r.Page - 1) * r.PageSize
}

// DistributeAggregates gives every group the functions of the request
// aggregates. Groups decoded from tokens carry none of their own.
func (r *Request) DistributeAggregates() {
	fns := Functions(r.Aggregates)
	for i := range r.Groups {
		r.Groups[i].AggregateFunctions = append([]AggregateFunction(nil), fns...)
	}
}

// Filter returns the request filters as one descriptor, or nil when there are none.
func (r *Request) Filter() Filter {
	switch len(r.Filters) {
	case 0:
		return nil
	case 1:
		return r.Filters[0]
	}
	return And(r.Filters...)
}

// snapshot is the msgpack form of a Request: every descriptor collection is
// stored in its textual token form.
type snapshot struct {
	Filter    string `msgpack:"filter,omitempty"`
	Sort      string `msgpack:"sort,omitempty"`
	Group     string `msgpack:"group,omitempty"`
	Aggregate string `msgpack:"aggregate,omitempty"`
	Page      int    `msgpack:"page"`
	PageSize  int    `msgpack:"pageSize"`
}

// FilterParser turns filter grammar text into a descriptor. The grammar
// package provides the implementation; it is injected to keep this package a leaf.
type FilterParser func(text string) (Filter, error)

// MarshalRequest encodes r as a compact MessagePack snapshot.
func MarshalRequest(r *Request) ([]byte, error) {
	s := snapshot{
		Sort:      SerializeSorts(r.Sorts),
		Group:     SerializeGroups(r.Groups),
		Aggregate: SerializeAggregates(r.Aggregates),
		Page:      r.Page,
		PageSize:  r.PageSize,
	}
	if f := r.Filter(); f != nil {
		s.Filter = SerializeFilter(f)
	}
	data, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalRequest decodes a snapshot written by MarshalRequest.
func UnmarshalRequest(data []byte, parse FilterParser) (*Request, error) {
	if len(data) == 0 {
		return nil, errEmptySnapshot
	}
	var s snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode request snapshot: %w", err)
	}

	r := &Request{Page: s.Page, PageSize: s.PageSize}
	if s.Filter != "" && parse != nil {
		f, err := parse(s.Filter)
		if err != nil {
			return nil, err
		}
		if f != nil {
			r.Filters = []Filter{f}
		}
	}

	var err error
	if r.Sorts, err = DeserializeSorts(s.Sort); err != nil {
		return nil, err
	}
	if r.Groups, err = DeserializeGroups(s.Group); err != nil {
		return nil, err
	}
	if r.Aggregates, err = DeserializeAggregates(s.Aggregate); err != nil {
		return nil, err
	}
	r.DistributeAggregates()
	return r, nil
}
