package pipeline

import (
	"github.com/nlstn/go-datasource/internal/aggregate"
)

// Result is one page of rows or groups.
type Result struct {
	// Data holds projected rows, or *Group values when the request groups.
	Data []interface{} `json:"data"`
	// Total is the number of items matching the filter, before paging.
	Total int `json:"total"`
	// AggregateResults holds the request aggregates keyed by function name,
	// computed over every matching item regardless of paging.
	AggregateResults map[string]aggregate.Result `json:"aggregateResults,omitempty"`
	// Errors is passed through from the caller unchanged.
	Errors interface{} `json:"errors,omitempty"`
}

// AggregateValues returns the raw aggregate values keyed by function name.
func (r *Result) AggregateValues() map[string]interface{} {
	out := make(map[string]interface{}, len(r.AggregateResults))
	for name, res := range r.AggregateResults {
		out[name] = res.Value
	}
	return out
}

// Group is one group of a grouped result.
type Group struct {
	Key          interface{} `json:"key"`
	ItemCount    int         `json:"itemCount"`
	HasSubgroups bool        `json:"hasSubgroups"`
	// Member is the member the group was formed on.
	Member string `json:"member"`
	// Items holds the projected rows of a leaf group.
	Items []interface{} `json:"items,omitempty"`
	// Subgroups holds the next level when HasSubgroups is set.
	Subgroups []*Group `json:"subgroups,omitempty"`
	// AggregateProjection is the synthesized record holding this group's
	// aggregates, nil when the level requests none.
	AggregateProjection interface{}        `json:"-"`
	Aggregates          []aggregate.Result `json:"aggregates,omitempty"`
}

// AggregateResults returns the group aggregates keyed by function name.
func (g *Group) AggregateResults() map[string]aggregate.Result {
	return resultMap(g.Aggregates)
}

func resultMap(results []aggregate.Result) map[string]aggregate.Result {
	if len(results) == 0 {
		return nil
	}
	out := make(map[string]aggregate.Result, len(results))
	for _, r := range results {
		out[r.FunctionName] = r
	}
	return out
}
