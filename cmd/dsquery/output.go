package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nlstn/go-datasource"
	"github.com/olekukonko/tablewriter"
)

// formatter prints query results.
type formatter interface {
	Result(res *datasource.Result) error
	Tree(res *datasource.TreeResult) error
}

func newFormatter(format string, w io.Writer) formatter {
	switch format {
	case "table":
		return &tableFormatter{writer: w}
	case "json":
		return &jsonFormatter{writer: w}
	case "jsonl":
		return &jsonlFormatter{writer: w}
	}
	return nil
}

// tableFormatter renders rows, groups and aggregates as text tables.
type tableFormatter struct {
	writer io.Writer
}

func (t *tableFormatter) Result(res *datasource.Result) error {
	if len(res.Data) > 0 {
		if _, grouped := res.Data[0].(*datasource.Group); grouped {
			t.groups(res.Data)
		} else {
			t.rows(res.Data)
		}
	}
	fmt.Fprintf(t.writer, "Total: %d\n", res.Total)
	if len(res.AggregateResults) > 0 {
		t.aggregates(res.AggregateResults)
	}
	return nil
}

func (t *tableFormatter) Tree(res *datasource.TreeResult) error {
	t.rows(res.Data)
	fmt.Fprintf(t.writer, "Total: %d\n", res.Total)

	parents := make([]string, 0, len(res.AggregateResults))
	for key := range res.AggregateResults {
		parents = append(parents, key)
	}
	sort.Strings(parents)
	for _, key := range parents {
		t.aggregates(res.AggregateResults[key], key)
	}
	return nil
}

func (t *tableFormatter) rows(items []interface{}) {
	rows := make([]map[string]interface{}, len(items))
	for i, item := range items {
		rows[i] = toMap(item)
	}
	columns := columnsOf(rows)

	table := tablewriter.NewWriter(t.writer)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(columns)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = cell(row[c])
		}
		table.Append(cells)
	}
	table.Render()
}

func (t *tableFormatter) groups(items []interface{}) {
	var names []string
	seen := make(map[string]bool)
	var visit func(groups []*datasource.Group)
	visit = func(groups []*datasource.Group) {
		for _, g := range groups {
			for _, a := range g.Aggregates {
				if !seen[a.FunctionName] {
					seen[a.FunctionName] = true
					names = append(names, a.FunctionName)
				}
			}
			visit(g.Subgroups)
		}
	}
	top := make([]*datasource.Group, len(items))
	for i, item := range items {
		top[i] = item.(*datasource.Group)
	}
	visit(top)

	table := tablewriter.NewWriter(t.writer)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(append([]string{"Group", "Items"}, names...))
	var add func(groups []*datasource.Group, depth int)
	add = func(groups []*datasource.Group, depth int) {
		for _, g := range groups {
			results := g.AggregateResults()
			row := []string{
				strings.Repeat("  ", depth) + fmt.Sprintf("%s: %s", g.Member, cell(g.Key)),
				fmt.Sprint(g.ItemCount),
			}
			for _, name := range names {
				if r, ok := results[name]; ok {
					row = append(row, r.FormattedValue())
				} else {
					row = append(row, "")
				}
			}
			table.Append(row)
			add(g.Subgroups, depth+1)
		}
	}
	add(top, 0)
	table.Render()
}

func (t *tableFormatter) aggregates(results map[string]datasource.AggregateResult, parent ...string) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(t.writer)
	table.SetAutoFormatHeaders(false)
	if len(parent) > 0 {
		table.SetHeader([]string{"Parent", "Aggregate", "Value"})
	} else {
		table.SetHeader([]string{"Aggregate", "Value"})
	}
	for _, name := range names {
		table.Append(append(parent, name, results[name].FormattedValue()))
	}
	table.Render()
}

// jsonFormatter writes the whole result as one indented JSON document.
type jsonFormatter struct {
	writer io.Writer
}

func (j *jsonFormatter) Result(res *datasource.Result) error {
	return j.encode(res)
}

func (j *jsonFormatter) Tree(res *datasource.TreeResult) error {
	return j.encode(res)
}

func (j *jsonFormatter) encode(v interface{}) error {
	encoder := json.NewEncoder(j.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// jsonlFormatter writes one JSON object per row or group.
type jsonlFormatter struct {
	writer io.Writer
}

func (j *jsonlFormatter) Result(res *datasource.Result) error {
	return j.lines(res.Data)
}

func (j *jsonlFormatter) Tree(res *datasource.TreeResult) error {
	return j.lines(res.Data)
}

func (j *jsonlFormatter) lines(items []interface{}) error {
	encoder := json.NewEncoder(j.writer)
	for _, item := range items {
		if err := encoder.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// toMap converts a row to an open object through its JSON form.
func toMap(item interface{}) map[string]interface{} {
	switch v := item.(type) {
	case map[string]interface{}:
		return v
	case interface{ Map() map[string]interface{} }:
		return v.Map()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return map[string]interface{}{"value": fmt.Sprint(item)}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]interface{}{"value": fmt.Sprint(item)}
	}
	return m
}

func columnsOf(rows []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for name := range row {
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

func cell(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
