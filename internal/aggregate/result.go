package aggregate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nlstn/go-datasource/internal/descriptor"
)

// Result is the value of one aggregate function within a scope.
type Result struct {
	Member              string      `json:"member"`
	FunctionName        string      `json:"functionName"`
	AggregateMethodName string      `json:"aggregateMethodName"`
	Value               interface{} `json:"value"`
	ResultFormat        string      `json:"format,omitempty"`
}

// FormattedValue applies ResultFormat to Value. Without a format the value is
// printed with %v.
func (r Result) FormattedValue() string {
	if r.ResultFormat == "" {
		return fmt.Sprint(r.Value)
	}
	return fmt.Sprintf(r.ResultFormat, r.Value)
}

func (r Result) String() string {
	return fmt.Sprintf("%s(%s) = %s", r.AggregateMethodName, r.Member, r.FormattedValue())
}

// Results extracts one Result per function from a record produced by a
// Projection. Fields are matched by exact name first, then by name prefix.
func Results(record interface{}, functions []Function) []Result {
	rv := reflect.ValueOf(record)
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	rt := rv.Type()

	out := make([]Result, 0, len(functions))
	for _, f := range functions {
		fn := f.Descriptor()
		name := fieldName(fn.FunctionName())

		idx := -1
		if sf, ok := rt.FieldByName(name); ok {
			idx = sf.Index[0]
		} else {
			for i := 0; i < rt.NumField(); i++ {
				if strings.HasPrefix(rt.Field(i).Name, name) {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			continue
		}

		out = append(out, newResult(fn, rv.Field(idx).Interface()))
	}
	return out
}

func newResult(fn descriptor.AggregateFunction, value interface{}) Result {
	return Result{
		Member:              fn.SourceField,
		FunctionName:        fn.FunctionName(),
		AggregateMethodName: fn.Kind.MethodName(),
		Value:               value,
		ResultFormat:        fn.ResultFormat,
	}
}

// Scope evaluates p over items and returns the record with its extracted results.
func Scope(p *Projection, items []interface{}) (interface{}, []Result, error) {
	record, err := p.Compute(items)
	if err != nil {
		return nil, nil, err
	}
	return record, Results(record, p.functions), nil
}
