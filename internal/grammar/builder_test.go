package grammar

import (
	"errors"
	"testing"
	"time"

	"github.com/nlstn/go-datasource/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected descriptor.Filter
	}{
		{
			name:  "Conjunction",
			input: "Age gt 30 and Name startswith 'Jo'",
			expected: descriptor.And(
				&descriptor.FilterDescriptor{Member: "Age", Operator: descriptor.OpIsGreaterThan, Value: float64(30)},
				&descriptor.FilterDescriptor{Member: "Name", Operator: descriptor.OpStartsWith, Value: "Jo"},
			),
		},
		{
			name:  "Chain flattens",
			input: "A~eq~1~and~B~eq~2~and~C~eq~3",
			expected: descriptor.And(
				&descriptor.FilterDescriptor{Member: "A", Operator: descriptor.OpIsEqualTo, Value: float64(1)},
				&descriptor.FilterDescriptor{Member: "B", Operator: descriptor.OpIsEqualTo, Value: float64(2)},
				&descriptor.FilterDescriptor{Member: "C", Operator: descriptor.OpIsEqualTo, Value: float64(3)},
			),
		},
		{
			name:     "Null literal",
			input:    "Manager~eq~null",
			expected: &descriptor.FilterDescriptor{Member: "Manager", Operator: descriptor.OpIsEqualTo, Value: "null"},
		},
		{
			name:     "Unary",
			input:    "Email~isnotnullorempty",
			expected: &descriptor.FilterDescriptor{Member: "Email", Operator: descriptor.OpIsNotNullOrEmpty},
		},
		{
			name:     "Datetime",
			input:    "Born~gte~datetime'2001-02-03T04-05-06'",
			expected: &descriptor.FilterDescriptor{Member: "Born", Operator: descriptor.OpIsGreaterThanOrEqualTo, Value: time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)},
		},
		{
			name:  "Not pushed down",
			input: "not (Age~lt~18~or~Name~contains~'bot')",
			expected: descriptor.And(
				&descriptor.FilterDescriptor{Member: "Age", Operator: descriptor.OpIsGreaterThanOrEqualTo, Value: float64(18)},
				&descriptor.FilterDescriptor{Member: "Name", Operator: descriptor.OpDoesNotContain, Value: "bot"},
			),
		},
		{
			name:     "Function call form",
			input:    "endswith(Email,'.org')",
			expected: &descriptor.FilterDescriptor{Member: "Email", Operator: descriptor.OpEndsWith, Value: ".org"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilter(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f)
		})
	}
}

func TestParseFilterEmpty(t *testing.T) {
	f, err := ParseFilter("~")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestParseFilterErrors(t *testing.T) {
	tests := []string{
		"Age",
		"Age~gt~30~and~Active",
		"not Name~startswith~'a'",
		"contains(Name,'a','b')",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParseFilter(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrGrammar))
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	original := descriptor.And(
		&descriptor.FilterDescriptor{Member: "Age", Operator: descriptor.OpIsGreaterThan, Value: float64(30.5)},
		descriptor.Or(
			&descriptor.FilterDescriptor{Member: "Name", Operator: descriptor.OpContains, Value: "O'Neil"},
			&descriptor.FilterDescriptor{Member: "Email", Operator: descriptor.OpIsNull},
		),
	)

	parsed, err := ParseFilter(descriptor.SerializeFilter(original))
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestSerializeRoundTripDropsEmptyComposites(t *testing.T) {
	age := &descriptor.FilterDescriptor{Member: "Age", Operator: descriptor.OpIsGreaterThan, Value: float64(30)}
	name := &descriptor.FilterDescriptor{Member: "Name", Operator: descriptor.OpIsNull}

	parsed, err := ParseFilter(descriptor.SerializeFilter(descriptor.And(age, descriptor.And(), name)))
	require.NoError(t, err)
	assert.Equal(t, descriptor.And(age, name), parsed)
}
