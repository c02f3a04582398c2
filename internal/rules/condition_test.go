package rules_test

import (
	"github.com/clambin/greenhouse-controller/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"testing"
)

func TestCondition_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    rules.Condition
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "literal",
			input:   `{ parameter: indoor_temp, operator: ">", value: 28 }`,
			want:    rules.Condition{Parameter: "indoor_temp", Operator: rules.GreaterThan, CompareTo: rules.Literal{Value: 28}},
			wantErr: assert.NoError,
		},
		{
			name:    "reference",
			input:   `{ parameter: indoor_humidity, operator: "<=", ref: max_humidity, offset: -5 }`,
			want:    rules.Condition{Parameter: "indoor_humidity", Operator: rules.LessOrEqual, CompareTo: rules.Reference{Parameter: "max_humidity", Offset: -5}},
			wantErr: assert.NoError,
		},
		{
			name:    "unknown operator",
			input:   `{ parameter: indoor_temp, operator: "~", value: 28 }`,
			want:    rules.Condition{Parameter: "indoor_temp", Operator: rules.InvalidOperator, CompareTo: rules.Literal{Value: 28}},
			wantErr: assert.NoError,
		},
		{
			name:    "value and ref",
			input:   `{ parameter: indoor_temp, operator: ">", value: 28, ref: max_temp }`,
			wantErr: assert.Error,
		},
		{
			name:    "no operand",
			input:   `{ parameter: indoor_temp, operator: ">" }`,
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var c rules.Condition
			tt.wantErr(t, yaml.Unmarshal([]byte(tt.input), &c))
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestCondition_MarshalYAML(t *testing.T) {
	in := []rules.Condition{
		{Parameter: "indoor_temp", Operator: rules.GreaterThan, CompareTo: rules.Literal{Value: 28}},
		{Parameter: "indoor_humidity", Operator: rules.LessThan, CompareTo: rules.Reference{Parameter: "max_humidity", Offset: -5}},
	}
	body, err := yaml.Marshal(in)
	require.NoError(t, err)

	var out []rules.Condition
	require.NoError(t, yaml.Unmarshal(body, &out))
	assert.Equal(t, in, out)
}

func TestCondition_String(t *testing.T) {
	tests := []struct {
		name      string
		condition rules.Condition
		want      string
	}{
		{
			name:      "literal",
			condition: rules.Condition{Parameter: "indoor_temp", Operator: rules.GreaterOrEqual, CompareTo: rules.Literal{Value: 28.5}},
			want:      "indoor_temp >= 28.5",
		},
		{
			name:      "negative offset",
			condition: rules.Condition{Parameter: "indoor_humidity", Operator: rules.LessThan, CompareTo: rules.Reference{Parameter: "max_humidity", Offset: -5}},
			want:      "indoor_humidity < max_humidity-5",
		},
		{
			name:      "positive offset",
			condition: rules.Condition{Parameter: "indoor_temp", Operator: rules.Equal, CompareTo: rules.Reference{Parameter: "target", Offset: 1.5}},
			want:      "indoor_temp == target+1.5",
		},
		{
			name:      "no offset",
			condition: rules.Condition{Parameter: "indoor_temp", Operator: rules.LessOrEqual, CompareTo: rules.Reference{Parameter: "target"}},
			want:      "indoor_temp <= target",
		},
		{
			name:      "missing operand",
			condition: rules.Condition{Parameter: "indoor_temp"},
			want:      "indoor_temp ? ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.condition.String())
		})
	}
}

func TestOperator_Compare(t *testing.T) {
	tests := []struct {
		operator    rules.Operator
		left, right float64
		want        bool
	}{
		{rules.GreaterThan, 29, 28, true},
		{rules.GreaterThan, 28, 28, false},
		{rules.LessThan, 27, 28, true},
		{rules.LessThan, 28, 28, false},
		{rules.GreaterOrEqual, 28, 28, true},
		{rules.GreaterOrEqual, 27.99, 28, false},
		{rules.LessOrEqual, 28, 28, true},
		{rules.LessOrEqual, 28.01, 28, false},
		{rules.Equal, 28, 28, true},
		{rules.InvalidOperator, 28, 28, false},
	}

	for _, tt := range tests {
		t.Run(tt.operator.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.operator.Compare(tt.left, tt.right))
		})
	}
}
