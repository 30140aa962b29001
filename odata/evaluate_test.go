package odata

import (
	"testing"
	"time"

	"github.com/letmevibethatforyou/odatax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	Name    string
	Limit   int
	Profile *profile
	private string
}

type profile struct {
	Region string
}

func TestEvaluate(t *testing.T) {
	env := Env{
		"name":    "Foo",
		"limit":   21,
		"account": account{Name: "Ann", Limit: 5, Profile: &profile{Region: "eu"}, private: "x"},
		"labels":  map[string]string{"team": "search"},
		"since":   time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	ev := NewEvaluator(env)

	tests := map[string]struct {
		node     odatax.Node
		expected any
	}{
		"closed_value": {
			node:     odatax.Value(3.5),
			expected: 3.5,
		},
		"closed_nil": {
			node:     odatax.Value(nil),
			expected: nil,
		},
		"variable": {
			node:     odatax.Var("name"),
			expected: "Foo",
		},
		"struct_field": {
			node:     odatax.Field(odatax.Var("account"), "Name", odatax.KindString),
			expected: "Ann",
		},
		"nested_pointer_field": {
			node:     odatax.Path(odatax.Var("account"), odatax.KindString, "Profile", "Region"),
			expected: "eu",
		},
		"map_key": {
			node:     odatax.Field(odatax.Var("labels"), "team", odatax.KindString),
			expected: "search",
		},
		"field_of_closed_value": {
			node:     odatax.Field(odatax.Value(profile{Region: "us"}), "Region", odatax.KindString),
			expected: "us",
		},
		"convert_to_float": {
			node:     odatax.Convert{Inner: odatax.Var("limit"), Type: odatax.KindFloat},
			expected: float64(21),
		},
		"convert_to_int": {
			node:     odatax.Convert{Inner: odatax.Value(uint16(9)), Type: odatax.KindInt},
			expected: int64(9),
		},
		"convert_passthrough": {
			node:     odatax.Convert{Inner: odatax.Var("name")},
			expected: "Foo",
		},
		"format": {
			node:     odatax.Format(odatax.Value("%s-%d"), odatax.Var("name"), odatax.Value(7)),
			expected: "Foo-7",
		},
		"concat": {
			node:     odatax.Concat(odatax.Var("name"), odatax.Value(nil), odatax.Value(1)),
			expected: "Foo1",
		},
		"eval_arithmetic": {
			node:     odatax.Expr("limit * 2"),
			expected: 42,
		},
		"eval_string": {
			node:     odatax.Expr(`name + "Bar"`),
			expected: "FooBar",
		},
		"eval_member": {
			node:     odatax.Expr("account.Limit + 1"),
			expected: 6,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ev.Evaluate(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	ev := NewEvaluator(Env{
		"account": account{Name: "Ann"},
		"nothing": (*profile)(nil),
		"ids":     map[int]string{1: "a"},
	})
	x := odatax.Param("x")

	tests := map[string]struct {
		node    odatax.Node
		wantErr error
	}{
		"nil": {
			node:    nil,
			wantErr: odatax.ErrInvalidArgument,
		},
		"parameter": {
			node:    x,
			wantErr: odatax.ErrNotConstant,
		},
		"member_of_parameter": {
			node:    odatax.Field(x, "Name", odatax.KindString),
			wantErr: odatax.ErrNotConstant,
		},
		"parameter_in_call": {
			node:    odatax.Format(odatax.Value("%s"), odatax.Field(x, "Name", odatax.KindString)),
			wantErr: odatax.ErrNotConstant,
		},
		"undefined_variable": {
			node:    odatax.Var("missing"),
			wantErr: odatax.ErrEvaluationFailed,
		},
		"missing_field": {
			node:    odatax.Field(odatax.Var("account"), "Email", odatax.KindString),
			wantErr: odatax.ErrEvaluationFailed,
		},
		"unexported_field": {
			node:    odatax.Field(odatax.Var("account"), "private", odatax.KindString),
			wantErr: odatax.ErrEvaluationFailed,
		},
		"nil_pointer_field": {
			node:    odatax.Field(odatax.Var("nothing"), "Region", odatax.KindString),
			wantErr: odatax.ErrEvaluationFailed,
		},
		"non_string_map_key": {
			node:    odatax.Field(odatax.Var("ids"), "1", odatax.KindString),
			wantErr: odatax.ErrEvaluationFailed,
		},
		"convert_string_to_int": {
			node:    odatax.Convert{Inner: odatax.Value("abc"), Type: odatax.KindInt},
			wantErr: odatax.ErrEvaluationFailed,
		},
		"format_without_args": {
			node:    odatax.Call{Func: odatax.FuncFormat},
			wantErr: odatax.ErrEvaluationFailed,
		},
		"format_string_not_text": {
			node:    odatax.Format(odatax.Value(1)),
			wantErr: odatax.ErrEvaluationFailed,
		},
		"unknown_function": {
			node:    odatax.Call{Func: odatax.Func(42)},
			wantErr: odatax.ErrUnsupportedNode,
		},
		"nil_argument": {
			node:    odatax.Concat(odatax.Value("a"), nil),
			wantErr: odatax.ErrInvalidArgument,
		},
		"eval_syntax_error": {
			node:    odatax.Expr("account +"),
			wantErr: odatax.ErrEvaluationFailed,
		},
		"eval_unknown_name": {
			node:    odatax.Expr("undefinedName"),
			wantErr: odatax.ErrEvaluationFailed,
		},
		"literal": {
			node:    odatax.Lit("x eq 1"),
			wantErr: odatax.ErrUnsupportedNode,
		},
		"predicate": {
			node:    odatax.Eq(odatax.Value(1), odatax.Value(1)),
			wantErr: odatax.ErrUnsupportedNode,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ev.Evaluate(tt.node)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewEvaluatorCopiesEnv(t *testing.T) {
	env := Env{"name": "Foo"}
	ev := NewEvaluator(env)
	env["name"] = "Bar"

	got, err := ev.Evaluate(odatax.Var("name"))
	require.NoError(t, err)
	assert.Equal(t, "Foo", got)
}
