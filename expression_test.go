package odatax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeString(t *testing.T) {
	x := Param("x")
	tags := Field(x, "Tags", KindCollection)

	tests := map[string]struct {
		node     Node
		expected string
	}{
		"compare":  {node: Ge(Field(x, "Rating", KindInt), Value(3)), expected: "(x.Rating >= 3)"},
		"string":   {node: Eq(Field(x, "Name", KindString), Value("Foo")), expected: `(x.Name == "Foo")`},
		"null":     {node: Ne(Field(x, "Name", KindString), Value(nil)), expected: "(x.Name != null)"},
		"path":     {node: Path(x, KindString, "Complex", "Name"), expected: "x.Complex.Name"},
		"logical":  {node: Or(And(Field(x, "A", KindBool), Field(x, "B", KindBool)), Not(Field(x, "C", KindBool))), expected: "((x.A && x.B) || !x.C)"},
		"tests":    {node: And(IsTrue(Field(x, "A", KindBool)), IsFalse(Field(x, "B", KindBool))), expected: "(IsTrue(x.A) && IsFalse(x.B))"},
		"any":      {node: Any(tags, "c", Eq(Param("c"), Value("go"))), expected: `x.Tags.Any(c => (c == "go"))`},
		"all":      {node: All(tags, "c", Eq(Param("c"), Value("go"))), expected: `x.Tags.All(c => (c == "go"))`},
		"project":  {node: Project(tags, "c", Param("c")), expected: "x.Tags.Select(c => c)"},
		"convert":  {node: Convert{Inner: Field(x, "Rating", KindInt), Type: KindFloat}, expected: "float(x.Rating)"},
		"call":     {node: Format(Value("%s-%d"), Var("a"), Value(1)), expected: `Format("%s-%d", $a, 1)`},
		"concat":   {node: Concat(Value("a"), Value("b")), expected: `Concat("a", "b")`},
		"literal":  {node: Lit("a eq 1"), expected: `literal("a eq 1")`},
		"eval":     {node: Expr("n + 1"), expected: `eval("n + 1")`},
		"score":    {node: Score{}, expected: "search.score()"},
		"nil_side": {node: Eq(nil, Value(1)), expected: "(<nil> == 1)"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.node.String())
		})
	}
}

func TestFieldPathOf(t *testing.T) {
	x := Param("x")

	tests := map[string]struct {
		node Node
		path FieldPath
		root Parameter
		kind Kind
		ok   bool
	}{
		"single": {
			node: Field(x, "Name", KindString),
			path: FieldPath{"Name"}, root: x, kind: KindString, ok: true,
		},
		"nested": {
			node: Path(x, KindInt, "Complex", "Inner", "Count"),
			path: FieldPath{"Complex", "Inner", "Count"}, root: x, kind: KindInt, ok: true,
		},
		"bare_parameter": {
			node: x,
			root: x, kind: KindAuto, ok: true,
		},
		"convert_overrides_kind": {
			node: Convert{Inner: Field(x, "Rating", KindInt), Type: KindFloat},
			path: FieldPath{"Rating"}, root: x, kind: KindFloat, ok: true,
		},
		"convert_auto_keeps_kind": {
			node: Convert{Inner: Field(x, "Rating", KindInt)},
			path: FieldPath{"Rating"}, root: x, kind: KindInt, ok: true,
		},
		"closed_root": {
			node: Field(Var("v"), "Length", KindInt),
		},
		"convert_of_value": {
			node: Convert{Inner: Value(1), Type: KindFloat},
		},
		"value": {
			node: Value(1),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path, root, kind, ok := FieldPathOf(tt.node)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.root, root)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestFieldPathString(t *testing.T) {
	assert.Equal(t, "Complex.JsonProperty", FieldPath{"Complex", "JsonProperty"}.String())
	assert.Equal(t, "", FieldPath{}.String())
}
