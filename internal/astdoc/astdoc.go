// Package astdoc decodes odatax expression trees and search requests from
// YAML documents. JSON is accepted as well, being a subset of YAML.
//
// Every node is a mapping with exactly one operator key:
//
//	eq: [left, right]              # also ne, gt, ge, lt, le
//	and: [p1, p2, ...]             # also or, folded left to right
//	not: p                         # also isTrue, isFalse
//	any: {in: coll, as: c, where: p}
//	all: {in: coll, as: c, where: p}
//	project: {in: coll, as: c, pick: field}
//	member: x.Complex.Name         # type: string
//	field: Name                    # of: node, type: string
//	param: x
//	convert: node                  # type: int
//	value: 42                      # type: int
//	literal: "rating gt 3"
//	var: name
//	format: [fmt, arg, ...]
//	concat: [arg, ...]
//	eval: "min + 1"
//	score: {}
package astdoc

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/letmevibethatforyou/odatax"
	"github.com/letmevibethatforyou/odatax/odata"
	"gopkg.in/yaml.v3"
)

// Expr is a YAML-decodable expression node.
type Expr struct {
	Node odatax.Node
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Expr) UnmarshalYAML(value *yaml.Node) error {
	n, err := decode(value)
	if err != nil {
		return err
	}
	e.Node = n
	return nil
}

// Exprs is a list of expressions. A single mapping decodes as a list of one.
type Exprs []Expr

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Exprs) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var list []Expr
		if err := value.Decode(&list); err != nil {
			return err
		}
		*e = list
		return nil
	}
	var one Expr
	if err := value.Decode(&one); err != nil {
		return err
	}
	*e = Exprs{one}
	return nil
}

// Nodes returns the decoded nodes.
func (e Exprs) Nodes() []odatax.Node {
	out := make([]odatax.Node, len(e))
	for i, x := range e {
		out[i] = x.Node
	}
	return out
}

// ParseNode decodes a single expression document.
func ParseNode(data []byte) (odatax.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse expression")
	}
	if doc.Kind == 0 {
		return nil, errors.New("expression document is empty")
	}
	return decode(&doc)
}

type opDecoder func(n *yaml.Node, mods map[string]*yaml.Node) (odatax.Node, error)

var decoders map[string]opDecoder

// modifiers lists the sibling keys an operator accepts.
var modifiers = map[string][]string{
	"member":  {"type"},
	"field":   {"of", "type"},
	"convert": {"type"},
	"value":   {"type"},
}

func init() {
	decoders = map[string]opDecoder{
		"eq":      comparison(odatax.OpEq),
		"ne":      comparison(odatax.OpNe),
		"gt":      comparison(odatax.OpGt),
		"ge":      comparison(odatax.OpGe),
		"lt":      comparison(odatax.OpLt),
		"le":      comparison(odatax.OpLe),
		"and":     logical(func(l, r odatax.Node) odatax.Node { return odatax.And(l, r) }),
		"or":      logical(func(l, r odatax.Node) odatax.Node { return odatax.Or(l, r) }),
		"not":     unary(func(n odatax.Node) odatax.Node { return odatax.Not(n) }),
		"isTrue":  unary(func(n odatax.Node) odatax.Node { return odatax.IsTrue(n) }),
		"isFalse": unary(func(n odatax.Node) odatax.Node { return odatax.IsFalse(n) }),
		"any":     quantifier(odatax.QuantifyAny),
		"all":     quantifier(odatax.QuantifyAll),
		"project": decodeProject,
		"member":  decodeMember,
		"field":   decodeField,
		"param":   decodeParam,
		"convert": decodeConvert,
		"value":   decodeValueNode,
		"literal": decodeLiteral,
		"var":     decodeVar,
		"format":  decodeFormat,
		"concat":  decodeConcat,
		"eval":    decodeEval,
		"score":   func(*yaml.Node, map[string]*yaml.Node) (odatax.Node, error) { return odatax.Score{}, nil },
	}
}

func decode(n *yaml.Node) (odatax.Node, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return nil, errorf(n, "expected an expression mapping, got %s", describe(n))
	}

	var op string
	var operand *yaml.Node
	mods := make(map[string]*yaml.Node)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		if _, ok := decoders[key]; ok {
			if op != "" {
				return nil, errorf(n.Content[i], "expression has both %q and %q", op, key)
			}
			op, operand = key, val
			continue
		}
		if _, dup := mods[key]; dup {
			return nil, errorf(n.Content[i], "duplicate key %q", key)
		}
		mods[key] = val
	}
	if op == "" {
		return nil, errorf(n, "expression has no operator")
	}
	for key := range mods {
		if !allowed(op, key) {
			return nil, errorf(mods[key], "%q does not accept %q", op, key)
		}
	}
	return decoders[op](operand, mods)
}

func allowed(op, key string) bool {
	for _, m := range modifiers[op] {
		if m == key {
			return true
		}
	}
	return false
}

func comparison(op odatax.Operator) opDecoder {
	return func(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
		args, err := decodeList(n, 2, 2)
		if err != nil {
			return nil, err
		}
		return odatax.Compare{Op: op, Left: args[0], Right: args[1]}, nil
	}
}

func logical(join func(l, r odatax.Node) odatax.Node) opDecoder {
	return func(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
		args, err := decodeList(n, 2, -1)
		if err != nil {
			return nil, err
		}
		combined := args[0]
		for _, a := range args[1:] {
			combined = join(combined, a)
		}
		return combined, nil
	}
}

func unary(wrap func(odatax.Node) odatax.Node) opDecoder {
	return func(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
		inner, err := decode(n)
		if err != nil {
			return nil, err
		}
		return wrap(inner), nil
	}
}

// lambda is the body of a quantifier or projection.
type lambda struct {
	in   odatax.Node
	as   string
	body odatax.Node
}

// decodeLambda reads {in, as, <body>} where body is "where" or "pick".
func decodeLambda(n *yaml.Node, body string) (*lambda, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return nil, errorf(n, "expected a mapping, got %s", describe(n))
	}
	var l lambda
	seen := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		if seen[key] {
			return nil, errorf(n.Content[i], "duplicate key %q", key)
		}
		seen[key] = true

		var err error
		switch key {
		case "in":
			l.in, err = decode(val)
		case "as":
			l.as, err = scalar(val)
		case body:
			l.body, err = decode(val)
		default:
			return nil, errorf(n.Content[i], "unexpected key %q; expected in, as and %s", key, body)
		}
		if err != nil {
			return nil, err
		}
	}
	switch {
	case l.in == nil:
		return nil, errorf(n, "missing collection %q", "in")
	case strings.TrimSpace(l.as) == "":
		return nil, errorf(n, "missing variable name %q", "as")
	case l.body == nil:
		return nil, errorf(n, "missing %q", body)
	}
	return &l, nil
}

func quantifier(q odatax.Quantifier) opDecoder {
	return func(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
		l, err := decodeLambda(n, "where")
		if err != nil {
			return nil, err
		}
		return odatax.Quantify{Quantifier: q, Collection: l.in, Variable: l.as, Predicate: l.body}, nil
	}
}

func decodeProject(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
	l, err := decodeLambda(n, "pick")
	if err != nil {
		return nil, err
	}
	return odatax.Project(l.in, l.as, l.body), nil
}

// decodeMember decodes a dotted path whose first segment names the parameter.
func decodeMember(n *yaml.Node, mods map[string]*yaml.Node) (odatax.Node, error) {
	text, err := scalar(n)
	if err != nil {
		return nil, err
	}
	segments := strings.Split(text, ".")
	if len(segments) < 2 {
		return nil, errorf(n, "member %q needs a parameter and at least one field", text)
	}
	for _, s := range segments {
		if s == "" {
			return nil, errorf(n, "member %q has an empty segment", text)
		}
	}
	kind, err := kindOf(mods)
	if err != nil {
		return nil, err
	}
	return odatax.Path(odatax.Param(segments[0]), kind, segments[1:]...), nil
}

func decodeField(n *yaml.Node, mods map[string]*yaml.Node) (odatax.Node, error) {
	name, err := scalar(n)
	if err != nil {
		return nil, err
	}
	of, ok := mods["of"]
	if !ok {
		return nil, errorf(n, "field %q needs a target %q", name, "of")
	}
	target, err := decode(of)
	if err != nil {
		return nil, err
	}
	kind, err := kindOf(mods)
	if err != nil {
		return nil, err
	}
	return odatax.Field(target, name, kind), nil
}

func decodeParam(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
	name, err := scalar(n)
	if err != nil {
		return nil, err
	}
	return odatax.Param(name), nil
}

func decodeConvert(n *yaml.Node, mods map[string]*yaml.Node) (odatax.Node, error) {
	inner, err := decode(n)
	if err != nil {
		return nil, err
	}
	kind, err := kindOf(mods)
	if err != nil {
		return nil, err
	}
	return odatax.Convert{Inner: inner, Type: kind}, nil
}

func decodeValueNode(n *yaml.Node, mods map[string]*yaml.Node) (odatax.Node, error) {
	kind, err := kindOf(mods)
	if err != nil {
		return nil, err
	}
	v, err := DecodeValue(n, kind)
	if err != nil {
		return nil, err
	}
	return odatax.Value(v), nil
}

func decodeLiteral(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
	text, err := scalar(n)
	if err != nil {
		return nil, err
	}
	return odatax.Lit(text), nil
}

func decodeVar(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
	name, err := scalar(n)
	if err != nil {
		return nil, err
	}
	return odatax.Var(name), nil
}

func decodeFormat(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
	args, err := decodeList(n, 1, -1)
	if err != nil {
		return nil, err
	}
	return odatax.Format(args[0], args[1:]...), nil
}

func decodeConcat(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
	args, err := decodeList(n, 0, -1)
	if err != nil {
		return nil, err
	}
	return odatax.Concat(args...), nil
}

func decodeEval(n *yaml.Node, _ map[string]*yaml.Node) (odatax.Node, error) {
	src, err := scalar(n)
	if err != nil {
		return nil, err
	}
	return odatax.Expr(src), nil
}

// DecodeValue decodes a scalar or sequence into the Go value used for kind.
// Durations accept both "hh:mm:ss" and Go's "1h30m" forms.
func DecodeValue(n *yaml.Node, kind odatax.Kind) (any, error) {
	n = resolve(n)
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}

	switch kind {
	case odatax.KindAuto, odatax.KindCollection, odatax.KindComplex:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, errorf(n, "invalid value: %v", err)
		}
		return v, nil
	case odatax.KindString:
		return scalar(n)
	case odatax.KindBool:
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, errorf(n, "invalid bool: %v", err)
		}
		return b, nil
	case odatax.KindInt:
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, errorf(n, "invalid int: %v", err)
		}
		return i, nil
	case odatax.KindFloat:
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, errorf(n, "invalid float: %v", err)
		}
		return f, nil
	case odatax.KindGUID:
		text, err := scalar(n)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(text)
		if err != nil {
			return nil, errorf(n, "invalid guid %q: %v", text, err)
		}
		return id, nil
	case odatax.KindDateTime, odatax.KindDateTimeOffset:
		text, err := scalar(n)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, errorf(n, "invalid date time %q: %v", text, err)
		}
		return t, nil
	case odatax.KindDuration:
		text, err := scalar(n)
		if err != nil {
			return nil, err
		}
		if d, err := odata.ParseDuration(text); err == nil {
			return d, nil
		}
		d, err := time.ParseDuration(text)
		if err != nil {
			return nil, errorf(n, "invalid duration %q", text)
		}
		return d, nil
	default:
		return nil, errorf(n, "no value form for kind %s", kind)
	}
}

func decodeList(n *yaml.Node, minLen, maxLen int) ([]odatax.Node, error) {
	n = resolve(n)
	if n.Kind != yaml.SequenceNode {
		return nil, errorf(n, "expected a list, got %s", describe(n))
	}
	if len(n.Content) < minLen || (maxLen >= 0 && len(n.Content) > maxLen) {
		if minLen == maxLen {
			return nil, errorf(n, "expected %d operands, got %d", minLen, len(n.Content))
		}
		return nil, errorf(n, "expected at least %d operands, got %d", minLen, len(n.Content))
	}
	out := make([]odatax.Node, len(n.Content))
	for i, item := range n.Content {
		node, err := decode(item)
		if err != nil {
			return nil, err
		}
		out[i] = node
	}
	return out, nil
}

func kindOf(mods map[string]*yaml.Node) (odatax.Kind, error) {
	t, ok := mods["type"]
	if !ok {
		return odatax.KindAuto, nil
	}
	name, err := scalar(t)
	if err != nil {
		return odatax.KindAuto, err
	}
	kind, err := odatax.ParseKind(strings.ToLower(name))
	if err != nil {
		return odatax.KindAuto, errorf(t, "%v", err)
	}
	return kind, nil
}

func scalar(n *yaml.Node) (string, error) {
	n = resolve(n)
	if n.Kind != yaml.ScalarNode {
		return "", errorf(n, "expected a scalar, got %s", describe(n))
	}
	return n.Value, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) == 1:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
}

func describe(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a list"
	case yaml.ScalarNode:
		return "scalar " + n.Value
	default:
		return "nothing"
	}
}

func errorf(n *yaml.Node, format string, args ...any) error {
	return errors.Newf("line %d: "+format, append([]any{n.Line}, args...)...)
}
