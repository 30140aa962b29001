package odatax

import (
	"fmt"
	"strings"
)

// Node is an expression tree node accepted by the filter and selection compilers.
// The set of node types is closed: only the types in this package implement Node.
type Node interface {
	fmt.Stringer
	// node is a marker method restricting implementations to this package.
	node()
}

// baseNode provides the node marker method for all node types.
type baseNode struct{}

func (baseNode) node() {}

// Compare represents a comparison between a field and a value.
type Compare struct {
	baseNode
	// Op is the comparison operator.
	Op Operator
	// Left is the left operand.
	Left Node
	// Right is the right operand.
	Right Node
}

func (c Compare) String() string {
	return fmt.Sprintf("(%s %s %s)", nodeString(c.Left), c.Op.symbol(), nodeString(c.Right))
}

// Eq creates an equality comparison.
func Eq(left, right Node) Compare {
	return Compare{Op: OpEq, Left: left, Right: right}
}

// Ne creates a not-equal comparison.
func Ne(left, right Node) Compare {
	return Compare{Op: OpNe, Left: left, Right: right}
}

// Gt creates a greater-than comparison.
func Gt(left, right Node) Compare {
	return Compare{Op: OpGt, Left: left, Right: right}
}

// Ge creates a greater-than-or-equal comparison.
func Ge(left, right Node) Compare {
	return Compare{Op: OpGe, Left: left, Right: right}
}

// Lt creates a less-than comparison.
func Lt(left, right Node) Compare {
	return Compare{Op: OpLt, Left: left, Right: right}
}

// Le creates a less-than-or-equal comparison.
func Le(left, right Node) Compare {
	return Compare{Op: OpLe, Left: left, Right: right}
}

// Member represents access to a field of Target.
// A chain of members rooted at a Parameter is a field path; a chain rooted at
// a closed value is evaluated.
type Member struct {
	baseNode
	// Target is the object the field is read from.
	Target Node
	// Field is the source name of the field before naming resolution.
	Field string
	// Type is the declared type of the field.
	Type Kind
}

func (m Member) String() string {
	return nodeString(m.Target) + "." + m.Field
}

// Field creates a member access on target.
func Field(target Node, name string, kind Kind) Member {
	return Member{Target: target, Field: name, Type: kind}
}

// Path creates a nested member access root.f0.f1... where the last field has
// the given kind and every intermediate field is a complex object.
func Path(root Node, kind Kind, fields ...string) Node {
	n := root
	for i, f := range fields {
		k := KindComplex
		if i == len(fields)-1 {
			k = kind
		}
		n = Member{Target: n, Field: f, Type: k}
	}
	return n
}

// Convert represents a numeric or nullable conversion of its operand.
type Convert struct {
	baseNode
	// Inner is the converted operand.
	Inner Node
	// Type is the target type, KindAuto keeps the operand's type.
	Type Kind
}

func (c Convert) String() string {
	return fmt.Sprintf("%s(%s)", c.Type, nodeString(c.Inner))
}

// Parameter is a lambda parameter: the predicate subject or a quantifier's bound variable.
type Parameter struct {
	baseNode
	// Name is the parameter name.
	Name string
}

func (p Parameter) String() string {
	return p.Name
}

// Param creates a parameter reference.
func Param(name string) Parameter {
	return Parameter{Name: name}
}

// AndExpr represents a logical AND of two predicates.
type AndExpr struct {
	baseNode
	Left  Node
	Right Node
}

func (a AndExpr) String() string {
	return fmt.Sprintf("(%s && %s)", nodeString(a.Left), nodeString(a.Right))
}

// And creates an AND expression.
func And(left, right Node) AndExpr {
	return AndExpr{Left: left, Right: right}
}

// OrExpr represents a logical OR of two predicates.
type OrExpr struct {
	baseNode
	Left  Node
	Right Node
}

func (o OrExpr) String() string {
	return fmt.Sprintf("(%s || %s)", nodeString(o.Left), nodeString(o.Right))
}

// Or creates an OR expression.
func Or(left, right Node) OrExpr {
	return OrExpr{Left: left, Right: right}
}

// NotExpr represents a logical negation.
type NotExpr struct {
	baseNode
	// Operand is a boolean field or a nested predicate.
	Operand Node
}

func (n NotExpr) String() string {
	return "!" + nodeString(n.Operand)
}

// Not creates a NOT expression.
func Not(operand Node) NotExpr {
	return NotExpr{Operand: operand}
}

// IsTrueExpr tests a boolean operand for true.
type IsTrueExpr struct {
	baseNode
	Operand Node
}

func (t IsTrueExpr) String() string {
	return "IsTrue(" + nodeString(t.Operand) + ")"
}

// IsTrue creates a truth test.
func IsTrue(operand Node) IsTrueExpr {
	return IsTrueExpr{Operand: operand}
}

// IsFalseExpr tests a boolean operand for false.
type IsFalseExpr struct {
	baseNode
	Operand Node
}

func (f IsFalseExpr) String() string {
	return "IsFalse(" + nodeString(f.Operand) + ")"
}

// IsFalse creates a false test.
func IsFalse(operand Node) IsFalseExpr {
	return IsFalseExpr{Operand: operand}
}

// Quantify applies a predicate to the elements of a collection.
type Quantify struct {
	baseNode
	// Quantifier is any or all.
	Quantifier Quantifier
	// Collection is the collection field.
	Collection Node
	// Variable names each element inside Predicate.
	Variable string
	// Predicate is evaluated per element; its field references are rooted at Variable.
	Predicate Node
}

func (q Quantify) String() string {
	name := "Any"
	if q.Quantifier == QuantifyAll {
		name = "All"
	}
	return fmt.Sprintf("%s.%s(%s => %s)", nodeString(q.Collection), name, q.Variable, nodeString(q.Predicate))
}

// Any creates an any quantifier over collection.
func Any(collection Node, variable string, predicate Node) Quantify {
	return Quantify{Quantifier: QuantifyAny, Collection: collection, Variable: variable, Predicate: predicate}
}

// All creates an all quantifier over collection.
func All(collection Node, variable string, predicate Node) Quantify {
	return Quantify{Quantifier: QuantifyAll, Collection: collection, Variable: variable, Predicate: predicate}
}

// Projected selects a field of every element of a collection.
// It is only valid in selection and ordering contexts.
type Projected struct {
	baseNode
	Collection Node
	Variable   string
	Selector   Node
}

func (p Projected) String() string {
	return fmt.Sprintf("%s.Select(%s => %s)", nodeString(p.Collection), p.Variable, nodeString(p.Selector))
}

// Project creates a projection of collection through selector.
func Project(collection Node, variable string, selector Node) Projected {
	return Projected{Collection: collection, Variable: variable, Selector: selector}
}

// ClosedValue is a runtime value captured by the expression.
type ClosedValue struct {
	baseNode
	Value any
}

func (c ClosedValue) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if c.Value == nil {
		return "null"
	}
	return fmt.Sprintf("%v", c.Value)
}

// Value creates a closed value.
func Value(v any) ClosedValue {
	return ClosedValue{Value: v}
}

// Literal is pre-rendered filter text emitted unchanged.
type Literal struct {
	baseNode
	Text string
}

func (l Literal) String() string {
	return fmt.Sprintf("literal(%q)", l.Text)
}

// Lit creates a literal.
func Lit(text string) Literal {
	return Literal{Text: text}
}

// Variable is a closed-over variable looked up in the evaluation environment.
type Variable struct {
	baseNode
	Name string
}

func (v Variable) String() string {
	return "$" + v.Name
}

// Var creates a variable reference.
func Var(name string) Variable {
	return Variable{Name: name}
}

// Call is a call to a whitelisted pure function.
type Call struct {
	baseNode
	Func Func
	Args []Node
}

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = nodeString(a)
	}
	return fmt.Sprintf("%s(%s)", c.Func, strings.Join(args, ", "))
}

// Format creates a printf-style formatting call.
func Format(format Node, args ...Node) Call {
	return Call{Func: FuncFormat, Args: append([]Node{format}, args...)}
}

// Concat creates a string concatenation call.
func Concat(args ...Node) Call {
	return Call{Func: FuncConcat, Args: args}
}

// Eval is a closed expression in the expr language, evaluated against the
// environment's variables.
type Eval struct {
	baseNode
	Source string
}

func (e Eval) String() string {
	return fmt.Sprintf("eval(%q)", e.Source)
}

// Expr creates an evaluated expression.
func Expr(source string) Eval {
	return Eval{Source: source}
}

// Score is the relevance score pseudo-field.
type Score struct {
	baseNode
}

func (Score) String() string {
	return "search.score()"
}

// FieldPath is the ordered list of source field names from the outermost to the innermost field.
type FieldPath []string

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// FieldPathOf walks a member chain down to its root. When the chain is rooted
// at a parameter it returns the path, the parameter and the declared kind of the
// innermost field, with ok set. A bare parameter yields an empty path.
// Convert wrappers around the outermost member are unwrapped.
func FieldPathOf(n Node) (path FieldPath, root Parameter, kind Kind, ok bool) {
	if c, isConvert := n.(Convert); isConvert {
		m, isMember := c.Inner.(Member)
		if !isMember {
			return nil, Parameter{}, KindAuto, false
		}
		path, root, kind, ok = FieldPathOf(m)
		if c.Type != KindAuto {
			kind = c.Type
		}
		return path, root, kind, ok
	}

	var fields []string
	cur := n
	for {
		switch v := cur.(type) {
		case Member:
			if len(fields) == 0 {
				kind = v.Type
			}
			fields = append(fields, v.Field)
			cur = v.Target
		case Parameter:
			for i, j := 0, len(fields)-1; i < j; i, j = i+1, j-1 {
				fields[i], fields[j] = fields[j], fields[i]
			}
			return FieldPath(fields), v, kind, true
		default:
			return nil, Parameter{}, KindAuto, false
		}
	}
}

func nodeString(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}
