// Package odata compiles odatax expression trees into OData query text:
// $filter predicates, field paths for $select and ordering terms for $orderby.
//
// Compilation is a pure function of the expression, the naming policy and the
// evaluation environment. A Compiler holds no mutable state and is safe for
// concurrent use.
package odata

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/odatax"
)

// Compiler translates expression trees into OData text.
type Compiler struct {
	resolver  FieldNameResolver
	evaluator Evaluator
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithResolver sets the field naming policy.
func WithResolver(r FieldNameResolver) Option {
	return func(c *Compiler) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithEvaluator sets the evaluator for closed sub-expressions.
func WithEvaluator(e Evaluator) Option {
	return func(c *Compiler) {
		if e != nil {
			c.evaluator = e
		}
	}
}

// WithEnv evaluates closed sub-expressions against env.
func WithEnv(env Env) Option {
	return func(c *Compiler) {
		c.evaluator = NewEvaluator(env)
	}
}

// NewCompiler creates a compiler using DefaultNaming and an empty environment
// unless overridden by opts.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		resolver:  DefaultNaming,
		evaluator: NewEvaluator(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCompiler = NewCompiler()

// CompilePredicate compiles n with the default compiler.
func CompilePredicate(n odatax.Node) (string, error) {
	return defaultCompiler.CompilePredicate(n)
}

// scope describes which parameter field references may be rooted at.
type scope struct {
	// variable is the bound variable of the innermost quantifier or projection.
	// Empty at the top level, where the predicate subject is in scope.
	variable string
	// projected renders bound paths without the variable prefix.
	projected bool
}

// CompilePredicate translates a predicate into $filter text.
func (c *Compiler) CompilePredicate(n odatax.Node) (string, error) {
	if n == nil {
		return "", missing(nil, "predicate")
	}
	return c.predicate(n, scope{})
}

func (c *Compiler) predicate(n odatax.Node, s scope) (string, error) {
	switch v := n.(type) {
	case odatax.Compare:
		return c.compare(v, s)
	case odatax.Member, odatax.Convert, odatax.Parameter:
		path, _, err := c.fieldPath(v, s)
		return path, err
	case odatax.AndExpr:
		return c.logical(v, v.Left, v.Right, "and", s)
	case odatax.OrExpr:
		return c.logical(v, v.Left, v.Right, "or", s)
	case odatax.NotExpr:
		return c.negate(v, v.Operand, s)
	case odatax.IsFalseExpr:
		// The grammar has no false test; a false test is a negation.
		return c.negate(v, v.Operand, s)
	case odatax.IsTrueExpr:
		if v.Operand == nil {
			return "", missing(v, "operand")
		}
		if isFieldNode(v.Operand) {
			path, _, err := c.fieldPath(v.Operand, s)
			return path, err
		}
		return c.predicate(v.Operand, s)
	case odatax.Quantify:
		return c.quantify(v, s)
	case odatax.Literal:
		return v.Text, nil
	case odatax.Call:
		lit, err := c.callLiteral(v)
		if err != nil {
			return "", err
		}
		return c.predicate(lit, s)
	case nil:
		return "", missing(nil, "predicate")
	default:
		return "", unsupported(n, "not a predicate")
	}
}

func (c *Compiler) logical(n, left, right odatax.Node, op string, s scope) (string, error) {
	if left == nil {
		return "", missing(n, "left operand")
	}
	if right == nil {
		return "", missing(n, "right operand")
	}
	l, err := c.predicate(left, s)
	if err != nil {
		return "", err
	}
	r, err := c.predicate(right, s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s) %s (%s)", l, op, r), nil
}

func (c *Compiler) negate(n, operand odatax.Node, s scope) (string, error) {
	if operand == nil {
		return "", missing(n, "operand")
	}
	if isFieldNode(operand) {
		path, _, err := c.fieldPath(operand, s)
		if err != nil {
			return "", err
		}
		return "not " + path, nil
	}
	inner, err := c.predicate(operand, s)
	if err != nil {
		return "", err
	}
	return "not (" + inner + ")", nil
}

func (c *Compiler) compare(n odatax.Compare, s scope) (string, error) {
	if !n.Op.Valid() {
		return "", unsupported(n, fmt.Sprintf("unknown operator %q", n.Op))
	}
	if n.Left == nil {
		return "", missing(n, "left operand")
	}
	if n.Right == nil {
		return "", missing(n, "right operand")
	}

	leftIsPath, err := isPathSide(n.Left)
	if err != nil {
		return "", err
	}
	rightIsPath, err := isPathSide(n.Right)
	if err != nil {
		return "", err
	}

	switch {
	case leftIsPath && rightIsPath:
		return "", unsupported(n, "comparison between two fields")
	case !leftIsPath && !rightIsPath:
		return "", unsupported(n, "comparison without a field reference")
	}

	pathSide, valueSide, op := n.Left, n.Right, n.Op
	if rightIsPath {
		pathSide, valueSide, op = n.Right, n.Left, n.Op.Mirror()
	}

	path, kind, err := c.fieldPath(pathSide, s)
	if err != nil {
		return "", err
	}
	literal, err := c.literal(valueSide, kind)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", path, op, literal), nil
}

// literal renders the value side of a comparison using the path side's declared kind.
func (c *Compiler) literal(n odatax.Node, kind odatax.Kind) (string, error) {
	if l, ok := n.(odatax.Literal); ok {
		return l.Text, nil
	}
	val, err := c.evaluator.Evaluate(n)
	if err != nil {
		return "", err
	}
	text, err := FormatLiteral(val, kind)
	if err != nil {
		return "", errors.Wrapf(err, "%s", n)
	}
	return text, nil
}

func (c *Compiler) quantify(q odatax.Quantify, s scope) (string, error) {
	if q.Quantifier != odatax.QuantifyAny && q.Quantifier != odatax.QuantifyAll {
		return "", unsupported(q, fmt.Sprintf("unknown quantifier %q", q.Quantifier))
	}
	if q.Collection == nil {
		return "", missing(q, "collection")
	}
	if q.Predicate == nil {
		return "", missing(q, "predicate")
	}
	if q.Variable == "" {
		return "", unsupported(q, "quantifier without a bound variable")
	}

	collection, _, err := c.fieldPath(q.Collection, s)
	if err != nil {
		return "", err
	}
	inner, err := c.predicate(q.Predicate, scope{variable: q.Variable})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s(%s:%s)", collection, q.Quantifier, q.Variable, inner), nil
}

// callLiteral reduces a whitelisted call in predicate position to the
// filter text it produces.
func (c *Compiler) callLiteral(call odatax.Call) (odatax.Literal, error) {
	if !call.Func.Valid() {
		return odatax.Literal{}, unsupported(call, "function is not whitelisted")
	}
	val, err := c.evaluator.Evaluate(call)
	if err != nil {
		return odatax.Literal{}, err
	}
	text, ok := val.(string)
	if !ok {
		return odatax.Literal{}, unsupported(call, fmt.Sprintf("call produced %T, not filter text", val))
	}
	return odatax.Lit(text), nil
}

// fieldPath renders a member chain, or a bare bound variable, in scope s.
func (c *Compiler) fieldPath(n odatax.Node, s scope) (string, odatax.Kind, error) {
	path, root, kind, ok := odatax.FieldPathOf(n)
	if !ok {
		if conv, isConvert := n.(odatax.Convert); isConvert {
			return "", odatax.KindAuto, unsupported(conv, "conversion of a non-member operand")
		}
		return "", odatax.KindAuto, unsupported(n, "not a field reference")
	}

	if s.variable == "" {
		if len(path) == 0 {
			return "", odatax.KindAuto, unsupported(n, "the predicate subject is not a field")
		}
		return c.resolver.ResolveFieldName(path, false), kind, nil
	}

	if root.Name != s.variable {
		return "", odatax.KindAuto, unsupported(n, fmt.Sprintf("reference outside the scope of %q", s.variable))
	}
	if s.projected {
		return c.resolver.ResolveFieldName(path, false), kind, nil
	}
	return s.variable + c.resolver.ResolveFieldName(path, true), kind, nil
}

// isFieldNode reports whether n is rendered as a field path.
func isFieldNode(n odatax.Node) bool {
	switch n.(type) {
	case odatax.Member, odatax.Convert, odatax.Parameter:
		return true
	default:
		return false
	}
}

// isPathSide classifies a comparison operand. Member chains rooted at a
// parameter and parameters are paths; closed operands are values.
func isPathSide(n odatax.Node) (bool, error) {
	switch v := n.(type) {
	case odatax.Parameter:
		return true, nil
	case odatax.Member:
		_, _, _, ok := odatax.FieldPathOf(v)
		return ok, nil
	case odatax.Convert:
		if _, isMember := v.Inner.(odatax.Member); isMember {
			_, _, _, ok := odatax.FieldPathOf(v)
			return ok, nil
		}
		if v.Inner != nil {
			if _, refs := parameterOf(v.Inner); refs {
				return false, unsupported(v, "conversion of a non-member operand")
			}
		}
		return false, nil
	default:
		return false, nil
	}
}
