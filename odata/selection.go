package odata

import (
	"fmt"

	"github.com/letmevibethatforyou/odatax"
)

// CompileFieldPath compiles n with the default compiler.
func CompileFieldPath(n odatax.Node) (string, error) {
	return defaultCompiler.CompileFieldPath(n)
}

// CompileOrderingTerm compiles n with the default compiler.
func CompileOrderingTerm(n odatax.Node, descending bool) (string, error) {
	return defaultCompiler.CompileOrderingTerm(n, descending)
}

// CompileFieldPath renders a field reference for $select, searchFields or
// facets. Projections over collections address the selected field of every
// element as "collection/field".
func (c *Compiler) CompileFieldPath(n odatax.Node) (string, error) {
	if n == nil {
		return "", missing(nil, "field")
	}
	if _, ok := n.(odatax.Score); ok {
		return n.String(), nil
	}
	return c.selection(n, scope{})
}

// CompileOrderingTerm renders a single $orderby term.
func (c *Compiler) CompileOrderingTerm(n odatax.Node, descending bool) (string, error) {
	path, err := c.CompileFieldPath(n)
	if err != nil {
		return "", err
	}
	if descending {
		return path + " desc", nil
	}
	return path + " asc", nil
}

func (c *Compiler) selection(n odatax.Node, s scope) (string, error) {
	switch v := n.(type) {
	case odatax.Member, odatax.Convert, odatax.Parameter:
		path, _, err := c.fieldPath(v, s)
		return path, err

	case odatax.Projected:
		if v.Collection == nil {
			return "", missing(v, "collection")
		}
		if v.Selector == nil {
			return "", missing(v, "selector")
		}
		if v.Variable == "" {
			return "", unsupported(v, "projection without a bound variable")
		}
		collection, _, err := c.fieldPath(v.Collection, s)
		if err != nil {
			return "", err
		}
		inner, err := c.selection(v.Selector, scope{variable: v.Variable, projected: true})
		if err != nil {
			return "", err
		}
		if inner == "" {
			return collection, nil
		}
		return collection + PathSeparator + inner, nil

	case odatax.Score:
		return "", unsupported(v, "score inside a projection")

	default:
		return "", unsupported(n, fmt.Sprintf("%T is not selectable", n))
	}
}
