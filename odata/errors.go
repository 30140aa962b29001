package odata

import (
	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/odatax"
)

func nodeText(n odatax.Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}

// unsupported reports a node shape outside the compilable grammar.
func unsupported(n odatax.Node, reason string) error {
	return errors.Wrapf(odatax.ErrUnsupportedNode, "%s: %s", reason, nodeText(n))
}

// missing reports a nil operand of parent.
func missing(parent odatax.Node, what string) error {
	if parent == nil {
		return errors.Wrapf(odatax.ErrInvalidArgument, "%s is nil", what)
	}
	return errors.Wrapf(odatax.ErrInvalidArgument, "%s is nil: %s", what, nodeText(parent))
}
