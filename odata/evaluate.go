package odata

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/expr-lang/expr"
	"github.com/letmevibethatforyou/odatax"
)

// Env holds the closed-over variables visible to Variable and Eval nodes.
type Env map[string]any

// Evaluator reduces closed sub-expressions to runtime values.
type Evaluator interface {
	// Evaluate returns the value of n. It fails with odatax.ErrNotConstant when
	// n references a parameter.
	Evaluate(n odatax.Node) (any, error)
}

type evaluator struct {
	env Env
}

// NewEvaluator returns an Evaluator over env. env is copied; the values
// themselves are shared and must not be mutated while compiling.
func NewEvaluator(env Env) Evaluator {
	copied := make(Env, len(env))
	for k, v := range env {
		copied[k] = v
	}
	return &evaluator{env: copied}
}

// Evaluate implements Evaluator.
func (e *evaluator) Evaluate(n odatax.Node) (any, error) {
	if n == nil {
		return nil, missing(nil, "closed expression")
	}
	if p, ok := parameterOf(n); ok {
		return nil, errors.Wrapf(odatax.ErrNotConstant, "references parameter %q: %s", p.Name, n)
	}
	return e.eval(n)
}

func (e *evaluator) eval(n odatax.Node) (any, error) {
	switch v := n.(type) {
	case odatax.ClosedValue:
		return v.Value, nil

	case odatax.Variable:
		val, ok := e.env[v.Name]
		if !ok {
			return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "undefined variable %q", v.Name)
		}
		return val, nil

	case odatax.Member:
		if v.Target == nil {
			return nil, missing(v, "member target")
		}
		target, err := e.eval(v.Target)
		if err != nil {
			return nil, err
		}
		val, err := fieldValue(target, v.Field)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", v)
		}
		return val, nil

	case odatax.Convert:
		if v.Inner == nil {
			return nil, missing(v, "converted operand")
		}
		val, err := e.eval(v.Inner)
		if err != nil {
			return nil, err
		}
		return convertValue(val, v)

	case odatax.Call:
		return e.call(v)

	case odatax.Eval:
		return e.evalSource(v)

	default:
		return nil, unsupported(n, "not a closed expression")
	}
}

func (e *evaluator) call(c odatax.Call) (any, error) {
	if !c.Func.Valid() {
		return nil, unsupported(c, "function is not whitelisted")
	}

	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		if a == nil {
			return nil, missing(c, fmt.Sprintf("argument %d", i))
		}
		val, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}

	switch c.Func {
	case odatax.FuncFormat:
		if len(args) == 0 {
			return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "missing format string: %s", c)
		}
		format, ok := args[0].(string)
		if !ok {
			return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "format string is %T: %s", args[0], c)
		}
		return fmt.Sprintf(format, args[1:]...), nil
	case odatax.FuncConcat:
		var b strings.Builder
		for _, a := range args {
			if a != nil {
				fmt.Fprint(&b, a)
			}
		}
		return b.String(), nil
	default:
		return nil, unsupported(c, "function is not whitelisted")
	}
}

func (e *evaluator) evalSource(v odatax.Eval) (any, error) {
	env := map[string]any(e.env)
	program, err := expr.Compile(v.Source, expr.Env(env))
	if err != nil {
		return nil, errors.WithSecondaryError(
			errors.Wrapf(odatax.ErrEvaluationFailed, "%s", v),
			err,
		)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, errors.WithSecondaryError(
			errors.Wrapf(odatax.ErrEvaluationFailed, "%s", v),
			err,
		)
	}
	return out, nil
}

// parameterOf finds a parameter reference anywhere below n.
func parameterOf(n odatax.Node) (odatax.Parameter, bool) {
	switch v := n.(type) {
	case odatax.Parameter:
		return v, true
	case odatax.Member:
		return childParameter(v.Target)
	case odatax.Convert:
		return childParameter(v.Inner)
	case odatax.Call:
		for _, a := range v.Args {
			if p, ok := childParameter(a); ok {
				return p, true
			}
		}
	case odatax.Compare:
		if p, ok := childParameter(v.Left); ok {
			return p, true
		}
		return childParameter(v.Right)
	case odatax.AndExpr:
		if p, ok := childParameter(v.Left); ok {
			return p, true
		}
		return childParameter(v.Right)
	case odatax.OrExpr:
		if p, ok := childParameter(v.Left); ok {
			return p, true
		}
		return childParameter(v.Right)
	case odatax.NotExpr:
		return childParameter(v.Operand)
	case odatax.IsTrueExpr:
		return childParameter(v.Operand)
	case odatax.IsFalseExpr:
		return childParameter(v.Operand)
	case odatax.Quantify:
		return childParameter(v.Collection)
	case odatax.Projected:
		return childParameter(v.Collection)
	}
	return odatax.Parameter{}, false
}

func childParameter(n odatax.Node) (odatax.Parameter, bool) {
	if n == nil {
		return odatax.Parameter{}, false
	}
	return parameterOf(n)
}

// fieldValue reads a struct field or string-keyed map entry.
func fieldValue(target any, name string) (any, error) {
	rv := reflect.ValueOf(target)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "field %q of a nil value", name)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "field %q of a nil value", name)
	}

	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByName(name)
		if !f.IsValid() {
			return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "%s has no field %q", rv.Type(), name)
		}
		if !f.CanInterface() {
			return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "field %q of %s is unexported", name, rv.Type())
		}
		return f.Interface(), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "%s is not keyed by strings", rv.Type())
		}
		val := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "key %q not found", name)
		}
		return val.Interface(), nil
	default:
		return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "cannot read field %q of %s", name, rv.Type())
	}
}

// convertValue applies a numeric conversion. Non-numeric targets pass the value through.
func convertValue(val any, c odatax.Convert) (any, error) {
	if val == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(val)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	switch c.Type {
	case odatax.KindInt:
		switch {
		case rv.Type() == durationType:
		case rv.CanInt():
			return rv.Int(), nil
		case rv.CanUint():
			return int64(rv.Uint()), nil
		case rv.CanFloat():
			return int64(rv.Float()), nil
		}
	case odatax.KindFloat:
		switch {
		case rv.Type() == durationType:
		case rv.CanInt():
			return float64(rv.Int()), nil
		case rv.CanUint():
			return float64(rv.Uint()), nil
		case rv.CanFloat():
			return rv.Float(), nil
		}
	default:
		return rv.Interface(), nil
	}
	return nil, errors.Wrapf(odatax.ErrEvaluationFailed, "cannot convert %s to %s: %s", rv.Type(), c.Type, c)
}
