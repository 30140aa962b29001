package inmemory

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/letmevibethatforyou/odatax"
	"github.com/letmevibethatforyou/odatax/odata"
)

// truth is a three-valued logic result. Comparisons are always definite;
// a bare boolean test over a missing field is unknown, and unknown survives
// negation, so "not flag" does not select documents without the flag.
type truth int8

const (
	truthUnknown truth = iota
	truthFalse
	truthTrue
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

func (t truth) not() truth {
	switch t {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	default:
		return truthUnknown
	}
}

// binding is the value field references are resolved against: the document
// at the top level, or the current element inside a quantifier or projection.
type binding struct {
	variable string
	value    any
}

// matcher evaluates expression trees against stored documents.
type matcher struct {
	resolver  odata.FieldNameResolver
	evaluator odata.Evaluator
}

// matches reports whether predicate holds for a document.
func (m *matcher) matches(fields map[string]any, predicate odatax.Node) (bool, error) {
	if predicate == nil {
		return true, nil
	}
	t, err := m.evaluate(predicate, binding{value: fields})
	if err != nil {
		return false, err
	}
	return t == truthTrue, nil
}

// evaluate evaluates a predicate in the scope of b.
func (m *matcher) evaluate(n odatax.Node, b binding) (truth, error) {
	switch e := n.(type) {
	case odatax.Compare:
		return m.evaluateCompare(e, b)
	case odatax.Member, odatax.Convert, odatax.Parameter:
		return m.evaluateBoolean(e, b)
	case odatax.AndExpr:
		return m.evaluateAnd(e, b)
	case odatax.OrExpr:
		return m.evaluateOr(e, b)
	case odatax.NotExpr:
		return m.evaluateNot(e.Operand, b)
	case odatax.IsFalseExpr:
		return m.evaluateNot(e.Operand, b)
	case odatax.IsTrueExpr:
		if e.Operand == nil {
			return truthUnknown, errors.Wrapf(odatax.ErrInvalidArgument, "operand is nil: %s", e)
		}
		return m.evaluate(e.Operand, b)
	case odatax.Quantify:
		return m.evaluateQuantify(e, b)
	case nil:
		return truthUnknown, errors.Wrap(odatax.ErrInvalidArgument, "predicate is nil")
	default:
		return truthUnknown, unsupported(n, "cannot be evaluated in memory")
	}
}

// evaluateAnd evaluates an AND expression.
func (m *matcher) evaluateAnd(e odatax.AndExpr, b binding) (truth, error) {
	left, err := m.evaluate(e.Left, b)
	if err != nil || left == truthFalse {
		return left, err
	}
	right, err := m.evaluate(e.Right, b)
	if err != nil {
		return truthUnknown, err
	}
	if right == truthFalse {
		return truthFalse, nil
	}
	if left == truthTrue && right == truthTrue {
		return truthTrue, nil
	}
	return truthUnknown, nil
}

// evaluateOr evaluates an OR expression.
func (m *matcher) evaluateOr(e odatax.OrExpr, b binding) (truth, error) {
	left, err := m.evaluate(e.Left, b)
	if err != nil || left == truthTrue {
		return left, err
	}
	right, err := m.evaluate(e.Right, b)
	if err != nil {
		return truthUnknown, err
	}
	if right == truthTrue {
		return truthTrue, nil
	}
	if left == truthFalse && right == truthFalse {
		return truthFalse, nil
	}
	return truthUnknown, nil
}

// evaluateNot evaluates a negation.
func (m *matcher) evaluateNot(operand odatax.Node, b binding) (truth, error) {
	if operand == nil {
		return truthUnknown, errors.Wrap(odatax.ErrInvalidArgument, "operand is nil")
	}
	t, err := m.evaluate(operand, b)
	if err != nil {
		return truthUnknown, err
	}
	return t.not(), nil
}

// evaluateBoolean tests a boolean field.
func (m *matcher) evaluateBoolean(n odatax.Node, b binding) (truth, error) {
	val, _, found, err := m.fieldValue(n, b)
	if err != nil || !found {
		return truthUnknown, err
	}
	flag, ok := val.(bool)
	if !ok {
		return truthUnknown, nil
	}
	return truthOf(flag), nil
}

// evaluateCompare evaluates a comparison. A missing field equals nothing and
// differs from everything.
func (m *matcher) evaluateCompare(e odatax.Compare, b binding) (truth, error) {
	pathSide, valueSide, op := e.Left, e.Right, e.Op
	if _, _, _, ok := odatax.FieldPathOf(e.Left); !ok {
		pathSide, valueSide, op = e.Right, e.Left, e.Op.Mirror()
	}
	if valueSide == nil {
		return truthUnknown, errors.Wrapf(odatax.ErrInvalidArgument, "operand is nil: %s", e)
	}
	if _, ok := valueSide.(odatax.Literal); ok {
		return truthUnknown, unsupported(e, "pre-rendered filter text cannot be evaluated in memory")
	}

	docValue, kind, found, err := m.fieldValue(pathSide, b)
	if err != nil {
		return truthUnknown, err
	}
	want, err := m.evaluator.Evaluate(valueSide)
	if err != nil {
		return truthUnknown, err
	}
	if want == nil {
		return truthUnknown, errors.Wrapf(odatax.ErrUnsupportedLiteral, "null comparison value: %s", e)
	}

	if !found {
		return truthOf(op == odatax.OpNe), nil
	}
	c, ok := compareTyped(docValue, want, kind)
	if !ok {
		return truthOf(op == odatax.OpNe), nil
	}

	switch op {
	case odatax.OpEq:
		return truthOf(c == 0), nil
	case odatax.OpNe:
		return truthOf(c != 0), nil
	case odatax.OpGt:
		return truthOf(c > 0), nil
	case odatax.OpGe:
		return truthOf(c >= 0), nil
	case odatax.OpLt:
		return truthOf(c < 0), nil
	case odatax.OpLe:
		return truthOf(c <= 0), nil
	default:
		return truthUnknown, unsupported(e, "unknown operator")
	}
}

// evaluateQuantify evaluates any/all over a collection field. A missing
// collection behaves as an empty one.
func (m *matcher) evaluateQuantify(q odatax.Quantify, b binding) (truth, error) {
	coll, _, _, err := m.fieldValue(q.Collection, b)
	if err != nil {
		return truthUnknown, err
	}

	for _, item := range asSlice(coll) {
		t, err := m.evaluate(q.Predicate, binding{variable: q.Variable, value: item})
		if err != nil {
			return truthUnknown, err
		}
		if q.Quantifier == odatax.QuantifyAny && t == truthTrue {
			return truthTrue, nil
		}
		if q.Quantifier == odatax.QuantifyAll && t != truthTrue {
			return truthFalse, nil
		}
	}
	return truthOf(q.Quantifier == odatax.QuantifyAll), nil
}

// fieldValue resolves a field reference in the scope of b.
func (m *matcher) fieldValue(n odatax.Node, b binding) (any, odatax.Kind, bool, error) {
	path, root, kind, ok := odatax.FieldPathOf(n)
	if !ok {
		return nil, odatax.KindAuto, false, unsupported(n, "not a field reference")
	}
	if b.variable != "" && root.Name != b.variable {
		return nil, odatax.KindAuto, false, unsupported(n, "reference outside the scope of "+b.variable)
	}
	if len(path) == 0 {
		if b.variable == "" {
			return nil, odatax.KindAuto, false, unsupported(n, "the predicate subject is not a field")
		}
		return b.value, kind, b.value != nil, nil
	}

	name := m.resolver.ResolveFieldName(path, false)
	val, found := lookup(b.value, strings.Split(name, odata.PathSeparator))
	return val, kind, found, nil
}

// selectValue resolves a selected field. Projections collect the selected
// field of every element that has it.
func (m *matcher) selectValue(n odatax.Node, b binding) (any, bool, error) {
	p, ok := n.(odatax.Projected)
	if !ok {
		val, _, found, err := m.fieldValue(n, b)
		return val, found, err
	}

	coll, _, found, err := m.fieldValue(p.Collection, b)
	if err != nil || !found {
		return nil, false, err
	}
	items := asSlice(coll)
	out := make([]any, 0, len(items))
	for _, item := range items {
		val, found, err := m.selectValue(p.Selector, binding{variable: p.Variable, value: item})
		if err != nil {
			return nil, false, err
		}
		if found {
			out = append(out, val)
		}
	}
	return out, true, nil
}

func unsupported(n odatax.Node, reason string) error {
	return errors.Wrapf(odatax.ErrUnsupportedNode, "%s: %s", reason, n)
}

// lookup walks nested objects along segments.
func lookup(v any, segments []string) (any, bool) {
	for _, seg := range segments {
		fields, ok := asMap(v)
		if !ok {
			return nil, false
		}
		if v, ok = fields[seg]; !ok {
			return nil, false
		}
	}
	return v, v != nil
}

func asMap(v any) (map[string]any, bool) {
	if fields, ok := v.(map[string]any); ok {
		return fields, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	fields := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		fields[iter.Key().String()] = iter.Value().Interface()
	}
	return fields, true
}

func asSlice(v any) []any {
	if items, ok := v.([]any); ok {
		return items
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items
}

// compareTyped orders a stored value against a comparison value, interpreting
// the stored value by the comparison value's type and the field's declared kind.
// ok is false when the two are not comparable.
func compareTyped(doc, want any, kind odatax.Kind) (int, bool) {
	want = deref(want)
	doc = deref(doc)

	switch w := want.(type) {
	case time.Time:
		t, ok := toTime(doc)
		if !ok {
			return 0, false
		}
		return t.Compare(w), true
	case time.Duration:
		d, ok := toDuration(doc)
		if !ok {
			return 0, false
		}
		return cmp.Compare(d, w), true
	case uuid.UUID:
		g, ok := toGUID(doc)
		if !ok {
			return 0, false
		}
		return strings.Compare(g.String(), w.String()), true
	case bool:
		d, ok := doc.(bool)
		if !ok {
			return 0, false
		}
		return compareBool(d, w), true
	case string:
		if kind == odatax.KindGUID {
			wg, err := uuid.Parse(w)
			if err != nil {
				return 0, false
			}
			return compareTyped(doc, wg, kind)
		}
		d, ok := doc.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(d, w), true
	}

	if f2, ok := toFloat64(want); ok {
		f1, ok := toFloat64(doc)
		if !ok {
			return 0, false
		}
		return cmp.Compare(f1, f2), true
	}
	return 0, false
}

// compareValues orders two stored values for sorting. Missing values sort first.
func compareValues(v1, v2 any) int {
	if v1 == nil && v2 == nil {
		return 0
	}
	if v1 == nil {
		return -1
	}
	if v2 == nil {
		return 1
	}
	if c, ok := compareTyped(v1, v2, odatax.KindAuto); ok {
		return c
	}
	return strings.Compare(toString(v1), toString(v2))
}

func toString(v any) string {
	return fmt.Sprintf("%v", v)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case b:
		return -1
	default:
		return 1
	}
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func toDuration(v any) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		parsed, err := odata.ParseDuration(d)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func toGUID(v any) (uuid.UUID, bool) {
	switch g := v.(type) {
	case uuid.UUID:
		return g, true
	case string:
		parsed, err := uuid.Parse(g)
		return parsed, err == nil
	default:
		return uuid.UUID{}, false
	}
}

// toFloat64 attempts to convert a value to float64.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
