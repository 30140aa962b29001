package odatax

import "github.com/cockroachdb/errors"

// Operator represents comparison operators.
type Operator string

const (
	// OpEq represents equality operator.
	OpEq Operator = "eq"
	// OpNe represents not-equal operator.
	OpNe Operator = "ne"
	// OpGt represents greater-than operator.
	OpGt Operator = "gt"
	// OpGe represents greater-than-or-equal operator.
	OpGe Operator = "ge"
	// OpLt represents less-than operator.
	OpLt Operator = "lt"
	// OpLe represents less-than-or-equal operator.
	OpLe Operator = "le"
)

// Valid reports whether o is one of the six comparison operators.
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		return true
	default:
		return false
	}
}

// Mirror returns the operator that yields the same result with its operands
// swapped, so that "5 lt x" can be written as "x gt 5".
func (o Operator) Mirror() Operator {
	switch o {
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	default:
		return o
	}
}

// symbol is the Go spelling used when printing nodes for diagnostics.
func (o Operator) symbol() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	default:
		return string(o)
	}
}

// Kind is the declared static type of a field.
// It selects the literal formatting rule for values compared against the field.
type Kind int

const (
	// KindAuto infers the formatting rule from the runtime value.
	KindAuto Kind = iota
	// KindString is a text field.
	KindString
	// KindBool is a boolean field.
	KindBool
	// KindInt is an integral numeric field.
	KindInt
	// KindFloat is a floating point numeric field.
	KindFloat
	// KindGUID is a globally unique identifier.
	KindGUID
	// KindDuration is a time span.
	KindDuration
	// KindDateTime is a date and time without an offset, rendered in UTC.
	KindDateTime
	// KindDateTimeOffset is a date and time with an explicit UTC offset.
	KindDateTimeOffset
	// KindComplex is a nested object.
	KindComplex
	// KindCollection is a collection of values or objects.
	KindCollection
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindGUID:
		return "guid"
	case KindDuration:
		return "duration"
	case KindDateTime:
		return "datetime"
	case KindDateTimeOffset:
		return "datetimeoffset"
	case KindComplex:
		return "complex"
	case KindCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// ParseKind returns the kind named by s, as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindAuto; k <= KindCollection; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return KindAuto, errors.Newf("unknown kind %q", s)
}

// Quantifier selects the collection function of a Quantify node.
type Quantifier string

const (
	// QuantifyAny is satisfied when at least one element matches.
	QuantifyAny Quantifier = "any"
	// QuantifyAll is satisfied when every element matches.
	QuantifyAll Quantifier = "all"
)

// Func enumerates the pure calls that may appear in a closed sub-expression.
type Func int

const (
	// FuncFormat formats its arguments with a printf-style format string given as the first argument.
	FuncFormat Func = iota + 1
	// FuncConcat concatenates the textual form of its arguments.
	FuncConcat
)

// Valid reports whether f is on the whitelist.
func (f Func) Valid() bool {
	return f == FuncFormat || f == FuncConcat
}

// String returns the name of the function.
func (f Func) String() string {
	switch f {
	case FuncFormat:
		return "Format"
	case FuncConcat:
		return "Concat"
	default:
		return "Func(?)"
	}
}

// SearchMode controls whether any or all search terms must match.
type SearchMode string

const (
	// SearchModeAny matches documents containing any of the terms.
	SearchModeAny SearchMode = "any"
	// SearchModeAll matches documents containing all of the terms.
	SearchModeAll SearchMode = "all"
)

// ErrorCode represents specific error codes for compile and search operations.
type ErrorCode int

const (
	// ErrCodeInvalidArgument is returned when a required input is missing.
	ErrCodeInvalidArgument ErrorCode = iota + 1000

	// ErrCodeUnsupportedNode is returned when an expression shape is outside the supported grammar.
	ErrCodeUnsupportedNode

	// ErrCodeUnsupportedLiteral is returned when a value has no literal formatting rule.
	ErrCodeUnsupportedLiteral

	// ErrCodeNotConstant is returned when a subtree that references the predicate subject is evaluated.
	ErrCodeNotConstant

	// ErrCodeEvaluationFailed is returned when evaluating a closed subtree fails.
	ErrCodeEvaluationFailed

	// ErrCodeInvalidOption is returned when an invalid option is provided.
	ErrCodeInvalidOption

	// ErrCodeCanceled is returned when a search operation is canceled.
	ErrCodeCanceled
)

// String returns the human-readable string representation of the error code.
// This implements the fmt.Stringer interface.
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeInvalidArgument:
		return "invalid argument"
	case ErrCodeUnsupportedNode:
		return "unsupported node"
	case ErrCodeUnsupportedLiteral:
		return "unsupported literal"
	case ErrCodeNotConstant:
		return "not constant"
	case ErrCodeEvaluationFailed:
		return "evaluation failed"
	case ErrCodeInvalidOption:
		return "invalid option"
	case ErrCodeCanceled:
		return "operation canceled"
	default:
		return "unknown error"
	}
}

// newErrorWithCode creates a new error with a code and message.
func newErrorWithCode(code ErrorCode, msg string) error {
	err := errors.New(msg)
	return errors.WithSecondaryError(err, errors.Newf("code: %d", int(code)))
}

// Common errors that can be returned by compile and search operations.
var (
	// ErrInvalidArgument is returned when a required input is missing.
	ErrInvalidArgument = newErrorWithCode(ErrCodeInvalidArgument, "odatax: invalid argument")

	// ErrUnsupportedNode is returned when an expression shape is outside the supported grammar.
	ErrUnsupportedNode = newErrorWithCode(ErrCodeUnsupportedNode, "odatax: unsupported node")

	// ErrUnsupportedLiteral is returned when a value has no literal formatting rule.
	ErrUnsupportedLiteral = newErrorWithCode(ErrCodeUnsupportedLiteral, "odatax: unsupported literal")

	// ErrNotConstant is returned when a subtree that references the predicate subject is evaluated.
	ErrNotConstant = newErrorWithCode(ErrCodeNotConstant, "odatax: not constant")

	// ErrEvaluationFailed is returned when evaluating a closed subtree fails.
	ErrEvaluationFailed = newErrorWithCode(ErrCodeEvaluationFailed, "odatax: evaluation failed")

	// ErrInvalidOption is returned when an invalid option is provided.
	ErrInvalidOption = newErrorWithCode(ErrCodeInvalidOption, "odatax: invalid option")

	// ErrCanceled is returned when a search operation is canceled.
	ErrCanceled = newErrorWithCode(ErrCodeCanceled, "odatax: operation canceled")
)

var codedErrors = []struct {
	code ErrorCode
	err  error
}{
	{ErrCodeInvalidArgument, ErrInvalidArgument},
	{ErrCodeUnsupportedNode, ErrUnsupportedNode},
	{ErrCodeUnsupportedLiteral, ErrUnsupportedLiteral},
	{ErrCodeNotConstant, ErrNotConstant},
	{ErrCodeEvaluationFailed, ErrEvaluationFailed},
	{ErrCodeInvalidOption, ErrInvalidOption},
	{ErrCodeCanceled, ErrCanceled},
}

// CodeOf returns the code of the first sentinel error err wraps, or 0 when
// err carries none.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return 0
	}
	for _, c := range codedErrors {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return 0
}
