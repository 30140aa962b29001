package odata

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/letmevibethatforyou/odatax"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// dateTimeLayout is the round-trip form of a date and time normalized to UTC.
	dateTimeLayout = "2006-01-02T15:04:05.0000000Z"
	// dateTimeOffsetLayout is the round-trip form keeping the value's UTC offset.
	dateTimeOffsetLayout = "2006-01-02T15:04:05.0000000-07:00"

	// ticksPerSecond counts 100ns ticks, the resolution of time span literals.
	ticksPerSecond = int64(time.Second / 100)
	ticksPerDay    = 24 * 60 * 60 * ticksPerSecond
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
)

// FormatLiteral renders value as a filter literal. The declared kind of the
// field being compared selects the rule; KindAuto infers it from the value.
// Pointers are dereferenced, and nil values are not representable.
func FormatLiteral(value any, kind odatax.Kind) (string, error) {
	rv := reflect.ValueOf(value)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", errors.Wrap(odatax.ErrUnsupportedLiteral, "null comparison value")
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return "", errors.Wrap(odatax.ErrUnsupportedLiteral, "null comparison value")
	}

	if kind == odatax.KindAuto {
		kind = inferKind(rv)
	}

	switch kind {
	case odatax.KindString:
		if rv.Kind() == reflect.String {
			return "'" + rv.String() + "'", nil
		}
	case odatax.KindBool:
		if rv.Kind() == reflect.Bool {
			return strconv.FormatBool(rv.Bool()), nil
		}
	case odatax.KindInt, odatax.KindFloat:
		if s, ok := formatNumber(rv); ok {
			return s, nil
		}
	case odatax.KindGUID:
		if s, ok := formatGUID(rv); ok {
			return "'" + s + "'", nil
		}
	case odatax.KindDuration:
		if rv.Type() == durationType {
			return "'" + FormatDuration(time.Duration(rv.Int())) + "'", nil
		}
	case odatax.KindDateTime:
		if rv.Type() == timeType {
			return rv.Interface().(time.Time).UTC().Format(dateTimeLayout), nil
		}
	case odatax.KindDateTimeOffset:
		if rv.Type() == timeType {
			return rv.Interface().(time.Time).Format(dateTimeOffsetLayout), nil
		}
	}

	return "", errors.Wrapf(odatax.ErrUnsupportedLiteral, "cannot format %s as a %s literal", rv.Type(), kind)
}

// inferKind picks a formatting rule from the runtime type of rv.
func inferKind(rv reflect.Value) odatax.Kind {
	switch rv.Type() {
	case durationType:
		return odatax.KindDuration
	case uuidType:
		return odatax.KindGUID
	case timeType:
		if rv.Interface().(time.Time).Location() == time.UTC {
			return odatax.KindDateTime
		}
		return odatax.KindDateTimeOffset
	}

	switch rv.Kind() {
	case reflect.String:
		return odatax.KindString
	case reflect.Bool:
		return odatax.KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return odatax.KindInt
	case reflect.Float32, reflect.Float64:
		return odatax.KindFloat
	default:
		return odatax.KindAuto
	}
}

func formatNumber(rv reflect.Value) (string, bool) {
	if rv.Type() == durationType {
		return "", false
	}
	switch {
	case rv.CanInt():
		return strconv.FormatInt(rv.Int(), 10), true
	case rv.CanUint():
		return strconv.FormatUint(rv.Uint(), 10), true
	case rv.CanFloat():
		bits := 64
		if rv.Kind() == reflect.Float32 {
			bits = 32
		}
		return formatFloat(rv.Float(), bits), true
	default:
		return "", false
	}
}

// formatFloat uses the shortest round-trip digits, switching to exponent
// notation for very large and very small magnitudes.
func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-5 && abs < 1e15) {
		return strconv.FormatFloat(f, 'f', -1, bits)
	}
	return strconv.FormatFloat(f, 'E', -1, bits)
}

func formatGUID(rv reflect.Value) (string, bool) {
	if rv.Type() == uuidType {
		return invariantLower(rv.Interface().(uuid.UUID).String()), true
	}
	if rv.Kind() == reflect.String {
		id, err := uuid.Parse(rv.String())
		if err != nil {
			return "", false
		}
		return invariantLower(id.String()), true
	}
	return "", false
}

// invariantLower lower-cases s independently of any locale.
func invariantLower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// FormatDuration renders d as [-][d.]hh:mm:ss[.fffffff], truncated to 100ns ticks.
func FormatDuration(d time.Duration) string {
	ticks := int64(d) / 100
	var b strings.Builder
	if ticks < 0 {
		b.WriteByte('-')
		ticks = -ticks
	}

	days := ticks / ticksPerDay
	ticks %= ticksPerDay
	seconds := ticks / ticksPerSecond
	fraction := ticks % ticksPerSecond

	if days > 0 {
		b.WriteString(strconv.FormatInt(days, 10))
		b.WriteByte('.')
	}
	b.WriteString(pad(seconds/3600, 2))
	b.WriteByte(':')
	b.WriteString(pad(seconds/60%60, 2))
	b.WriteByte(':')
	b.WriteString(pad(seconds%60, 2))
	if fraction > 0 {
		b.WriteByte('.')
		b.WriteString(pad(fraction, 7))
	}
	return b.String()
}

func pad(n int64, width int) string {
	s := strconv.FormatInt(n, 10)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

// ParseDuration parses the [-][d.]hh:mm:ss[.fffffff] form written by FormatDuration.
func ParseDuration(s string) (time.Duration, error) {
	text := s
	negative := strings.HasPrefix(text, "-")
	text = strings.TrimPrefix(text, "-")

	parts := strings.Split(text, ":")
	if len(parts) != 3 {
		return 0, errors.Newf("invalid time span %q", s)
	}

	var days, hours, minutes, seconds, fraction int64
	var err error
	if d, h, ok := strings.Cut(parts[0], "."); ok {
		if days, err = parseUnit(d, s); err != nil {
			return 0, err
		}
		parts[0] = h
	}
	if hours, err = parseUnit(parts[0], s); err != nil {
		return 0, err
	}
	if minutes, err = parseUnit(parts[1], s); err != nil {
		return 0, err
	}
	sec, frac, hasFraction := strings.Cut(parts[2], ".")
	if seconds, err = parseUnit(sec, s); err != nil {
		return 0, err
	}
	if hasFraction {
		if len(frac) == 0 || len(frac) > 7 {
			return 0, errors.Newf("invalid time span fraction %q", s)
		}
		if fraction, err = parseUnit(frac+strings.Repeat("0", 7-len(frac)), s); err != nil {
			return 0, err
		}
	}
	if hours > 23 || minutes > 59 || seconds > 59 {
		return 0, errors.Newf("time span component out of range %q", s)
	}

	ticks := days*ticksPerDay + (hours*3600+minutes*60+seconds)*ticksPerSecond + fraction
	d := time.Duration(ticks * 100)
	if negative {
		d = -d
	}
	return d, nil
}

func parseUnit(part, whole string) (int64, error) {
	if part == "" || strings.TrimLeft(part, "0123456789") != "" {
		return 0, errors.Newf("invalid time span %q", whole)
	}
	n, err := strconv.ParseInt(part, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid time span %q", whole)
	}
	return n, nil
}
