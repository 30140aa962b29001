package odata

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/letmevibethatforyou/odatax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLiteral(t *testing.T) {
	moment := time.Date(2019, 8, 2, 13, 9, 8, 7000000, time.UTC)
	eastern := time.FixedZone("", -5*60*60)
	guid := uuid.MustParse("00000000-ABCD-0000-0000-000000000000")
	count := 3

	tests := map[string]struct {
		value    any
		kind     odatax.Kind
		expected string
	}{
		"string": {
			value:    "Foo",
			expected: "'Foo'",
		},
		"string_not_escaped": {
			value:    "O'Brien",
			kind:     odatax.KindString,
			expected: "'O'Brien'",
		},
		"bool_true": {
			value:    true,
			expected: "true",
		},
		"bool_false": {
			value:    false,
			kind:     odatax.KindBool,
			expected: "false",
		},
		"int": {
			value:    42,
			expected: "42",
		},
		"negative_int64": {
			value:    int64(-7),
			kind:     odatax.KindInt,
			expected: "-7",
		},
		"uint": {
			value:    uint8(200),
			expected: "200",
		},
		"int_as_float_field": {
			value:    2,
			kind:     odatax.KindFloat,
			expected: "2",
		},
		"float": {
			value:    1.5,
			expected: "1.5",
		},
		"float32": {
			value:    float32(0.1),
			expected: "0.1",
		},
		"float_large": {
			value:    1e15,
			expected: "1E+15",
		},
		"float_small": {
			value:    1e-6,
			expected: "1E-06",
		},
		"float_zero": {
			value:    0.0,
			expected: "0",
		},
		"float_nan": {
			value:    math.NaN(),
			expected: "NaN",
		},
		"float_inf": {
			value:    math.Inf(1),
			expected: "INF",
		},
		"float_negative_inf": {
			value:    math.Inf(-1),
			expected: "-INF",
		},
		"guid": {
			value:    guid,
			expected: "'00000000-abcd-0000-0000-000000000000'",
		},
		"guid_from_string": {
			value:    "00000000-ABCD-0000-0000-000000000000",
			kind:     odatax.KindGUID,
			expected: "'00000000-abcd-0000-0000-000000000000'",
		},
		"duration": {
			value:    13*time.Hour + 9*time.Minute + 8*time.Second + 7*time.Millisecond,
			expected: "'13:09:08.0070000'",
		},
		"duration_with_days": {
			value:    26 * time.Hour,
			kind:     odatax.KindDuration,
			expected: "'1.02:00:00'",
		},
		"naive_datetime": {
			value:    moment,
			expected: "2019-08-02T13:09:08.0070000Z",
		},
		"naive_datetime_normalized_to_utc": {
			value:    moment.In(eastern),
			kind:     odatax.KindDateTime,
			expected: "2019-08-02T13:09:08.0070000Z",
		},
		"zoned_datetime": {
			value:    time.Date(2019, 8, 2, 13, 9, 8, 7000000, eastern),
			expected: "2019-08-02T13:09:08.0070000-05:00",
		},
		"zoned_datetime_declared": {
			value:    moment,
			kind:     odatax.KindDateTimeOffset,
			expected: "2019-08-02T13:09:08.0070000+00:00",
		},
		"pointer": {
			value:    &count,
			expected: "3",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := FormatLiteral(tt.value, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatLiteralErrors(t *testing.T) {
	var nilInt *int

	tests := map[string]struct {
		value any
		kind  odatax.Kind
	}{
		"nil":                {value: nil},
		"nil_pointer":        {value: nilInt},
		"struct":             {value: struct{ A int }{A: 1}},
		"slice":              {value: []string{"a"}},
		"string_as_int":      {value: "abc", kind: odatax.KindInt},
		"bad_guid":           {value: "not-a-guid", kind: odatax.KindGUID},
		"int_as_duration":    {value: 5, kind: odatax.KindDuration},
		"duration_as_number": {value: time.Second, kind: odatax.KindInt},
		"string_as_datetime": {value: "2019-08-02", kind: odatax.KindDateTime},
		"complex_kind":       {value: "x", kind: odatax.KindComplex},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FormatLiteral(tt.value, tt.kind)
			require.ErrorIs(t, err, odatax.ErrUnsupportedLiteral)
			assert.Equal(t, odatax.ErrCodeUnsupportedLiteral, odatax.CodeOf(err))
		})
	}
}

func TestInvariantLower(t *testing.T) {
	assert.Equal(t, "00000000-abcd-0000-0000-00000000000f", invariantLower("00000000-ABCD-0000-0000-00000000000F"))
}

func TestFormatDuration(t *testing.T) {
	tests := map[string]struct {
		d        time.Duration
		expected string
	}{
		"zero":              {d: 0, expected: "00:00:00"},
		"seconds":           {d: 5 * time.Second, expected: "00:00:05"},
		"negative":          {d: -90 * time.Minute, expected: "-01:30:00"},
		"ticks":             {d: 100 * time.Nanosecond, expected: "00:00:00.0000001"},
		"below_tick":        {d: 99 * time.Nanosecond, expected: "00:00:00"},
		"days_and_fraction": {d: 49*time.Hour + 500*time.Millisecond, expected: "2.01:00:00.5000000"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.d))
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		"hours":          {input: "13:09:08", expected: 13*time.Hour + 9*time.Minute + 8*time.Second},
		"fraction":       {input: "13:09:08.0070000", expected: 13*time.Hour + 9*time.Minute + 8*time.Second + 7*time.Millisecond},
		"short_fraction": {input: "00:00:01.5", expected: 1500 * time.Millisecond},
		"days":           {input: "2.01:00:00", expected: 49 * time.Hour},
		"negative":       {input: "-01:30:00", expected: -90 * time.Minute},
		"two_parts":      {input: "01:30", wantErr: true},
		"letters":        {input: "aa:00:00", wantErr: true},
		"out_of_range":   {input: "00:60:00", wantErr: true},
		"long_fraction":  {input: "00:00:00.12345678", wantErr: true},
		"empty_fraction": {input: "00:00:00.", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
