package scalar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

func TestWidth(t *testing.T) {
	want := map[Type]int{
		TypeLongDouble: 16, TypeDouble: 8, TypeFloat: 4,
		TypeLong64: 8, TypeULong64: 8, TypeLong: 4, TypeULong: 4,
		TypeShort: 2, TypeUShort: 2, TypeString: 0, TypeCharacter: 1,
	}
	for typ, w := range want {
		assert.Equal(t, w, Width(typ), typ.String())
	}
	assert.Equal(t, 0, Width(TypeInvalid))
	assert.Len(t, AllTypes(), 11)
}

func TestParseType(t *testing.T) {
	for _, typ := range AllTypes() {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	got, err := ParseType(" DOUBLE ")
	require.NoError(t, err)
	assert.Equal(t, TypeDouble, got)

	_, err = ParseType("complex")
	assert.True(t, errors.IsType(err, errors.ErrorTypeType))
}

func TestCastNumeric(t *testing.T) {
	tests := []struct {
		name string
		in   any
		dst  Type
		want any
	}{
		{"float truncates to long", 2.9, TypeLong, int32(2)},
		{"negative float truncates", -2.9, TypeShort, int16(-2)},
		{"int widens to double", int32(7), TypeDouble, float64(7)},
		{"ushort narrows with wrap", int64(70000), TypeUShort, uint16(70000 - 65536)},
		{"double to float", 1.5, TypeFloat, float32(1.5)},
		{"long64 to longdouble", int64(3), TypeLongDouble, LongDouble(3)},
		{"string to long64", "-42", TypeLong64, int64(-42)},
		{"string to ulong", "+42", TypeULong, uint32(42)},
		{"string to double", " 2.5e3 ", TypeDouble, 2500.0},
		{"character to long", byte('A'), TypeLong, int32(65)},
		{"long to character", int32(66), TypeCharacter, byte('B')},
		{"string to character", "xyz", TypeCharacter, byte('x')},
		{"float to ulong64", 3.7, TypeULong64, uint64(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cast(tt.in, tt.dst)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCastToString(t *testing.T) {
	got, err := Cast(math.Pi, TypeString)
	require.NoError(t, err)
	assert.Equal(t, "3.14159265358979", got)

	got, err = Cast(byte('q'), TypeString)
	require.NoError(t, err)
	assert.Equal(t, "q", got)

	got, err = Cast(uint16(9), TypeString)
	require.NoError(t, err)
	assert.Equal(t, "9", got)
}

func TestCastFormat(t *testing.T) {
	got, err := CastFormat(2.5, TypeString, "%8.3lf")
	require.NoError(t, err)
	assert.Equal(t, "   2.500", got)

	got, err = CastFormat(2.5, TypeString, "")
	require.NoError(t, err)
	assert.Equal(t, "2.5", got)

	got, err = CastFormat("7", TypeShort, "%hd")
	require.NoError(t, err)
	assert.Equal(t, int16(7), got, "the format only applies to string results")
}

func TestCastRejectsBadLiterals(t *testing.T) {
	for _, dst := range []Type{TypeLong, TypeULong64, TypeDouble, TypeFloat} {
		_, err := Cast("not-a-number", dst)
		assert.True(t, errors.IsType(err, errors.ErrorTypeType), dst.String())
	}
	_, err := Cast("2.5", TypeLong)
	assert.Error(t, err, "integer target rejects a float literal")
	_, err = Cast(struct{}{}, TypeDouble)
	assert.Error(t, err)
}

func TestCastIsTotal(t *testing.T) {
	samples := []any{
		LongDouble(1.25), -3.5, float32(2), int64(-9), uint64(math.MaxUint64),
		int32(5), uint32(6), int16(-7), uint16(8), "12", byte('z'),
		math.NaN(), math.Inf(1), math.Inf(-1), math.MaxFloat64,
	}
	for _, src := range samples {
		for _, dst := range AllTypes() {
			assert.NotPanics(t, func() { _, _ = Cast(src, dst) }, "%T -> %s", src, dst)
		}
	}
}

func TestNumericStringRoundTrip(t *testing.T) {
	values := []any{
		1.0 / 3.0, -2.5e-300, LongDouble(123456.789), float32(0.1),
		int64(math.MinInt64), uint64(math.MaxUint64), int32(-1), uint32(4e9),
		int16(-32768), uint16(65535),
	}
	for _, v := range values {
		typ, ok := TypeOf(v)
		require.True(t, ok)
		text, err := Cast(v, TypeString)
		require.NoError(t, err)
		back, err := Cast(text, typ)
		require.NoError(t, err, "parse %q as %s", text, typ)
		if typ.IsFloat() {
			want, _ := ToFloat64(v)
			got, _ := ToFloat64(back)
			digits := DoubleDigits
			if typ == TypeFloat {
				digits = FloatDigits - 1
			}
			assert.InEpsilon(t, want, got, math.Pow(10, -float64(digits-1)), "%s", text)
			continue
		}
		assert.Equal(t, v, back)
	}
}

func TestInWindow(t *testing.T) {
	assert.True(t, InWindow(0, 0, 10))
	assert.True(t, InWindow(10, 0, 10))
	assert.False(t, InWindow(-3, 0, 10))
	assert.False(t, InWindow(math.NaN(), math.Inf(-1), math.Inf(1)))
	assert.False(t, InWindow(math.Inf(1), math.Inf(-1), math.Inf(1)))
}

func TestIsNumberToken(t *testing.T) {
	for _, s := range []string{"1", "-2.5", "+.5", "3.", "1e10", "2.5E-3", " 7 ", "1d3"} {
		assert.True(t, IsNumberToken(s), s)
	}
	for _, s := range []string{"", "abc", ".", "1e", "1.2.3", "nan", "inf", "--1", "12a"} {
		assert.False(t, IsNumberToken(s), s)
	}
}
