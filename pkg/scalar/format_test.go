package scalar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoFormat(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		class byte
	}{
		{"%lf", "%f", 'f'},
		{"%21.15le", "%21.15e", 'f'},
		{"%hd", "%d", 'd'},
		{"%lu", "%d", 'd'},
		{"%ld items", "%d items", 'd'},
		{"%Lg", "%g", 'f'},
		{"%-10s|", "%-10s|", 's'},
		{"%c", "%c", 'c'},
		{"100%%", "100%%", 0},
		{"%i", "%d", 'd'},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, class := GoFormat(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.class, class)
		})
	}
}

func TestFormatWithCFormat(t *testing.T) {
	s, err := Format(2.5, "%10.3lf")
	require.NoError(t, err)
	assert.Equal(t, "     2.500", s)

	s, err = Format(int32(42), "%5ld")
	require.NoError(t, err)
	assert.Equal(t, "   42", s)

	s, err = Format(3.9, "%d")
	require.NoError(t, err)
	assert.Equal(t, "3", s)

	s, err = Format(byte('k'), "%c")
	require.NoError(t, err)
	assert.Equal(t, "k", s)

	s, err = Format(uint64(18446744073709551615), "%lu")
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", s)
}

func TestFormatExactRoundTrips(t *testing.T) {
	for _, f := range []float64{0.1, 1.0 / 3.0, 2.5, -3.0, 1e-310} {
		s, err := FormatExact(f)
		require.NoError(t, err)
		back, err := Parse(s, TypeDouble)
		require.NoError(t, err)
		assert.Equal(t, f, back)
	}
	s, err := FormatExact(float32(0.1))
	require.NoError(t, err)
	back, err := Parse(s, TypeFloat)
	require.NoError(t, err)
	assert.Equal(t, float32(0.1), back)
}

func TestParse(t *testing.T) {
	v, err := Parse("17", TypeShort)
	require.NoError(t, err)
	assert.Equal(t, int16(17), v)

	v, err = Parse("17.0", TypeLong)
	require.NoError(t, err)
	assert.Equal(t, int32(17), v)

	_, err = Parse("17.5", TypeLong)
	assert.Error(t, err)

	v, err = Parse("hello world", TypeString)
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)

	v, err = Parse("NaN", TypeDouble)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v.(float64)))
}
