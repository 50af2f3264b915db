package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/scalar"
)

func TestIsValidName(t *testing.T) {
	tests := []struct {
		name     string
		validity NameValidity
		want     bool
	}{
		{"x", ValidityStrict, true},
		{"Beam.Current[2]", ValidityStrict, true},
		{".hidden", ValidityStrict, true},
		{"1abc", ValidityStrict, false},
		{"has space", ValidityStrict, false},
		{"%pct", ValidityStrict, false},
		{"%pct", ValidityAllowV15, true},
		{"1abc", ValidityAllowV15, false},
		{"1 abc!", ValidityAllowAny, true},
		{"", ValidityAllowAny, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidName(tt.name, tt.validity))
		})
	}
}

func TestDefineAndLookup(t *testing.T) {
	l := New()
	i, err := l.DefineSimpleColumn("z", "m", scalar.TypeDouble)
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	i, err = l.DefineSimpleColumn("a", "", scalar.TypeLong)
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	i, err = l.DefineSimpleColumn("m", "", scalar.TypeString)
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	assert.Equal(t, 0, l.ColumnIndex("z"))
	assert.Equal(t, 1, l.ColumnIndex("a"))
	assert.Equal(t, 2, l.ColumnIndex("m"))
	assert.Equal(t, -1, l.ColumnIndex("q"))
	assert.Equal(t, []string{"z", "a", "m"}, l.ColumnNames())
	assert.Equal(t, "m", l.Column("z").Units)

	_, err = l.DefineSimpleColumn("a", "", scalar.TypeShort)
	assert.True(t, errors.IsType(err, errors.ErrorTypeName), "duplicate")
	_, err = l.DefineSimpleColumn("9bad", "", scalar.TypeShort)
	assert.True(t, errors.IsType(err, errors.ErrorTypeName), "invalid")
	_, err = l.DefineSimpleColumn("ok", "", scalar.TypeInvalid)
	assert.True(t, errors.IsType(err, errors.ErrorTypeType))

	// Same name in another kind is allowed.
	_, err = l.DefineSimpleParameter("a", "", scalar.TypeDouble)
	require.NoError(t, err)
}

func TestCommitFreezesDefinitions(t *testing.T) {
	l := New()
	_, err := l.DefineSimpleParameter("p", "", scalar.TypeDouble)
	require.NoError(t, err)
	l.Commit()
	assert.True(t, l.Committed())

	_, err = l.DefineSimpleParameter("q", "", scalar.TypeDouble)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	_, err = l.DefineAssociate(Associate{Filename: "x.sdds"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
}

func TestFixedValueParameter(t *testing.T) {
	l := New()
	i, err := l.DefineParameter(Parameter{
		Field:         Field{Name: "Count", Type: scalar.TypeLong},
		FixedValue:    "12",
		HasFixedValue: true,
	})
	require.NoError(t, err)
	v, err := l.FixedValueOf(i)
	require.NoError(t, err)
	assert.Equal(t, int32(12), v)

	_, err = l.DefineParameter(Parameter{
		Field:         Field{Name: "Bad", Type: scalar.TypeLong},
		FixedValue:    "twelve",
		HasFixedValue: true,
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeType))
}

func TestArrayDimensionsDefault(t *testing.T) {
	l := New()
	i, err := l.DefineArray(Array{Field: Field{Name: "A", Type: scalar.TypeDouble}})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Arrays[i].Dimensions)
	_, err = l.DefineArray(Array{Field: Field{Name: "B", Type: scalar.TypeDouble}, Dimensions: -2})
	assert.True(t, errors.IsType(err, errors.ErrorTypeBounds))
}

func TestMinimumVersion(t *testing.T) {
	tests := []struct {
		name string
		typ  scalar.Type
		cm   bool
		want int
	}{
		{"double", scalar.TypeDouble, false, 1},
		{"ushort", scalar.TypeUShort, false, 2},
		{"ulong", scalar.TypeULong, false, 2},
		{"column major", scalar.TypeDouble, true, 3},
		{"longdouble", scalar.TypeLongDouble, false, 4},
		{"long64", scalar.TypeLong64, false, 5},
		{"ulong64", scalar.TypeULong64, true, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			l.Data.ColumnMajor = tt.cm
			_, err := l.DefineSimpleColumn("c", "", tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.MinimumVersion())
			l.Commit()
			assert.Equal(t, tt.want, l.Version)
		})
	}
}

func TestSetUnitsConversion(t *testing.T) {
	l := New()
	_, err := l.DefineSimpleColumn("x", "m", scalar.TypeDouble)
	require.NoError(t, err)
	_, err = l.DefineSimpleColumn("name", "", scalar.TypeString)
	require.NoError(t, err)
	l.Commit()

	require.NoError(t, l.SetUnitsConversion(KindColumn, "x", "mm", "m", 1000))
	assert.Equal(t, "mm", l.Column("x").Units)
	assert.Equal(t, 1000.0, l.Column("x").Conversion())

	err = l.SetUnitsConversion(KindColumn, "x", "um", "m", 1000)
	assert.True(t, errors.IsType(err, errors.ErrorTypeName), "old units mismatch")
	err = l.SetUnitsConversion(KindColumn, "name", "", "", 2)
	assert.True(t, errors.IsType(err, errors.ErrorTypeType))
	err = l.SetUnitsConversion(KindArray, "nope", "", "", 2)
	assert.True(t, errors.IsType(err, errors.ErrorTypeName))

	l.MarkMaterialized()
	err = l.SetUnitsConversion(KindColumn, "x", "um", "mm", 1000)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
}

func TestCloneIsIndependentAndOpen(t *testing.T) {
	l := New()
	_, err := l.DefineSimpleColumn("x", "", scalar.TypeDouble)
	require.NoError(t, err)
	_, err = l.DefineAssociate(Associate{Filename: "aux.sdds", SDDS: true})
	require.NoError(t, err)
	l.Commit()

	c := l.Clone()
	assert.False(t, c.Committed())
	c.Columns[0].Units = "s"
	assert.Equal(t, "", l.Columns[0].Units)
	assert.Equal(t, 0, c.ColumnIndex("x"))
	assert.Equal(t, 0, c.AssociateIndex("aux.sdds"))

	_, err = c.DefineSimpleColumn("y", "", scalar.TypeDouble)
	require.NoError(t, err)
	assert.Len(t, l.Columns, 1)
}

func TestEndianness(t *testing.T) {
	assert.Equal(t, "big-endian", EndianBig.String())
	assert.Equal(t, "little-endian", EndianLittle.String())
	assert.NotEqual(t, EndianNative, EndianNative.Resolve())
}
