package json

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	"github.com/ajitpratap0/sdds/pkg/table"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestStreamingEncoder(t *testing.T) {
	tests := []struct {
		name    string
		isArray bool
		pretty  bool
		values  []any
		want    string
	}{
		{"array", true, false, []any{1, "a<b"}, "[1,\"a<b\"]\n"},
		{"empty array", true, false, nil, "[]\n"},
		{"lines", false, false, []any{map[string]int{"x": 1}, 2}, "{\"x\":1}\n2\n"},
		{"pretty array", true, true, []any{[]int{1}}, "[\n[\n  1\n]\n]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := NewStreamingEncoder(&buf, tt.isArray)
			enc.SetPretty(tt.pretty, "  ")
			for _, v := range tt.values {
				require.NoError(t, enc.Encode(v))
			}
			require.NoError(t, enc.Close())
			require.NoError(t, enc.Close())
			assert.Equal(t, tt.want, buf.String())
			assert.Equal(t, len(tt.values), enc.Count())
		})
	}
}

func TestStreamingEncoderReportsWriteErrors(t *testing.T) {
	enc := NewStreamingEncoder(failingWriter{}, true)
	assert.Error(t, enc.Encode(1))
	assert.Zero(t, enc.Count())
	assert.Error(t, enc.Close())
}

func TestValue(t *testing.T) {
	assert.Equal(t, "a", Value(byte('a')))
	assert.Equal(t, 1.5, Value(scalar.LongDouble(1.5)))
	assert.Equal(t, float32(0.25), Value(float32(0.25)))
	assert.Equal(t, "NaN", Value(math.NaN()))
	assert.Equal(t, "+Inf", Value(math.Inf(1)))
	assert.Equal(t, "-Inf", Value(float32(math.Inf(-1))))
	assert.Equal(t, int16(-3), Value(int16(-3)))
}

func samplePage(t *testing.T) *table.Page {
	t.Helper()
	l := layout.New()
	_, err := l.DefineParameter(layout.Parameter{
		Field:         layout.Field{Name: "Step", Type: scalar.TypeLong},
		FixedValue:    "4",
		HasFixedValue: true,
	})
	require.NoError(t, err)
	_, err = l.DefineSimpleArray("m", "", scalar.TypeShort, 2)
	require.NoError(t, err)
	_, err = l.DefineSimpleColumn("z", "m", scalar.TypeDouble)
	require.NoError(t, err)
	_, err = l.DefineSimpleColumn("a", "", scalar.TypeString)
	require.NoError(t, err)
	l.Commit()

	p := table.New(l)
	require.NoError(t, p.StartPage(3))
	require.NoError(t, p.SetArray(table.ByName("m"), []int{1, 2}, []int16{7, 8}))
	require.NoError(t, p.SetRow(0, 1.0, "one"))
	require.NoError(t, p.SetRow(1, math.NaN(), "two"))
	require.NoError(t, p.SetRow(2, 3.0, "three"))
	require.NoError(t, p.AssertRowRange(1, 1, false))
	return p
}

func TestPageDocument(t *testing.T) {
	doc, err := NewPageDocument(samplePage(t))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Page)
	assert.Equal(t, []string{"z", "a"}, doc.Columns)
	require.Len(t, doc.Rows, 2)

	data, err := Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"page": 1,
		"parameters": {"Step": 4},
		"arrays": {"m": {"dims": [1, 2], "values": [7, 8]}},
		"columns": ["z", "a"],
		"rows": [{"z": 1, "a": "one"}, {"z": 3, "a": "three"}]
	}`, string(data))

	// keys keep column order
	row, err := Marshal(doc.Rows[1])
	require.NoError(t, err)
	assert.Equal(t, `{"z":3,"a":"three"}`, string(row))
}

func TestLayoutDocument(t *testing.T) {
	p := samplePage(t)
	doc := NewLayoutDocument(p.Layout())
	assert.Equal(t, "binary", doc.Mode)
	require.Len(t, doc.Parameters, 1)
	assert.Equal(t, "4", doc.Parameters[0].FixedValue)
	assert.Equal(t, "long", doc.Parameters[0].Type)
	require.Len(t, doc.Arrays, 1)
	assert.Equal(t, 2, doc.Arrays[0].Dimensions)
	require.Len(t, doc.Columns, 2)
	assert.Equal(t, "m", doc.Columns[0].Units)

	var back LayoutDocument
	data, err := MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, Unmarshal(data, &back))
	assert.Equal(t, *doc, back)
}
