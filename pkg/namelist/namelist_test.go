package namelist

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

func TestParse(t *testing.T) {
	nl, err := Parse(`&column name=x, type=double, units="m s", description="say \"hi\"", &end`)
	require.NoError(t, err)
	assert.Equal(t, "column", nl.Group)

	v, ok := nl.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	v, _ = nl.Get("UNITS")
	assert.Equal(t, "m s", v)
	v, _ = nl.Get("description")
	assert.Equal(t, `say "hi"`, v)
	_, ok = nl.Get("symbol")
	assert.False(t, ok)
}

func TestParseSpacingAndEmptyValues(t *testing.T) {
	nl, err := Parse(`&Parameter name = p , units= , type=long &END`)
	require.NoError(t, err)
	assert.Equal(t, "parameter", nl.Group)
	assert.Equal(t, []Field{{"name", "p"}, {"units", ""}, {"type", "long"}}, nl.Fields)
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		`column name=x &end`,
		`&end`,
		`&column name=x`,
		`&column name &end`,
		`&column = x &end`,
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	nl := &Namelist{Group: "parameter"}
	nl.Set("name", "Name")
	nl.Set("description", "a, b & \"c\"")
	nl.Set("units", "")

	text := nl.String()
	assert.Equal(t, `&parameter name=Name, description="a, b & \"c\"", units="", &end`, text)

	back, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, nl, back)
}

func TestScanner(t *testing.T) {
	input := "SDDS3\n" +
		"!# little-endian\n" +
		"\n" +
		"&column name=x,\n" +
		"   type=double, &end\n" +
		"&data mode=binary, &end\n" +
		"PAYLOAD"
	r := bufio.NewReader(strings.NewReader(input))
	s := NewScanner(r)

	line, err := s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "SDDS3", line)

	item, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "# little-endian", item.Comment)

	item, err = s.Next()
	require.NoError(t, err)
	require.NotNil(t, item.Namelist)
	assert.Equal(t, "column", item.Namelist.Group)
	v, _ := item.Namelist.Get("type")
	assert.Equal(t, "double", v)

	item, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "data", item.Namelist.Group)
	assert.Equal(t, 6, s.Line())
	assert.Equal(t, int64(len(input)-len("PAYLOAD")), s.BytesRead())

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "PAYLOAD", string(rest))
}

func TestScannerUnterminated(t *testing.T) {
	s := NewScanner(bufio.NewReader(strings.NewReader("&column name=x\n")))
	_, err := s.Next()
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))

	s = NewScanner(bufio.NewReader(strings.NewReader("")))
	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFields(t *testing.T) {
	tokens, quoted := Fields(`1.5  "two words" "" x "a\"b"`)
	assert.Equal(t, []string{"1.5", "two words", "", "x", `a"b`}, tokens)
	assert.Equal(t, []bool{false, true, true, false, true}, quoted)

	tokens, _ = Fields("   ")
	assert.Empty(t, tokens)
}
