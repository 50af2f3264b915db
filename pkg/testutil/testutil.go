// Package testutil provides testing utilities shared by the sdds packages:
// loggers, scratch files and a small "beam" layout whose page content is a
// pure function of the page and row numbers.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	"github.com/ajitpratap0/sdds/pkg/table"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a context with a 30-second timeout that is cancelled
// when the test completes.
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TempPath returns a path named name inside a fresh temporary directory
func TempPath(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// WriteFile writes content to a new temporary file and returns its path
func WriteFile(t testing.TB, name string, content []byte) string {
	t.Helper()
	path := TempPath(t, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// ReadFile returns the content of path, failing the test on error
func ReadFile(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// Definer is anything that accepts layout definitions, such as a
// *layout.Layout or an output dataset.
type Definer interface {
	DefineParameter(p layout.Parameter) (int, error)
	DefineArray(a layout.Array) (int, error)
	DefineColumn(c layout.Column) (int, error)
}

// DefineBeam declares the beam layout: parameters Turn and Label, a 1-D
// array Kick, and columns x, y, id, name and tag.
func DefineBeam(t testing.TB, d Definer) {
	t.Helper()
	params := []layout.Parameter{
		{Field: layout.Field{Name: "Turn", Type: scalar.TypeLong}},
		{Field: layout.Field{Name: "Label", Type: scalar.TypeString}},
	}
	for _, p := range params {
		_, err := d.DefineParameter(p)
		require.NoError(t, err)
	}
	_, err := d.DefineArray(layout.Array{
		Field:      layout.Field{Name: "Kick", Units: "rad", Type: scalar.TypeDouble},
		Dimensions: 1,
	})
	require.NoError(t, err)
	columns := []layout.Column{
		{Field: layout.Field{Name: "x", Units: "m", Type: scalar.TypeDouble}},
		{Field: layout.Field{Name: "y", Units: "m", Type: scalar.TypeFloat}},
		{Field: layout.Field{Name: "id", Type: scalar.TypeLong64}},
		{Field: layout.Field{Name: "name", Type: scalar.TypeString}},
		{Field: layout.Field{Name: "tag", Type: scalar.TypeCharacter}},
	}
	for _, c := range columns {
		_, err := d.DefineColumn(c)
		require.NoError(t, err)
	}
}

// BeamLayout returns a committed layout carrying the beam definitions
func BeamLayout(t testing.TB) *layout.Layout {
	t.Helper()
	l := layout.New()
	DefineBeam(t, l)
	l.Commit()
	return l
}

// BeamRow returns the values of one beam row in definition order
func BeamRow(page, row int) []any {
	v := page*1000 + row
	return []any{
		float64(v) + 0.5,
		float32(row) / 4,
		int64(v),
		fmt.Sprintf("p%d r%d", page, row),
		byte('a' + row%26),
	}
}

// FillBeamPage starts p for rows rows and fills it with the beam content of
// the given page number.
func FillBeamPage(t testing.TB, p *table.Page, page, rows int) {
	t.Helper()
	require.NoError(t, p.StartPage(rows))
	SetBeamPage(t, p, page, rows)
}

// SetBeamPage fills an already started page with the beam content of the
// given page number.
func SetBeamPage(t testing.TB, p *table.Page, page, rows int) {
	t.Helper()
	require.NoError(t, p.SetParameter(table.ByName("Turn"), int32(page)))
	require.NoError(t, p.SetParameter(table.ByName("Label"), fmt.Sprintf("page %d", page)))
	require.NoError(t, p.SetArray(table.ByName("Kick"), []int{2}, []float64{float64(page), -float64(page)}))
	for row := 0; row < rows; row++ {
		require.NoError(t, p.SetRow(row, BeamRow(page, row)...))
	}
}

// AssertBeamPage checks that p holds the beam content of the given page
// number with rows rows, all of interest.
func AssertBeamPage(t testing.TB, p *table.Page, page, rows int) {
	t.Helper()
	turn, err := p.Parameter(table.ByName("Turn"))
	require.NoError(t, err)
	assert.Equal(t, int32(page), turn)
	label, err := p.Parameter(table.ByName("Label"))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("page %d", page), label)
	kick, err := p.Array(table.ByName("Kick"))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, kick.Dims)
	assert.Equal(t, []float64{float64(page), -float64(page)}, kick.Data.Slice())

	require.Equal(t, rows, p.RowsInUse())
	for row := 0; row < rows; row++ {
		values, err := p.Row(row)
		require.NoError(t, err)
		assert.Equal(t, BeamRow(page, row), values, "page %d row %d", page, row)
	}
}
