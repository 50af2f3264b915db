package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/scalar"
)

// combineSteps is Combine written out as an explicit pipeline
func combineSteps(previous, match bool, logic Logic) bool {
	steps := []func(){
		func() {
			if logic&ZeroPrevious != 0 {
				previous = false
			} else if logic&OnePrevious != 0 {
				previous = true
			}
		},
		func() {
			if logic&NegatePrevious != 0 {
				previous = !previous
			}
		},
		func() {
			if logic&NegateMatch != 0 {
				match = !match
			}
		},
		func() {
			switch {
			case logic&And != 0:
				match = match && previous
			case logic&Or != 0:
				match = match || previous
			}
		},
		func() {
			if logic&NegateExpression != 0 {
				match = !match
			}
		},
	}
	for _, step := range steps {
		step()
	}
	return match
}

func TestCombineExhaustive(t *testing.T) {
	bits := []Logic{And, Or, NegateMatch, NegatePrevious, NegateExpression, OnePrevious, ZeroPrevious}
	for mask := 0; mask < 1<<len(bits); mask++ {
		var logic Logic
		for i, b := range bits {
			if mask&(1<<i) != 0 {
				logic |= b
			}
		}
		for _, previous := range []bool{false, true} {
			for _, match := range []bool{false, true} {
				assert.Equal(t, combineSteps(previous, match, logic), Combine(previous, match, logic),
					"logic=%#x previous=%v match=%v", uint32(logic), previous, match)
			}
		}
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name     string
		previous bool
		match    bool
		logic    Logic
		want     bool
	}{
		{"replace", true, false, 0, false},
		{"and", true, true, And, true},
		{"and false previous", false, true, And, false},
		{"or", false, true, Or, true},
		{"and wins over or", false, true, And | Or, false},
		{"zero previous wins over one", true, true, ZeroPrevious | OnePrevious | And, false},
		{"negate previous after force", false, true, ZeroPrevious | NegatePrevious | And, true},
		{"negate match", true, true, NegateMatch | And, false},
		{"negate expression", true, true, And | NegateExpression, false},
		{"indirect and nocase ignored", true, false, IndirectMatch | NoCaseCompare, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Combine(tt.previous, tt.match, tt.logic))
		})
	}
}

func TestRowFilterScenario(t *testing.T) {
	p := basicPage(t)

	n, err := p.FilterRowsByNumericWindow("x", 0.0, 10.0, And)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, p.CountRowsOfInterest())
	assert.Equal(t, []int{0, 1}, p.SelectedRows())
	assert.False(t, p.RowFlag(2))
}

func TestNumericWindowRejectsNaNAndInf(t *testing.T) {
	p := New(testLayout(t))
	require.NoError(t, p.StartPage(4))
	require.NoError(t, p.SetColumn(ByName("x"), []float64{math.NaN(), math.Inf(1), 5, math.Inf(-1)}, 4))

	n, err := p.FilterRowsByNumericWindow("x", math.Inf(-1), math.Inf(1), And)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{2}, p.SelectedRows())

	_, err = p.FilterRowsByNumericWindow("label", 0, 1, And)
	assert.True(t, errors.IsType(err, errors.ErrorTypeType))
}

func TestSelectRowsByLabel(t *testing.T) {
	p := basicPage(t)

	n, err := p.SelectRowsByLabel("label", []string{"alpha", "gamma"}, And)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, p.SetRowFlags(true))
	n, err = p.SelectRowsByLabel("label", []string{"alpha", "gamma"}, And|NoCaseCompare)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{0, 2}, p.SelectedRows())

	_, err = p.SelectRowsByLabel("x", []string{"1"}, And)
	assert.True(t, errors.IsType(err, errors.ErrorTypeType))
}

func TestSelectRowsByPattern(t *testing.T) {
	p := basicPage(t)

	n, err := p.SelectRowsByPattern("label", "*a", And)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = p.SelectRowsByPattern("label", "[ab]*", And)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.SelectRowsByPattern("label", "g*", Or|NoCaseCompare)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = p.SelectRowsByPattern("label", "beta", NegateMatch|And)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{0, 2}, p.SelectedRows())
}

func TestSelectRowsIndirect(t *testing.T) {
	l := layout.New()
	_, err := l.DefineSimpleColumn("a", "", scalar.TypeString)
	require.NoError(t, err)
	_, err = l.DefineSimpleColumn("b", "", scalar.TypeString)
	require.NoError(t, err)
	l.Commit()

	p := New(l)
	require.NoError(t, p.StartPage(3))
	require.NoError(t, p.SetColumn(ByName("a"), []string{"x", "y", "Z"}, 3))
	require.NoError(t, p.SetColumn(ByName("b"), []string{"x", "q", "z"}, 3))

	n, err := p.SelectRowsByLabel("a", []string{"b"}, And|IndirectMatch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, p.SetRowFlags(true))
	n, err = p.SelectRowsByPattern("a", "b", And|IndirectMatch|NoCaseCompare)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{0, 2}, p.SelectedRows())
}

func TestFilterRowsByNumericScan(t *testing.T) {
	p := New(testLayout(t))
	require.NoError(t, p.StartPage(5))
	require.NoError(t, p.SetColumn(ByName("label"), []string{"1.5", "abc", "-2e3", "", " 7 "}, 5))

	n, err := p.FilterRowsByNumericScan("label", false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{0, 2, 4}, p.SelectedRows())

	require.NoError(t, p.SetRowFlags(true))
	n, err = p.FilterRowsByNumericScan("label", true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 3}, p.SelectedRows())
}

func TestSelectColumnsByName(t *testing.T) {
	p := basicPage(t)
	p.SetColumnFlags(false)
	assert.Equal(t, 0, p.CountColumnsOfInterest())

	n, err := p.SelectColumnsByName("n", "x")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{0, 2}, p.ColumnOrder())
	assert.Equal(t, []string{"x", "n"}, p.SelectedColumnNames())

	_, err = p.SelectColumnsByName("nope")
	assert.True(t, errors.IsType(err, errors.ErrorTypeName))
	assert.Equal(t, []int{0, 2}, p.ColumnOrder())
}

func TestSelectColumnsByPatternOrder(t *testing.T) {
	p := basicPage(t)
	p.SetColumnFlags(false)

	_, err := p.SelectColumnsByPattern("n", Or)
	require.NoError(t, err)
	_, err = p.SelectColumnsByPattern("x", Or)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, p.ColumnOrder(), "newly selected columns are appended")

	_, err = p.SelectColumnsByPattern("*", Or)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, p.ColumnOrder())
	assert.Equal(t, 3, p.CountColumnsOfInterest())

	n, err := p.ExcludeColumnsByPattern("x", "lab*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{2}, p.ColumnOrder())
}

func TestSelectColumnsByPatternIdempotent(t *testing.T) {
	patterns := []string{"*", "x", "[ln]*", "?", "*a*", "none"}
	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			once := basicPage(t)
			_, err := once.SelectColumnsByPattern(pattern, ZeroPrevious|Or)
			require.NoError(t, err)

			twice := basicPage(t)
			_, err = twice.SelectColumnsByPattern(pattern, ZeroPrevious|Or)
			require.NoError(t, err)
			_, err = twice.SelectColumnsByPattern(pattern, ZeroPrevious|Or)
			require.NoError(t, err)

			assert.Equal(t, once.ColumnOrder(), twice.ColumnOrder())
			assert.Equal(t, once.CountColumnsOfInterest(), twice.CountColumnsOfInterest())
		})
	}
}

func TestAssertColumnFlags(t *testing.T) {
	p := basicPage(t)
	require.NoError(t, p.AssertColumnFlags([]bool{false, true, true}))
	assert.Equal(t, []int{1, 2}, p.ColumnOrder())
	assert.True(t, p.ColumnFlag(1))
	assert.False(t, p.ColumnFlag(0))

	err := p.AssertColumnFlags([]bool{true})
	assert.True(t, errors.IsType(err, errors.ErrorTypeBounds))
}

func TestAssertRowRange(t *testing.T) {
	p := basicPage(t)
	require.NoError(t, p.SetRowFlags(false))
	require.NoError(t, p.AssertRowRange(1, 2, true))
	assert.Equal(t, []int{1, 2}, p.SelectedRows())

	err := p.AssertRowRange(2, 3, true)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBounds))
	err = p.AssertRowFlags(make([]bool, 4))
	assert.True(t, errors.IsType(err, errors.ErrorTypeBounds))
}

func TestDeleteUnsetRows(t *testing.T) {
	p := basicPage(t)
	require.NoError(t, p.AssertRowFlags([]bool{false, true, true}))

	n, err := p.DeleteUnsetRows()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, p.RowsInUse())
	assert.Equal(t, 2, p.CountRowsOfInterest())

	labels, err := p.InternalColumn(ByName("label"))
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "Gamma", ""}, labels.Slice())

	x, err := p.ColumnFloat64(ByName("x"))
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, -3.0}, x)
}
