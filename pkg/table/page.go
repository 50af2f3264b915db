// Package table implements the in-memory page of an SDDS dataset: one value
// per parameter, one buffer per array and one growable typed buffer per
// column, together with the row and column selection state that decides which
// rows and columns are "of interest".
package table

import (
	"strconv"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/scalar"
)

// Ref names a parameter, column or array either by position or by name
type Ref struct {
	index  int
	name   string
	byName bool
}

// ByIndex refers to a definition by its position in the layout
func ByIndex(i int) Ref { return Ref{index: i} }

// ByName refers to a definition by name
func ByName(name string) Ref { return Ref{name: name, byName: true} }

func (r Ref) String() string {
	if r.byName {
		return r.name
	}
	return "#" + strconv.Itoa(r.index)
}

// ArrayValue is the per-page content of an array
type ArrayValue struct {
	Definition *layout.Array
	Dims       []int
	Data       scalar.Vector
}

// Elements returns the number of elements held
func (a *ArrayValue) Elements() int {
	if a.Data == nil {
		return 0
	}
	return a.Data.Len()
}

// At returns the element at a multi-dimensional index, last index fastest
func (a *ArrayValue) At(index ...int) (any, error) {
	if len(index) != len(a.Dims) {
		return nil, errors.Newf(errors.ErrorTypeBounds, "array %q has %d dimensions, %d indices given",
			a.Definition.Name, len(a.Dims), len(index))
	}
	offset := 0
	for d, i := range index {
		if i < 0 || i >= a.Dims[d] {
			return nil, errors.Newf(errors.ErrorTypeBounds, "index %d out of range for dimension %d of array %q",
				i, d, a.Definition.Name)
		}
		offset = offset*a.Dims[d] + i
	}
	return a.Data.Value(offset), nil
}

// Page is the mutable instance of a layout for one iteration
type Page struct {
	layout *layout.Layout

	parameters []any
	arrays     []*ArrayValue
	columns    []scalar.Vector

	rowsAllocated int
	rowsInUse     int
	rowFlag       []bool

	columnFlag        []bool
	columnOrder       []int
	columnsOfInterest int

	pageNumber int
	started    bool
}

// New binds an empty page to a layout
func New(l *layout.Layout) *Page {
	return &Page{layout: l}
}

// Layout returns the layout the page is bound to
func (p *Page) Layout() *layout.Layout { return p.layout }

// Started reports whether StartPage has been called
func (p *Page) Started() bool { return p.started }

// PageNumber returns the 1-based number of the current page
func (p *Page) PageNumber() int { return p.pageNumber }

// SetPageNumber overrides the page number, used by readers
func (p *Page) SetPageNumber(n int) { p.pageNumber = n }

// RowsAllocated returns the capacity of every column buffer
func (p *Page) RowsAllocated() int { return p.rowsAllocated }

// RowsInUse returns the number of rows holding data
func (p *Page) RowsInUse() int { return p.rowsInUse }

// SetRowsInUse declares how many rows hold data
func (p *Page) SetRowsInUse(n int) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	if n < 0 || n > p.rowsAllocated {
		return errors.Newf(errors.ErrorTypeBounds, "row count %d outside [0,%d]", n, p.rowsAllocated)
	}
	p.rowsInUse = n
	return nil
}

func (p *Page) requireStarted() error {
	if !p.started {
		return errors.New(errors.ErrorTypeState, "page not started")
	}
	return nil
}

// StartPage (re)allocates the page for expectedRows rows (at least one).
// Parameter slots are allocated on the first call only; arrays, columns and
// the selection state are reset every call.
func (p *Page) StartPage(expectedRows int) error {
	if p.layout == nil || !p.layout.Committed() {
		return errors.New(errors.ErrorTypeState, "layout must be committed before starting a page")
	}
	if expectedRows < 0 {
		return errors.Newf(errors.ErrorTypeBounds, "negative row count %d", expectedRows)
	}
	n := max(expectedRows, 1)

	if p.parameters == nil || len(p.parameters) != len(p.layout.Parameters) {
		p.parameters = make([]any, len(p.layout.Parameters))
	}
	p.arrays = make([]*ArrayValue, len(p.layout.Arrays))
	for i, def := range p.layout.Arrays {
		p.arrays[i] = &ArrayValue{Definition: def, Dims: make([]int, def.Dimensions)}
	}
	columns, err := p.allocateColumns(n)
	if err != nil {
		return err
	}
	p.columns = columns
	p.rowsAllocated = n
	p.rowsInUse = 0
	p.rowFlag = make([]bool, n)
	for i := range p.rowFlag {
		p.rowFlag[i] = true
	}
	p.SetColumnFlags(true)
	p.pageNumber++
	p.started = true
	return nil
}

func (p *Page) allocateColumns(n int) ([]scalar.Vector, error) {
	columns := make([]scalar.Vector, len(p.layout.Columns))
	for i, def := range p.layout.Columns {
		v, err := scalar.NewVector(def.Type, n)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeAllocation, "column %q", def.Name)
		}
		columns[i] = v
	}
	return columns, nil
}

// Lengthen grows every column buffer and the row flags by extra rows.
// Existing rows are preserved, new slots are zeroed and flagged.
func (p *Page) Lengthen(extra int) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	if extra < 0 {
		return errors.Newf(errors.ErrorTypeBounds, "cannot lengthen by %d rows", extra)
	}
	if extra == 0 {
		return nil
	}
	n := p.rowsAllocated + extra
	for i, col := range p.columns {
		if col == nil {
			continue
		}
		if err := col.Resize(n); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeAllocation, "column %q", p.layout.Columns[i].Name)
		}
	}
	for len(p.rowFlag) < n {
		p.rowFlag = append(p.rowFlag, true)
	}
	p.rowsAllocated = n
	return nil
}

// ResetCapacity reallocates every column buffer with max(n,1) fresh zeroed
// rows and sets the rows in use to zero. Existing row data is discarded, not
// truncated.
func (p *Page) ResetCapacity(n int) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	if n < 0 {
		return errors.Newf(errors.ErrorTypeBounds, "negative row count %d", n)
	}
	n = max(n, 1)
	columns, err := p.allocateColumns(n)
	if err != nil {
		return err
	}
	p.columns = columns
	p.rowFlag = make([]bool, n)
	for i := range p.rowFlag {
		p.rowFlag[i] = true
	}
	p.rowsAllocated = n
	p.rowsInUse = 0
	return nil
}

// ClearPage zeroes all values in place, keeping the capacity
func (p *Page) ClearPage() error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	for i, col := range p.columns {
		if col == nil {
			v, err := scalar.NewVector(p.layout.Columns[i].Type, p.rowsAllocated)
			if err != nil {
				return err
			}
			p.columns[i] = v
			continue
		}
		col.Zero()
	}
	clear(p.parameters)
	for i, def := range p.layout.Arrays {
		p.arrays[i] = &ArrayValue{Definition: def, Dims: make([]int, def.Dimensions)}
	}
	for i := range p.rowFlag {
		p.rowFlag[i] = true
	}
	p.rowsInUse = 0
	p.SetColumnFlags(true)
	return nil
}

func (p *Page) columnIndex(ref Ref) (int, error) {
	i := ref.index
	if ref.byName {
		i = p.layout.ColumnIndex(ref.name)
		if i < 0 {
			return -1, errors.Newf(errors.ErrorTypeName, "unknown column %q", ref.name)
		}
	}
	if i < 0 || i >= len(p.layout.Columns) {
		return -1, errors.Newf(errors.ErrorTypeBounds, "column index %d out of range", i)
	}
	return i, nil
}

func (p *Page) parameterIndex(ref Ref) (int, error) {
	i := ref.index
	if ref.byName {
		i = p.layout.ParameterIndex(ref.name)
		if i < 0 {
			return -1, errors.Newf(errors.ErrorTypeName, "unknown parameter %q", ref.name)
		}
	}
	if i < 0 || i >= len(p.layout.Parameters) {
		return -1, errors.Newf(errors.ErrorTypeBounds, "parameter index %d out of range", i)
	}
	return i, nil
}

func (p *Page) arrayIndex(ref Ref) (int, error) {
	i := ref.index
	if ref.byName {
		i = p.layout.ArrayIndex(ref.name)
		if i < 0 {
			return -1, errors.Newf(errors.ErrorTypeName, "unknown array %q", ref.name)
		}
	}
	if i < 0 || i >= len(p.layout.Arrays) {
		return -1, errors.Newf(errors.ErrorTypeBounds, "array index %d out of range", i)
	}
	return i, nil
}

func (p *Page) column(ref Ref) (int, scalar.Vector, error) {
	if err := p.requireStarted(); err != nil {
		return -1, nil, err
	}
	i, err := p.columnIndex(ref)
	if err != nil {
		return -1, nil, err
	}
	if p.columns[i] == nil {
		return -1, nil, errors.Newf(errors.ErrorTypeState, "column %q was taken from the page", p.layout.Columns[i].Name)
	}
	return i, p.columns[i], nil
}
