package table

import (
	"reflect"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/scalar"
)

func (p *Page) checkRow(row int) error {
	if row < 0 || row >= p.rowsAllocated {
		return errors.Newf(errors.ErrorTypeBounds, "row %d outside [0,%d)", row, p.rowsAllocated)
	}
	return nil
}

// SetValue stores v in one cell, casting it to the column type. Rows beyond
// the rows in use extend it.
func (p *Page) SetValue(row int, ref Ref, v any) error {
	i, col, err := p.column(ref)
	if err != nil {
		return err
	}
	if err := p.checkRow(row); err != nil {
		return err
	}
	if err := col.Set(row, v); err != nil {
		return errors.Annotatef(err, errors.ErrorTypeType, "column %q row %d", p.layout.Columns[i].Name, row)
	}
	p.rowsInUse = max(p.rowsInUse, row+1)
	return nil
}

// SetRow stores one value per column, in definition order
func (p *Page) SetRow(row int, values ...any) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	if len(values) != len(p.layout.Columns) {
		return errors.Newf(errors.ErrorTypeBounds, "%d values given for %d columns", len(values), len(p.layout.Columns))
	}
	for i, v := range values {
		if err := p.SetValue(row, ByIndex(i), v); err != nil {
			return err
		}
	}
	return nil
}

// SetRowValues stores values keyed by column name
func (p *Page) SetRowValues(row int, values map[string]any) error {
	for name, v := range values {
		if err := p.SetValue(row, ByName(name), v); err != nil {
			return err
		}
	}
	return nil
}

// SetColumn copies the first rows elements of data, a slice or a
// scalar.Vector, into a column. Numeric sources are cast to the column type;
// string data only goes to string columns and vice versa. All columns set
// this way within a page must agree on the row count.
func (p *Page) SetColumn(ref Ref, data any, rows int) error {
	i, col, err := p.column(ref)
	if err != nil {
		return err
	}
	name := p.layout.Columns[i].Name
	if rows < 0 {
		return errors.Newf(errors.ErrorTypeBounds, "negative row count for column %q", name)
	}
	if rows > p.rowsAllocated {
		return errors.Newf(errors.ErrorTypeBounds, "%d rows for column %q exceed the %d allocated", rows, name, p.rowsAllocated)
	}
	if p.rowsInUse != 0 && rows != p.rowsInUse {
		return errors.Newf(errors.ErrorTypeBounds, "column %q has %d rows, page has %d", name, rows, p.rowsInUse)
	}
	if isStringData(data) != (col.Type() == scalar.TypeString) {
		return errors.Newf(errors.ErrorTypeType, "cannot set %s column %q from %T without formatting", col.Type(), name, data)
	}
	if err := col.CopyFrom(data, rows); err != nil {
		return errors.Annotatef(err, errors.ErrorTypeType, "column %q", name)
	}
	p.rowsInUse = rows
	return nil
}

// SetColumnFromFloats is SetColumn for float64 data. String columns receive
// the default text form of each value.
func (p *Page) SetColumnFromFloats(ref Ref, data []float64, rows int) error {
	i, col, err := p.column(ref)
	if err != nil {
		return err
	}
	if col.Type() != scalar.TypeString {
		return p.SetColumn(ref, data, rows)
	}
	if rows > len(data) {
		return errors.Newf(errors.ErrorTypeBounds, "source holds %d elements, %d requested", len(data), rows)
	}
	text := make([]string, rows)
	for j := range text {
		s, err := scalar.Format(data[j], "")
		if err != nil {
			return errors.Annotatef(err, errors.ErrorTypeType, "column %q", p.layout.Columns[i].Name)
		}
		text[j] = s
	}
	return p.SetColumn(ref, text, rows)
}

func isStringData(data any) bool {
	switch x := data.(type) {
	case []string:
		return true
	case scalar.Vector:
		return x.Type() == scalar.TypeString
	}
	rv := reflect.ValueOf(data)
	return (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() == reflect.String
}

// SetParameter stores the value of a parameter, cast to its type
func (p *Page) SetParameter(ref Ref, v any) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	i, err := p.parameterIndex(ref)
	if err != nil {
		return err
	}
	def := p.layout.Parameters[i]
	cast, err := scalar.Cast(v, def.Type)
	if err != nil {
		return errors.Annotatef(err, errors.ErrorTypeType, "parameter %q", def.Name)
	}
	p.parameters[i] = cast
	return nil
}

// SetParameters stores parameter values keyed by name
func (p *Page) SetParameters(values map[string]any) error {
	for name, v := range values {
		if err := p.SetParameter(ByName(name), v); err != nil {
			return err
		}
	}
	return nil
}

// Parameter returns the value of a parameter. Unset fixed-value parameters
// are materialized from their declared constant, other unset parameters read
// as the zero value of their type.
func (p *Page) Parameter(ref Ref) (any, error) {
	if err := p.requireStarted(); err != nil {
		return nil, err
	}
	i, err := p.parameterIndex(ref)
	if err != nil {
		return nil, err
	}
	if p.parameters[i] == nil {
		def := p.layout.Parameters[i]
		if def.HasFixedValue {
			v, err := p.layout.FixedValueOf(i)
			if err != nil {
				return nil, err
			}
			p.parameters[i] = v
		} else {
			return scalar.Zero(def.Type), nil
		}
	}
	return p.parameters[i], nil
}

// ParameterFloat64 returns a numeric parameter as float64
func (p *Page) ParameterFloat64(ref Ref) (float64, error) {
	v, err := p.Parameter(ref)
	if err != nil {
		return 0, err
	}
	return scalar.ToFloat64(v)
}

// ParameterString returns a parameter formatted with its format string, or
// the type default when it has none.
func (p *Page) ParameterString(ref Ref) (string, error) {
	v, err := p.Parameter(ref)
	if err != nil {
		return "", err
	}
	i, _ := p.parameterIndex(ref)
	return scalar.Format(v, p.layout.Parameters[i].FormatString)
}

// SetArray replaces the content of an array. dims must have one extent per
// declared dimension; data is either a flat slice of at least the product of
// dims elements or slices nested as deep as there are dimensions.
func (p *Page) SetArray(ref Ref, dims []int, data any) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	i, err := p.arrayIndex(ref)
	if err != nil {
		return err
	}
	def := p.layout.Arrays[i]
	if len(dims) != def.Dimensions {
		return errors.Newf(errors.ErrorTypeBounds, "array %q has %d dimensions, %d given", def.Name, def.Dimensions, len(dims))
	}
	for d, n := range dims {
		if n < 0 {
			return errors.Newf(errors.ErrorTypeBounds, "negative extent %d for dimension %d of array %q", n, d, def.Name)
		}
	}
	n := Elements(dims)
	buf, err := scalar.NewVector(def.Type, n)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeAllocation, "array %q", def.Name)
	}
	if n > 0 {
		if v, ok := data.(scalar.Vector); ok {
			err = buf.CopyFrom(v, n)
		} else {
			var flat []any
			flat, err = flatten(data, dims)
			if err == nil {
				err = buf.CopyFrom(flat, n)
			}
		}
		if err != nil {
			return errors.Annotatef(err, errors.ErrorTypeType, "array %q", def.Name)
		}
	}
	p.arrays[i] = &ArrayValue{Definition: def, Dims: append([]int(nil), dims...), Data: buf}
	return nil
}

// AppendToArray appends the first elements values of data, a flat slice, to
// an array. For one-dimensional arrays dims may be omitted and the extent
// grows by elements; otherwise dims gives the new extents, whose product must
// match the new element count.
func (p *Page) AppendToArray(ref Ref, data any, elements int, dims ...int) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	i, err := p.arrayIndex(ref)
	if err != nil {
		return err
	}
	current := p.arrays[i]
	def := current.Definition
	if elements < 0 {
		return errors.Newf(errors.ErrorTypeBounds, "negative element count for array %q", def.Name)
	}
	total := current.Elements() + elements
	if len(dims) == 0 {
		if def.Dimensions != 1 {
			return errors.Newf(errors.ErrorTypeBounds, "array %q has %d dimensions; extents required", def.Name, def.Dimensions)
		}
		dims = []int{total}
	}
	if len(dims) != def.Dimensions {
		return errors.Newf(errors.ErrorTypeBounds, "array %q has %d dimensions, %d given", def.Name, def.Dimensions, len(dims))
	}
	if Elements(dims) != total {
		return errors.Newf(errors.ErrorTypeBounds, "extents %v of array %q do not hold %d elements", dims, def.Name, total)
	}
	src, err := scalar.VectorFrom(def.Type, data)
	if err != nil {
		return errors.Annotatef(err, errors.ErrorTypeType, "array %q", def.Name)
	}
	if src.Len() < elements {
		return errors.Newf(errors.ErrorTypeBounds, "source holds %d elements, %d requested", src.Len(), elements)
	}
	buf := current.Data
	if buf == nil {
		if buf, err = scalar.NewVector(def.Type, 0); err != nil {
			return err
		}
	}
	start := buf.Len()
	if err := buf.Resize(total); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeAllocation, "array %q", def.Name)
	}
	for k := 0; k < elements; k++ {
		if err := buf.Set(start+k, src.Value(k)); err != nil {
			return err
		}
	}
	p.arrays[i] = &ArrayValue{Definition: def, Dims: append([]int(nil), dims...), Data: buf}
	return nil
}

// Array returns the current content of an array
func (p *Page) Array(ref Ref) (*ArrayValue, error) {
	if err := p.requireStarted(); err != nil {
		return nil, err
	}
	i, err := p.arrayIndex(ref)
	if err != nil {
		return nil, err
	}
	return p.arrays[i], nil
}

// selectedRow maps the index of a row among the rows of interest to its
// absolute index.
func (p *Page) selectedRow(srow int) (int, error) {
	if srow >= 0 {
		seen := 0
		for row := 0; row < p.rowsInUse; row++ {
			if !p.rowFlag[row] {
				continue
			}
			if seen == srow {
				return row, nil
			}
			seen++
		}
	}
	return -1, errors.Newf(errors.ErrorTypeBounds, "no row of interest with index %d", srow)
}

// Value returns a cell of the srow-th row of interest
func (p *Page) Value(ref Ref, srow int) (any, error) {
	_, col, err := p.column(ref)
	if err != nil {
		return nil, err
	}
	row, err := p.selectedRow(srow)
	if err != nil {
		return nil, err
	}
	return col.Value(row), nil
}

// ValueAt returns a cell by absolute row index, ignoring the selection
func (p *Page) ValueAt(ref Ref, row int) (any, error) {
	_, col, err := p.column(ref)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= p.rowsInUse {
		return nil, errors.Newf(errors.ErrorTypeBounds, "row %d outside [0,%d)", row, p.rowsInUse)
	}
	return col.Value(row), nil
}

// Column returns a copy of the rows of interest of a column
func (p *Page) Column(ref Ref) (scalar.Vector, error) {
	_, col, err := p.column(ref)
	if err != nil {
		return nil, err
	}
	return col.Gather(p.SelectedRows()), nil
}

// ColumnFloat64 returns the rows of interest of a numeric column as float64
func (p *Page) ColumnFloat64(ref Ref) ([]float64, error) {
	i, col, err := p.column(ref)
	if err != nil {
		return nil, err
	}
	if col.Type() == scalar.TypeString {
		return nil, errors.Newf(errors.ErrorTypeType, "column %q is not numeric", p.layout.Columns[i].Name)
	}
	rows := p.SelectedRows()
	out := make([]float64, len(rows))
	for j, row := range rows {
		if out[j], err = col.Float64(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ColumnStrings returns the rows of interest of a column as text, using the
// column format string when one is declared.
func (p *Page) ColumnStrings(ref Ref) ([]string, error) {
	i, col, err := p.column(ref)
	if err != nil {
		return nil, err
	}
	format := p.layout.Columns[i].FormatString
	rows := p.SelectedRows()
	out := make([]string, len(rows))
	for j, row := range rows {
		if out[j], err = scalar.Format(col.Value(row), format); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Row returns the columns of interest of the srow-th row of interest, in
// column order.
func (p *Page) Row(srow int) ([]any, error) {
	if err := p.requireStarted(); err != nil {
		return nil, err
	}
	row, err := p.selectedRow(srow)
	if err != nil {
		return nil, err
	}
	return p.rowValues(row)
}

func (p *Page) rowValues(row int) ([]any, error) {
	out := make([]any, len(p.columnOrder))
	for j, i := range p.columnOrder {
		col := p.columns[i]
		if col == nil {
			return nil, errors.Newf(errors.ErrorTypeState, "column %q was taken from the page", p.layout.Columns[i].Name)
		}
		out[j] = col.Value(row)
	}
	return out, nil
}

// Matrix returns the columns of interest of every row of interest
func (p *Page) Matrix() ([][]any, error) {
	if err := p.requireStarted(); err != nil {
		return nil, err
	}
	rows := p.SelectedRows()
	out := make([][]any, len(rows))
	for j, row := range rows {
		values, err := p.rowValues(row)
		if err != nil {
			return nil, err
		}
		out[j] = values
	}
	return out, nil
}

// InternalColumn returns the page's own buffer for a column, covering every
// allocated row. Writes through it bypass casting and bounds checks.
func (p *Page) InternalColumn(ref Ref) (scalar.Vector, error) {
	_, col, err := p.column(ref)
	return col, err
}

// TakeColumn hands the buffer of a column over to the caller, truncated to
// the rows in use. The page treats the column as absent until the next
// StartPage or ClearPage.
func (p *Page) TakeColumn(ref Ref) (scalar.Vector, error) {
	i, col, err := p.column(ref)
	if err != nil {
		return nil, err
	}
	if err := col.Resize(p.rowsInUse); err != nil {
		return nil, err
	}
	p.columns[i] = nil
	return col, nil
}

// ColumnType returns the type of a column
func (p *Page) ColumnType(ref Ref) (scalar.Type, error) {
	i, err := p.columnIndex(ref)
	if err != nil {
		return scalar.TypeInvalid, err
	}
	return p.layout.Columns[i].Type, nil
}
