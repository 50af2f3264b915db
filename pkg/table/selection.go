package table

import (
	"strings"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/scalar"
)

// Logic is a bitmask describing how a new match is combined with the flag a
// row or column already carries.
type Logic uint32

const (
	And              Logic = 0x0001
	Or               Logic = 0x0002
	NegateMatch      Logic = 0x0004
	NegatePrevious   Logic = 0x0008
	NegateExpression Logic = 0x0010
	IndirectMatch    Logic = 0x0020
	OnePrevious      Logic = 0x0040
	ZeroPrevious     Logic = 0x0080
	NoCaseCompare    Logic = 0x0100
)

// Has reports whether every bit of flag is set
func (l Logic) Has(flag Logic) bool { return l&flag == flag }

// Combine merges a previous flag with a new match. The steps run in a fixed
// order that existing processing pipelines rely on:
//
//  1. ZeroPrevious or OnePrevious force the previous value (zero wins)
//  2. NegatePrevious inverts it
//  3. NegateMatch inverts the match
//  4. And or Or combine the two (And wins); otherwise the match replaces it
//  5. NegateExpression inverts the result
func Combine(previous, match bool, logic Logic) bool {
	if logic.Has(ZeroPrevious) {
		previous = false
	} else if logic.Has(OnePrevious) {
		previous = true
	}
	if logic.Has(NegatePrevious) {
		previous = !previous
	}
	if logic.Has(NegateMatch) {
		match = !match
	}
	if logic.Has(And) {
		match = match && previous
	} else if logic.Has(Or) {
		match = match || previous
	}
	if logic.Has(NegateExpression) {
		match = !match
	}
	return match
}

// SetColumnFlags marks every column as of interest (true) or none (false).
// Selecting all restores the definition order.
func (p *Page) SetColumnFlags(flag bool) {
	n := 0
	if p.layout != nil {
		n = len(p.layout.Columns)
	}
	if len(p.columnFlag) != n {
		p.columnFlag = make([]bool, n)
	}
	for i := range p.columnFlag {
		p.columnFlag[i] = flag
	}
	p.columnOrder = p.columnOrder[:0]
	if flag {
		for i := 0; i < n; i++ {
			p.columnOrder = append(p.columnOrder, i)
		}
	}
	p.columnsOfInterest = len(p.columnOrder)
}

// AssertColumnFlags replaces the column flags with flags, which must have one
// entry per column. The order becomes ascending definition order.
func (p *Page) AssertColumnFlags(flags []bool) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	if len(flags) != len(p.columnFlag) {
		return errors.Newf(errors.ErrorTypeBounds, "%d column flags given for %d columns", len(flags), len(p.columnFlag))
	}
	copy(p.columnFlag, flags)
	p.recomputeColumnOrder()
	return nil
}

func (p *Page) recomputeColumnOrder() {
	p.columnOrder = p.columnOrder[:0]
	for i, f := range p.columnFlag {
		if f {
			p.columnOrder = append(p.columnOrder, i)
		}
	}
	p.columnsOfInterest = len(p.columnOrder)
}

// SelectColumnsByName adds the named columns to the columns of interest. The
// order is recomputed as ascending definition order.
func (p *Page) SelectColumnsByName(names ...string) (int, error) {
	if err := p.requireStarted(); err != nil {
		return 0, err
	}
	indices := make([]int, 0, len(names))
	for _, name := range names {
		i := p.layout.ColumnIndex(name)
		if i < 0 {
			return p.columnsOfInterest, errors.Newf(errors.ErrorTypeName, "unknown column %q", name)
		}
		indices = append(indices, i)
	}
	for _, i := range indices {
		p.columnFlag[i] = true
	}
	p.recomputeColumnOrder()
	return p.columnsOfInterest, nil
}

// SelectColumnsByPattern combines a wildcard match of every column name with
// its current flag. Columns that stay selected keep their position, newly
// selected columns are appended in definition order.
func (p *Page) SelectColumnsByPattern(pattern string, logic Logic) (int, error) {
	if err := p.requireStarted(); err != nil {
		return 0, err
	}
	matches := matcher(pattern, logic.Has(NoCaseCompare))
	var added []int
	for i, def := range p.layout.Columns {
		flag := Combine(p.columnFlag[i], matches(def.Name), logic)
		if flag && !p.columnFlag[i] {
			added = append(added, i)
		}
		p.columnFlag[i] = flag
	}
	kept := p.columnOrder[:0]
	for _, i := range p.columnOrder {
		if p.columnFlag[i] {
			kept = append(kept, i)
		}
	}
	p.columnOrder = append(kept, added...)
	p.columnsOfInterest = len(p.columnOrder)
	return p.columnsOfInterest, nil
}

// ExcludeColumnsByPattern drops every column matching any of the patterns
func (p *Page) ExcludeColumnsByPattern(patterns ...string) (int, error) {
	for _, pattern := range patterns {
		if _, err := p.SelectColumnsByPattern(pattern, NegateMatch|And); err != nil {
			return 0, err
		}
	}
	return p.columnsOfInterest, nil
}

// ColumnOrder returns the indices of the columns of interest in iteration order
func (p *Page) ColumnOrder() []int {
	return append([]int(nil), p.columnOrder...)
}

// ColumnFlag reports whether column i is of interest
func (p *Page) ColumnFlag(i int) bool {
	return i >= 0 && i < len(p.columnFlag) && p.columnFlag[i]
}

// CountColumnsOfInterest returns the number of flagged columns
func (p *Page) CountColumnsOfInterest() int { return p.columnsOfInterest }

// SelectedColumnNames returns the names of the columns of interest in order
func (p *Page) SelectedColumnNames() []string {
	out := make([]string, len(p.columnOrder))
	for j, i := range p.columnOrder {
		out[j] = p.layout.Columns[i].Name
	}
	return out
}

// SetRowFlags flags or unflags every allocated row
func (p *Page) SetRowFlags(flag bool) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	for i := range p.rowFlag {
		p.rowFlag[i] = flag
	}
	return nil
}

// AssertRowFlags copies flags over the first len(flags) row flags
func (p *Page) AssertRowFlags(flags []bool) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	if len(flags) > p.rowsAllocated {
		return errors.Newf(errors.ErrorTypeBounds, "%d row flags given for %d rows", len(flags), p.rowsAllocated)
	}
	copy(p.rowFlag, flags)
	return nil
}

// AssertRowRange sets the flag of rows first..last inclusive
func (p *Page) AssertRowRange(first, last int, flag bool) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	if first < 0 || last < first || last >= p.rowsAllocated {
		return errors.Newf(errors.ErrorTypeBounds, "row range [%d,%d] outside [0,%d)", first, last, p.rowsAllocated)
	}
	for i := first; i <= last; i++ {
		p.rowFlag[i] = flag
	}
	return nil
}

// RowFlag reports whether row i is of interest
func (p *Page) RowFlag(i int) bool {
	return i >= 0 && i < len(p.rowFlag) && p.rowFlag[i]
}

// CountRowsOfInterest counts the flagged rows among the rows in use
func (p *Page) CountRowsOfInterest() int {
	n := 0
	for i := 0; i < p.rowsInUse; i++ {
		if p.rowFlag[i] {
			n++
		}
	}
	return n
}

// SelectedRows returns the absolute indices of the rows of interest
func (p *Page) SelectedRows() []int {
	out := make([]int, 0, p.rowsInUse)
	for i := 0; i < p.rowsInUse; i++ {
		if p.rowFlag[i] {
			out = append(out, i)
		}
	}
	return out
}

// SelectRowsByLabel combines, for every row, whether the value of a string or
// character column equals any of labels. With IndirectMatch each label names
// another column whose value in the same row is the comparison target.
func (p *Page) SelectRowsByLabel(column string, labels []string, logic Logic) (int, error) {
	return p.selectRows(column, labels, logic, func(value, label string, noCase bool) bool {
		if noCase {
			return strings.EqualFold(value, label)
		}
		return value == label
	})
}

// SelectRowsByPattern is SelectRowsByLabel with wildcard matching
func (p *Page) SelectRowsByPattern(column, pattern string, logic Logic) (int, error) {
	return p.selectRows(column, []string{pattern}, logic, func(value, pattern string, noCase bool) bool {
		return Match(pattern, value, noCase)
	})
}

func (p *Page) selectRows(column string, targets []string, logic Logic, matches func(value, target string, noCase bool) bool) (int, error) {
	_, col, err := p.column(ByName(column))
	if err != nil {
		return 0, err
	}
	if col.Type() != scalar.TypeString && col.Type() != scalar.TypeCharacter {
		return 0, errors.Newf(errors.ErrorTypeType, "column %q is %s, not string or character", column, col.Type())
	}
	var indirect []scalar.Vector
	if logic.Has(IndirectMatch) {
		for _, name := range targets {
			_, other, err := p.column(ByName(name))
			if err != nil {
				return 0, err
			}
			if other.Type() != scalar.TypeString && other.Type() != scalar.TypeCharacter {
				return 0, errors.Newf(errors.ErrorTypeType, "indirect column %q is %s, not string or character", name, other.Type())
			}
			indirect = append(indirect, other)
		}
	}
	noCase := logic.Has(NoCaseCompare)
	for row := 0; row < p.rowsInUse; row++ {
		value := col.Text(row)
		match := false
		for k, target := range targets {
			if indirect != nil {
				target = indirect[k].Text(row)
			}
			if matches(value, target, noCase) {
				match = true
				break
			}
		}
		p.rowFlag[row] = Combine(p.rowFlag[row], match, logic)
	}
	return p.CountRowsOfInterest(), nil
}

// FilterRowsByNumericWindow combines, for every row, whether the numeric
// value of column lies in [lo, hi]. NaN and infinite values never do.
func (p *Page) FilterRowsByNumericWindow(column string, lo, hi float64, logic Logic) (int, error) {
	_, col, err := p.column(ByName(column))
	if err != nil {
		return 0, err
	}
	if col.Type() == scalar.TypeString {
		return 0, errors.Newf(errors.ErrorTypeType, "column %q is not numeric", column)
	}
	for row := 0; row < p.rowsInUse; row++ {
		v, err := col.Float64(row)
		if err != nil {
			return 0, err
		}
		p.rowFlag[row] = Combine(p.rowFlag[row], scalar.InWindow(v, lo, hi), logic)
	}
	return p.CountRowsOfInterest(), nil
}

// FilterRowsByNumericScan keeps flagged only the rows whose string value is a
// valid number, or with invert only those whose value is not.
func (p *Page) FilterRowsByNumericScan(column string, invert bool) (int, error) {
	_, col, err := p.column(ByName(column))
	if err != nil {
		return 0, err
	}
	if col.Type() != scalar.TypeString {
		return 0, errors.Newf(errors.ErrorTypeType, "column %q is %s, not string", column, col.Type())
	}
	for row := 0; row < p.rowsInUse; row++ {
		if !p.rowFlag[row] {
			continue
		}
		if scalar.IsNumberToken(col.Text(row)) == invert {
			p.rowFlag[row] = false
		}
	}
	return p.CountRowsOfInterest(), nil
}

// DeleteUnsetRows compacts the table so that only the rows of interest remain,
// in their original order. Row indices obtained earlier become invalid.
func (p *Page) DeleteUnsetRows() (int, error) {
	if err := p.requireStarted(); err != nil {
		return 0, err
	}
	kept := 0
	for row := 0; row < p.rowsInUse; row++ {
		if !p.rowFlag[row] {
			continue
		}
		if row != kept {
			for _, col := range p.columns {
				if col != nil {
					col.Move(kept, row)
				}
			}
		}
		kept++
	}
	for row := kept; row < p.rowsInUse; row++ {
		for _, col := range p.columns {
			if col != nil {
				col.ZeroAt(row)
			}
		}
	}
	for i := range p.rowFlag {
		p.rowFlag[i] = true
	}
	p.rowsInUse = kept
	return kept, nil
}
