package codec

import (
	"io"
	"strconv"
	"strings"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/namelist"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	stringpool "github.com/ajitpratap0/sdds/pkg/strings"
	"github.com/ajitpratap0/sdds/pkg/table"
)

const (
	// RowCountWidth is the width of the ASCII row count field; the count is
	// right justified so it can be rewritten in place.
	RowCountWidth      = 20
	arrayValuesPerLine = 10
)

type asciiCodec struct {
	layout *layout.Layout
}

func (c *asciiCodec) WriteRowCount(rows int64, width int) ([]byte, error) {
	text := strconv.FormatInt(rows, 10)
	if len(text) > width {
		return nil, errors.Newf(errors.ErrorTypeBounds, "row count %d does not fit the existing %d-byte field", rows, width)
	}
	return []byte(strings.Repeat(" ", width-len(text)) + text), nil
}

func (c *asciiCodec) WritePage(w *Writer, p *table.Page) (PageInfo, error) {
	info := PageInfo{Start: w.Offset(), RowCountOffset: -1}
	l := c.layout
	rows := p.SelectedRows()
	info.Rows = int64(len(rows))

	b := stringpool.GetBuilder(stringpool.Large)
	defer stringpool.PutBuilder(b, stringpool.Large)

	b.WriteString("! page number ")
	b.WriteString(strconv.Itoa(p.PageNumber()))
	_ = b.WriteByte('\n')

	for i, def := range l.Parameters {
		if def.HasFixedValue {
			continue
		}
		v, err := p.Parameter(table.ByIndex(i))
		if err != nil {
			return info, err
		}
		text, err := formatToken(v, def.FormatString, 0)
		if err != nil {
			return info, errors.Wrapf(err, errors.ErrorTypeType, "parameter %q", def.Name)
		}
		b.WriteString(text)
		_ = b.WriteByte('\n')
	}

	for i, def := range l.Arrays {
		a, err := p.Array(table.ByIndex(i))
		if err != nil {
			return info, err
		}
		for d, n := range a.Dims {
			if d > 0 {
				_ = b.WriteByte(' ')
			}
			b.WriteString(strconv.Itoa(n))
		}
		_ = b.WriteByte('\n')
		for k := 0; k < a.Elements(); k++ {
			text, err := formatToken(a.Data.Value(k), def.FormatString, def.FieldLength)
			if err != nil {
				return info, errors.Wrapf(err, errors.ErrorTypeType, "array %q", def.Name)
			}
			b.WriteString(text)
			if (k+1)%arrayValuesPerLine == 0 || k == a.Elements()-1 {
				_ = b.WriteByte('\n')
			} else {
				_ = b.WriteByte(' ')
			}
		}
	}

	if !l.Data.NoRowCounts {
		info.RowCountOffset = w.Offset() + int64(b.Len())
		info.RowCountWidth = RowCountWidth
		count, _ := c.WriteRowCount(info.Rows, RowCountWidth)
		b.WriteBytes(count)
		_ = b.WriteByte('\n')
	}

	if err := c.formatRows(b, p, rows); err != nil {
		return info, err
	}
	if l.Data.NoRowCounts {
		_ = b.WriteByte('\n')
	}

	if _, err := w.Write(b.Bytes()); err != nil {
		return info, errors.Wrap(err, errors.ErrorTypeTransport, "failed to write page")
	}
	info.End = w.Offset()
	return info, nil
}

func (c *asciiCodec) WriteRows(w *Writer, p *table.Page, rows []int) error {
	if c.layout.Data.NoRowCounts {
		return errors.New(errors.ErrorTypeState, "rows cannot be added to a page without a row count")
	}
	b := stringpool.GetBuilder(stringpool.Large)
	defer stringpool.PutBuilder(b, stringpool.Large)
	if err := c.formatRows(b, p, rows); err != nil {
		return err
	}
	if _, err := w.Write(b.Bytes()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to write rows")
	}
	return nil
}

// formatRows renders rows spread over lines_per_row lines each
func (c *asciiCodec) formatRows(b *stringpool.Builder, p *table.Page, rows []int) error {
	l := c.layout
	columns, err := pageColumns(p)
	if err != nil {
		return err
	}
	perLine := (len(columns) + l.Data.LinesPerRow - 1) / max(l.Data.LinesPerRow, 1)
	for _, row := range rows {
		for j, col := range columns {
			def := l.Columns[j]
			text, err := formatToken(col.Value(row), def.FormatString, def.FieldLength)
			if err != nil {
				return errors.Wrapf(err, errors.ErrorTypeType, "column %q", def.Name)
			}
			b.WriteString(text)
			if j == len(columns)-1 || (perLine > 0 && (j+1)%perLine == 0) {
				_ = b.WriteByte('\n')
			} else {
				_ = b.WriteByte(' ')
			}
		}
	}
	return nil
}

// formatToken renders one value as a whitespace-safe token
func formatToken(v any, format string, width int) (string, error) {
	var text string
	var err error
	switch x := v.(type) {
	case string:
		text = stringpool.Quote(x)
	case byte:
		text = stringpool.Quote(string([]byte{x}))
	default:
		if format != "" {
			text, err = scalar.Format(v, format)
		} else {
			text, err = scalar.FormatExact(v)
		}
	}
	if err != nil {
		return "", err
	}
	if width > len(text) {
		text += strings.Repeat(" ", width-len(text))
	}
	return text, nil
}

// lineSource hands out data lines and tokens, skipping comment lines
type lineSource struct {
	r       *Reader
	pending *string
	tokens  []string
	pos     int
}

// line returns the next line that is not a comment together with its start
// offset. Blank lines are returned when keepBlank is set.
func (s *lineSource) line(keepBlank bool) (string, int64, error) {
	for {
		start := s.r.Offset()
		var text string
		if s.pending != nil {
			text = *s.pending
			s.pending = nil
		} else {
			var err error
			if text, err = s.r.ReadLine(); err != nil {
				return "", start, err
			}
		}
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "!") {
			continue
		}
		if trimmed == "" && !keepBlank {
			continue
		}
		return text, start, nil
	}
}

// token returns the next token, reading further lines as needed
func (s *lineSource) token() (string, error) {
	for s.pos >= len(s.tokens) {
		text, _, err := s.line(false)
		if err != nil {
			return "", err
		}
		s.tokens, _ = namelist.Fields(text)
		s.pos = 0
	}
	tok := s.tokens[s.pos]
	s.pos++
	return tok, nil
}

// newLine drops the rest of the current line
func (s *lineSource) newLine() {
	s.tokens = nil
	s.pos = 0
}

// pageHead holds the parameters and arrays of a page decoded before the row
// count, and so the page capacity, is known.
type pageHead struct {
	parameters map[int]any
	arrays     map[int]*table.ArrayValue
}

func (c *asciiCodec) ReadPage(r *Reader, p *table.Page, opts ReadOptions) (PageInfo, error) {
	info := PageInfo{Start: r.Offset(), RowCountOffset: -1, Rows: -1}
	l := c.layout
	src := &lineSource{r: r}

	first, _, err := src.line(false)
	if err != nil {
		if err == io.EOF {
			return info, io.EOF
		}
		return info, truncated(err, "page start")
	}
	src.pending = &first

	head := &pageHead{parameters: map[int]any{}, arrays: map[int]*table.ArrayValue{}}
	if err := c.readParameters(src, head); err != nil {
		return info, err
	}
	if err := c.readArrays(src, head); err != nil {
		return info, err
	}

	if !l.Data.NoRowCounts {
		text, start, err := src.line(false)
		if err != nil {
			if isTruncation(err) && opts.AutoRecover {
				return info, io.EOF
			}
			return info, truncated(err, "row count")
		}
		tokens, _ := namelist.Fields(text)
		count, perr := strconv.ParseInt(tokens[0], 10, 64)
		if perr != nil {
			return info, errors.Newf(errors.ErrorTypeProtocol, "invalid row count %q", tokens[0])
		}
		if err := checkRowCount(count); err != nil {
			return info, err
		}
		info.RowCountOffset = start
		// the field ends with the count; anything after it is left alone
		info.RowCountWidth = strings.Index(text, tokens[0]) + len(tokens[0])
		info.Rows = count
		if opts.RowLimit > 0 && count > opts.RowLimit {
			return info, ErrRowLimit
		}
	}

	keep := newKeeper(opts)
	if err := p.StartPage(initialCapacity(info.Rows, keep)); err != nil {
		return info, err
	}
	for i, v := range head.parameters {
		if err := p.SetParameter(table.ByIndex(i), v); err != nil {
			return info, err
		}
	}
	for i, a := range head.arrays {
		if err := p.SetArray(table.ByIndex(i), a.Dims, a.Data); err != nil {
			return info, err
		}
	}

	stored := 0
	var rerr error
	if info.Rows >= 0 {
		stored, rerr = c.readCountedRows(src, p, info.Rows, keep)
	} else {
		stored, rerr = c.readDelimitedRows(src, p, keep)
	}
	if rerr != nil {
		return salvage(r, p, info, opts, stored, rerr)
	}
	if err := finishPage(p, stored, opts); err != nil {
		return info, err
	}
	if info.Rows < 0 {
		info.Rows = int64(stored)
	}
	info.End = r.Offset()
	return info, nil
}

func (c *asciiCodec) readParameters(src *lineSource, head *pageHead) error {
	for i, def := range c.layout.Parameters {
		if def.HasFixedValue {
			continue
		}
		text, _, err := src.line(false)
		if err != nil {
			return truncated(err, "parameter "+def.Name)
		}
		tokens, _ := namelist.Fields(text)
		var v any
		switch {
		case def.Type == scalar.TypeString && len(tokens) != 1:
			v = strings.TrimSpace(text)
		case def.Type == scalar.TypeString:
			v = tokens[0]
		default:
			if v, err = scalar.Parse(tokens[0], def.Type); err != nil {
				return errors.Wrapf(err, errors.ErrorTypeProtocol, "parameter %q", def.Name)
			}
			if v, err = convertValue(v, def.Type, def.Conversion()); err != nil {
				return err
			}
		}
		head.parameters[i] = v
	}
	return nil
}

func (c *asciiCodec) readArrays(src *lineSource, head *pageHead) error {
	for i, def := range c.layout.Arrays {
		text, _, err := src.line(false)
		if err != nil {
			return truncated(err, "dimensions of array "+def.Name)
		}
		tokens, _ := namelist.Fields(text)
		if len(tokens) < def.Dimensions {
			return errors.Newf(errors.ErrorTypeProtocol, "array %q needs %d extents, line has %q", def.Name, def.Dimensions, text)
		}
		dims := make([]int, def.Dimensions)
		for d := range dims {
			n, err := strconv.Atoi(tokens[d])
			if err != nil || n < 0 {
				return errors.Newf(errors.ErrorTypeProtocol, "invalid extent %q for array %q", tokens[d], def.Name)
			}
			dims[d] = n
		}
		n := table.Elements(dims)
		data, err := scalar.NewVector(def.Type, n)
		if err != nil {
			return err
		}
		src.newLine()
		for k := 0; k < n; k++ {
			tok, err := src.token()
			if err != nil {
				return truncated(err, "array "+def.Name)
			}
			v, err := scalar.Parse(tok, def.Type)
			if err != nil {
				return errors.Wrapf(err, errors.ErrorTypeProtocol, "array %q element %d", def.Name, k)
			}
			if err := data.Set(k, v); err != nil {
				return err
			}
		}
		src.newLine()
		if err := convert(data, def.Conversion()); err != nil {
			return err
		}
		head.arrays[i] = &table.ArrayValue{Definition: def, Dims: dims, Data: data}
	}
	return nil
}

// readCountedRows reads rows tokens at a time, so a row may span any number
// of lines.
func (c *asciiCodec) readCountedRows(src *lineSource, p *table.Page, rows int64, keep keeper) (int, error) {
	columns, err := pageColumns(p)
	if err != nil {
		return 0, err
	}
	src.newLine()
	values := make([]any, len(columns))
	stored := 0
	for row := int64(0); row < rows; row++ {
		for j, def := range c.layout.Columns {
			tok, err := src.token()
			if err != nil {
				return stored, err
			}
			if values[j], err = scalar.Parse(tok, def.Type); err != nil {
				return stored, errors.Wrapf(err, errors.ErrorTypeProtocol, "column %q row %d", def.Name, row)
			}
		}
		if !keep.keep(row) {
			continue
		}
		if err := ensureRow(p, stored); err != nil {
			return stored, err
		}
		for j, v := range values {
			if err := columns[j].Set(stored, v); err != nil {
				return stored, err
			}
		}
		stored++
	}
	src.newLine()
	return stored, nil
}

// readDelimitedRows reads rows until a blank line or the end of the stream.
// Each row starts on a new line and spans at most lines_per_row lines.
func (c *asciiCodec) readDelimitedRows(src *lineSource, p *table.Page, keep keeper) (int, error) {
	columns, err := pageColumns(p)
	if err != nil {
		return 0, err
	}
	stored := 0
	for row := int64(0); ; row++ {
		text, _, err := src.line(true)
		if err == io.EOF || (err == nil && strings.TrimSpace(text) == "") {
			return stored, nil
		}
		if err != nil {
			return stored, err
		}
		tokens, _ := namelist.Fields(text)
		for extra := 1; len(tokens) < len(columns) && extra < c.layout.Data.LinesPerRow; extra++ {
			more, _, err := src.line(false)
			if err != nil {
				return stored, err
			}
			next, _ := namelist.Fields(more)
			tokens = append(tokens, next...)
		}
		if len(tokens) < len(columns) {
			return stored, errors.Newf(errors.ErrorTypeProtocol, "row %d has %d values for %d columns", row, len(tokens), len(columns))
		}
		if !keep.keep(row) {
			continue
		}
		if err := ensureRow(p, stored); err != nil {
			return stored, err
		}
		for j, def := range c.layout.Columns {
			v, err := scalar.Parse(tokens[j], def.Type)
			if err != nil {
				return stored, errors.Wrapf(err, errors.ErrorTypeProtocol, "column %q row %d", def.Name, row)
			}
			if err := columns[j].Set(stored, v); err != nil {
				return stored, err
			}
		}
		stored++
	}
}

func pageColumns(p *table.Page) ([]scalar.Vector, error) {
	columns := make([]scalar.Vector, len(p.Layout().Columns))
	for j := range columns {
		col, err := p.InternalColumn(table.ByIndex(j))
		if err != nil {
			return nil, err
		}
		columns[j] = col
	}
	return columns, nil
}
