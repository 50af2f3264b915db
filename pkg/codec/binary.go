package codec

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	"github.com/ajitpratap0/sdds/pkg/table"
)

// maxStringLength bounds the length prefix accepted for a binary string
const maxStringLength = 1 << 30

type binaryCodec struct {
	layout  *layout.Layout
	order   binary.ByteOrder
	scratch [LongDoubleSize]byte
}

func (c *binaryCodec) WriteRowCount(rows int64, width int) ([]byte, error) {
	switch {
	case width == 4 && rows <= math.MaxInt32:
		buf := make([]byte, 4)
		c.order.PutUint32(buf, uint32(rows))
		return buf, nil
	case width == 12:
		buf := make([]byte, 12)
		c.order.PutUint32(buf, longRowCount)
		c.order.PutUint64(buf[4:], uint64(rows))
		return buf, nil
	}
	return nil, errors.Newf(errors.ErrorTypeBounds, "row count %d does not fit the existing %d-byte field", rows, width)
}

// longRowCount marks a row count too large for 32 bits; the count follows
// as 64 bits
const longRowCount uint32 = 1 << 31

func (c *binaryCodec) writeRowCount(w *Writer, rows int64) error {
	if rows <= math.MaxInt32 {
		return c.writeFixed(w, 4, uint64(uint32(rows)))
	}
	if err := c.writeFixed(w, 4, uint64(longRowCount)); err != nil {
		return err
	}
	return c.writeFixed(w, 8, uint64(rows))
}

func (c *binaryCodec) WritePage(w *Writer, p *table.Page) (PageInfo, error) {
	info := PageInfo{Start: w.Offset(), RowCountOffset: -1}
	rows := p.SelectedRows()
	info.Rows = int64(len(rows))
	l := c.layout

	if !l.Data.NoRowCounts {
		info.RowCountOffset = w.Offset()
		info.RowCountWidth = 4
		if info.Rows > math.MaxInt32 {
			info.RowCountWidth = 12
		}
		if err := c.writeRowCount(w, info.Rows); err != nil {
			return info, err
		}
	}

	for i, def := range l.Parameters {
		if def.HasFixedValue {
			continue
		}
		v, err := p.Parameter(table.ByIndex(i))
		if err != nil {
			return info, err
		}
		if err := c.writeValue(w, v); err != nil {
			return info, errors.Wrapf(err, errors.ErrorTypeTransport, "parameter %q", def.Name)
		}
	}

	for i, def := range l.Arrays {
		a, err := p.Array(table.ByIndex(i))
		if err != nil {
			return info, err
		}
		for _, d := range a.Dims {
			if err := c.writeFixed(w, 4, uint64(uint32(int32(d)))); err != nil {
				return info, err
			}
		}
		for k := 0; k < a.Elements(); k++ {
			if err := c.writeValue(w, a.Data.Value(k)); err != nil {
				return info, errors.Wrapf(err, errors.ErrorTypeTransport, "array %q", def.Name)
			}
		}
	}

	columns, err := pageColumns(p)
	if err != nil {
		return info, err
	}
	if l.Data.ColumnMajor {
		for j, col := range columns {
			for _, row := range rows {
				if err := c.writeValue(w, col.Value(row)); err != nil {
					return info, errors.Wrapf(err, errors.ErrorTypeTransport, "column %q", l.Columns[j].Name)
				}
			}
		}
	} else if err := c.writeRows(w, columns, rows); err != nil {
		return info, err
	}
	info.End = w.Offset()
	return info, nil
}

func (c *binaryCodec) WriteRows(w *Writer, p *table.Page, rows []int) error {
	if c.layout.Data.ColumnMajor {
		return errors.New(errors.ErrorTypeState, "rows cannot be added to a column-major page")
	}
	columns, err := pageColumns(p)
	if err != nil {
		return err
	}
	return c.writeRows(w, columns, rows)
}

func (c *binaryCodec) writeRows(w *Writer, columns []scalar.Vector, rows []int) error {
	for _, row := range rows {
		for j, col := range columns {
			if err := c.writeValue(w, col.Value(row)); err != nil {
				return errors.Wrapf(err, errors.ErrorTypeTransport, "column %q", c.layout.Columns[j].Name)
			}
		}
	}
	return nil
}

func (c *binaryCodec) writeFixed(w io.Writer, size int, v uint64) error {
	buf := c.scratch[:size]
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		c.order.PutUint16(buf, uint16(v))
	case 4:
		c.order.PutUint32(buf, uint32(v))
	case 8:
		c.order.PutUint64(buf, v)
	}
	_, err := w.Write(buf)
	return err
}

func (c *binaryCodec) writeValue(w io.Writer, v any) error {
	switch x := v.(type) {
	case scalar.LongDouble:
		PutLongDouble(c.scratch[:], float64(x), c.order)
		_, err := w.Write(c.scratch[:LongDoubleSize])
		return err
	case float64:
		return c.writeFixed(w, 8, math.Float64bits(x))
	case float32:
		return c.writeFixed(w, 4, uint64(math.Float32bits(x)))
	case int64:
		return c.writeFixed(w, 8, uint64(x))
	case uint64:
		return c.writeFixed(w, 8, x)
	case int32:
		return c.writeFixed(w, 4, uint64(uint32(x)))
	case uint32:
		return c.writeFixed(w, 4, uint64(x))
	case int16:
		return c.writeFixed(w, 2, uint64(uint16(x)))
	case uint16:
		return c.writeFixed(w, 2, uint64(x))
	case byte:
		return c.writeFixed(w, 1, uint64(x))
	case string:
		if err := c.writeFixed(w, 4, uint64(uint32(int32(len(x))))); err != nil {
			return err
		}
		_, err := io.WriteString(w, x)
		return err
	}
	return errors.Newf(errors.ErrorTypeType, "cannot encode %T", v)
}

func (c *binaryCodec) ReadPage(r *Reader, p *table.Page, opts ReadOptions) (PageInfo, error) {
	info := PageInfo{Start: r.Offset(), RowCountOffset: -1, Rows: -1}
	l := c.layout

	if l.Data.NoRowCounts {
		if _, err := r.Peek(1); err == io.EOF {
			return info, io.EOF
		}
	} else {
		info.RowCountOffset = r.Offset()
		info.RowCountWidth = 4
		n, err := io.ReadFull(r, c.scratch[:4])
		if err == io.EOF || (err == io.ErrUnexpectedEOF && opts.AutoRecover && n > 0) {
			return info, io.EOF
		}
		if err != nil {
			return info, truncated(err, "row count")
		}
		count := int64(int32(c.order.Uint32(c.scratch[:4])))
		if uint32(count) == longRowCount {
			if _, err := io.ReadFull(r, c.scratch[:8]); err != nil {
				return info, truncated(err, "64-bit row count")
			}
			count = int64(c.order.Uint64(c.scratch[:8]))
			info.RowCountWidth = 12
		}
		if err := checkRowCount(count); err != nil {
			return info, err
		}
		info.Rows = count
		if opts.RowLimit > 0 && count > opts.RowLimit {
			return info, ErrRowLimit
		}
	}

	keep := newKeeper(opts)
	if err := p.StartPage(initialCapacity(info.Rows, keep)); err != nil {
		return info, err
	}

	if err := c.readParameters(r, p); err != nil {
		return salvage(r, p, info, opts, 0, err)
	}
	if err := c.readArrays(r, p); err != nil {
		return salvage(r, p, info, opts, 0, err)
	}

	columns := make([]scalar.Vector, len(l.Columns))
	for j := range l.Columns {
		col, err := p.InternalColumn(table.ByIndex(j))
		if err != nil {
			return info, err
		}
		columns[j] = col
	}

	stored := 0
	if l.Data.ColumnMajor {
		if info.Rows < 0 {
			return info, errors.New(errors.ErrorTypeProtocol, "column-major pages require row counts")
		}
		stored = int(keep.count(info.Rows))
		if len(columns) == 0 && stored > 0 {
			if err := ensureRow(p, stored-1); err != nil {
				return info, err
			}
		}
		for j, col := range columns {
			slot := 0
			for row := int64(0); row < info.Rows; row++ {
				v, err := c.readValue(r, l.Columns[j].Type)
				if err != nil {
					return info, truncated(err, "column "+l.Columns[j].Name)
				}
				if keep.keep(row) {
					if err := ensureRow(p, slot); err != nil {
						return info, err
					}
					if err := col.Set(slot, v); err != nil {
						return info, err
					}
					slot++
				}
			}
		}
	} else {
		for row := int64(0); info.Rows < 0 || row < info.Rows; row++ {
			if info.Rows < 0 {
				if _, err := r.Peek(1); err == io.EOF || len(columns) == 0 {
					break
				}
			}
			values, err := c.readRow(r)
			if err != nil {
				return salvage(r, p, info, opts, stored, err)
			}
			if !keep.keep(row) {
				continue
			}
			if err := ensureRow(p, stored); err != nil {
				return info, err
			}
			for j, v := range values {
				if err := columns[j].Set(stored, v); err != nil {
					return info, err
				}
			}
			stored++
		}
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

// salvage turns a truncation into a short page when auto-recovery is on
func salvage(r *Reader, p *table.Page, info PageInfo, opts ReadOptions, stored int, err error) (PageInfo, error) {
	if !opts.AutoRecover || !isTruncation(err) {
		return info, truncated(err, "page data")
	}
	if ferr := finishPage(p, stored, opts); ferr != nil {
		return info, ferr
	}
	info.Recovered = true
	info.End = r.Offset()
	return info, nil
}

func (c *binaryCodec) readParameters(r *Reader, p *table.Page) error {
	for i, def := range c.layout.Parameters {
		if def.HasFixedValue {
			continue
		}
		v, err := c.readValue(r, def.Type)
		if err != nil {
			return err
		}
		if v, err = convertValue(v, def.Type, def.Conversion()); err != nil {
			return err
		}
		if err := p.SetParameter(table.ByIndex(i), v); err != nil {
			return err
		}
	}
	return nil
}

func (c *binaryCodec) readArrays(r *Reader, p *table.Page) error {
	for i, def := range c.layout.Arrays {
		dims := make([]int, def.Dimensions)
		for d := range dims {
			if _, err := io.ReadFull(r, c.scratch[:4]); err != nil {
				return err
			}
			dims[d] = int(int32(c.order.Uint32(c.scratch[:4])))
			if dims[d] < 0 {
				return errors.Newf(errors.ErrorTypeProtocol, "array %q has negative extent %d", def.Name, dims[d])
			}
		}
		n := table.Elements(dims)
		if n > scalar.MaxVectorLen {
			return errors.Newf(errors.ErrorTypeProtocol, "array %q declares %d elements", def.Name, n)
		}
		data, err := scalar.NewVector(def.Type, n)
		if err != nil {
			return err
		}
		for k := 0; k < n; k++ {
			v, err := c.readValue(r, def.Type)
			if err != nil {
				return err
			}
			if err := data.Set(k, v); err != nil {
				return err
			}
		}
		if err := convert(data, def.Conversion()); err != nil {
			return err
		}
		if err := p.SetArray(table.ByIndex(i), dims, data); err != nil {
			return err
		}
	}
	return nil
}

func (c *binaryCodec) readRow(r *Reader) ([]any, error) {
	values := make([]any, len(c.layout.Columns))
	for j, def := range c.layout.Columns {
		v, err := c.readValue(r, def.Type)
		if err != nil {
			return nil, err
		}
		values[j] = v
	}
	return values, nil
}

func (c *binaryCodec) readValue(r io.Reader, t scalar.Type) (any, error) {
	if t == scalar.TypeString {
		if _, err := io.ReadFull(r, c.scratch[:4]); err != nil {
			return nil, err
		}
		n := int32(c.order.Uint32(c.scratch[:4]))
		if n < 0 || n > maxStringLength {
			return nil, errors.Newf(errors.ErrorTypeProtocol, "invalid string length %d", n)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return string(buf), nil
	}
	width := scalar.Width(t)
	if width == 0 {
		return nil, errors.Newf(errors.ErrorTypeType, "cannot decode type %d", int(t))
	}
	buf := c.scratch[:width]
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	switch t {
	case scalar.TypeLongDouble:
		return scalar.LongDouble(LongDouble(buf, c.order)), nil
	case scalar.TypeDouble:
		return math.Float64frombits(c.order.Uint64(buf)), nil
	case scalar.TypeFloat:
		return math.Float32frombits(c.order.Uint32(buf)), nil
	case scalar.TypeLong64:
		return int64(c.order.Uint64(buf)), nil
	case scalar.TypeULong64:
		return c.order.Uint64(buf), nil
	case scalar.TypeLong:
		return int32(c.order.Uint32(buf)), nil
	case scalar.TypeULong:
		return c.order.Uint32(buf), nil
	case scalar.TypeShort:
		return int16(c.order.Uint16(buf)), nil
	case scalar.TypeUShort:
		return c.order.Uint16(buf), nil
	}
	return buf[0], nil
}

// finishPage records the rows stored, keeps the trailing window, applies
// units conversions and marks the layout as materialized.
func finishPage(p *table.Page, stored int, opts ReadOptions) error {
	if err := p.SetRowsInUse(stored); err != nil {
		return err
	}
	if opts.LastRows > 0 && stored > opts.LastRows {
		if err := p.AssertRowRange(0, stored-opts.LastRows-1, false); err != nil {
			return err
		}
		if _, err := p.DeleteUnsetRows(); err != nil {
			return err
		}
	}
	l := p.Layout()
	for j, def := range l.Columns {
		if def.Conversion() == 1 {
			continue
		}
		col, err := p.InternalColumn(table.ByIndex(j))
		if err != nil {
			return err
		}
		if err := convert(col, def.Conversion()); err != nil {
			return err
		}
	}
	l.MarkMaterialized()
	return nil
}

func isTruncation(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

func truncated(err error, what string) error {
	if isTruncation(err) {
		return errors.Newf(errors.ErrorTypeProtocol, "premature end of data reading %s", what)
	}
	if errors.TypeOf(err) != "" {
		return err
	}
	return errors.Wrapf(err, errors.ErrorTypeTransport, "failed reading %s", what)
}
