package sdds

import (
	"io"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sdds/pkg/codec"
	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/metrics"
	"github.com/ajitpratap0/sdds/pkg/observability"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	"github.com/ajitpratap0/sdds/pkg/table"
)

// Create opens path for writing a new dataset. Definitions are accepted
// until WriteLayout.
func Create(path string, opts ...Option) (*Dataset, error) {
	d, err := newDataset(path, opts)
	if err != nil {
		return nil, err
	}
	out, err := createOutput(path, d.cfg, false)
	if err != nil {
		return nil, err
	}
	if err := d.startOutput(out, layout.New()); err != nil {
		_ = out.close()
		return nil, err
	}
	d.logger.Info("created output", zap.String("file", path), zap.String("transport", string(out.algorithm)))
	return d, nil
}

// NewWriter starts a dataset written to w. UpdatePage is available when w
// also implements io.WriterAt. w is not closed by Close.
func NewWriter(w io.Writer, opts ...Option) (*Dataset, error) {
	d, err := newDataset(StdStream, opts)
	if err != nil {
		return nil, err
	}
	if err := d.startOutput(writerOutput(w), layout.New()); err != nil {
		return nil, err
	}
	return d, nil
}

// InitializeCopy creates an output at path whose layout is a copy of the
// layout of src. Further definitions may be added before WriteLayout.
func InitializeCopy(src *Dataset, path string, opts ...Option) (*Dataset, error) {
	if src.layout == nil || src.state == StateClosed {
		return nil, errors.New(errors.ErrorTypeState, "source dataset has no layout")
	}
	d, err := newDataset(path, opts)
	if err != nil {
		return nil, err
	}
	out, err := createOutput(path, d.cfg, false)
	if err != nil {
		return nil, err
	}
	l := src.layout.Clone()
	if err := d.startOutput(out, l); err != nil {
		_ = out.close()
		return nil, err
	}
	// the copy keeps the source data mode; only an explicit byte order overrides it
	if d.cfg.OutputEndianness == "" {
		l.Data.Endianness = src.layout.Data.Endianness
	}
	d.logger.Info("created copy", zap.String("file", path), zap.String("source", src.name))
	return d, nil
}

// startOutput applies the configured output defaults to l and readies the
// dataset for definitions
func (d *Dataset) startOutput(out *output, l *layout.Layout) error {
	order, err := d.cfg.Endianness()
	if err != nil {
		return err
	}
	if !l.Committed() && len(l.Columns)+len(l.Parameters)+len(l.Arrays) == 0 {
		mode, err := d.cfg.Mode()
		if err != nil {
			return err
		}
		l.Data.Mode = mode
		l.Data.LinesPerRow = d.cfg.LinesPerRow
		l.Data.ColumnMajor = d.cfg.ColumnMajor
		l.FixedRowCount = d.cfg.FixedRowCount
		l.FixedRowIncrement = d.cfg.FixedRowIncrement
		l.Validity = d.cfg.Validity()
	}
	l.Data.Endianness = order
	d.out = out
	d.layout = l
	d.page = table.New(l)
	d.state = StateLayoutPending
	return nil
}

func (d *Dataset) requireDefinable() error {
	return d.requireState("definition", StateLayoutPending)
}

// DefineParameter declares a parameter and returns its index
func (d *Dataset) DefineParameter(p layout.Parameter) (int, error) {
	if err := d.requireDefinable(); err != nil {
		return -1, err
	}
	return d.layout.DefineParameter(p)
}

// DefineColumn declares a column and returns its index
func (d *Dataset) DefineColumn(c layout.Column) (int, error) {
	if err := d.requireDefinable(); err != nil {
		return -1, err
	}
	return d.layout.DefineColumn(c)
}

// DefineArray declares an array and returns its index
func (d *Dataset) DefineArray(a layout.Array) (int, error) {
	if err := d.requireDefinable(); err != nil {
		return -1, err
	}
	return d.layout.DefineArray(a)
}

// DefineAssociate declares an associated file and returns its index
func (d *Dataset) DefineAssociate(a layout.Associate) (int, error) {
	if err := d.requireDefinable(); err != nil {
		return -1, err
	}
	return d.layout.DefineAssociate(a)
}

// DefineSimpleParameter declares a parameter from a name, units and type
func (d *Dataset) DefineSimpleParameter(name, units string, t scalar.Type) (int, error) {
	if err := d.requireDefinable(); err != nil {
		return -1, err
	}
	return d.layout.DefineSimpleParameter(name, units, t)
}

// DefineSimpleColumn declares a column from a name, units and type
func (d *Dataset) DefineSimpleColumn(name, units string, t scalar.Type) (int, error) {
	if err := d.requireDefinable(); err != nil {
		return -1, err
	}
	return d.layout.DefineSimpleColumn(name, units, t)
}

// DefineSimpleArray declares an array from a name, units, type and rank
func (d *Dataset) DefineSimpleArray(name, units string, t scalar.Type, dimensions int) (int, error) {
	if err := d.requireDefinable(); err != nil {
		return -1, err
	}
	return d.layout.DefineSimpleArray(name, units, t, dimensions)
}

// SetDescription sets the &description text and contents
func (d *Dataset) SetDescription(text, contents string) error {
	if err := d.requireDefinable(); err != nil {
		return err
	}
	d.layout.Description = layout.Description{Text: text, Contents: contents}
	return nil
}

// SetDataMode replaces the data mode of the output
func (d *Dataset) SetDataMode(mode layout.DataMode) error {
	if err := d.requireDefinable(); err != nil {
		return err
	}
	if mode.Mode != layout.ModeASCII && mode.Mode != layout.ModeBinary {
		return errors.Newf(errors.ErrorTypeProtocol, "unknown data mode %d", mode.Mode)
	}
	if mode.LinesPerRow < 1 {
		mode.LinesPerRow = 1
	}
	d.layout.Data = mode
	return nil
}

// SetFixedRowCount declares that row counts are reserved in multiples of
// increment while a page is written in parts, and rewritten when it ends
func (d *Dataset) SetFixedRowCount(enabled bool, increment int64) error {
	if err := d.requireDefinable(); err != nil {
		return err
	}
	if increment < 1 {
		return errors.Newf(errors.ErrorTypeBounds, "fixed row increment must be positive, got %d", increment)
	}
	d.layout.FixedRowCount = enabled
	d.layout.FixedRowIncrement = increment
	return nil
}

// WriteLayout commits the layout and writes the header. It may be called
// once; the protocol version is raised to the lowest one able to carry the
// declared types and data mode.
func (d *Dataset) WriteLayout() error {
	if err := d.requireState("WriteLayout", StateLayoutPending); err != nil {
		return err
	}
	if err := d.requireConnected(); err != nil {
		return err
	}
	return d.tracer.Trace(d.ctx, "write_layout", func(span *observability.Span) error {
		l := d.layout
		if d.out.algorithm.ForcesBinary() && l.Data.Mode != layout.ModeBinary {
			d.logger.Warn("compressed transport requires binary mode", zap.String("transport", string(d.out.algorithm)))
			l.Data.Mode = layout.ModeBinary
		}
		if l.FixedRowCount && !d.out.seekable() {
			d.logger.Warn("fixed row counts need a seekable output; writing exact counts")
			l.FixedRowCount = false
		}
		l.Version = max(l.Version, l.MinimumVersion())
		l.Commit()

		d.w = codec.NewWriter(d.out.writer, 0)
		if err := codec.WriteHeader(d.w, l); err != nil {
			return err
		}
		if err := d.flush(); err != nil {
			return err
		}
		d.codec = codec.NewPageCodec(l)
		d.state = StateLayoutWritten
		span.SetAttribute("sdds.version", l.Version)
		span.SetAttribute("sdds.mode", l.Data.Mode.String())
		d.logger.Debug("layout written",
			zap.Int("version", l.Version),
			zap.Stringer("mode", l.Data.Mode),
			zap.Int("columns", len(l.Columns)))
		return nil
	})
}

// StartPage begins a new output page with room for expectedRows rows
func (d *Dataset) StartPage(expectedRows int) error {
	if err := d.requireState("StartPage", StateLayoutWritten, StatePageOpen); err != nil {
		return err
	}
	if d.progress != nil {
		return errors.New(errors.ErrorTypeState, "the current page is partly written; call WritePage first")
	}
	if err := d.page.StartPage(expectedRows); err != nil {
		return err
	}
	d.state = StatePageOpen
	d.logger.Debug("page started", zap.Int("page", d.page.PageNumber()), zap.Int("rows", expectedRows))
	return nil
}

// AddRow stores values, one per column in definition order, in the row
// after the last row in use, growing the page as needed. With an update
// interval set by AppendToPage, every interval rows are flushed by
// UpdatePage.
func (d *Dataset) AddRow(values ...any) error {
	if err := d.requireState("AddRow", StatePageOpen); err != nil {
		return err
	}
	row := d.page.RowsInUse()
	if row == d.page.RowsAllocated() {
		if err := d.page.Lengthen(max(row, 1)); err != nil {
			return err
		}
	}
	if err := d.page.SetRow(row, values...); err != nil {
		return err
	}
	if d.updateInterval > 0 {
		flushed := 0
		if d.progress != nil {
			flushed = d.progress.flushed
		}
		if d.page.RowsInUse()-flushed >= d.updateInterval {
			return d.UpdatePage()
		}
	}
	return nil
}

// CopyPage starts a page holding the current page of src: parameters and
// arrays with matching names, and the rows of interest of matching columns.
func (d *Dataset) CopyPage(src *Dataset) error {
	if src.page == nil || !src.page.Started() {
		return errors.New(errors.ErrorTypeState, "source dataset has no page")
	}
	rows := src.page.CountRowsOfInterest()
	if err := d.StartPage(rows); err != nil {
		return err
	}
	sl := src.layout
	for _, def := range d.layout.Parameters {
		if sl.ParameterIndex(def.Name) < 0 || def.HasFixedValue {
			continue
		}
		v, err := src.page.Parameter(table.ByName(def.Name))
		if err != nil {
			return err
		}
		if err := d.page.SetParameter(table.ByName(def.Name), v); err != nil {
			return err
		}
	}
	for _, def := range d.layout.Arrays {
		if sl.ArrayIndex(def.Name) < 0 {
			continue
		}
		a, err := src.page.Array(table.ByName(def.Name))
		if err != nil {
			return err
		}
		if a.Data == nil {
			continue
		}
		if err := d.page.SetArray(table.ByName(def.Name), a.Dims, a.Data.Slice()); err != nil {
			return err
		}
	}
	for _, def := range d.layout.Columns {
		if sl.ColumnIndex(def.Name) < 0 {
			continue
		}
		col, err := src.page.Column(table.ByName(def.Name))
		if err != nil {
			return err
		}
		if err := d.page.SetColumn(table.ByName(def.Name), col, rows); err != nil {
			return err
		}
	}
	return d.page.SetRowsInUse(rows)
}

// WritePage encodes the rows of interest of the current page and ends it.
// A page already partly written by UpdatePage receives its remaining rows
// and its final row count.
func (d *Dataset) WritePage() error {
	if err := d.requireState("WritePage", StatePageOpen); err != nil {
		return err
	}
	if err := d.requireConnected(); err != nil {
		return err
	}
	return d.tracer.Trace(d.ctx, "write_page", func(span *observability.Span) error {
		timer := metrics.NewTimer("write_page")
		start := d.w.Offset()
		var rows int64
		if d.progress != nil {
			if err := d.flushRows(true); err != nil {
				return err
			}
			rows = d.progress.rows
		} else {
			info, err := d.codec.WritePage(d.w, d.page)
			if err != nil {
				return err
			}
			if err := d.flush(); err != nil {
				return err
			}
			rows = info.Rows
		}
		d.metrics.RecordPage(metrics.DirectionWrite, rows, d.w.Offset()-start, timer.Stop())
		span.SetAttribute("sdds.page", d.page.PageNumber())
		span.SetAttribute("sdds.rows", rows)
		d.logger.Debug("page written", zap.Int("page", d.page.PageNumber()), zap.Int64("rows", rows))
		d.pagesWritten++
		d.progress = nil
		d.state = StateLayoutWritten
		return nil
	})
}

// UpdatePage writes the rows added since the last update and rewrites the
// row count of the page in place, leaving the page open for more rows. It
// needs a plain file or a writer implementing io.WriterAt.
func (d *Dataset) UpdatePage() error {
	if err := d.requireState("UpdatePage", StatePageOpen); err != nil {
		return err
	}
	if err := d.requireConnected(); err != nil {
		return err
	}
	if !d.out.seekable() {
		return errors.New(errors.ErrorTypeTransport, "in-place page updates need a plain file")
	}
	l := d.layout
	if l.Data.ColumnMajor {
		return errors.New(errors.ErrorTypeState, "column-major pages cannot be updated")
	}
	if l.Data.NoRowCounts && l.Data.Mode == layout.ModeASCII {
		return errors.New(errors.ErrorTypeState, "ASCII pages without row counts cannot be updated")
	}
	timer := metrics.NewTimer("update_page")
	start := d.w.Offset()
	before := int64(0)
	if d.progress != nil {
		before = d.progress.rows
	}
	if err := d.flushRows(false); err != nil {
		return err
	}
	d.metrics.RecordPage(metrics.DirectionWrite, d.progress.rows-before, d.w.Offset()-start, timer.Stop())
	d.logger.Debug("page updated", zap.Int("page", d.page.PageNumber()), zap.Int64("rows", d.progress.rows))
	return nil
}

// flushRows encodes the rows not yet written, then brings the on-disk row
// count up to date. While a fixed-row-count page is open its count is kept
// at a multiple of the increment above the rows written; final writes the
// exact count.
func (d *Dataset) flushRows(final bool) error {
	p := d.page
	if d.progress == nil {
		info, err := d.codec.WritePage(d.w, p)
		if err != nil {
			return err
		}
		d.progress = &pageProgress{
			rowCountOffset: info.RowCountOffset,
			rowCountWidth:  info.RowCountWidth,
			flushed:        p.RowsInUse(),
			rows:           info.Rows,
			declared:       info.Rows,
		}
	} else {
		var rows []int
		for i := d.progress.flushed; i < p.RowsInUse(); i++ {
			if p.RowFlag(i) {
				rows = append(rows, i)
			}
		}
		if len(rows) > 0 {
			if err := d.codec.WriteRows(d.w, p, rows); err != nil {
				return err
			}
		}
		d.progress.flushed = p.RowsInUse()
		d.progress.rows += int64(len(rows))
	}
	if err := d.flush(); err != nil {
		return err
	}

	target := d.progress.rows
	if !final && d.layout.FixedRowCount {
		target = d.progress.declared
		if d.progress.rows >= target {
			target = reservedRows(d.progress.rows, d.layout.FixedRowIncrement)
		}
	}
	return d.rewriteRowCount(target)
}

// reservedRows is the next multiple of increment above rows
func reservedRows(rows, increment int64) int64 {
	increment = max(increment, 1)
	return (rows/increment + 1) * increment
}

func (d *Dataset) rewriteRowCount(rows int64) error {
	if d.progress.rowCountOffset < 0 || rows == d.progress.declared {
		return nil
	}
	if !d.out.seekable() {
		return errors.New(errors.ErrorTypeTransport, "row count cannot be rewritten on this output")
	}
	field, err := d.codec.WriteRowCount(rows, d.progress.rowCountWidth)
	if err != nil {
		return err
	}
	if _, err := d.out.at.WriteAt(field, d.progress.rowCountOffset); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to rewrite row count")
	}
	d.progress.declared = rows
	return nil
}

func (d *Dataset) flush() error {
	if err := d.w.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to flush output")
	}
	return nil
}

func (d *Dataset) requireConnected() error {
	if d.out != nil && d.out.disconnected {
		return errors.New(errors.ErrorTypeTransport, "output is disconnected")
	}
	return nil
}

// Disconnect flushes the output and releases its file handle and lock
// between bursts of writes. Only plain files can be disconnected.
func (d *Dataset) Disconnect() error {
	if d.out == nil || d.state == StateClosed {
		return errors.New(errors.ErrorTypeState, "only open outputs can be disconnected")
	}
	if d.w != nil && !d.out.disconnected {
		if err := d.flush(); err != nil {
			return err
		}
	}
	if err := d.out.disconnect(); err != nil {
		return err
	}
	d.logger.Debug("output disconnected")
	return nil
}

// Reconnect reopens a disconnected output at the position it was left at
func (d *Dataset) Reconnect() error {
	if d.out == nil || d.state == StateClosed {
		return errors.New(errors.ErrorTypeState, "only open outputs can be reconnected")
	}
	var offset int64
	if d.w != nil {
		offset = d.w.Offset()
	}
	if err := d.out.reconnect(offset); err != nil {
		return err
	}
	if d.w != nil {
		d.w.Reset(d.out.writer, offset)
	}
	d.logger.Debug("output reconnected", zap.Int64("offset", offset))
	return nil
}
