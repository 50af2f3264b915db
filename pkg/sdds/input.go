package sdds

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sdds/pkg/codec"
	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/metrics"
	"github.com/ajitpratap0/sdds/pkg/observability"
	"github.com/ajitpratap0/sdds/pkg/table"
)

// Open opens path for reading and decodes its header
func Open(path string, opts ...Option) (*Dataset, error) {
	d, err := newDataset(path, opts)
	if err != nil {
		return nil, err
	}
	in, err := openInput(path, d.cfg, d.logger)
	if err != nil {
		return nil, err
	}
	d.in = in
	if err := d.readLayout(); err != nil {
		_ = in.close()
		return nil, err
	}
	d.logger.Info("opened input", zap.String("file", path), zap.Int("version", d.layout.Version))
	return d, nil
}

// NewReader reads a dataset from r and decodes its header. GotoPage is
// available when r is an io.Seeker positioned at its start. r is not closed
// by Close.
func NewReader(r io.Reader, opts ...Option) (*Dataset, error) {
	d, err := newDataset(StdStream, opts)
	if err != nil {
		return nil, err
	}
	d.in = readerInput(r)
	if err := d.readLayout(); err != nil {
		return nil, err
	}
	return d, nil
}

// includeOpener resolves &include file names relative to the directory of
// the including file
func (d *Dataset) includeOpener() func(string) (io.ReadCloser, error) {
	dir := "."
	if d.name != StdStream && d.name != "" {
		dir = filepath.Dir(d.name)
	}
	return func(name string) (io.ReadCloser, error) {
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		f, err := os.Open(name) //nolint:gosec // G304: named by the header being read
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeTransport, "failed to open included file %s", name)
		}
		return f, nil
	}
}

func (d *Dataset) readLayout() error {
	return d.tracer.Trace(d.ctx, "read_layout", func(span *observability.Span) error {
		d.r = codec.NewReader(d.in.reader, 0)
		l, err := codec.ReadHeader(d.r, codec.HeaderOptions{
			Open: d.includeOpener(),
			OnComment: func(text string) {
				d.logger.Debug("header comment", zap.String("text", text))
			},
		})
		if err != nil {
			return err
		}
		d.layout = l
		d.page = table.New(l)
		d.codec = codec.NewPageCodec(l)
		d.offsets = []int64{d.r.Offset()}
		d.state = StateLayoutRead
		span.SetAttribute("sdds.version", l.Version)
		span.SetAttribute("sdds.mode", l.Data.Mode.String())
		return nil
	})
}

// SetUnitsConversion changes the units of a parameter, column or array of
// an input and multiplies its values by factor as pages are decoded. It
// must be called before the first page is read.
func (d *Dataset) SetUnitsConversion(kind layout.Kind, name, newUnits, oldUnits string, factor float64) error {
	if err := d.requireState("SetUnitsConversion", StateLayoutRead); err != nil {
		return err
	}
	return d.layout.SetUnitsConversion(kind, name, newUnits, oldUnits, factor)
}

// ReadPage decodes the next page and returns its number, counted from 1.
// At the end of the data it returns io.EOF. A page with more rows than the
// row limit also ends the data.
func (d *Dataset) ReadPage() (int, error) {
	return d.readPage(codec.ReadOptions{})
}

// ReadPageSparse decodes the next page keeping every interval-th row,
// starting at row offset
func (d *Dataset) ReadPageSparse(interval, offset int) (int, error) {
	if interval < 1 || offset < 0 {
		return 0, errors.Newf(errors.ErrorTypeBounds, "invalid sparse interval %d offset %d", interval, offset)
	}
	return d.readPage(codec.ReadOptions{SparseInterval: interval, SparseOffset: offset})
}

// ReadPageLastRows decodes the next page keeping only its last n rows
func (d *Dataset) ReadPageLastRows(n int) (int, error) {
	if n < 1 {
		return 0, errors.Newf(errors.ErrorTypeBounds, "invalid last row count %d", n)
	}
	return d.readPage(codec.ReadOptions{LastRows: n})
}

func (d *Dataset) readPage(opts codec.ReadOptions) (int, error) {
	if err := d.requireState("ReadPage", StateLayoutRead, StatePageRead); err != nil {
		return 0, err
	}
	if d.exhausted {
		return 0, io.EOF
	}
	opts.RowLimit = d.cfg.RowLimit
	opts.AutoRecover = d.cfg.AutoRecover && d.layout.FixedRowCount

	var page int
	eof := false
	err := d.tracer.Trace(d.ctx, "read_page", func(span *observability.Span) error {
		timer := metrics.NewTimer("read_page")
		info, err := d.codec.ReadPage(d.r, d.page, opts)
		switch {
		case err == io.EOF:
			eof = true
			return nil
		case errors.Is(err, codec.ErrRowLimit):
			d.logger.Info("page exceeds the row limit; treating it as the end of the data",
				zap.Int64("rows", info.Rows), zap.Int64("limit", opts.RowLimit))
			eof = true
			return nil
		case err != nil:
			return err
		}
		d.pagesRead++
		page = d.pagesRead
		d.page.SetPageNumber(page)
		if len(d.offsets) == page {
			d.offsets = append(d.offsets, info.End)
		}
		if info.Recovered {
			d.logger.Warn("recovered truncated page",
				zap.Int("page", page), zap.Int("rows", d.page.RowsInUse()), zap.Int64("declared", info.Rows))
			d.exhausted = true
		}
		d.metrics.RecordPage(metrics.DirectionRead, int64(d.page.RowsInUse()), info.End-info.Start, timer.Stop())
		span.SetAttribute("sdds.page", page)
		span.SetAttribute("sdds.rows", d.page.RowsInUse())
		d.logger.Debug("page read", zap.Int("page", page), zap.Int("rows", d.page.RowsInUse()))
		d.state = StatePageRead
		return nil
	})
	if err != nil {
		return 0, err
	}
	if eof {
		d.exhausted = true
		return 0, io.EOF
	}
	return page, nil
}

// PagesRead returns the number of the last page read
func (d *Dataset) PagesRead() int { return d.pagesRead }

// GotoPage positions the input so the next ReadPage returns page n.
// Pages beyond those seen so far are read and discarded on the way.
// Pipes and compressed inputs do not support it.
func (d *Dataset) GotoPage(n int) error {
	if err := d.requireState("GotoPage", StateLayoutRead, StatePageRead); err != nil {
		return err
	}
	if n < 1 {
		return errors.Newf(errors.ErrorTypeBounds, "page %d does not exist", n)
	}
	if d.in.seeker == nil {
		return errors.New(errors.ErrorTypeTransport, "input does not support random access")
	}
	prior, priorState, priorExhausted := d.pagesRead, d.state, d.exhausted
	missing := func(pages int) error {
		if err := d.seekPage(prior + 1); err != nil {
			return err
		}
		d.state, d.exhausted = priorState, priorExhausted
		return errors.Newf(errors.ErrorTypeBounds, "page %d does not exist; the input has %d pages", n, pages)
	}

	if err := d.seekPage(min(n, len(d.offsets))); err != nil {
		return err
	}
	// Page n exists once its end offset is recorded.
	for len(d.offsets) <= n {
		if _, err := d.readPage(codec.ReadOptions{LastRows: 1}); err != nil {
			if err == io.EOF {
				return missing(d.pagesRead)
			}
			return err
		}
	}
	return d.seekPage(n)
}

// seekPage moves the input to the recorded start of page n
func (d *Dataset) seekPage(n int) error {
	offset := d.offsets[n-1]
	if _, err := d.in.seeker.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeTransport, "failed to seek to page %d", n)
	}
	d.r.Reset(d.in.reader, offset)
	d.pagesRead = n - 1
	d.page.SetPageNumber(n - 1)
	d.exhausted = false
	return nil
}
