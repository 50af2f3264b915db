package sdds

import (
	"io"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sdds/pkg/codec"
	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/table"
)

// Append opens an existing plain file so new pages are written after its
// existing ones. The layout is the file's own and cannot be changed.
func Append(path string, opts ...Option) (*Dataset, error) {
	d, _, err := openForAppend(path, opts)
	if err != nil {
		return nil, err
	}
	d.state = StateLayoutWritten
	d.logger.Info("appending pages", zap.String("file", path), zap.Int("existing_pages", d.pagesWritten))
	return d, nil
}

// AppendToPage opens an existing plain file so rows can be added to its last
// page. The last page is loaded into Page() and left open: rows added with
// AddRow or the page setters are written by UpdatePage or WritePage, which
// also rewrite the page row count in place. With a positive updateInterval,
// AddRow calls UpdatePage every updateInterval rows. A file without pages
// behaves as with Append.
func AppendToPage(path string, updateInterval int, opts ...Option) (*Dataset, error) {
	if updateInterval < 0 {
		return nil, errors.Newf(errors.ErrorTypeBounds, "negative update interval %d", updateInterval)
	}
	d, last, err := openForAppend(path, opts)
	if err != nil {
		return nil, err
	}
	d.updateInterval = updateInterval
	if d.pagesWritten == 0 {
		d.state = StateLayoutWritten
		return d, nil
	}
	l := d.layout
	switch {
	case l.Data.ColumnMajor:
		_ = d.out.close()
		return nil, errors.New(errors.ErrorTypeState, "cannot add rows to a column-major page")
	case l.Data.NoRowCounts && l.Data.Mode == layout.ModeASCII:
		_ = d.out.close()
		return nil, errors.New(errors.ErrorTypeState, "cannot add rows to an ASCII page without a row count")
	case l.Data.Mode == layout.ModeASCII && last.RowCountWidth < codec.RowCountWidth:
		_ = d.out.close()
		return nil, errors.Newf(errors.ErrorTypeBounds,
			"row count field of page %d is %d bytes; adding rows needs %d", d.pagesWritten, last.RowCountWidth, codec.RowCountWidth)
	}
	d.pagesWritten--
	d.progress = &pageProgress{
		rowCountOffset: last.RowCountOffset,
		rowCountWidth:  last.RowCountWidth,
		flushed:        d.page.RowsInUse(),
		rows:           int64(d.page.RowsInUse()),
		declared:       last.Rows,
	}
	d.state = StatePageOpen
	d.logger.Info("appending to last page", zap.String("file", path),
		zap.Int("page", d.page.PageNumber()), zap.Int("rows", d.page.RowsInUse()))
	return d, nil
}

// openForAppend decodes the header and every page of path, leaving the
// output positioned after the last complete page. Bytes of a truncated
// final row are cut off.
func openForAppend(path string, opts []Option) (*Dataset, codec.PageInfo, error) {
	var last codec.PageInfo
	d, err := newDataset(path, opts)
	if err != nil {
		return nil, last, err
	}
	if path == StdStream {
		return nil, last, errors.New(errors.ErrorTypeTransport, "cannot append to a stream")
	}
	out, err := createOutput(path, d.cfg, true)
	if err != nil {
		return nil, last, err
	}
	fail := func(err error) (*Dataset, codec.PageInfo, error) {
		_ = out.close()
		return nil, last, err
	}

	r := codec.NewReader(out.file, 0)
	l, err := codec.ReadHeader(r, codec.HeaderOptions{Open: d.includeOpener()})
	if err != nil {
		return fail(err)
	}
	d.out = out
	d.layout = l
	d.page = table.New(l)
	d.codec = codec.NewPageCodec(l)

	scan := codec.ReadOptions{AutoRecover: l.FixedRowCount}
	end := r.Offset()
	for {
		info, err := d.codec.ReadPage(r, d.page, scan)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(err)
		}
		d.pagesWritten++
		last = info
		end = info.End
		if info.Recovered {
			d.logger.Warn("last page was truncated", zap.Int("page", d.pagesWritten), zap.Int("rows", d.page.RowsInUse()))
			break
		}
	}
	if d.pagesWritten > 0 {
		d.page.SetPageNumber(d.pagesWritten)
	}
	if rows := int64(d.page.RowsInUse()); last.Recovered && last.RowCountOffset >= 0 && last.Rows != rows {
		field, err := d.codec.WriteRowCount(rows, last.RowCountWidth)
		if err != nil {
			return fail(err)
		}
		if _, err := out.file.WriteAt(field, last.RowCountOffset); err != nil {
			return fail(errors.Wrap(err, errors.ErrorTypeTransport, "failed to repair row count"))
		}
		last.Rows = rows
	}

	if err := out.file.Truncate(end); err != nil {
		return fail(errors.Wrap(err, errors.ErrorTypeTransport, "failed to cut partial data"))
	}
	if _, err := out.file.Seek(end, io.SeekStart); err != nil {
		return fail(errors.Wrap(err, errors.ErrorTypeTransport, "failed to seek to end of data"))
	}
	d.w = codec.NewWriter(out.writer, end)
	return d, last, nil
}
