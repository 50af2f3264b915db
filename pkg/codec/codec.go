package codec

import (
	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	"github.com/ajitpratap0/sdds/pkg/table"
)

// ErrRowLimit is returned by page decoders when a page declares more rows
// than the configured limit. Datasets treat it as the end of the data.
var ErrRowLimit = errors.New(errors.ErrorTypeBounds, "page row count exceeds the row limit")

// PageInfo describes one encoded or decoded page
type PageInfo struct {
	// Start is the stream position of the first byte of the page
	Start int64
	// End is the stream position just past the page
	End int64
	// RowCountOffset is the stream position of the row count field, -1 when
	// the page has none
	RowCountOffset int64
	// RowCountWidth is the size in bytes of the row count field
	RowCountWidth int
	// Rows is the number of rows written, or declared by the page when read
	Rows int64
	// Recovered is set when a truncated page was accepted
	Recovered bool
}

// ReadOptions tunes page decoding
type ReadOptions struct {
	// SparseInterval keeps every SparseInterval-th row starting at
	// SparseOffset; values below 2 keep every row
	SparseInterval int
	SparseOffset   int
	// LastRows keeps only the trailing LastRows rows when positive
	LastRows int
	// RowLimit rejects pages with more rows with ErrRowLimit; 0 means no limit
	RowLimit int64
	// AutoRecover accepts a page truncated by the end of the stream
	AutoRecover bool
}

// keeper decides which decoded rows are stored
type keeper struct {
	interval, offset int
}

func newKeeper(opts ReadOptions) keeper {
	return keeper{interval: max(opts.SparseInterval, 1), offset: max(opts.SparseOffset, 0)}
}

func (k keeper) keep(row int64) bool {
	if row < int64(k.offset) {
		return false
	}
	return (row-int64(k.offset))%int64(k.interval) == 0
}

func (k keeper) count(rows int64) int64 {
	if rows <= int64(k.offset) {
		return 0
	}
	return (rows-int64(k.offset)-1)/int64(k.interval) + 1
}

// PageCodec writes and reads pages in the data mode of a layout
type PageCodec interface {
	WritePage(w *Writer, p *table.Page) (PageInfo, error)
	ReadPage(r *Reader, p *table.Page, opts ReadOptions) (PageInfo, error)
	// WriteRows encodes further rows of a page already written by WritePage
	WriteRows(w *Writer, p *table.Page, rows []int) error
	// WriteRowCount encodes rows to overwrite a row count field of width
	// bytes, failing with a bounds error when the count does not fit
	WriteRowCount(rows int64, width int) ([]byte, error)
}

// NewPageCodec returns the codec for the data mode of l
func NewPageCodec(l *layout.Layout) PageCodec {
	if l.Data.Mode == layout.ModeASCII {
		return &asciiCodec{layout: l}
	}
	return &binaryCodec{layout: l, order: l.Data.Endianness.Order()}
}

// convert multiplies decoded numeric values by a units conversion factor
func convert(v scalar.Vector, factor float64) error {
	if factor == 1 || !v.Type().IsNumeric() {
		return nil
	}
	for i := 0; i < v.Len(); i++ {
		f, err := v.Float64(i)
		if err != nil {
			return err
		}
		if err := v.Set(i, f*factor); err != nil {
			return err
		}
	}
	return nil
}

func convertValue(v any, t scalar.Type, factor float64) (any, error) {
	if factor == 1 || !t.IsNumeric() {
		return v, nil
	}
	f, err := scalar.ToFloat64(v)
	if err != nil {
		return nil, err
	}
	return scalar.Cast(f*factor, t)
}

// maxInitialRows bounds the rows allocated from a declared row count before
// any row data has been read. Pages grow as rows arrive.
const maxInitialRows = 1 << 16

// initialCapacity returns the rows to allocate for a page declaring rows
// rows, or 1 when the count is unknown
func initialCapacity(rows int64, keep keeper) int {
	if rows < 0 {
		return 1
	}
	return int(min(keep.count(rows), maxInitialRows))
}

// ensureRow grows p, doubling its capacity, until slot row exists. Column
// buffers are resized in place, so vectors taken from p stay valid.
func ensureRow(p *table.Page, row int) error {
	allocated := p.RowsAllocated()
	if row < allocated {
		return nil
	}
	return p.Lengthen(max(row+1-allocated, allocated))
}

func checkRowCount(rows int64) error {
	if rows < 0 {
		return errors.Newf(errors.ErrorTypeProtocol, "negative row count %d", rows)
	}
	if rows > scalar.MaxVectorLen {
		return errors.Newf(errors.ErrorTypeProtocol, "implausible row count %d", rows)
	}
	return nil
}
