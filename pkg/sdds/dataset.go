// Package sdds implements the dataset handle: one open SDDS file or stream,
// either written or read page by page.
//
// # Overview
//
// A dataset couples a layout (the declarations of the header) with a page
// buffer, a page codec and a transport. Output datasets move through
//
//	Create -> Define* -> WriteLayout -> (StartPage -> set values -> WritePage)* -> Close
//
// and input datasets through
//
//	Open (header read) -> ReadPage* -> Close
//
// # Usage
//
//	out, err := sdds.Create("orbit.sdds")
//	if err != nil {
//	    return err
//	}
//	defer out.Close()
//	out.DefineSimpleColumn("x", "m", scalar.TypeDouble)
//	if err := out.WriteLayout(); err != nil {
//	    return err
//	}
//	out.StartPage(100)
//	out.Page().SetColumn(table.ByName("x"), xs, len(xs))
//	err = out.WritePage()
//
// # Transports
//
// The file name suffix selects the transport: .gz, .xz, .lzma, .zst and .lz4
// files are compressed streams, other names are plain files, and "-" is
// standard input or output. Only plain files support GotoPage, UpdatePage,
// appending and Disconnect. xz and lzma outputs are always binary.
//
// A dataset is not safe for concurrent use.
package sdds

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sdds/pkg/codec"
	"github.com/ajitpratap0/sdds/pkg/config"
	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/logger"
	"github.com/ajitpratap0/sdds/pkg/metrics"
	"github.com/ajitpratap0/sdds/pkg/observability"
	"github.com/ajitpratap0/sdds/pkg/table"
)

// StdStream is the file name meaning standard input or standard output
const StdStream = "-"

// State is the position of a dataset in its lifecycle
type State int

const (
	// StateClosed datasets accept no operation but Close
	StateClosed State = iota
	// StateLayoutPending outputs accept definitions until WriteLayout
	StateLayoutPending
	// StateLayoutWritten outputs have a header and no open page
	StateLayoutWritten
	// StateLayoutRead inputs have read the header and no page yet
	StateLayoutRead
	// StatePageOpen outputs have a started page not yet written
	StatePageOpen
	// StatePageRead inputs hold a decoded page
	StatePageRead
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLayoutPending:
		return "layout-pending"
	case StateLayoutWritten:
		return "layout-written"
	case StateLayoutRead:
		return "layout-read"
	case StatePageOpen:
		return "page-open"
	case StatePageRead:
		return "page-read"
	}
	return "unknown"
}

// Option configures a dataset
type Option func(*options)

type options struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  *observability.DatasetTracer
	ctx     context.Context
}

// WithConfig sets the engine configuration. Without it the defaults are
// used, adjusted by the SDDS_* environment variables.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger; the global logger is used otherwise
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics reports page traffic to c
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithTracer sets the tracer used for layout and page spans
func WithTracer(t *observability.DatasetTracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithContext sets the parent context of the spans the dataset opens
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// pageProgress tracks a page written in several parts by UpdatePage
type pageProgress struct {
	rowCountOffset int64 // -1 when the page has no row count
	rowCountWidth  int   // bytes of the row count field
	flushed        int   // rows of the page buffer already encoded
	rows           int64 // rows encoded
	declared       int64 // row count currently on disk
}

// Dataset is one SDDS file or stream open for reading or for writing
type Dataset struct {
	name    string
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  *observability.DatasetTracer
	ctx     context.Context

	layout *layout.Layout
	page   *table.Page
	codec  codec.PageCodec
	state  State

	// input side
	in        *input
	r         *codec.Reader
	offsets   []int64 // offsets[k] is where page k+1 starts
	pagesRead int
	exhausted bool

	// output side
	out            *output
	w              *codec.Writer
	pagesWritten   int
	progress       *pageProgress
	updateInterval int
}

func newDataset(name string, opts []Option) (*Dataset, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
		if err := o.cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	label := name
	if name != StdStream && name != "" {
		label = filepath.Base(name)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	if o.tracer == nil {
		o.tracer = observability.NewDatasetTracer(label)
	}
	if o.ctx == nil {
		o.ctx = context.Background()
	}
	return &Dataset{
		name:    name,
		cfg:     o.cfg,
		logger:  o.logger.With(zap.String("dataset", label)),
		metrics: o.metrics,
		tracer:  o.tracer,
		ctx:     o.ctx,
	}, nil
}

// Name returns the file name the dataset was opened with
func (d *Dataset) Name() string { return d.name }

// State returns the lifecycle state
func (d *Dataset) State() State { return d.state }

// Layout returns the layout. Inputs and written outputs return a committed
// layout that must not be changed except through SetUnitsConversion.
func (d *Dataset) Layout() *layout.Layout { return d.layout }

// Page returns the page buffer: the decoded page of an input, or the page
// being filled for an output.
func (d *Dataset) Page() *table.Page { return d.page }

// Config returns the configuration carried by the dataset
func (d *Dataset) Config() *config.Config { return d.cfg }

// SetRowLimit makes ReadPage treat pages with more than n rows as the end of
// the data; 0 removes the limit. The limit belongs to this dataset only.
func (d *Dataset) SetRowLimit(n int64) error {
	if n < 0 {
		return errors.Newf(errors.ErrorTypeBounds, "negative row limit %d", n)
	}
	cfg := *d.cfg
	cfg.RowLimit = n
	d.cfg = &cfg
	return nil
}

// RowLimit returns the row limit, 0 when unlimited
func (d *Dataset) RowLimit() int64 { return d.cfg.RowLimit }

// IsInput reports whether the dataset reads a file
func (d *Dataset) IsInput() bool { return d.in != nil }

func (d *Dataset) requireState(op string, allowed ...State) error {
	for _, s := range allowed {
		if d.state == s {
			return nil
		}
	}
	return errors.Newf(errors.ErrorTypeState, "%s is not allowed in state %s", op, d.state)
}

// Close finishes the dataset. An output page already partly written by
// UpdatePage is completed; a started page never written is discarded.
// Closing twice is a no-op.
func (d *Dataset) Close() error {
	if d.state == StateClosed {
		return nil
	}
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if d.out != nil {
		if d.state == StatePageOpen {
			if d.progress != nil {
				record(d.WritePage())
			} else if d.page.RowsInUse() > 0 {
				d.logger.Warn("discarding page that was never written",
					zap.Int("page", d.page.PageNumber()),
					zap.Int("rows", d.page.RowsInUse()))
			}
		}
		if d.state == StateLayoutPending && !d.out.disconnected {
			d.logger.Warn("closing output before its layout was written")
		}
		if d.w != nil && !d.out.disconnected {
			if err := d.w.Flush(); err != nil {
				record(errors.Wrap(err, errors.ErrorTypeTransport, "failed to flush output"))
			}
		}
		record(d.out.close())
		d.logger.Info("closed output", zap.Int("pages", d.pagesWritten))
	}
	if d.in != nil {
		record(d.in.close())
		d.logger.Info("closed input", zap.Int("pages", d.pagesRead))
	}
	d.state = StateClosed
	return firstErr
}
