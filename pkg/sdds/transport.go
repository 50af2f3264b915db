package sdds

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sdds/pkg/compression"
	"github.com/ajitpratap0/sdds/pkg/config"
	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/mmap"
)

// input is the byte source of an input dataset
type input struct {
	reader io.Reader
	// seeker repositions reader; nil for pipes and compressed streams
	seeker  io.Seeker
	closers []io.Closer
}

func (in *input) close() error {
	var firstErr error
	for _, c := range in.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeTransport, "failed to close input")
		}
	}
	in.closers = nil
	return firstErr
}

// openInput opens path for reading. Compressed files are decompressed on
// the fly; plain files are memory-mapped when cfg.UseMmap is set.
func openInput(path string, cfg *config.Config, log *zap.Logger) (*input, error) {
	if path == StdStream {
		return &input{reader: os.Stdin}, nil
	}
	alg := compression.FromPath(path)
	if alg != compression.None {
		f, err := os.Open(path) //nolint:gosec // G304: path chosen by the caller
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeTransport, "failed to open %s", path)
		}
		rc, err := compression.NewReader(alg, f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return &input{reader: rc, closers: []io.Closer{rc, f}}, nil
	}
	if cfg.UseMmap && mmap.Supported {
		m, err := mmap.Open(path)
		if err == nil {
			return &input{reader: m, seeker: m, closers: []io.Closer{m}}, nil
		}
		log.Debug("falling back to buffered reads", zap.Error(err))
	}
	f, err := os.Open(path) //nolint:gosec // G304: path chosen by the caller
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeTransport, "failed to open %s", path)
	}
	return &input{reader: f, seeker: f, closers: []io.Closer{f}}, nil
}

// readerInput wraps a caller supplied reader, which stays open after Close
func readerInput(r io.Reader) *input {
	in := &input{reader: r}
	if s, ok := r.(io.Seeker); ok {
		// only usable when the reader starts at offset 0
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil && pos == 0 {
			in.seeker = s
		}
	}
	return in
}

// output is the byte sink of an output dataset
type output struct {
	path      string
	algorithm compression.Algorithm
	// file is the plain file behind the sink, nil for streams
	file   *os.File
	writer io.Writer
	// at rewrites row counts in place; nil when the sink cannot
	at           io.WriterAt
	compressor   io.WriteCloser
	locked       bool
	lockFiles    bool
	disconnected bool
}

// createOutput opens path for writing. With keep the existing content is
// preserved for appending; otherwise the file is truncated after it has
// been locked.
func createOutput(path string, cfg *config.Config, keep bool) (*output, error) {
	if path == StdStream {
		return &output{path: path, algorithm: compression.None, writer: os.Stdout}, nil
	}
	alg := compression.FromPath(path)
	if keep && alg != compression.None {
		return nil, errors.Newf(errors.ErrorTypeTransport, "cannot append to compressed file %s", path)
	}
	flags := os.O_RDWR
	if !keep {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // G304: path chosen by the caller
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeTransport, "failed to open %s for writing", path)
	}
	out := &output{path: path, algorithm: alg, file: f, lockFiles: cfg.LockFiles}
	if err := out.lock(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if !keep {
		if err := f.Truncate(0); err != nil {
			_ = out.close()
			return nil, errors.Wrapf(err, errors.ErrorTypeTransport, "failed to truncate %s", path)
		}
	}
	if alg == compression.None {
		out.writer = f
		out.at = f
		return out, nil
	}
	level, err := compression.ParseLevel(cfg.CompressionLevel)
	if err != nil {
		_ = out.close()
		return nil, err
	}
	cw, err := compression.NewWriter(alg, f, level)
	if err != nil {
		_ = out.close()
		return nil, err
	}
	out.compressor = cw
	out.writer = cw
	return out, nil
}

// writerOutput wraps a caller supplied writer, which stays open after Close
func writerOutput(w io.Writer) *output {
	out := &output{path: StdStream, algorithm: compression.None, writer: w}
	if at, ok := w.(io.WriterAt); ok {
		out.at = at
	}
	return out
}

func (o *output) lock() error {
	if !o.lockFiles || o.file == nil {
		return nil
	}
	if err := lockFile(o.file); err != nil {
		return err
	}
	o.locked = true
	return nil
}

func (o *output) unlock() error {
	if !o.locked {
		return nil
	}
	o.locked = false
	return unlockFile(o.file)
}

// seekable reports whether the output supports in-place updates
func (o *output) seekable() bool {
	return o.at != nil && !o.disconnected
}

func (o *output) close() error {
	var firstErr error
	record := func(err error, msg string) {
		if err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeTransport, msg)
		}
	}
	if o.compressor != nil {
		record(o.compressor.Close(), "failed to finish compressed stream")
		o.compressor = nil
	}
	if o.file != nil && !o.disconnected {
		record(o.unlock(), "failed to unlock output")
		record(o.file.Close(), "failed to close output")
	}
	o.file = nil
	return firstErr
}

// disconnect releases the file handle, keeping the logical position
func (o *output) disconnect() error {
	if o.file == nil || o.compressor != nil {
		return errors.New(errors.ErrorTypeTransport, "only plain files can be disconnected")
	}
	if o.disconnected {
		return errors.New(errors.ErrorTypeState, "output is already disconnected")
	}
	if err := o.unlock(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to unlock output")
	}
	if err := o.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to close output")
	}
	o.disconnected = true
	return nil
}

// reconnect reopens the file and positions it at offset
func (o *output) reconnect(offset int64) error {
	if !o.disconnected {
		return errors.New(errors.ErrorTypeState, "output is not disconnected")
	}
	f, err := os.OpenFile(o.path, os.O_RDWR, 0) //nolint:gosec // G304: path chosen by the caller
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeTransport, "failed to reopen %s", o.path)
	}
	o.file = f
	if err := o.lock(); err != nil {
		_ = f.Close()
		o.file = nil
		return err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		_ = o.unlock()
		_ = f.Close()
		o.file = nil
		return errors.Wrapf(err, errors.ErrorTypeTransport, "failed to seek %s", o.path)
	}
	o.writer = f
	o.at = f
	o.disconnected = false
	return nil
}
