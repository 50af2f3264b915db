// Package mmap provides a memory-mapped, seekable reader for plain input files
package mmap

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

// Reader reads a memory-mapped file. It implements io.ReadSeekCloser and
// io.ReaderAt, so datasets can use it wherever they use an *os.File for input.
type Reader struct {
	file *os.File
	data []byte
	*bytes.Reader

	mu     sync.Mutex
	closed bool
}

// Open maps filename read-only. Empty files cannot be mapped and are rejected.
func Open(filename string) (*Reader, error) {
	file, err := os.Open(filename) //nolint:gosec // G304: path chosen by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to open file")
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to stat file")
	}

	size := stat.Size()
	if size == 0 {
		_ = file.Close()
		return nil, errors.Newf(errors.ErrorTypeTransport, "cannot map empty file %s", filename)
	}
	if int64(int(size)) != size {
		_ = file.Close()
		return nil, errors.Newf(errors.ErrorTypeTransport, "file %s is too large to map", filename)
	}

	data, err := mmap(int(file.Fd()), int(size))
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to mmap file")
	}

	// advice only; reads are correct without it
	_ = adviseSequential(data)

	return &Reader{
		file:   file,
		data:   data,
		Reader: bytes.NewReader(data),
	}, nil
}

// Bytes returns the mapped content. It is invalid after Close.
func (r *Reader) Bytes() []byte { return r.data }

// Size returns the mapped size
func (r *Reader) Size() int64 { return int64(len(r.data)) }

// Close unmaps the file and closes it
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.Reader = bytes.NewReader(nil)

	var first error
	if err := munmap(r.data); err != nil {
		first = errors.Wrap(err, errors.ErrorTypeTransport, "failed to unmap file")
	}
	r.data = nil
	if err := r.file.Close(); err != nil && first == nil {
		first = errors.Wrap(err, errors.ErrorTypeTransport, "failed to close file")
	}
	return first
}

var _ io.ReadSeekCloser = (*Reader)(nil)
var _ io.ReaderAt = (*Reader)(nil)
