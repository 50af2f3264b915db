// Package codec encodes and decodes the header and the pages of a dataset.
//
// The header is text in every mode. Pages are either ASCII, one or more lines
// per row, or binary, with an optional row count followed by parameters,
// arrays and the flagged rows in row-major or column-major order. All offsets
// reported by the codecs are absolute stream positions so that a dataset can
// seek back to a page or rewrite a row count in place.
package codec

import (
	"bufio"
	"io"
	"strings"
)

// Reader is a buffered reader that knows its absolute position
type Reader struct {
	br     *bufio.Reader
	offset int64
}

// NewReader wraps r; offset is the position r starts at
func NewReader(r io.Reader, offset int64) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024), offset: offset}
}

// Reset discards buffered data and continues from r at offset
func (r *Reader) Reset(src io.Reader, offset int64) {
	r.br.Reset(src)
	r.offset = offset
}

// Offset returns the position of the next unread byte
func (r *Reader) Offset() int64 { return r.offset }

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.br.Read(p)
	r.offset += int64(n)
	return n, err
}

// ReadString reads through the next delim, like bufio.Reader.ReadString
func (r *Reader) ReadString(delim byte) (string, error) {
	s, err := r.br.ReadString(delim)
	r.offset += int64(len(s))
	return s, err
}

// ReadByte reads one byte
func (r *Reader) ReadByte() (byte, error) {
	c, err := r.br.ReadByte()
	if err == nil {
		r.offset++
	}
	return c, err
}

// Peek returns the next n bytes without consuming them
func (r *Reader) Peek(n int) ([]byte, error) { return r.br.Peek(n) }

// ReadLine reads one line without its terminator. A last line without a
// newline is returned with a nil error; io.EOF means nothing was left.
func (r *Reader) ReadLine() (string, error) {
	s, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && s != "" {
			return strings.TrimRight(s, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// Writer is a buffered writer that knows its absolute position
type Writer struct {
	bw     *bufio.Writer
	offset int64
}

// NewWriter wraps w; offset is the position w starts at
func NewWriter(w io.Writer, offset int64) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 64*1024), offset: offset}
}

// Reset discards buffered data and continues into w at offset
func (w *Writer) Reset(dst io.Writer, offset int64) {
	w.bw.Reset(dst)
	w.offset = offset
}

// Offset returns the position the next byte will be written at
func (w *Writer) Offset() int64 { return w.offset }

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.bw.Write(p)
	w.offset += int64(n)
	return n, err
}

// WriteString writes s
func (w *Writer) WriteString(s string) (int, error) {
	n, err := w.bw.WriteString(s)
	w.offset += int64(n)
	return n, err
}

// WriteByte writes one byte
func (w *Writer) WriteByte(c byte) error {
	err := w.bw.WriteByte(c)
	if err == nil {
		w.offset++
	}
	return err
}

// Flush writes buffered data to the underlying writer
func (w *Writer) Flush() error { return w.bw.Flush() }
