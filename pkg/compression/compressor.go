// Package compression provides the stream transports a dataset file may be
// wrapped in. The transport is chosen from the file name suffix.
//
// # Overview
//
// The compression package provides:
//   - gzip (.gz), xz (.xz), raw lzma (.lzma), zstandard (.zst), lz4 (.lz4),
//     framed snappy (.sz) and s2 (.s2) streams around a plain reader or writer
//   - Configurable compression levels (Fastest, Default, Better, Best)
//   - The transport rules datasets depend on: only uncompressed files are
//     seekable, and xz/lzma outputs are always binary
//
// # Basic Usage
//
//	alg := compression.FromPath("run.sdds.xz")
//	w, err := compression.NewWriter(alg, file, compression.Default)
//	...
//	r, err := compression.NewReader(compression.FromPath(name), file)
//
// # Performance Characteristics
//
// Speed (fastest to slowest): S2 > LZ4 > Snappy > Zstd > Gzip > Xz/Lzma
// Compression ratio (best to worst): Xz/Lzma > Zstd > Gzip > S2 > LZ4 > Snappy
package compression

import (
	"bufio"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

// Algorithm represents a stream compression algorithm
type Algorithm string

const (
	// None represents a plain, seekable file
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Xz represents xz compression
	Xz Algorithm = "xz"
	// Lzma represents raw lzma compression
	Lzma Algorithm = "lzma"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// S2 represents framed s2 compression
	S2 Algorithm = "s2"
)

// suffixes maps file name endings to algorithms
var suffixes = []struct {
	suffix    string
	algorithm Algorithm
}{
	{".gz", Gzip},
	{".xz", Xz},
	{".lzma", Lzma},
	{".zst", Zstd},
	{".lz4", LZ4},
	{".sz", Snappy},
	{".s2", S2},
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// ParseLevel maps a configuration keyword to a Level; empty means Default
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return Default, nil
	case "fastest":
		return Fastest, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	}
	return Default, errors.Newf(errors.ErrorTypeConfig, "unknown compression level %q", s)
}

// FromPath returns the algorithm implied by the suffix of a file name
func FromPath(path string) Algorithm {
	lower := strings.ToLower(path)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.algorithm
		}
	}
	return None
}

// Seekable reports whether files using the algorithm support random access
func (a Algorithm) Seekable() bool { return a == None || a == "" }

// ForcesBinary reports whether outputs using the algorithm must be written
// in binary mode
func (a Algorithm) ForcesBinary() bool { return a == Xz || a == Lzma }

// NewReader wraps r in a decompressing reader. Closing the result does not
// close r.
func NewReader(a Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch a {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to open gzip stream")
		}
		return zr, nil
	case Xz:
		xr, err := xz.NewReader(bufio.NewReader(r))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to open xz stream")
		}
		return io.NopCloser(xr), nil
	case Lzma:
		lr, err := lzma.NewReader(bufio.NewReader(r))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to open lzma stream")
		}
		return io.NopCloser(lr), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to open zstd stream")
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeTransport, "unsupported compression algorithm %q", a)
}

// NewWriter wraps w in a compressing writer. Closing the result flushes the
// stream trailer but does not close w.
func NewWriter(a Algorithm, w io.Writer, level Level) (io.WriteCloser, error) {
	switch a {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		zw, err := gzip.NewWriterLevel(w, mapGzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to create gzip stream")
		}
		return zw, nil
	case Xz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to create xz stream")
		}
		return xw, nil
	case Lzma:
		lw, err := lzma.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to create lzma stream")
		}
		return lw, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to create zstd stream")
		}
		return enc, nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to configure lz4 stream")
		}
		return lw, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case S2:
		return s2.NewWriter(w, s2Level(level)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeTransport, "unsupported compression algorithm %q", a)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func s2Level(level Level) s2.WriterOption {
	switch level {
	case Better:
		return s2.WriterBetterCompression()
	case Best:
		return s2.WriterBestCompression()
	default:
		return s2.WriterConcurrency(1)
	}
}
