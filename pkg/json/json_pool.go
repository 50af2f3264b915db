// Package json provides pooled JSON serialization and the JSON rendering of
// SDDS pages used by the command line tools.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// maxPooledBuffer is the largest buffer returned to the pool
const maxPooledBuffer = 1 << 20

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// NewEncoder returns an encoder that does not escape HTML characters, so
// column names such as "x<y" survive unchanged.
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// MarshalToWriter encodes v followed by a newline
func MarshalToWriter(w io.Writer, v interface{}) error {
	return NewEncoder(w).Encode(v)
}

// StreamingEncoder writes a sequence of values either as one JSON array or as
// line-delimited JSON. Values are staged in a pooled buffer so a failed
// encode leaves no partial output behind.
type StreamingEncoder struct {
	writer  io.Writer
	buf     *bytes.Buffer
	encoder *gojson.Encoder
	count   int
	isArray bool
	pretty  bool
	closed  bool
}

// NewStreamingEncoder creates a new streaming encoder. With isArray the
// values are wrapped in "[" and "]" and separated by commas.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	buf := GetBuffer()
	return &StreamingEncoder{
		writer:  w,
		buf:     buf,
		encoder: NewEncoder(buf),
		isArray: isArray,
	}
}

// SetPretty enables indentation
func (se *StreamingEncoder) SetPretty(pretty bool, indent string) {
	se.pretty = pretty
	if pretty {
		se.encoder.SetIndent("", indent)
	} else {
		se.encoder.SetIndent("", "")
	}
}

// Count returns the number of values written
func (se *StreamingEncoder) Count() int { return se.count }

// Encode writes one value
func (se *StreamingEncoder) Encode(v interface{}) error {
	se.buf.Reset()
	if se.isArray {
		if se.count == 0 {
			se.buf.WriteByte('[')
		} else {
			se.buf.WriteByte(',')
		}
		if se.pretty {
			se.buf.WriteByte('\n')
		}
	}
	if err := se.encoder.Encode(v); err != nil {
		return err
	}
	out := se.buf.Bytes()
	if se.isArray {
		// the array separator replaces the encoder's newline
		out = bytes.TrimSuffix(out, []byte{'\n'})
	}
	if _, err := se.writer.Write(out); err != nil {
		return err
	}
	se.count++
	return nil
}

// Close terminates the array, if any, and releases the staging buffer
func (se *StreamingEncoder) Close() error {
	if se.closed {
		return nil
	}
	se.closed = true
	defer PutBuffer(se.buf)
	if !se.isArray {
		return nil
	}
	var tail string
	switch {
	case se.count == 0:
		tail = "[]\n"
	case se.pretty:
		tail = "\n]\n"
	default:
		tail = "]\n"
	}
	_, err := io.WriteString(se.writer, tail)
	return err
}
