// Package strings provides pooled string building and the token quoting
// rules shared by the header and ASCII page codecs.
package strings

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// Builder provides efficient string building on a reusable byte slice
type Builder struct {
	buf []byte
}

// NewBuilder creates a new string builder
func NewBuilder(capacity int) *Builder {
	return &Builder{
		buf: make([]byte, 0, capacity),
	}
}

// WriteString appends a string to the builder
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteBytes appends bytes to the builder
func (b *Builder) WriteBytes(data []byte) {
	b.buf = append(b.buf, data...)
}

// WriteByte appends a single byte
func (b *Builder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// Write implements io.Writer interface
func (b *Builder) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns a copy of the built string
func (b *Builder) String() string {
	return string(b.buf)
}

// Bytes returns the underlying byte slice
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Len returns the length of the built string
func (b *Builder) Len() int {
	return len(b.buf)
}

// Reset resets the builder for reuse
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// BuilderSize represents different builder sizes
type BuilderSize int

const (
	Small  BuilderSize = iota // < 1KB
	Medium                    // 1KB - 16KB
	Large                     // 16KB+
)

var (
	smallBuilderPool = &sync.Pool{
		New: func() interface{} {
			return NewBuilder(1024)
		},
	}
	mediumBuilderPool = &sync.Pool{
		New: func() interface{} {
			return NewBuilder(16 * 1024)
		},
	}
	largeBuilderPool = &sync.Pool{
		New: func() interface{} {
			return NewBuilder(64 * 1024)
		},
	}
)

func poolFor(size BuilderSize) *sync.Pool {
	switch size {
	case Medium:
		return mediumBuilderPool
	case Large:
		return largeBuilderPool
	default:
		return smallBuilderPool
	}
}

// GetBuilder retrieves a pooled builder of the specified size
func GetBuilder(size BuilderSize) *Builder {
	builder := poolFor(size).Get().(*Builder)
	builder.Reset()
	return builder
}

// PutBuilder returns a builder to the appropriate pool
func PutBuilder(builder *Builder, size BuilderSize) {
	if builder == nil {
		return
	}
	builder.Reset()
	poolFor(size).Put(builder)
}

// Sprintf formats using a pooled builder
func Sprintf(format string, args ...interface{}) string {
	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)
	fmt.Fprintf(builder, format, args...)
	return builder.String()
}

// NeedsQuotes reports whether a text token must be double-quoted to survive
// whitespace tokenization. Empty strings, any Unicode white space, quotes,
// commas, '&', backslashes and a leading '!' all need them.
func NeedsQuotes(s string) bool {
	if s == "" || s[0] == '!' {
		return true
	}
	return strings.ContainsAny(s, "\",&\\") || strings.IndexFunc(s, unicode.IsSpace) >= 0
}

// Quote returns s double-quoted when NeedsQuotes says so, escaping embedded
// quotes and backslashes. Newlines are written as \n.
func Quote(s string) string {
	if !NeedsQuotes(s) {
		return s
	}
	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)
	_ = builder.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			_ = builder.WriteByte('\\')
			_ = builder.WriteByte(c)
		case '\n':
			builder.WriteString(`\n`)
		default:
			_ = builder.WriteByte(c)
		}
	}
	_ = builder.WriteByte('"')
	return builder.String()
}

// Unescape reverses the escaping applied by Quote to the inside of a quoted token
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	builder := GetBuilder(Small)
	defer PutBuilder(builder, Small)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				_ = builder.WriteByte('\n')
			case 't':
				_ = builder.WriteByte('\t')
			default:
				_ = builder.WriteByte(s[i])
			}
			continue
		}
		_ = builder.WriteByte(c)
	}
	return builder.String()
}
