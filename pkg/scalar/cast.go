package scalar

import (
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

// Cast converts v to the Go representation of dst.
//
// Float to integer truncates toward zero, integer to float may round above
// the mantissa width, narrowing integer conversions wrap. Anything casts to
// string using the default precision of its type; string to a numeric type
// parses and fails when the text is not a literal of that type. Cast never
// panics.
func Cast(v any, dst Type) (any, error) {
	if !dst.IsValid() {
		return nil, errors.Newf(errors.ErrorTypeType, "cannot cast to invalid type %d", int(dst))
	}
	switch dst {
	case TypeString:
		return Format(v, "")
	case TypeCharacter:
		return toCharacter(v)
	case TypeLongDouble:
		f, err := ToFloat64(v)
		return LongDouble(f), err
	case TypeDouble:
		return ToFloat64(v)
	case TypeFloat:
		f, err := ToFloat64(v)
		return float32(f), err
	}

	if s, ok := v.(string); ok {
		return parseInteger(s, dst)
	}
	if f, ok := floatOf(v); ok {
		if dst.IsUnsigned() && f >= 0 {
			return narrowUnsigned(truncUint(f), dst), nil
		}
		return narrowSigned(truncInt(f), dst), nil
	}
	if dst.IsUnsigned() {
		u, err := ToUint64(v)
		if err != nil {
			return nil, err
		}
		return narrowUnsigned(u, dst), nil
	}
	i, err := ToInt64(v)
	if err != nil {
		return nil, err
	}
	return narrowSigned(i, dst), nil
}

// CastFormat is Cast with an explicit C-style format used when dst is
// TypeString. An empty format falls back to Cast.
func CastFormat(v any, dst Type, format string) (any, error) {
	if dst != TypeString || format == "" {
		return Cast(v, dst)
	}
	return Format(v, format)
}

// ToFloat64 converts any supported scalar to float64
func ToFloat64(v any) (float64, error) {
	if f, ok := floatOf(v); ok {
		return f, nil
	}
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil && !isRangeError(err) {
			return 0, errors.Wrapf(err, errors.ErrorTypeType, "%q is not a floating point literal", x)
		}
		return f, nil
	}
	return 0, errors.Newf(errors.ErrorTypeType, "cannot convert %T to a number", v)
}

// ToInt64 converts any supported scalar to int64
func ToInt64(v any) (int64, error) {
	if f, ok := floatOf(v); ok {
		return truncInt(f), nil
	}
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		out, err := parseInteger(x, TypeLong64)
		if err != nil {
			return 0, err
		}
		return out.(int64), nil
	}
	return 0, errors.Newf(errors.ErrorTypeType, "cannot convert %T to an integer", v)
}

// ToUint64 converts any supported scalar to uint64. Negative signed values wrap.
func ToUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case uint:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	case string:
		out, err := parseInteger(x, TypeULong64)
		if err != nil {
			return 0, err
		}
		return out.(uint64), nil
	}
	if f, ok := floatOf(v); ok {
		if f >= 0 {
			return truncUint(f), nil
		}
		return uint64(truncInt(f)), nil
	}
	i, err := ToInt64(v)
	if err != nil {
		return 0, err
	}
	return uint64(i), nil
}

// InWindow reports whether v lies in the inclusive window [lo, hi].
// NaN and infinite values never do.
func InWindow(v, lo, hi float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= lo && v <= hi
}

// IsNumberToken reports whether s (ignoring surrounding blanks) is a
// syntactically valid decimal number: optional sign, digits with an optional
// decimal point, and an optional exponent.
func IsNumberToken(s string) bool {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E' || s[i] == 'd' || s[i] == 'D') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func floatOf(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case LongDouble:
		return float64(x), true
	}
	return 0, false
}

func isRangeError(err error) bool {
	var numErr *strconv.NumError
	return errors.As(err, &numErr) && numErr.Err == strconv.ErrRange
}

// truncInt truncates toward zero, saturating where Go's conversion would be
// implementation defined.
func truncInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func truncUint(f float64) uint64 {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(f)
}

func narrowSigned(i int64, dst Type) any {
	switch dst {
	case TypeLong64:
		return i
	case TypeULong64:
		return uint64(i)
	case TypeLong:
		return int32(i)
	case TypeULong:
		return uint32(i)
	case TypeShort:
		return int16(i)
	case TypeUShort:
		return uint16(i)
	}
	return i
}

func narrowUnsigned(u uint64, dst Type) any {
	switch dst {
	case TypeLong64:
		return int64(u)
	case TypeULong64:
		return u
	case TypeLong:
		return int32(u)
	case TypeULong:
		return uint32(u)
	case TypeShort:
		return int16(u)
	case TypeUShort:
		return uint16(u)
	}
	return u
}

func parseInteger(s string, dst Type) (any, error) {
	text := strings.TrimSpace(s)
	if dst.IsUnsigned() {
		u, err := strconv.ParseUint(strings.TrimPrefix(text, "+"), 10, 64)
		if err != nil {
			return Zero(dst), errors.Wrapf(err, errors.ErrorTypeType, "%q is not a %s literal", s, dst)
		}
		return narrowUnsigned(u, dst), nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Zero(dst), errors.Wrapf(err, errors.ErrorTypeType, "%q is not a %s literal", s, dst)
	}
	return narrowSigned(i, dst), nil
}

func toCharacter(v any) (any, error) {
	switch x := v.(type) {
	case byte:
		return x, nil
	case string:
		if x == "" {
			return byte(0), nil
		}
		return x[0], nil
	}
	i, err := ToInt64(v)
	if err != nil {
		return byte(0), err
	}
	return byte(i), nil
}
