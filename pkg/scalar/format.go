package scalar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

// Default significant digits used when no format string is given.
const (
	DoubleDigits     = 15
	LongDoubleDigits = 15 // 18 needs native extended precision, which Go lacks
	FloatDigits      = 9
)

// Format renders v as text. With an empty format the type default is used;
// otherwise format is a C printf-style format string (length modifiers such
// as l, h, L and ll are accepted and ignored).
func Format(v any, format string) (string, error) {
	if format != "" {
		return formatWith(v, format)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case byte:
		return string([]byte{x}), nil
	case float64:
		return strconv.FormatFloat(x, 'g', DoubleDigits, 64), nil
	case LongDouble:
		return strconv.FormatFloat(float64(x), 'g', LongDoubleDigits, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', FloatDigits, 32), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int:
		return strconv.Itoa(x), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", errors.Newf(errors.ErrorTypeType, "cannot format value of type %T", v)
}

// FormatExact renders v with the shortest text that parses back to the same
// value. The ASCII page codec uses it when a column has no format string.
func FormatExact(v any) (string, error) {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case LongDouble:
		return strconv.FormatFloat(float64(x), 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	}
	return Format(v, "")
}

// Parse decodes a text token into a value of type t
func Parse(text string, t Type) (any, error) {
	switch t {
	case TypeString:
		return text, nil
	case TypeCharacter:
		return toCharacter(text)
	}
	if !t.IsValid() {
		return nil, errors.Newf(errors.ErrorTypeType, "cannot parse into invalid type %d", int(t))
	}
	if t.IsInteger() {
		out, err := parseInteger(text, t)
		if err == nil {
			return out, nil
		}
		// Integer columns written by some tools carry a trailing ".0" or an
		// exponent; accept them when the value is integral.
		f, ferr := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if ferr != nil || f != float64(int64(f)) {
			return Zero(t), err
		}
		return Cast(f, t)
	}
	return Cast(text, t)
}

// GoFormat translates a C printf-style format string to the equivalent Go
// fmt format and reports the conversion class of its first directive:
// 'd' for integers, 'f' for floats, 's' for strings, 'c' for characters.
func GoFormat(format string) (string, byte) {
	var b strings.Builder
	class := byte(0)
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			b.WriteString("%%")
			i++
			continue
		}
		b.WriteByte('%')
		i++
		for i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0 {
			b.WriteByte(format[i])
			i++
		}
		for i < len(format) && (isDigit(format[i]) || format[i] == '.') {
			b.WriteByte(format[i])
			i++
		}
		for i < len(format) && strings.IndexByte("hlLqjzt", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			break
		}
		verb := format[i]
		switch verb {
		case 'i', 'u':
			verb = 'd'
		case 'F':
			verb = 'f'
		}
		if class == 0 {
			switch verb {
			case 'd', 'x', 'X', 'o':
				class = 'd'
			case 'e', 'E', 'f', 'g', 'G':
				class = 'f'
			case 's':
				class = 's'
			case 'c':
				class = 'c'
			}
		}
		b.WriteByte(verb)
	}
	return b.String(), class
}

func formatWith(v any, format string) (string, error) {
	goFmt, class := GoFormat(format)
	var arg any
	var err error
	switch class {
	case 'd':
		if _, ok := v.(uint64); ok {
			arg = v
		} else {
			arg, err = ToInt64(v)
		}
	case 'f':
		arg, err = ToFloat64(v)
	case 'c':
		var c any
		c, err = toCharacter(v)
		if err == nil {
			arg = rune(c.(byte))
		}
	case 's':
		arg, err = Format(v, "")
	default:
		return Format(v, "")
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(goFmt, arg), nil
}
