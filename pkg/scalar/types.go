// Package scalar defines the closed set of scalar types stored in SDDS files,
// their byte widths, the casting matrix between them and text, and the typed
// buffers that hold column, array and parameter values in memory.
//
// Go representations:
//
//	longdouble  LongDouble (float64 precision; 16 bytes on the wire)
//	double      float64
//	float       float32
//	long64      int64
//	ulong64     uint64
//	long        int32
//	ulong       uint32
//	short       int16
//	ushort      uint16
//	string      string
//	character   byte
package scalar

import (
	"strings"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

// Type identifies one of the scalar types. The numeric values match the type
// codes used by the file format.
type Type int

const (
	TypeLongDouble Type = iota + 1
	TypeDouble
	TypeFloat
	TypeLong64
	TypeULong64
	TypeLong
	TypeULong
	TypeShort
	TypeUShort
	TypeString
	TypeCharacter
)

// TypeInvalid is returned by lookups that fail.
const TypeInvalid Type = 0

// LongDouble holds an 80-bit extended float. Go has no native extended
// precision, so values carry float64 precision in memory.
type LongDouble float64

var typeNames = [...]string{
	TypeLongDouble: "longdouble",
	TypeDouble:     "double",
	TypeFloat:      "float",
	TypeLong64:     "long64",
	TypeULong64:    "ulong64",
	TypeLong:       "long",
	TypeULong:      "ulong",
	TypeShort:      "short",
	TypeUShort:     "ushort",
	TypeString:     "string",
	TypeCharacter:  "character",
}

var typeWidths = [...]int{
	TypeLongDouble: 16,
	TypeDouble:     8,
	TypeFloat:      4,
	TypeLong64:     8,
	TypeULong64:    8,
	TypeLong:       4,
	TypeULong:      4,
	TypeShort:      2,
	TypeUShort:     2,
	TypeString:     0,
	TypeCharacter:  1,
}

// AllTypes lists every valid type in type-code order.
func AllTypes() []Type {
	out := make([]Type, 0, len(typeNames)-1)
	for t := TypeLongDouble; t <= TypeCharacter; t++ {
		out = append(out, t)
	}
	return out
}

// IsValid reports whether t is one of the defined types
func (t Type) IsValid() bool {
	return t >= TypeLongDouble && t <= TypeCharacter
}

func (t Type) String() string {
	if !t.IsValid() {
		return "invalid"
	}
	return typeNames[t]
}

// IsNumeric reports whether values of t are numbers (characters are not)
func (t Type) IsNumeric() bool {
	return t.IsValid() && t != TypeString && t != TypeCharacter
}

// IsInteger reports whether t is one of the integer types
func (t Type) IsInteger() bool {
	switch t {
	case TypeLong64, TypeULong64, TypeLong, TypeULong, TypeShort, TypeUShort:
		return true
	}
	return false
}

// IsUnsigned reports whether t is one of the unsigned integer types
func (t Type) IsUnsigned() bool {
	return t == TypeULong64 || t == TypeULong || t == TypeUShort
}

// IsFloat reports whether t is one of the floating point types
func (t Type) IsFloat() bool {
	return t == TypeLongDouble || t == TypeDouble || t == TypeFloat
}

// Width returns the size in bytes of one binary value of type t. Strings are
// variable length and report 0.
func Width(t Type) int {
	if !t.IsValid() {
		return 0
	}
	return typeWidths[t]
}

// ParseType maps a type name as written in declarations to a Type.
// Names are case-insensitive.
func ParseType(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for t := TypeLongDouble; t <= TypeCharacter; t++ {
		if typeNames[t] == n {
			return t, nil
		}
	}
	return TypeInvalid, errors.Newf(errors.ErrorTypeType, "unknown data type %q", name)
}

// TypeOf returns the scalar type whose Go representation matches v.
func TypeOf(v any) (Type, bool) {
	switch v.(type) {
	case LongDouble:
		return TypeLongDouble, true
	case float64:
		return TypeDouble, true
	case float32:
		return TypeFloat, true
	case int64:
		return TypeLong64, true
	case uint64:
		return TypeULong64, true
	case int32:
		return TypeLong, true
	case uint32:
		return TypeULong, true
	case int16:
		return TypeShort, true
	case uint16:
		return TypeUShort, true
	case string:
		return TypeString, true
	case byte:
		return TypeCharacter, true
	}
	return TypeInvalid, false
}

// Zero returns the zero value of t in its Go representation
func Zero(t Type) any {
	switch t {
	case TypeLongDouble:
		return LongDouble(0)
	case TypeDouble:
		return float64(0)
	case TypeFloat:
		return float32(0)
	case TypeLong64:
		return int64(0)
	case TypeULong64:
		return uint64(0)
	case TypeLong:
		return int32(0)
	case TypeULong:
		return uint32(0)
	case TypeShort:
		return int16(0)
	case TypeUShort:
		return uint16(0)
	case TypeString:
		return ""
	case TypeCharacter:
		return byte(0)
	}
	return nil
}
