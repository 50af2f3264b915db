package scalar

import (
	"reflect"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

// MaxVectorLen bounds the number of elements a single buffer may hold.
const MaxVectorLen = 1 << 36

// Element is the set of Go types backing a Vector
type Element interface {
	~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64 | ~uint8 | ~string
}

// Vector is an owned, typed buffer of scalar values. Each ScalarType has its
// own backing slice type; string slots own ordinary Go strings so replacing or
// truncating them needs no manual release.
type Vector interface {
	// Type returns the scalar type of the elements
	Type() Type
	// Len returns the number of slots
	Len() int
	// Value returns slot i in the Go representation of Type()
	Value(i int) any
	// Set casts v to Type() and stores it in slot i
	Set(i int, v any) error
	// Float64 returns slot i as a float64; strings are parsed
	Float64(i int) (float64, error)
	// Text returns slot i formatted with the type default
	Text(i int) string
	// Resize changes the number of slots, preserving the common prefix and
	// zero-filling new slots
	Resize(n int) error
	// Zero resets every slot to the zero value
	Zero()
	// ZeroAt resets slot i to the zero value
	ZeroAt(i int)
	// Move copies slot src over slot dst
	Move(dst, src int)
	// Slice returns the backing slice ([]float64, []string, ...) without copying
	Slice() any
	// Clone returns a deep copy
	Clone() Vector
	// Gather returns a new vector holding the given slots in order
	Gather(slots []int) Vector
	// CopyFrom assigns the first n elements of a slice, casting when the
	// element type differs
	CopyFrom(src any, n int) error
}

type vector[T Element] struct {
	typ  Type
	data []T
}

// NewVector allocates a zeroed buffer of n slots for type t
func NewVector(t Type, n int) (Vector, error) {
	if n < 0 {
		return nil, errors.Newf(errors.ErrorTypeBounds, "negative vector length %d", n)
	}
	if n > MaxVectorLen {
		return nil, errors.Newf(errors.ErrorTypeAllocation, "cannot allocate %d elements of %s", n, t)
	}
	switch t {
	case TypeLongDouble:
		return &vector[LongDouble]{typ: t, data: make([]LongDouble, n)}, nil
	case TypeDouble:
		return &vector[float64]{typ: t, data: make([]float64, n)}, nil
	case TypeFloat:
		return &vector[float32]{typ: t, data: make([]float32, n)}, nil
	case TypeLong64:
		return &vector[int64]{typ: t, data: make([]int64, n)}, nil
	case TypeULong64:
		return &vector[uint64]{typ: t, data: make([]uint64, n)}, nil
	case TypeLong:
		return &vector[int32]{typ: t, data: make([]int32, n)}, nil
	case TypeULong:
		return &vector[uint32]{typ: t, data: make([]uint32, n)}, nil
	case TypeShort:
		return &vector[int16]{typ: t, data: make([]int16, n)}, nil
	case TypeUShort:
		return &vector[uint16]{typ: t, data: make([]uint16, n)}, nil
	case TypeString:
		return &vector[string]{typ: t, data: make([]string, n)}, nil
	case TypeCharacter:
		return &vector[byte]{typ: t, data: make([]byte, n)}, nil
	}
	return nil, errors.Newf(errors.ErrorTypeType, "unknown data type %d", int(t))
}

// VectorFrom builds a Vector of type t holding a copy of a slice, casting
// elements as needed.
func VectorFrom(t Type, src any) (Vector, error) {
	n, err := sliceLen(src)
	if err != nil {
		return nil, err
	}
	v, err := NewVector(t, n)
	if err != nil {
		return nil, err
	}
	if err := v.CopyFrom(src, n); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *vector[T]) Type() Type { return v.typ }
func (v *vector[T]) Len() int   { return len(v.data) }

func (v *vector[T]) Value(i int) any {
	return v.data[i]
}

func (v *vector[T]) Set(i int, val any) error {
	if i < 0 || i >= len(v.data) {
		return errors.Newf(errors.ErrorTypeBounds, "index %d out of range [0,%d)", i, len(v.data))
	}
	if x, ok := val.(T); ok {
		v.data[i] = x
		return nil
	}
	cast, err := Cast(val, v.typ)
	if err != nil {
		return err
	}
	v.data[i] = cast.(T)
	return nil
}

func (v *vector[T]) Float64(i int) (float64, error) {
	return ToFloat64(any(v.data[i]))
}

func (v *vector[T]) Text(i int) string {
	s, _ := Format(any(v.data[i]), "")
	return s
}

func (v *vector[T]) Resize(n int) error {
	if n < 0 {
		return errors.Newf(errors.ErrorTypeBounds, "negative vector length %d", n)
	}
	if n > MaxVectorLen {
		return errors.Newf(errors.ErrorTypeAllocation, "cannot allocate %d elements of %s", n, v.typ)
	}
	if n <= cap(v.data) {
		old := len(v.data)
		v.data = v.data[:n]
		if n > old {
			clear(v.data[old:])
		}
		return nil
	}
	grown := make([]T, n)
	copy(grown, v.data)
	v.data = grown
	return nil
}

func (v *vector[T]) Zero() {
	clear(v.data)
}

func (v *vector[T]) ZeroAt(i int) {
	var zero T
	v.data[i] = zero
}

func (v *vector[T]) Move(dst, src int) {
	v.data[dst] = v.data[src]
}

func (v *vector[T]) Slice() any {
	return v.data
}

func (v *vector[T]) Clone() Vector {
	out := make([]T, len(v.data))
	copy(out, v.data)
	return &vector[T]{typ: v.typ, data: out}
}

func (v *vector[T]) Gather(slots []int) Vector {
	out := make([]T, len(slots))
	for i, slot := range slots {
		out[i] = v.data[slot]
	}
	return &vector[T]{typ: v.typ, data: out}
}

func (v *vector[T]) CopyFrom(src any, n int) error {
	if n > len(v.data) {
		return errors.Newf(errors.ErrorTypeBounds, "copy of %d elements into vector of %d", n, len(v.data))
	}
	if other, ok := src.(Vector); ok {
		src = other.Slice()
	}
	if typed, ok := src.([]T); ok {
		if n > len(typed) {
			return errors.Newf(errors.ErrorTypeBounds, "source holds %d elements, %d requested", len(typed), n)
		}
		copy(v.data[:n], typed[:n])
		return nil
	}
	rv := reflect.ValueOf(src)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return errors.Newf(errors.ErrorTypeType, "expected a slice, got %T", src)
	}
	if n > rv.Len() {
		return errors.Newf(errors.ErrorTypeBounds, "source holds %d elements, %d requested", rv.Len(), n)
	}
	for i := 0; i < n; i++ {
		if err := v.Set(i, rv.Index(i).Interface()); err != nil {
			return errors.Annotatef(err, errors.ErrorTypeType, "element %d", i)
		}
	}
	return nil
}

func sliceLen(src any) (int, error) {
	if other, ok := src.(Vector); ok {
		return other.Len(), nil
	}
	rv := reflect.ValueOf(src)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, errors.Newf(errors.ErrorTypeType, "expected a slice, got %T", src)
	}
	return rv.Len(), nil
}
