package table

import (
	"reflect"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

// MultiIndexIterator walks every index tuple of an array with the given
// dimensions in row-major order, last dimension fastest, and yields the flat
// offset of each tuple.
//
//	it := NewMultiIndexIterator([]int{2, 3})
//	for it.Next() {
//		_ = it.Index()  // [0 0] [0 1] [0 2] [1 0] ...
//		_ = it.Offset() // 0 1 2 3 ...
//	}
type MultiIndexIterator struct {
	dims    []int
	counter []int
	offset  int
	started bool
	done    bool
}

// NewMultiIndexIterator returns an iterator positioned before the first tuple
func NewMultiIndexIterator(dims []int) *MultiIndexIterator {
	return &MultiIndexIterator{
		dims:    append([]int(nil), dims...),
		counter: make([]int, len(dims)),
	}
}

// Next advances to the next tuple and reports whether one exists
func (it *MultiIndexIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		if Elements(it.dims) == 0 {
			it.done = true
			return false
		}
		return true
	}
	for d := len(it.dims) - 1; d >= 0; d-- {
		it.counter[d]++
		if it.counter[d] < it.dims[d] {
			it.offset++
			return true
		}
		it.counter[d] = 0
	}
	it.done = true
	return false
}

// Index returns the current tuple; the slice is reused between calls
func (it *MultiIndexIterator) Index() []int { return it.counter }

// Offset returns the flat offset of the current tuple
func (it *MultiIndexIterator) Offset() int { return it.offset }

// Elements returns the product of dims, 0 for no dimensions
func Elements(dims []int) int {
	if len(dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}

// flatten lays out data with the given dimensions as one flat slice of
// values. A flat slice is copied directly; nested slices are walked with a
// MultiIndexIterator.
func flatten(data any, dims []int) ([]any, error) {
	n := Elements(dims)
	out := make([]any, n)
	if n == 0 {
		return out, nil
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Newf(errors.ErrorTypeType, "array data must be a slice, got %T", data)
	}
	if len(dims) == 1 || !isNested(rv) {
		if rv.Len() < n {
			return nil, errors.Newf(errors.ErrorTypeBounds, "array data holds %d elements, %d required", rv.Len(), n)
		}
		for i := 0; i < n; i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	it := NewMultiIndexIterator(dims)
	for it.Next() {
		v := rv
		for d, i := range it.Index() {
			for v.Kind() == reflect.Interface {
				v = v.Elem()
			}
			if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
				return nil, errors.Newf(errors.ErrorTypeType, "array data is not nested %d levels deep", len(dims))
			}
			if i >= v.Len() {
				return nil, errors.Newf(errors.ErrorTypeBounds, "dimension %d of array data holds %d elements, %d required",
					d, v.Len(), dims[d])
			}
			v = v.Index(i)
		}
		out[it.Offset()] = v.Interface()
	}
	return out, nil
}

func isNested(rv reflect.Value) bool {
	if rv.Len() == 0 {
		return false
	}
	first := rv.Index(0)
	for first.Kind() == reflect.Interface {
		first = first.Elem()
	}
	return first.Kind() == reflect.Slice || first.Kind() == reflect.Array
}
