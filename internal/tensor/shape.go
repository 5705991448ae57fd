package tensor

import "fmt"

// Shape describes the dimensions of a tensor. Supported ranks are 1
// (vectors), 2 (sample matrices [batch, features]) and 4 (image batches
// [batch, channels, rows, cols]). Layout is row-major.
type Shape []int

// NumElements returns the total number of elements for this shape.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i, dim := range s {
		if dim != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Strides returns the row-major strides for this shape.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	stride := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= s[i]
	}
	return strides
}

func (s Shape) String() string {
	return fmt.Sprintf("%v", []int(s))
}
