// Package tensor implements the dense numeric arrays the rest of the
// library computes with.
//
// A Tensor is a value-typed, row-major float64 array of rank 1, 2 or 4.
// The package itself is stateless: every operation that can profit from
// parallelism takes a *device.Device as an explicit execution context.
//
// Shape errors are programmer errors and panic with enough context to
// identify the offending call. Operations never silently broadcast.
//
// Example:
//
//	dev := device.Default()
//	a := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	b := tensor.Full(tensor.Shape{2, 2}, 0.5)
//	c := a.MatMul(dev, b)
package tensor

import (
	"fmt"
	"math/rand"
)

// Tensor is a dense float64 array with a shape. Copying the struct shares
// the underlying storage; use Clone for a deep copy.
type Tensor struct {
	shape Shape
	data  []float64
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) *Tensor {
	checkRank(shape)
	return &Tensor{shape: shape.Clone(), data: make([]float64, shape.NumElements())}
}

// FromSlice creates a tensor that copies data into the given shape.
// Panics if the element counts disagree.
func FromSlice(data []float64, shape Shape) *Tensor {
	checkRank(shape)
	if shape.NumElements() != len(data) {
		panic(fmt.Sprintf("tensor: shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data)))
	}
	t := New(shape)
	copy(t.data, data)
	return t
}

// Full creates a tensor with every element set to value.
func Full(shape Shape, value float64) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// RandUniform creates a tensor with elements drawn uniformly from [lo, hi).
func RandUniform(shape Shape, lo, hi float64, rng *rand.Rand) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = lo + (hi-lo)*rng.Float64()
	}
	return t
}

// RandNormal creates a tensor with elements drawn from N(mean, stddev²).
func RandNormal(shape Shape, mean, stddev float64, rng *rand.Rand) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = mean + stddev*rng.NormFloat64()
	}
	return t
}

// Shape returns the tensor's shape. The caller must not mutate it.
func (t *Tensor) Shape() Shape { return t.shape }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int { return len(t.data) }

// Data returns the underlying storage. The slice aliases the tensor's
// memory: writes through it are visible to every holder of the tensor.
func (t *Tensor) Data() []float64 { return t.data }

// At returns the element at the given indices. Panics on out-of-range
// indices or a rank mismatch.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.offset(indices)]
}

// Set stores value at the given indices.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.offset(indices)] = value
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices for shape %v, got %d", len(t.shape), t.shape, len(indices)))
	}
	offset := 0
	strides := t.shape.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of bounds for dimension %d of shape %v", idx, i, t.shape))
		}
		offset += idx * strides[i]
	}
	return offset
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := New(t.shape)
	copy(out.data, t.data)
	return out
}

// Fill sets every element to value.
func (t *Tensor) Fill(value float64) {
	for i := range t.data {
		t.data[i] = value
	}
}

// CopyFrom copies src's elements into t. Panics on shape mismatch.
func (t *Tensor) CopyFrom(src *Tensor) {
	if !t.shape.Equal(src.shape) {
		panic(fmt.Sprintf("tensor: CopyFrom shape mismatch %v vs %v", t.shape, src.shape))
	}
	copy(t.data, src.data)
}

// Row returns the i-th row of a rank-2 tensor as an aliasing slice.
func (t *Tensor) Row(i int) []float64 {
	if t.Rank() != 2 {
		panic(fmt.Sprintf("tensor: Row on rank-%d tensor", t.Rank()))
	}
	cols := t.shape[1]
	if i < 0 || i >= t.shape[0] {
		panic(fmt.Sprintf("tensor: row %d out of bounds for shape %v", i, t.shape))
	}
	return t.data[i*cols : (i+1)*cols]
}

// Reshape returns a view with a new shape over the same backing data.
// The element count must not change.
func (t *Tensor) Reshape(shape Shape) *Tensor {
	checkRank(shape)
	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor: reshape %v to %v changes element count", t.shape, shape))
	}
	return &Tensor{data: t.data, shape: shape.Clone()}
}

// RowRange returns a copy of rows [from, to) of a rank-2 tensor. Used for
// contiguous mini-batch slicing.
func (t *Tensor) RowRange(from, to int) *Tensor {
	if t.Rank() != 2 {
		panic(fmt.Sprintf("tensor: RowRange on rank-%d tensor", t.Rank()))
	}
	if from < 0 || to > t.shape[0] || from > to {
		panic(fmt.Sprintf("tensor: RowRange [%d,%d) out of bounds for shape %v", from, to, t.shape))
	}
	cols := t.shape[1]
	out := New(Shape{to - from, cols})
	copy(out.data, t.data[from*cols:to*cols])
	return out
}

// GatherRows returns a copy of the listed rows, in order. Used to extract
// sampled mini-batches and data-set partitions.
func (t *Tensor) GatherRows(indices []int) *Tensor {
	if t.Rank() != 2 {
		panic(fmt.Sprintf("tensor: GatherRows on rank-%d tensor", t.Rank()))
	}
	cols := t.shape[1]
	out := New(Shape{len(indices), cols})
	for i, row := range indices {
		copy(out.Row(i), t.Row(row))
	}
	return out
}

// GatherColumns returns a copy of the listed columns of a rank-2 tensor,
// in order. Used to project a data matrix onto the active input subset.
func (t *Tensor) GatherColumns(indices []int) *Tensor {
	if t.Rank() != 2 {
		panic(fmt.Sprintf("tensor: GatherColumns on rank-%d tensor", t.Rank()))
	}
	rows := t.shape[0]
	out := New(Shape{rows, len(indices)})
	for i := 0; i < rows; i++ {
		src := t.Row(i)
		dst := out.Row(i)
		for j, col := range indices {
			if col < 0 || col >= t.shape[1] {
				panic(fmt.Sprintf("tensor: column %d out of bounds for shape %v", col, t.shape))
			}
			dst[j] = src[col]
		}
	}
	return out
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}

func checkRank(shape Shape) {
	switch len(shape) {
	case 1, 2, 4:
	default:
		panic(fmt.Sprintf("tensor: unsupported rank %d (shape %v)", len(shape), shape))
	}
}
