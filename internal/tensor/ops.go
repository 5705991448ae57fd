package tensor

import (
	"fmt"
	"math"

	"github.com/tabnet-ml/tabnet/internal/device"
)

// checkSame panics unless a and b share a shape. op names the caller in
// the panic message.
func checkSame(op string, a, b *Tensor) {
	if !a.shape.Equal(b.shape) {
		panic(fmt.Sprintf("tensor: %s shape mismatch %v vs %v", op, a.shape, b.shape))
	}
}

// Add returns a + b element-wise.
func (t *Tensor) Add(dev *device.Device, other *Tensor) *Tensor {
	checkSame("Add", t, other)
	out := New(t.shape)
	dev.For(len(t.data), func(i int) {
		out.data[i] = t.data[i] + other.data[i]
	})
	return out
}

// Sub returns a - b element-wise.
func (t *Tensor) Sub(dev *device.Device, other *Tensor) *Tensor {
	checkSame("Sub", t, other)
	out := New(t.shape)
	dev.For(len(t.data), func(i int) {
		out.data[i] = t.data[i] - other.data[i]
	})
	return out
}

// Mul returns a * b element-wise (Hadamard product).
func (t *Tensor) Mul(dev *device.Device, other *Tensor) *Tensor {
	checkSame("Mul", t, other)
	out := New(t.shape)
	dev.For(len(t.data), func(i int) {
		out.data[i] = t.data[i] * other.data[i]
	})
	return out
}

// Scale returns t * alpha.
func (t *Tensor) Scale(dev *device.Device, alpha float64) *Tensor {
	out := New(t.shape)
	dev.For(len(t.data), func(i int) {
		out.data[i] = alpha * t.data[i]
	})
	return out
}

// Apply returns f applied element-wise.
func (t *Tensor) Apply(dev *device.Device, f func(x float64) float64) *Tensor {
	out := New(t.shape)
	dev.For(len(t.data), func(i int) {
		out.data[i] = f(t.data[i])
	})
	return out
}

// ApplyInPlace overwrites every element with f(element).
func (t *Tensor) ApplyInPlace(dev *device.Device, f func(x float64) float64) {
	dev.For(len(t.data), func(i int) {
		t.data[i] = f(t.data[i])
	})
}

// AddRowVector adds a length-[cols] vector to every row of a rank-2
// tensor. Used for bias addition over a batch.
func (t *Tensor) AddRowVector(dev *device.Device, v *Tensor) *Tensor {
	if t.Rank() != 2 || v.Rank() != 1 {
		panic(fmt.Sprintf("tensor: AddRowVector wants ranks (2,1), got (%d,%d)", t.Rank(), v.Rank()))
	}
	if t.shape[1] != v.shape[0] {
		panic(fmt.Sprintf("tensor: AddRowVector shape mismatch %v vs %v", t.shape, v.shape))
	}
	rows, cols := t.shape[0], t.shape[1]
	out := New(t.shape)
	dev.For(rows, func(i int) {
		src := t.data[i*cols : (i+1)*cols]
		dst := out.data[i*cols : (i+1)*cols]
		for j := 0; j < cols; j++ {
			dst[j] = src[j] + v.data[j]
		}
	})
	return out
}

// MulRowVector multiplies every row of a rank-2 tensor element-wise by a
// length-[cols] vector. Used for per-feature scaling over a batch.
func (t *Tensor) MulRowVector(dev *device.Device, v *Tensor) *Tensor {
	if t.Rank() != 2 || v.Rank() != 1 {
		panic(fmt.Sprintf("tensor: MulRowVector wants ranks (2,1), got (%d,%d)", t.Rank(), v.Rank()))
	}
	if t.shape[1] != v.shape[0] {
		panic(fmt.Sprintf("tensor: MulRowVector shape mismatch %v vs %v", t.shape, v.shape))
	}
	rows, cols := t.shape[0], t.shape[1]
	out := New(t.shape)
	dev.For(rows, func(i int) {
		src := t.data[i*cols : (i+1)*cols]
		dst := out.data[i*cols : (i+1)*cols]
		for j := 0; j < cols; j++ {
			dst[j] = src[j] * v.data[j]
		}
	})
	return out
}

// Dot returns the inner product of two vectors of equal length.
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("tensor: Dot length mismatch %d vs %d", len(a), len(b)))
	}
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the Euclidean norm of a vector.
func Norm(v []float64) float64 {
	return math.Sqrt(Dot(v, v))
}
