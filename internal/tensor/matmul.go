package tensor

import (
	"fmt"

	"github.com/tabnet-ml/tabnet/internal/device"
)

// MatMul returns the matrix product [m,k]·[k,n] -> [m,n]. Any other shape
// pairing panics. Rows of the result are computed independently across the
// device's worker pool.
func (t *Tensor) MatMul(dev *device.Device, other *Tensor) *Tensor {
	if t.Rank() != 2 || other.Rank() != 2 {
		panic(fmt.Sprintf("tensor: MatMul wants rank-2 operands, got %v and %v", t.shape, other.shape))
	}
	m, k := t.shape[0], t.shape[1]
	k2, n := other.shape[0], other.shape[1]
	if k != k2 {
		panic(fmt.Sprintf("tensor: MatMul shape mismatch %v @ %v", t.shape, other.shape))
	}

	out := New(Shape{m, n})
	a, b, c := t.data, other.data, out.data
	dev.For(m, func(i int) {
		row := c[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			aik := a[i*k+kk]
			if aik == 0 {
				continue
			}
			brow := b[kk*n : (kk+1)*n]
			for j := 0; j < n; j++ {
				row[j] += aik * brow[j]
			}
		}
	})
	return out
}

// MatMulAT returns tᵀ·other: [k,m]ᵀ·[k,n] -> [m,n]. Used by the perceptron
// backward pass to contract inputs against deltas without materializing a
// transpose.
func (t *Tensor) MatMulAT(dev *device.Device, other *Tensor) *Tensor {
	if t.Rank() != 2 || other.Rank() != 2 {
		panic(fmt.Sprintf("tensor: MatMulAT wants rank-2 operands, got %v and %v", t.shape, other.shape))
	}
	k, m := t.shape[0], t.shape[1]
	k2, n := other.shape[0], other.shape[1]
	if k != k2 {
		panic(fmt.Sprintf("tensor: MatMulAT shape mismatch %vᵀ @ %v", t.shape, other.shape))
	}

	out := New(Shape{m, n})
	a, b, c := t.data, other.data, out.data
	dev.For(m, func(i int) {
		row := c[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			aki := a[kk*m+i]
			if aki == 0 {
				continue
			}
			brow := b[kk*n : (kk+1)*n]
			for j := 0; j < n; j++ {
				row[j] += aki * brow[j]
			}
		}
	})
	return out
}

// MatMulBT returns t·otherᵀ: [m,k]·[n,k]ᵀ -> [m,n]. Used to push deltas
// back through a weight matrix.
func (t *Tensor) MatMulBT(dev *device.Device, other *Tensor) *Tensor {
	if t.Rank() != 2 || other.Rank() != 2 {
		panic(fmt.Sprintf("tensor: MatMulBT wants rank-2 operands, got %v and %v", t.shape, other.shape))
	}
	m, k := t.shape[0], t.shape[1]
	n, k2 := other.shape[0], other.shape[1]
	if k != k2 {
		panic(fmt.Sprintf("tensor: MatMulBT shape mismatch %v @ %vᵀ", t.shape, other.shape))
	}

	out := New(Shape{m, n})
	a, b, c := t.data, other.data, out.data
	dev.For(m, func(i int) {
		arow := a[i*k : (i+1)*k]
		crow := c[i*n : (i+1)*n]
		for j := 0; j < n; j++ {
			crow[j] = Dot(arow, b[j*k:(j+1)*k])
		}
	})
	return out
}
