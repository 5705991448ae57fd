package tensor

import (
	"fmt"
	"math"
)

// pairwiseBlock is the base case size for the pairwise-summation tree.
// Below it a plain loop is cheaper and still deterministic.
const pairwiseBlock = 128

// pairwiseSum sums a slice with a fixed pairwise tree so that the result
// does not depend on scheduling.
func pairwiseSum(v []float64) float64 {
	n := len(v)
	if n <= pairwiseBlock {
		sum := 0.0
		for _, x := range v {
			sum += x
		}
		return sum
	}
	half := n / 2
	return pairwiseSum(v[:half]) + pairwiseSum(v[half:])
}

// Sum returns the sum of all elements, accumulated with a deterministic
// pairwise tree.
func (t *Tensor) Sum() float64 {
	return pairwiseSum(t.data)
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() float64 {
	if len(t.data) == 0 {
		return 0
	}
	return t.Sum() / float64(len(t.data))
}

// Max returns the largest element. Panics on an empty tensor.
func (t *Tensor) Max() float64 {
	if len(t.data) == 0 {
		panic("tensor: Max of empty tensor")
	}
	best := t.data[0]
	for _, x := range t.data[1:] {
		if x > best {
			best = x
		}
	}
	return best
}

// ColumnSums returns the per-column sums of a rank-2 tensor as a vector of
// length [cols]. Used to accumulate bias gradients over a batch.
func (t *Tensor) ColumnSums() *Tensor {
	if t.Rank() != 2 {
		panic(fmt.Sprintf("tensor: ColumnSums on rank-%d tensor", t.Rank()))
	}
	rows, cols := t.shape[0], t.shape[1]
	out := New(Shape{cols})
	for i := 0; i < rows; i++ {
		row := t.data[i*cols : (i+1)*cols]
		for j := 0; j < cols; j++ {
			out.data[j] += row[j]
		}
	}
	return out
}

// ColumnMeans returns the per-column means of a rank-2 tensor.
func (t *Tensor) ColumnMeans() *Tensor {
	if t.Rank() != 2 {
		panic(fmt.Sprintf("tensor: ColumnMeans on rank-%d tensor", t.Rank()))
	}
	rows := t.shape[0]
	out := t.ColumnSums()
	if rows > 0 {
		inv := 1.0 / float64(rows)
		for j := range out.data {
			out.data[j] *= inv
		}
	}
	return out
}

// ArgMaxRows returns, for each row of a rank-2 tensor, the index of its
// largest element. Ties resolve to the lowest index.
func (t *Tensor) ArgMaxRows() []int {
	if t.Rank() != 2 {
		panic(fmt.Sprintf("tensor: ArgMaxRows on rank-%d tensor", t.Rank()))
	}
	rows, cols := t.shape[0], t.shape[1]
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		row := t.data[i*cols : (i+1)*cols]
		best := 0
		for j := 1; j < cols; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// SumSquares returns the sum of squared elements.
func (t *Tensor) SumSquares() float64 {
	// Square into a pairwise tree without allocating when small.
	if len(t.data) <= pairwiseBlock {
		sum := 0.0
		for _, x := range t.data {
			sum += x * x
		}
		return sum
	}
	squared := make([]float64, len(t.data))
	for i, x := range t.data {
		squared[i] = x * x
	}
	return pairwiseSum(squared)
}

// IsFinite reports whether every element is finite.
func (t *Tensor) IsFinite() bool {
	for _, x := range t.data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
