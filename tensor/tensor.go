// Copyright 2026 TabNet ML Framework. All rights reserved.
// Use of this source code is governed by an MIT license
// that can be found in the LICENSE file.

// Package tensor provides the public API for the dense float64 tensors
// the rest of the framework computes on.
//
// Tensors are rank 1, 2 or 4 row-major arrays. Element-wise operations
// and matrix products take a device that decides how the work is split.
//
// Example:
//
//	dev := device.Default()
//	a := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	b := tensor.Full(tensor.Shape{2, 2}, 0.5)
//	c := a.MatMul(dev, b)
package tensor

import (
	"math/rand"

	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// Shape holds a tensor's dimensions.
type Shape = tensor.Shape

// Tensor is a dense float64 array of rank 1, 2 or 4.
type Tensor = tensor.Tensor

// New creates a zero-filled tensor.
func New(shape Shape) *Tensor {
	return tensor.New(shape)
}

// FromSlice copies data into a tensor of the given shape.
func FromSlice(data []float64, shape Shape) *Tensor {
	return tensor.FromSlice(data, shape)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	return tensor.Full(shape, value)
}

// RandUniform creates a tensor with entries drawn uniformly from
// [low, high).
func RandUniform(shape Shape, low, high float64, rng *rand.Rand) *Tensor {
	return tensor.RandUniform(shape, low, high, rng)
}

// RandNormal creates a tensor with entries drawn from N(mean, stddev).
func RandNormal(shape Shape, mean, stddev float64, rng *rand.Rand) *Tensor {
	return tensor.RandNormal(shape, mean, stddev, rng)
}
