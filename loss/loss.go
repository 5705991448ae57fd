// Copyright 2026 TabNet ML Framework. All rights reserved.
// Use of this source code is governed by an MIT license
// that can be found in the LICENSE file.

// Package loss provides the public API for loss indices.
//
// An Index binds a network and a data set to an error term and an
// optional regularization penalty, and produces the scalar loss and the
// flat parameter gradient that drive training.
package loss

import (
	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/loss"
	"github.com/tabnet-ml/tabnet/internal/nn"
)

// Method selects the error term.
type Method = loss.Method

// Error terms.
const (
	SumSquaredError        Method = loss.SumSquaredError
	MeanSquaredError       Method = loss.MeanSquaredError
	NormalizedSquaredError Method = loss.NormalizedSquaredError
	MinkowskiError         Method = loss.MinkowskiError
	CrossEntropyError      Method = loss.CrossEntropyError
	WeightedSquaredError   Method = loss.WeightedSquaredError
)

// Regularization selects the parameter penalty.
type Regularization = loss.Regularization

// Penalties.
const (
	NoRegularization Regularization = loss.NoRegularization
	L1               Regularization = loss.L1
	L2               Regularization = loss.L2
)

// Index evaluates an error term for a network over a data set.
type Index = loss.Index

// NewIndex binds an error term to a network and a data set.
func NewIndex(method Method, network *nn.Network, set *data.Set) *Index {
	return loss.NewIndex(method, network, set)
}
