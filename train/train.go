// Copyright 2026 TabNet ML Framework. All rights reserved.
// Use of this source code is governed by an MIT license
// that can be found in the LICENSE file.

// Package train provides the public API for training strategies.
//
// Example:
//
//	strategy := train.NewStrategy(network, set, loss.MeanSquaredError,
//	    &optim.QuasiNewton{Criteria: optim.Criteria{MaxEpochs: 500}})
//	results, err := strategy.Perform(device.Default())
package train

import (
	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/loss"
	"github.com/tabnet-ml/tabnet/internal/nn"
	"github.com/tabnet-ml/tabnet/internal/optim"
	"github.com/tabnet-ml/tabnet/internal/train"
)

// Strategy wires a network, a data set, a loss index and an optimizer
// into a single training run.
type Strategy = train.Strategy

// NewStrategy builds the wiring.
func NewStrategy(network *nn.Network, set *data.Set, method loss.Method, algorithm optim.Algorithm) *Strategy {
	return train.NewStrategy(network, set, method, algorithm)
}
