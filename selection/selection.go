// Copyright 2026 TabNet ML Framework. All rights reserved.
// Use of this source code is governed by an MIT license
// that can be found in the LICENSE file.

// Package selection provides the public API for model selection: the
// drivers that retrain a network per candidate configuration and keep
// the one with the lowest selection loss.
package selection

import (
	"github.com/tabnet-ml/tabnet/internal/selection"
)

// Trial records one attempted configuration.
type Trial = selection.Trial

// Results lists every attempted configuration plus the best one.
type Results = selection.Results

// Drivers.
type (
	IncrementalNeurons = selection.IncrementalNeurons
	GrowingInputs      = selection.GrowingInputs
	PruningInputs      = selection.PruningInputs
	GeneticInputs      = selection.GeneticInputs
)

// Config pairs the optional drivers a ModelSelection document carries.
type Config = selection.Config

// InputsDriver is satisfied by the three inputs-selection searches.
type InputsDriver = selection.InputsDriver
