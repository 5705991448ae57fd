// Copyright 2026 TabNet ML Framework. All rights reserved.
// Use of this source code is governed by an MIT license
// that can be found in the LICENSE file.

// Package data provides the public API for tabular data sets.
//
// A Set holds a samples-by-variables matrix plus per-variable roles
// (input, target, unused) and per-sample partitions (training,
// selection, testing).
//
// Example:
//
//	set, err := data.LoadCSV("iris.csv", data.LoadCSVOptions{Header: true, Targets: 1})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = set.Split(0.6, 0.2, 0.2)
package data

import (
	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// VariableUse is a column's role.
type VariableUse = data.VariableUse

// Variable roles.
const (
	Input          VariableUse = data.Input
	Target         VariableUse = data.Target
	UnusedVariable VariableUse = data.UnusedVariable
)

// SampleUse is a row's partition.
type SampleUse = data.SampleUse

// Sample partitions.
const (
	Training     SampleUse = data.Training
	Selection    SampleUse = data.Selection
	Testing      SampleUse = data.Testing
	UnusedSample SampleUse = data.UnusedSample
)

// Descriptives summarizes one variable over the training samples.
type Descriptives = data.Descriptives

// Set is a tabular data set.
type Set = data.Set

// NewSet creates a set over values whose last targets columns are the
// target variables. All samples start in the training partition.
func NewSet(values *tensor.Tensor, targets int) (*Set, error) {
	return data.NewSet(values, targets)
}

// LoadCSVOptions tunes CSV parsing.
type LoadCSVOptions = data.LoadCSVOptions

// LoadCSV reads a numeric CSV file into a set.
func LoadCSV(path string, opts LoadCSVOptions) (*Set, error) {
	return data.LoadCSV(path, opts)
}
