// Copyright 2026 TabNet ML Framework. All rights reserved.
// Use of this source code is governed by an MIT license
// that can be found in the LICENSE file.

// Package optim provides the public API for the training algorithms.
//
// Every optimizer satisfies Algorithm: Perform trains the loss index's
// bound network in place and reports per-epoch histories plus the
// stopping condition that fired.
//
// Example:
//
//	qn := &optim.QuasiNewton{
//	    Criteria: optim.Criteria{LossGoal: 0.01, MaxEpochs: 1000},
//	}
//	results, err := qn.Perform(device.Default(), index)
package optim

import (
	"github.com/tabnet-ml/tabnet/internal/optim"
)

// Kind identifies an optimization algorithm.
type Kind = optim.Kind

// Algorithm kinds.
const (
	GradientDescentKind           Kind = optim.GradientDescentKind
	ConjugateGradientKind         Kind = optim.ConjugateGradientKind
	QuasiNewtonKind               Kind = optim.QuasiNewtonKind
	LevenbergMarquardtKind        Kind = optim.LevenbergMarquardtKind
	StochasticGradientDescentKind Kind = optim.StochasticGradientDescentKind
	AdaptiveMomentEstimationKind  Kind = optim.AdaptiveMomentEstimationKind
	EvolutionaryKind              Kind = optim.EvolutionaryKind
)

// Algorithm is the training contract every optimizer satisfies.
type Algorithm = optim.Algorithm

// Criteria are the shared stopping conditions.
type Criteria = optim.Criteria

// LineSearch tunes the one-dimensional rate minimization.
type LineSearch = optim.LineSearch

// StopFlag requests cooperative cancellation at an epoch boundary.
type StopFlag = optim.StopFlag

// TrainingResults summarizes a completed run.
type TrainingResults = optim.TrainingResults

// StoppingCondition tags why a run ended.
type StoppingCondition = optim.StoppingCondition

// Stopping conditions.
const (
	LossGoalReached         StoppingCondition = optim.LossGoalReached
	GradientNormGoalReached StoppingCondition = optim.GradientNormGoalReached
	EarlyStopping           StoppingCondition = optim.EarlyStopping
	MaxEpochsReached        StoppingCondition = optim.MaxEpochsReached
	MaxTimeReached          StoppingCondition = optim.MaxTimeReached
	NumericalFailure        StoppingCondition = optim.NumericalFailure
	Cancelled               StoppingCondition = optim.Cancelled
)

// Optimizers.
type (
	GradientDescent           = optim.GradientDescent
	ConjugateGradient         = optim.ConjugateGradient
	QuasiNewton               = optim.QuasiNewton
	LevenbergMarquardt        = optim.LevenbergMarquardt
	StochasticGradientDescent = optim.StochasticGradientDescent
	AdaptiveMomentEstimation  = optim.AdaptiveMomentEstimation
	Evolutionary              = optim.Evolutionary
)

// Direction, update and operator selectors.
type (
	TrainingDirection    = optim.TrainingDirection
	InverseHessianUpdate = optim.InverseHessianUpdate
	FitnessSelection     = optim.FitnessSelection
	Recombination        = optim.Recombination
	Mutation             = optim.Mutation
)

// Selector constants.
const (
	FletcherReeves TrainingDirection = optim.FletcherReeves
	PolakRibiere   TrainingDirection = optim.PolakRibiere

	BFGS InverseHessianUpdate = optim.BFGS
	DFP  InverseHessianUpdate = optim.DFP

	RouletteWheel FitnessSelection = optim.RouletteWheel
	RankBased     FitnessSelection = optim.RankBased
	Tournament    FitnessSelection = optim.Tournament

	Intermediate Recombination = optim.Intermediate
	Line         Recombination = optim.Line

	NormalMutation  Mutation = optim.NormalMutation
	UniformMutation Mutation = optim.UniformMutation
)
