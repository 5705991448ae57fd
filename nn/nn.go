// Copyright 2026 TabNet ML Framework. All rights reserved.
// Use of this source code is governed by an MIT license
// that can be found in the LICENSE file.

// Package nn provides the public API for layered neural networks.
//
// A Network chains typed layers: scaling, perceptron, probabilistic,
// recurrent, long-short-term memory, convolutional, pooling, principal
// components, unscaling and bounding. Model-type constructors synthesize
// the conventional stacks.
//
// Example:
//
//	rng := rand.New(rand.NewSource(42))
//	network := nn.NewNetwork(nn.Classification, []int{30, 7, 1}, rng)
//	outputs := network.Outputs(device.Default(), inputs)
package nn

import (
	"math/rand"

	"github.com/tabnet-ml/tabnet/internal/nn"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// Activation is a neuron transfer function.
type Activation = nn.Activation

// Activations.
const (
	Threshold               Activation = nn.Threshold
	SymmetricThreshold      Activation = nn.SymmetricThreshold
	Logistic                Activation = nn.Logistic
	HyperbolicTangent       Activation = nn.HyperbolicTangent
	Linear                  Activation = nn.Linear
	RectifiedLinear         Activation = nn.RectifiedLinear
	ScaledExponentialLinear Activation = nn.ScaledExponentialLinear
	SoftPlus                Activation = nn.SoftPlus
	SoftSign                Activation = nn.SoftSign
	HardSigmoid             Activation = nn.HardSigmoid
	ExponentialLinear       Activation = nn.ExponentialLinear
)

// Kind tags a layer's type.
type Kind = nn.Kind

// Layer kinds.
const (
	ScalingKind             Kind = nn.ScalingKind
	PerceptronKind          Kind = nn.PerceptronKind
	ProbabilisticKind       Kind = nn.ProbabilisticKind
	RecurrentKind           Kind = nn.RecurrentKind
	LongShortTermMemoryKind Kind = nn.LongShortTermMemoryKind
	ConvolutionalKind       Kind = nn.ConvolutionalKind
	PoolingKind             Kind = nn.PoolingKind
	UnscalingKind           Kind = nn.UnscalingKind
	BoundingKind            Kind = nn.BoundingKind
	PrincipalComponentsKind Kind = nn.PrincipalComponentsKind
)

// Layer is the contract every layer satisfies.
type Layer = nn.Layer

// Forwarded holds one layer's forward-pass state.
type Forwarded = nn.Forwarded

// ScalingMethod selects how features are normalized.
type ScalingMethod = nn.ScalingMethod

// Scaling methods.
const (
	NoScaling             ScalingMethod = nn.NoScaling
	MinimumMaximum        ScalingMethod = nn.MinimumMaximum
	MeanStandardDeviation ScalingMethod = nn.MeanStandardDeviation
	StandardDeviation     ScalingMethod = nn.StandardDeviation
)

// ProbabilisticMethod selects how outputs become probabilities.
type ProbabilisticMethod = nn.ProbabilisticMethod

// Probabilistic methods.
const (
	SoftmaxProbability     ProbabilisticMethod = nn.SoftmaxProbability
	LogisticProbability    ProbabilisticMethod = nn.LogisticProbability
	CompetitiveProbability ProbabilisticMethod = nn.CompetitiveProbability
)

// PoolingMethod selects the pooling reduction.
type PoolingMethod = nn.PoolingMethod

// Pooling methods.
const (
	NoPooling      PoolingMethod = nn.NoPooling
	MaxPooling     PoolingMethod = nn.MaxPooling
	AveragePooling PoolingMethod = nn.AveragePooling
)

// Layer types.
type (
	Scaling             = nn.Scaling
	Unscaling           = nn.Unscaling
	Bounding            = nn.Bounding
	Perceptron          = nn.Perceptron
	Probabilistic       = nn.Probabilistic
	Recurrent           = nn.Recurrent
	LSTM                = nn.LSTM
	Convolutional       = nn.Convolutional
	Pooling             = nn.Pooling
	PrincipalComponents = nn.PrincipalComponents
)

// NewScaling creates a scaling layer for n features.
func NewScaling(n int) *Scaling { return nn.NewScaling(n) }

// NewUnscaling creates an unscaling layer for n features.
func NewUnscaling(n int) *Unscaling { return nn.NewUnscaling(n) }

// NewBounding creates a bounding layer for n features.
func NewBounding(n int) *Bounding { return nn.NewBounding(n) }

// NewPerceptron creates a dense layer.
func NewPerceptron(inputs, neurons int, activation Activation, rng *rand.Rand) *Perceptron {
	return nn.NewPerceptron(inputs, neurons, activation, rng)
}

// NewProbabilistic creates a probabilistic output layer.
func NewProbabilistic(inputs, neurons int, rng *rand.Rand) *Probabilistic {
	return nn.NewProbabilistic(inputs, neurons, rng)
}

// NewRecurrent creates a simple recurrent layer over windows of
// timesteps rows.
func NewRecurrent(inputs, neurons, timesteps int, activation Activation, rng *rand.Rand) *Recurrent {
	return nn.NewRecurrent(inputs, neurons, timesteps, activation, rng)
}

// NewLSTM creates a long-short-term-memory layer over windows of
// timesteps rows.
func NewLSTM(inputs, neurons, timesteps int, rng *rand.Rand) *LSTM {
	return nn.NewLSTM(inputs, neurons, timesteps, rng)
}

// NewConvolutional creates a convolutional layer over per-sample inputs
// of shape [channels, rows, cols].
func NewConvolutional(inputShape tensor.Shape, filters, kernelRows, kernelCols, stride int, activation Activation, rng *rand.Rand) *Convolutional {
	return nn.NewConvolutional(inputShape, filters, kernelRows, kernelCols, stride, activation, rng)
}

// NewPooling creates a pooling layer over per-sample inputs of shape
// [channels, rows, cols].
func NewPooling(inputShape tensor.Shape, poolRows, poolCols, stride int, method PoolingMethod) *Pooling {
	return nn.NewPooling(inputShape, poolRows, poolCols, stride, method)
}

// ComputePrincipalComponents fits the per-feature means and the
// projection basis for a principal-components layer to the rows of
// values.
func ComputePrincipalComponents(values *tensor.Tensor, components int) (means, basis *tensor.Tensor, err error) {
	return nn.ComputePrincipalComponents(values, components)
}

// NewPrincipalComponents creates the projection layer from fitted means
// and basis.
func NewPrincipalComponents(means, basis *tensor.Tensor) *PrincipalComponents {
	return nn.NewPrincipalComponents(means, basis)
}

// ModelType hints at the network's task.
type ModelType = nn.ModelType

// Model types.
const (
	Approximation       ModelType = nn.Approximation
	Classification      ModelType = nn.Classification
	Forecasting         ModelType = nn.Forecasting
	ImageApproximation  ModelType = nn.ImageApproximation
	ImageClassification ModelType = nn.ImageClassification
)

// Network is an ordered stack of layers.
type Network = nn.Network

// NewNetwork synthesizes the conventional layer stack for a model type
// and an architecture [inputs, hidden..., outputs].
func NewNetwork(modelType ModelType, architecture []int, rng *rand.Rand) *Network {
	return nn.NewNetwork(modelType, architecture, rng)
}

// NewEmptyNetwork creates a network with no layers; add them with
// AddLayer.
func NewEmptyNetwork(modelType ModelType) *Network {
	return nn.NewEmptyNetwork(modelType)
}

// Name parsers, used when reading configuration documents.
var (
	ParseActivation          = nn.ParseActivation
	ParseKind                = nn.ParseKind
	ParseScalingMethod       = nn.ParseScalingMethod
	ParseProbabilisticMethod = nn.ParseProbabilisticMethod
	ParsePoolingMethod       = nn.ParsePoolingMethod
	ParseModelType           = nn.ParseModelType
)
