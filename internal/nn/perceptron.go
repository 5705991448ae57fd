package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// Perceptron is the fully connected layer: activation(x·W + b).
//
// It owns two parameter blocks, biases [neurons] and synaptic weights
// [inputs, neurons]. The flat packing order is biases first, then weights
// row by row; that order defines this layer's slice of the network's
// parameter vector and must not change.
type Perceptron struct {
	inputs     int
	neurons    int
	biases     *tensor.Tensor // [neurons]
	weights    *tensor.Tensor // [inputs, neurons]
	activation Activation
}

// NewPerceptron creates a perceptron layer with Xavier/Glorot uniform
// weights and zero biases.
func NewPerceptron(inputs, neurons int, activation Activation, rng *rand.Rand) *Perceptron {
	limit := math.Sqrt(6.0 / float64(inputs+neurons))
	return &Perceptron{
		inputs:     inputs,
		neurons:    neurons,
		biases:     tensor.New(tensor.Shape{neurons}),
		weights:    tensor.RandUniform(tensor.Shape{inputs, neurons}, -limit, limit, rng),
		activation: activation,
	}
}

// Activation returns the layer's activation function.
func (l *Perceptron) Activation() Activation { return l.activation }

// SetActivation changes the activation function.
func (l *Perceptron) SetActivation(a Activation) { l.activation = a }

// Biases returns the bias vector.
func (l *Perceptron) Biases() *tensor.Tensor { return l.biases }

// Weights returns the synaptic weight matrix.
func (l *Perceptron) Weights() *tensor.Tensor { return l.weights }

func (l *Perceptron) Kind() Kind                { return PerceptronKind }
func (l *Perceptron) InputShape() tensor.Shape  { return tensor.Shape{l.inputs} }
func (l *Perceptron) OutputShape() tensor.Shape { return tensor.Shape{l.neurons} }

func (l *Perceptron) ParameterCount() int {
	return l.neurons + l.inputs*l.neurons
}

func (l *Perceptron) PackParameters(dst []float64) {
	checkParamLen(PerceptronKind, len(dst), l.ParameterCount())
	copy(dst[:l.neurons], l.biases.Data())
	copy(dst[l.neurons:], l.weights.Data())
}

func (l *Perceptron) UnpackParameters(src []float64) {
	checkParamLen(PerceptronKind, len(src), l.ParameterCount())
	copy(l.biases.Data(), src[:l.neurons])
	copy(l.weights.Data(), src[l.neurons:])
}

func (l *Perceptron) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(PerceptronKind, inputs, l.InputShape())

	combinations := inputs.MatMul(dev, l.weights).AddRowVector(dev, l.biases)
	activations := combinations.Apply(dev, l.activation.Apply)

	fwd.Combinations = combinations
	fwd.Activations = activations
}

func (l *Perceptron) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(PerceptronKind, len(paramGrad), l.ParameterCount())
	if !upstream.Shape().Equal(fwd.Activations.Shape()) {
		panic(fmt.Sprintf("nn: Perceptron upstream delta shape %v, want %v", upstream.Shape(), fwd.Activations.Shape()))
	}

	// delta = upstream ⊙ activation'(combinations)
	delta := fwd.Combinations.Apply(dev, l.activation.Derivative).Mul(dev, upstream)

	// Bias gradient: per-neuron sum of deltas over the batch.
	copy(paramGrad[:l.neurons], delta.ColumnSums().Data())

	// Weight gradient: inputsᵀ · delta.
	copy(paramGrad[l.neurons:], inputs.MatMulAT(dev, delta).Data())

	// Input gradient: delta · weightsᵀ.
	downstream.CopyFrom(delta.MatMulBT(dev, l.weights))
}
