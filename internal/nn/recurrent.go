package nn

import (
	"math"
	"math/rand"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// Recurrent is a simple recurrent layer. Batch rows are consecutive time
// steps; the hidden state carries across steps within a window of
// timesteps rows and resets at every window boundary, so distinct windows
// are independent samples.
//
// Parameters pack as biases, then input weights, then recurrent weights.
type Recurrent struct {
	inputs     int
	neurons    int
	timesteps  int
	biases     *tensor.Tensor // [neurons]
	weights    *tensor.Tensor // [inputs, neurons]
	recurrent  *tensor.Tensor // [neurons, neurons]
	activation Activation
}

// NewRecurrent creates a recurrent layer with the given hidden width and
// window length.
func NewRecurrent(inputs, neurons, timesteps int, activation Activation, rng *rand.Rand) *Recurrent {
	if timesteps < 1 {
		timesteps = 1
	}
	limit := math.Sqrt(6.0 / float64(inputs+neurons))
	rlimit := math.Sqrt(6.0 / float64(2*neurons))
	return &Recurrent{
		inputs:     inputs,
		neurons:    neurons,
		timesteps:  timesteps,
		biases:     tensor.New(tensor.Shape{neurons}),
		weights:    tensor.RandUniform(tensor.Shape{inputs, neurons}, -limit, limit, rng),
		recurrent:  tensor.RandUniform(tensor.Shape{neurons, neurons}, -rlimit, rlimit, rng),
		activation: activation,
	}
}

// Activation returns the layer's activation function.
func (l *Recurrent) Activation() Activation { return l.activation }

// Timesteps returns the window length after which the hidden state resets.
func (l *Recurrent) Timesteps() int { return l.timesteps }

func (l *Recurrent) Kind() Kind                { return RecurrentKind }
func (l *Recurrent) InputShape() tensor.Shape  { return tensor.Shape{l.inputs} }
func (l *Recurrent) OutputShape() tensor.Shape { return tensor.Shape{l.neurons} }

func (l *Recurrent) ParameterCount() int {
	return l.neurons + l.inputs*l.neurons + l.neurons*l.neurons
}

func (l *Recurrent) PackParameters(dst []float64) {
	checkParamLen(RecurrentKind, len(dst), l.ParameterCount())
	n := l.neurons
	w := l.inputs * l.neurons
	copy(dst[:n], l.biases.Data())
	copy(dst[n:n+w], l.weights.Data())
	copy(dst[n+w:], l.recurrent.Data())
}

func (l *Recurrent) UnpackParameters(src []float64) {
	checkParamLen(RecurrentKind, len(src), l.ParameterCount())
	n := l.neurons
	w := l.inputs * l.neurons
	copy(l.biases.Data(), src[:n])
	copy(l.weights.Data(), src[n:n+w])
	copy(l.recurrent.Data(), src[n+w:])
}

func (l *Recurrent) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(RecurrentKind, inputs, l.InputShape())
	rows := inputs.Shape()[0]
	n := l.neurons

	combinations := tensor.New(tensor.Shape{rows, n})
	activations := tensor.New(tensor.Shape{rows, n})

	windows := (rows + l.timesteps - 1) / l.timesteps
	dev.For(windows, func(w int) {
		start := w * l.timesteps
		end := start + l.timesteps
		if end > rows {
			end = rows
		}
		var hidden []float64 // nil at the window boundary
		for t := start; t < end; t++ {
			x := inputs.Row(t)
			c := combinations.Row(t)
			h := activations.Row(t)
			for j := 0; j < n; j++ {
				sum := l.biases.At(j)
				for k := 0; k < l.inputs; k++ {
					sum += x[k] * l.weights.At(k, j)
				}
				if hidden != nil {
					for k := 0; k < n; k++ {
						sum += hidden[k] * l.recurrent.At(k, j)
					}
				}
				c[j] = sum
			}
			for j := 0; j < n; j++ {
				h[j] = l.activation.Apply(c[j])
			}
			hidden = h
		}
	})

	fwd.Combinations = combinations
	fwd.Activations = activations
}

func (l *Recurrent) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(RecurrentKind, len(paramGrad), l.ParameterCount())
	rows := upstream.Shape()[0]
	n := l.neurons

	biasGrad := paramGrad[:n]
	weightGrad := paramGrad[n : n+l.inputs*n]
	recurrentGrad := paramGrad[n+l.inputs*n:]
	for i := range paramGrad {
		paramGrad[i] = 0
	}

	// Backward through time within each window. Windows are independent
	// but their gradients share the accumulators, so the window loop is
	// kept sequential for deterministic accumulation.
	windows := (rows + l.timesteps - 1) / l.timesteps
	dcNext := make([]float64, n)
	dh := make([]float64, n)
	for w := 0; w < windows; w++ {
		start := w * l.timesteps
		end := start + l.timesteps
		if end > rows {
			end = rows
		}
		for i := range dcNext {
			dcNext[i] = 0
		}
		for t := end - 1; t >= start; t-- {
			up := upstream.Row(t)
			c := fwd.Combinations.Row(t)
			x := inputs.Row(t)
			// dh_t = upstream_t + U · dc_{t+1}
			for j := 0; j < n; j++ {
				sum := up[j]
				for k := 0; k < n; k++ {
					sum += l.recurrent.At(j, k) * dcNext[k]
				}
				dh[j] = sum
			}
			// dc_t = dh_t ⊙ act'(c_t)
			for j := 0; j < n; j++ {
				dh[j] *= l.activation.Derivative(c[j])
			}
			dc := dh

			for j := 0; j < n; j++ {
				biasGrad[j] += dc[j]
			}
			for k := 0; k < l.inputs; k++ {
				for j := 0; j < n; j++ {
					weightGrad[k*n+j] += x[k] * dc[j]
				}
			}
			if t > start {
				prev := fwd.Activations.Row(t - 1)
				for k := 0; k < n; k++ {
					for j := 0; j < n; j++ {
						recurrentGrad[k*n+j] += prev[k] * dc[j]
					}
				}
			}

			dst := downstream.Row(t)
			for k := 0; k < l.inputs; k++ {
				sum := 0.0
				for j := 0; j < n; j++ {
					sum += l.weights.At(k, j) * dc[j]
				}
				dst[k] = sum
			}
			copy(dcNext, dc)
		}
	}
}
