package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// Convolutional applies a filter bank to 4-D image batches
// [batch, channels, rows, cols] with a stride and no padding, followed by
// an element-wise activation.
//
// Parameters pack as biases [filters], then the kernel
// [filters, channels, kernelRows, kernelCols] in row-major order.
type Convolutional struct {
	inputShape tensor.Shape // [channels, rows, cols]
	filters    int
	kernelRows int
	kernelCols int
	stride     int
	biases     *tensor.Tensor // [filters]
	kernels    *tensor.Tensor // [filters, channels, kernelRows, kernelCols]
	activation Activation
}

// NewConvolutional creates a convolutional layer over per-sample input
// shape [channels, rows, cols].
func NewConvolutional(inputShape tensor.Shape, filters, kernelRows, kernelCols, stride int, activation Activation, rng *rand.Rand) *Convolutional {
	if inputShape.Rank() != 3 {
		panic(fmt.Sprintf("nn: Convolutional wants per-sample shape [channels, rows, cols], got %v", inputShape))
	}
	if stride < 1 {
		panic(fmt.Sprintf("nn: Convolutional stride %d, want >= 1", stride))
	}
	channels, rows, cols := inputShape[0], inputShape[1], inputShape[2]
	if kernelRows > rows || kernelCols > cols {
		panic(fmt.Sprintf("nn: Convolutional kernel %dx%d larger than input %dx%d", kernelRows, kernelCols, rows, cols))
	}
	fanIn := channels * kernelRows * kernelCols
	limit := math.Sqrt(6.0 / float64(fanIn+filters))
	return &Convolutional{
		inputShape: inputShape.Clone(),
		filters:    filters,
		kernelRows: kernelRows,
		kernelCols: kernelCols,
		stride:     stride,
		biases:     tensor.New(tensor.Shape{filters}),
		kernels:    tensor.RandUniform(tensor.Shape{filters, channels, kernelRows, kernelCols}, -limit, limit, rng),
		activation: activation,
	}
}

// Activation returns the layer's activation function.
func (l *Convolutional) Activation() Activation { return l.activation }

// Stride returns the filter stride.
func (l *Convolutional) Stride() int { return l.stride }

func (l *Convolutional) Kind() Kind               { return ConvolutionalKind }
func (l *Convolutional) InputShape() tensor.Shape { return l.inputShape }

func (l *Convolutional) outputRows() int {
	return (l.inputShape[1]-l.kernelRows)/l.stride + 1
}

func (l *Convolutional) outputCols() int {
	return (l.inputShape[2]-l.kernelCols)/l.stride + 1
}

func (l *Convolutional) OutputShape() tensor.Shape {
	return tensor.Shape{l.filters, l.outputRows(), l.outputCols()}
}

func (l *Convolutional) ParameterCount() int {
	return l.filters + l.kernels.NumElements()
}

func (l *Convolutional) PackParameters(dst []float64) {
	checkParamLen(ConvolutionalKind, len(dst), l.ParameterCount())
	copy(dst[:l.filters], l.biases.Data())
	copy(dst[l.filters:], l.kernels.Data())
}

func (l *Convolutional) UnpackParameters(src []float64) {
	checkParamLen(ConvolutionalKind, len(src), l.ParameterCount())
	copy(l.biases.Data(), src[:l.filters])
	copy(l.kernels.Data(), src[l.filters:])
}

func (l *Convolutional) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(ConvolutionalKind, inputs, l.inputShape)
	batch := inputs.Shape()[0]
	channels := l.inputShape[0]
	hOut, wOut := l.outputRows(), l.outputCols()

	combinations := tensor.New(tensor.Shape{batch, l.filters, hOut, wOut})
	activations := tensor.New(tensor.Shape{batch, l.filters, hOut, wOut})

	dev.ForBatch(batch, l.filters, func(b, f int) {
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				sum := l.biases.At(f)
				for c := 0; c < channels; c++ {
					for kh := 0; kh < l.kernelRows; kh++ {
						for kw := 0; kw < l.kernelCols; kw++ {
							sum += inputs.At(b, c, oh*l.stride+kh, ow*l.stride+kw) * l.kernels.At(f, c, kh, kw)
						}
					}
				}
				combinations.Set(sum, b, f, oh, ow)
				activations.Set(l.activation.Apply(sum), b, f, oh, ow)
			}
		}
	})

	fwd.Combinations = combinations
	fwd.Activations = activations
}

func (l *Convolutional) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(ConvolutionalKind, len(paramGrad), l.ParameterCount())
	batch := inputs.Shape()[0]
	channels := l.inputShape[0]
	hOut, wOut := l.outputRows(), l.outputCols()

	for i := range paramGrad {
		paramGrad[i] = 0
	}
	downstream.Fill(0)
	biasGrad := paramGrad[:l.filters]
	kernelGrad := paramGrad[l.filters:]
	kernelStrides := l.kernels.Shape().Strides()

	// Sequential over the batch: every sample touches the same gradient
	// accumulators and the downstream cells overlap across filters.
	for b := 0; b < batch; b++ {
		for f := 0; f < l.filters; f++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					// delta = upstream ⊙ activation'(combination)
					delta := upstream.At(b, f, oh, ow) * l.activation.Derivative(fwd.Combinations.At(b, f, oh, ow))
					if delta == 0 {
						continue
					}
					biasGrad[f] += delta
					for c := 0; c < channels; c++ {
						for kh := 0; kh < l.kernelRows; kh++ {
							for kw := 0; kw < l.kernelCols; kw++ {
								ih, iw := oh*l.stride+kh, ow*l.stride+kw
								idx := f*kernelStrides[0] + c*kernelStrides[1] + kh*kernelStrides[2] + kw
								kernelGrad[idx] += inputs.At(b, c, ih, iw) * delta
								downstream.Set(downstream.At(b, c, ih, iw)+l.kernels.At(f, c, kh, kw)*delta, b, c, ih, iw)
							}
						}
					}
				}
			}
		}
	}
}
