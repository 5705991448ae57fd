package nn

import (
	"fmt"
	"math"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// PoolingMethod selects how a pooling window reduces to one value.
type PoolingMethod int

const (
	NoPooling PoolingMethod = iota
	MaxPooling
	AveragePooling
)

var poolingMethodNames = map[PoolingMethod]string{
	NoPooling:      "NoPooling",
	MaxPooling:     "MaxPooling",
	AveragePooling: "AveragePooling",
}

func (m PoolingMethod) String() string {
	if name, ok := poolingMethodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("PoolingMethod(%d)", int(m))
}

// ParsePoolingMethod maps a name back to its PoolingMethod.
func ParsePoolingMethod(name string) (PoolingMethod, bool) {
	for m, n := range poolingMethodNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// Pooling reduces the spatial dimensions of 4-D image batches. It has no
// trainable parameters.
type Pooling struct {
	inputShape tensor.Shape // [channels, rows, cols]
	poolRows   int
	poolCols   int
	stride     int
	method     PoolingMethod
}

// NewPooling creates a pooling layer over per-sample input shape
// [channels, rows, cols]. With NoPooling the layer is an identity.
func NewPooling(inputShape tensor.Shape, poolRows, poolCols, stride int, method PoolingMethod) *Pooling {
	if inputShape.Rank() != 3 {
		panic(fmt.Sprintf("nn: Pooling wants per-sample shape [channels, rows, cols], got %v", inputShape))
	}
	if stride < 1 {
		panic(fmt.Sprintf("nn: Pooling stride %d, want >= 1", stride))
	}
	if poolRows > inputShape[1] || poolCols > inputShape[2] {
		panic(fmt.Sprintf("nn: Pooling window %dx%d larger than input %dx%d", poolRows, poolCols, inputShape[1], inputShape[2]))
	}
	return &Pooling{
		inputShape: inputShape.Clone(),
		poolRows:   poolRows,
		poolCols:   poolCols,
		stride:     stride,
		method:     method,
	}
}

// Method returns the pooling method.
func (l *Pooling) Method() PoolingMethod { return l.method }

func (l *Pooling) Kind() Kind               { return PoolingKind }
func (l *Pooling) InputShape() tensor.Shape { return l.inputShape }

func (l *Pooling) OutputShape() tensor.Shape {
	if l.method == NoPooling {
		return l.inputShape
	}
	hOut := (l.inputShape[1]-l.poolRows)/l.stride + 1
	wOut := (l.inputShape[2]-l.poolCols)/l.stride + 1
	return tensor.Shape{l.inputShape[0], hOut, wOut}
}

func (l *Pooling) ParameterCount() int        { return 0 }
func (l *Pooling) PackParameters([]float64)   {}
func (l *Pooling) UnpackParameters([]float64) {}

func (l *Pooling) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(PoolingKind, inputs, l.inputShape)

	if l.method == NoPooling {
		out := inputs.Clone()
		fwd.Combinations = out
		fwd.Activations = out
		return
	}

	batch := inputs.Shape()[0]
	channels := l.inputShape[0]
	outShape := l.OutputShape()
	hOut, wOut := outShape[1], outShape[2]
	out := tensor.New(tensor.Shape{batch, channels, hOut, wOut})
	windowSize := float64(l.poolRows * l.poolCols)

	dev.ForBatch(batch, channels, func(b, c int) {
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				switch l.method {
				case MaxPooling:
					best := math.Inf(-1)
					for ph := 0; ph < l.poolRows; ph++ {
						for pw := 0; pw < l.poolCols; pw++ {
							if v := inputs.At(b, c, oh*l.stride+ph, ow*l.stride+pw); v > best {
								best = v
							}
						}
					}
					out.Set(best, b, c, oh, ow)
				case AveragePooling:
					sum := 0.0
					for ph := 0; ph < l.poolRows; ph++ {
						for pw := 0; pw < l.poolCols; pw++ {
							sum += inputs.At(b, c, oh*l.stride+ph, ow*l.stride+pw)
						}
					}
					out.Set(sum/windowSize, b, c, oh, ow)
				}
			}
		}
	})

	fwd.Combinations = out
	fwd.Activations = out
}

func (l *Pooling) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(PoolingKind, len(paramGrad), 0)

	if l.method == NoPooling {
		downstream.CopyFrom(upstream)
		return
	}

	batch := inputs.Shape()[0]
	channels := l.inputShape[0]
	outShape := l.OutputShape()
	hOut, wOut := outShape[1], outShape[2]
	windowSize := float64(l.poolRows * l.poolCols)
	downstream.Fill(0)

	// Pooling windows can overlap when stride < window, so the scatter
	// into downstream stays sequential per (batch, channel) plane.
	dev.ForBatch(batch, channels, func(b, c int) {
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				up := upstream.At(b, c, oh, ow)
				switch l.method {
				case MaxPooling:
					// Route the gradient to the window argmax only.
					bestH, bestW := oh*l.stride, ow*l.stride
					best := inputs.At(b, c, bestH, bestW)
					for ph := 0; ph < l.poolRows; ph++ {
						for pw := 0; pw < l.poolCols; pw++ {
							ih, iw := oh*l.stride+ph, ow*l.stride+pw
							if v := inputs.At(b, c, ih, iw); v > best {
								best, bestH, bestW = v, ih, iw
							}
						}
					}
					downstream.Set(downstream.At(b, c, bestH, bestW)+up, b, c, bestH, bestW)
				case AveragePooling:
					share := up / windowSize
					for ph := 0; ph < l.poolRows; ph++ {
						for pw := 0; pw < l.poolCols; pw++ {
							ih, iw := oh*l.stride+ph, ow*l.stride+pw
							downstream.Set(downstream.At(b, c, ih, iw)+share, b, c, ih, iw)
						}
					}
				}
			}
		}
	})
}
