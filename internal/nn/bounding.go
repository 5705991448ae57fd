package nn

import (
	"fmt"
	"math"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// Bounding clamps each output variable to a configured [lower, upper]
// interval. It has no trainable parameters and is idempotent.
type Bounding struct {
	lower []float64
	upper []float64
}

// NewBounding creates a bounding layer for n features with infinite
// bounds (a pass-through until bounds are set).
func NewBounding(n int) *Bounding {
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i := range lower {
		lower[i] = math.Inf(-1)
		upper[i] = math.Inf(1)
	}
	return &Bounding{lower: lower, upper: upper}
}

// SetBounds sets the clamp interval for feature i.
func (l *Bounding) SetBounds(i int, lower, upper float64) {
	if lower > upper {
		panic(fmt.Sprintf("nn: Bounding feature %d lower %g > upper %g", i, lower, upper))
	}
	l.lower[i] = lower
	l.upper[i] = upper
}

// Bounds returns the clamp interval for feature i.
func (l *Bounding) Bounds(i int) (lower, upper float64) {
	return l.lower[i], l.upper[i]
}

func (l *Bounding) Kind() Kind                 { return BoundingKind }
func (l *Bounding) InputShape() tensor.Shape   { return tensor.Shape{len(l.lower)} }
func (l *Bounding) OutputShape() tensor.Shape  { return tensor.Shape{len(l.lower)} }
func (l *Bounding) ParameterCount() int        { return 0 }
func (l *Bounding) PackParameters([]float64)   {}
func (l *Bounding) UnpackParameters([]float64) {}

func (l *Bounding) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(BoundingKind, inputs, l.InputShape())
	rows := inputs.Shape()[0]
	cols := len(l.lower)

	out := tensor.New(tensor.Shape{rows, cols})
	dev.For(rows, func(i int) {
		src := inputs.Row(i)
		dst := out.Row(i)
		for j := 0; j < cols; j++ {
			x := src[j]
			if x < l.lower[j] {
				x = l.lower[j]
			} else if x > l.upper[j] {
				x = l.upper[j]
			}
			dst[j] = x
		}
	})
	fwd.Combinations = out
	fwd.Activations = out
}

func (l *Bounding) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(BoundingKind, len(paramGrad), 0)
	rows := upstream.Shape()[0]
	cols := len(l.lower)
	dev.For(rows, func(i int) {
		in := inputs.Row(i)
		src := upstream.Row(i)
		dst := downstream.Row(i)
		for j := 0; j < cols; j++ {
			// The clamp is flat outside the interval.
			if in[j] < l.lower[j] || in[j] > l.upper[j] {
				dst[j] = 0
			} else {
				dst[j] = src[j]
			}
		}
	})
}
