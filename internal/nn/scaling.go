package nn

import (
	"fmt"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// ScalingMethod selects the per-feature affine transform used by the
// Scaling and Unscaling layers.
type ScalingMethod int

const (
	NoScaling ScalingMethod = iota
	MinimumMaximum
	MeanStandardDeviation
	StandardDeviation
)

var scalingMethodNames = map[ScalingMethod]string{
	NoScaling:             "NoScaling",
	MinimumMaximum:        "MinimumMaximum",
	MeanStandardDeviation: "MeanStandardDeviation",
	StandardDeviation:     "StandardDeviation",
}

func (m ScalingMethod) String() string {
	if name, ok := scalingMethodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ScalingMethod(%d)", int(m))
}

// ParseScalingMethod maps a name back to its ScalingMethod.
func ParseScalingMethod(name string) (ScalingMethod, bool) {
	for m, n := range scalingMethodNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// rangeTiny guards the degenerate case of a constant feature: scaling
// passes it through unchanged instead of dividing by zero.
const rangeTiny = 1e-12

// Scaling normalizes each input feature with precomputed descriptives. It
// has no trainable parameters and sits at position 0 of every non-empty
// network.
type Scaling struct {
	descriptives []data.Descriptives
	method       ScalingMethod
}

// NewScaling creates a scaling layer for n features with neutral
// descriptives (min -1, max 1, mean 0, stddev 1) and the
// MeanStandardDeviation method.
func NewScaling(n int) *Scaling {
	descriptives := make([]data.Descriptives, n)
	for i := range descriptives {
		descriptives[i] = data.Descriptives{Minimum: -1, Maximum: 1, Mean: 0, StandardDeviation: 1}
	}
	return &Scaling{descriptives: descriptives, method: MeanStandardDeviation}
}

// SetDescriptives installs the per-feature statistics, usually taken from
// the data set's training samples.
func (l *Scaling) SetDescriptives(d []data.Descriptives) {
	if len(d) != len(l.descriptives) {
		panic(fmt.Sprintf("nn: Scaling layer has %d features, got %d descriptives", len(l.descriptives), len(d)))
	}
	l.descriptives = d
}

// Descriptives returns the per-feature statistics.
func (l *Scaling) Descriptives() []data.Descriptives { return l.descriptives }

// Method returns the scaling method.
func (l *Scaling) Method() ScalingMethod { return l.method }

// SetMethod changes the scaling method.
func (l *Scaling) SetMethod(m ScalingMethod) { l.method = m }

func (l *Scaling) Kind() Kind                 { return ScalingKind }
func (l *Scaling) InputShape() tensor.Shape   { return tensor.Shape{len(l.descriptives)} }
func (l *Scaling) OutputShape() tensor.Shape  { return tensor.Shape{len(l.descriptives)} }
func (l *Scaling) ParameterCount() int        { return 0 }
func (l *Scaling) PackParameters([]float64)   {}
func (l *Scaling) UnpackParameters([]float64) {}

// scaleFactors returns the per-feature slope a and intercept b of the
// scaled value y = a*x + b.
func scaleFactors(method ScalingMethod, d data.Descriptives) (a, b float64) {
	switch method {
	case NoScaling:
		return 1, 0
	case MinimumMaximum:
		span := d.Maximum - d.Minimum
		if span < rangeTiny {
			return 1, 0
		}
		// Scale into [-1, 1].
		return 2 / span, -(d.Maximum + d.Minimum) / span
	case MeanStandardDeviation:
		if d.StandardDeviation < rangeTiny {
			return 1, 0
		}
		return 1 / d.StandardDeviation, -d.Mean / d.StandardDeviation
	case StandardDeviation:
		if d.StandardDeviation < rangeTiny {
			return 1, 0
		}
		return 1 / d.StandardDeviation, 0
	}
	panic(fmt.Sprintf("nn: unknown scaling method %d", int(method)))
}

func (l *Scaling) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(ScalingKind, inputs, l.InputShape())
	rows := inputs.Shape()[0]
	cols := len(l.descriptives)

	out := tensor.New(tensor.Shape{rows, cols})
	dev.For(rows, func(i int) {
		src := inputs.Row(i)
		dst := out.Row(i)
		for j := 0; j < cols; j++ {
			a, b := scaleFactors(l.method, l.descriptives[j])
			dst[j] = a*src[j] + b
		}
	})
	fwd.Combinations = out
	fwd.Activations = out
}

func (l *Scaling) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(ScalingKind, len(paramGrad), 0)
	rows := upstream.Shape()[0]
	cols := len(l.descriptives)
	dev.For(rows, func(i int) {
		src := upstream.Row(i)
		dst := downstream.Row(i)
		for j := 0; j < cols; j++ {
			a, _ := scaleFactors(l.method, l.descriptives[j])
			dst[j] = a * src[j]
		}
	})
}

// Unscaling maps network outputs back to the target variables' original
// units. It inverts the transform a Scaling layer with the same
// descriptives and method would apply.
type Unscaling struct {
	descriptives []data.Descriptives
	method       ScalingMethod
}

// NewUnscaling creates an unscaling layer for n features with neutral
// descriptives and the MeanStandardDeviation method.
func NewUnscaling(n int) *Unscaling {
	descriptives := make([]data.Descriptives, n)
	for i := range descriptives {
		descriptives[i] = data.Descriptives{Minimum: -1, Maximum: 1, Mean: 0, StandardDeviation: 1}
	}
	return &Unscaling{descriptives: descriptives, method: MeanStandardDeviation}
}

// SetDescriptives installs the per-feature target statistics.
func (l *Unscaling) SetDescriptives(d []data.Descriptives) {
	if len(d) != len(l.descriptives) {
		panic(fmt.Sprintf("nn: Unscaling layer has %d features, got %d descriptives", len(l.descriptives), len(d)))
	}
	l.descriptives = d
}

// Descriptives returns the per-feature statistics.
func (l *Unscaling) Descriptives() []data.Descriptives { return l.descriptives }

// Method returns the scaling method being inverted.
func (l *Unscaling) Method() ScalingMethod { return l.method }

// SetMethod changes the scaling method being inverted.
func (l *Unscaling) SetMethod(m ScalingMethod) { l.method = m }

func (l *Unscaling) Kind() Kind                 { return UnscalingKind }
func (l *Unscaling) InputShape() tensor.Shape   { return tensor.Shape{len(l.descriptives)} }
func (l *Unscaling) OutputShape() tensor.Shape  { return tensor.Shape{len(l.descriptives)} }
func (l *Unscaling) ParameterCount() int        { return 0 }
func (l *Unscaling) PackParameters([]float64)   {}
func (l *Unscaling) UnpackParameters([]float64) {}

func (l *Unscaling) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(UnscalingKind, inputs, l.InputShape())
	rows := inputs.Shape()[0]
	cols := len(l.descriptives)

	out := tensor.New(tensor.Shape{rows, cols})
	dev.For(rows, func(i int) {
		src := inputs.Row(i)
		dst := out.Row(i)
		for j := 0; j < cols; j++ {
			a, b := scaleFactors(l.method, l.descriptives[j])
			// Invert y = a*x + b.
			dst[j] = (src[j] - b) / a
		}
	})
	fwd.Combinations = out
	fwd.Activations = out
}

func (l *Unscaling) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(UnscalingKind, len(paramGrad), 0)
	rows := upstream.Shape()[0]
	cols := len(l.descriptives)
	dev.For(rows, func(i int) {
		src := upstream.Row(i)
		dst := downstream.Row(i)
		for j := 0; j < cols; j++ {
			a, _ := scaleFactors(l.method, l.descriptives[j])
			dst[j] = src[j] / a
		}
	})
}
