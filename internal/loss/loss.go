// Package loss measures how well a network fits a data set and produces
// the gradient that drives training. An Index binds a network and a data
// set to one of six error terms plus an optional regularization term.
package loss

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/nn"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// Method selects the error term.
type Method int

const (
	SumSquaredError Method = iota
	MeanSquaredError
	NormalizedSquaredError
	MinkowskiError
	CrossEntropyError
	WeightedSquaredError
)

var methodNames = map[Method]string{
	SumSquaredError:        "SumSquaredError",
	MeanSquaredError:       "MeanSquaredError",
	NormalizedSquaredError: "NormalizedSquaredError",
	MinkowskiError:         "MinkowskiError",
	CrossEntropyError:      "CrossEntropyError",
	WeightedSquaredError:   "WeightedSquaredError",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod resolves a method name.
func ParseMethod(name string) (Method, bool) {
	for m, n := range methodNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// SumSquaredFamily reports whether the method's loss is a plain or scaled
// sum of squared residuals, the shape Levenberg-Marquardt needs.
func (m Method) SumSquaredFamily() bool {
	switch m {
	case SumSquaredError, MeanSquaredError, NormalizedSquaredError, WeightedSquaredError:
		return true
	}
	return false
}

// Regularization selects the parameter penalty added to the error term.
type Regularization int

const (
	NoRegularization Regularization = iota
	L1
	L2
)

var regularizationNames = map[Regularization]string{
	NoRegularization: "NoRegularization",
	L1:               "L1",
	L2:               "L2",
}

func (r Regularization) String() string {
	if name, ok := regularizationNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Regularization(%d)", int(r))
}

// ParseRegularization resolves a regularization name.
func ParseRegularization(name string) (Regularization, bool) {
	for r, n := range regularizationNames {
		if n == name {
			return r, true
		}
	}
	return 0, false
}

const (
	// crossEntropyEpsilon clamps probabilities away from 0 and 1 so the
	// logarithms stay finite.
	crossEntropyEpsilon = 1e-6

	// normalizationTiny is the smallest usable normalization coefficient;
	// below it the targets are constant and the coefficient degrades to 1.
	normalizationTiny = 1e-12

	defaultMinkowskiParameter = 1.5
)

// Index evaluates one error term, plus regularization, for a bound
// network over a partition of a bound data set.
type Index struct {
	network *nn.Network
	set     *data.Set
	method  Method

	minkowskiParameter float64
	positivesWeight    float64
	negativesWeight    float64
	weightsSet         bool

	regularization       Regularization
	regularizationWeight float64

	// normalization caches the NormalizedSquaredError denominator per
	// partition until InvalidateCache.
	normalization map[data.SampleUse]float64
}

// NewIndex binds an error term to a network and a data set. Either
// binding may be nil and supplied later with Bind.
func NewIndex(method Method, network *nn.Network, set *data.Set) *Index {
	return &Index{
		network:            network,
		set:                set,
		method:             method,
		minkowskiParameter: defaultMinkowskiParameter,
		regularization:     NoRegularization,
		normalization:      make(map[data.SampleUse]float64),
	}
}

// Bind replaces the network and data set bindings and drops cached
// partition statistics.
func (ix *Index) Bind(network *nn.Network, set *data.Set) {
	ix.network = network
	ix.set = set
	ix.InvalidateCache()
}

// Network returns the bound network.
func (ix *Index) Network() *nn.Network { return ix.network }

// DataSet returns the bound data set.
func (ix *Index) DataSet() *data.Set { return ix.set }

// Method returns the error term.
func (ix *Index) Method() Method { return ix.method }

// MinkowskiParameter returns the exponent p of the Minkowski error.
func (ix *Index) MinkowskiParameter() float64 { return ix.minkowskiParameter }

// SetMinkowskiParameter validates and stores the exponent p.
func (ix *Index) SetMinkowskiParameter(p float64) error {
	if p < 1 || p > 2 {
		return errors.Wrapf(fault.ErrInvalidConfiguration, "loss: Minkowski parameter %g outside [1, 2]", p)
	}
	ix.minkowskiParameter = p
	return nil
}

// SetClassWeights stores the weighted squared error's per-class weights.
func (ix *Index) SetClassWeights(positives, negatives float64) {
	ix.positivesWeight = positives
	ix.negativesWeight = negatives
	ix.weightsSet = true
}

// ClassWeights returns the weighted squared error's per-class weights,
// deriving the default (negatives/positives, 1) from the bound data set
// when none were set.
func (ix *Index) ClassWeights() (positives, negatives float64) {
	if ix.weightsSet {
		return ix.positivesWeight, ix.negativesWeight
	}
	if ix.set == nil {
		return 1, 1
	}
	neg, pos := ix.set.TargetClassCounts()
	if pos == 0 {
		return 1, 1
	}
	return float64(neg) / float64(pos), 1
}

// Regularization returns the penalty kind and weight.
func (ix *Index) Regularization() (Regularization, float64) {
	return ix.regularization, ix.regularizationWeight
}

// SetRegularization stores the penalty kind and weight.
func (ix *Index) SetRegularization(r Regularization, weight float64) error {
	if weight < 0 {
		return errors.Wrapf(fault.ErrInvalidConfiguration, "loss: regularization weight %g is negative", weight)
	}
	ix.regularization = r
	ix.regularizationWeight = weight
	return nil
}

// InvalidateCache drops cached partition statistics. Call after changing
// sample uses or target values.
func (ix *Index) InvalidateCache() {
	ix.normalization = make(map[data.SampleUse]float64)
}

// Check verifies the index is usable: both collaborators bound and the
// partition non-empty.
func (ix *Index) Check(use data.SampleUse) error {
	if ix.network == nil {
		return errors.Wrap(fault.ErrUnboundReference, "loss: no network bound")
	}
	if ix.set == nil {
		return errors.Wrap(fault.ErrUnboundReference, "loss: no data set bound")
	}
	if len(ix.set.SampleIndices(use)) == 0 {
		return errors.Wrapf(fault.ErrEmptyPartition, "loss: data set has no %s samples", use)
	}
	return nil
}

// Loss evaluates the total loss (error term plus regularization) over a
// partition of the bound data set.
func (ix *Index) Loss(dev *device.Device, use data.SampleUse) float64 {
	inputs := ix.set.Inputs(use)
	targets := ix.set.Targets(use)
	outputs := ix.network.Outputs(dev, inputs)
	value, _ := ix.errorAndDelta(dev, outputs, targets, use, false)
	return value + ix.regularizationValue()
}

// BatchLoss evaluates the total loss on an explicit batch, bypassing the
// data set partitions. Mini-batch optimizers use it.
func (ix *Index) BatchLoss(dev *device.Device, inputs, targets *tensor.Tensor) float64 {
	outputs := ix.network.Outputs(dev, inputs)
	value, _ := ix.errorAndDelta(dev, outputs, targets, data.Training, false)
	return value + ix.regularizationValue()
}

// Gradient evaluates the total loss and its gradient with respect to the
// network's flat parameter vector over a partition.
func (ix *Index) Gradient(dev *device.Device, use data.SampleUse) (float64, []float64) {
	inputs := ix.set.Inputs(use)
	targets := ix.set.Targets(use)
	return ix.gradientOn(dev, inputs, targets, use)
}

// BatchGradient evaluates the total loss and gradient on an explicit
// batch.
func (ix *Index) BatchGradient(dev *device.Device, inputs, targets *tensor.Tensor) (float64, []float64) {
	return ix.gradientOn(dev, inputs, targets, data.Training)
}

func (ix *Index) gradientOn(dev *device.Device, inputs, targets *tensor.Tensor, use data.SampleUse) (float64, []float64) {
	states := ix.network.ForwardPropagate(dev, inputs)
	outputs := states[len(states)-1].Activations

	value, delta := ix.errorAndDelta(dev, outputs, targets, use, true)
	grad := ix.network.Backpropagate(dev, inputs, states, delta)

	value += ix.regularizationValue()
	ix.addRegularizationGradient(grad)
	return value, grad
}

// errorAndDelta computes the error term's value and, when wantDelta is
// set, its derivative with respect to the network outputs.
func (ix *Index) errorAndDelta(dev *device.Device, outputs, targets *tensor.Tensor, use data.SampleUse, wantDelta bool) (float64, *tensor.Tensor) {
	if !outputs.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("loss: outputs %v do not match targets %v", outputs.Shape(), targets.Shape()))
	}

	var delta *tensor.Tensor
	if wantDelta {
		delta = tensor.New(outputs.Shape().Clone())
	}

	out := outputs.Data()
	tgt := targets.Data()

	switch ix.method {
	case SumSquaredError:
		return ix.squaredError(out, tgt, delta, 1), delta

	case MeanSquaredError:
		samples := outputs.Shape()[0]
		return ix.squaredError(out, tgt, delta, 1/float64(samples)), delta

	case NormalizedSquaredError:
		coeff := ix.normalizationCoefficient(use)
		return ix.squaredError(out, tgt, delta, 1/coeff), delta

	case MinkowskiError:
		p := ix.minkowskiParameter
		value := 0.0
		for i := range out {
			d := out[i] - tgt[i]
			value += math.Pow(math.Abs(d), p)
			if delta != nil {
				delta.Data()[i] = p * math.Pow(math.Abs(d), p-1) * sign(d)
			}
		}
		return value, delta

	case CrossEntropyError:
		value := 0.0
		for i := range out {
			c := clamp(out[i], crossEntropyEpsilon, 1-crossEntropyEpsilon)
			y := tgt[i]
			value -= y*math.Log(c) + (1-y)*math.Log(1-c)
			if delta != nil {
				delta.Data()[i] = -y/c + (1-y)/(1-c)
			}
		}
		return value, delta

	case WeightedSquaredError:
		positives, negatives := ix.ClassWeights()
		value := 0.0
		for i := range out {
			w := negatives
			if tgt[i] > 0.5 {
				w = positives
			}
			d := out[i] - tgt[i]
			value += w * d * d
			if delta != nil {
				delta.Data()[i] = 2 * w * d
			}
		}
		return value, delta
	}
	panic(fmt.Sprintf("loss: unknown method %d", int(ix.method)))
}

func (ix *Index) squaredError(out, tgt []float64, delta *tensor.Tensor, scale float64) float64 {
	value := 0.0
	for i := range out {
		d := out[i] - tgt[i]
		value += scale * d * d
		if delta != nil {
			delta.Data()[i] = 2 * scale * d
		}
	}
	return value
}

// normalizationCoefficient returns the cached sum-squared distance of the
// partition's targets to their column means. Near-constant targets
// degrade to coefficient 1.
func (ix *Index) normalizationCoefficient(use data.SampleUse) float64 {
	if coeff, ok := ix.normalization[use]; ok {
		return coeff
	}
	targets := ix.set.Targets(use)
	means := targets.ColumnMeans()

	coeff := 0.0
	rows, cols := targets.Shape()[0], targets.Shape()[1]
	for i := 0; i < rows; i++ {
		row := targets.Row(i)
		for j := 0; j < cols; j++ {
			d := row[j] - means.Data()[j]
			coeff += d * d
		}
	}
	if coeff < normalizationTiny {
		coeff = 1
	}
	ix.normalization[use] = coeff
	return coeff
}

func (ix *Index) regularizationValue() float64 {
	if ix.regularization == NoRegularization || ix.regularizationWeight == 0 {
		return 0
	}
	params := ix.network.Parameters()
	value := 0.0
	switch ix.regularization {
	case L1:
		for _, p := range params {
			value += math.Abs(p)
		}
	case L2:
		for _, p := range params {
			value += p * p
		}
	}
	return ix.regularizationWeight * value
}

func (ix *Index) addRegularizationGradient(grad []float64) {
	if ix.regularization == NoRegularization || ix.regularizationWeight == 0 {
		return
	}
	params := ix.network.Parameters()
	switch ix.regularization {
	case L1:
		for i, p := range params {
			grad[i] += ix.regularizationWeight * sign(p)
		}
	case L2:
		for i, p := range params {
			grad[i] += 2 * ix.regularizationWeight * p
		}
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
