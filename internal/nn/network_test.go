package nn

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

func kinds(n *Network) []Kind {
	out := make([]Kind, n.LayersCount())
	for i, l := range n.Layers() {
		out[i] = l.Kind()
	}
	return out
}

func TestNewNetworkApproximationStack(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := NewNetwork(Approximation, []int{3, 5, 2}, rng)

	assert.Equal(t, []Kind{ScalingKind, PerceptronKind, PerceptronKind, UnscalingKind, BoundingKind}, kinds(net))
	assert.Equal(t, 3, net.InputsCount())
	assert.Equal(t, 2, net.OutputsCount())
	assert.Equal(t, []int{3, 5, 2}, net.Architecture())

	hidden := net.Layer(1).(*Perceptron)
	assert.Equal(t, HyperbolicTangent, hidden.Activation())
	output := net.Layer(2).(*Perceptron)
	assert.Equal(t, Linear, output.Activation())
}

func TestNewNetworkClassificationStack(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := NewNetwork(Classification, []int{4, 6, 3}, rng)

	assert.Equal(t, []Kind{ScalingKind, PerceptronKind, ProbabilisticKind}, kinds(net))
	prob := net.Layer(2).(*Probabilistic)
	assert.Equal(t, SoftmaxProbability, prob.Method())

	binary := NewNetwork(Classification, []int{4, 6, 1}, rng)
	assert.Equal(t, LogisticProbability, binary.Layer(2).(*Probabilistic).Method())
}

func TestNewNetworkImageTypesSkipScaling(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := NewNetwork(ImageClassification, []int{8, 4, 2}, rng)
	assert.Equal(t, []Kind{PerceptronKind, ProbabilisticKind}, kinds(net))
}

func TestNewNetworkRejectsBadArchitecture(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Panics(t, func() { NewNetwork(Approximation, []int{3}, rng) })
	assert.Panics(t, func() { NewNetwork(Approximation, []int{3, 0, 2}, rng) })
	assert.Panics(t, func() { NewNetwork(ModelType(99), []int{3, 2}, rng) })
}

func TestAddLayerEnforcesComposition(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	net := NewEmptyNetwork(Approximation)
	net.AddLayer(NewScaling(3))
	net.AddLayer(NewPerceptron(3, 2, HyperbolicTangent, rng))
	require.Equal(t, 2, net.LayersCount())

	assert.Panics(t, func() { net.AddLayer(NewPerceptron(5, 2, Linear, rng)) }, "shape break")
	assert.Panics(t, func() { net.AddLayer(NewScaling(2)) }, "scaling past position 0")
}

func TestParametersRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	net := NewNetwork(Approximation, []int{2, 4, 1}, rng)

	count := net.ParameterCount()
	require.Equal(t, (2+1)*4+(4+1)*1, count)

	params := net.Parameters()
	require.Len(t, params, count)

	replacement := make([]float64, count)
	for i := range replacement {
		replacement[i] = float64(i) * 0.25
	}
	net.SetParameters(replacement)
	assert.Equal(t, replacement, net.Parameters())

	assert.Panics(t, func() { net.SetParameters(replacement[:count-1]) })
}

func TestOutputsDeterministicAcrossDevices(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	net := NewNetwork(Approximation, []int{4, 16, 16, 2}, rng)
	inputs := tensor.RandUniform(tensor.Shape{64, 4}, -2, 2, rng)

	serial := device.New(device.SingleThreaded, 0)
	pool := device.New(device.ThreadPool, 4)

	a := net.Outputs(serial, inputs)
	b := net.Outputs(pool, inputs)
	c := net.Outputs(pool, inputs)

	assert.Equal(t, a.Data(), b.Data(), "thread pool must match serial bit for bit")
	assert.Equal(t, b.Data(), c.Data(), "repeat runs must be identical")
}

func TestScalingUnscalingInverse(t *testing.T) {
	descriptives := []data.Descriptives{
		{Minimum: -3, Maximum: 9, Mean: 2, StandardDeviation: 1.5},
		{Minimum: 0, Maximum: 1, Mean: 0.4, StandardDeviation: 0.2},
	}
	rng := rand.New(rand.NewSource(11))
	inputs := tensor.RandUniform(tensor.Shape{10, 2}, -3, 9, rng)
	dev := device.New(device.SingleThreaded, 0)

	for _, method := range []ScalingMethod{NoScaling, MinimumMaximum, MeanStandardDeviation, StandardDeviation} {
		scaling := NewScaling(2)
		scaling.SetDescriptives(descriptives)
		scaling.SetMethod(method)
		unscaling := NewUnscaling(2)
		unscaling.SetDescriptives(descriptives)
		unscaling.SetMethod(method)

		var fwd, back Forwarded
		scaling.Forward(dev, inputs, &fwd)
		unscaling.Forward(dev, fwd.Activations, &back)

		for i := 0; i < inputs.NumElements(); i++ {
			assert.InDelta(t, inputs.Data()[i], back.Activations.Data()[i], 1e-12, "method %s", method)
		}
	}
}

func TestScalingConstantFeaturePassThrough(t *testing.T) {
	scaling := NewScaling(1)
	scaling.SetDescriptives([]data.Descriptives{{Minimum: 5, Maximum: 5, Mean: 5, StandardDeviation: 0}})
	scaling.SetMethod(MinimumMaximum)

	dev := device.New(device.SingleThreaded, 0)
	var fwd Forwarded
	scaling.Forward(dev, tensor.FromSlice([]float64{5, 5, 5}, tensor.Shape{3, 1}), &fwd)
	assert.Equal(t, []float64{5, 5, 5}, fwd.Activations.Data())
}

func TestProbabilisticSoftmaxRows(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	layer := NewProbabilistic(3, 4, rng)
	require.Equal(t, SoftmaxProbability, layer.Method())

	dev := device.New(device.SingleThreaded, 0)
	inputs := tensor.RandUniform(tensor.Shape{6, 3}, -50, 50, rng)
	var fwd Forwarded
	layer.Forward(dev, inputs, &fwd)

	for i := 0; i < 6; i++ {
		row := fwd.Activations.Row(i)
		sum := 0.0
		for _, p := range row {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "row %d", i)
	}
}

func TestProbabilisticCompetitiveOneHot(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	layer := NewProbabilistic(2, 3, rng)
	layer.SetMethod(CompetitiveProbability)

	dev := device.New(device.SingleThreaded, 0)
	var fwd Forwarded
	layer.Forward(dev, tensor.FromSlice([]float64{1, -1, 0.5, 2}, tensor.Shape{2, 2}), &fwd)

	for i := 0; i < 2; i++ {
		sum := 0.0
		for _, p := range fwd.Activations.Row(i) {
			assert.True(t, p == 0 || p == 1)
			sum += p
		}
		assert.Equal(t, 1.0, sum)
	}
}

func TestBoundingClampsAndIsIdempotent(t *testing.T) {
	layer := NewBounding(2)
	layer.SetBounds(0, -1, 1)
	layer.SetBounds(1, 0, 10)

	dev := device.New(device.SingleThreaded, 0)
	inputs := tensor.FromSlice([]float64{-5, 20, 0.5, 3}, tensor.Shape{2, 2})

	var first, second Forwarded
	layer.Forward(dev, inputs, &first)
	assert.Equal(t, []float64{-1, 10, 0.5, 3}, first.Activations.Data())

	layer.Forward(dev, first.Activations, &second)
	assert.Equal(t, first.Activations.Data(), second.Activations.Data())

	assert.Panics(t, func() { layer.SetBounds(0, 2, 1) })
}

func TestBoundingDefaultsAreOpen(t *testing.T) {
	layer := NewBounding(1)
	lower, upper := layer.Bounds(0)
	assert.True(t, math.IsInf(lower, -1))
	assert.True(t, math.IsInf(upper, 1))
}

func TestFirstLayerOfKind(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := NewNetwork(Approximation, []int{2, 3, 1}, rng)

	scaling := net.FirstLayerOfKind(ScalingKind)
	require.NotNil(t, scaling)
	assert.Same(t, net.Layer(0), scaling)
	assert.Nil(t, net.FirstLayerOfKind(LongShortTermMemoryKind))
}

func TestExpressionNamesAndStructure(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	net := NewNetwork(Approximation, []int{2, 3, 1}, rng)
	net.SetInputNames([]string{"temperature", "pressure"})
	net.SetOutputNames([]string{"yield"})

	expr := net.Expression()
	assert.Contains(t, expr, "temperature")
	assert.Contains(t, expr, "pressure")
	assert.Contains(t, expr, "yield = ")
	assert.Contains(t, expr, "HyperbolicTangent(")
	// One assignment per line.
	assert.Equal(t, strings.Count(expr, "\n"), strings.Count(expr, ";"))

	assert.Equal(t, "", NewEmptyNetwork(Approximation).Expression())
}

func TestSpatialToDenseFlatten(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	net := NewEmptyNetwork(ImageClassification)
	conv := NewConvolutional(tensor.Shape{1, 4, 4}, 2, 2, 2, 1, RectifiedLinear, rng)
	net.AddLayer(conv)
	net.AddLayer(NewPerceptron(conv.OutputShape().NumElements(), 3, Linear, rng))

	dev := device.New(device.SingleThreaded, 0)
	inputs := tensor.RandUniform(tensor.Shape{5, 1, 4, 4}, 0, 1, rng)
	out := net.Outputs(dev, inputs)
	assert.Equal(t, tensor.Shape{5, 3}, out.Shape())

	// The backward pass crosses the same flatten boundary.
	states := net.ForwardPropagate(dev, inputs)
	delta := tensor.Full(tensor.Shape{5, 3}, 1)
	grad := net.Backpropagate(dev, inputs, states, delta)
	assert.Len(t, grad, net.ParameterCount())
}

func TestParameterPerturbationChangesOutputs(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	net := NewNetwork(Approximation, []int{2, 3, 1}, rng)
	dev := device.New(device.SingleThreaded, 0)
	inputs := tensor.FromSlice([]float64{0.3, -0.7}, tensor.Shape{1, 2})

	before := net.Outputs(dev, inputs).At(0, 0)
	params := net.Parameters()
	params[0] += 0.5
	net.SetParameters(params)
	after := net.Outputs(dev, inputs).At(0, 0)

	assert.NotEqual(t, before, after)
}
