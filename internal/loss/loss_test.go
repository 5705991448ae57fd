package loss

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/nn"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// regressionFixture pairs a small approximation network with a noisy
// two-input regression set. Every sample starts in the training
// partition.
func regressionFixture(t *testing.T) (*nn.Network, *data.Set) {
	t.Helper()
	rng := rand.New(rand.NewSource(31))
	values := tensor.New(tensor.Shape{12, 3})
	for i := 0; i < 12; i++ {
		x := float64(i)/6.0 - 1
		y := float64(i%4)/2.0 - 0.75
		row := values.Row(i)
		row[0] = x
		row[1] = y
		row[2] = math.Sin(2*x) + 0.5*y
	}
	set, err := data.NewSet(values, 1)
	require.NoError(t, err)
	return nn.NewNetwork(nn.Approximation, []int{2, 4, 1}, rng), set
}

// classificationFixture pairs a logistic-output network with a binary
// target set of four negatives and two positives.
func classificationFixture(t *testing.T) (*nn.Network, *data.Set) {
	t.Helper()
	rng := rand.New(rand.NewSource(37))
	values := tensor.FromSlice([]float64{
		-1.0, -0.5, 0,
		-0.8, 0.3, 0,
		-0.2, -0.9, 0,
		0.1, 0.4, 0,
		0.7, 0.8, 1,
		0.9, -0.1, 1,
	}, tensor.Shape{6, 3})
	set, err := data.NewSet(values, 1)
	require.NoError(t, err)
	return nn.NewNetwork(nn.Classification, []int{2, 3, 1}, rng), set
}

// checkGradient compares the analytic parameter gradient against central
// finite differences of the loss.
func checkGradient(t *testing.T, ix *Index, dev *device.Device) {
	t.Helper()
	net := ix.Network()
	params := net.Parameters()

	_, analytic := ix.Gradient(dev, data.Training)

	numeric := make([]float64, len(params))
	fd.Gradient(numeric, func(x []float64) float64 {
		net.SetParameters(x)
		return ix.Loss(dev, data.Training)
	}, params, &fd.Settings{Formula: fd.Central, Step: 1e-6})
	net.SetParameters(params)

	for i := range numeric {
		tolerance := 1e-4 * (1 + math.Abs(numeric[i]))
		assert.InDelta(t, numeric[i], analytic[i], tolerance, "parameter %d", i)
	}
}

func TestGradientMatchesFiniteDifferences(t *testing.T) {
	dev := device.New(device.SingleThreaded, 0)

	t.Run("SumSquaredError", func(t *testing.T) {
		net, set := regressionFixture(t)
		checkGradient(t, NewIndex(SumSquaredError, net, set), dev)
	})
	t.Run("MeanSquaredError", func(t *testing.T) {
		net, set := regressionFixture(t)
		checkGradient(t, NewIndex(MeanSquaredError, net, set), dev)
	})
	t.Run("NormalizedSquaredError", func(t *testing.T) {
		net, set := regressionFixture(t)
		checkGradient(t, NewIndex(NormalizedSquaredError, net, set), dev)
	})
	t.Run("MinkowskiError", func(t *testing.T) {
		net, set := regressionFixture(t)
		ix := NewIndex(MinkowskiError, net, set)
		require.NoError(t, ix.SetMinkowskiParameter(1.5))
		checkGradient(t, ix, dev)
	})
	t.Run("CrossEntropyError", func(t *testing.T) {
		net, set := classificationFixture(t)
		checkGradient(t, NewIndex(CrossEntropyError, net, set), dev)
	})
	t.Run("WeightedSquaredError", func(t *testing.T) {
		net, set := classificationFixture(t)
		checkGradient(t, NewIndex(WeightedSquaredError, net, set), dev)
	})
	t.Run("L2Regularization", func(t *testing.T) {
		net, set := regressionFixture(t)
		ix := NewIndex(MeanSquaredError, net, set)
		require.NoError(t, ix.SetRegularization(L2, 0.01))
		checkGradient(t, ix, dev)
	})
}

// sequenceFixture builds a two-input regression set whose 12 rows are
// consecutive time steps, for window-based layers with timesteps 3.
func sequenceFixture(t *testing.T) *data.Set {
	t.Helper()
	rng := rand.New(rand.NewSource(47))
	values := tensor.New(tensor.Shape{12, 3})
	for i := 0; i < 12; i++ {
		x := math.Sin(float64(i) / 3)
		row := values.Row(i)
		row[0] = x
		row[1] = rng.NormFloat64() * 0.1
		row[2] = 0.5*x + row[1]
	}
	set, err := data.NewSet(values, 1)
	require.NoError(t, err)
	return set
}

func TestRecurrentStackGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(53))
	set := sequenceFixture(t)

	net := nn.NewEmptyNetwork(nn.Forecasting)
	net.AddLayer(nn.NewRecurrent(2, 3, 3, nn.HyperbolicTangent, rng))
	net.AddLayer(nn.NewPerceptron(3, 1, nn.Linear, rng))

	dev := device.New(device.SingleThreaded, 0)
	checkGradient(t, NewIndex(MeanSquaredError, net, set), dev)
}

func TestLongShortTermMemoryStackGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(59))
	set := sequenceFixture(t)

	net := nn.NewEmptyNetwork(nn.Forecasting)
	net.AddLayer(nn.NewLSTM(2, 3, 3, rng))
	net.AddLayer(nn.NewPerceptron(3, 1, nn.Linear, rng))

	dev := device.New(device.SingleThreaded, 0)
	checkGradient(t, NewIndex(MeanSquaredError, net, set), dev)
}

func TestConvolutionalPoolingGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(67))

	// Each row is a flattened 1x4x4 image plus one target column.
	values := tensor.New(tensor.Shape{6, 17})
	for i := 0; i < 6; i++ {
		row := values.Row(i)
		sum := 0.0
		for j := 0; j < 16; j++ {
			row[j] = rng.NormFloat64()
			sum += row[j]
		}
		row[16] = sum / 16
	}
	set, err := data.NewSet(values, 1)
	require.NoError(t, err)

	net := nn.NewEmptyNetwork(nn.ImageApproximation)
	net.AddLayer(nn.NewConvolutional(tensor.Shape{1, 4, 4}, 2, 3, 3, 1, nn.HyperbolicTangent, rng))
	net.AddLayer(nn.NewPooling(tensor.Shape{2, 2, 2}, 2, 2, 2, nn.AveragePooling))
	net.AddLayer(nn.NewPerceptron(2, 1, nn.Linear, rng))

	dev := device.New(device.SingleThreaded, 0)
	checkGradient(t, NewIndex(MeanSquaredError, net, set), dev)
}

func TestSoftmaxCrossEntropyGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	values := tensor.New(tensor.Shape{9, 5})
	for i := 0; i < 9; i++ {
		row := values.Row(i)
		row[0] = rng.NormFloat64()
		row[1] = rng.NormFloat64()
		row[2+i%3] = 1
	}
	set, err := data.NewSet(values, 3)
	require.NoError(t, err)
	net := nn.NewNetwork(nn.Classification, []int{2, 4, 3}, rng)

	dev := device.New(device.SingleThreaded, 0)
	checkGradient(t, NewIndex(CrossEntropyError, net, set), dev)
}

func TestMeanVersusSumScaling(t *testing.T) {
	net, set := regressionFixture(t)
	dev := device.New(device.SingleThreaded, 0)

	sse := NewIndex(SumSquaredError, net, set).Loss(dev, data.Training)
	mse := NewIndex(MeanSquaredError, net, set).Loss(dev, data.Training)
	assert.InDelta(t, sse/float64(set.Samples()), mse, 1e-12)
}

func TestNormalizedSquaredErrorConstantTargets(t *testing.T) {
	rng := rand.New(rand.NewSource(43))
	values := tensor.New(tensor.Shape{5, 2})
	for i := 0; i < 5; i++ {
		values.Set(rng.Float64(), i, 0)
		values.Set(3, i, 1)
	}
	set, err := data.NewSet(values, 1)
	require.NoError(t, err)
	net := nn.NewNetwork(nn.Approximation, []int{1, 2, 1}, rng)

	// Constant targets degrade the normalization coefficient to 1, so the
	// normalized error collapses onto the plain sum of squares.
	dev := device.New(device.SingleThreaded, 0)
	nse := NewIndex(NormalizedSquaredError, net, set).Loss(dev, data.Training)
	sse := NewIndex(SumSquaredError, net, set).Loss(dev, data.Training)
	assert.InDelta(t, sse, nse, 1e-12)
}

func TestNormalizationCoefficientInvalidation(t *testing.T) {
	net, set := regressionFixture(t)
	ix := NewIndex(NormalizedSquaredError, net, set)
	dev := device.New(device.SingleThreaded, 0)

	before := ix.Loss(dev, data.Training)
	assert.Equal(t, before, ix.Loss(dev, data.Training), "cached coefficient must be stable")

	// Shrinking the training partition changes the denominator once the
	// cache is dropped.
	require.NoError(t, set.Split(0.5, 0.25, 0.25))
	stale := ix.Loss(dev, data.Training)
	ix.InvalidateCache()
	fresh := ix.Loss(dev, data.Training)
	assert.NotEqual(t, stale, fresh)
}

func TestMinkowskiParameterValidation(t *testing.T) {
	ix := NewIndex(MinkowskiError, nil, nil)
	assert.Equal(t, 1.5, ix.MinkowskiParameter())

	require.NoError(t, ix.SetMinkowskiParameter(1))
	require.NoError(t, ix.SetMinkowskiParameter(2))
	assert.True(t, errors.Is(ix.SetMinkowskiParameter(0.5), fault.ErrInvalidConfiguration))
	assert.True(t, errors.Is(ix.SetMinkowskiParameter(2.5), fault.ErrInvalidConfiguration))
	assert.Equal(t, 2.0, ix.MinkowskiParameter(), "rejected values must not stick")
}

func TestClassWeightDefaults(t *testing.T) {
	net, set := classificationFixture(t)
	ix := NewIndex(WeightedSquaredError, net, set)

	positives, negatives := ix.ClassWeights()
	assert.Equal(t, 2.0, positives, "4 negatives over 2 positives")
	assert.Equal(t, 1.0, negatives)

	ix.SetClassWeights(5, 0.5)
	positives, negatives = ix.ClassWeights()
	assert.Equal(t, 5.0, positives)
	assert.Equal(t, 0.5, negatives)
}

func TestCheckReportsBindingAndPartitionFaults(t *testing.T) {
	net, set := regressionFixture(t)

	ix := NewIndex(MeanSquaredError, nil, nil)
	assert.True(t, errors.Is(ix.Check(data.Training), fault.ErrUnboundReference))

	ix.Bind(net, nil)
	assert.True(t, errors.Is(ix.Check(data.Training), fault.ErrUnboundReference))

	ix.Bind(net, set)
	require.NoError(t, ix.Check(data.Training))
	assert.True(t, errors.Is(ix.Check(data.Selection), fault.ErrEmptyPartition))
}

func TestRegularizationValue(t *testing.T) {
	net, set := regressionFixture(t)
	dev := device.New(device.SingleThreaded, 0)

	plain := NewIndex(SumSquaredError, net, set)
	base := plain.Loss(dev, data.Training)

	l1 := 0.0
	l2 := 0.0
	for _, p := range net.Parameters() {
		l1 += math.Abs(p)
		l2 += p * p
	}

	withL1 := NewIndex(SumSquaredError, net, set)
	require.NoError(t, withL1.SetRegularization(L1, 0.1))
	assert.InDelta(t, base+0.1*l1, withL1.Loss(dev, data.Training), 1e-12)

	withL2 := NewIndex(SumSquaredError, net, set)
	require.NoError(t, withL2.SetRegularization(L2, 0.1))
	assert.InDelta(t, base+0.1*l2, withL2.Loss(dev, data.Training), 1e-12)

	assert.Error(t, withL2.SetRegularization(L2, -1))
}
