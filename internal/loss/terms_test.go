package loss

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/fault"
)

func TestErrorTermsReproduceLoss(t *testing.T) {
	dev := device.New(device.SingleThreaded, 0)

	for _, method := range []Method{SumSquaredError, MeanSquaredError, NormalizedSquaredError} {
		net, set := regressionFixture(t)
		ix := NewIndex(method, net, set)

		residuals, jacobian, err := ix.ErrorTerms(dev, data.Training)
		require.NoError(t, err, method)

		rows, cols := jacobian.Dims()
		assert.Equal(t, set.Samples()*net.OutputsCount(), rows)
		assert.Equal(t, net.ParameterCount(), cols)
		assert.Equal(t, rows, residuals.Len())

		assert.InDelta(t, ix.Loss(dev, data.Training), mat.Dot(residuals, residuals), 1e-10, method)
	}
}

func TestErrorTermsWeightedScaling(t *testing.T) {
	net, set := classificationFixture(t)
	ix := NewIndex(WeightedSquaredError, net, set)
	dev := device.New(device.SingleThreaded, 0)

	residuals, _, err := ix.ErrorTerms(dev, data.Training)
	require.NoError(t, err)
	assert.InDelta(t, ix.Loss(dev, data.Training), mat.Dot(residuals, residuals), 1e-10)
}

func TestErrorTermsJacobianMatchesFiniteDifferences(t *testing.T) {
	net, set := regressionFixture(t)
	ix := NewIndex(SumSquaredError, net, set)
	dev := device.New(device.SingleThreaded, 0)

	_, jacobian, err := ix.ErrorTerms(dev, data.Training)
	require.NoError(t, err)

	params := net.Parameters()
	const h = 1e-6
	for j := 0; j < len(params); j++ {
		shifted := append([]float64(nil), params...)
		shifted[j] = params[j] + h
		net.SetParameters(shifted)
		plus, _, err := ix.ErrorTerms(dev, data.Training)
		require.NoError(t, err)

		shifted[j] = params[j] - h
		net.SetParameters(shifted)
		minus, _, err := ix.ErrorTerms(dev, data.Training)
		require.NoError(t, err)

		for i := 0; i < plus.Len(); i++ {
			numeric := (plus.AtVec(i) - minus.AtVec(i)) / (2 * h)
			tolerance := 1e-4 * (1 + math.Abs(numeric))
			assert.InDelta(t, numeric, jacobian.At(i, j), tolerance, "term %d parameter %d", i, j)
		}
	}
	net.SetParameters(params)
}

func TestErrorTermsRejectNonSquaredMethods(t *testing.T) {
	net, set := regressionFixture(t)
	dev := device.New(device.SingleThreaded, 0)

	for _, method := range []Method{MinkowskiError, CrossEntropyError} {
		_, _, err := NewIndex(method, net, set).ErrorTerms(dev, data.Training)
		assert.True(t, errors.Is(err, fault.ErrInvalidConfiguration), method)
	}
}

func TestErrorTermsExcludeRegularization(t *testing.T) {
	net, set := regressionFixture(t)
	ix := NewIndex(SumSquaredError, net, set)
	require.NoError(t, ix.SetRegularization(L2, 0.5))

	dev := device.New(device.SingleThreaded, 0)
	residuals, _, err := ix.ErrorTerms(dev, data.Training)
	require.NoError(t, err)

	l2 := 0.0
	for _, p := range net.Parameters() {
		l2 += p * p
	}
	assert.InDelta(t, ix.Loss(dev, data.Training)-0.5*l2, mat.Dot(residuals, residuals), 1e-10)
}
