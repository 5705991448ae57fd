package train

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/loss"
	"github.com/tabnet-ml/tabnet/internal/nn"
	"github.com/tabnet-ml/tabnet/internal/optim"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

func fixture(t *testing.T) (*nn.Network, *data.Set) {
	t.Helper()
	rng := rand.New(rand.NewSource(71))
	values := tensor.New(tensor.Shape{16, 2})
	for i := 0; i < 16; i++ {
		x := float64(i)/8.0 - 1
		values.Set(x, i, 0)
		values.Set(0.5*x+0.25, i, 1)
	}
	set, err := data.NewSet(values, 1)
	require.NoError(t, err)
	return nn.NewNetwork(nn.Approximation, []int{1, 1}, rng), set
}

func TestStrategyPerformTrainsTheNetwork(t *testing.T) {
	net, set := fixture(t)
	strategy := NewStrategy(net, set, loss.MeanSquaredError, &optim.QuasiNewton{
		Criteria: optim.Criteria{GradientNormGoal: 1e-9, MaxEpochs: 300},
	})

	dev := device.New(device.SingleThreaded, 0)
	results, err := strategy.Perform(dev)
	require.NoError(t, err)

	assert.Less(t, results.FinalTrainingLoss, 1e-6)
	assert.Equal(t, net.Parameters(), results.FinalParameters)

	// The trained model approximates y = 0.5x + 0.25.
	out := net.Outputs(dev, tensor.FromSlice([]float64{0.5}, tensor.Shape{1, 1}))
	assert.InDelta(t, 0.5, out.At(0, 0), 0.05)
}

func TestStrategyCheckFaults(t *testing.T) {
	net, set := fixture(t)

	noAlgorithm := NewStrategy(net, set, loss.MeanSquaredError, nil)
	assert.True(t, errors.Is(noAlgorithm.Check(), fault.ErrUnboundReference))

	empty := NewStrategy(nn.NewEmptyNetwork(nn.Approximation), set, loss.MeanSquaredError, &optim.GradientDescent{})
	assert.True(t, errors.Is(empty.Check(), fault.ErrUnboundReference))

	unboundSet := NewStrategy(net, nil, loss.MeanSquaredError, &optim.GradientDescent{})
	assert.True(t, errors.Is(unboundSet.Check(), fault.ErrUnboundReference))

	require.NoError(t, set.Split(0, 0.5, 0.5))
	noTraining := NewStrategy(net, set, loss.MeanSquaredError, &optim.GradientDescent{})
	assert.True(t, errors.Is(noTraining.Check(), fault.ErrEmptyPartition))
}

func TestStrategyRebind(t *testing.T) {
	net, set := fixture(t)
	strategy := NewStrategy(nil, nil, loss.MeanSquaredError, &optim.GradientDescent{Criteria: optim.Criteria{MaxEpochs: 2}})
	require.Error(t, strategy.Check())

	strategy.Bind(net, set)
	require.NoError(t, strategy.Check())

	dev := device.New(device.SingleThreaded, 0)
	results, err := strategy.Perform(dev)
	require.NoError(t, err)
	assert.Equal(t, 2, results.Epochs)
}

func TestStrategyJSONRoundTrip(t *testing.T) {
	strategy := NewStrategy(nil, nil, loss.MinkowskiError, &optim.ConjugateGradient{
		Criteria:  optim.Criteria{MaxEpochs: 40},
		Direction: optim.PolakRibiere,
	})
	require.NoError(t, strategy.LossIndex().SetMinkowskiParameter(1.75))

	raw, err := json.Marshal(strategy)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"TrainingStrategy"`)

	var restored Strategy
	require.NoError(t, json.Unmarshal(raw, &restored))

	assert.Equal(t, loss.MinkowskiError, restored.LossIndex().Method())
	assert.Equal(t, 1.75, restored.LossIndex().MinkowskiParameter())

	cg, ok := restored.Algorithm().(*optim.ConjugateGradient)
	require.True(t, ok)
	assert.Equal(t, optim.PolakRibiere, cg.Direction)
	assert.Equal(t, 40, cg.Criteria.MaxEpochs)
	assert.Nil(t, restored.LossIndex().Network(), "bindings are not persisted")
}

func TestStrategyTrainsAfterUnmarshal(t *testing.T) {
	original := NewStrategy(nil, nil, loss.MeanSquaredError, &optim.GradientDescent{
		Criteria: optim.Criteria{MaxEpochs: 20},
	})
	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Strategy
	require.NoError(t, json.Unmarshal(raw, &restored))

	net, set := fixture(t)
	restored.Bind(net, set)

	dev := device.New(device.SingleThreaded, 0)
	results, err := restored.Perform(dev)
	require.NoError(t, err)
	assert.Equal(t, 20, results.Epochs)
	assert.False(t, math.IsNaN(results.FinalTrainingLoss))
}
