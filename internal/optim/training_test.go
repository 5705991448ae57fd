package optim

import (
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
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// linearFixture binds a single-neuron linear model to samples of
// y = 2x - 1, making the loss an exact quadratic in the two parameters.
func linearFixture(t *testing.T, method loss.Method) *loss.Index {
	t.Helper()
	rng := rand.New(rand.NewSource(51))
	values := tensor.New(tensor.Shape{20, 2})
	for i := 0; i < 20; i++ {
		x := float64(i)/10.0 - 1
		values.Set(x, i, 0)
		values.Set(2*x-1, i, 1)
	}
	set, err := data.NewSet(values, 1)
	require.NoError(t, err)
	return loss.NewIndex(method, nn.NewNetwork(nn.Approximation, []int{1, 1}, rng), set)
}

func maxAbsResidual(dev *device.Device, ix *loss.Index) float64 {
	inputs := ix.DataSet().Inputs(data.Training)
	targets := ix.DataSet().Targets(data.Training)
	outputs := ix.Network().Outputs(dev, inputs)

	worst := 0.0
	for i, o := range outputs.Data() {
		if d := math.Abs(o - targets.Data()[i]); d > worst {
			worst = d
		}
	}
	return worst
}

func TestGradientDescentMonotoneOnQuadratic(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	gd := &GradientDescent{Criteria: Criteria{MaxEpochs: 50}}

	dev := device.New(device.SingleThreaded, 0)
	results, err := gd.Perform(dev, ix)
	require.NoError(t, err)

	history := results.TrainingLossHistory
	require.Len(t, history, 50)
	for i := 1; i < len(history); i++ {
		assert.LessOrEqual(t, history[i], history[i-1]+1e-9, "epoch %d", i)
	}
	assert.Less(t, results.FinalTrainingLoss, history[0])
	assert.Equal(t, MaxEpochsReached, results.Stopping)
	assert.Empty(t, results.SelectionLossHistory, "no selection partition")
}

func TestGradientDescentFixedRate(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	gd := &GradientDescent{Criteria: Criteria{MaxEpochs: 100}, TrainingRate: 0.05}

	dev := device.New(device.SingleThreaded, 0)
	results, err := gd.Perform(dev, ix)
	require.NoError(t, err)
	assert.Less(t, results.FinalTrainingLoss, results.TrainingLossHistory[0])
}

func TestConjugateGradientRecoversLinearModel(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	cg := &ConjugateGradient{
		Criteria:  Criteria{GradientNormGoal: 1e-9, MaxEpochs: 500},
		Direction: PolakRibiere,
	}

	dev := device.New(device.SingleThreaded, 0)
	results, err := cg.Perform(dev, ix)
	require.NoError(t, err)

	assert.Less(t, results.FinalTrainingLoss, 1e-6)
	assert.Less(t, maxAbsResidual(dev, ix), 0.05)
	assert.Equal(t, ix.Network().Parameters(), results.FinalParameters)
}

func TestConjugateGradientFletcherReeves(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	cg := &ConjugateGradient{
		Criteria:  Criteria{GradientNormGoal: 1e-9, MaxEpochs: 500},
		Direction: FletcherReeves,
	}

	dev := device.New(device.SingleThreaded, 0)
	results, err := cg.Perform(dev, ix)
	require.NoError(t, err)
	assert.Less(t, results.FinalTrainingLoss, 1e-6)
}

func TestQuasiNewtonConvergesOnQuadratic(t *testing.T) {
	dev := device.New(device.SingleThreaded, 0)

	for _, update := range []InverseHessianUpdate{BFGS, DFP} {
		ix := linearFixture(t, loss.MeanSquaredError)
		qn := &QuasiNewton{
			Criteria: Criteria{GradientNormGoal: 1e-9, MaxEpochs: 500},
			Update:   update,
		}

		results, err := qn.Perform(dev, ix)
		require.NoError(t, err, update)
		assert.Less(t, results.FinalTrainingLoss, 1e-6, update)
	}
}

func TestLevenbergMarquardtExactOnLinearProblem(t *testing.T) {
	ix := linearFixture(t, loss.SumSquaredError)
	lm := &LevenbergMarquardt{Criteria: Criteria{MaxEpochs: 50}}

	dev := device.New(device.SingleThreaded, 0)
	results, err := lm.Perform(dev, ix)
	require.NoError(t, err)

	assert.Less(t, results.FinalTrainingLoss, 1e-8)
	assert.Less(t, maxAbsResidual(dev, ix), 1e-3)
}

func TestLevenbergMarquardtRejectsNonSquaredLoss(t *testing.T) {
	ix := linearFixture(t, loss.MinkowskiError)
	lm := &LevenbergMarquardt{}

	dev := device.New(device.SingleThreaded, 0)
	_, err := lm.Perform(dev, ix)
	assert.True(t, errors.Is(err, fault.ErrInvalidConfiguration))
}

func TestStochasticGradientDescentDecreasesLoss(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	sgd := &StochasticGradientDescent{
		Criteria:     Criteria{MaxEpochs: 100},
		TrainingRate: 0.05,
		Momentum:     0.5,
		BatchSize:    5,
		Rng:          rand.New(rand.NewSource(61)),
	}

	dev := device.New(device.SingleThreaded, 0)
	results, err := sgd.Perform(dev, ix)
	require.NoError(t, err)
	assert.Less(t, results.FinalTrainingLoss, results.TrainingLossHistory[0])
}

func TestAdaptiveMomentEstimationDecreasesLoss(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	adam := &AdaptiveMomentEstimation{
		Criteria: Criteria{MaxEpochs: 200},
		Rng:      rand.New(rand.NewSource(62)),
	}

	dev := device.New(device.SingleThreaded, 0)
	results, err := adam.Perform(dev, ix)
	require.NoError(t, err)
	assert.Less(t, results.FinalTrainingLoss, results.TrainingLossHistory[0])
}

func TestEvolutionaryElitismKeepsBest(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	evo := &Evolutionary{
		Criteria: Criteria{MaxEpochs: 10},
		Rng:      rand.New(rand.NewSource(63)),
	}

	dev := device.New(device.SingleThreaded, 0)
	results, err := evo.Perform(dev, ix)
	require.NoError(t, err)

	history := results.TrainingLossHistory
	require.Len(t, history, 10)
	for i := 1; i < len(history); i++ {
		assert.LessOrEqual(t, history[i], history[i-1], "generation %d", i)
	}
	assert.Equal(t, MaxEpochsReached, results.Stopping)
	assert.Empty(t, results.GradientNormHistory, "population search has no gradient")
}

func TestEvolutionarySelectionSchemes(t *testing.T) {
	dev := device.New(device.SingleThreaded, 0)

	for _, selection := range []FitnessSelection{RouletteWheel, RankBased, Tournament} {
		ix := linearFixture(t, loss.MeanSquaredError)
		evo := &Evolutionary{
			Criteria:  Criteria{MaxEpochs: 5},
			Selection: selection,
			Rng:       rand.New(rand.NewSource(64)),
		}
		results, err := evo.Perform(dev, ix)
		require.NoError(t, err, selection)
		assert.Equal(t, 5, results.Epochs, selection)
	}
}

func TestCancellationStopsAfterOneEpoch(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	var stop StopFlag
	stop.Request()
	gd := &GradientDescent{Criteria: Criteria{MaxEpochs: 100}, Stop: &stop}

	dev := device.New(device.SingleThreaded, 0)
	results, err := gd.Perform(dev, ix)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, results.Stopping)
	assert.Equal(t, 1, results.Epochs, "the epoch in flight finishes")
}

func TestLossGoalStopsImmediately(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	gd := &GradientDescent{Criteria: Criteria{LossGoal: 1e12, MaxEpochs: 100}}

	dev := device.New(device.SingleThreaded, 0)
	results, err := gd.Perform(dev, ix)
	require.NoError(t, err)
	assert.Equal(t, LossGoalReached, results.Stopping)
	assert.Equal(t, 1, results.Epochs)
}

func TestMaxEpochsBoundsEveryRun(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	gd := &GradientDescent{Criteria: Criteria{MaxEpochs: 3}, TrainingRate: 1e-4}

	dev := device.New(device.SingleThreaded, 0)
	results, err := gd.Perform(dev, ix)
	require.NoError(t, err)
	assert.Equal(t, MaxEpochsReached, results.Stopping)
	assert.Equal(t, 3, results.Epochs)
}

func TestDivergentRateRecoversByRetreating(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	gd := &GradientDescent{Criteria: Criteria{MaxEpochs: 30}, TrainingRate: 1e20}

	dev := device.New(device.SingleThreaded, 0)
	results, err := gd.Perform(dev, ix)
	require.NoError(t, err)

	// An absurd rate overflows the parameters; every non-finite
	// evaluation retreats to the last accepted point, so the run still
	// completes and reports a finite loss.
	assert.Equal(t, MaxEpochsReached, results.Stopping)
	assert.False(t, math.IsNaN(results.FinalTrainingLoss))
	assert.False(t, math.IsInf(results.FinalTrainingLoss, 0))
}

func TestUnboundIndexFailsCheck(t *testing.T) {
	gd := &GradientDescent{}
	dev := device.New(device.SingleThreaded, 0)

	_, err := gd.Perform(dev, loss.NewIndex(loss.MeanSquaredError, nil, nil))
	assert.True(t, errors.Is(err, fault.ErrUnboundReference))
}

func TestSelectionHistoryTracksPartition(t *testing.T) {
	ix := linearFixture(t, loss.MeanSquaredError)
	require.NoError(t, ix.DataSet().Split(0.8, 0.2, 0))
	ix.InvalidateCache()

	gd := &GradientDescent{Criteria: Criteria{MaxEpochs: 5}}
	dev := device.New(device.SingleThreaded, 0)
	results, err := gd.Perform(dev, ix)
	require.NoError(t, err)

	assert.Len(t, results.SelectionLossHistory, 5)
	assert.Equal(t, results.SelectionLossHistory[4], results.FinalSelectionLoss)
}
