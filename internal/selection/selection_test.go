package selection

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
	"github.com/tabnet-ml/tabnet/internal/optim"
	"github.com/tabnet-ml/tabnet/internal/tensor"
	"github.com/tabnet-ml/tabnet/internal/train"
)

// searchFixture builds a set whose target depends only on the first of
// three input columns, split into training and selection partitions, plus
// a quickly converging strategy for candidate training.
func searchFixture(t *testing.T) (*train.Strategy, *nn.Network, *data.Set) {
	t.Helper()
	rng := rand.New(rand.NewSource(81))

	values := tensor.New(tensor.Shape{30, 4})
	for i := 0; i < 30; i++ {
		row := values.Row(i)
		row[0] = float64(i)/15.0 - 1
		row[1] = rng.NormFloat64()
		row[2] = rng.NormFloat64()
		row[3] = 0.8 * row[0]
	}
	set, err := data.NewSet(values, 1)
	require.NoError(t, err)
	require.NoError(t, set.SplitRandom(0.7, 0.3, 0, rng))

	strategy := train.NewStrategy(nil, nil, loss.MeanSquaredError, &optim.QuasiNewton{
		Criteria: optim.Criteria{GradientNormGoal: 1e-7, MaxEpochs: 100},
	})
	template := nn.NewNetwork(nn.Approximation, []int{3, 2, 1}, rng)
	strategy.Bind(template, set)
	return strategy, template, set
}

func TestIncrementalNeuronsPicksBestWidth(t *testing.T) {
	strategy, template, _ := searchFixture(t)
	inc := &IncrementalNeurons{MinNeurons: 1, MaxNeurons: 3, Rng: rand.New(rand.NewSource(82))}

	dev := device.New(device.SingleThreaded, 0)
	results, err := inc.Perform(dev, strategy, template)
	require.NoError(t, err)

	require.NotEmpty(t, results.Trials)
	require.NotNil(t, results.BestNetwork)

	best := results.Best()
	assert.True(t, best.Neurons >= 1 && best.Neurons <= 3)
	assert.False(t, math.IsInf(best.SelectionLoss, 1), "some width must train")
	for _, trial := range results.Trials {
		assert.GreaterOrEqual(t, trial.SelectionLoss, best.SelectionLoss)
	}
	assert.Equal(t, []int{3, best.Neurons, 1}, results.BestNetwork.Architecture())
}

func TestIncrementalNeuronsValidation(t *testing.T) {
	strategy, template, _ := searchFixture(t)
	dev := device.New(device.SingleThreaded, 0)

	_, err := (&IncrementalNeurons{MinNeurons: 0, MaxNeurons: 3}).Perform(dev, strategy, template)
	assert.True(t, errors.Is(err, fault.ErrInvalidConfiguration))

	_, err = (&IncrementalNeurons{MinNeurons: 5, MaxNeurons: 3}).Perform(dev, strategy, template)
	assert.True(t, errors.Is(err, fault.ErrInvalidConfiguration))

	_, err = (&IncrementalNeurons{MinNeurons: 1, MaxNeurons: 3}).Perform(dev, strategy, nil)
	assert.True(t, errors.Is(err, fault.ErrUnboundReference))
}

func TestSearchNeedsSelectionSamples(t *testing.T) {
	strategy, template, set := searchFixture(t)
	require.NoError(t, set.Split(1, 0, 0))
	strategy.LossIndex().InvalidateCache()

	dev := device.New(device.SingleThreaded, 0)
	_, err := (&IncrementalNeurons{MinNeurons: 1, MaxNeurons: 2}).Perform(dev, strategy, template)
	assert.True(t, errors.Is(err, fault.ErrEmptyPartition))

	_, err = (&GrowingInputs{}).Perform(dev, strategy, template)
	assert.True(t, errors.Is(err, fault.ErrEmptyPartition))
}

func TestGrowingInputsFindsRelevantColumn(t *testing.T) {
	strategy, template, set := searchFixture(t)
	grow := &GrowingInputs{Rng: rand.New(rand.NewSource(83))}

	dev := device.New(device.SingleThreaded, 0)
	results, err := grow.Perform(dev, strategy, template)
	require.NoError(t, err)

	best := results.Best()
	assert.True(t, best.InputMask[0], "the informative column must be selected")
	assert.False(t, math.IsInf(best.SelectionLoss, 1))

	// The set stays masked to the winning subset.
	active := 0
	for _, selected := range best.InputMask {
		if selected {
			active++
		}
	}
	assert.Len(t, set.InputIndices(), active)
}

func TestPruningInputsKeepsMinimum(t *testing.T) {
	strategy, template, _ := searchFixture(t)
	prune := &PruningInputs{MinInputs: 1, Rng: rand.New(rand.NewSource(84))}

	dev := device.New(device.SingleThreaded, 0)
	results, err := prune.Perform(dev, strategy, template)
	require.NoError(t, err)

	best := results.Best()
	active := 0
	for _, selected := range best.InputMask {
		if selected {
			active++
		}
	}
	assert.GreaterOrEqual(t, active, 1)
	assert.True(t, best.InputMask[0], "pruning must not drop the informative column")

	// The first trial is the full-mask baseline.
	assert.Equal(t, []bool{true, true, true}, results.Trials[0].InputMask)
}

func TestGeneticInputsSearches(t *testing.T) {
	strategy, template, _ := searchFixture(t)
	genetic := &GeneticInputs{
		PopulationSize: 4,
		Generations:    3,
		MutationRate:   0.2,
		Rng:            rand.New(rand.NewSource(85)),
	}

	dev := device.New(device.SingleThreaded, 0)
	results, err := genetic.Perform(dev, strategy, template)
	require.NoError(t, err)

	assert.Len(t, results.Trials, 12, "population times generations")
	best := results.Best()
	require.NotEmpty(t, best.InputMask)
	assert.False(t, math.IsInf(best.SelectionLoss, 1))
	for _, trial := range results.Trials {
		assert.GreaterOrEqual(t, trial.SelectionLoss, best.SelectionLoss)
	}
}

func TestEmptyMaskScoresInfiniteWithoutTraining(t *testing.T) {
	strategy, template, _ := searchFixture(t)
	p, err := newInputsProblem(strategy, template, rand.New(rand.NewSource(86)))
	require.NoError(t, err)

	trial, network := p.evaluate(device.New(device.SingleThreaded, 0), []bool{false, false, false})
	assert.True(t, math.IsInf(trial.SelectionLoss, 1))
	assert.True(t, math.IsInf(trial.TrainingLoss, 1))
	assert.Nil(t, network)

	p.apply(fullMask(3))
}
