package optim

import (
	"math"
	"math/rand"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/loss"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

const defaultBatchSize = 32

// miniBatches shuffles the partition rows and yields them in batches.
type miniBatches struct {
	inputs  *tensor.Tensor
	targets *tensor.Tensor
	indices []int
	batch   int
	rng     *rand.Rand
}

func newMiniBatches(ix *loss.Index, batch int, rng *rand.Rand) *miniBatches {
	inputs := ix.DataSet().Inputs(data.Training)
	targets := ix.DataSet().Targets(data.Training)
	samples := inputs.Shape()[0]
	if batch <= 0 || batch > samples {
		batch = defaultBatchSize
		if batch > samples {
			batch = samples
		}
	}
	indices := make([]int, samples)
	for i := range indices {
		indices[i] = i
	}
	return &miniBatches{inputs: inputs, targets: targets, indices: indices, batch: batch, rng: rng}
}

func (mb *miniBatches) forEach(f func(inputs, targets *tensor.Tensor) bool) {
	mb.rng.Shuffle(len(mb.indices), func(i, j int) {
		mb.indices[i], mb.indices[j] = mb.indices[j], mb.indices[i]
	})
	for from := 0; from < len(mb.indices); from += mb.batch {
		to := from + mb.batch
		if to > len(mb.indices) {
			to = len(mb.indices)
		}
		rows := mb.indices[from:to]
		if !f(mb.inputs.GatherRows(rows), mb.targets.GatherRows(rows)) {
			return
		}
	}
}

// StochasticGradientDescent updates on shuffled mini-batches with
// optional momentum.
type StochasticGradientDescent struct {
	Criteria Criteria
	Stop     *StopFlag

	TrainingRate float64
	Momentum     float64
	BatchSize    int
	Rng          *rand.Rand
}

const defaultStochasticRate = 0.01

func (s *StochasticGradientDescent) Kind() Kind { return StochasticGradientDescentKind }

func (s *StochasticGradientDescent) Perform(dev *device.Device, ix *loss.Index) (*TrainingResults, error) {
	rate := s.TrainingRate
	if rate <= 0 {
		rate = defaultStochasticRate
	}
	velocity := make([]float64, ix.Network().ParameterCount())

	return runStochastic(dev, ix, s.Criteria, s.Stop, s.BatchSize, s.Rng, func(params, grad []float64, scale float64) []float64 {
		next := make([]float64, len(params))
		for i := range params {
			velocity[i] = s.Momentum*velocity[i] - rate*scale*grad[i]
			next[i] = params[i] + velocity[i]
		}
		return next
	})
}

// AdaptiveMomentEstimation keeps bias-corrected running means of the
// gradient and its square.
type AdaptiveMomentEstimation struct {
	Criteria Criteria
	Stop     *StopFlag

	TrainingRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	BatchSize    int
	Rng          *rand.Rand
}

const (
	defaultAdamRate    = 0.001
	defaultAdamBeta1   = 0.9
	defaultAdamBeta2   = 0.999
	defaultAdamEpsilon = 1e-8
)

func (a *AdaptiveMomentEstimation) Kind() Kind { return AdaptiveMomentEstimationKind }

func (a *AdaptiveMomentEstimation) Perform(dev *device.Device, ix *loss.Index) (*TrainingResults, error) {
	rate := a.TrainingRate
	if rate <= 0 {
		rate = defaultAdamRate
	}
	beta1 := a.Beta1
	if beta1 <= 0 {
		beta1 = defaultAdamBeta1
	}
	beta2 := a.Beta2
	if beta2 <= 0 {
		beta2 = defaultAdamBeta2
	}
	epsilon := a.Epsilon
	if epsilon <= 0 {
		epsilon = defaultAdamEpsilon
	}

	n := ix.Network().ParameterCount()
	first := make([]float64, n)
	second := make([]float64, n)
	step := 0

	return runStochastic(dev, ix, a.Criteria, a.Stop, a.BatchSize, a.Rng, func(params, grad []float64, scale float64) []float64 {
		step++
		correction1 := 1 - math.Pow(beta1, float64(step))
		correction2 := 1 - math.Pow(beta2, float64(step))
		next := make([]float64, len(params))
		for i := range params {
			g := scale * grad[i]
			first[i] = beta1*first[i] + (1-beta1)*g
			second[i] = beta2*second[i] + (1-beta2)*g*g
			mHat := first[i] / correction1
			vHat := second[i] / correction2
			next[i] = params[i] - rate*mHat/(math.Sqrt(vHat)+epsilon)
		}
		return next
	})
}

// runStochastic is the epoch loop shared by the mini-batch optimizers.
// The update callback maps (params, batch gradient, failure scale) to the
// next parameter vector.
func runStochastic(
	dev *device.Device,
	ix *loss.Index,
	criteria Criteria,
	stop *StopFlag,
	batchSize int,
	rng *rand.Rand,
	update func(params, grad []float64, scale float64) []float64,
) (*TrainingResults, error) {
	if err := ix.Check(data.Training); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	network := ix.Network()
	hasSelection := hasSelectionSamples(ix)
	state := newEpochState(criteria, stop, hasSelection)
	batches := newMiniBatches(ix, batchSize, rng)

	lastAccepted := network.Parameters()
	scale := 1.0
	failures := 0

	for {
		healthy := true
		batches.forEach(func(inputs, targets *tensor.Tensor) bool {
			_, grad := ix.BatchGradient(dev, inputs, targets)
			if !allFinite(grad) {
				healthy = false
				return false
			}
			network.SetParameters(update(network.Parameters(), grad, scale))
			return true
		})

		lossValue := ix.Loss(dev, data.Training)
		if !healthy || !finite(lossValue) || !allFinite(network.Parameters()) {
			failures++
			if failures >= 2 {
				return state.finish(ix, NumericalFailure), nil
			}
			network.SetParameters(lastAccepted)
			scale *= 0.5
			continue
		}
		failures = 0
		lastAccepted = network.Parameters()

		state.record(lossValue, selectionLoss(dev, ix, hasSelection), math.NaN())
		if tag, done := state.shouldStop(lossValue, math.NaN()); done {
			return state.finish(ix, tag), nil
		}
	}
}
