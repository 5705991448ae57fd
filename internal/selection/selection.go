// Package selection searches over model configurations by repeatedly
// retraining a network, varying either the hidden width or the set of
// input variables, and scoring each candidate on the selection
// partition.
package selection

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/nn"
	"github.com/tabnet-ml/tabnet/internal/train"
)

// Trial records one attempted configuration. Neurons is set by neurons
// selection, InputMask by inputs selection; the other stays zero.
type Trial struct {
	Neurons       int
	InputMask     []bool
	TrainingLoss  float64
	SelectionLoss float64
	Parameters    []float64
}

// Results lists every attempted configuration plus the best one.
type Results struct {
	Trials    []Trial
	BestIndex int

	// BestNetwork holds the retrained network of the best trial.
	BestNetwork *nn.Network
}

// Best returns the winning trial.
func (r *Results) Best() Trial { return r.Trials[r.BestIndex] }

// runner trains one candidate network per call, restoring nothing: each
// candidate gets a fresh network, so the caller's own network is never
// touched.
type runner struct {
	strategy *train.Strategy
	set      *data.Set
	rng      *rand.Rand
}

func newRunner(strategy *train.Strategy, rng *rand.Rand) (*runner, error) {
	if strategy == nil {
		return nil, errors.Wrap(fault.ErrUnboundReference, "selection: no training strategy bound")
	}
	set := strategy.LossIndex().DataSet()
	if set == nil {
		return nil, errors.Wrap(fault.ErrUnboundReference, "selection: no data set bound")
	}
	if len(set.SampleIndices(data.Selection)) == 0 {
		return nil, errors.Wrap(fault.ErrEmptyPartition, "selection: data set has no selection samples")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &runner{strategy: strategy, set: set, rng: rng}, nil
}

// trainCandidate trains network on the runner's data set and scores it
// on the selection partition. Candidates that fail to train or produce a
// non-finite score get +Inf so the search continues past them.
func (r *runner) trainCandidate(dev *device.Device, network *nn.Network) (trainingLoss, selectionScore float64, params []float64) {
	r.strategy.Bind(network, r.set)
	results, err := r.strategy.Perform(dev)
	if err != nil {
		return math.Inf(1), math.Inf(1), nil
	}
	trainingLoss = results.FinalTrainingLoss
	selectionScore = r.strategy.LossIndex().Loss(dev, data.Selection)
	if !finite(trainingLoss) || !finite(selectionScore) {
		return math.Inf(1), math.Inf(1), nil
	}
	return trainingLoss, selectionScore, results.FinalParameters
}

// buildNetwork synthesizes a candidate with the template's model type,
// data-driven scaling and the given architecture.
func (r *runner) buildNetwork(template *nn.Network, architecture []int) *nn.Network {
	network := nn.NewNetwork(template.ModelType(), architecture, r.rng)
	if scaling, ok := network.FirstLayerOfKind(nn.ScalingKind).(*nn.Scaling); ok {
		scaling.SetDescriptives(r.set.InputDescriptives())
	}
	if unscaling, ok := network.FirstLayerOfKind(nn.UnscalingKind).(*nn.Unscaling); ok {
		unscaling.SetDescriptives(r.set.TargetDescriptives())
	}
	return network
}

func bestTrial(trials []Trial) int {
	best := 0
	for i, t := range trials {
		if t.SelectionLoss < trials[best].SelectionLoss {
			best = i
		}
	}
	return best
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
