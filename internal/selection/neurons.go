package selection

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/nn"
	"github.com/tabnet-ml/tabnet/internal/train"
)

// IncrementalNeurons sweeps the hidden width from MinNeurons to
// MaxNeurons in Step increments, stopping early when the selection loss
// has not improved for MaxSelectionFailures widths in a row.
type IncrementalNeurons struct {
	MinNeurons           int
	MaxNeurons           int
	Step                 int
	MaxSelectionFailures int
	Rng                  *rand.Rand
}

const defaultNeuronsFailures = 3

// Perform retrains a fresh network per candidate width, using template's
// model type for the layer stack. The strategy's bound data set supplies
// the partitions.
func (inc *IncrementalNeurons) Perform(dev *device.Device, strategy *train.Strategy, template *nn.Network) (*Results, error) {
	if template == nil || template.Empty() {
		return nil, errors.Wrap(fault.ErrUnboundReference, "selection: no template network")
	}
	if inc.MinNeurons < 1 || inc.MaxNeurons < inc.MinNeurons {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration,
			"selection: neurons range [%d, %d]", inc.MinNeurons, inc.MaxNeurons)
	}
	step := inc.Step
	if step < 1 {
		step = 1
	}
	failuresLimit := inc.MaxSelectionFailures
	if failuresLimit < 1 {
		failuresLimit = defaultNeuronsFailures
	}

	r, err := newRunner(strategy, inc.Rng)
	if err != nil {
		return nil, err
	}
	inputs := len(r.set.InputIndices())
	outputs := len(r.set.TargetIndices())

	results := &Results{}
	bestLoss := 0.0
	failures := 0
	for width := inc.MinNeurons; width <= inc.MaxNeurons; width += step {
		network := r.buildNetwork(template, []int{inputs, width, outputs})
		trainingLoss, selectionScore, params := r.trainCandidate(dev, network)
		results.Trials = append(results.Trials, Trial{
			Neurons:       width,
			TrainingLoss:  trainingLoss,
			SelectionLoss: selectionScore,
			Parameters:    params,
		})

		if len(results.Trials) == 1 || selectionScore < bestLoss {
			bestLoss = selectionScore
			results.BestIndex = len(results.Trials) - 1
			results.BestNetwork = network
			failures = 0
		} else {
			failures++
			if failures >= failuresLimit {
				break
			}
		}
	}
	return results, nil
}
