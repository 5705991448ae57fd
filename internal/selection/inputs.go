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

// inputsProblem captures what the greedy and genetic input searches
// share: the candidate input columns, mask application on the data set
// and candidate training.
type inputsProblem struct {
	r        *runner
	template *nn.Network
	columns  []int // data set column index per mask position
	hidden   int
	outputs  int
}

func newInputsProblem(strategy *train.Strategy, template *nn.Network, rng *rand.Rand) (*inputsProblem, error) {
	if template == nil || template.Empty() {
		return nil, errors.Wrap(fault.ErrUnboundReference, "selection: no template network")
	}
	r, err := newRunner(strategy, rng)
	if err != nil {
		return nil, err
	}
	columns := r.set.InputIndices()
	if len(columns) == 0 {
		return nil, errors.Wrap(fault.ErrInvalidConfiguration, "selection: data set has no input variables")
	}
	return &inputsProblem{
		r:        r,
		template: template,
		columns:  columns,
		hidden:   templateHiddenWidth(template, len(columns)),
		outputs:  len(r.set.TargetIndices()),
	}, nil
}

// apply masks the data set's input variables to the given subset.
func (p *inputsProblem) apply(mask []bool) int {
	active := 0
	for i, col := range p.columns {
		if mask[i] {
			p.r.set.SetVariableUse(col, data.Input)
			active++
		} else {
			p.r.set.SetVariableUse(col, data.UnusedVariable)
		}
	}
	return active
}

// evaluate trains a fresh network on the masked inputs and returns the
// trial. Empty masks score +Inf without training.
func (p *inputsProblem) evaluate(dev *device.Device, mask []bool) (Trial, *nn.Network) {
	trial := Trial{InputMask: append([]bool(nil), mask...)}
	active := p.apply(mask)
	if active == 0 {
		trial.TrainingLoss = math.Inf(1)
		trial.SelectionLoss = math.Inf(1)
		return trial, nil
	}
	network := p.r.buildNetwork(p.template, []int{active, p.hidden, p.outputs})
	trial.TrainingLoss, trial.SelectionLoss, trial.Parameters = p.r.trainCandidate(dev, network)
	return trial, network
}

// templateHiddenWidth reads the hidden width off the template's first
// perceptron layer.
func templateHiddenWidth(template *nn.Network, fallback int) int {
	if l := template.FirstLayerOfKind(nn.PerceptronKind); l != nil {
		return nn.NeuronsCount(l)
	}
	if fallback < 1 {
		fallback = 1
	}
	return fallback
}

// GrowingInputs starts from the empty input set and greedily adds the
// input whose inclusion most reduces the selection loss, stopping on
// no-improvement or when MaxInputs is reached.
type GrowingInputs struct {
	MaxInputs            int
	MaxSelectionFailures int
	Rng                  *rand.Rand
}

const defaultInputsFailures = 2

func (g *GrowingInputs) Perform(dev *device.Device, strategy *train.Strategy, template *nn.Network) (*Results, error) {
	p, err := newInputsProblem(strategy, template, g.Rng)
	if err != nil {
		return nil, err
	}

	budget := g.MaxInputs
	if budget < 1 || budget > len(p.columns) {
		budget = len(p.columns)
	}
	failuresLimit := g.MaxSelectionFailures
	if failuresLimit < 1 {
		failuresLimit = defaultInputsFailures
	}

	results := &Results{BestIndex: -1}
	mask := make([]bool, len(p.columns))
	bestLoss := math.Inf(1)
	failures := 0

	for active := 1; active <= budget; active++ {
		// Try every not-yet-selected input on top of the current mask.
		stepBest := -1
		stepBestLoss := math.Inf(1)
		var stepBestNetwork *nn.Network
		for i := range mask {
			if mask[i] {
				continue
			}
			mask[i] = true
			trial, network := p.evaluate(dev, mask)
			mask[i] = false

			results.Trials = append(results.Trials, trial)
			if trial.SelectionLoss < stepBestLoss {
				stepBest = len(results.Trials) - 1
				stepBestLoss = trial.SelectionLoss
				stepBestNetwork = network
			}
		}
		if stepBest < 0 {
			break
		}

		// Commit the step's best addition.
		mask = append([]bool(nil), results.Trials[stepBest].InputMask...)

		if stepBestLoss < bestLoss {
			bestLoss = stepBestLoss
			results.BestIndex = stepBest
			results.BestNetwork = stepBestNetwork
			failures = 0
		} else {
			failures++
			if failures >= failuresLimit {
				break
			}
		}
	}
	if results.BestIndex < 0 {
		results.BestIndex = bestTrial(results.Trials)
	}
	p.apply(results.Trials[results.BestIndex].InputMask)
	return results, nil
}

// PruningInputs starts from the full input set and greedily removes the
// input whose exclusion most reduces, or least increases, the selection
// loss.
type PruningInputs struct {
	MinInputs            int
	MaxSelectionFailures int
	Rng                  *rand.Rand
}

func (pr *PruningInputs) Perform(dev *device.Device, strategy *train.Strategy, template *nn.Network) (*Results, error) {
	p, err := newInputsProblem(strategy, template, pr.Rng)
	if err != nil {
		return nil, err
	}

	minInputs := pr.MinInputs
	if minInputs < 1 {
		minInputs = 1
	}
	failuresLimit := pr.MaxSelectionFailures
	if failuresLimit < 1 {
		failuresLimit = defaultInputsFailures
	}

	results := &Results{}
	mask := fullMask(len(p.columns))

	// Baseline with every input.
	trial, network := p.evaluate(dev, mask)
	results.Trials = append(results.Trials, trial)
	results.BestNetwork = network
	bestLoss := trial.SelectionLoss
	failures := 0

	for active := len(p.columns); active > minInputs; active-- {
		stepBest := -1
		stepBestLoss := math.Inf(1)
		var stepBestNetwork *nn.Network
		for i := range mask {
			if !mask[i] {
				continue
			}
			mask[i] = false
			candidate, network := p.evaluate(dev, mask)
			mask[i] = true

			results.Trials = append(results.Trials, candidate)
			if candidate.SelectionLoss < stepBestLoss {
				stepBest = len(results.Trials) - 1
				stepBestLoss = candidate.SelectionLoss
				stepBestNetwork = network
			}
		}
		if stepBest < 0 {
			break
		}
		mask = append([]bool(nil), results.Trials[stepBest].InputMask...)

		if stepBestLoss < bestLoss {
			bestLoss = stepBestLoss
			results.BestIndex = stepBest
			results.BestNetwork = stepBestNetwork
			failures = 0
		} else {
			failures++
			if failures >= failuresLimit {
				break
			}
		}
	}
	p.apply(results.Trials[results.BestIndex].InputMask)
	return results, nil
}

func fullMask(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}
