package optim

import (
	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/loss"
)

// directionModel turns the current gradient into a search direction.
// Implementations keep whatever history they need between epochs; reset
// discards it after a numerical failure or a restart.
type directionModel interface {
	direction(grad []float64) []float64
	reset()
}

// runFirstOrder is the epoch loop shared by the full-batch gradient
// optimizers. Each epoch evaluates loss and gradient on the training
// partition, applies the numerical-failure protocol, asks the model for
// a direction and steps along it with either a fixed rate or a line
// search.
func runFirstOrder(
	dev *device.Device,
	ix *loss.Index,
	criteria Criteria,
	ls LineSearch,
	fixedRate float64,
	useLineSearch bool,
	stop *StopFlag,
	model directionModel,
) (*TrainingResults, error) {
	if err := ix.Check(data.Training); err != nil {
		return nil, err
	}
	network := ix.Network()
	hasSelection := hasSelectionSamples(ix)
	state := newEpochState(criteria, stop, hasSelection)
	ls = ls.withDefaults()

	lastAccepted := network.Parameters()
	rateScale := 1.0
	failures := 0

	for {
		lossValue, grad := ix.Gradient(dev, data.Training)

		if !finite(lossValue) || !allFinite(grad) {
			failures++
			if failures >= 2 {
				return state.finish(ix, NumericalFailure), nil
			}
			// Retreat to the last accepted parameters, halve the step
			// and re-evaluate once.
			network.SetParameters(lastAccepted)
			rateScale *= 0.5
			model.reset()
			continue
		}
		failures = 0
		lastAccepted = network.Parameters()

		gradNorm := norm(grad)
		state.record(lossValue, selectionLoss(dev, ix, hasSelection), gradNorm)
		if tag, done := state.shouldStop(lossValue, gradNorm); done {
			return state.finish(ix, tag), nil
		}

		dir := model.direction(grad)
		if dot(dir, grad) >= 0 {
			// Not a descent direction. Restart from steepest descent.
			model.reset()
			dir = negate(grad)
		}

		base := network.Parameters()
		if useLineSearch {
			scaled := ls
			scaled.TrainingRateMax *= rateScale
			scaled.FallbackRate *= rateScale
			eta, _ := scaled.Minimize(func(eta float64) float64 {
				network.SetParameters(addScaled(base, dir, eta))
				return ix.Loss(dev, data.Training)
			}, lossValue)
			network.SetParameters(addScaled(base, dir, eta))
		} else {
			network.SetParameters(addScaled(base, dir, fixedRate*rateScale))
		}
	}
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func negate(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = -x
	}
	return out
}

func addScaled(base, dir []float64, eta float64) []float64 {
	out := make([]float64, len(base))
	for i := range base {
		out[i] = base[i] + eta*dir[i]
	}
	return out
}
