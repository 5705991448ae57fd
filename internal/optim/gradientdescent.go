package optim

import (
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/loss"
)

// GradientDescent steps against the gradient with either a fixed
// training rate or a bracketing line search.
type GradientDescent struct {
	Criteria   Criteria
	LineSearch LineSearch
	Stop       *StopFlag

	// TrainingRate is the fixed step size; leave zero to use the line
	// search instead.
	TrainingRate float64
}

func (gd *GradientDescent) Kind() Kind { return GradientDescentKind }

func (gd *GradientDescent) Perform(dev *device.Device, ix *loss.Index) (*TrainingResults, error) {
	useLineSearch := gd.TrainingRate <= 0
	return runFirstOrder(dev, ix, gd.Criteria, gd.LineSearch, gd.TrainingRate, useLineSearch, gd.Stop, steepestDescent{})
}

type steepestDescent struct{}

func (steepestDescent) direction(grad []float64) []float64 { return negate(grad) }
func (steepestDescent) reset()                             {}
