package optim

import (
	"fmt"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/loss"
)

// TrainingDirection selects the conjugate gradient's β formula.
type TrainingDirection int

const (
	FletcherReeves TrainingDirection = iota
	PolakRibiere
)

var trainingDirectionNames = map[TrainingDirection]string{
	FletcherReeves: "FletcherReeves",
	PolakRibiere:   "PolakRibiere",
}

func (d TrainingDirection) String() string {
	if name, ok := trainingDirectionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("TrainingDirection(%d)", int(d))
}

// ParseTrainingDirection resolves a direction formula name.
func ParseTrainingDirection(name string) (TrainingDirection, bool) {
	for d, n := range trainingDirectionNames {
		if n == name {
			return d, true
		}
	}
	return 0, false
}

// ConjugateGradient mixes the new gradient with the previous search
// direction, restarting from steepest descent periodically and whenever
// the mixed direction stops descending.
type ConjugateGradient struct {
	Criteria   Criteria
	LineSearch LineSearch
	Stop       *StopFlag

	Direction TrainingDirection

	// RestartInterval forces a steepest-descent restart every n epochs;
	// zero restarts every ParameterCount epochs.
	RestartInterval int
}

func (cg *ConjugateGradient) Kind() Kind { return ConjugateGradientKind }

func (cg *ConjugateGradient) Perform(dev *device.Device, ix *loss.Index) (*TrainingResults, error) {
	interval := cg.RestartInterval
	if interval <= 0 && ix.Network() != nil {
		interval = ix.Network().ParameterCount()
	}
	model := &conjugateModel{formula: cg.Direction, restartInterval: interval}
	return runFirstOrder(dev, ix, cg.Criteria, cg.LineSearch, 0, true, cg.Stop, model)
}

type conjugateModel struct {
	formula         TrainingDirection
	restartInterval int

	prevGrad     []float64
	prevDir      []float64
	sinceRestart int
}

func (m *conjugateModel) direction(grad []float64) []float64 {
	if m.prevGrad == nil || (m.restartInterval > 0 && m.sinceRestart >= m.restartInterval) {
		m.sinceRestart = 1
		m.remember(grad, negate(grad))
		return m.prevDir
	}

	denom := dot(m.prevGrad, m.prevGrad)
	if denom == 0 {
		m.sinceRestart = 1
		m.remember(grad, negate(grad))
		return m.prevDir
	}

	var beta float64
	switch m.formula {
	case FletcherReeves:
		beta = dot(grad, grad) / denom
	case PolakRibiere:
		beta = (dot(grad, grad) - dot(grad, m.prevGrad)) / denom
		if beta < 0 {
			beta = 0
		}
	}

	dir := make([]float64, len(grad))
	for i := range dir {
		dir[i] = -grad[i] + beta*m.prevDir[i]
	}
	m.sinceRestart++
	m.remember(grad, dir)
	return dir
}

func (m *conjugateModel) remember(grad, dir []float64) {
	m.prevGrad = append(m.prevGrad[:0], grad...)
	m.prevDir = append([]float64(nil), dir...)
}

func (m *conjugateModel) reset() {
	m.prevGrad = nil
	m.prevDir = nil
	m.sinceRestart = 0
}
