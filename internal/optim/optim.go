// Package optim trains a network's parameters against a loss index. All
// optimizers share one contract: Perform runs a full training loop and
// reports per-epoch histories plus the stopping condition that fired.
package optim

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/loss"
)

// Kind identifies an optimization algorithm.
type Kind int

const (
	GradientDescentKind Kind = iota
	ConjugateGradientKind
	QuasiNewtonKind
	LevenbergMarquardtKind
	StochasticGradientDescentKind
	AdaptiveMomentEstimationKind
	EvolutionaryKind
)

var kindNames = map[Kind]string{
	GradientDescentKind:           "GradientDescent",
	ConjugateGradientKind:         "ConjugateGradient",
	QuasiNewtonKind:               "QuasiNewton",
	LevenbergMarquardtKind:        "LevenbergMarquardt",
	StochasticGradientDescentKind: "StochasticGradientDescent",
	AdaptiveMomentEstimationKind:  "AdaptiveMomentEstimation",
	EvolutionaryKind:              "Evolutionary",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves an algorithm name.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Algorithm is the training contract every optimizer satisfies.
type Algorithm interface {
	Kind() Kind

	// Perform trains the loss index's bound network in place and returns
	// the run's results. The network holds the final parameters on
	// return.
	Perform(dev *device.Device, ix *loss.Index) (*TrainingResults, error)
}

// StoppingCondition tags why a training run ended.
type StoppingCondition int

const (
	LossGoalReached StoppingCondition = iota
	GradientNormGoalReached
	EarlyStopping
	MaxEpochsReached
	MaxTimeReached
	NumericalFailure
	Cancelled
)

var stoppingNames = map[StoppingCondition]string{
	LossGoalReached:         "LossGoalReached",
	GradientNormGoalReached: "GradientNormGoalReached",
	EarlyStopping:           "EarlyStopping",
	MaxEpochsReached:        "MaxEpochsReached",
	MaxTimeReached:          "MaxTimeReached",
	NumericalFailure:        "NumericalFailure",
	Cancelled:               "Cancelled",
}

func (c StoppingCondition) String() string {
	if name, ok := stoppingNames[c]; ok {
		return name
	}
	return fmt.Sprintf("StoppingCondition(%d)", int(c))
}

// StopFlag requests cooperative cancellation. Optimizers check it once
// per epoch; the epoch in flight always finishes.
type StopFlag struct {
	flag atomic.Bool
}

// Request asks the running optimizer to stop at the next epoch boundary.
func (s *StopFlag) Request() { s.flag.Store(true) }

// Requested reports whether cancellation was requested.
func (s *StopFlag) Requested() bool { return s.flag.Load() }

// Reset rearms the flag for another run.
func (s *StopFlag) Reset() { s.flag.Store(false) }

// Criteria are the stopping conditions shared by every optimizer. Zero
// values disable the goal-based conditions; MaxEpochs defaults to 1000
// when unset.
type Criteria struct {
	LossGoal             float64
	GradientNormGoal     float64
	MaxSelectionFailures int
	MaxEpochs            int
	MaxTime              time.Duration

	// Display writes a progress line every DisplayPeriod epochs.
	// DisplayPeriod defaults to 10 when unset.
	Display       bool
	DisplayPeriod int
}

const (
	defaultMaxEpochs     = 1000
	defaultDisplayPeriod = 10
)

func (c Criteria) maxEpochs() int {
	if c.MaxEpochs <= 0 {
		return defaultMaxEpochs
	}
	return c.MaxEpochs
}

func (c Criteria) displayPeriod() int {
	if c.DisplayPeriod <= 0 {
		return defaultDisplayPeriod
	}
	return c.DisplayPeriod
}

// TrainingResults summarizes a completed run. Histories hold one entry
// per finished epoch; the selection history stays empty when the data set
// has no selection samples.
type TrainingResults struct {
	FinalParameters      []float64
	FinalTrainingLoss    float64
	FinalSelectionLoss   float64
	TrainingLossHistory  []float64
	SelectionLossHistory []float64
	GradientNormHistory  []float64
	Epochs               int
	Elapsed              time.Duration
	Stopping             StoppingCondition
}

// epochState carries the bookkeeping every training loop shares: history
// recording, the early-stopping counter and the stopping predicate in its
// tie order.
type epochState struct {
	criteria Criteria
	stop     *StopFlag
	started  time.Time

	results TrainingResults

	hasSelection      bool
	bestSelection     float64
	selectionFailures int
}

func newEpochState(criteria Criteria, stop *StopFlag, hasSelection bool) *epochState {
	return &epochState{
		criteria:      criteria,
		stop:          stop,
		started:       time.Now(),
		hasSelection:  hasSelection,
		bestSelection: math.Inf(1),
	}
}

// record appends the epoch's measurements and updates the early-stopping
// counter. Pass NaN for gradNorm when the algorithm has no gradient.
func (s *epochState) record(trainingLoss, selectionLoss, gradNorm float64) {
	s.results.Epochs++
	s.results.TrainingLossHistory = append(s.results.TrainingLossHistory, trainingLoss)
	s.results.FinalTrainingLoss = trainingLoss
	if !math.IsNaN(gradNorm) {
		s.results.GradientNormHistory = append(s.results.GradientNormHistory, gradNorm)
	}
	if s.hasSelection {
		s.results.SelectionLossHistory = append(s.results.SelectionLossHistory, selectionLoss)
		s.results.FinalSelectionLoss = selectionLoss
		if selectionLoss < s.bestSelection {
			s.bestSelection = selectionLoss
			s.selectionFailures = 0
		} else {
			s.selectionFailures++
		}
	}
	if s.criteria.Display && (s.results.Epochs == 1 || s.results.Epochs%s.criteria.displayPeriod() == 0) {
		line := fmt.Sprintf("epoch %d: training loss %g", s.results.Epochs, trainingLoss)
		if s.hasSelection {
			line += fmt.Sprintf(", selection loss %g", selectionLoss)
		}
		if !math.IsNaN(gradNorm) {
			line += fmt.Sprintf(", gradient norm %g", gradNorm)
		}
		fmt.Println(line)
	}
}

// shouldStop evaluates the stopping predicate in its tie order. A NaN
// gradNorm skips the gradient condition.
func (s *epochState) shouldStop(trainingLoss, gradNorm float64) (StoppingCondition, bool) {
	if s.stop != nil && s.stop.Requested() {
		return Cancelled, true
	}
	if s.criteria.LossGoal > 0 && trainingLoss < s.criteria.LossGoal {
		return LossGoalReached, true
	}
	if s.criteria.GradientNormGoal > 0 && !math.IsNaN(gradNorm) && gradNorm < s.criteria.GradientNormGoal {
		return GradientNormGoalReached, true
	}
	if s.hasSelection && s.criteria.MaxSelectionFailures > 0 && s.selectionFailures >= s.criteria.MaxSelectionFailures {
		return EarlyStopping, true
	}
	if s.results.Epochs >= s.criteria.maxEpochs() {
		return MaxEpochsReached, true
	}
	if s.criteria.MaxTime > 0 && time.Since(s.started) >= s.criteria.MaxTime {
		return MaxTimeReached, true
	}
	return 0, false
}

// finish seals the results with the final parameters and stopping tag.
func (s *epochState) finish(ix *loss.Index, tag StoppingCondition) *TrainingResults {
	s.results.Stopping = tag
	s.results.Elapsed = time.Since(s.started)
	s.results.FinalParameters = ix.Network().Parameters()
	if s.criteria.Display {
		fmt.Printf("stopped after %d epochs (%s), training loss %g\n",
			s.results.Epochs, tag, s.results.FinalTrainingLoss)
	}
	return &s.results
}

func hasSelectionSamples(ix *loss.Index) bool {
	return len(ix.DataSet().SampleIndices(data.Selection)) > 0
}

func selectionLoss(dev *device.Device, ix *loss.Index, hasSelection bool) float64 {
	if !hasSelection {
		return math.NaN()
	}
	return ix.Loss(dev, data.Selection)
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if !finite(x) {
			return false
		}
	}
	return true
}

func norm(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x * x
	}
	return math.Sqrt(sum)
}
