// Package data implements the tabular data set the training stack reads
// from.
//
// A Set owns a samples-by-variables value matrix plus two axes of "use"
// flags: each variable is Input, Target or Unused, and each sample belongs
// to the Training, Selection or Testing partition (or is Unused). The
// training stack depends only on the partition accessors; how the matrix
// was produced (CSV file, generated data, time-series windows) is this
// package's business.
package data

import (
	"math/rand"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// VariableUse declares the role of a column.
type VariableUse int

const (
	Input VariableUse = iota
	Target
	UnusedVariable
)

func (u VariableUse) String() string {
	switch u {
	case Input:
		return "Input"
	case Target:
		return "Target"
	default:
		return "Unused"
	}
}

// SampleUse declares the partition of a row.
type SampleUse int

const (
	Training SampleUse = iota
	Selection
	Testing
	UnusedSample
)

func (u SampleUse) String() string {
	switch u {
	case Training:
		return "Training"
	case Selection:
		return "Selection"
	case Testing:
		return "Testing"
	default:
		return "Unused"
	}
}

// Descriptives holds the per-variable statistics consumed by scaling and
// unscaling layers.
type Descriptives struct {
	Minimum           float64
	Maximum           float64
	Mean              float64
	StandardDeviation float64
}

// Set is an in-memory tabular data set.
//
// The matrix is read-only for the duration of a training run; variable-use
// and sample-use changes happen only between runs (model selection flips
// input flags between candidates).
type Set struct {
	values        *tensor.Tensor // [samples, variables]
	variableNames []string
	variableUses  []VariableUse
	sampleUses    []SampleUse
}

// NewSet creates a data set over a [samples, variables] matrix. The last
// targets columns are marked Target and the rest Input; every sample
// starts in the Training partition.
func NewSet(values *tensor.Tensor, targets int) (*Set, error) {
	if values.Rank() != 2 {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "data: values must be rank 2, got %v", values.Shape())
	}
	variables := values.Shape()[1]
	if targets < 0 || targets >= variables {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "data: %d target columns out of %d variables", targets, variables)
	}

	s := &Set{
		values:        values,
		variableNames: defaultNames(variables, variables-targets),
		variableUses:  make([]VariableUse, variables),
		sampleUses:    make([]SampleUse, values.Shape()[0]),
	}
	for i := variables - targets; i < variables; i++ {
		s.variableUses[i] = Target
	}
	return s, nil
}

func defaultNames(variables, inputs int) []string {
	names := make([]string, variables)
	for i := range names {
		if i < inputs {
			names[i] = "input_" + strconv.Itoa(i+1)
		} else {
			names[i] = "target_" + strconv.Itoa(i-inputs+1)
		}
	}
	return names
}

// Samples returns the number of rows.
func (s *Set) Samples() int { return s.values.Shape()[0] }

// Variables returns the number of columns.
func (s *Set) Variables() int { return s.values.Shape()[1] }

// Values returns the underlying matrix.
func (s *Set) Values() *tensor.Tensor { return s.values }

// VariableNames returns the column names.
func (s *Set) VariableNames() []string { return s.variableNames }

// SetVariableNames replaces the column names.
func (s *Set) SetVariableNames(names []string) error {
	if len(names) != s.Variables() {
		return errors.Wrapf(fault.ErrInvalidConfiguration, "data: %d names for %d variables", len(names), s.Variables())
	}
	s.variableNames = names
	return nil
}

// VariableUse returns the role of column i.
func (s *Set) VariableUse(i int) VariableUse { return s.variableUses[i] }

// SetVariableUse changes the role of column i. Model selection uses this
// to mask inputs in and out between training runs.
func (s *Set) SetVariableUse(i int, use VariableUse) {
	s.variableUses[i] = use
}

// SampleUse returns the partition of row i.
func (s *Set) SampleUse(i int) SampleUse { return s.sampleUses[i] }

// SetSampleUse changes the partition of row i.
func (s *Set) SetSampleUse(i int, use SampleUse) {
	s.sampleUses[i] = use
}

// InputIndices returns the column indices currently marked Input.
func (s *Set) InputIndices() []int {
	return s.variableIndices(Input)
}

// TargetIndices returns the column indices marked Target.
func (s *Set) TargetIndices() []int {
	return s.variableIndices(Target)
}

func (s *Set) variableIndices(use VariableUse) []int {
	var out []int
	for i, u := range s.variableUses {
		if u == use {
			out = append(out, i)
		}
	}
	return out
}

// SampleIndices returns the row indices in the given partition.
func (s *Set) SampleIndices(use SampleUse) []int {
	var out []int
	for i, u := range s.sampleUses {
		if u == use {
			out = append(out, i)
		}
	}
	return out
}

// InputNames returns the names of the active input columns.
func (s *Set) InputNames() []string {
	idx := s.InputIndices()
	names := make([]string, len(idx))
	for i, j := range idx {
		names[i] = s.variableNames[j]
	}
	return names
}

// TargetNames returns the names of the target columns.
func (s *Set) TargetNames() []string {
	idx := s.TargetIndices()
	names := make([]string, len(idx))
	for i, j := range idx {
		names[i] = s.variableNames[j]
	}
	return names
}

// Inputs returns the input sub-matrix of the given partition.
func (s *Set) Inputs(use SampleUse) *tensor.Tensor {
	return s.values.GatherRows(s.SampleIndices(use)).GatherColumns(s.InputIndices())
}

// Targets returns the target sub-matrix of the given partition.
func (s *Set) Targets(use SampleUse) *tensor.Tensor {
	return s.values.GatherRows(s.SampleIndices(use)).GatherColumns(s.TargetIndices())
}

// Split assigns samples to the three partitions by ratio, in row order.
// The ratios must be non-negative and sum to 1 within floating tolerance.
func (s *Set) Split(training, selection, testing float64) error {
	if err := checkRatios(training, selection, testing); err != nil {
		return err
	}
	n := s.Samples()
	nTrain := int(training * float64(n))
	nSel := int(selection * float64(n))
	for i := 0; i < n; i++ {
		switch {
		case i < nTrain:
			s.sampleUses[i] = Training
		case i < nTrain+nSel:
			s.sampleUses[i] = Selection
		default:
			s.sampleUses[i] = Testing
		}
	}
	return nil
}

// SplitRandom assigns samples to the three partitions by ratio in a random
// order drawn from rng.
func (s *Set) SplitRandom(training, selection, testing float64, rng *rand.Rand) error {
	if err := s.Split(training, selection, testing); err != nil {
		return err
	}
	rng.Shuffle(len(s.sampleUses), func(i, j int) {
		s.sampleUses[i], s.sampleUses[j] = s.sampleUses[j], s.sampleUses[i]
	})
	return nil
}

func checkRatios(training, selection, testing float64) error {
	if training < 0 || selection < 0 || testing < 0 {
		return errors.Wrap(fault.ErrInvalidConfiguration, "data: negative split ratio")
	}
	sum := training + selection + testing
	if sum < 0.999 || sum > 1.001 {
		return errors.Wrapf(fault.ErrInvalidConfiguration, "data: split ratios sum to %g, want 1", sum)
	}
	return nil
}

// VariableDescriptives computes min/max/mean/stddev per column over the
// used samples (every partition except UnusedSample).
func (s *Set) VariableDescriptives() []Descriptives {
	n := s.Samples()
	cols := s.Variables()
	out := make([]Descriptives, cols)
	column := make([]float64, 0, n)
	for j := 0; j < cols; j++ {
		column = column[:0]
		for i := 0; i < n; i++ {
			if s.sampleUses[i] == UnusedSample {
				continue
			}
			column = append(column, s.values.At(i, j))
		}
		out[j] = describe(column)
	}
	return out
}

// InputDescriptives returns descriptives for the active input columns, in
// input order.
func (s *Set) InputDescriptives() []Descriptives {
	all := s.VariableDescriptives()
	idx := s.InputIndices()
	out := make([]Descriptives, len(idx))
	for i, j := range idx {
		out[i] = all[j]
	}
	return out
}

// TargetDescriptives returns descriptives for the target columns.
func (s *Set) TargetDescriptives() []Descriptives {
	all := s.VariableDescriptives()
	idx := s.TargetIndices()
	out := make([]Descriptives, len(idx))
	for i, j := range idx {
		out[i] = all[j]
	}
	return out
}

func describe(column []float64) Descriptives {
	if len(column) == 0 {
		return Descriptives{}
	}
	d := Descriptives{Minimum: column[0], Maximum: column[0]}
	for _, x := range column {
		if x < d.Minimum {
			d.Minimum = x
		}
		if x > d.Maximum {
			d.Maximum = x
		}
	}
	d.Mean, d.StandardDeviation = stat.MeanStdDev(column, nil)
	if len(column) == 1 {
		d.StandardDeviation = 0
	}
	return d
}

// TargetClassCounts returns, for a single binary target column, the number
// of negative and positive training samples. Used to default the weighted
// squared error's class weights.
func (s *Set) TargetClassCounts() (negatives, positives int) {
	targets := s.TargetIndices()
	if len(targets) != 1 {
		return 0, 0
	}
	col := targets[0]
	for _, i := range s.SampleIndices(Training) {
		if s.values.At(i, col) > 0.5 {
			positives++
		} else {
			negatives++
		}
	}
	return negatives, positives
}
