// Package train wires a network, a data set, a loss index and an
// optimizer into a single training run.
package train

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/loss"
	"github.com/tabnet-ml/tabnet/internal/nn"
	"github.com/tabnet-ml/tabnet/internal/optim"
)

// Strategy owns one training run's wiring. The network and data set are
// borrowed from the caller; the strategy never outlives them.
type Strategy struct {
	index     *loss.Index
	algorithm optim.Algorithm
}

// NewStrategy wires a network and data set to a loss method and an
// optimization algorithm.
func NewStrategy(network *nn.Network, set *data.Set, method loss.Method, algorithm optim.Algorithm) *Strategy {
	return &Strategy{
		index:     loss.NewIndex(method, network, set),
		algorithm: algorithm,
	}
}

// LossIndex exposes the strategy's loss index for tuning (Minkowski
// parameter, class weights, regularization).
func (s *Strategy) LossIndex() *loss.Index { return s.index }

// Algorithm returns the wired optimizer.
func (s *Strategy) Algorithm() optim.Algorithm { return s.algorithm }

// SetAlgorithm replaces the optimizer.
func (s *Strategy) SetAlgorithm(a optim.Algorithm) { s.algorithm = a }

// Bind replaces the network and data set the strategy trains.
func (s *Strategy) Bind(network *nn.Network, set *data.Set) {
	s.index.Bind(network, set)
}

// Check validates the wiring without training.
func (s *Strategy) Check() error {
	if s.algorithm == nil {
		return errors.Wrap(fault.ErrUnboundReference, "train: no optimization algorithm bound")
	}
	if s.index.Network() != nil && s.index.Network().Empty() {
		return errors.Wrap(fault.ErrUnboundReference, "train: the bound network has no layers")
	}
	return s.index.Check(data.Training)
}

// Perform validates the wiring and runs the optimizer to completion. The
// bound network holds the trained parameters on return.
func (s *Strategy) Perform(dev *device.Device) (*optim.TrainingResults, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s.algorithm.Perform(dev, s.index)
}

type strategyDocument struct {
	Strategy strategyRecord `json:"TrainingStrategy"`
}

type strategyRecord struct {
	LossIndex json.RawMessage `json:"LossIndex"`
	Algorithm json.RawMessage `json:"Algorithm"`
}

// MarshalJSON serializes the loss and optimizer configuration under a
// TrainingStrategy root element. Bindings are not persisted.
func (s *Strategy) MarshalJSON() ([]byte, error) {
	indexRaw, err := json.Marshal(s.index)
	if err != nil {
		return nil, err
	}
	algorithmRaw, err := optim.MarshalAlgorithm(s.algorithm)
	if err != nil {
		return nil, err
	}
	return json.Marshal(strategyDocument{Strategy: strategyRecord{
		LossIndex: indexRaw,
		Algorithm: algorithmRaw,
	}})
}

// UnmarshalJSON rebuilds an unbound strategy from its document.
func (s *Strategy) UnmarshalJSON(raw []byte) error {
	var doc strategyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "train: parse TrainingStrategy document")
	}
	index := &loss.Index{}
	if err := json.Unmarshal(doc.Strategy.LossIndex, index); err != nil {
		return err
	}
	algorithm, err := optim.UnmarshalAlgorithm(doc.Strategy.Algorithm)
	if err != nil {
		return err
	}
	s.index = index
	s.algorithm = algorithm
	return nil
}
