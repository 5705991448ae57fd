package loss

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/fault"
)

type indexDocument struct {
	Index indexRecord `json:"LossIndex"`
}

type indexRecord struct {
	Method               string  `json:"Method"`
	MinkowskiParameter   float64 `json:"MinkowskiParameter,omitempty"`
	PositivesWeight      float64 `json:"PositivesWeight,omitempty"`
	NegativesWeight      float64 `json:"NegativesWeight,omitempty"`
	Regularization       string  `json:"Regularization"`
	RegularizationWeight float64 `json:"RegularizationWeight,omitempty"`
}

// MarshalJSON serializes the index's configuration under a LossIndex
// root element. The network and data set bindings are not part of the
// document.
func (ix *Index) MarshalJSON() ([]byte, error) {
	rec := indexRecord{
		Method:               ix.method.String(),
		MinkowskiParameter:   ix.minkowskiParameter,
		Regularization:       ix.regularization.String(),
		RegularizationWeight: ix.regularizationWeight,
	}
	if ix.weightsSet {
		rec.PositivesWeight = ix.positivesWeight
		rec.NegativesWeight = ix.negativesWeight
	}
	return json.Marshal(indexDocument{Index: rec})
}

// UnmarshalJSON rebuilds an unbound index from its document.
func (ix *Index) UnmarshalJSON(raw []byte) error {
	var doc indexDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "loss: parse LossIndex document")
	}
	rec := doc.Index

	method, ok := ParseMethod(rec.Method)
	if !ok {
		return errors.Wrapf(fault.ErrInvalidConfiguration, "loss: unknown method %q", rec.Method)
	}
	regularization, ok := ParseRegularization(rec.Regularization)
	if !ok {
		return errors.Wrapf(fault.ErrInvalidConfiguration, "loss: unknown regularization %q", rec.Regularization)
	}

	rebuilt := NewIndex(method, nil, nil)
	if rec.MinkowskiParameter != 0 {
		if err := rebuilt.SetMinkowskiParameter(rec.MinkowskiParameter); err != nil {
			return err
		}
	}
	if rec.PositivesWeight != 0 || rec.NegativesWeight != 0 {
		rebuilt.SetClassWeights(rec.PositivesWeight, rec.NegativesWeight)
	}
	if err := rebuilt.SetRegularization(regularization, rec.RegularizationWeight); err != nil {
		return err
	}
	*ix = *rebuilt
	return nil
}
