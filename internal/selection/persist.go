package selection

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/optim"
)

// Driver documents live under a ModelSelection root with one child
// element per driver family, so a document can carry a neurons driver, an
// inputs driver or both.

type modelSelectionDocument struct {
	ModelSelection modelSelectionRecord `json:"ModelSelection"`
}

type modelSelectionRecord struct {
	NeuronsSelection *neuronsRecord `json:"NeuronsSelection,omitempty"`
	InputsSelection  *inputsRecord  `json:"InputsSelection,omitempty"`
}

type neuronsRecord struct {
	Type                 string `json:"Type"`
	MinNeurons           int    `json:"MinNeurons"`
	MaxNeurons           int    `json:"MaxNeurons"`
	Step                 int    `json:"Step,omitempty"`
	MaxSelectionFailures int    `json:"MaxSelectionFailures,omitempty"`
}

type inputsRecord struct {
	Type                 string  `json:"Type"`
	MaxInputs            int     `json:"MaxInputs,omitempty"`
	MinInputs            int     `json:"MinInputs,omitempty"`
	MaxSelectionFailures int     `json:"MaxSelectionFailures,omitempty"`
	PopulationSize       int     `json:"PopulationSize,omitempty"`
	Generations          int     `json:"Generations,omitempty"`
	Selection            string  `json:"Selection,omitempty"`
	MutationRate         float64 `json:"MutationRate,omitempty"`
}

// Config pairs the optional drivers a ModelSelection document carries.
type Config struct {
	Neurons *IncrementalNeurons
	Inputs  InputsDriver
}

// InputsDriver is satisfied by the three inputs-selection searches.
type InputsDriver interface {
	isInputsDriver()
}

func (*GrowingInputs) isInputsDriver() {}
func (*PruningInputs) isInputsDriver() {}
func (*GeneticInputs) isInputsDriver() {}

// MarshalJSON serializes the configured drivers under a ModelSelection
// root element.
func (c Config) MarshalJSON() ([]byte, error) {
	var record modelSelectionRecord
	if c.Neurons != nil {
		record.NeuronsSelection = &neuronsRecord{
			Type:                 "IncrementalNeurons",
			MinNeurons:           c.Neurons.MinNeurons,
			MaxNeurons:           c.Neurons.MaxNeurons,
			Step:                 c.Neurons.Step,
			MaxSelectionFailures: c.Neurons.MaxSelectionFailures,
		}
	}
	switch d := c.Inputs.(type) {
	case nil:
	case *GrowingInputs:
		record.InputsSelection = &inputsRecord{
			Type:                 "GrowingInputs",
			MaxInputs:            d.MaxInputs,
			MaxSelectionFailures: d.MaxSelectionFailures,
		}
	case *PruningInputs:
		record.InputsSelection = &inputsRecord{
			Type:                 "PruningInputs",
			MinInputs:            d.MinInputs,
			MaxSelectionFailures: d.MaxSelectionFailures,
		}
	case *GeneticInputs:
		record.InputsSelection = &inputsRecord{
			Type:           "GeneticInputs",
			PopulationSize: d.PopulationSize,
			Generations:    d.Generations,
			Selection:      d.Selection.String(),
			MutationRate:   d.MutationRate,
		}
	default:
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "selection: cannot serialize %T", c.Inputs)
	}
	return json.Marshal(modelSelectionDocument{ModelSelection: record})
}

// UnmarshalJSON rebuilds the drivers from a ModelSelection document.
func (c *Config) UnmarshalJSON(raw []byte) error {
	var doc modelSelectionDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "selection: parse ModelSelection document")
	}

	*c = Config{}
	if rec := doc.ModelSelection.NeuronsSelection; rec != nil {
		if rec.Type != "IncrementalNeurons" {
			return errors.Wrapf(fault.ErrInvalidConfiguration, "selection: unknown neurons driver %q", rec.Type)
		}
		c.Neurons = &IncrementalNeurons{
			MinNeurons:           rec.MinNeurons,
			MaxNeurons:           rec.MaxNeurons,
			Step:                 rec.Step,
			MaxSelectionFailures: rec.MaxSelectionFailures,
		}
	}
	if rec := doc.ModelSelection.InputsSelection; rec != nil {
		switch rec.Type {
		case "GrowingInputs":
			c.Inputs = &GrowingInputs{
				MaxInputs:            rec.MaxInputs,
				MaxSelectionFailures: rec.MaxSelectionFailures,
			}
		case "PruningInputs":
			c.Inputs = &PruningInputs{
				MinInputs:            rec.MinInputs,
				MaxSelectionFailures: rec.MaxSelectionFailures,
			}
		case "GeneticInputs":
			method, ok := optim.ParseFitnessSelection(rec.Selection)
			if !ok {
				return errors.Wrapf(fault.ErrInvalidConfiguration, "selection: unknown fitness selection %q", rec.Selection)
			}
			c.Inputs = &GeneticInputs{
				PopulationSize: rec.PopulationSize,
				Generations:    rec.Generations,
				Selection:      method,
				MutationRate:   rec.MutationRate,
			}
		default:
			return errors.Wrapf(fault.ErrInvalidConfiguration, "selection: unknown inputs driver %q", rec.Type)
		}
	}
	return nil
}
