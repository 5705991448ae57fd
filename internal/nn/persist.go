package nn

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// The persistence format is a tagged tree: every component document has a
// single root element naming the component, and each layer is a tagged
// record keyed by its kind. Documents round-trip exactly, including
// trained parameters.

type networkDocument struct {
	Network networkRecord `json:"NeuralNetwork"`
}

type networkRecord struct {
	ModelType   string        `json:"ModelType"`
	InputNames  []string      `json:"InputNames"`
	OutputNames []string      `json:"OutputNames"`
	Display     bool          `json:"Display"`
	Layers      []layerRecord `json:"Layers"`
}

type layerRecord struct {
	Type string `json:"Type"`

	Method     string `json:"Method,omitempty"`
	Activation string `json:"Activation,omitempty"`

	Inputs    int `json:"Inputs,omitempty"`
	Neurons   int `json:"Neurons,omitempty"`
	Timesteps int `json:"Timesteps,omitempty"`

	Descriptives []data.Descriptives `json:"Descriptives,omitempty"`
	Lower        []boundValue        `json:"Lower,omitempty"`
	Upper        []boundValue        `json:"Upper,omitempty"`

	Biases           []float64 `json:"Biases,omitempty"`
	Weights          []float64 `json:"Weights,omitempty"`
	RecurrentWeights []float64 `json:"RecurrentWeights,omitempty"`

	DecisionThreshold float64 `json:"DecisionThreshold,omitempty"`

	RecurrentActivation string           `json:"RecurrentActivation,omitempty"`
	Gates               []lstmGateRecord `json:"Gates,omitempty"`

	InputShape []int     `json:"InputShape,omitempty"`
	Filters    int       `json:"Filters,omitempty"`
	KernelRows int       `json:"KernelRows,omitempty"`
	KernelCols int       `json:"KernelCols,omitempty"`
	PoolRows   int       `json:"PoolRows,omitempty"`
	PoolCols   int       `json:"PoolCols,omitempty"`
	Stride     int       `json:"Stride,omitempty"`
	Kernels    []float64 `json:"Kernels,omitempty"`

	Means      []float64 `json:"Means,omitempty"`
	Basis      []float64 `json:"Basis,omitempty"`
	Components int       `json:"Components,omitempty"`
}

// boundValue is a float64 whose infinities survive the JSON round trip as
// the strings "inf" and "-inf".
type boundValue float64

func (b boundValue) MarshalJSON() ([]byte, error) {
	switch {
	case math.IsInf(float64(b), 1):
		return []byte(`"inf"`), nil
	case math.IsInf(float64(b), -1):
		return []byte(`"-inf"`), nil
	}
	return json.Marshal(float64(b))
}

func (b *boundValue) UnmarshalJSON(raw []byte) error {
	switch string(raw) {
	case `"inf"`:
		*b = boundValue(math.Inf(1))
		return nil
	case `"-inf"`:
		*b = boundValue(math.Inf(-1))
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*b = boundValue(v)
	return nil
}

func boundValues(vs []float64) []boundValue {
	out := make([]boundValue, len(vs))
	for i, v := range vs {
		out[i] = boundValue(v)
	}
	return out
}

type lstmGateRecord struct {
	Biases           []float64 `json:"Biases"`
	Weights          []float64 `json:"Weights"`
	RecurrentWeights []float64 `json:"RecurrentWeights"`
}

// MarshalJSON serializes the network under a NeuralNetwork root element.
func (n *Network) MarshalJSON() ([]byte, error) {
	record := networkRecord{
		ModelType:   n.modelType.String(),
		InputNames:  n.inputNames,
		OutputNames: n.outputNames,
		Display:     n.display,
	}
	for _, l := range n.layers {
		rec, err := marshalLayer(l)
		if err != nil {
			return nil, err
		}
		record.Layers = append(record.Layers, rec)
	}
	return json.Marshal(networkDocument{Network: record})
}

func marshalLayer(l Layer) (layerRecord, error) {
	rec := layerRecord{Type: l.Kind().String()}
	switch layer := l.(type) {
	case *Scaling:
		rec.Method = layer.method.String()
		rec.Descriptives = layer.descriptives
	case *Unscaling:
		rec.Method = layer.method.String()
		rec.Descriptives = layer.descriptives
	case *Bounding:
		rec.Lower = boundValues(layer.lower)
		rec.Upper = boundValues(layer.upper)
	case *Perceptron:
		rec.Inputs = layer.inputs
		rec.Neurons = layer.neurons
		rec.Activation = layer.activation.String()
		rec.Biases = layer.biases.Data()
		rec.Weights = layer.weights.Data()
	case *Probabilistic:
		rec.Inputs = layer.inputs
		rec.Neurons = layer.neurons
		rec.Method = layer.method.String()
		rec.DecisionThreshold = layer.decisionThreshold
		rec.Biases = layer.biases.Data()
		rec.Weights = layer.weights.Data()
	case *Recurrent:
		rec.Inputs = layer.inputs
		rec.Neurons = layer.neurons
		rec.Timesteps = layer.timesteps
		rec.Activation = layer.activation.String()
		rec.Biases = layer.biases.Data()
		rec.Weights = layer.weights.Data()
		rec.RecurrentWeights = layer.recurrent.Data()
	case *LSTM:
		rec.Inputs = layer.inputs
		rec.Neurons = layer.neurons
		rec.Timesteps = layer.timesteps
		rec.Activation = layer.activation.String()
		rec.RecurrentActivation = layer.recurrentActivation.String()
		for g := 0; g < lstmGates; g++ {
			rec.Gates = append(rec.Gates, lstmGateRecord{
				Biases:           layer.biases[g].Data(),
				Weights:          layer.weights[g].Data(),
				RecurrentWeights: layer.recurrent[g].Data(),
			})
		}
	case *Convolutional:
		rec.InputShape = layer.inputShape
		rec.Filters = layer.filters
		rec.KernelRows = layer.kernelRows
		rec.KernelCols = layer.kernelCols
		rec.Stride = layer.stride
		rec.Activation = layer.activation.String()
		rec.Biases = layer.biases.Data()
		rec.Kernels = layer.kernels.Data()
	case *Pooling:
		rec.InputShape = layer.inputShape
		rec.PoolRows = layer.poolRows
		rec.PoolCols = layer.poolCols
		rec.Stride = layer.stride
		rec.Method = layer.method.String()
	case *PrincipalComponents:
		rec.Means = layer.means.Data()
		rec.Basis = layer.basis.Data()
		rec.Components = layer.basis.Shape()[1]
	default:
		return rec, errors.Wrapf(fault.ErrInvalidConfiguration, "nn: cannot serialize layer kind %s", l.Kind())
	}
	return rec, nil
}

// UnmarshalJSON rebuilds a network from its NeuralNetwork document.
func (n *Network) UnmarshalJSON(raw []byte) error {
	var doc networkDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "nn: parse NeuralNetwork document")
	}
	record := doc.Network

	modelType, ok := ParseModelType(record.ModelType)
	if !ok {
		return errors.Wrapf(fault.ErrInvalidConfiguration, "nn: unknown model type %q", record.ModelType)
	}

	rebuilt := Network{
		modelType:   modelType,
		inputNames:  record.InputNames,
		outputNames: record.OutputNames,
		display:     record.Display,
	}
	for i, rec := range record.Layers {
		layer, err := unmarshalLayer(rec)
		if err != nil {
			return errors.Wrapf(err, "nn: layer %d", i)
		}
		rebuilt.AddLayer(layer)
	}
	*n = rebuilt
	return nil
}

func unmarshalLayer(rec layerRecord) (Layer, error) {
	kind, ok := ParseKind(rec.Type)
	if !ok {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unknown layer kind %q", rec.Type)
	}

	switch kind {
	case ScalingKind, UnscalingKind:
		method, ok := ParseScalingMethod(rec.Method)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unknown scaling method %q", rec.Method)
		}
		if kind == ScalingKind {
			l := NewScaling(len(rec.Descriptives))
			l.SetMethod(method)
			l.SetDescriptives(rec.Descriptives)
			return l, nil
		}
		l := NewUnscaling(len(rec.Descriptives))
		l.SetMethod(method)
		l.SetDescriptives(rec.Descriptives)
		return l, nil

	case BoundingKind:
		if len(rec.Lower) != len(rec.Upper) {
			return nil, errors.Wrap(fault.ErrInvalidConfiguration, "bounding lower/upper length mismatch")
		}
		l := NewBounding(len(rec.Lower))
		for i := range rec.Lower {
			l.SetBounds(i, float64(rec.Lower[i]), float64(rec.Upper[i]))
		}
		return l, nil

	case PerceptronKind:
		activation, ok := ParseActivation(rec.Activation)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unknown activation %q", rec.Activation)
		}
		l := &Perceptron{
			inputs:     rec.Inputs,
			neurons:    rec.Neurons,
			biases:     tensor.New(tensor.Shape{rec.Neurons}),
			weights:    tensor.New(tensor.Shape{rec.Inputs, rec.Neurons}),
			activation: activation,
		}
		if err := copyExact(l.biases.Data(), rec.Biases, "perceptron biases"); err != nil {
			return nil, err
		}
		if err := copyExact(l.weights.Data(), rec.Weights, "perceptron weights"); err != nil {
			return nil, err
		}
		return l, nil

	case ProbabilisticKind:
		method, ok := ParseProbabilisticMethod(rec.Method)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unknown probabilistic method %q", rec.Method)
		}
		l := &Probabilistic{
			inputs:            rec.Inputs,
			neurons:           rec.Neurons,
			biases:            tensor.New(tensor.Shape{rec.Neurons}),
			weights:           tensor.New(tensor.Shape{rec.Inputs, rec.Neurons}),
			method:            method,
			decisionThreshold: rec.DecisionThreshold,
		}
		if err := copyExact(l.biases.Data(), rec.Biases, "probabilistic biases"); err != nil {
			return nil, err
		}
		if err := copyExact(l.weights.Data(), rec.Weights, "probabilistic weights"); err != nil {
			return nil, err
		}
		return l, nil

	case RecurrentKind:
		activation, ok := ParseActivation(rec.Activation)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unknown activation %q", rec.Activation)
		}
		l := &Recurrent{
			inputs:     rec.Inputs,
			neurons:    rec.Neurons,
			timesteps:  rec.Timesteps,
			biases:     tensor.New(tensor.Shape{rec.Neurons}),
			weights:    tensor.New(tensor.Shape{rec.Inputs, rec.Neurons}),
			recurrent:  tensor.New(tensor.Shape{rec.Neurons, rec.Neurons}),
			activation: activation,
		}
		if err := copyExact(l.biases.Data(), rec.Biases, "recurrent biases"); err != nil {
			return nil, err
		}
		if err := copyExact(l.weights.Data(), rec.Weights, "recurrent weights"); err != nil {
			return nil, err
		}
		if err := copyExact(l.recurrent.Data(), rec.RecurrentWeights, "recurrent recurrent weights"); err != nil {
			return nil, err
		}
		return l, nil

	case LongShortTermMemoryKind:
		activation, ok := ParseActivation(rec.Activation)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unknown activation %q", rec.Activation)
		}
		recurrentActivation, ok := ParseActivation(rec.RecurrentActivation)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unknown recurrent activation %q", rec.RecurrentActivation)
		}
		if len(rec.Gates) != lstmGates {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "LSTM wants %d gates, got %d", lstmGates, len(rec.Gates))
		}
		l := &LSTM{
			inputs:              rec.Inputs,
			neurons:             rec.Neurons,
			timesteps:           rec.Timesteps,
			activation:          activation,
			recurrentActivation: recurrentActivation,
		}
		for g := 0; g < lstmGates; g++ {
			l.biases[g] = tensor.New(tensor.Shape{rec.Neurons})
			l.weights[g] = tensor.New(tensor.Shape{rec.Inputs, rec.Neurons})
			l.recurrent[g] = tensor.New(tensor.Shape{rec.Neurons, rec.Neurons})
			if err := copyExact(l.biases[g].Data(), rec.Gates[g].Biases, "LSTM gate biases"); err != nil {
				return nil, err
			}
			if err := copyExact(l.weights[g].Data(), rec.Gates[g].Weights, "LSTM gate weights"); err != nil {
				return nil, err
			}
			if err := copyExact(l.recurrent[g].Data(), rec.Gates[g].RecurrentWeights, "LSTM gate recurrent weights"); err != nil {
				return nil, err
			}
		}
		return l, nil

	case ConvolutionalKind:
		activation, ok := ParseActivation(rec.Activation)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unknown activation %q", rec.Activation)
		}
		if len(rec.InputShape) != 3 {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "convolutional input shape %v", rec.InputShape)
		}
		shape := tensor.Shape(rec.InputShape)
		l := &Convolutional{
			inputShape: shape.Clone(),
			filters:    rec.Filters,
			kernelRows: rec.KernelRows,
			kernelCols: rec.KernelCols,
			stride:     rec.Stride,
			biases:     tensor.New(tensor.Shape{rec.Filters}),
			kernels:    tensor.New(tensor.Shape{rec.Filters, shape[0], rec.KernelRows, rec.KernelCols}),
			activation: activation,
		}
		if err := copyExact(l.biases.Data(), rec.Biases, "convolutional biases"); err != nil {
			return nil, err
		}
		if err := copyExact(l.kernels.Data(), rec.Kernels, "convolutional kernels"); err != nil {
			return nil, err
		}
		return l, nil

	case PoolingKind:
		method, ok := ParsePoolingMethod(rec.Method)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unknown pooling method %q", rec.Method)
		}
		if len(rec.InputShape) != 3 {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "pooling input shape %v", rec.InputShape)
		}
		return NewPooling(tensor.Shape(rec.InputShape), rec.PoolRows, rec.PoolCols, rec.Stride, method), nil

	case PrincipalComponentsKind:
		if rec.Components < 1 || len(rec.Means) == 0 || len(rec.Basis) != len(rec.Means)*rec.Components {
			return nil, errors.Wrap(fault.ErrInvalidConfiguration, "principal components basis does not match means")
		}
		means := tensor.FromSlice(rec.Means, tensor.Shape{len(rec.Means)})
		basis := tensor.FromSlice(rec.Basis, tensor.Shape{len(rec.Means), rec.Components})
		return NewPrincipalComponents(means, basis), nil
	}
	return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "unhandled layer kind %q", rec.Type)
}

func copyExact(dst, src []float64, what string) error {
	if len(src) != len(dst) {
		return errors.Wrapf(fault.ErrInvalidConfiguration, "%s has %d values, want %d", what, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}
