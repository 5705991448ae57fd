package nn

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// ModelType hints what the network is for. The convenience constructor
// uses it to choose which layer kinds to synthesize around the hidden
// stack.
type ModelType int

const (
	Approximation ModelType = iota
	Classification
	Forecasting
	ImageApproximation
	ImageClassification
)

var modelTypeNames = map[ModelType]string{
	Approximation:       "Approximation",
	Classification:      "Classification",
	Forecasting:         "Forecasting",
	ImageApproximation:  "ImageApproximation",
	ImageClassification: "ImageClassification",
}

func (m ModelType) String() string {
	if name, ok := modelTypeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ModelType(%d)", int(m))
}

// ParseModelType maps a name back to its ModelType.
func ParseModelType(name string) (ModelType, bool) {
	for m, n := range modelTypeNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// Network is an ordered pipeline of layers plus the variable names its
// inputs and outputs carry. Parameters live exclusively inside the
// layers; the network only aggregates them into a flat vector view.
type Network struct {
	layers      []Layer
	inputNames  []string
	outputNames []string
	modelType   ModelType
	display     bool
}

// NewNetwork synthesizes the layer stack for a model type and an
// architecture [inputs, hidden..., outputs]:
//
//   - Approximation: Scaling, tanh Perceptrons, linear Perceptron,
//     Unscaling, Bounding
//   - Classification: Scaling, tanh Perceptrons, Probabilistic
//   - Forecasting: Scaling, Recurrent, linear Perceptron, Unscaling,
//     Bounding
//
// The image model types keep the same stacks as their tabular
// counterparts but skip the Scaling layer; image pipelines assemble
// convolutional stacks explicitly with AddLayer.
func NewNetwork(modelType ModelType, architecture []int, rng *rand.Rand) *Network {
	if len(architecture) < 2 {
		panic(fmt.Sprintf("nn: architecture %v needs at least inputs and outputs", architecture))
	}
	for _, n := range architecture {
		if n < 1 {
			panic(fmt.Sprintf("nn: architecture %v has a non-positive width", architecture))
		}
	}

	net := &Network{modelType: modelType, display: true}
	inputs := architecture[0]
	outputs := architecture[len(architecture)-1]
	hidden := architecture[1 : len(architecture)-1]

	switch modelType {
	case Approximation, ImageApproximation:
		if modelType == Approximation {
			net.layers = append(net.layers, NewScaling(inputs))
		}
		prev := inputs
		for _, h := range hidden {
			net.layers = append(net.layers, NewPerceptron(prev, h, HyperbolicTangent, rng))
			prev = h
		}
		net.layers = append(net.layers, NewPerceptron(prev, outputs, Linear, rng))
		net.layers = append(net.layers, NewUnscaling(outputs))
		net.layers = append(net.layers, NewBounding(outputs))

	case Classification, ImageClassification:
		if modelType == Classification {
			net.layers = append(net.layers, NewScaling(inputs))
		}
		prev := inputs
		for _, h := range hidden {
			net.layers = append(net.layers, NewPerceptron(prev, h, HyperbolicTangent, rng))
			prev = h
		}
		net.layers = append(net.layers, NewProbabilistic(prev, outputs, rng))

	case Forecasting:
		net.layers = append(net.layers, NewScaling(inputs))
		prev := inputs
		for _, h := range hidden {
			net.layers = append(net.layers, NewRecurrent(prev, h, 1, HyperbolicTangent, rng))
			prev = h
		}
		net.layers = append(net.layers, NewPerceptron(prev, outputs, Linear, rng))
		net.layers = append(net.layers, NewUnscaling(outputs))
		net.layers = append(net.layers, NewBounding(outputs))

	default:
		panic(fmt.Sprintf("nn: unknown model type %d", int(modelType)))
	}

	net.inputNames = defaultVariableNames("input_", inputs)
	net.outputNames = defaultVariableNames("output_", outputs)
	return net
}

// NewEmptyNetwork creates a network with no layers; callers assemble it
// with AddLayer.
func NewEmptyNetwork(modelType ModelType) *Network {
	return &Network{modelType: modelType, display: true}
}

func defaultVariableNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = prefix + strconv.Itoa(i+1)
	}
	return names
}

// AddLayer appends a layer, enforcing the composition invariants: shapes
// must chain (spatial outputs flatten implicitly into dense inputs of the
// same element count), and a Scaling layer may only sit at position 0.
func (n *Network) AddLayer(l Layer) {
	if l.Kind() == ScalingKind && len(n.layers) != 0 {
		panic("nn: Scaling layer must be the first layer")
	}
	if len(n.layers) > 0 {
		last := n.layers[len(n.layers)-1]
		if !last.OutputShape().Equal(l.InputShape()) &&
			last.OutputShape().NumElements() != l.InputShape().NumElements() {
			panic(fmt.Sprintf("nn: layer %d output shape %v does not feed %s input shape %v",
				len(n.layers)-1, last.OutputShape(), l.Kind(), l.InputShape()))
		}
	}
	n.layers = append(n.layers, l)
}

// ModelType returns the network's model-type hint.
func (n *Network) ModelType() ModelType { return n.modelType }

// Empty reports whether the network has no layers.
func (n *Network) Empty() bool { return len(n.layers) == 0 }

// LayersCount returns the number of layers.
func (n *Network) LayersCount() int { return len(n.layers) }

// Layer returns the i-th layer.
func (n *Network) Layer(i int) Layer { return n.layers[i] }

// Layers returns the layer slice. Callers must not reorder it.
func (n *Network) Layers() []Layer { return n.layers }

// FirstLayerOfKind returns the first layer with the given kind, or nil.
func (n *Network) FirstLayerOfKind(kind Kind) Layer {
	for _, l := range n.layers {
		if l.Kind() == kind {
			return l
		}
	}
	return nil
}

// InputsCount returns the flattened input size of the first layer.
func (n *Network) InputsCount() int {
	if n.Empty() {
		return 0
	}
	return InputsCount(n.layers[0])
}

// OutputsCount returns the flattened output size of the last layer.
func (n *Network) OutputsCount() int {
	if n.Empty() {
		return 0
	}
	return NeuronsCount(n.layers[len(n.layers)-1])
}

// Architecture returns the constructor-style widths [inputs, hidden...,
// outputs]. Scaling, unscaling and bounding layers preserve their
// neighbor's width and are not listed.
func (n *Network) Architecture() []int {
	if n.Empty() {
		return nil
	}
	arch := []int{n.InputsCount()}
	for _, l := range n.layers {
		switch l.Kind() {
		case ScalingKind, UnscalingKind, BoundingKind:
			continue
		}
		arch = append(arch, NeuronsCount(l))
	}
	return arch
}

// InputNames returns the input variable names.
func (n *Network) InputNames() []string { return n.inputNames }

// OutputNames returns the output variable names.
func (n *Network) OutputNames() []string { return n.outputNames }

// SetInputNames replaces the input variable names.
func (n *Network) SetInputNames(names []string) { n.inputNames = names }

// SetOutputNames replaces the output variable names.
func (n *Network) SetOutputNames(names []string) { n.outputNames = names }

// Display reports whether progress lines are written.
func (n *Network) Display() bool { return n.display }

// SetDisplay toggles progress reporting.
func (n *Network) SetDisplay(display bool) { n.display = display }

// ParameterCount returns the total number of trainable parameters.
func (n *Network) ParameterCount() int {
	count := 0
	for _, l := range n.layers {
		count += l.ParameterCount()
	}
	return count
}

// Parameters packs every layer's parameter blocks into one flat vector,
// in layer order. SetParameters(Parameters()) round-trips exactly.
func (n *Network) Parameters() []float64 {
	params := make([]float64, n.ParameterCount())
	offset := 0
	for _, l := range n.layers {
		count := l.ParameterCount()
		l.PackParameters(params[offset : offset+count])
		offset += count
	}
	return params
}

// SetParameters distributes a flat vector back into the layers.
func (n *Network) SetParameters(params []float64) {
	if len(params) != n.ParameterCount() {
		panic(fmt.Sprintf("nn: SetParameters got %d values, network has %d parameters", len(params), n.ParameterCount()))
	}
	offset := 0
	for _, l := range n.layers {
		count := l.ParameterCount()
		l.UnpackParameters(params[offset : offset+count])
		offset += count
	}
}

// ForwardPropagate runs the whole network on a batch and keeps every
// layer's combinations and activations for a following backward pass.
func (n *Network) ForwardPropagate(dev *device.Device, batch *tensor.Tensor) []Forwarded {
	if n.Empty() {
		panic("nn: forward propagation through an empty network")
	}
	states := make([]Forwarded, len(n.layers))
	inputs := batch
	for i, l := range n.layers {
		l.Forward(dev, batchView(inputs, l.InputShape()), &states[i])
		inputs = states[i].Activations
	}
	return states
}

// batchView reshapes a batch to the per-sample shape the next layer
// expects. Row-major layout makes the flatten between spatial and dense
// layers a zero-copy view.
func batchView(batch *tensor.Tensor, perSample tensor.Shape) *tensor.Tensor {
	want := append(tensor.Shape{batch.Shape()[0]}, perSample...)
	if batch.Shape().Equal(want) {
		return batch
	}
	return batch.Reshape(want)
}

// Outputs runs the inference path, discarding intermediate state.
func (n *Network) Outputs(dev *device.Device, inputs *tensor.Tensor) *tensor.Tensor {
	states := n.ForwardPropagate(dev, inputs)
	return states[len(states)-1].Activations
}

// Backpropagate chains every layer's backward pass in reverse order,
// seeding the last layer with outputDelta (the loss gradient with respect
// to the network outputs), and returns the flat parameter gradient.
func (n *Network) Backpropagate(dev *device.Device, batch *tensor.Tensor, states []Forwarded, outputDelta *tensor.Tensor) []float64 {
	if len(states) != len(n.layers) {
		panic(fmt.Sprintf("nn: backpropagation got %d layer states for %d layers", len(states), len(n.layers)))
	}

	gradient := make([]float64, n.ParameterCount())
	offsets := make([]int, len(n.layers))
	offset := 0
	for i, l := range n.layers {
		offsets[i] = offset
		offset += l.ParameterCount()
	}

	upstream := outputDelta
	for i := len(n.layers) - 1; i >= 0; i-- {
		l := n.layers[i]
		inputs := batch
		if i > 0 {
			inputs = states[i-1].Activations
		}
		inputs = batchView(inputs, l.InputShape())
		downstream := tensor.New(inputs.Shape())
		l.Backward(dev, inputs, &states[i], batchView(upstream, l.OutputShape()), downstream, gradient[offsets[i]:offsets[i]+l.ParameterCount()])
		upstream = downstream
	}
	return gradient
}
