package nn

import (
	"fmt"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// Kind tags the layer variants.
type Kind int

const (
	ScalingKind Kind = iota
	UnscalingKind
	BoundingKind
	PerceptronKind
	ProbabilisticKind
	RecurrentKind
	LongShortTermMemoryKind
	ConvolutionalKind
	PoolingKind
	PrincipalComponentsKind
)

var kindNames = map[Kind]string{
	ScalingKind:             "Scaling",
	UnscalingKind:           "Unscaling",
	BoundingKind:            "Bounding",
	PerceptronKind:          "Perceptron",
	ProbabilisticKind:       "Probabilistic",
	RecurrentKind:           "Recurrent",
	LongShortTermMemoryKind: "LongShortTermMemory",
	ConvolutionalKind:       "Convolutional",
	PoolingKind:             "Pooling",
	PrincipalComponentsKind: "PrincipalComponents",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a name back to its Kind. Returns false for unknown names.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Forwarded stores what one layer produced during a forward pass: the
// pre-activation combinations and the post-activation activations for a
// whole batch. Back-propagation replays it.
type Forwarded struct {
	Combinations *tensor.Tensor
	Activations  *tensor.Tensor

	// scratch holds layer-private per-step state (recurrent and LSTM
	// kinds record gate values here for their backward pass).
	scratch any
}

// Layer is the shared contract of the layer variants.
//
// Forward is pure with respect to parameters; Backward converts the
// gradient at this layer's activations into the gradient at its inputs
// and at its parameters. Parameter packing order is stable: it defines
// the layer's slice of the network's flat parameter vector.
type Layer interface {
	// Kind returns the variant tag.
	Kind() Kind

	// InputShape returns the per-sample input shape (no batch dimension).
	InputShape() tensor.Shape

	// OutputShape returns the per-sample output shape.
	OutputShape() tensor.Shape

	// ParameterCount returns the number of trainable parameters. It is a
	// pure function of the layer's shape.
	ParameterCount() int

	// PackParameters writes the parameters into dst, which must have
	// length ParameterCount().
	PackParameters(dst []float64)

	// UnpackParameters reads the parameters from src, which must have
	// length ParameterCount().
	UnpackParameters(src []float64)

	// Forward computes combinations and activations for a batch and
	// stores them in fwd.
	Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded)

	// Backward consumes the loss gradient with respect to this layer's
	// activations (upstream) and accumulates the gradient with respect to
	// its inputs into downstream and with respect to its parameters into
	// paramGrad. downstream has the batch input shape; paramGrad has
	// length ParameterCount().
	Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64)
}

// InputsCount returns the flattened per-sample input size of a layer.
func InputsCount(l Layer) int { return l.InputShape().NumElements() }

// NeuronsCount returns the flattened per-sample output size of a layer.
func NeuronsCount(l Layer) int { return l.OutputShape().NumElements() }

func checkBatchShape(kind Kind, inputs *tensor.Tensor, perSample tensor.Shape) {
	got := inputs.Shape()
	if got.Rank() != perSample.Rank()+1 {
		panic(fmt.Sprintf("nn: %s layer expects batch rank %d, got shape %v", kind, perSample.Rank()+1, got))
	}
	for i, dim := range perSample {
		if got[i+1] != dim {
			panic(fmt.Sprintf("nn: %s layer expects per-sample shape %v, got batch shape %v", kind, perSample, got))
		}
	}
}

func checkParamLen(kind Kind, got, want int) {
	if got != want {
		panic(fmt.Sprintf("nn: %s layer parameter slice has %d elements, want %d", kind, got, want))
	}
}
