package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// ProbabilisticMethod selects how the probabilistic layer turns its
// combinations into probabilities.
type ProbabilisticMethod int

const (
	// SoftmaxProbability normalizes a multiclass logit vector so each row
	// sums to one.
	SoftmaxProbability ProbabilisticMethod = iota
	// LogisticProbability squashes each output independently; the usual
	// choice for binary targets.
	LogisticProbability
	// CompetitiveProbability emits a one-hot vector at the row argmax. It
	// is flat almost everywhere, so it contributes no gradient.
	CompetitiveProbability
)

var probabilisticMethodNames = map[ProbabilisticMethod]string{
	SoftmaxProbability:     "Softmax",
	LogisticProbability:    "Logistic",
	CompetitiveProbability: "Competitive",
}

func (m ProbabilisticMethod) String() string {
	if name, ok := probabilisticMethodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ProbabilisticMethod(%d)", int(m))
}

// ParseProbabilisticMethod maps a name back to its method.
func ParseProbabilisticMethod(name string) (ProbabilisticMethod, bool) {
	for m, n := range probabilisticMethodNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// Probabilistic is the output layer of a classification network: a linear
// combination followed by a probability normalization. It stores the
// decision threshold consumers use to binarize a logistic output.
type Probabilistic struct {
	inputs            int
	neurons           int
	biases            *tensor.Tensor // [neurons]
	weights           *tensor.Tensor // [inputs, neurons]
	method            ProbabilisticMethod
	decisionThreshold float64
}

// NewProbabilistic creates a probabilistic layer. Single-output layers
// default to the Logistic method, wider ones to Softmax. The decision
// threshold defaults to 0.5.
func NewProbabilistic(inputs, neurons int, rng *rand.Rand) *Probabilistic {
	method := SoftmaxProbability
	if neurons == 1 {
		method = LogisticProbability
	}
	limit := math.Sqrt(6.0 / float64(inputs+neurons))
	return &Probabilistic{
		inputs:            inputs,
		neurons:           neurons,
		biases:            tensor.New(tensor.Shape{neurons}),
		weights:           tensor.RandUniform(tensor.Shape{inputs, neurons}, -limit, limit, rng),
		method:            method,
		decisionThreshold: 0.5,
	}
}

// Method returns the probability normalization in use.
func (l *Probabilistic) Method() ProbabilisticMethod { return l.method }

// SetMethod changes the probability normalization.
func (l *Probabilistic) SetMethod(m ProbabilisticMethod) { l.method = m }

// DecisionThreshold returns the stored decision threshold.
func (l *Probabilistic) DecisionThreshold() float64 { return l.decisionThreshold }

// SetDecisionThreshold stores a new decision threshold.
func (l *Probabilistic) SetDecisionThreshold(t float64) {
	if t < 0 || t > 1 {
		panic(fmt.Sprintf("nn: decision threshold %g outside [0,1]", t))
	}
	l.decisionThreshold = t
}

// Biases returns the bias vector.
func (l *Probabilistic) Biases() *tensor.Tensor { return l.biases }

// Weights returns the synaptic weight matrix.
func (l *Probabilistic) Weights() *tensor.Tensor { return l.weights }

func (l *Probabilistic) Kind() Kind                { return ProbabilisticKind }
func (l *Probabilistic) InputShape() tensor.Shape  { return tensor.Shape{l.inputs} }
func (l *Probabilistic) OutputShape() tensor.Shape { return tensor.Shape{l.neurons} }

func (l *Probabilistic) ParameterCount() int {
	return l.neurons + l.inputs*l.neurons
}

func (l *Probabilistic) PackParameters(dst []float64) {
	checkParamLen(ProbabilisticKind, len(dst), l.ParameterCount())
	copy(dst[:l.neurons], l.biases.Data())
	copy(dst[l.neurons:], l.weights.Data())
}

func (l *Probabilistic) UnpackParameters(src []float64) {
	checkParamLen(ProbabilisticKind, len(src), l.ParameterCount())
	copy(l.biases.Data(), src[:l.neurons])
	copy(l.weights.Data(), src[l.neurons:])
}

func (l *Probabilistic) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(ProbabilisticKind, inputs, l.InputShape())

	combinations := inputs.MatMul(dev, l.weights).AddRowVector(dev, l.biases)
	rows := combinations.Shape()[0]
	activations := tensor.New(combinations.Shape())

	switch l.method {
	case LogisticProbability:
		dev.For(rows, func(i int) {
			src := combinations.Row(i)
			dst := activations.Row(i)
			for j := range src {
				dst[j] = 1 / (1 + math.Exp(-src[j]))
			}
		})
	case SoftmaxProbability:
		dev.For(rows, func(i int) {
			softmaxRow(combinations.Row(i), activations.Row(i))
		})
	case CompetitiveProbability:
		dev.For(rows, func(i int) {
			src := combinations.Row(i)
			dst := activations.Row(i)
			best := 0
			for j := 1; j < len(src); j++ {
				if src[j] > src[best] {
					best = j
				}
			}
			for j := range dst {
				dst[j] = 0
			}
			dst[best] = 1
		})
	default:
		panic(fmt.Sprintf("nn: unknown probabilistic method %d", int(l.method)))
	}

	fwd.Combinations = combinations
	fwd.Activations = activations
}

// softmaxRow computes a numerically stable softmax with the max-shift
// trick.
func softmaxRow(src, dst []float64) {
	maxVal := src[0]
	for _, x := range src[1:] {
		if x > maxVal {
			maxVal = x
		}
	}
	sum := 0.0
	for j, x := range src {
		e := math.Exp(x - maxVal)
		dst[j] = e
		sum += e
	}
	for j := range dst {
		dst[j] /= sum
	}
}

func (l *Probabilistic) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(ProbabilisticKind, len(paramGrad), l.ParameterCount())

	rows := upstream.Shape()[0]
	delta := tensor.New(upstream.Shape())

	switch l.method {
	case LogisticProbability:
		dev.For(rows, func(i int) {
			up := upstream.Row(i)
			act := fwd.Activations.Row(i)
			dst := delta.Row(i)
			for j := range up {
				dst[j] = up[j] * act[j] * (1 - act[j])
			}
		})
	case SoftmaxProbability:
		// Full softmax Jacobian contraction per sample:
		// delta_j = y_j * (up_j - Σ_k up_k y_k).
		dev.For(rows, func(i int) {
			up := upstream.Row(i)
			act := fwd.Activations.Row(i)
			dst := delta.Row(i)
			dot := 0.0
			for k := range up {
				dot += up[k] * act[k]
			}
			for j := range up {
				dst[j] = act[j] * (up[j] - dot)
			}
		})
	case CompetitiveProbability:
		// Flat almost everywhere; delta stays zero.
	default:
		panic(fmt.Sprintf("nn: unknown probabilistic method %d", int(l.method)))
	}

	copy(paramGrad[:l.neurons], delta.ColumnSums().Data())
	copy(paramGrad[l.neurons:], inputs.MatMulAT(dev, delta).Data())
	downstream.CopyFrom(delta.MatMulBT(dev, l.weights))
}
