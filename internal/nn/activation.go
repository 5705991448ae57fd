// Package nn implements the layered neural-network model: the layer
// family, the network that composes layers, and whole-network forward and
// backward propagation.
//
// Layers are a tagged variant behind the Layer interface, not a class
// hierarchy: the network is a flat slice of layers and owns nothing but
// the ordering. Every layer owns its parameter blocks and exposes them
// through the flat pack/unpack contract.
package nn

import (
	"fmt"
	"math"
)

// Activation selects the element-wise nonlinearity applied after a layer's
// linear combination.
type Activation int

const (
	Threshold Activation = iota
	SymmetricThreshold
	Logistic
	HyperbolicTangent
	Linear
	RectifiedLinear
	ScaledExponentialLinear
	SoftPlus
	SoftSign
	HardSigmoid
	ExponentialLinear
)

// selu constants from Klambauer et al. (2017).
const (
	seluLambda = 1.0507009873554805
	seluAlpha  = 1.6732632423543772
)

var activationNames = map[Activation]string{
	Threshold:               "Threshold",
	SymmetricThreshold:      "SymmetricThreshold",
	Logistic:                "Logistic",
	HyperbolicTangent:       "HyperbolicTangent",
	Linear:                  "Linear",
	RectifiedLinear:         "RectifiedLinear",
	ScaledExponentialLinear: "ScaledExponentialLinear",
	SoftPlus:                "SoftPlus",
	SoftSign:                "SoftSign",
	HardSigmoid:             "HardSigmoid",
	ExponentialLinear:       "ExponentialLinear",
}

func (a Activation) String() string {
	if name, ok := activationNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Activation(%d)", int(a))
}

// ParseActivation maps a name back to its Activation. Returns false for
// unknown names.
func ParseActivation(name string) (Activation, bool) {
	for a, n := range activationNames {
		if n == name {
			return a, true
		}
	}
	return 0, false
}

// Apply evaluates the activation at combination x.
func (a Activation) Apply(x float64) float64 {
	switch a {
	case Threshold:
		if x < 0 {
			return 0
		}
		return 1
	case SymmetricThreshold:
		if x < 0 {
			return -1
		}
		return 1
	case Logistic:
		return 1 / (1 + math.Exp(-x))
	case HyperbolicTangent:
		return math.Tanh(x)
	case Linear:
		return x
	case RectifiedLinear:
		if x < 0 {
			return 0
		}
		return x
	case ScaledExponentialLinear:
		if x < 0 {
			return seluLambda * seluAlpha * (math.Exp(x) - 1)
		}
		return seluLambda * x
	case SoftPlus:
		return math.Log1p(math.Exp(x))
	case SoftSign:
		return x / (1 + math.Abs(x))
	case HardSigmoid:
		if x < -2.5 {
			return 0
		}
		if x > 2.5 {
			return 1
		}
		return 0.2*x + 0.5
	case ExponentialLinear:
		if x < 0 {
			return math.Exp(x) - 1
		}
		return x
	}
	panic(fmt.Sprintf("nn: unknown activation %d", int(a)))
}

// Derivative evaluates the activation's derivative at combination x. The
// threshold activations are flat almost everywhere and report zero.
func (a Activation) Derivative(x float64) float64 {
	switch a {
	case Threshold, SymmetricThreshold:
		return 0
	case Logistic:
		y := 1 / (1 + math.Exp(-x))
		return y * (1 - y)
	case HyperbolicTangent:
		y := math.Tanh(x)
		return 1 - y*y
	case Linear:
		return 1
	case RectifiedLinear:
		if x < 0 {
			return 0
		}
		return 1
	case ScaledExponentialLinear:
		if x < 0 {
			return seluLambda * seluAlpha * math.Exp(x)
		}
		return seluLambda
	case SoftPlus:
		return 1 / (1 + math.Exp(-x))
	case SoftSign:
		d := 1 + math.Abs(x)
		return 1 / (d * d)
	case HardSigmoid:
		if x < -2.5 || x > 2.5 {
			return 0
		}
		return 0.2
	case ExponentialLinear:
		if x < 0 {
			return math.Exp(x)
		}
		return 1
	}
	panic(fmt.Sprintf("nn: unknown activation %d", int(a)))
}
