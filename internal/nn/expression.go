package nn

import (
	"fmt"
	"strings"
)

// Expression writes the network's input-to-output mapping as one
// assignment per layer output, suitable for deploying a trained model
// without this library. Variable names come from the input and output
// name tables; intermediate activations are named by layer position.
//
// Recurrent, LSTM, convolutional and pooling layers carry state or
// spatial indexing that does not reduce to one scalar assignment; they
// are reported as such.
func (n *Network) Expression() string {
	if n.Empty() {
		return ""
	}

	var b strings.Builder
	names := append([]string(nil), n.inputNames...)

	for i, l := range n.layers {
		outNames := make([]string, NeuronsCount(l))
		last := i == len(n.layers)-1
		for j := range outNames {
			if last && j < len(n.outputNames) {
				outNames[j] = n.outputNames[j]
			} else {
				outNames[j] = fmt.Sprintf("y_%d_%d", i+1, j+1)
			}
		}

		switch layer := l.(type) {
		case *Scaling:
			for j, d := range layer.Descriptives() {
				a, c := scaleFactors(layer.Method(), d)
				fmt.Fprintf(&b, "%s = %.6g*%s %+.6g;\n", outNames[j], a, name(names, j), c)
			}
		case *Unscaling:
			for j, d := range layer.Descriptives() {
				a, c := scaleFactors(layer.Method(), d)
				fmt.Fprintf(&b, "%s = (%s %+.6g)/%.6g;\n", outNames[j], name(names, j), -c, a)
			}
		case *Bounding:
			for j := range outNames {
				lower, upper := layer.Bounds(j)
				fmt.Fprintf(&b, "%s = min(max(%s, %.6g), %.6g);\n", outNames[j], name(names, j), lower, upper)
			}
		case *Perceptron:
			writeDenseExpression(&b, outNames, names, layer.Activation().String(), layer.biases.Data(), layer.weights.Data())
		case *Probabilistic:
			writeDenseExpression(&b, outNames, names, layer.Method().String(), layer.biases.Data(), layer.weights.Data())
		case *PrincipalComponents:
			inputs := layer.basis.Shape()[0]
			for j := range outNames {
				terms := make([]string, 0, inputs)
				for k := 0; k < inputs; k++ {
					terms = append(terms, fmt.Sprintf("%+.6g*(%s %+.6g)", layer.basis.At(k, j), name(names, k), -layer.means.At(k)))
				}
				fmt.Fprintf(&b, "%s = %s;\n", outNames[j], strings.Join(terms, " "))
			}
		default:
			fmt.Fprintf(&b, "// %s layer has no closed-form expression\n", l.Kind())
		}

		names = outNames
	}
	return b.String()
}

func writeDenseExpression(b *strings.Builder, outNames, inNames []string, fn string, biases, weights []float64) {
	neurons := len(outNames)
	inputs := len(weights) / neurons
	for j := 0; j < neurons; j++ {
		terms := make([]string, 0, inputs+1)
		terms = append(terms, fmt.Sprintf("%.6g", biases[j]))
		for k := 0; k < inputs; k++ {
			terms = append(terms, fmt.Sprintf("%+.6g*%s", weights[k*neurons+j], name(inNames, k)))
		}
		fmt.Fprintf(b, "%s = %s(%s);\n", outNames[j], fn, strings.Join(terms, " "))
	}
}

func name(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("x_%d", i+1)
}
