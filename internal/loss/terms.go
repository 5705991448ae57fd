package loss

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// ErrorTerms evaluates the residual vector r and its Jacobian J with
// respect to the network parameters, such that the error term equals
// rᵀr. Only the sum-squared family has this shape; other methods return
// ErrInvalidConfiguration. The regularization penalty is not part of the
// residuals.
func (ix *Index) ErrorTerms(dev *device.Device, use data.SampleUse) (*mat.VecDense, *mat.Dense, error) {
	if !ix.method.SumSquaredFamily() {
		return nil, nil, errors.Wrapf(fault.ErrInvalidConfiguration,
			"loss: %s has no sum-of-squared-terms form", ix.method)
	}

	inputs := ix.set.Inputs(use)
	targets := ix.set.Targets(use)
	samples := inputs.Shape()[0]
	outputs := ix.network.OutputsCount()
	params := ix.network.ParameterCount()

	residuals := mat.NewVecDense(samples*outputs, nil)
	jacobian := mat.NewDense(samples*outputs, params, nil)

	oneHot := tensor.New(tensor.Shape{1, outputs})
	for i := 0; i < samples; i++ {
		sample := inputs.RowRange(i, i+1)
		states := ix.network.ForwardPropagate(dev, sample)
		predicted := states[len(states)-1].Activations.Row(0)
		target := targets.Row(i)

		for o := 0; o < outputs; o++ {
			scale := ix.termScale(use, samples, target[o])
			residuals.SetVec(i*outputs+o, scale*(predicted[o]-target[o]))

			oneHot.Fill(0)
			oneHot.Set(scale, 0, o)
			row := ix.network.Backpropagate(dev, sample, states, oneHot)
			jacobian.SetRow(i*outputs+o, row)
		}
	}
	return residuals, jacobian, nil
}

// termScale folds the method's scaling into each residual so the plain
// sum of squared residuals reproduces the error term.
func (ix *Index) termScale(use data.SampleUse, samples int, target float64) float64 {
	switch ix.method {
	case MeanSquaredError:
		return 1 / math.Sqrt(float64(samples))
	case NormalizedSquaredError:
		return 1 / math.Sqrt(ix.normalizationCoefficient(use))
	case WeightedSquaredError:
		positives, negatives := ix.ClassWeights()
		if target > 0.5 {
			return math.Sqrt(positives)
		}
		return math.Sqrt(negatives)
	}
	return 1
}
