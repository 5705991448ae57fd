package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// PrincipalComponents projects inputs onto a fixed, precomputed basis:
// y = (x - means) · B with B of shape [inputs, components]. The basis is
// not trained; the layer has no parameters.
type PrincipalComponents struct {
	means *tensor.Tensor // [inputs]
	basis *tensor.Tensor // [inputs, components]
}

// NewPrincipalComponents creates the projection layer from per-feature
// means and a column-orthonormal basis.
func NewPrincipalComponents(means, basis *tensor.Tensor) *PrincipalComponents {
	if means.Rank() != 1 || basis.Rank() != 2 {
		panic(fmt.Sprintf("nn: PrincipalComponents wants means rank 1 and basis rank 2, got %v and %v", means.Shape(), basis.Shape()))
	}
	if means.Shape()[0] != basis.Shape()[0] {
		panic(fmt.Sprintf("nn: PrincipalComponents means %v do not match basis %v", means.Shape(), basis.Shape()))
	}
	return &PrincipalComponents{means: means, basis: basis}
}

// ComputePrincipalComponents derives means and a basis with the leading
// components right singular vectors of the centered sample matrix.
func ComputePrincipalComponents(values *tensor.Tensor, components int) (means, basis *tensor.Tensor, err error) {
	if values.Rank() != 2 {
		return nil, nil, fmt.Errorf("nn: principal components want a rank-2 sample matrix, got %v", values.Shape())
	}
	rows, cols := values.Shape()[0], values.Shape()[1]
	if components < 1 || components > cols {
		return nil, nil, fmt.Errorf("nn: %d principal components out of %d variables", components, cols)
	}

	means = values.ColumnMeans()
	centered := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := values.Row(i)
		for j := 0; j < cols; j++ {
			centered.Set(i, j, row[j]-means.At(j))
		}
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return nil, nil, fmt.Errorf("nn: principal components SVD did not converge")
	}
	var v mat.Dense
	svd.VTo(&v)

	basis = tensor.New(tensor.Shape{cols, components})
	for i := 0; i < cols; i++ {
		row := basis.Row(i)
		for j := 0; j < components; j++ {
			row[j] = v.At(i, j)
		}
	}
	return means, basis, nil
}

func (l *PrincipalComponents) Kind() Kind { return PrincipalComponentsKind }

func (l *PrincipalComponents) InputShape() tensor.Shape {
	return tensor.Shape{l.basis.Shape()[0]}
}

func (l *PrincipalComponents) OutputShape() tensor.Shape {
	return tensor.Shape{l.basis.Shape()[1]}
}

func (l *PrincipalComponents) ParameterCount() int        { return 0 }
func (l *PrincipalComponents) PackParameters([]float64)   {}
func (l *PrincipalComponents) UnpackParameters([]float64) {}

func (l *PrincipalComponents) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(PrincipalComponentsKind, inputs, l.InputShape())
	rows := inputs.Shape()[0]
	cols := l.basis.Shape()[0]

	centered := tensor.New(inputs.Shape())
	dev.For(rows, func(i int) {
		src := inputs.Row(i)
		dst := centered.Row(i)
		for j := 0; j < cols; j++ {
			dst[j] = src[j] - l.means.At(j)
		}
	})

	out := centered.MatMul(dev, l.basis)
	fwd.Combinations = out
	fwd.Activations = out
}

func (l *PrincipalComponents) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(PrincipalComponentsKind, len(paramGrad), 0)
	downstream.CopyFrom(upstream.MatMulBT(dev, l.basis))
}
