package optim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/loss"
)

// InverseHessianUpdate selects the quasi-Newton approximation formula.
type InverseHessianUpdate int

const (
	BFGS InverseHessianUpdate = iota
	DFP
)

var inverseHessianNames = map[InverseHessianUpdate]string{
	BFGS: "BFGS",
	DFP:  "DFP",
}

func (u InverseHessianUpdate) String() string {
	if name, ok := inverseHessianNames[u]; ok {
		return name
	}
	return fmt.Sprintf("InverseHessianUpdate(%d)", int(u))
}

// ParseInverseHessianUpdate resolves an update formula name.
func ParseInverseHessianUpdate(name string) (InverseHessianUpdate, bool) {
	for u, n := range inverseHessianNames {
		if n == name {
			return u, true
		}
	}
	return 0, false
}

// QuasiNewton maintains an inverse-Hessian approximation and searches
// along -H·g. Non-positive curvature resets the approximation to the
// identity.
type QuasiNewton struct {
	Criteria   Criteria
	LineSearch LineSearch
	Stop       *StopFlag

	Update InverseHessianUpdate
}

func (qn *QuasiNewton) Kind() Kind { return QuasiNewtonKind }

func (qn *QuasiNewton) Perform(dev *device.Device, ix *loss.Index) (*TrainingResults, error) {
	model := &quasiNewtonModel{update: qn.Update, ix: ix}
	return runFirstOrder(dev, ix, qn.Criteria, qn.LineSearch, 0, true, qn.Stop, model)
}

type quasiNewtonModel struct {
	update InverseHessianUpdate
	ix     *loss.Index

	inverse    *mat.Dense
	prevParams []float64
	prevGrad   []float64
}

func (m *quasiNewtonModel) direction(grad []float64) []float64 {
	n := len(grad)
	params := m.ix.Network().Parameters()

	if m.inverse == nil {
		m.inverse = identity(n)
	} else {
		s := mat.NewVecDense(n, sub(params, m.prevParams))
		y := mat.NewVecDense(n, sub(grad, m.prevGrad))
		curvature := mat.Dot(s, y)
		if curvature <= 0 {
			m.inverse = identity(n)
		} else {
			m.applyUpdate(s, y, curvature)
		}
	}
	m.prevParams = params
	m.prevGrad = append([]float64(nil), grad...)

	g := mat.NewVecDense(n, append([]float64(nil), grad...))
	dir := mat.NewVecDense(n, nil)
	dir.MulVec(m.inverse, g)
	dir.ScaleVec(-1, dir)
	return dir.RawVector().Data
}

func (m *quasiNewtonModel) applyUpdate(s, y *mat.VecDense, curvature float64) {
	n := s.Len()
	switch m.update {
	case BFGS:
		// H' = (I - s yᵀ/ρ) H (I - y sᵀ/ρ) + s sᵀ/ρ, ρ = sᵀy.
		left := identity(n)
		var outer mat.Dense
		outer.Outer(1/curvature, s, y)
		left.Sub(left, &outer)

		var tmp, updated mat.Dense
		tmp.Mul(left, m.inverse)
		updated.Mul(&tmp, left.T())

		var ss mat.Dense
		ss.Outer(1/curvature, s, s)
		updated.Add(&updated, &ss)
		m.inverse.CloneFrom(&updated)

	case DFP:
		// H' = H + s sᵀ/ρ - (H y)(H y)ᵀ/(yᵀ H y).
		hy := mat.NewVecDense(n, nil)
		hy.MulVec(m.inverse, y)
		yhy := mat.Dot(y, hy)
		if yhy <= 0 {
			m.inverse = identity(n)
			return
		}
		var ss, hyhy mat.Dense
		ss.Outer(1/curvature, s, s)
		hyhy.Outer(1/yhy, hy, hy)
		m.inverse.Add(m.inverse, &ss)
		m.inverse.Sub(m.inverse, &hyhy)
	}
}

func (m *quasiNewtonModel) reset() {
	m.inverse = nil
	m.prevParams = nil
	m.prevGrad = nil
}

func identity(n int) *mat.Dense {
	id := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		id.Set(i, i, 1)
	}
	return id
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
