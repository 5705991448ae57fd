package optim

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/loss"
)

// LevenbergMarquardt interpolates between Gauss-Newton and gradient
// descent steps on sum-of-squared-residual losses. The damping factor
// grows when a step is rejected and shrinks when it is accepted.
type LevenbergMarquardt struct {
	Criteria Criteria
	Stop     *StopFlag

	// Damping tunes λ; zeroed fields take the defaults below.
	InitialDamping float64
	DampingFactor  float64
	MinimumDamping float64
	MaximumDamping float64
}

const (
	defaultInitialDamping = 1e-3
	defaultDampingFactor  = 10.0
	defaultMinimumDamping = 1e-9
	defaultMaximumDamping = 1e9
)

func (lm *LevenbergMarquardt) Kind() Kind { return LevenbergMarquardtKind }

func (lm *LevenbergMarquardt) Perform(dev *device.Device, ix *loss.Index) (*TrainingResults, error) {
	if !ix.Method().SumSquaredFamily() {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration,
			"optim: LevenbergMarquardt requires a sum-squared-family loss, got %s", ix.Method())
	}
	if err := ix.Check(data.Training); err != nil {
		return nil, err
	}

	network := ix.Network()
	hasSelection := hasSelectionSamples(ix)
	state := newEpochState(lm.Criteria, lm.Stop, hasSelection)

	damping := lm.InitialDamping
	if damping <= 0 {
		damping = defaultInitialDamping
	}
	factor := lm.DampingFactor
	if factor <= 1 {
		factor = defaultDampingFactor
	}
	minDamping := lm.MinimumDamping
	if minDamping <= 0 {
		minDamping = defaultMinimumDamping
	}
	maxDamping := lm.MaximumDamping
	if maxDamping <= 0 {
		maxDamping = defaultMaximumDamping
	}

	lastAccepted := network.Parameters()
	failures := 0

	for {
		residuals, jacobian, err := ix.ErrorTerms(dev, data.Training)
		if err != nil {
			return nil, err
		}
		lossValue := mat.Dot(residuals, residuals) + regularizationOf(dev, ix, residuals)

		// Gradient of rᵀr is 2 Jᵀr.
		n := network.ParameterCount()
		grad := mat.NewVecDense(n, nil)
		grad.MulVec(jacobian.T(), residuals)
		grad.ScaleVec(2, grad)

		if !finite(lossValue) || !allFinite(grad.RawVector().Data) {
			failures++
			if failures >= 2 {
				return state.finish(ix, NumericalFailure), nil
			}
			network.SetParameters(lastAccepted)
			damping = math.Min(damping*factor, maxDamping)
			continue
		}
		failures = 0
		lastAccepted = network.Parameters()

		gradNorm := norm(grad.RawVector().Data)
		state.record(lossValue, selectionLoss(dev, ix, hasSelection), gradNorm)
		if tag, done := state.shouldStop(lossValue, gradNorm); done {
			return state.finish(ix, tag), nil
		}

		// Hessian approximation JᵀJ, shared across damping retries.
		var approx mat.Dense
		approx.Mul(jacobian.T(), jacobian)

		accepted := false
		for damping <= maxDamping {
			delta, ok := solveDamped(&approx, jacobian, residuals, damping)
			if !ok {
				damping = math.Min(damping*factor, maxDamping)
				if damping >= maxDamping {
					break
				}
				continue
			}
			candidate := addScaled(lastAccepted, delta, 1)
			network.SetParameters(candidate)
			candidateLoss := ix.Loss(dev, data.Training)
			if finite(candidateLoss) && candidateLoss < lossValue {
				damping = math.Max(damping/factor, minDamping)
				accepted = true
				break
			}
			network.SetParameters(lastAccepted)
			if damping >= maxDamping {
				break
			}
			damping = math.Min(damping*factor, maxDamping)
		}
		if !accepted {
			// Even maximal damping cannot improve the loss; the run has
			// converged to a minimum of the quadratic model.
			return state.finish(ix, GradientNormGoalReached), nil
		}
	}
}

// solveDamped solves (JᵀJ + λI)Δ = -Jᵀr.
func solveDamped(approx *mat.Dense, jacobian *mat.Dense, residuals *mat.VecDense, damping float64) ([]float64, bool) {
	n, _ := approx.Dims()
	damped := mat.NewDense(n, n, nil)
	damped.CloneFrom(approx)
	for i := 0; i < n; i++ {
		damped.Set(i, i, damped.At(i, i)+damping)
	}

	rhs := mat.NewVecDense(n, nil)
	rhs.MulVec(jacobian.T(), residuals)
	rhs.ScaleVec(-1, rhs)

	delta := mat.NewVecDense(n, nil)
	if err := delta.SolveVec(damped, rhs); err != nil {
		return nil, false
	}
	if !allFinite(delta.RawVector().Data) {
		return nil, false
	}
	return delta.RawVector().Data, true
}

// regularizationOf re-adds the penalty the residual form leaves out so
// the recorded losses match Loss.
func regularizationOf(dev *device.Device, ix *loss.Index, residuals *mat.VecDense) float64 {
	kind, weight := ix.Regularization()
	if kind == loss.NoRegularization || weight == 0 {
		return 0
	}
	return ix.Loss(dev, data.Training) - mat.Dot(residuals, residuals)
}
