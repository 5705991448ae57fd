package optim

import "math"

// LineSearch tunes the one-dimensional minimization of the loss along a
// search direction. Rates are bracketed in [0, TrainingRateMax] and
// refined at most MaxBracketingIterations times; a failed bracket falls
// back to FallbackRate.
type LineSearch struct {
	TrainingRateMax         float64
	RateTolerance           float64
	MaxBracketingIterations int
	FallbackRate            float64
}

// DefaultLineSearch returns the tuning used when a config leaves the
// line search zeroed.
func DefaultLineSearch() LineSearch {
	return LineSearch{
		TrainingRateMax:         1.0,
		RateTolerance:           1e-6,
		MaxBracketingIterations: 32,
		FallbackRate:            1e-3,
	}
}

func (ls LineSearch) withDefaults() LineSearch {
	d := DefaultLineSearch()
	if ls.TrainingRateMax <= 0 {
		ls.TrainingRateMax = d.TrainingRateMax
	}
	if ls.RateTolerance <= 0 {
		ls.RateTolerance = d.RateTolerance
	}
	if ls.MaxBracketingIterations <= 0 {
		ls.MaxBracketingIterations = d.MaxBracketingIterations
	}
	if ls.FallbackRate <= 0 {
		ls.FallbackRate = d.FallbackRate
	}
	return ls
}

const goldenRatio = 0.6180339887498949

// Minimize finds a training rate in [0, TrainingRateMax] that
// approximately minimizes phi. phi(0) is the current loss, supplied so
// the bracket test does not re-evaluate it. Returns the chosen rate and
// its loss; a failed bracket returns the fallback rate.
func (ls LineSearch) Minimize(phi func(eta float64) float64, lossAtZero float64) (float64, float64) {
	ls = ls.withDefaults()

	// Bracket by geometric shrink from the maximum rate until the loss
	// improves on phi(0).
	b := ls.TrainingRateMax
	fb := phi(b)
	bracketed := false
	for i := 0; i < ls.MaxBracketingIterations; i++ {
		if finite(fb) && fb < lossAtZero {
			bracketed = true
			break
		}
		b *= 0.5
		if b < ls.RateTolerance {
			break
		}
		fb = phi(b)
	}
	if !bracketed {
		fallback := math.Min(ls.FallbackRate, ls.TrainingRateMax)
		return fallback, phi(fallback)
	}

	// Golden-section refinement on [0, b].
	lo, hi := 0.0, b
	x1 := hi - goldenRatio*(hi-lo)
	x2 := lo + goldenRatio*(hi-lo)
	f1, f2 := phi(x1), phi(x2)
	for i := 0; i < ls.MaxBracketingIterations && hi-lo > ls.RateTolerance; i++ {
		if f1 < f2 {
			hi, x2, f2 = x2, x1, f1
			x1 = hi - goldenRatio*(hi-lo)
			f1 = phi(x1)
		} else {
			lo, x1, f1 = x1, x2, f2
			x2 = lo + goldenRatio*(hi-lo)
			f2 = phi(x2)
		}
	}

	eta, value := x1, f1
	if f2 < f1 {
		eta, value = x2, f2
	}
	if !finite(value) || value >= lossAtZero {
		fallback := math.Min(ls.FallbackRate, ls.TrainingRateMax)
		return fallback, phi(fallback)
	}
	return eta, value
}
