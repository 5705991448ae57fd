package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineSearchMinimizesQuadratic(t *testing.T) {
	phi := func(eta float64) float64 { return (eta - 0.3) * (eta - 0.3) }

	eta, value := DefaultLineSearch().Minimize(phi, phi(0))
	assert.InDelta(t, 0.3, eta, 1e-3)
	assert.Less(t, value, phi(0))
}

func TestLineSearchShrinksPastOvershoot(t *testing.T) {
	// The minimum sits far below the maximum rate; bracketing must halve
	// its way down before refining.
	phi := func(eta float64) float64 { return (eta - 0.01) * (eta - 0.01) }

	eta, value := DefaultLineSearch().Minimize(phi, phi(0))
	assert.InDelta(t, 0.01, eta, 1e-3)
	assert.Less(t, value, phi(0))
}

func TestLineSearchFallbackOnNoImprovement(t *testing.T) {
	phi := func(eta float64) float64 { return 1 + eta }

	eta, _ := DefaultLineSearch().Minimize(phi, 1)
	assert.Equal(t, DefaultLineSearch().FallbackRate, eta)
}

func TestLineSearchFallbackOnNonFinite(t *testing.T) {
	phi := func(eta float64) float64 {
		if eta > 1e-3 {
			return math.Inf(1)
		}
		return 1 + eta
	}

	eta, _ := DefaultLineSearch().Minimize(phi, 1)
	assert.Equal(t, DefaultLineSearch().FallbackRate, eta)
}

func TestLineSearchDefaults(t *testing.T) {
	filled := LineSearch{}.withDefaults()
	assert.Equal(t, DefaultLineSearch(), filled)

	custom := LineSearch{TrainingRateMax: 2}.withDefaults()
	assert.Equal(t, 2.0, custom.TrainingRateMax)
	assert.Equal(t, DefaultLineSearch().RateTolerance, custom.RateTolerance)
}
