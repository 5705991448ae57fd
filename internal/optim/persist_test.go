package optim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlgorithmPersistenceRoundTrip(t *testing.T) {
	algorithms := []Algorithm{
		&GradientDescent{
			Criteria:     Criteria{LossGoal: 0.01, MaxEpochs: 50, MaxTime: 2 * time.Second},
			LineSearch:   LineSearch{TrainingRateMax: 2, RateTolerance: 1e-5, MaxBracketingIterations: 16, FallbackRate: 1e-2},
			TrainingRate: 0.1,
		},
		&ConjugateGradient{
			Criteria:        Criteria{GradientNormGoal: 1e-6},
			Direction:       PolakRibiere,
			RestartInterval: 25,
		},
		&QuasiNewton{
			Criteria: Criteria{MaxSelectionFailures: 4},
			Update:   DFP,
		},
		&LevenbergMarquardt{
			Criteria:       Criteria{MaxEpochs: 80},
			InitialDamping: 0.01,
			DampingFactor:  5,
			MinimumDamping: 1e-8,
			MaximumDamping: 1e8,
		},
		&StochasticGradientDescent{
			Criteria:     Criteria{MaxEpochs: 30},
			TrainingRate: 0.05,
			Momentum:     0.9,
			BatchSize:    16,
		},
		&AdaptiveMomentEstimation{
			Criteria:     Criteria{MaxEpochs: 30},
			TrainingRate: 0.002,
			Beta1:        0.8,
			Beta2:        0.99,
			Epsilon:      1e-7,
			BatchSize:    8,
		},
		&Evolutionary{
			Criteria:       Criteria{MaxEpochs: 15},
			PopulationSize: 20,
			Selection:      Tournament,
			Recombination:  Line,
			Mutation:       UniformMutation,
			MutationRate:   0.2,
			MutationRange:  0.3,
		},
	}

	for _, algorithm := range algorithms {
		raw, err := MarshalAlgorithm(algorithm)
		require.NoError(t, err, algorithm.Kind())
		assert.Contains(t, string(raw), `"OptimizationAlgorithm"`)

		restored, err := UnmarshalAlgorithm(raw)
		require.NoError(t, err, algorithm.Kind())
		assert.Equal(t, algorithm.Kind(), restored.Kind())
		assert.Equal(t, algorithm, restored, algorithm.Kind())
	}
}

func TestUnmarshalAlgorithmRejectsUnknownNames(t *testing.T) {
	_, err := UnmarshalAlgorithm([]byte(`{"OptimizationAlgorithm":{"Type":"Nope"}}`))
	assert.Error(t, err)

	_, err = UnmarshalAlgorithm([]byte(`{"OptimizationAlgorithm":{"Type":"ConjugateGradient","Direction":"Nope"}}`))
	assert.Error(t, err)

	_, err = UnmarshalAlgorithm([]byte(`{"OptimizationAlgorithm":{"Type":"QuasiNewton","Update":"Nope"}}`))
	assert.Error(t, err)
}
