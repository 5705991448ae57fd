package selection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabnet-ml/tabnet/internal/optim"
)

func TestConfigJSONRoundTrip(t *testing.T) {
	configs := []Config{
		{
			Neurons: &IncrementalNeurons{MinNeurons: 1, MaxNeurons: 8, Step: 2, MaxSelectionFailures: 4},
		},
		{
			Inputs: &GrowingInputs{MaxInputs: 5, MaxSelectionFailures: 3},
		},
		{
			Inputs: &PruningInputs{MinInputs: 2, MaxSelectionFailures: 3},
		},
		{
			Inputs: &GeneticInputs{PopulationSize: 12, Generations: 6, Selection: optim.Tournament, MutationRate: 0.15},
		},
		{
			Neurons: &IncrementalNeurons{MinNeurons: 2, MaxNeurons: 4},
			Inputs:  &GrowingInputs{},
		},
	}

	for i, config := range configs {
		raw, err := json.Marshal(config)
		require.NoError(t, err, i)
		assert.Contains(t, string(raw), `"ModelSelection"`)

		var restored Config
		require.NoError(t, json.Unmarshal(raw, &restored), i)
		assert.Equal(t, config, restored, i)
	}
}

func TestConfigJSONEmpty(t *testing.T) {
	raw, err := json.Marshal(Config{})
	require.NoError(t, err)

	var restored Config
	require.NoError(t, json.Unmarshal(raw, &restored))
	assert.Nil(t, restored.Neurons)
	assert.Nil(t, restored.Inputs)
}

func TestConfigJSONRejectsUnknownDrivers(t *testing.T) {
	var config Config
	err := json.Unmarshal([]byte(`{"ModelSelection":{"NeuronsSelection":{"Type":"Nope"}}}`), &config)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"ModelSelection":{"InputsSelection":{"Type":"Nope"}}}`), &config)
	assert.Error(t, err)
}
