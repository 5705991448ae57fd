package nn

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

func TestNetworkJSONRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	net := NewNetwork(Approximation, []int{3, 5, 2}, rng)
	net.SetInputNames([]string{"a", "b", "c"})
	net.SetOutputNames([]string{"u", "v"})
	net.Layer(0).(*Scaling).SetDescriptives([]data.Descriptives{
		{Minimum: -1, Maximum: 4, Mean: 1.5, StandardDeviation: 1.1},
		{Minimum: 0, Maximum: 9, Mean: 4, StandardDeviation: 2.4},
		{Minimum: -2, Maximum: 2, Mean: 0, StandardDeviation: 0.9},
	})
	bounding := net.Layer(4).(*Bounding)
	bounding.SetBounds(0, -10, 10)

	raw, err := json.Marshal(net)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"NeuralNetwork"`)

	var restored Network
	require.NoError(t, json.Unmarshal(raw, &restored))

	assert.Equal(t, net.ModelType(), restored.ModelType())
	assert.Equal(t, net.InputNames(), restored.InputNames())
	assert.Equal(t, net.OutputNames(), restored.OutputNames())
	assert.Equal(t, net.Architecture(), restored.Architecture())
	assert.Equal(t, net.Parameters(), restored.Parameters())
	assert.Equal(t, kinds(net), kinds(&restored))

	// Infinite default bounds on output 1 must survive.
	lower, upper := restored.Layer(4).(*Bounding).Bounds(1)
	assert.True(t, math.IsInf(lower, -1))
	assert.True(t, math.IsInf(upper, 1))

	dev := device.New(device.SingleThreaded, 0)
	inputs := tensor.RandUniform(tensor.Shape{5, 3}, -2, 4, rng)
	assert.Equal(t, net.Outputs(dev, inputs).Data(), restored.Outputs(dev, inputs).Data())
}

func TestNetworkJSONRoundTripClassification(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	net := NewNetwork(Classification, []int{4, 6, 3}, rng)
	net.Layer(2).(*Probabilistic).SetDecisionThreshold(0.7)

	raw, err := json.Marshal(net)
	require.NoError(t, err)

	var restored Network
	require.NoError(t, json.Unmarshal(raw, &restored))

	prob := restored.Layer(2).(*Probabilistic)
	assert.Equal(t, SoftmaxProbability, prob.Method())
	assert.Equal(t, 0.7, prob.DecisionThreshold())
	assert.Equal(t, net.Parameters(), restored.Parameters())
}

func TestNetworkJSONRoundTripRecurrentStack(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	net := NewEmptyNetwork(Forecasting)
	net.AddLayer(NewScaling(2))
	net.AddLayer(NewRecurrent(2, 4, 3, HyperbolicTangent, rng))
	net.AddLayer(NewLSTM(4, 3, 3, rng))
	net.AddLayer(NewPerceptron(3, 1, Linear, rng))

	raw, err := json.Marshal(net)
	require.NoError(t, err)

	var restored Network
	require.NoError(t, json.Unmarshal(raw, &restored))

	assert.Equal(t, kinds(net), kinds(&restored))
	assert.Equal(t, net.Parameters(), restored.Parameters())
	assert.Equal(t, net.ParameterCount(), restored.ParameterCount())
}

func TestNetworkJSONRoundTripConvolutionalStack(t *testing.T) {
	rng := rand.New(rand.NewSource(24))
	net := NewEmptyNetwork(ImageClassification)
	conv := NewConvolutional(tensor.Shape{1, 8, 8}, 2, 3, 3, 1, RectifiedLinear, rng)
	net.AddLayer(conv)
	pool := NewPooling(conv.OutputShape(), 2, 2, 2, MaxPooling)
	net.AddLayer(pool)
	net.AddLayer(NewPerceptron(pool.OutputShape().NumElements(), 2, Linear, rng))

	raw, err := json.Marshal(net)
	require.NoError(t, err)

	var restored Network
	require.NoError(t, json.Unmarshal(raw, &restored))

	assert.Equal(t, kinds(net), kinds(&restored))
	assert.Equal(t, net.Parameters(), restored.Parameters())

	dev := device.New(device.SingleThreaded, 0)
	inputs := tensor.RandUniform(tensor.Shape{2, 1, 8, 8}, 0, 1, rng)
	assert.Equal(t, net.Outputs(dev, inputs).Data(), restored.Outputs(dev, inputs).Data())
}

func TestNetworkUnmarshalRejectsGarbage(t *testing.T) {
	var net Network
	assert.Error(t, json.Unmarshal([]byte(`{"NeuralNetwork":{"ModelType":"Nope","Layers":[]}}`), &net))
	assert.Error(t, json.Unmarshal([]byte(`{"NeuralNetwork":{"ModelType":"Approximation","Layers":[{"Type":"Mystery"}]}}`), &net))
}
