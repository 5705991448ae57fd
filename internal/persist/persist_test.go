package persist

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Name  string  `json:"Name"`
	Value float64 `json:"Value"`
}

func TestMarshalRoundTrip(t *testing.T) {
	raw, err := Marshal(document{Name: "alpha", Value: 1.5})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"tabnet-model"`)

	var restored document
	require.NoError(t, Unmarshal(raw, &restored))
	assert.Equal(t, document{Name: "alpha", Value: 1.5}, restored)
}

func TestUnmarshalDetectsCorruption(t *testing.T) {
	raw, err := Marshal(document{Name: "alpha", Value: 1.5})
	require.NoError(t, err)

	tampered := bytes.Replace(raw, []byte(`"alpha"`), []byte(`"omega"`), 1)
	require.NotEqual(t, raw, tampered)

	var restored document
	assert.True(t, errors.Is(Unmarshal(tampered, &restored), ErrChecksumMismatch))
}

func TestUnmarshalRejectsForeignEnvelopes(t *testing.T) {
	var restored document
	assert.Error(t, Unmarshal([]byte(`{"Format":"other","Version":1,"Checksum":"","Payload":{}}`), &restored))
	assert.Error(t, Unmarshal([]byte(`{"Format":"tabnet-model","Version":99,"Checksum":"","Payload":{}}`), &restored))
	assert.Error(t, Unmarshal([]byte(`not json`), &restored))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, Save(path, document{Name: "saved", Value: -2}))

	var restored document
	require.NoError(t, Load(path, &restored))
	assert.Equal(t, document{Name: "saved", Value: -2}, restored)

	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.json"), &restored))
}
