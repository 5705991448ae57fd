// Package persist stores component documents on disk inside a versioned
// envelope with an integrity checksum, so a corrupted or truncated model
// file fails loudly instead of loading garbage parameters.
package persist

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

const (
	// Format tags every envelope this package writes.
	Format = "tabnet-model"

	// Version is bumped when the envelope layout changes.
	Version = 1
)

// ErrChecksumMismatch reports a payload whose checksum does not match
// the stored one.
var ErrChecksumMismatch = errors.New("persist: checksum mismatch")

type envelope struct {
	Format   string          `json:"Format"`
	Version  int             `json:"Version"`
	Checksum string          `json:"Checksum"`
	Payload  json.RawMessage `json:"Payload"`
}

// Marshal wraps a component document in the checksummed envelope.
func Marshal(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "persist: marshal payload")
	}
	sum := sha256.Sum256(raw)
	return json.MarshalIndent(envelope{
		Format:   Format,
		Version:  Version,
		Checksum: hex.EncodeToString(sum[:]),
		Payload:  raw,
	}, "", "  ")
}

// Unmarshal validates the envelope and checksum, then decodes the
// payload into out.
func Unmarshal(raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Wrap(err, "persist: parse envelope")
	}
	if env.Format != Format {
		return errors.Errorf("persist: unknown format %q", env.Format)
	}
	if env.Version != Version {
		return errors.Errorf("persist: unsupported version %d", env.Version)
	}
	// The indented envelope re-formats the payload, so the checksum is
	// taken over its compact form on both sides.
	var compact bytes.Buffer
	if err := json.Compact(&compact, env.Payload); err != nil {
		return errors.Wrap(err, "persist: compact payload")
	}
	sum := sha256.Sum256(compact.Bytes())
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return ErrChecksumMismatch
	}
	return errors.Wrap(json.Unmarshal(env.Payload, out), "persist: decode payload")
}

// Save writes a component document to path.
func Save(path string, payload any) error {
	raw, err := Marshal(payload)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "persist: write %s", path)
}

// Load reads a component document from path.
func Load(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "persist: read %s", path)
	}
	return Unmarshal(raw, out)
}
