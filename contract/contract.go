// Package contract implements the content-hashed DSL bundle that identifies
// a frozen circuit + observation + jkimyei-spec combination, its versioned
// codec, and the registry that looks up decoded records by hash.
package contract

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/luxfi/ids"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// CodecVersion identifies the wire shape of a marshaled Bundle.
type CodecVersion uint16

// CurrentVersion is the only codec version this build understands.
const CurrentVersion CodecVersion = 0

// Bundle is the frozen DSL text bundle a Contract hashes and carries.
// Wave text is hashed and identified separately (§6.4): a contract may be
// executed under any wave compatible with its circuit.
type Bundle struct {
	CircuitText            string `json:"circuit_text"`
	ObservationSourcesText string `json:"observation_sources_text"`
	ObservationChannelsText string `json:"observation_channels_text"`
	JkimyeiSpecsText       string `json:"jkimyei_specs_text"`
}

// Contract pairs a Bundle with its content hash.
type Contract struct {
	Hash   ids.ID
	Bundle Bundle
}

// Hash returns the stable content identity of a bundle: the bytes of each
// field, concatenated with a length-prefix-free separator and hashed with
// SHA-256, whose 32-byte digest becomes the ids.ID. Any byte-for-byte change to any field
// changes the hash.
func Hash(b Bundle) ids.ID {
	h := sha256.New()
	h.Write([]byte(b.CircuitText))
	h.Write([]byte{0})
	h.Write([]byte(b.ObservationSourcesText))
	h.Write([]byte{0})
	h.Write([]byte(b.ObservationChannelsText))
	h.Write([]byte{0})
	h.Write([]byte(b.JkimyeiSpecsText))
	sum := h.Sum(nil)
	id, _ := ids.ToID(sum)
	return id
}

// New builds a Contract from a Bundle, computing its hash.
func New(b Bundle) *Contract {
	return &Contract{Hash: Hash(b), Bundle: b}
}

// wireEnvelope is the marshaled-on-disk shape, versioned per codec.go's
// convention of a version tag alongside the payload.
type wireEnvelope struct {
	Version CodecVersion `json:"version"`
	Bundle  Bundle       `json:"bundle"`
}

// Marshal encodes a Contract's bundle to versioned JSON bytes.
func Marshal(c *Contract) ([]byte, error) {
	env := wireEnvelope{Version: CurrentVersion, Bundle: c.Bundle}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "marshaling contract bundle")
	}
	return data, nil
}

// Unmarshal decodes versioned JSON bytes into a Contract, recomputing its
// hash rather than trusting a stored one.
func Unmarshal(data []byte) (*Contract, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "unmarshaling contract bundle")
	}
	if env.Version != CurrentVersion {
		return nil, errctx.New(errctx.CodeState, "unsupported contract codec version %d", env.Version)
	}
	return New(env.Bundle), nil
}
