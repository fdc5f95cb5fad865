package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// EncodeArtifact encodes an artifact into deterministic CBOR.
func EncodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

// DecodeArtifact decodes a CBOR-encoded artifact into the provided output variable.
func DecodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}
