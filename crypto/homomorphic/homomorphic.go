// Package homomorphic defines the opaque ciphertext handle used by the
// voting ledger and the pluggable scheme that operates on it.
//
// A handle references an encrypted unsigned integer. The only permitted
// operations are the ones on Scheme: homomorphic addition, homomorphic
// multiplication and encryption of zero, plus the canonical byte form used
// to submit a ciphertext for external decryption. No caller ever branches
// on, compares, or otherwise inspects the underlying value; plaintexts are
// recovered exclusively through the decryption protocol.
package homomorphic

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrMalformedCiphertext is returned when a handle's byte form cannot be
// parsed by the scheme backend.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Ciphertext is an opaque handle to an encrypted unsigned integer. The
// wrapped bytes are the scheme's canonical serialization; they are never
// interpreted outside the scheme backend.
type Ciphertext struct {
	data []byte
}

// NewCiphertext wraps canonical ciphertext bytes into a handle. The bytes
// are copied.
func NewCiphertext(data []byte) *Ciphertext {
	return &Ciphertext{data: bytes.Clone(data)}
}

// Bytes returns the canonical byte form of the handle, as submitted to the
// external decryption mechanism.
func (c *Ciphertext) Bytes() []byte {
	if c == nil {
		return nil
	}
	return bytes.Clone(c.data)
}

// String returns a short hex fingerprint of the handle, for logs only.
func (c *Ciphertext) String() string {
	if c == nil || len(c.data) == 0 {
		return "ct(nil)"
	}
	n := min(len(c.data), 8)
	return fmt.Sprintf("ct(%s…,%dB)", hex.EncodeToString(c.data[:n]), len(c.data))
}

// MarshalCBOR encodes the handle as a CBOR byte string.
func (c *Ciphertext) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(c.data)
}

// UnmarshalCBOR decodes the handle from a CBOR byte string.
func (c *Ciphertext) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	c.data = raw
	return nil
}

// MarshalJSON encodes the handle as a 0x-prefixed hex string.
func (c Ciphertext) MarshalJSON() ([]byte, error) {
	return []byte(`"0x` + hex.EncodeToString(c.data) + `"`), nil
}

// UnmarshalJSON decodes the handle from a hex string, with or without the
// 0x prefix.
func (c *Ciphertext) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: not a JSON string", ErrMalformedCiphertext)
	}
	s := string(data[1 : len(data)-1])
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	c.data = raw
	return nil
}

// Scheme is the contract every homomorphic backend satisfies. Add and Mul
// must be commutative and associative, since accumulation order across
// concurrent voters is not guaranteed; this is a precondition of the
// ledger, not an incidental property of a backend.
type Scheme interface {
	// Name identifies the backend (for logs and stored-key tagging).
	Name() string
	// EncryptZero returns a fresh encryption of zero, the neutral element
	// for Add. Used to initialize accumulators.
	EncryptZero() (*Ciphertext, error)
	// Add returns a handle whose plaintext is the sum of the operands'.
	Add(a, b *Ciphertext) (*Ciphertext, error)
	// Mul returns a handle whose plaintext is the product of the operands'.
	Mul(a, b *Ciphertext) (*Ciphertext, error)
}

// Encryptor is the client-side extension of a Scheme; the node core never
// needs it, but tests and the bundled CLI tooling do.
type Encryptor interface {
	Scheme
	// Encrypt returns a fresh encryption of the given value.
	Encrypt(value uint64) (*Ciphertext, error)
}
