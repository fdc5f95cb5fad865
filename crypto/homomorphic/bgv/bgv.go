// Package bgv implements the homomorphic.Scheme contract on top of the BGV
// scheme from lattigo. BGV gives exact integer arithmetic with both
// ciphertext addition and ciphertext multiplication, which the quadratic
// cost accumulation requires.
//
// The scheme parameters are fixed so that every node and client in a
// deployment produces byte-compatible ciphertexts.
package bgv

import (
	"fmt"
	"sync"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/quadravote/qvnode/crypto/homomorphic"
)

// SchemeName tags ciphertexts and stored keys produced by this backend.
const SchemeName = "bgv-lattigo-n13-t65537"

// paramsLiteral fixes ring degree 2^13 and plaintext modulus 65537
// (1 mod 2N, so slot encoding is available). The modulus chain leaves
// headroom for the single ciphertext multiplication the ledger performs
// plus the additive accumulation.
var paramsLiteral = bgv.ParametersLiteral{
	LogN:             13,
	LogQ:             []int{54, 54, 54},
	LogP:             []int{55},
	PlaintextModulus: 0x10001,
}

// newParameters builds the fixed parameter set.
func newParameters() (bgv.Parameters, error) {
	params, err := bgv.NewParametersFromLiteral(paramsLiteral)
	if err != nil {
		return bgv.Parameters{}, fmt.Errorf("bgv parameters: %w", err)
	}
	return params, nil
}

// KeySet holds a full BGV key material set: the secret key stays with the
// decryption authority, the public and relinearization keys are what nodes
// and clients need to encrypt and evaluate.
type KeySet struct {
	SK  *rlwe.SecretKey
	PK  *rlwe.PublicKey
	RLK *rlwe.RelinearizationKey
}

// GenerateKeySet creates fresh BGV key material.
func GenerateKeySet() (*KeySet, error) {
	params, err := newParameters()
	if err != nil {
		return nil, err
	}
	kgen := rlwe.NewKeyGenerator(params)
	sk := kgen.GenSecretKeyNew()
	return &KeySet{
		SK:  sk,
		PK:  kgen.GenPublicKeyNew(sk),
		RLK: kgen.GenRelinearizationKeyNew(sk),
	}, nil
}

// Marshal returns the serialized form of the key set as three binary
// blobs, suitable for storage.
func (ks *KeySet) Marshal() (sk, pk, rlk []byte, err error) {
	if sk, err = ks.SK.MarshalBinary(); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal secret key: %w", err)
	}
	if pk, err = ks.PK.MarshalBinary(); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	if rlk, err = ks.RLK.MarshalBinary(); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal relinearization key: %w", err)
	}
	return sk, pk, rlk, nil
}

// UnmarshalKeySet reconstructs a KeySet from its serialized form. Any of
// the three blobs may be nil, leaving that key unset.
func UnmarshalKeySet(sk, pk, rlk []byte) (*KeySet, error) {
	ks := &KeySet{}
	if sk != nil {
		ks.SK = &rlwe.SecretKey{}
		if err := ks.SK.UnmarshalBinary(sk); err != nil {
			return nil, fmt.Errorf("unmarshal secret key: %w", err)
		}
	}
	if pk != nil {
		ks.PK = &rlwe.PublicKey{}
		if err := ks.PK.UnmarshalBinary(pk); err != nil {
			return nil, fmt.Errorf("unmarshal public key: %w", err)
		}
	}
	if rlk != nil {
		ks.RLK = &rlwe.RelinearizationKey{}
		if err := ks.RLK.UnmarshalBinary(rlk); err != nil {
			return nil, fmt.Errorf("unmarshal relinearization key: %w", err)
		}
	}
	return ks, nil
}

// Scheme is the evaluation-side backend: it can encrypt, add and multiply,
// but not decrypt. It satisfies homomorphic.Encryptor.
type Scheme struct {
	params bgv.Parameters
	ecd    *bgv.Encoder
	enc    *rlwe.Encryptor
	eval   *bgv.Evaluator

	// The lattigo evaluator and encoder keep internal buffers and are not
	// safe for concurrent use.
	mu sync.Mutex
}

var _ homomorphic.Encryptor = (*Scheme)(nil)

// New creates the evaluation scheme from the public and relinearization
// keys of a KeySet.
func New(ks *KeySet) (*Scheme, error) {
	if ks == nil || ks.PK == nil || ks.RLK == nil {
		return nil, fmt.Errorf("bgv scheme requires public and relinearization keys")
	}
	params, err := newParameters()
	if err != nil {
		return nil, err
	}
	return &Scheme{
		params: params,
		ecd:    bgv.NewEncoder(params),
		enc:    rlwe.NewEncryptor(params, ks.PK),
		eval:   bgv.NewEvaluator(params, rlwe.NewMemEvaluationKeySet(ks.RLK)),
	}, nil
}

// Name implements homomorphic.Scheme.
func (s *Scheme) Name() string { return SchemeName }

// Encrypt returns a fresh encryption of value in slot zero.
func (s *Scheme) Encrypt(value uint64) (*homomorphic.Ciphertext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt := bgv.NewPlaintext(s.params, s.params.MaxLevel())
	if err := s.ecd.Encode([]uint64{value}, pt); err != nil {
		return nil, fmt.Errorf("bgv encode: %w", err)
	}
	ct, err := s.enc.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("bgv encrypt: %w", err)
	}
	return s.wrap(ct)
}

// EncryptZero implements homomorphic.Scheme.
func (s *Scheme) EncryptZero() (*homomorphic.Ciphertext, error) {
	return s.Encrypt(0)
}

// Add implements homomorphic.Scheme.
func (s *Scheme) Add(a, b *homomorphic.Ciphertext) (*homomorphic.Ciphertext, error) {
	cta, err := s.unwrap(a)
	if err != nil {
		return nil, err
	}
	ctb, err := s.unwrap(b)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.eval.AddNew(cta, ctb)
	if err != nil {
		return nil, fmt.Errorf("bgv add: %w", err)
	}
	return s.wrap(out)
}

// Mul implements homomorphic.Scheme. The product is relinearized back to
// degree one so it stays addable with fresh ciphertexts.
func (s *Scheme) Mul(a, b *homomorphic.Ciphertext) (*homomorphic.Ciphertext, error) {
	cta, err := s.unwrap(a)
	if err != nil {
		return nil, err
	}
	ctb, err := s.unwrap(b)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.eval.MulRelinNew(cta, ctb)
	if err != nil {
		return nil, fmt.Errorf("bgv mul: %w", err)
	}
	return s.wrap(out)
}

// wrap serializes a lattigo ciphertext into an opaque handle. Must be
// called with s.mu held or on a fresh ciphertext.
func (s *Scheme) wrap(ct *rlwe.Ciphertext) (*homomorphic.Ciphertext, error) {
	raw, err := ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal ciphertext: %w", err)
	}
	return homomorphic.NewCiphertext(raw), nil
}

// unwrap parses the canonical byte form of a handle.
func (s *Scheme) unwrap(c *homomorphic.Ciphertext) (*rlwe.Ciphertext, error) {
	if c == nil || len(c.Bytes()) == 0 {
		return nil, homomorphic.ErrMalformedCiphertext
	}
	ct := &rlwe.Ciphertext{}
	if err := ct.UnmarshalBinary(c.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: %v", homomorphic.ErrMalformedCiphertext, err)
	}
	return ct, nil
}

// Decryptor is the authority-side extension holding the secret key. It is
// never instantiated inside the ledger core; only the external decryption
// authority owns one.
type Decryptor struct {
	params bgv.Parameters
	ecd    *bgv.Encoder
	dec    *rlwe.Decryptor
	mu     sync.Mutex
}

// NewDecryptor creates a Decryptor from a KeySet carrying the secret key.
func NewDecryptor(ks *KeySet) (*Decryptor, error) {
	if ks == nil || ks.SK == nil {
		return nil, fmt.Errorf("bgv decryptor requires the secret key")
	}
	params, err := newParameters()
	if err != nil {
		return nil, err
	}
	return &Decryptor{
		params: params,
		ecd:    bgv.NewEncoder(params),
		dec:    rlwe.NewDecryptor(params, ks.SK),
	}, nil
}

// Decrypt recovers the plaintext integer held in slot zero of the handle.
func (d *Decryptor) Decrypt(c *homomorphic.Ciphertext) (uint64, error) {
	if c == nil || len(c.Bytes()) == 0 {
		return 0, homomorphic.ErrMalformedCiphertext
	}
	ct := &rlwe.Ciphertext{}
	if err := ct.UnmarshalBinary(c.Bytes()); err != nil {
		return 0, fmt.Errorf("%w: %v", homomorphic.ErrMalformedCiphertext, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	pt := d.dec.DecryptNew(ct)
	values := make([]uint64, d.params.MaxSlots())
	if err := d.ecd.Decode(pt, values); err != nil {
		return 0, fmt.Errorf("bgv decode: %w", err)
	}
	return values[0], nil
}
