// Package oracle defines the contract with the external threshold
// decryption mechanism. The ledger core never decrypts anything itself: it
// hands the canonical ciphertext bytes of a request to a Client and later
// receives a Callback whose authenticity proof binds the plaintext values
// to the request id and the exact ciphertext pair that was submitted.
//
// The package also provides the proof algebra (keccak256 digest + secp256k1
// signature, verified against the authority's well-known address) and an
// in-process Authority implementation used by single-node deployments and
// tests.
package oracle

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/quadravote/qvnode/types"
)

// Callback is a decryption result as delivered by the external mechanism.
type Callback struct {
	RequestID string         `json:"requestId"`
	VoteCount uint64         `json:"voteCount"`
	CostSum   uint64         `json:"costSum"`
	Proof     types.HexBytes `json:"proof"`
}

// Client dispatches a decryption request to the external mechanism. The
// call returns as soon as the request is handed over; the result arrives
// later as a Callback through an independent path.
type Client interface {
	RequestDecryption(req *types.DecryptionRequest) error
}

// ProofDigest computes the digest the authority signs: the request id, the
// exact ciphertext pair that was submitted, and the plaintext values, all
// under keccak256. Binding the ciphertexts prevents replaying a proof of
// one request against another.
func ProofDigest(requestID string, voteCountCT, costSumCT []byte, voteCount, costSum uint64) []byte {
	var values [16]byte
	binary.BigEndian.PutUint64(values[0:8], voteCount)
	binary.BigEndian.PutUint64(values[8:16], costSum)
	return ethcrypto.Keccak256(
		[]byte(requestID),
		voteCountCT,
		costSumCT,
		values[:],
	)
}

// Verifier checks callback proofs against the authority's address.
type Verifier struct {
	authority common.Address
}

// NewVerifier creates a Verifier trusting the given authority address.
func NewVerifier(authority common.Address) *Verifier {
	return &Verifier{authority: authority}
}

// Authority returns the trusted authority address.
func (v *Verifier) Authority() common.Address {
	return v.authority
}

// Verify checks that cb's proof is a valid authority signature over the
// request's ciphertext pair and the delivered plaintext values. Returns
// types.ErrInvalidProof on any mismatch, never a partial result.
func (v *Verifier) Verify(req *types.DecryptionRequest, cb *Callback) error {
	if len(cb.Proof) != ethcrypto.SignatureLength {
		return fmt.Errorf("%w: signature length %d", types.ErrInvalidProof, len(cb.Proof))
	}
	digest := ProofDigest(req.RequestID, req.VoteCountBytes, req.CostSumBytes, cb.VoteCount, cb.CostSum)
	pub, err := ethcrypto.SigToPub(digest, cb.Proof)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidProof, err)
	}
	signer := ethcrypto.PubkeyToAddress(*pub)
	if !bytes.Equal(signer.Bytes(), v.authority.Bytes()) {
		return fmt.Errorf("%w: signed by %s, expected %s", types.ErrInvalidProof, signer, v.authority)
	}
	return nil
}
