package types

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quadravote/qvnode/crypto/homomorphic"
)

// ProposalID is a monotonically assigned proposal identifier.
type ProposalID uint64

// Key returns the fixed-width big-endian storage key of the id, so that
// iteration order matches assignment order.
func (id ProposalID) Key() []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

// ProposalIDFromKey parses a storage key produced by Key.
func ProposalIDFromKey(k []byte) ProposalID {
	return ProposalID(binary.BigEndian.Uint64(k))
}

// ProposalStatus is the lifecycle state of a proposal. Open→Closed is
// purely time-driven; Closed→Decrypted happens once, via a verified
// decryption callback. No transition is reversible.
type ProposalStatus string

const (
	ProposalStatusOpen      ProposalStatus = "open"
	ProposalStatusClosed    ProposalStatus = "closed"
	ProposalStatusDecrypted ProposalStatus = "decrypted"
)

// Proposal is a ballot item accumulating encrypted quadratic votes. The
// title and details are opaque ciphertext handles produced by the client;
// the node stores them untouched. The two accumulators are the only
// mutable encrypted state, and only until EndTime.
type Proposal struct {
	ID                 ProposalID               `json:"id" cbor:"1,keyasint"`
	EncryptedTitle     *homomorphic.Ciphertext  `json:"encryptedTitle" cbor:"2,keyasint"`
	EncryptedDetails   *homomorphic.Ciphertext  `json:"encryptedDetails" cbor:"3,keyasint"`
	EncryptedVoteCount *homomorphic.Ciphertext  `json:"encryptedVoteCount" cbor:"4,keyasint"`
	EncryptedCostSum   *homomorphic.Ciphertext  `json:"encryptedCostSum" cbor:"5,keyasint"`
	CreationTime       time.Time                `json:"creationTime" cbor:"6,keyasint"`
	EndTime            time.Time                `json:"endTime" cbor:"7,keyasint"`
	DecryptedVoteCount *uint64                  `json:"decryptedVoteCount,omitempty" cbor:"8,keyasint,omitempty"`
	DecryptedCostSum   *uint64                  `json:"decryptedCostSum,omitempty" cbor:"9,keyasint,omitempty"`
}

// Status derives the lifecycle state at the given instant.
func (p *Proposal) Status(now time.Time) ProposalStatus {
	if p.DecryptedVoteCount != nil && p.DecryptedCostSum != nil {
		return ProposalStatusDecrypted
	}
	if now.Before(p.EndTime) {
		return ProposalStatusOpen
	}
	return ProposalStatusClosed
}

// VoteRecord tracks one member's participation on one proposal. HasVoted
// transitions false→true exactly once and is never reset; it is the sole
// double-vote guard. EncryptedVotes is retained for audit and never
// re-read for computation after casting.
type VoteRecord struct {
	ProposalID     ProposalID              `json:"proposalId" cbor:"1,keyasint"`
	Member         common.Address          `json:"member" cbor:"2,keyasint"`
	EncryptedVotes *homomorphic.Ciphertext `json:"encryptedVotes" cbor:"3,keyasint"`
	HasVoted       bool                    `json:"hasVoted" cbor:"4,keyasint"`
	CastTime       time.Time               `json:"castTime" cbor:"5,keyasint"`
}

// DecryptionRequestStatus is the per-request lifecycle.
type DecryptionRequestStatus string

const (
	// RequestStatusPending means the request has been handed to the
	// external decryption mechanism and awaits a verified callback.
	RequestStatusPending DecryptionRequestStatus = "pending"
	// RequestStatusFulfilled means a verified callback delivered the
	// plaintext tallies.
	RequestStatusFulfilled DecryptionRequestStatus = "fulfilled"
	// RequestStatusAbandoned means an operator explicitly declared the
	// request dead, re-enabling a fresh request for the proposal.
	RequestStatusAbandoned DecryptionRequestStatus = "abandoned"
)

// DecryptionRequest correlates an outstanding decryption with its
// originating proposal. The explicit ProposalID field is the authoritative
// correlation; request ids are never derived from proposal ids.
type DecryptionRequest struct {
	RequestID      string                  `json:"requestId" cbor:"1,keyasint"`
	ProposalID     ProposalID              `json:"proposalId" cbor:"2,keyasint"`
	VoteCountBytes HexBytes                `json:"voteCountCiphertext" cbor:"3,keyasint"`
	CostSumBytes   HexBytes                `json:"costSumCiphertext" cbor:"4,keyasint"`
	Status         DecryptionRequestStatus `json:"status" cbor:"5,keyasint"`
	CreatedAt      time.Time               `json:"createdAt" cbor:"6,keyasint"`
	FulfilledAt    *time.Time              `json:"fulfilledAt,omitempty" cbor:"7,keyasint,omitempty"`
}
