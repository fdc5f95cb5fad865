package types

import "errors"

// Sentinel errors for every failure the ledger core can report. Callers
// branch on these with errors.Is; no operation surfaces a generic fault.
var (
	// ErrProposalNotFound is returned when the referenced proposal id is
	// not present in the store.
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrVotingClosed is returned by mutating vote operations once the
	// proposal end time has passed.
	ErrVotingClosed = errors.New("voting closed")
	// ErrVotingStillOpen is returned by decryption operations attempted
	// before the proposal end time.
	ErrVotingStillOpen = errors.New("voting still open")
	// ErrAlreadyVoted is returned when a member casts a second vote on the
	// same proposal.
	ErrAlreadyVoted = errors.New("member already voted")
	// ErrInsufficientBalance is returned when the quadratic cost of a vote
	// (or a withdrawal amount) exceeds the member funding balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrVoteCountExceedsLimit is returned when the plaintext vote count is
	// above the public per-proposal cap.
	ErrVoteCountExceedsLimit = errors.New("vote count exceeds limit")
	// ErrRequestAlreadyPending is returned when a decryption request is
	// issued for a proposal that already has an unfulfilled one.
	ErrRequestAlreadyPending = errors.New("decryption request already pending")
	// ErrUnknownRequest is returned by the decryption callback for an
	// untracked request id.
	ErrUnknownRequest = errors.New("unknown decryption request")
	// ErrAlreadyFulfilled is returned by the decryption callback when the
	// request is no longer pending.
	ErrAlreadyFulfilled = errors.New("decryption request already fulfilled")
	// ErrInvalidProof is returned when the authenticity proof of a
	// decryption callback does not verify. Security relevant: it may
	// indicate a forged or corrupted callback.
	ErrInvalidProof = errors.New("invalid decryption proof")
	// ErrAlreadyDecrypted is returned when plaintext tallies are set twice
	// for the same proposal.
	ErrAlreadyDecrypted = errors.New("proposal already decrypted")
	// ErrOverflow is returned when a deposit would overflow the member
	// balance. The deposit is rejected, not wrapped.
	ErrOverflow = errors.New("balance overflow")
)
