package types

import "time"

const (
	// DefaultVotingPeriod is how long a proposal accepts votes after its
	// creation unless the node is configured otherwise.
	DefaultVotingPeriod = 7 * 24 * time.Hour

	// DefaultMaxVotesPerProposal caps the plaintext vote count a single
	// member may cast on one proposal. A public policy limit, independent
	// of the encrypted tally.
	DefaultMaxVotesPerProposal = 10

	// MaxTallyValue is the inclusive upper bound the decryption authority
	// accepts for a decrypted accumulator value. Bounded by the plaintext
	// modulus of the homomorphic scheme.
	MaxTallyValue = 1 << 16
)
