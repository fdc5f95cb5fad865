package api

import (
	"time"

	"github.com/quadravote/qvnode/crypto/homomorphic"
	"github.com/quadravote/qvnode/types"
)

// NewProposalRequest is the body of POST /proposals.
type NewProposalRequest struct {
	EncryptedTitle   *homomorphic.Ciphertext `json:"encryptedTitle"`
	EncryptedDetails *homomorphic.Ciphertext `json:"encryptedDetails"`
	// VotingPeriodSeconds overrides the default voting period; 0 keeps it.
	VotingPeriodSeconds uint64 `json:"votingPeriodSeconds,omitempty"`
}

// NewProposalResponse is the body returned by POST /proposals.
type NewProposalResponse struct {
	ProposalID types.ProposalID `json:"proposalId"`
	EndTime    time.Time        `json:"endTime"`
}

// ProposalResponse wraps a proposal with its derived lifecycle status.
type ProposalResponse struct {
	*types.Proposal
	Status types.ProposalStatus `json:"status"`
}

// ProposalListResponse is the body of GET /proposals.
type ProposalListResponse struct {
	Proposals []types.ProposalID `json:"proposals"`
}

// VoteRequest is the body of POST /votes. VoteCount authorizes the funding
// check; EncryptedVoteCount is what reaches the tally.
type VoteRequest struct {
	ProposalID         types.ProposalID        `json:"proposalId"`
	Member             string                  `json:"member"`
	VoteCount          uint64                  `json:"voteCount"`
	EncryptedVoteCount *homomorphic.Ciphertext `json:"encryptedVoteCount"`
}

// VoteResponse is the body returned by POST /votes.
type VoteResponse struct {
	ProposalID       types.ProposalID `json:"proposalId"`
	RemainingBalance uint64           `json:"remainingBalance"`
}

// FundingRequest is the body of the deposit and withdraw endpoints.
type FundingRequest struct {
	Member string `json:"member"`
	Amount uint64 `json:"amount"`
}

// BalanceResponse reports a member's funding balance.
type BalanceResponse struct {
	Member  string `json:"member"`
	Balance uint64 `json:"balance"`
}

// TallyResponse is the body of GET /proposals/{proposalId}/tally.
type TallyResponse struct {
	ProposalID types.ProposalID `json:"proposalId"`
	VoteCount  uint64           `json:"voteCount"`
	CostSum    uint64           `json:"costSum"`
}

// DecryptResponse is the body returned by POST /proposals/{proposalId}/decrypt.
type DecryptResponse struct {
	RequestID string `json:"requestId"`
}
