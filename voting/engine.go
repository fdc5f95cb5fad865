// Package voting implements the quadratic voting engine: proposal
// creation, vote admission and the member funding operations, on top of the
// storage layer and a homomorphic scheme.
//
// Privacy boundary: the engine admits a vote against the member's plaintext
// balance using the plaintext vote count the member discloses, but only the
// member's own encryption of that count ever reaches a proposal's
// accumulators. The plaintext count is used for admission arithmetic and
// dropped; it is never stored, logged or emitted.
package voting

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quadravote/qvnode/crypto/homomorphic"
	"github.com/quadravote/qvnode/log"
	"github.com/quadravote/qvnode/oracle"
	"github.com/quadravote/qvnode/storage"
	"github.com/quadravote/qvnode/types"
)

// Engine exposes the ledger operations. All methods are safe for concurrent
// use; admission and accumulation serialize inside the storage layer.
type Engine struct {
	stg           *storage.Storage
	scheme        homomorphic.Scheme
	transferor    oracle.FundTransferor
	maxVotes      uint64
	defaultPeriod time.Duration
	events        chan types.Event
}

// NewEngine creates an Engine over the given storage. transferor is
// notified of withdrawals; maxVotes caps the per-member vote count on a
// single proposal (0 selects types.DefaultMaxVotesPerProposal);
// defaultPeriod is the voting window applied when proposal creation does
// not specify one (0 selects types.DefaultVotingPeriod).
func NewEngine(stg *storage.Storage, transferor oracle.FundTransferor, maxVotes uint64, defaultPeriod time.Duration) *Engine {
	if maxVotes == 0 {
		maxVotes = types.DefaultMaxVotesPerProposal
	}
	if transferor == nil {
		transferor = oracle.LogTransferor{}
	}
	return &Engine{
		stg:           stg,
		scheme:        stg.Scheme(),
		transferor:    transferor,
		maxVotes:      maxVotes,
		defaultPeriod: defaultPeriod,
		events:        make(chan types.Event, 256),
	}
}

// Events returns the ledger notification channel. Events are emitted
// best-effort: if no consumer keeps up, they are dropped, never blocked on.
func (e *Engine) Events() <-chan types.Event {
	return e.events
}

func (e *Engine) emit(ev types.Event) {
	ev.Timestamp = time.Now()
	select {
	case e.events <- ev:
	default:
		log.Warnw("event channel full, dropping event", "kind", string(ev.Kind), "proposalId", uint64(ev.ProposalID))
	}
}

// EmitTallyDecrypted publishes the tally-decrypted notification for a
// proposal. Called by the decryption coordinator once verified tallies are
// recorded.
func (e *Engine) EmitTallyDecrypted(id types.ProposalID) {
	e.emit(types.Event{Kind: types.EventTallyDecrypted, ProposalID: id})
}

// CreateProposal registers a new proposal with zero-initialized encrypted
// accumulators and a voting window of votingPeriod (0 selects the default
// period).
func (e *Engine) CreateProposal(encTitle, encDetails *homomorphic.Ciphertext, votingPeriod time.Duration) (*types.Proposal, error) {
	if votingPeriod <= 0 {
		votingPeriod = e.defaultPeriod
	}
	p, err := e.stg.CreateProposal(encTitle, encDetails, votingPeriod)
	if err != nil {
		return nil, err
	}
	log.Infow("proposal created", "proposalId", uint64(p.ID), "endTime", p.EndTime)
	e.emit(types.Event{Kind: types.EventProposalCreated, ProposalID: p.ID, EndTime: p.EndTime})
	return p, nil
}

// Proposal retrieves a proposal by id.
func (e *Engine) Proposal(id types.ProposalID) (*types.Proposal, error) {
	return e.stg.Proposal(id)
}

// ListProposals returns all proposal ids in creation order.
func (e *Engine) ListProposals() ([]types.ProposalID, error) {
	return e.stg.ListProposals()
}

// CastVote casts voteCount quadratic votes by member on the proposal.
// encVotes must be the member's own encryption of voteCount; the engine
// cannot check the correspondence and the decrypted tallies will expose a
// mismatch only in aggregate.
//
// Admission charges voteCount² against the member's balance. The encrypted
// quadratic cost accumulated on the proposal is computed homomorphically as
// encVotes·encVotes, so the ciphertext domain carries the same square the
// plaintext ledger charged.
func (e *Engine) CastVote(id types.ProposalID, member common.Address, voteCount uint64, encVotes *homomorphic.Ciphertext) (*types.Proposal, error) {
	if voteCount == 0 || voteCount > e.maxVotes {
		return nil, fmt.Errorf("cast %d votes with limit %d: %w", voteCount, e.maxVotes, types.ErrVoteCountExceedsLimit)
	}
	// Reject counts whose square exceeds the tally bound regardless of the
	// configured cap; voteCount*voteCount below must not wrap.
	if voteCount > types.MaxTallyValue/voteCount {
		return nil, fmt.Errorf("cast %d votes: quadratic cost exceeds tally bound %d: %w",
			voteCount, types.MaxTallyValue, types.ErrVoteCountExceedsLimit)
	}
	if encVotes == nil || len(encVotes.Bytes()) == 0 {
		return nil, fmt.Errorf("cast vote: %w", homomorphic.ErrMalformedCiphertext)
	}
	cost := voteCount * voteCount

	encCost, err := e.scheme.Mul(encVotes, encVotes)
	if err != nil {
		return nil, fmt.Errorf("square encrypted votes: %w", err)
	}

	p, newBalance, err := e.stg.CommitVote(id, member, encVotes, encCost, cost, time.Now())
	if err != nil {
		return nil, err
	}
	log.Infow("vote cast", "proposalId", uint64(id), "member", member.Hex(), "remainingBalance", newBalance)
	e.emit(types.Event{Kind: types.EventVoteCast, ProposalID: id, Member: member})
	return p, nil
}

// HasVoted reports whether the member already voted on the proposal.
func (e *Engine) HasVoted(id types.ProposalID, member common.Address) (bool, error) {
	return e.stg.HasVoted(id, member)
}

// Deposit credits a member's funding balance and returns the new balance.
func (e *Engine) Deposit(member common.Address, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("deposit amount must be positive")
	}
	balance, err := e.stg.Deposit(member, amount)
	if err != nil {
		return balance, err
	}
	log.Infow("funds deposited", "member", member.Hex(), "amount", amount, "balance", balance)
	return balance, nil
}

// Withdraw debits a member's funding balance and notifies the fund
// transferor. A transferor failure is logged but does not undo the
// ledger debit; settlement retries are the transferor's concern.
func (e *Engine) Withdraw(member common.Address, amount uint64) (uint64, error) {
	balance, err := e.stg.Withdraw(member, amount)
	if err != nil {
		return balance, err
	}
	if err := e.transferor.Transfer(member, amount); err != nil {
		log.Errorw(err, fmt.Sprintf("fund transfer to %s failed", member.Hex()))
	}
	return balance, nil
}

// Balance returns a member's funding balance.
func (e *Engine) Balance(member common.Address) (uint64, error) {
	return e.stg.Balance(member)
}
