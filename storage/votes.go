package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quadravote/qvnode/crypto/homomorphic"
	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/db/prefixeddb"
	"github.com/quadravote/qvnode/types"
)

func voteKey(id types.ProposalID, member common.Address) []byte {
	return append(id.Key(), member.Bytes()...)
}

// VoteRecord retrieves a member's vote record on a proposal. Returns
// db.ErrKeyNotFound if the member never voted on it.
func (s *Storage) VoteRecord(id types.ProposalID, member common.Address) (*types.VoteRecord, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	r := &types.VoteRecord{}
	if err := s.getArtifact(voteRecordPrefix, voteKey(id, member), r); err != nil {
		return nil, err
	}
	return r, nil
}

// HasVoted reports whether the member already cast a vote on the proposal.
func (s *Storage) HasVoted(id types.ProposalID, member common.Address) (bool, error) {
	_, err := s.VoteRecord(id, member)
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CommitVote performs the authoritative admission checks and applies the
// whole effect of one vote atomically: the balance deduction, the vote
// record, and both homomorphic accumulations commit in a single write
// transaction, so no partial vote can ever be observed or survive a crash.
//
// encVotes is the member's encrypted vote count, encCost the encrypted
// quadratic cost; cost is the plaintext quadratic cost admitted against the
// balance. Returns the updated proposal and the member's new balance.
func (s *Storage) CommitVote(id types.ProposalID, member common.Address,
	encVotes, encCost *homomorphic.Ciphertext, cost uint64, now time.Time,
) (*types.Proposal, uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	p, err := s.proposalUnsafe(id)
	if err != nil {
		return nil, 0, err
	}
	if p.Status(now) != types.ProposalStatusOpen {
		return nil, 0, fmt.Errorf("vote on proposal %d: %w", id, types.ErrVotingClosed)
	}
	if err := s.getArtifact(voteRecordPrefix, voteKey(id, member), &types.VoteRecord{}); err == nil {
		return nil, 0, fmt.Errorf("vote on proposal %d by %s: %w", id, member, types.ErrAlreadyVoted)
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, 0, fmt.Errorf("check vote record: %w", err)
	}
	balance, err := s.balanceUnsafe(member)
	if err != nil {
		return nil, 0, err
	}
	if balance < cost {
		return nil, 0, fmt.Errorf("vote on proposal %d costs %d, %s holds %d: %w",
			id, cost, member, balance, types.ErrInsufficientBalance)
	}

	newVoteCount, err := s.scheme.Add(p.EncryptedVoteCount, encVotes)
	if err != nil {
		return nil, 0, fmt.Errorf("accumulate vote count: %w", err)
	}
	newCostSum, err := s.scheme.Add(p.EncryptedCostSum, encCost)
	if err != nil {
		return nil, 0, fmt.Errorf("accumulate cost sum: %w", err)
	}

	updated := *p
	updated.EncryptedVoteCount = newVoteCount
	updated.EncryptedCostSum = newCostSum
	record := &types.VoteRecord{
		ProposalID:     id,
		Member:         member,
		EncryptedVotes: encVotes,
		HasVoted:       true,
		CastTime:       now,
	}
	newBalance := balance - cost

	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := setBalanceTx(prefixeddb.NewPrefixedWriteTx(tx, balancePrefix), member, newBalance); err != nil {
		return nil, 0, fmt.Errorf("deduct balance: %w", err)
	}
	if err := setArtifactTx(tx, voteRecordPrefix, voteKey(id, member), record); err != nil {
		return nil, 0, fmt.Errorf("store vote record: %w", err)
	}
	if err := setArtifactTx(tx, proposalPrefix, id.Key(), &updated); err != nil {
		return nil, 0, fmt.Errorf("store accumulators: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit vote: %w", err)
	}
	s.cache.Add(cacheKey(proposalPrefix, id.Key()), &updated)
	return &updated, newBalance, nil
}
