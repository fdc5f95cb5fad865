package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/quadravote/qvnode/crypto/homomorphic"
	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/db/prefixeddb"
	"github.com/quadravote/qvnode/types"
)

var proposalCounterKey = []byte("counter")

// CreateProposal assigns the next proposal id, initializes both encrypted
// accumulators to fresh encryptions of zero and stores the proposal. The
// title and details ciphertexts are stored untouched.
func (s *Storage) CreateProposal(encTitle, encDetails *homomorphic.Ciphertext, votingPeriod time.Duration) (*types.Proposal, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if votingPeriod <= 0 {
		votingPeriod = types.DefaultVotingPeriod
	}

	zeroVotes, err := s.scheme.EncryptZero()
	if err != nil {
		return nil, fmt.Errorf("initialize vote count accumulator: %w", err)
	}
	zeroCost, err := s.scheme.EncryptZero()
	if err != nil {
		return nil, fmt.Errorf("initialize cost sum accumulator: %w", err)
	}

	id, err := s.nextProposalID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	p := &types.Proposal{
		ID:                 id,
		EncryptedTitle:     encTitle,
		EncryptedDetails:   encDetails,
		EncryptedVoteCount: zeroVotes,
		EncryptedCostSum:   zeroCost,
		CreationTime:       now,
		EndTime:            now.Add(votingPeriod),
	}
	if err := s.setProposal(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Proposal retrieves a proposal by id. Returns types.ErrProposalNotFound if
// it does not exist.
func (s *Storage) Proposal(id types.ProposalID) (*types.Proposal, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.proposalUnsafe(id)
}

// proposalUnsafe is Proposal without taking the lock; callers must hold it.
func (s *Storage) proposalUnsafe(id types.ProposalID) (*types.Proposal, error) {
	if cached, ok := s.cache.Get(cacheKey(proposalPrefix, id.Key())); ok {
		if p, ok := cached.(*types.Proposal); ok {
			return p, nil
		}
	}
	p := &types.Proposal{}
	if err := s.getArtifact(proposalPrefix, id.Key(), p); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, types.ErrProposalNotFound
		}
		return nil, fmt.Errorf("get proposal %d: %w", id, err)
	}
	s.cache.Add(cacheKey(proposalPrefix, id.Key()), p)
	return p, nil
}

// setProposal stores a proposal and refreshes the cache entry.
func (s *Storage) setProposal(p *types.Proposal) error {
	if err := s.setArtifact(proposalPrefix, p.ID.Key(), p); err != nil {
		return fmt.Errorf("store proposal %d: %w", p.ID, err)
	}
	s.cache.Add(cacheKey(proposalPrefix, p.ID.Key()), p)
	return nil
}

// ListProposals returns the ids of all stored proposals, in assignment order.
func (s *Storage) ListProposals() ([]types.ProposalID, error) {
	var ids []types.ProposalID
	if err := prefixeddb.NewPrefixedReader(s.db, proposalPrefix).Iterate(nil, func(k, _ []byte) bool {
		if len(k) == 8 {
			ids = append(ids, types.ProposalIDFromKey(k))
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return ids, nil
}

// ListClosedUndecrypted returns the ids of proposals whose voting period has
// ended but whose tallies are not yet decrypted.
func (s *Storage) ListClosedUndecrypted(now time.Time) ([]types.ProposalID, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	ids, err := s.ListProposals()
	if err != nil {
		return nil, err
	}
	var closed []types.ProposalID
	for _, id := range ids {
		p, err := s.proposalUnsafe(id)
		if err != nil {
			return nil, err
		}
		if p.Status(now) == types.ProposalStatusClosed {
			closed = append(closed, id)
		}
	}
	return closed, nil
}

// MarkDecrypted records the verified plaintext tallies on the proposal.
// Returns types.ErrVotingStillOpen before EndTime and
// types.ErrAlreadyDecrypted if tallies were already recorded; the first
// recorded tallies are final.
func (s *Storage) MarkDecrypted(id types.ProposalID, voteCount, costSum uint64, now time.Time) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	p, err := s.proposalUnsafe(id)
	if err != nil {
		return err
	}
	switch p.Status(now) {
	case types.ProposalStatusOpen:
		return fmt.Errorf("mark proposal %d decrypted: %w", id, types.ErrVotingStillOpen)
	case types.ProposalStatusDecrypted:
		return fmt.Errorf("mark proposal %d decrypted: %w", id, types.ErrAlreadyDecrypted)
	}
	// Copy before mutating: proposalUnsafe may have returned the shared
	// cached pointer, which callers of Proposal still hold.
	updated := *p
	updated.DecryptedVoteCount = &voteCount
	updated.DecryptedCostSum = &costSum
	if err := s.setArtifact(proposalPrefix, id.Key(), &updated); err != nil {
		return fmt.Errorf("store proposal %d: %w", id, err)
	}
	s.cache.Add(cacheKey(proposalPrefix, id.Key()), &updated)
	return nil
}

// nextProposalID increments and persists the monotonic id counter. Callers
// must hold the global lock.
func (s *Storage) nextProposalID() (types.ProposalID, error) {
	var next uint64 = 1
	data, err := prefixeddb.NewPrefixedReader(s.db, proposalCounterPrefix).Get(proposalCounterKey)
	switch {
	case err == nil:
		next = binary.BigEndian.Uint64(data) + 1
	case errors.Is(err, db.ErrKeyNotFound):
	default:
		return 0, fmt.Errorf("read proposal counter: %w", err)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	wTx := prefixeddb.NewPrefixedDatabase(s.db, proposalCounterPrefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(proposalCounterKey, buf); err != nil {
		return 0, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, fmt.Errorf("advance proposal counter: %w", err)
	}
	return types.ProposalID(next), nil
}
