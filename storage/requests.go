package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/db/prefixeddb"
	"github.com/quadravote/qvnode/types"
)

// CreateRequest stores a new pending decryption request and indexes it as
// the proposal's outstanding request. Returns types.ErrRequestAlreadyPending
// if the proposal already has one; at most one request per proposal is ever
// in flight.
func (s *Storage) CreateRequest(req *types.DecryptionRequest) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	pidKey := req.ProposalID.Key()
	if _, err := prefixeddb.NewPrefixedReader(s.db, pendingRequestPrefix).Get(pidKey); err == nil {
		return fmt.Errorf("request decryption of proposal %d: %w", req.ProposalID, types.ErrRequestAlreadyPending)
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("check pending request: %w", err)
	}

	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := setArtifactTx(tx, requestPrefix, []byte(req.RequestID), req); err != nil {
		return fmt.Errorf("store decryption request: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(tx, pendingRequestPrefix).Set(pidKey, []byte(req.RequestID)); err != nil {
		return fmt.Errorf("index pending request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decryption request: %w", err)
	}
	return nil
}

// Request retrieves a decryption request by id. Returns
// types.ErrUnknownRequest for ids never issued by this node.
func (s *Storage) Request(requestID string) (*types.DecryptionRequest, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.requestUnsafe(requestID)
}

func (s *Storage) requestUnsafe(requestID string) (*types.DecryptionRequest, error) {
	req := &types.DecryptionRequest{}
	if err := s.getArtifact(requestPrefix, []byte(requestID), req); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("request %q: %w", requestID, types.ErrUnknownRequest)
		}
		return nil, fmt.Errorf("get request %q: %w", requestID, err)
	}
	return req, nil
}

// PendingRequest returns the proposal's outstanding decryption request, or
// db.ErrKeyNotFound if none is pending.
func (s *Storage) PendingRequest(id types.ProposalID) (*types.DecryptionRequest, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	reqID, err := prefixeddb.NewPrefixedReader(s.db, pendingRequestPrefix).Get(id.Key())
	if err != nil {
		return nil, err
	}
	return s.requestUnsafe(string(reqID))
}

// ListPendingRequests returns all outstanding decryption requests, used to
// re-dispatch them after a restart.
func (s *Storage) ListPendingRequests() ([]*types.DecryptionRequest, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	var ids []string
	if err := prefixeddb.NewPrefixedReader(s.db, pendingRequestPrefix).Iterate(nil, func(_, v []byte) bool {
		ids = append(ids, string(v))
		return true
	}); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	reqs := make([]*types.DecryptionRequest, 0, len(ids))
	for _, id := range ids {
		req, err := s.requestUnsafe(id)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// FulfillRequest applies a verified decryption result: the request flips to
// fulfilled, the pending index entry is removed and the proposal records its
// plaintext tallies, all in one transaction. The proof must have been
// verified by the caller against the stored request before calling this.
//
// Returns types.ErrUnknownRequest for unknown or abandoned requests and
// types.ErrAlreadyFulfilled if the request was already fulfilled.
func (s *Storage) FulfillRequest(requestID string, voteCount, costSum uint64, now time.Time) (*types.Proposal, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	req, err := s.requestUnsafe(requestID)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case types.RequestStatusFulfilled:
		return nil, fmt.Errorf("request %q: %w", requestID, types.ErrAlreadyFulfilled)
	case types.RequestStatusAbandoned:
		return nil, fmt.Errorf("abandoned request %q: %w", requestID, types.ErrUnknownRequest)
	}
	p, err := s.proposalUnsafe(req.ProposalID)
	if err != nil {
		return nil, err
	}
	if p.Status(now) == types.ProposalStatusDecrypted {
		return nil, fmt.Errorf("proposal %d: %w", req.ProposalID, types.ErrAlreadyDecrypted)
	}

	updatedReq := *req
	updatedReq.Status = types.RequestStatusFulfilled
	updatedReq.FulfilledAt = &now
	updatedProposal := *p
	updatedProposal.DecryptedVoteCount = &voteCount
	updatedProposal.DecryptedCostSum = &costSum

	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := setArtifactTx(tx, requestPrefix, []byte(requestID), &updatedReq); err != nil {
		return nil, fmt.Errorf("store fulfilled request: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(tx, pendingRequestPrefix).Delete(req.ProposalID.Key()); err != nil {
		return nil, fmt.Errorf("clear pending index: %w", err)
	}
	if err := setArtifactTx(tx, proposalPrefix, req.ProposalID.Key(), &updatedProposal); err != nil {
		return nil, fmt.Errorf("store decrypted tallies: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decryption result: %w", err)
	}
	s.cache.Add(cacheKey(proposalPrefix, req.ProposalID.Key()), &updatedProposal)
	return &updatedProposal, nil
}

// AbandonRequest marks a pending request abandoned and clears the pending
// index, so a fresh request for the proposal can be issued. Fulfilled
// requests cannot be abandoned.
func (s *Storage) AbandonRequest(requestID string, now time.Time) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	req, err := s.requestUnsafe(requestID)
	if err != nil {
		return err
	}
	switch req.Status {
	case types.RequestStatusFulfilled:
		return fmt.Errorf("request %q: %w", requestID, types.ErrAlreadyFulfilled)
	case types.RequestStatusAbandoned:
		return nil
	}

	updated := *req
	updated.Status = types.RequestStatusAbandoned
	tx := s.db.WriteTx()
	defer tx.Discard()
	if err := setArtifactTx(tx, requestPrefix, []byte(requestID), &updated); err != nil {
		return fmt.Errorf("store abandoned request: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(tx, pendingRequestPrefix).Delete(req.ProposalID.Key()); err != nil {
		return fmt.Errorf("clear pending index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit abandon: %w", err)
	}
	return nil
}
