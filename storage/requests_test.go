package storage

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/internal/testutil"
	"github.com/quadravote/qvnode/types"
)

func mkRequest(t *testing.T, stg *Storage, period time.Duration) (*types.Proposal, *types.DecryptionRequest) {
	t.Helper()
	c := qt.New(t)
	title, err := testutil.Scheme(t).Encrypt(0)
	c.Assert(err, qt.IsNil)
	p, err := stg.CreateProposal(title, title, period)
	c.Assert(err, qt.IsNil)

	req := &types.DecryptionRequest{
		RequestID:      uuid.NewString(),
		ProposalID:     p.ID,
		VoteCountBytes: p.EncryptedVoteCount.Bytes(),
		CostSumBytes:   p.EncryptedCostSum.Bytes(),
		Status:         types.RequestStatusPending,
		CreatedAt:      time.Now(),
	}
	c.Assert(stg.CreateRequest(req), qt.IsNil)
	return p, req
}

func TestCreateAndGetRequest(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	p, req := mkRequest(t, stg, time.Hour)

	got, err := stg.Request(req.RequestID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.ProposalID, qt.Equals, p.ID)
	c.Assert(got.Status, qt.Equals, types.RequestStatusPending)

	pending, err := stg.PendingRequest(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(pending.RequestID, qt.Equals, req.RequestID)
}

func TestOnePendingRequestPerProposal(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	p, _ := mkRequest(t, stg, time.Hour)

	dup := &types.DecryptionRequest{
		RequestID:  uuid.NewString(),
		ProposalID: p.ID,
		Status:     types.RequestStatusPending,
		CreatedAt:  time.Now(),
	}
	c.Assert(stg.CreateRequest(dup), qt.ErrorIs, types.ErrRequestAlreadyPending)
}

func TestUnknownRequest(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	_, err := stg.Request("never-issued")
	c.Assert(err, qt.ErrorIs, types.ErrUnknownRequest)
}

func TestFulfillRequest(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	p, req := mkRequest(t, stg, time.Nanosecond)
	after := p.EndTime.Add(time.Second)

	updated, err := stg.FulfillRequest(req.RequestID, 6, 20, after)
	c.Assert(err, qt.IsNil)
	c.Assert(*updated.DecryptedVoteCount, qt.Equals, uint64(6))
	c.Assert(*updated.DecryptedCostSum, qt.Equals, uint64(20))

	got, err := stg.Request(req.RequestID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Status, qt.Equals, types.RequestStatusFulfilled)
	c.Assert(got.FulfilledAt, qt.Not(qt.IsNil))

	// The pending index is cleared.
	_, err = stg.PendingRequest(p.ID)
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	// A second result for the same request is rejected.
	_, err = stg.FulfillRequest(req.RequestID, 7, 21, after)
	c.Assert(err, qt.ErrorIs, types.ErrAlreadyFulfilled)
}

func TestAbandonRequest(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	p, req := mkRequest(t, stg, time.Nanosecond)

	c.Assert(stg.AbandonRequest(req.RequestID, time.Now()), qt.IsNil)

	got, err := stg.Request(req.RequestID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Status, qt.Equals, types.RequestStatusAbandoned)

	// Abandoned requests cannot deliver results.
	_, err = stg.FulfillRequest(req.RequestID, 1, 1, p.EndTime.Add(time.Second))
	c.Assert(err, qt.ErrorIs, types.ErrUnknownRequest)

	// A fresh request for the proposal is admitted again.
	fresh := &types.DecryptionRequest{
		RequestID:  uuid.NewString(),
		ProposalID: p.ID,
		Status:     types.RequestStatusPending,
		CreatedAt:  time.Now(),
	}
	c.Assert(stg.CreateRequest(fresh), qt.IsNil)
}

func TestListPendingRequests(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	_, req1 := mkRequest(t, stg, time.Hour)
	_, req2 := mkRequest(t, stg, time.Hour)

	pending, err := stg.ListPendingRequests()
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.HasLen, 2)
	ids := []string{pending[0].RequestID, pending[1].RequestID}
	c.Assert(ids, qt.Contains, req1.RequestID)
	c.Assert(ids, qt.Contains, req2.RequestID)
}
