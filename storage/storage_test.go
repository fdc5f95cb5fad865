package storage

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/quadravote/qvnode/db/metadb"
	"github.com/quadravote/qvnode/internal/testutil"
	"github.com/quadravote/qvnode/types"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	return New(metadb.NewTest(t), testutil.Scheme(t))
}

func TestCreateAndGetProposal(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	title, err := testutil.Scheme(t).Encrypt(1)
	c.Assert(err, qt.IsNil)
	details, err := testutil.Scheme(t).Encrypt(2)
	c.Assert(err, qt.IsNil)

	p, err := stg.CreateProposal(title, details, time.Hour)
	c.Assert(err, qt.IsNil)
	c.Assert(p.ID, qt.Equals, types.ProposalID(1))
	c.Assert(p.Status(time.Now()), qt.Equals, types.ProposalStatusOpen)
	c.Assert(p.EncryptedVoteCount, qt.Not(qt.IsNil))
	c.Assert(p.EncryptedCostSum, qt.Not(qt.IsNil))

	got, err := stg.Proposal(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.ID, qt.Equals, p.ID)
	c.Assert(got.EndTime.Unix(), qt.Equals, p.EndTime.Unix())
}

func TestProposalNotFound(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)

	_, err := stg.Proposal(types.ProposalID(77))
	c.Assert(err, qt.ErrorIs, types.ErrProposalNotFound)
}

func TestProposalIDsAreMonotonic(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)
	s := testutil.Scheme(t)

	for i := 1; i <= 5; i++ {
		title, err := s.Encrypt(uint64(i))
		c.Assert(err, qt.IsNil)
		p, err := stg.CreateProposal(title, title, time.Hour)
		c.Assert(err, qt.IsNil)
		c.Assert(p.ID, qt.Equals, types.ProposalID(i))
	}

	ids, err := stg.ListProposals()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []types.ProposalID{1, 2, 3, 4, 5})
}

func TestMarkDecryptedTransitions(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)
	s := testutil.Scheme(t)

	title, err := s.Encrypt(0)
	c.Assert(err, qt.IsNil)
	p, err := stg.CreateProposal(title, title, time.Hour)
	c.Assert(err, qt.IsNil)

	// Still open.
	err = stg.MarkDecrypted(p.ID, 3, 9, time.Now())
	c.Assert(err, qt.ErrorIs, types.ErrVotingStillOpen)

	after := p.EndTime.Add(time.Second)
	err = stg.MarkDecrypted(p.ID, 3, 9, after)
	c.Assert(err, qt.IsNil)

	got, err := stg.Proposal(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Status(after), qt.Equals, types.ProposalStatusDecrypted)
	c.Assert(*got.DecryptedVoteCount, qt.Equals, uint64(3))
	c.Assert(*got.DecryptedCostSum, qt.Equals, uint64(9))

	// First recorded tallies are final.
	err = stg.MarkDecrypted(p.ID, 4, 16, after)
	c.Assert(err, qt.ErrorIs, types.ErrAlreadyDecrypted)
}

// MarkDecrypted must not write through pointers handed out earlier: a
// caller still holding the proposal from a previous read must never observe
// the tallies appearing in place.
func TestMarkDecryptedDoesNotMutateSharedProposal(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)
	s := testutil.Scheme(t)

	title, err := s.Encrypt(0)
	c.Assert(err, qt.IsNil)
	p, err := stg.CreateProposal(title, title, time.Nanosecond)
	c.Assert(err, qt.IsNil)

	held, err := stg.Proposal(p.ID)
	c.Assert(err, qt.IsNil)

	after := p.EndTime.Add(time.Second)
	c.Assert(stg.MarkDecrypted(p.ID, 3, 9, after), qt.IsNil)

	c.Assert(held.DecryptedVoteCount, qt.IsNil)
	c.Assert(held.DecryptedCostSum, qt.IsNil)

	got, err := stg.Proposal(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(*got.DecryptedVoteCount, qt.Equals, uint64(3))
	c.Assert(*got.DecryptedCostSum, qt.Equals, uint64(9))
}

func TestListClosedUndecrypted(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(t)
	s := testutil.Scheme(t)

	title, err := s.Encrypt(0)
	c.Assert(err, qt.IsNil)

	open, err := stg.CreateProposal(title, title, time.Hour)
	c.Assert(err, qt.IsNil)
	closed, err := stg.CreateProposal(title, title, time.Nanosecond)
	c.Assert(err, qt.IsNil)

	time.Sleep(2 * time.Millisecond)
	ids, err := stg.ListClosedUndecrypted(time.Now())
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []types.ProposalID{closed.ID})
	c.Assert(ids, qt.Not(qt.Contains), open.ID)
}
