package voting

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/quadravote/qvnode/crypto/homomorphic"
	"github.com/quadravote/qvnode/db/metadb"
	"github.com/quadravote/qvnode/internal/testutil"
	"github.com/quadravote/qvnode/storage"
	"github.com/quadravote/qvnode/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	stg := storage.New(metadb.NewTest(t), testutil.Scheme(t))
	return NewEngine(stg, nil, 10, time.Hour)
}

func newProposal(t *testing.T, e *Engine) *types.Proposal {
	t.Helper()
	c := qt.New(t)
	title, err := testutil.Scheme(t).Encrypt(0)
	c.Assert(err, qt.IsNil)
	p, err := e.CreateProposal(title, title, 0)
	c.Assert(err, qt.IsNil)
	return p
}

func encVotes(t *testing.T, n uint64) *homomorphic.Ciphertext {
	t.Helper()
	ct, err := testutil.Scheme(t).Encrypt(n)
	if err != nil {
		t.Fatalf("encrypt votes: %v", err)
	}
	return ct
}

// A member deposits 100 units and casts 3 votes: the quadratic cost of 9 is
// deducted and the accumulators carry 3 and 9.
func TestCastVoteQuadraticCost(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t)
	d := testutil.Decryptor(t)
	member := testutil.DeterministicAddress(20)

	p := newProposal(t, e)
	_, err := e.Deposit(member, 100)
	c.Assert(err, qt.IsNil)

	updated, err := e.CastVote(p.ID, member, 3, encVotes(t, 3))
	c.Assert(err, qt.IsNil)

	balance, err := e.Balance(member)
	c.Assert(err, qt.IsNil)
	c.Assert(balance, qt.Equals, uint64(91))

	voteCount, err := d.Decrypt(updated.EncryptedVoteCount)
	c.Assert(err, qt.IsNil)
	c.Assert(voteCount, qt.Equals, uint64(3))
	costSum, err := d.Decrypt(updated.EncryptedCostSum)
	c.Assert(err, qt.IsNil)
	c.Assert(costSum, qt.Equals, uint64(9))
}

// Two members cast 2 and 4 votes: the tallies must be 6 and 4+16=20.
func TestCastVoteTwoMembers(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t)
	d := testutil.Decryptor(t)
	alice := testutil.DeterministicAddress(21)
	bob := testutil.DeterministicAddress(22)

	p := newProposal(t, e)
	_, err := e.Deposit(alice, 100)
	c.Assert(err, qt.IsNil)
	_, err = e.Deposit(bob, 100)
	c.Assert(err, qt.IsNil)

	_, err = e.CastVote(p.ID, alice, 2, encVotes(t, 2))
	c.Assert(err, qt.IsNil)
	updated, err := e.CastVote(p.ID, bob, 4, encVotes(t, 4))
	c.Assert(err, qt.IsNil)

	voteCount, err := d.Decrypt(updated.EncryptedVoteCount)
	c.Assert(err, qt.IsNil)
	c.Assert(voteCount, qt.Equals, uint64(6))
	costSum, err := d.Decrypt(updated.EncryptedCostSum)
	c.Assert(err, qt.IsNil)
	c.Assert(costSum, qt.Equals, uint64(20))
}

// Casting 11 votes with a limit of 10 is rejected without touching state.
func TestCastVoteExceedsLimit(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t)
	member := testutil.DeterministicAddress(23)

	p := newProposal(t, e)
	_, err := e.Deposit(member, 1000)
	c.Assert(err, qt.IsNil)

	_, err = e.CastVote(p.ID, member, 11, encVotes(t, 11))
	c.Assert(err, qt.ErrorIs, types.ErrVoteCountExceedsLimit)

	balance, err := e.Balance(member)
	c.Assert(err, qt.IsNil)
	c.Assert(balance, qt.Equals, uint64(1000))
	voted, err := e.HasVoted(p.ID, member)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)
}

// A vote count whose square wraps uint64 must be rejected even when a
// misconfigured cap would admit it; otherwise the wrapped cost of 0 would
// pass the balance check.
func TestCastVoteSquareCannotWrap(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t), testutil.Scheme(t))
	e := NewEngine(stg, nil, 1<<33, time.Hour)
	member := testutil.DeterministicAddress(27)

	p := newProposal(t, e)
	_, err := e.Deposit(member, 100)
	c.Assert(err, qt.IsNil)

	_, err = e.CastVote(p.ID, member, 1<<32, encVotes(t, 1))
	c.Assert(err, qt.ErrorIs, types.ErrVoteCountExceedsLimit)

	balance, err := e.Balance(member)
	c.Assert(err, qt.IsNil)
	c.Assert(balance, qt.Equals, uint64(100))
}

func TestCastVoteZeroVotes(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t)
	p := newProposal(t, e)

	_, err := e.CastVote(p.ID, testutil.DeterministicAddress(24), 0, encVotes(t, 0))
	c.Assert(err, qt.ErrorIs, types.ErrVoteCountExceedsLimit)
}

func TestCastVoteTwiceRejected(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t)
	member := testutil.DeterministicAddress(25)

	p := newProposal(t, e)
	_, err := e.Deposit(member, 100)
	c.Assert(err, qt.IsNil)

	_, err = e.CastVote(p.ID, member, 2, encVotes(t, 2))
	c.Assert(err, qt.IsNil)
	_, err = e.CastVote(p.ID, member, 1, encVotes(t, 1))
	c.Assert(err, qt.ErrorIs, types.ErrAlreadyVoted)
}

func TestCastVoteInsufficientBalance(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t)
	member := testutil.DeterministicAddress(26)

	p := newProposal(t, e)
	_, err := e.Deposit(member, 8)
	c.Assert(err, qt.IsNil)

	_, err = e.CastVote(p.ID, member, 3, encVotes(t, 3))
	c.Assert(err, qt.ErrorIs, types.ErrInsufficientBalance)

	balance, err := e.Balance(member)
	c.Assert(err, qt.IsNil)
	c.Assert(balance, qt.Equals, uint64(8))
}

// The decrypted tallies must not depend on the order votes arrive in.
func TestAccumulationIsOrderIndependent(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t)
	d := testutil.Decryptor(t)

	counts := []uint64{1, 2, 3, 4}
	forward := newProposal(t, e)
	backward := newProposal(t, e)

	for i, n := range counts {
		member := testutil.DeterministicAddress(30 + uint64(i))
		_, err := e.Deposit(member, 100)
		c.Assert(err, qt.IsNil)
		_, err = e.CastVote(forward.ID, member, n, encVotes(t, n))
		c.Assert(err, qt.IsNil)
	}
	for i := len(counts) - 1; i >= 0; i-- {
		member := testutil.DeterministicAddress(40 + uint64(i))
		_, err := e.Deposit(member, 100)
		c.Assert(err, qt.IsNil)
		_, err = e.CastVote(backward.ID, member, counts[i], encVotes(t, counts[i]))
		c.Assert(err, qt.IsNil)
	}

	for _, id := range []types.ProposalID{forward.ID, backward.ID} {
		p, err := e.Proposal(id)
		c.Assert(err, qt.IsNil)
		voteCount, err := d.Decrypt(p.EncryptedVoteCount)
		c.Assert(err, qt.IsNil)
		c.Assert(voteCount, qt.Equals, uint64(10))
		costSum, err := d.Decrypt(p.EncryptedCostSum)
		c.Assert(err, qt.IsNil)
		c.Assert(costSum, qt.Equals, uint64(1+4+9+16))
	}
}

func TestEventsCarryNoValueInformation(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t)
	member := testutil.DeterministicAddress(50)

	p := newProposal(t, e)
	ev := <-e.Events()
	c.Assert(ev.Kind, qt.Equals, types.EventProposalCreated)
	c.Assert(ev.ProposalID, qt.Equals, p.ID)
	c.Assert(ev.EndTime.IsZero(), qt.IsFalse)

	_, err := e.Deposit(member, 100)
	c.Assert(err, qt.IsNil)
	_, err = e.CastVote(p.ID, member, 3, encVotes(t, 3))
	c.Assert(err, qt.IsNil)

	ev = <-e.Events()
	c.Assert(ev.Kind, qt.Equals, types.EventVoteCast)
	c.Assert(ev.ProposalID, qt.Equals, p.ID)
	c.Assert(ev.Member, qt.Equals, member)
}
