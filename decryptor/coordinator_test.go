package decryptor

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/quadravote/qvnode/db/metadb"
	"github.com/quadravote/qvnode/internal/testutil"
	"github.com/quadravote/qvnode/oracle"
	"github.com/quadravote/qvnode/storage"
	"github.com/quadravote/qvnode/types"
)

// nullClient swallows dispatched requests; tests deliver callbacks by hand.
type nullClient struct {
	requests []*types.DecryptionRequest
}

func (n *nullClient) RequestDecryption(req *types.DecryptionRequest) error {
	n.requests = append(n.requests, req)
	return nil
}

type fixture struct {
	stg    *storage.Storage
	coord  *Coordinator
	client *nullClient
	sign   func(req *types.DecryptionRequest, voteCount, costSum uint64) *oracle.Callback
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := qt.New(t)

	stg := storage.New(metadb.NewTest(t), testutil.Scheme(t))
	key, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	verifier := oracle.NewVerifier(ethcrypto.PubkeyToAddress(key.PublicKey))
	client := &nullClient{}
	coord := New(stg, client, verifier)

	sign := func(req *types.DecryptionRequest, voteCount, costSum uint64) *oracle.Callback {
		digest := oracle.ProofDigest(req.RequestID, req.VoteCountBytes, req.CostSumBytes, voteCount, costSum)
		proof, err := ethcrypto.Sign(digest, key)
		c.Assert(err, qt.IsNil)
		return &oracle.Callback{
			RequestID: req.RequestID,
			VoteCount: voteCount,
			CostSum:   costSum,
			Proof:     proof,
		}
	}
	return &fixture{stg: stg, coord: coord, client: client, sign: sign}
}

func mkProposal(t *testing.T, stg *storage.Storage, period time.Duration) *types.Proposal {
	t.Helper()
	title, err := testutil.Scheme(t).Encrypt(0)
	if err != nil {
		t.Fatalf("encrypt title: %v", err)
	}
	p, err := stg.CreateProposal(title, title, period)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	return p
}

func TestRequestDecryptionStillOpen(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	p := mkProposal(t, f.stg, time.Hour)

	_, err := f.coord.RequestDecryption(p.ID)
	c.Assert(err, qt.ErrorIs, types.ErrVotingStillOpen)
	c.Assert(f.client.requests, qt.HasLen, 0)
}

func TestRequestDecryptionOncePending(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	p := mkProposal(t, f.stg, time.Nanosecond)
	time.Sleep(time.Millisecond)

	requestID, err := f.coord.RequestDecryption(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(requestID, qt.Not(qt.Equals), "")
	c.Assert(f.client.requests, qt.HasLen, 1)

	_, err = f.coord.RequestDecryption(p.ID)
	c.Assert(err, qt.ErrorIs, types.ErrRequestAlreadyPending)
}

// The request id is never derived from the proposal id.
func TestRequestIDsAreUnique(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	a := mkProposal(t, f.stg, time.Nanosecond)
	b := mkProposal(t, f.stg, time.Nanosecond)
	time.Sleep(time.Millisecond)

	idA, err := f.coord.RequestDecryption(a.ID)
	c.Assert(err, qt.IsNil)
	idB, err := f.coord.RequestDecryption(b.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(idA, qt.Not(qt.Equals), idB)
}

func TestFulfillRecordsTallies(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	p := mkProposal(t, f.stg, time.Nanosecond)
	time.Sleep(time.Millisecond)

	var decrypted []types.ProposalID
	f.coord.OnDecrypted(func(id types.ProposalID) { decrypted = append(decrypted, id) })

	_, err := f.coord.RequestDecryption(p.ID)
	c.Assert(err, qt.IsNil)
	req := f.client.requests[0]

	c.Assert(f.coord.Fulfill(f.sign(req, 6, 20)), qt.IsNil)

	got, err := f.stg.Proposal(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(*got.DecryptedVoteCount, qt.Equals, uint64(6))
	c.Assert(*got.DecryptedCostSum, qt.Equals, uint64(20))
	c.Assert(decrypted, qt.DeepEquals, []types.ProposalID{p.ID})

	// Repeated delivery is rejected.
	c.Assert(f.coord.Fulfill(f.sign(req, 6, 20)), qt.ErrorIs, types.ErrAlreadyFulfilled)
}

func TestFulfillUnknownRequest(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	err := f.coord.Fulfill(&oracle.Callback{RequestID: "never-issued"})
	c.Assert(err, qt.ErrorIs, types.ErrUnknownRequest)
}

func TestFulfillForgedProof(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	p := mkProposal(t, f.stg, time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, err := f.coord.RequestDecryption(p.ID)
	c.Assert(err, qt.IsNil)
	req := f.client.requests[0]

	// Signed by an unknown key.
	forger, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	digest := oracle.ProofDigest(req.RequestID, req.VoteCountBytes, req.CostSumBytes, 6, 20)
	proof, err := ethcrypto.Sign(digest, forger)
	c.Assert(err, qt.IsNil)

	err = f.coord.Fulfill(&oracle.Callback{RequestID: req.RequestID, VoteCount: 6, CostSum: 20, Proof: proof})
	c.Assert(err, qt.ErrorIs, types.ErrInvalidProof)

	// The proposal stays undecrypted; a valid callback still lands.
	got, err := f.stg.Proposal(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.DecryptedVoteCount, qt.IsNil)
	c.Assert(f.coord.Fulfill(f.sign(req, 6, 20)), qt.IsNil)
}

func TestAbandonAllowsReRequest(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)
	p := mkProposal(t, f.stg, time.Nanosecond)
	time.Sleep(time.Millisecond)

	requestID, err := f.coord.RequestDecryption(p.ID)
	c.Assert(err, qt.IsNil)

	c.Assert(f.coord.Abandon(requestID), qt.IsNil)

	fresh, err := f.coord.RequestDecryption(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(fresh, qt.Not(qt.Equals), requestID)
}

// chanClient delivers dispatched requests on a channel, for tests that
// observe dispatches from the coordinator's own goroutines.
type chanClient struct {
	ch chan *types.DecryptionRequest
}

func (cc *chanClient) RequestDecryption(req *types.DecryptionRequest) error {
	cc.ch <- req
	return nil
}

// The monitor must request decryption of a closed proposal on its own, with
// no on-demand trigger.
func TestMonitorRequestsClosedProposals(t *testing.T) {
	c := qt.New(t)

	stg := storage.New(metadb.NewTest(t), testutil.Scheme(t))
	key, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	client := &chanClient{ch: make(chan *types.DecryptionRequest, 1)}
	coord := New(stg, client, oracle.NewVerifier(ethcrypto.PubkeyToAddress(key.PublicKey)))

	p := mkProposal(t, stg, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coord.Start(ctx, 20*time.Millisecond)
	defer coord.Close()

	select {
	case req := <-client.ch:
		c.Assert(req.ProposalID, qt.Equals, p.ID)
		c.Assert(req.Status, qt.Equals, types.RequestStatusPending)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor never requested decryption of the closed proposal")
	}

	// The pending request keeps the monitor from issuing a second one.
	stored, err := stg.PendingRequest(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.ProposalID, qt.Equals, p.ID)
	select {
	case req := <-client.ch:
		t.Fatalf("monitor re-requested decryption: %s", req.RequestID)
	case <-time.After(60 * time.Millisecond):
	}
}

// End to end with the in-process authority: a vote is cast, the proposal
// closes, the authority decrypts and its signed callback lands back.
func TestEndToEndWithAuthority(t *testing.T) {
	c := qt.New(t)

	stg := storage.New(metadb.NewTest(t), testutil.Scheme(t))
	key, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)

	var coord *Coordinator
	authority := oracle.NewAuthority(testutil.Decryptor(t), key, func(cb *oracle.Callback) {
		if err := coord.Fulfill(cb); err != nil {
			t.Errorf("fulfill: %v", err)
		}
	})
	coord = New(stg, authority, oracle.NewVerifier(authority.Address()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	authority.Start(ctx)
	defer authority.Close()
	coord.Start(ctx, 0)
	defer coord.Close()

	p := mkProposal(t, stg, 50*time.Millisecond)

	s := testutil.Scheme(t)
	member := testutil.DeterministicAddress(60)
	_, err = stg.Deposit(member, 100)
	c.Assert(err, qt.IsNil)
	votes, err := s.Encrypt(3)
	c.Assert(err, qt.IsNil)
	cost, err := s.Mul(votes, votes)
	c.Assert(err, qt.IsNil)
	_, _, err = stg.CommitVote(p.ID, member, votes, cost, 9, time.Now())
	c.Assert(err, qt.IsNil)

	time.Sleep(60 * time.Millisecond) // let the proposal close

	_, err = coord.RequestDecryption(p.ID)
	c.Assert(err, qt.IsNil)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	voteCount, costSum, err := coord.WaitUntilDecrypted(waitCtx, p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(voteCount, qt.Equals, uint64(3))
	c.Assert(costSum, qt.Equals, uint64(9))
}
