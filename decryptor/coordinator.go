// Package decryptor coordinates the two-phase tally decryption protocol:
// issuing requests for closed proposals and applying verified callbacks from
// the external decryption mechanism.
package decryptor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/log"
	"github.com/quadravote/qvnode/oracle"
	"github.com/quadravote/qvnode/storage"
	"github.com/quadravote/qvnode/types"
)

// Coordinator owns all decryption request transitions. At most one request
// per proposal is pending at any time; results are only accepted with a
// proof bound to the request id and the exact ciphertext pair submitted.
type Coordinator struct {
	stg      *storage.Storage
	client   oracle.Client
	verifier *oracle.Verifier

	// OndemandCh receives proposal ids to request decryption for.
	OndemandCh chan types.ProposalID

	// onDecrypted, if set, is invoked after a proposal's tallies are
	// recorded. Used to surface the tally-decrypted notification.
	onDecrypted func(id types.ProposalID)

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Coordinator dispatching requests through client and
// verifying callbacks with verifier.
func New(stg *storage.Storage, client oracle.Client, verifier *oracle.Verifier) *Coordinator {
	return &Coordinator{
		stg:        stg,
		client:     client,
		verifier:   verifier,
		OndemandCh: make(chan types.ProposalID, 10),
	}
}

// OnDecrypted registers a callback invoked after each successful
// decryption. Must be called before Start.
func (c *Coordinator) OnDecrypted(fn func(id types.ProposalID)) {
	c.onDecrypted = fn
}

// Start launches the coordinator. It listens for on-demand requests on
// OndemandCh and, if monitorInterval > 0, periodically requests decryption
// of every closed proposal that has neither tallies nor a pending request.
// Requests left pending by a previous run are re-dispatched once.
func (c *Coordinator) Start(ctx context.Context, monitorInterval time.Duration) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.recover(); err != nil {
		log.Errorw(err, "failed to re-dispatch pending decryption requests")
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case pid := <-c.OndemandCh:
				if _, err := c.RequestDecryption(pid); err != nil {
					log.Errorw(err, fmt.Sprintf("requesting decryption of proposal %d", pid))
				}
			case <-c.ctx.Done():
				return
			}
		}
	}()

	if monitorInterval > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			ticker := time.NewTicker(monitorInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.requestClosed(time.Now())
				case <-c.ctx.Done():
					return
				}
			}
		}()
	}

	log.Infow("decryption coordinator started")
}

// Close stops the coordinator and waits for its goroutines to exit.
func (c *Coordinator) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.wg.Wait()
}

// recover re-dispatches every request that was pending when the node shut
// down. The external mechanism deduplicates by request id.
func (c *Coordinator) recover() error {
	pending, err := c.stg.ListPendingRequests()
	if err != nil {
		return err
	}
	for _, req := range pending {
		log.Infow("re-dispatching pending decryption request",
			"requestId", req.RequestID, "proposalId", uint64(req.ProposalID))
		if err := c.client.RequestDecryption(req); err != nil {
			log.Errorw(err, fmt.Sprintf("re-dispatching request %s", req.RequestID))
		}
	}
	return nil
}

// requestClosed enqueues a decryption request for every closed proposal
// without tallies or a pending request.
func (c *Coordinator) requestClosed(now time.Time) {
	ids, err := c.stg.ListClosedUndecrypted(now)
	if err != nil {
		log.Errorw(err, "could not list closed proposals")
		return
	}
	for _, id := range ids {
		if _, err := c.stg.PendingRequest(id); err == nil {
			continue
		} else if !errors.Is(err, db.ErrKeyNotFound) {
			log.Errorw(err, fmt.Sprintf("checking pending request of proposal %d", id))
			continue
		}
		select {
		case c.OndemandCh <- id:
		default:
			return
		}
	}
}

// RequestDecryption snapshots the proposal's accumulator ciphertexts,
// records a new pending request under a fresh unique request id and hands
// it to the external mechanism. Fails with types.ErrVotingStillOpen while
// the proposal is open, types.ErrAlreadyDecrypted once tallies are known
// and types.ErrRequestAlreadyPending while a request is outstanding.
func (c *Coordinator) RequestDecryption(id types.ProposalID) (string, error) {
	p, err := c.stg.Proposal(id)
	if err != nil {
		return "", err
	}
	switch p.Status(time.Now()) {
	case types.ProposalStatusOpen:
		return "", fmt.Errorf("request decryption of proposal %d: %w", id, types.ErrVotingStillOpen)
	case types.ProposalStatusDecrypted:
		return "", fmt.Errorf("request decryption of proposal %d: %w", id, types.ErrAlreadyDecrypted)
	}

	req := &types.DecryptionRequest{
		RequestID:      uuid.NewString(),
		ProposalID:     id,
		VoteCountBytes: p.EncryptedVoteCount.Bytes(),
		CostSumBytes:   p.EncryptedCostSum.Bytes(),
		Status:         types.RequestStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := c.stg.CreateRequest(req); err != nil {
		return "", err
	}
	if err := c.client.RequestDecryption(req); err != nil {
		// The request stays pending; it is re-dispatched on the next
		// restart, or an operator abandons it and re-requests.
		log.Errorw(err, fmt.Sprintf("dispatching decryption request %s", req.RequestID))
	}
	log.Infow("decryption requested", "requestId", req.RequestID, "proposalId", uint64(id))
	return req.RequestID, nil
}

// Fulfill applies a decryption callback. The proof must verify against the
// request id and the ciphertext pair recorded at request time; any failure
// leaves the proposal untouched and is never retried from this side.
func (c *Coordinator) Fulfill(cb *oracle.Callback) error {
	req, err := c.stg.Request(cb.RequestID)
	if err != nil {
		return err
	}
	if req.Status == types.RequestStatusFulfilled {
		return fmt.Errorf("request %q: %w", cb.RequestID, types.ErrAlreadyFulfilled)
	}
	if err := c.verifier.Verify(req, cb); err != nil {
		log.Warnw("rejected decryption callback with invalid proof",
			"requestId", cb.RequestID, "proposalId", uint64(req.ProposalID))
		return err
	}
	if _, err := c.stg.FulfillRequest(cb.RequestID, cb.VoteCount, cb.CostSum, time.Now()); err != nil {
		return err
	}
	log.Infow("tally decrypted", "proposalId", uint64(req.ProposalID),
		"voteCount", cb.VoteCount, "costSum", cb.CostSum)
	if c.onDecrypted != nil {
		c.onDecrypted(req.ProposalID)
	}
	return nil
}

// Abandon declares a pending request dead, re-enabling a fresh request for
// its proposal. This is an operator action; the coordinator never times a
// request out on its own.
func (c *Coordinator) Abandon(requestID string) error {
	if err := c.stg.AbandonRequest(requestID, time.Now()); err != nil {
		return err
	}
	log.Warnw("decryption request abandoned", "requestId", requestID)
	return nil
}

// WaitUntilDecrypted polls until the proposal's tallies are recorded,
// returning (voteCount, costSum). Applies a 60 second default timeout when
// ctx carries no deadline.
func (c *Coordinator) WaitUntilDecrypted(ctx context.Context, id types.ProposalID) (uint64, uint64, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p, err := c.stg.Proposal(id)
			if err != nil {
				return 0, 0, err
			}
			if p.DecryptedVoteCount != nil && p.DecryptedCostSum != nil {
				return *p.DecryptedVoteCount, *p.DecryptedCostSum, nil
			}
		case <-ctx.Done():
			return 0, 0, fmt.Errorf("waiting for proposal %d tallies: %w", id, ctx.Err())
		}
	}
}
