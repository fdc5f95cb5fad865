package oracle

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/quadravote/qvnode/crypto/homomorphic"
	"github.com/quadravote/qvnode/crypto/homomorphic/bgv"
	"github.com/quadravote/qvnode/log"
	"github.com/quadravote/qvnode/types"
)

// CallbackSink receives decryption results produced by the Authority.
type CallbackSink func(cb *Callback)

// Authority is an in-process decryption authority. It holds the scheme
// secret key and a secp256k1 signing key, decrypts requests asynchronously
// and delivers a signed Callback to the configured sink. Production
// deployments replace this with a Client talking to an external threshold
// committee; the wire contract is identical.
type Authority struct {
	dec     *bgv.Decryptor
	signKey *ecdsa.PrivateKey
	sink    CallbackSink

	reqCh  chan *types.DecryptionRequest
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAuthority creates an Authority decrypting with dec and signing proofs
// with signKey. The sink is invoked from the authority's own goroutine once
// Start has been called.
func NewAuthority(dec *bgv.Decryptor, signKey *ecdsa.PrivateKey, sink CallbackSink) *Authority {
	return &Authority{
		dec:     dec,
		signKey: signKey,
		sink:    sink,
		reqCh:   make(chan *types.DecryptionRequest, 32),
	}
}

// Address returns the address callbacks from this authority verify against.
func (a *Authority) Address() common.Address {
	return ethcrypto.PubkeyToAddress(a.signKey.PublicKey)
}

// Start launches the background worker serving decryption requests.
func (a *Authority) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-a.reqCh:
				cb, err := a.serve(req)
				if err != nil {
					log.Errorw(err, fmt.Sprintf("could not serve decryption request %s", req.RequestID))
					continue
				}
				a.sink(cb)
			}
		}
	}()
}

// Close stops the worker and waits for it to drain.
func (a *Authority) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// RequestDecryption implements Client by enqueueing the request for the
// background worker.
func (a *Authority) RequestDecryption(req *types.DecryptionRequest) error {
	select {
	case a.reqCh <- req:
		return nil
	default:
		return fmt.Errorf("decryption authority queue is full")
	}
}

// serve decrypts both accumulators and signs the result.
func (a *Authority) serve(req *types.DecryptionRequest) (*Callback, error) {
	voteCount, err := a.dec.Decrypt(homomorphic.NewCiphertext(req.VoteCountBytes))
	if err != nil {
		return nil, fmt.Errorf("decrypt vote count: %w", err)
	}
	costSum, err := a.dec.Decrypt(homomorphic.NewCiphertext(req.CostSumBytes))
	if err != nil {
		return nil, fmt.Errorf("decrypt cost sum: %w", err)
	}
	if voteCount > types.MaxTallyValue || costSum > types.MaxTallyValue {
		return nil, fmt.Errorf("decrypted tally out of range (%d, %d)", voteCount, costSum)
	}
	digest := ProofDigest(req.RequestID, req.VoteCountBytes, req.CostSumBytes, voteCount, costSum)
	proof, err := ethcrypto.Sign(digest, a.signKey)
	if err != nil {
		return nil, fmt.Errorf("sign decryption proof: %w", err)
	}
	return &Callback{
		RequestID: req.RequestID,
		VoteCount: voteCount,
		CostSum:   costSum,
		Proof:     proof,
	}, nil
}
