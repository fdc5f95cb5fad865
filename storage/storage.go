/*
Package storage provides the persistent layer of the quadratic voting node.

# Storage Organization

The storage uses a key-value database with prefixed namespaces:

## Proposals
- p/  : proposalID (8-byte big-endian) → Proposal (title/details ciphertexts,
  the two encrypted accumulators, times, decrypted tallies once known)
- pc/ : the monotonic proposal id counter

## Votes
- vr/ : proposalID + member address → VoteRecord (the double-vote guard plus
  the audit copy of the member's encrypted vote count)

## Member funding
- mb/ : member address → balance (8-byte big-endian)

## Decryption
- dr/ : requestID → DecryptionRequest (ciphertext snapshot, status, times)
- pr/ : proposalID → requestID of the single pending request, if any

## Scheme keys
- hk/ : homomorphic scheme key material and the authority signing key

All mutating operations serialize on a single global lock; multi-namespace
mutations (casting a vote touches mb/, vr/ and p/) commit through one write
transaction so a crash can never leave a deducted balance without its vote.
*/
package storage

import (
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quadravote/qvnode/crypto/homomorphic"
	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/db/prefixeddb"
	"github.com/quadravote/qvnode/log"
)

var (
	// Prefixes
	proposalPrefix        = []byte("p/")
	proposalCounterPrefix = []byte("pc/")
	voteRecordPrefix      = []byte("vr/")
	balancePrefix         = []byte("mb/")
	requestPrefix         = []byte("dr/")
	pendingRequestPrefix  = []byte("pr/")
	schemeKeyPrefix       = []byte("hk/")
)

// Storage manages all persistent artifacts of the node.
type Storage struct {
	db         db.Database
	scheme     homomorphic.Scheme
	globalLock sync.Mutex              // Lock for all mutating operations
	cache      *lru.Cache[string, any] // Cache for proposals
}

// New creates a new Storage instance over the given database, using scheme
// for accumulator initialization and homomorphic accumulation.
func New(database db.Database, scheme homomorphic.Scheme) *Storage {
	cache, err := lru.New[string, any](1000)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{
		db:     database,
		scheme: scheme,
		cache:  cache,
	}
}

// Scheme returns the homomorphic scheme the storage accumulates with.
func (s *Storage) Scheme() homomorphic.Scheme {
	return s.scheme
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Errorw(err, "failed to close storage")
	}
}

// setArtifact stores an encoded artifact under prefix/key.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedDatabase(s.db, prefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	return wTx.Commit()
}

// setArtifactTx is setArtifact over a caller-owned transaction, used when a
// single commit must cover several namespaces.
func setArtifactTx(tx db.WriteTx, prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	return prefixeddb.NewPrefixedWriteTx(tx, prefix).Set(key, data)
}

// getArtifact retrieves and decodes the artifact stored under prefix/key.
// Returns db.ErrKeyNotFound if it does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		return err
	}
	return DecodeArtifact(data, out)
}

func cacheKey(prefix, key []byte) string {
	return string(prefix) + hex.EncodeToString(key)
}
