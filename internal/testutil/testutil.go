// Package testutil provides shared helpers for tests: deterministic member
// addresses and a process-wide homomorphic key set, generated once because
// lattice key generation is the slowest part of any test run.
package testutil

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/quadravote/qvnode/crypto/homomorphic/bgv"
)

var (
	keySetOnce sync.Once
	keySet     *bgv.KeySet
	keySetErr  error
)

// KeySet returns a process-wide homomorphic key set, generating it on first
// use.
func KeySet(tb testing.TB) *bgv.KeySet {
	tb.Helper()
	keySetOnce.Do(func() {
		keySet, keySetErr = bgv.GenerateKeySet()
	})
	if keySetErr != nil {
		tb.Fatalf("generate key set: %v", keySetErr)
	}
	return keySet
}

// Scheme returns a homomorphic scheme backed by the shared key set.
func Scheme(tb testing.TB) *bgv.Scheme {
	tb.Helper()
	s, err := bgv.New(KeySet(tb))
	if err != nil {
		tb.Fatalf("new scheme: %v", err)
	}
	return s
}

// Decryptor returns a decryptor for the shared key set.
func Decryptor(tb testing.TB) *bgv.Decryptor {
	tb.Helper()
	d, err := bgv.NewDecryptor(KeySet(tb))
	if err != nil {
		tb.Fatalf("new decryptor: %v", err)
	}
	return d
}

// DeterministicAddress returns a deterministic member address for n.
func DeterministicAddress(n uint64) common.Address {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)

	prefix := []byte("deterministic-address:")
	h := crypto.Keccak256(append(prefix, b[:]...))
	return common.BytesToAddress(h[12:])
}
