// Package db defines the key-value database abstraction used by the node.
// Implementations live in the subpackages (pebbledb, goleveldb, inmemory);
// metadb picks one by type name.
package db

import "errors"

// ErrKeyNotFound is returned when a key is not found in the database.
var ErrKeyNotFound = errors.New("key not found")

// Available database types.
const (
	TypePebble   = "pebble"
	TypeLevelDB  = "leveldb"
	TypeInMemory = "inmemory"
)

// Options defines generic database configuration.
type Options struct {
	Path string
}

// Database is the interface to a key-value database with transactions.
type Database interface {
	Reader
	// WriteTx creates a new write transaction.
	WriteTx() WriteTx
	// Close closes the database.
	Close() error
	// Compact triggers a database compaction, if the backend supports it.
	Compact() error
}

// Reader is the read-only part of a Database or a transaction.
type Reader interface {
	// Get retrieves the value for the given key. Returns ErrKeyNotFound
	// if the key does not exist.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback with all key-value pairs whose key starts
	// with prefix, in lexicographic key order, until the callback returns
	// false. The callback must not hold on to the key or value slices.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a transaction that can be committed atomically. Writes are
// not visible to other readers until Commit. A WriteTx must be terminated
// by exactly one call to Commit or Discard; Discard after Commit is a
// no-op, so `defer tx.Discard()` is the usual pattern.
type WriteTx interface {
	Reader
	// Set adds or updates a key-value pair in the transaction.
	Set(key, value []byte) error
	// Delete removes a key from the transaction.
	Delete(key []byte) error
	// Apply copies every key-value pair of the other transaction into
	// this one.
	Apply(other WriteTx) error
	// Commit atomically applies all pending writes.
	Commit() error
	// Discard drops all pending writes.
	Discard()
}
