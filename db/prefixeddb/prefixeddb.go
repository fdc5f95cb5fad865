// Package prefixeddb wraps a db.Database restricting all operations to a
// key namespace prefix. Iteration callbacks receive keys with the prefix
// stripped.
package prefixeddb

import (
	"bytes"

	"github.com/quadravote/qvnode/db"
)

// PrefixedDatabase restricts a db.Database to a key prefix.
type PrefixedDatabase struct {
	db     db.Database
	prefix []byte
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase returns a view of d restricted to prefix.
func NewPrefixedDatabase(d db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{db: d, prefix: bytes.Clone(prefix)}
}

func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(append(bytes.Clone(d.prefix), key...))
}

func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	full := append(bytes.Clone(d.prefix), prefix...)
	return d.db.Iterate(full, func(k, v []byte) bool {
		return callback(k[len(d.prefix):], v)
	})
}

func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// Close is a no-op; the underlying database owns its lifecycle.
func (d *PrefixedDatabase) Close() error { return nil }

// Compact delegates to the underlying database.
func (d *PrefixedDatabase) Compact() error { return d.db.Compact() }

// PrefixedReader restricts a db.Reader to a key prefix.
type PrefixedReader struct {
	reader db.Reader
	prefix []byte
}

var _ db.Reader = (*PrefixedReader)(nil)

// NewPrefixedReader returns a read-only view of r restricted to prefix.
func NewPrefixedReader(r db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{reader: r, prefix: bytes.Clone(prefix)}
}

func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(append(bytes.Clone(r.prefix), key...))
}

func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	full := append(bytes.Clone(r.prefix), prefix...)
	return r.reader.Iterate(full, func(k, v []byte) bool {
		return callback(k[len(r.prefix):], v)
	})
}

// PrefixedWriteTx restricts a db.WriteTx to a key prefix. Commit and
// Discard act on the wrapped transaction, so several prefixed views of the
// same transaction commit together.
type PrefixedWriteTx struct {
	tx     db.WriteTx
	prefix []byte
}

var _ db.WriteTx = (*PrefixedWriteTx)(nil)

// NewPrefixedWriteTx returns a view of tx restricted to prefix.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{tx: tx, prefix: bytes.Clone(prefix)}
}

func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(append(bytes.Clone(t.prefix), key...))
}

func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	full := append(bytes.Clone(t.prefix), prefix...)
	return t.tx.Iterate(full, func(k, v []byte) bool {
		return callback(k[len(t.prefix):], v)
	})
}

func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(append(bytes.Clone(t.prefix), key...), value)
}

func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(append(bytes.Clone(t.prefix), key...))
}

func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	return other.Iterate(nil, func(k, v []byte) bool {
		return t.Set(k, v) == nil
	})
}

// Unwrap returns the wrapped transaction, so callers can combine prefixed
// views with direct writes in the same atomic commit.
func (t *PrefixedWriteTx) Unwrap() db.WriteTx { return t.tx }

func (t *PrefixedWriteTx) Commit() error { return t.tx.Commit() }

func (t *PrefixedWriteTx) Discard() { t.tx.Discard() }
