// Package metadb constructs a db.Database from a backend type name.
package metadb

import (
	"cmp"
	"fmt"
	"os"
	"testing"

	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/db/goleveldb"
	"github.com/quadravote/qvnode/db/inmemory"
	"github.com/quadravote/qvnode/db/pebbledb"
)

// New opens a database of the given type at dir.
func New(typ, dir string) (db.Database, error) {
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		return pebbledb.New(opts)
	case db.TypeLevelDB:
		return goleveldb.New(opts)
	case db.TypeInMemory:
		return inmemory.New(opts)
	default:
		return nil, fmt.Errorf("invalid dbType: %q. Available types: %q %q %q",
			typ, db.TypePebble, db.TypeLevelDB, db.TypeInMemory)
	}
}

// ForTest returns the database type used by tests, overridable with the
// DB_TYPE environment variable.
func ForTest() (typ string) {
	return cmp.Or(os.Getenv("DB_TYPE"), db.TypePebble)
}

// NewTest returns a throwaway database for the given test, closed and
// removed when the test finishes.
func NewTest(tb testing.TB) db.Database {
	database, err := New(ForTest(), tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { _ = database.Close() })
	return database
}
