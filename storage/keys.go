package storage

import (
	"errors"
	"fmt"

	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/db/prefixeddb"
)

// SchemeKeys is the persisted key material of the node: the homomorphic
// scheme keys plus the authority's proof signing key. Everything is kept as
// the opaque canonical bytes of the owning library.
type SchemeKeys struct {
	Name      string `cbor:"1,keyasint"`
	SecretKey []byte `cbor:"2,keyasint"`
	PublicKey []byte `cbor:"3,keyasint"`
	RelinKey  []byte `cbor:"4,keyasint"`
	SignKey   []byte `cbor:"5,keyasint"`
}

var schemeKeysKey = []byte("keys")

// LoadSchemeKeys retrieves the persisted key material. These helpers operate
// directly on the database because the scheme, and therefore the Storage
// instance, can only be constructed after the keys are known. Returns
// db.ErrKeyNotFound on first boot.
func LoadSchemeKeys(d db.Database) (*SchemeKeys, error) {
	data, err := prefixeddb.NewPrefixedReader(d, schemeKeyPrefix).Get(schemeKeysKey)
	if err != nil {
		return nil, err
	}
	keys := &SchemeKeys{}
	if err := DecodeArtifact(data, keys); err != nil {
		return nil, fmt.Errorf("decode scheme keys: %w", err)
	}
	return keys, nil
}

// StoreSchemeKeys persists the key material. Existing keys are never
// overwritten; rotating them would orphan every stored ciphertext.
func StoreSchemeKeys(d db.Database, keys *SchemeKeys) error {
	if _, err := prefixeddb.NewPrefixedReader(d, schemeKeyPrefix).Get(schemeKeysKey); err == nil {
		return fmt.Errorf("scheme keys already stored")
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("check scheme keys: %w", err)
	}
	data, err := EncodeArtifact(keys)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedDatabase(d, schemeKeyPrefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(schemeKeysKey, data); err != nil {
		return err
	}
	return wTx.Commit()
}
