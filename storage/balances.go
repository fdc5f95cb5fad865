package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/db/prefixeddb"
	"github.com/quadravote/qvnode/types"
)

// Balance returns the member's funding balance. Members never deposited to
// have a balance of zero; there is no notion of an unknown member.
func (s *Storage) Balance(member common.Address) (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.balanceUnsafe(member)
}

// balanceUnsafe reads a balance without taking the lock; callers must hold it.
func (s *Storage) balanceUnsafe(member common.Address) (uint64, error) {
	data, err := prefixeddb.NewPrefixedReader(s.db, balancePrefix).Get(member.Bytes())
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance of %s: %w", member, err)
	}
	return binary.BigEndian.Uint64(data), nil
}

// Deposit credits the member's balance and returns the new balance. A
// deposit that would overflow the balance is rejected whole with
// types.ErrOverflow; no partial credit is applied.
func (s *Storage) Deposit(member common.Address, amount uint64) (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	balance, err := s.balanceUnsafe(member)
	if err != nil {
		return 0, err
	}
	if amount > math.MaxUint64-balance {
		return balance, fmt.Errorf("deposit %d to %s: %w", amount, member, types.ErrOverflow)
	}
	newBalance := balance + amount
	if err := s.writeBalance(member, newBalance); err != nil {
		return balance, err
	}
	return newBalance, nil
}

// Withdraw debits the member's balance and returns the new balance. Returns
// types.ErrInsufficientBalance if the member holds less than amount.
func (s *Storage) Withdraw(member common.Address, amount uint64) (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	balance, err := s.balanceUnsafe(member)
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return balance, fmt.Errorf("withdraw %d from %s with balance %d: %w",
			amount, member, balance, types.ErrInsufficientBalance)
	}
	newBalance := balance - amount
	if err := s.writeBalance(member, newBalance); err != nil {
		return balance, err
	}
	return newBalance, nil
}

func (s *Storage) writeBalance(member common.Address, balance uint64) error {
	wTx := prefixeddb.NewPrefixedDatabase(s.db, balancePrefix).WriteTx()
	defer wTx.Discard()
	if err := setBalanceTx(wTx, member, balance); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("write balance of %s: %w", member, err)
	}
	return nil
}

// setBalanceTx writes a balance into a caller-owned transaction. The tx must
// already be scoped to the balance prefix, or be wrapped by the caller.
func setBalanceTx(tx db.WriteTx, member common.Address, balance uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, balance)
	return tx.Set(member.Bytes(), buf)
}
