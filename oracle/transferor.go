package oracle

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/quadravote/qvnode/log"
)

// FundTransferor is notified when a member withdraws funds from the
// ledger. Implementations move the corresponding value on the external
// system of record (a token contract, a bank adapter). A notification
// failure does not roll back the ledger withdrawal.
type FundTransferor interface {
	Transfer(member common.Address, amount uint64) error
}

// LogTransferor is a FundTransferor that only records the transfer. It is
// the default when no external settlement backend is configured.
type LogTransferor struct{}

func (LogTransferor) Transfer(member common.Address, amount uint64) error {
	log.Infow("funds withdrawal settled", "member", member.Hex(), "amount", amount)
	return nil
}
