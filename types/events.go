package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind enumerates the observable side effects the ledger emits for
// external audit and indexing. Events never carry vote-count information.
type EventKind string

const (
	EventProposalCreated EventKind = "proposal_created"
	EventVoteCast        EventKind = "vote_cast"
	EventTallyDecrypted  EventKind = "tally_decrypted"
)

// Event is a single ledger notification. Member is only set for
// EventVoteCast; EndTime only for EventProposalCreated.
type Event struct {
	Kind       EventKind      `json:"kind"`
	ProposalID ProposalID     `json:"proposalId"`
	Member     common.Address `json:"member,omitempty"`
	EndTime    time.Time      `json:"endTime,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
