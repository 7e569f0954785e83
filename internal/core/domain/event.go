package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed ledger change.
type EventType string

const (
	EventAccountCreated     EventType = "account.created"
	EventAccountDeleted     EventType = "account.deleted"
	EventTransactionCreated EventType = "transaction.created"
)

// Event is published after a unit of work commits. Accounts holds the
// post-commit state of every account the change touched.
type Event struct {
	ID          uuid.UUID    `json:"id"`
	Type        EventType    `json:"type"`
	Accounts    []Account    `json:"accounts,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// NewEvent stamps a fresh id and time.
func NewEvent(t EventType, tx *Transaction, accounts ...Account) Event {
	return Event{
		ID:          uuid.New(),
		Type:        t,
		Accounts:    accounts,
		Transaction: tx,
		OccurredAt:  time.Now().UTC(),
	}
}
