package domain

import (
	"time"

	"core-ledger/pkg/money"
)

// Account is a named balance holder. Balance is never negative in any
// committed state.
type Account struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Balance   money.Money `json:"balance"`
	CreatedAt time.Time   `json:"created_at"`
}

// AccountsByID indexes accounts for lookups while rendering history.
func AccountsByID(accounts []Account) map[int64]Account {
	byID := make(map[int64]Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return byID
}
