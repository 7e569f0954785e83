package domain

import (
	"testing"

	"core-ledger/pkg/money"

	"github.com/stretchr/testify/assert"
)

func TestTransactionKind_Valid(t *testing.T) {
	assert.True(t, TransactionKindDeposit.Valid())
	assert.True(t, TransactionKindWithdrawal.Valid())
	assert.True(t, TransactionKindTransfer.Valid())
	assert.False(t, TransactionKind("REFUND").Valid())
	assert.False(t, TransactionKind("").Valid())
}

func TestTransaction_EffectOn(t *testing.T) {
	transfer := &Transaction{
		FromAccountID: ID(1),
		ToAccountID:   ID(2),
		Amount:        money.RequireFromString("300.00"),
		Kind:          TransactionKindTransfer,
	}

	assert.Equal(t, "-300.00", transfer.EffectOn(1).String())
	assert.Equal(t, "300.00", transfer.EffectOn(2).String())
	assert.True(t, transfer.EffectOn(3).IsZero())

	assert.True(t, transfer.Involves(1))
	assert.True(t, transfer.Involves(2))
	assert.False(t, transfer.Involves(3))

	deposit := &Transaction{ToAccountID: ID(5), Amount: money.RequireFromString("1.10"), Kind: TransactionKindDeposit}
	assert.Equal(t, "1.10", deposit.EffectOn(5).String())
	assert.False(t, deposit.Involves(1))
}

func TestParseHistoryOrder(t *testing.T) {
	tests := []struct {
		input string
		want  HistoryOrder
		ok    bool
	}{
		{"", OrderNewestFirst, true},
		{"desc", OrderNewestFirst, true},
		{"asc", OrderChronological, true},
		{"chronological", OrderChronological, true},
		{"sideways", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseHistoryOrder(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccountsByID(t *testing.T) {
	byID := AccountsByID([]Account{{ID: 1, Name: "Checking"}, {ID: 4, Name: "Savings"}})
	assert.Len(t, byID, 2)
	assert.Equal(t, "Savings", byID[4].Name)
}

func TestBuildIdempotencyKey(t *testing.T) {
	assert.Equal(t, "POST:/api/v1/transfers:abc", BuildIdempotencyKey("POST", "/api/v1/transfers", "abc"))
}

func TestHashRequest(t *testing.T) {
	a := HashRequest([]byte(`{"amount":"1.00"}`))
	b := HashRequest([]byte(`{"amount":"2.00"}`))

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashRequest([]byte(`{"amount":"1.00"}`)))
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(EventAccountCreated, nil, Account{ID: 1, Name: "Cash"})

	assert.Equal(t, EventAccountCreated, ev.Type)
	assert.NotEmpty(t, ev.ID.String())
	assert.Len(t, ev.Accounts, 1)
	assert.False(t, ev.OccurredAt.IsZero())
}
