package postgres

import (
	"context"
	"net/http"
	"testing"
	"time"

	"core-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log := &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionTransfer,
		ResourceType: "transfer",
		Outcome:      http.StatusCreated,
		IPAddress:    "127.0.0.1",
		RequestID:    "req-1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(log.ID, "", "TRANSFER", "transfer", "", http.StatusCreated, "", "127.0.0.1", "req-1", log.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewAuditRepository(mock).Create(context.Background(), log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_ListRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM audit_logs ORDER BY created_at DESC LIMIT").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "subject", "action", "resource_type", "resource_id", "outcome",
			"details", "ip_address", "request_id", "created_at",
		}).AddRow(id, "owner", "DEPOSIT", "account", "1", 201, "", "10.0.0.1", "r", time.Now().UTC()))

	logs, err := NewAuditRepository(mock).ListRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, id, logs[0].ID)
	assert.Equal(t, domain.AuditActionDeposit, logs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
