package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateAccount AuditAction = "CREATE_ACCOUNT"
	AuditActionDeleteAccount AuditAction = "DELETE_ACCOUNT"
	AuditActionDeposit       AuditAction = "DEPOSIT"
	AuditActionWithdraw      AuditAction = "WITHDRAW"
	AuditActionTransfer      AuditAction = "TRANSFER"
	AuditActionSimulate      AuditAction = "SIMULATE"
)

// AuditLog records a single API call that attempted a ledger mutation,
// whatever its outcome.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Subject      string      `json:"subject,omitempty"` // token subject when auth is on
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Outcome      int         `json:"outcome"` // HTTP status
	Details      string      `json:"details,omitempty"`
	IPAddress    string      `json:"ip_address"`
	RequestID    string      `json:"request_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
