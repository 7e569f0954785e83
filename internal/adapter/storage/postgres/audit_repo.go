package postgres

import (
	"context"
	"fmt"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
)

type auditRepo struct {
	pool Pool
}

// NewAuditRepository creates a PostgreSQL-backed AuditRepository.
func NewAuditRepository(pool Pool) ports.AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, subject, action, resource_type, resource_id, outcome, details, ip_address, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID, log.Subject, string(log.Action), log.ResourceType, log.ResourceID,
		log.Outcome, log.Details, log.IPAddress, log.RequestID, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *auditRepo) ListRecent(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, subject, action, resource_type, resource_id, outcome, details, ip_address, request_id, created_at
		 FROM audit_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0)
	for rows.Next() {
		var l domain.AuditLog
		var action string
		if err := rows.Scan(&l.ID, &l.Subject, &action, &l.ResourceType, &l.ResourceID,
			&l.Outcome, &l.Details, &l.IPAddress, &l.RequestID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		l.Action = domain.AuditAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return logs, nil
}
