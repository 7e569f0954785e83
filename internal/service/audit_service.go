package service

import (
	"context"
	"fmt"
	"sync"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// AuditServiceImpl implements ports.AuditService.
type AuditServiceImpl struct {
	repo ports.AuditRepository
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// NewAuditService creates a new audit service.
// If repo is nil, audit logs are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{repo: repo, log: log}
}

// Log records an audit entry asynchronously (fire-and-forget).
func (s *AuditServiceImpl) Log(_ context.Context, entry *domain.AuditLog) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info().
			Str("action", string(entry.Action)).
			Str("resource_type", entry.ResourceType).
			Str("resource_id", entry.ResourceID).
			Int("outcome", entry.Outcome).
			Str("ip", entry.IPAddress).
			Str("request_id", entry.RequestID).
			Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), entry); err != nil {
				s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
			}
		}
	}()
}

// Recent returns the newest persisted entries.
func (s *AuditServiceImpl) Recent(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if s.repo == nil {
		return []domain.AuditLog{}, nil
	}
	logs, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

// Wait blocks until every pending entry is persisted.
func (s *AuditServiceImpl) Wait() {
	s.wg.Wait()
}
