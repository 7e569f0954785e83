package memory

import (
	"context"
	"sync"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
)

// DefaultAuditCapacity bounds the in-memory audit trail.
const DefaultAuditCapacity = 1000

type auditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
	next    int
	full    bool
}

// NewAuditRepository creates a ring-buffered AuditRepository that keeps the
// newest capacity entries.
func NewAuditRepository(capacity int) ports.AuditRepository {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &auditRepo{entries: make([]domain.AuditLog, capacity)}
}

func (r *auditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = *entry
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

func (r *auditRepo) ListRecent(_ context.Context, limit int) ([]domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	result := make([]domain.AuditLog, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.entries)) % len(r.entries)
		result = append(result, r.entries[idx])
	}
	return result, nil
}
