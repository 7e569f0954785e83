package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// HealthCheck implements ports.HealthChecker for the embedded store.
type HealthCheck struct {
	store *Store
}

// NewHealthCheck creates an embedded store health checker.
func NewHealthCheck(store *Store) *HealthCheck {
	return &HealthCheck{store: store}
}

// Ping checks that the snapshot directory is reachable and the current
// snapshot still loads.
func (h *HealthCheck) Ping(_ context.Context) error {
	if h.store.path == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Dir(h.store.path)); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	return h.store.refresh()
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	if h.store.path == "" {
		return "memory"
	}
	return "snapshot"
}
