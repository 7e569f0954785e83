package events

import (
	"context"
	"errors"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
)

// Fanout delivers each event to every sink and joins their errors.
type Fanout struct {
	sinks []ports.EventPublisher
}

// NewFanout skips nil sinks.
func NewFanout(sinks ...ports.EventPublisher) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Publish implements ports.EventPublisher. A failing sink does not stop the
// others.
func (f *Fanout) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}
