package memory

import (
	"context"
	"sync"
	"time"

	"shepherd/internal/audit"
	id "shepherd/pkg/domain"
)

// Store keeps audit events in memory for dev environments and tests.
// The clock is injectable so tests can pin timestamps.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an in-memory audit store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append assigns the event ID and a server-side timestamp, then stores a copy.
// The input's CreatedAt is ignored.
func (s *Store) Append(_ context.Context, event audit.Event) (id.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = id.NewEventID()
	event.CreatedAt = s.now()
	s.events = append(s.events, event)
	return event.ID, nil
}

// List returns matching events, newest first.
func (s *Store) List(_ context.Context, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
