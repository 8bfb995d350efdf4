package audit

import (
	"context"
	"errors"
	"sync"
)

const memDefaultCapacity = 1024

// InMemoryStore keeps the most recent events in a ring. Used when no database is configured.
type InMemoryStore struct {
	mu   sync.Mutex
	ring []Event
	next int
	full bool
	ids  map[string]struct{}
}

// NewInMemoryStore constructs a store retaining up to capacity events (default 1024).
func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = memDefaultCapacity
	}
	return &InMemoryStore{
		ring: make([]Event, capacity),
		ids:  make(map[string]struct{}, capacity),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// Append records ev, evicting the oldest event when full.
func (s *InMemoryStore) Append(ctx context.Context, ev Event) error {
	if ev.ID == "" || ev.SessionID == "" {
		return errors.New("audit: invalid event")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.ids[ev.ID]; dup {
		return nil
	}
	if s.full {
		delete(s.ids, s.ring[s.next].ID)
	}
	s.ring[s.next] = ev
	s.ids[ev.ID] = struct{}{}
	s.next++
	if s.next == len(s.ring) {
		s.next = 0
		s.full = true
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *InMemoryStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next
	if s.full {
		n = len(s.ring)
	}
	limit = min(limit, n)

	out := make([]Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out, nil
}
