// Package memory holds audit events in process memory. Development and test
// sink; nothing survives a restart.
package memory

import (
	"context"
	"sync"

	audit "assetgate/pkg/platform/audit"
)

// Store is an in-memory append-only audit sink.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *Store {
	return &Store{}
}

// Append records the event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByActor returns events for one actor in append order.
func (s *Store) ListByActor(ctx context.Context, actorID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, ev := range s.events {
		if ev.ActorID == actorID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// All returns every recorded event in append order.
func (s *Store) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
