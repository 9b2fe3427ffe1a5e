package store

import (
	"context"
	"sync"
	"time"

	"assetgate/pkg/platform/sentinel"
)

// InMemoryStore keeps the session record in process memory. Used in
// development and tests; a restart loses the session, which only costs the
// operator one extra redirect.
type InMemoryStore struct {
	mu     sync.RWMutex
	record *Record
	now    func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

func (s *InMemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = &record
	return nil
}

func (s *InMemoryStore) Load(_ context.Context) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return nil, sentinel.ErrNotFound
	}
	if s.record.Expired(s.now()) {
		return nil, sentinel.ErrExpired
	}
	copied := *s.record
	return &copied, nil
}

func (s *InMemoryStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	return nil
}
