package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"assetgate/internal/idp"
	"assetgate/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func makeRecord(ttl time.Duration) Record {
	now := time.Now()
	return Record{
		ID: uuid.New(),
		Account: idp.Account{
			ID:       "acct-1",
			Username: "ada@example.com",
			Name:     "Ada",
		},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (s *MemoryStoreSuite) TestSaveAndLoad() {
	record := makeRecord(time.Hour)
	s.Require().NoError(s.store.Save(context.Background(), record))

	loaded, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(record.ID, loaded.ID)
	s.Equal(record.Account, loaded.Account)
}

func (s *MemoryStoreSuite) TestLoadEmptyReturnsNotFound() {
	_, err := s.store.Load(context.Background())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestLoadExpiredReturnsExpired() {
	record := makeRecord(time.Hour)
	s.Require().NoError(s.store.Save(context.Background(), record))

	s.store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := s.store.Load(context.Background())
	s.Require().ErrorIs(err, sentinel.ErrExpired)
}

func (s *MemoryStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Save(context.Background(), makeRecord(time.Hour)))
	s.Require().NoError(s.store.Delete(context.Background()))

	_, err := s.store.Load(context.Background())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestDeleteEmptyIsIdempotent() {
	s.Require().NoError(s.store.Delete(context.Background()))
}

func (s *MemoryStoreSuite) TestSaveOverwritesPrevious() {
	first := makeRecord(time.Hour)
	s.Require().NoError(s.store.Save(context.Background(), first))

	second := makeRecord(time.Hour)
	second.Account.ID = "acct-2"
	s.Require().NoError(s.store.Save(context.Background(), second))

	loaded, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Equal("acct-2", loaded.Account.ID)
}

func (s *MemoryStoreSuite) TestLoadReturnsCopy() {
	record := makeRecord(time.Hour)
	s.Require().NoError(s.store.Save(context.Background(), record))

	loaded, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	loaded.Account.ID = "mutated"

	again, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Equal("acct-1", again.Account.ID)
}
