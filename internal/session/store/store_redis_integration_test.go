//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"assetgate/internal/idp"
	"assetgate/internal/session/store"
	"assetgate/pkg/platform/sentinel"
	"assetgate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSaveAndLoadRoundTrip() {
	now := time.Now()
	record := store.Record{
		ID: uuid.New(),
		Account: idp.Account{
			ID:       "acct-1",
			Username: "ada@example.com",
			Name:     "Ada",
		},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	s.Require().NoError(s.store.Save(context.Background(), record))

	loaded, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(record.ID, loaded.ID)
	s.Equal(record.Account, loaded.Account)
	s.Equal(record.CreatedAt.UnixNano(), loaded.CreatedAt.UnixNano())
}

func (s *RedisStoreSuite) TestLoadEmptyReturnsNotFound() {
	_, err := s.store.Load(context.Background())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestExpiryRidesOnRedisTTL() {
	now := time.Now()
	record := store.Record{
		ID:        uuid.New(),
		Account:   idp.Account{ID: "acct-1"},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	s.Require().NoError(s.store.Save(context.Background(), record))

	ttl, err := s.redis.Client.TTL(context.Background(), "assetgate:session:current").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.InDelta(time.Hour.Seconds(), ttl.Seconds(), 5.0)
}

func (s *RedisStoreSuite) TestSaveExpiredRecordRejected() {
	record := store.Record{
		ID:        uuid.New(),
		Account:   idp.Account{ID: "acct-1"},
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	err := s.store.Save(context.Background(), record)
	s.Require().ErrorIs(err, sentinel.ErrExpired)
}

func (s *RedisStoreSuite) TestDelete() {
	now := time.Now()
	record := store.Record{
		ID:        uuid.New(),
		Account:   idp.Account{ID: "acct-1"},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	s.Require().NoError(s.store.Save(context.Background(), record))
	s.Require().NoError(s.store.Delete(context.Background()))

	_, err := s.store.Load(context.Background())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
