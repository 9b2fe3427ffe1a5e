package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"assetgate/pkg/platform/sentinel"
)

const sessionKey = "assetgate:session:current"

// RedisStore persists the session record in Redis so the session survives
// gateway restarts. Expiry rides on the Redis TTL.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis creates a Redis-backed session store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	var ttl time.Duration
	if !record.ExpiresAt.IsZero() {
		ttl = time.Until(record.ExpiresAt)
		if ttl <= 0 {
			return sentinel.ErrExpired
		}
	}

	if err := s.client.Set(ctx, sessionKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	payload, err := s.client.Get(ctx, sessionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	if record.Expired(s.now()) {
		return nil, sentinel.ErrExpired
	}
	return &record, nil
}

func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("delete session record: %w", err)
	}
	return nil
}
