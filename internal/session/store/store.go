// Package store persists the operator session snapshot so a restarted gateway
// can resume an authenticated session without a new login round trip.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"assetgate/internal/idp"
)

// Record is the persisted session snapshot. The gateway holds one operator
// session at a time, so stores key it under a fixed slot rather than by ID.
type Record struct {
	ID        uuid.UUID   `json:"id"`
	Account   idp.Account `json:"account"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given instant.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Store is the session persistence contract. Load returns
// sentinel.ErrNotFound when no session is stored and sentinel.ErrExpired when
// the stored one is past its expiry.
type Store interface {
	Save(ctx context.Context, record Record) error
	Load(ctx context.Context) (*Record, error)
	Delete(ctx context.Context) error
}
