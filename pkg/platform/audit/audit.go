// Package audit records identity lifecycle events: who signed in, when, and
// what the gateway did on their behalf. Sinks are pluggable; the memory store
// backs development, postgres and kafka back real deployments.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened.
type Action string

const (
	ActionLoginStarted    Action = "login.started"
	ActionLoginSucceeded  Action = "login.succeeded"
	ActionLoginFailed     Action = "login.failed"
	ActionLoginTimeout    Action = "login.timeout"
	ActionLogoutCompleted Action = "logout.completed"
	ActionTokenAcquired   Action = "token.acquired"
	ActionAuthzRecomputed Action = "authorization.recomputed"
)

// Event is one audit record.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Action    Action    `json:"action"`
	ActorID   string    `json:"actor_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is an append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by sinks that can also list events, used by tests and
// the development sink.
type Reader interface {
	ListByActor(ctx context.Context, actorID string) ([]Event, error)
}
