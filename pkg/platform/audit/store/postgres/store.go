// Package postgres persists audit events through database/sql. The gateway
// registers the pq driver in main; this package only needs *sql.DB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	audit "assetgate/pkg/platform/audit"
)

// Store implements audit.Store over an audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a postgres audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts the event. The full event is stored as JSON alongside the
// indexed columns, so the schema does not chase the event shape.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, action, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		event.ActorID,
		payload,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByActor returns events for one actor, oldest first.
func (s *Store) ListByActor(ctx context.Context, actorID string) ([]audit.Event, error) {
	query := `
		SELECT payload FROM audit_events
		WHERE actor_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var ev audit.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
