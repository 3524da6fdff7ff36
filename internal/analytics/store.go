// Package analytics is the Analytics Ingest module: a catch-all consumer
// bound to every event on the topic exchange, writing a durable event log
// to Postgres and incrementing a handful of Redis counters. It never emits
// events of its own and errors here never ripple back into the saga.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Event is one row of the durable analytics log.
type Event struct {
	ID             string
	EventType      string
	EventTimestamp time.Time
	Data           json.RawMessage
}

// Store persists the analytics event log.
type Store interface {
	Insert(ctx context.Context, e Event) error
}

// PostgresStore is the production analytics Store, writing to the
// analytics.events table (schema owned outside this repo; see spec.md's
// migrations non-goal).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a Postgres connection.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Insert(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics.events (id, event_type, event_timestamp, data)
		VALUES ($1, $2, $3, $4)
	`, e.ID, e.EventType, e.EventTimestamp, []byte(e.Data))
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}
