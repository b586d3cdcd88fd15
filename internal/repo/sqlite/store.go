// Package sqlite stores flight events in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"thetalkingdrone/internal/events"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Enqueue(ctx context.Context, evts ...events.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO flight_events (id, event_type, aggregate_type, aggregate_id, payload, occurred_at)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range evts {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Type, e.AggregateType, e.AggregateID, string(e.Payload), e.OccurredAt.UnixNano()); err != nil {
			return fmt.Errorf("insert flight event: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) FetchPending(ctx context.Context, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, event_type, aggregate_type, aggregate_id, payload, occurred_at
FROM flight_events
WHERE published_at IS NULL
ORDER BY occurred_at
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UnixNano())
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err := s.db.ExecContext(ctx, `UPDATE flight_events SET published_at = ? WHERE id IN (`+placeholders+`)`, args...)
	return err
}

func (s *Store) ListEvents(ctx context.Context, aggregateID string, limit int) ([]events.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, event_type, aggregate_type, aggregate_id, payload, occurred_at
FROM flight_events
WHERE aggregate_id = ?
ORDER BY occurred_at DESC
LIMIT ?`, aggregateID, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]events.Event, error) {
	defer rows.Close()
	var out []events.Event
	for rows.Next() {
		var e events.Event
		var payload string
		var occurred int64
		if err := rows.Scan(&e.ID, &e.Type, &e.AggregateType, &e.AggregateID, &payload, &occurred); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		e.OccurredAt = time.Unix(0, occurred).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

var (
	_ events.Sink             = (*Store)(nil)
	_ events.OutboxRepository = (*Store)(nil)
	_ events.Log              = (*Store)(nil)
)
