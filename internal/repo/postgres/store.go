package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thetalkingdrone/internal/events"
)

// Store persists flight events. The same table doubles as the outbox.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func (s *Store) Enqueue(ctx context.Context, evts ...events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range evts {
		batch.Queue(eventInsertSQL, e.ID, e.Type, e.AggregateType, e.AggregateID, []byte(e.Payload), e.OccurredAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range evts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert flight event: %w", err)
		}
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, aggregateID string, limit int) ([]events.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, eventListByAggregateSQL, aggregateID, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

var (
	_ events.Sink             = (*Store)(nil)
	_ events.OutboxRepository = (*Store)(nil)
	_ events.Log              = (*Store)(nil)
)
