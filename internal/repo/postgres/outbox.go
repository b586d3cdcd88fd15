package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"thetalkingdrone/internal/events"
)

func (s *Store) FetchPending(ctx context.Context, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, outboxFetchPendingSQL, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, outboxMarkPublishedSQL, ids)
	return err
}

func collectEvents(rows pgx.Rows) ([]events.Event, error) {
	defer rows.Close()
	var evts []events.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		evts = append(evts, evt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return evts, nil
}

func scanEvent(row pgx.Row) (events.Event, error) {
	var payload []byte
	var occurredAt time.Time
	var evt events.Event
	if err := row.Scan(&evt.ID, &evt.Type, &evt.AggregateType, &evt.AggregateID, &payload, &occurredAt); err != nil {
		return events.Event{}, err
	}
	evt.Payload = payload
	evt.OccurredAt = occurredAt
	return evt, nil
}
