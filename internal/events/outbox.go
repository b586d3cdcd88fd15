package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Sink accepts events for later delivery.
type Sink interface {
	Enqueue(ctx context.Context, events ...Event) error
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// Log reads back stored events for one aggregate, newest first.
type Log interface {
	ListEvents(ctx context.Context, aggregateID string, limit int) ([]Event, error)
}

type OutboxWorker struct {
	Repo         OutboxRepository
	Publisher    Publisher
	PollInterval time.Duration
	BatchSize    int
	Logger       zerolog.Logger
}

func (w *OutboxWorker) Start(ctx context.Context) error {
	if w.PollInterval <= 0 {
		w.PollInterval = time.Second
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 50
	}

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.relay(ctx)
		}
	}
}

func (w *OutboxWorker) relay(ctx context.Context) {
	evts, err := w.Repo.FetchPending(ctx, w.BatchSize)
	if err != nil {
		w.Logger.Error().Err(err).Msg("outbox fetch")
		return
	}
	if len(evts) == 0 {
		return
	}
	published := make([]string, 0, len(evts))
	for _, evt := range evts {
		if err := w.Publisher.Publish(ctx, evt); err != nil {
			w.Logger.Error().Err(err).Str("id", evt.ID).Str("type", evt.Type).Msg("publish")
			continue
		}
		published = append(published, evt.ID)
	}
	if len(published) == 0 {
		return
	}
	if err := w.Repo.MarkPublished(ctx, published); err != nil {
		w.Logger.Error().Err(err).Msg("mark published")
	}
}
