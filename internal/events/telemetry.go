package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TelemetrySource yields one payload per live drone, keyed by drone id.
type TelemetrySource interface {
	TelemetryFrames() map[string]any
}

// TelemetryBroadcaster publishes every drone's telemetry on a fixed interval. Frames bypass
// the outbox.
type TelemetryBroadcaster struct {
	Source    TelemetrySource
	Publisher Publisher
	Interval  time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (b *TelemetryBroadcaster) Start(ctx context.Context) error {
	if b.Interval <= 0 {
		b.Interval = time.Second
	}
	if b.Now == nil {
		b.Now = time.Now
	}
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.broadcast(ctx)
		}
	}
}

func (b *TelemetryBroadcaster) broadcast(ctx context.Context) {
	now := b.Now()
	for id, frame := range b.Source.TelemetryFrames() {
		evt := NewDroneEvent(EventDroneTelemetry, id, frame, now)
		if err := b.Publisher.Publish(ctx, evt); err != nil {
			b.Logger.Warn().Err(err).Str("drone_id", id).Msg("publish telemetry")
		}
	}
}
