package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	failOn string
}

func (p *recordingPublisher) Publish(ctx context.Context, e Event) error {
	if e.Type == p.failOn {
		return errors.New("broker down")
	}
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func TestSubjects(t *testing.T) {
	created := NewDroneEvent(EventDroneCreated, "d-1", nil, time.Now())
	assert.Equal(t, "drone.events.drone.drone.created", EventSubject("", created))

	reset := NewEvent(EventSimulationReset, AggregateSimulation, "sim", nil, time.Now())
	assert.Equal(t, "fleet.events.simulation.simulation.reset", EventSubject("fleet", reset))

	frame := NewDroneEvent(EventDroneTelemetry, "d-1", nil, time.Now())
	assert.Equal(t, "drone.telemetry.d-1", EventSubject("drone", frame))
}

func TestMemoryOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	box := NewMemoryOutbox(0)
	a := NewDroneEvent(EventDroneCreated, "d-1", map[string]any{"x": 1}, time.Now())
	b := NewDroneEvent(EventDroneTookOff, "d-1", nil, time.Now())
	c := NewDroneEvent(EventDroneCreated, "d-2", nil, time.Now())
	require.NoError(t, box.Enqueue(ctx, a, b, c))

	pending, err := box.FetchPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.NoError(t, box.MarkPublished(ctx, []string{a.ID, b.ID}))

	pending, err = box.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c.ID, pending[0].ID)

	log, err := box.ListEvents(ctx, "d-1", 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, b.ID, log[0].ID)
}

func TestMemoryOutboxBounded(t *testing.T) {
	ctx := context.Background()
	box := NewMemoryOutbox(2)
	for i := 0; i < 5; i++ {
		require.NoError(t, box.Enqueue(ctx, NewDroneEvent(EventDroneMoved, "d-1", i, time.Now())))
	}
	log, err := box.ListEvents(ctx, "d-1", 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.JSONEq(t, "4", string(log[0].Payload))
}

func TestMemoryOutboxIgnoresEvictedIDs(t *testing.T) {
	ctx := context.Background()
	box := NewMemoryOutbox(2)
	require.NoError(t, box.Enqueue(ctx,
		NewDroneEvent(EventDroneMoved, "d-1", 1, time.Now()),
		NewDroneEvent(EventDroneMoved, "d-1", 2, time.Now())))
	pending, err := box.FetchPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, box.Enqueue(ctx,
		NewDroneEvent(EventDroneMoved, "d-1", 3, time.Now()),
		NewDroneEvent(EventDroneMoved, "d-1", 4, time.Now())))
	require.NoError(t, box.MarkPublished(ctx, []string{pending[0].ID, pending[1].ID}))

	assert.Empty(t, box.published)
	left, err := box.FetchPending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestOutboxWorkerRelays(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	box := NewMemoryOutbox(0)
	pub := &recordingPublisher{failOn: EventDroneCommandFailed}
	ok := NewDroneEvent(EventDroneLanded, "d-1", nil, time.Now())
	bad := NewDroneEvent(EventDroneCommandFailed, "d-1", nil, time.Now())
	require.NoError(t, box.Enqueue(ctx, ok, bad))

	w := &OutboxWorker{Repo: box, Publisher: pub, PollInterval: 5 * time.Millisecond, Logger: zerolog.Nop()}
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return len(pub.Events()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	pending, err := box.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, bad.ID, pending[0].ID)
}

type staticSource map[string]any

func (s staticSource) TelemetryFrames() map[string]any { return s }

func TestTelemetryBroadcaster(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub := &recordingPublisher{}
	b := &TelemetryBroadcaster{
		Source:    staticSource{"d-1": map[string]any{"state": "FLYING"}, "d-2": map[string]any{"state": "IDLE"}},
		Publisher: pub,
		Interval:  5 * time.Millisecond,
		Logger:    zerolog.Nop(),
	}
	go func() { _ = b.Start(ctx) }()

	require.Eventually(t, func() bool { return len(pub.Events()) >= 2 }, time.Second, 5*time.Millisecond)
	for _, e := range pub.Events() {
		assert.Equal(t, EventDroneTelemetry, e.Type)
		assert.Contains(t, []string{"d-1", "d-2"}, e.AggregateID)
	}
}
