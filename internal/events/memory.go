package events

import (
	"context"
	"sync"
)

// MemoryOutbox keeps events in process. It is the default store when no database is
// configured.
type MemoryOutbox struct {
	mu        sync.Mutex
	events    []Event
	published map[string]bool
	max       int
}

func NewMemoryOutbox(max int) *MemoryOutbox {
	if max <= 0 {
		max = 10000
	}
	return &MemoryOutbox{published: make(map[string]bool), max: max}
}

func (m *MemoryOutbox) Enqueue(ctx context.Context, evts ...Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evts...)
	if over := len(m.events) - m.max; over > 0 {
		for _, e := range m.events[:over] {
			delete(m.published, e.ID)
		}
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return nil
}

func (m *MemoryOutbox) FetchPending(ctx context.Context, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if m.published[e.ID] {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished flags the stored events among ids. Ids already evicted are ignored.
func (m *MemoryOutbox) MarkPublished(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, e := range m.events {
		if _, ok := want[e.ID]; ok {
			m.published[e.ID] = true
		}
	}
	return nil
}

func (m *MemoryOutbox) ListEvents(ctx context.Context, aggregateID string, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].AggregateID != aggregateID {
			continue
		}
		out = append(out, m.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var (
	_ Sink             = (*MemoryOutbox)(nil)
	_ OutboxRepository = (*MemoryOutbox)(nil)
	_ Log              = (*MemoryOutbox)(nil)
)
