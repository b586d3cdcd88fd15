package nats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"thetalkingdrone/internal/events"
)

// Publisher routes each event to its subject under a shared prefix.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

func New(url, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("thetalkingdrone"))
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, prefix: prefix, owned: true}, nil
}

// FromConn wraps a connection owned by the caller; Close leaves it open.
func FromConn(nc *nats.Conn, prefix string) *Publisher {
	return &Publisher{nc: nc, prefix: prefix}
}

func (p *Publisher) Conn() *nats.Conn {
	return p.nc
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(events.EventSubject(p.prefix, event), data)
}

func (p *Publisher) Close() error {
	if p.owned && p.nc != nil {
		p.nc.Close()
	}
	return nil
}

var _ events.Publisher = (*Publisher)(nil)
