package flight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"thetalkingdrone/internal/domain"
)

const linkConnectTimeout = 5 * time.Second

// LinkedEngine flies a physical airframe through a Link. Validation, fuel accounting and the
// telemetry estimate are shared with the simulated Engine.
type LinkedEngine struct {
	*Engine
	link Link
}

func NewLinkedEngine(drone domain.Drone, space Space, link Link, opts Options, logger zerolog.Logger) *LinkedEngine {
	e := NewEngine(drone, space, opts, logger.With().Str("backend", "link").Logger())
	e.act = link
	return &LinkedEngine{Engine: e, link: link}
}

func (l *LinkedEngine) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), linkConnectTimeout)
	defer cancel()
	if err := l.link.Connect(ctx); err != nil {
		l.SetTelemetryField("link", "down")
		return fmt.Errorf("connect link for %s: %w", l.ID(), err)
	}
	l.SetTelemetryField("link", "up")
	return l.Engine.Start()
}

func (l *LinkedEngine) Stop() error {
	err := l.Engine.Stop()
	l.SetTelemetryField("link", "down")
	return errors.Join(err, l.link.Close())
}

var (
	_ Controller = (*Engine)(nil)
	_ Controller = (*LinkedEngine)(nil)
)
