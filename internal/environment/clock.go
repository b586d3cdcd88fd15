package environment

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultClockInterval = 100 * time.Millisecond

// Clock drives Environment.Tick from a single goroutine.
type Clock struct {
	env      *Environment
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewClock(env *Environment, interval, stopTimeout time.Duration, logger zerolog.Logger) *Clock {
	if interval <= 0 {
		interval = DefaultClockInterval
	}
	if stopTimeout <= 0 {
		stopTimeout = 2 * time.Second
	}
	return &Clock{
		env:      env,
		interval: interval,
		timeout:  stopTimeout,
		logger:   logger.With().Str("component", "clock").Logger(),
	}
}

func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

// Stop signals the goroutine and waits up to the stop timeout for it to exit.
func (c *Clock) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(c.timeout):
		c.logger.Warn().Dur("timeout", c.timeout).Msg("clock did not stop in time")
	}
}

func (c *Clock) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			c.env.Tick(now.Sub(last))
			last = now
		}
	}
}
