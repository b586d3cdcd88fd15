package flight

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"thetalkingdrone/internal/domain"
)

type Options struct {
	// StepInterval is the simulated time covered by one maneuver step.
	StepInterval time.Duration
	// TickInterval is the period of the background fuel tick.
	TickInterval time.Duration
	// TimeScale converts simulated time to wall-clock sleeps. 1 is real time, 0 never sleeps.
	TimeScale       float64
	TakeOffAltitude float64
	LandingAltitude float64
	StopTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		StepInterval:    100 * time.Millisecond,
		TickInterval:    100 * time.Millisecond,
		TimeScale:       1,
		TakeOffAltitude: 1,
		LandingAltitude: 0,
		StopTimeout:     2 * time.Second,
	}
}

var errStopped = errors.New("engine stopped")

// Engine is the simulated flight backend. All telemetry mutation happens under mu; the
// background tick only debits fuel while no maneuver is running.
type Engine struct {
	space  Space
	opts   Options
	act    Actuator
	logger zerolog.Logger
	now    func() time.Time
	id     string

	mu       sync.Mutex
	drone    domain.Drone
	gen      uint64
	active   uint64
	lastTick time.Time

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

func NewEngine(drone domain.Drone, space Space, opts Options, logger zerolog.Logger) *Engine {
	def := DefaultOptions()
	if opts.StepInterval <= 0 {
		opts.StepInterval = def.StepInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.TimeScale < 0 {
		opts.TimeScale = def.TimeScale
	}
	if opts.TakeOffAltitude <= 0 {
		opts.TakeOffAltitude = def.TakeOffAltitude
	}
	if opts.LandingAltitude < 0 {
		opts.LandingAltitude = 0
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = def.StopTimeout
	}
	if drone.Telemetry.Extra == nil {
		drone.Telemetry.Extra = map[string]any{}
	}
	return &Engine{
		space:  space,
		opts:   opts,
		logger: logger.With().Str("drone_id", drone.ID).Logger(),
		now:    time.Now,
		id:     drone.ID,
		drone:  drone,
	}
}

func (e *Engine) ID() string {
	return e.id
}

func (e *Engine) Telemetry() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := &e.drone
	t := d.Telemetry
	extra := make(map[string]any, len(t.Extra))
	for k, v := range t.Extra {
		extra[k] = v
	}
	return Snapshot{
		DroneID:        d.ID,
		Name:           d.Model.Name,
		State:          t.State,
		Position:       t.Position,
		Heading:        t.Heading,
		Speed:          t.Speed,
		FuelLevel:      t.FuelLevel,
		FuelCapacity:   d.Model.FuelCapacity,
		FuelPercentage: d.FuelPercentage(),
		FuelStatus:     domain.FuelStatus(t.FuelLevel, d.Model.FuelCapacity),
		Payload:        d.Payload,
		ManeuverActive: e.active != 0,
		Extra:          extra,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (e *Engine) Details() domain.Drone {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.drone
	d.Telemetry.Extra = make(map[string]any, len(e.drone.Telemetry.Extra))
	for k, v := range e.drone.Telemetry.Extra {
		d.Telemetry.Extra[k] = v
	}
	return d
}

// SetTelemetryField records an extension value in the telemetry record.
func (e *Engine) SetTelemetryField(key string, value any) {
	e.mu.Lock()
	e.drone.Telemetry.Extra[key] = value
	e.mu.Unlock()
}

func (e *Engine) SetPayload(kg float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.drone.Telemetry.State
	if s != domain.StateIdle && s != domain.StateMaintenance {
		return fmt.Errorf("%w: payload can only change on the ground, drone is %s", domain.ErrNotOperational, s)
	}
	if kg < 0 || kg > e.drone.Model.MaxPayload {
		return fmt.Errorf("%w: payload %.2f kg outside [0, %.2f]", domain.ErrInvalidCommand, kg, e.drone.Model.MaxPayload)
	}
	e.drone.Payload = kg
	return nil
}

func (e *Engine) SetMaintenance(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &e.drone.Telemetry
	switch {
	case on && t.State == domain.StateIdle:
		t.State = domain.StateMaintenance
	case !on && t.State == domain.StateMaintenance:
		t.State = domain.StateIdle
	case on && t.State == domain.StateMaintenance, !on && t.State == domain.StateIdle:
		return nil
	default:
		return fmt.Errorf("%w: maintenance requires a grounded drone, drone is %s", domain.ErrNotOperational, t.State)
	}
	t.UpdatedAt = e.now()
	return nil
}

// Start launches the background fuel tick. Calling it on a running engine is a no-op.
func (e *Engine) Start() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.stop != nil {
		e.logger.Warn().Msg("engine already running")
		return nil
	}
	e.mu.Lock()
	e.lastTick = e.now()
	e.mu.Unlock()
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.run(e.stop, e.done)
	e.logger.Info().Msg("engine started")
	return nil
}

// Stop halts the background tick and interrupts any running maneuver. If the goroutine does
// not exit within the stop timeout a warning is logged and Stop returns anyway.
func (e *Engine) Stop() error {
	e.runMu.Lock()
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.runMu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		e.logger.Info().Msg("engine stopped")
	case <-time.After(e.opts.StopTimeout):
		e.logger.Warn().Dur("timeout", e.opts.StopTimeout).Msg("engine tick did not exit in time")
	}
	return nil
}

func (e *Engine) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.tick(e.now())
		}
	}
}

func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	elapsed := now.Sub(e.lastTick)
	e.lastTick = now
	t := &e.drone.Telemetry
	if !t.State.Airborne() {
		return
	}
	if e.active == 0 && elapsed > 0 {
		seconds := elapsed.Seconds()
		if e.opts.TimeScale > 0 {
			seconds /= e.opts.TimeScale
		}
		burn(t, fuelFor(seconds, e.drone.Model.FuelConsumptionRate, stateMultiplier(t.State)))
		t.UpdatedAt = now
	}
	if t.FuelLevel <= 0 && t.State != domain.StateEmergency {
		e.logger.Warn().Str("from", string(t.State)).Msg("fuel exhausted, entering emergency")
		t.State = domain.StateEmergency
		t.UpdatedAt = now
	}
}

// halt returns the stop channel of the running tick, or nil when stopped. Commands capture it
// before claiming a generation so Stop always reaches them.
func (e *Engine) halt() <-chan struct{} {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.stop
}

// maneuver describes one run of the step loop.
type maneuver struct {
	kind  string
	gen   uint64
	halt  <-chan struct{}
	steps int
	// duration is the nominal flight time in seconds, spread evenly over the steps.
	duration   float64
	multiplier float64
	// accepts reports whether the loop may keep going in state s.
	accepts func(s domain.DroneState) bool
	// at returns the intermediate telemetry for completion fraction frac.
	at func(t domain.Telemetry, frac float64) domain.Telemetry
	// move enables per-step location validation.
	move bool
	// burnThrough keeps stepping when fuel runs out.
	burnThrough bool
	finish      func(t *domain.Telemetry)
}

func stepsFor(seconds float64, step time.Duration) int {
	n := int(math.Floor(seconds / step.Seconds()))
	if n < 1 {
		n = 1
	}
	return n
}

// beginLocked claims a new maneuver generation. Callers hold mu.
func (e *Engine) beginLocked() uint64 {
	e.gen++
	e.active = e.gen
	return e.gen
}

func (e *Engine) execute(ctx context.Context, m maneuver) error {
	perStep := fuelFor(m.duration/float64(m.steps), e.drone.Model.FuelConsumptionRate, m.multiplier)
	start := e.Telemetry()
	startT := domain.Telemetry{Position: start.Position, Heading: start.Heading, Speed: start.Speed}
	log := e.logger.With().Str("maneuver", m.kind).Logger()
	log.Debug().Int("steps", m.steps).Msg("maneuver started")

	for i := 1; i <= m.steps; i++ {
		if err := e.wait(ctx, m.halt); err != nil {
			e.abort(m.gen)
			log.Warn().Err(err).Int("step", i).Msg("maneuver interrupted")
			return fmt.Errorf("%w: %s interrupted at step %d/%d: %w", domain.ErrManeuverFailed, m.kind, i, m.steps, err)
		}

		e.mu.Lock()
		t := &e.drone.Telemetry
		if e.gen != m.gen || !m.accepts(t.State) {
			state := t.State
			if e.active == m.gen {
				e.active = 0
				t.Speed = 0
			}
			e.mu.Unlock()
			log.Warn().Str("state", string(state)).Int("step", i).Msg("maneuver preempted")
			return fmt.Errorf("%w: %s preempted at step %d/%d, drone is %s", domain.ErrManeuverFailed, m.kind, i, m.steps, state)
		}
		next := m.at(startT, float64(i)/float64(m.steps))
		if m.move {
			if err := e.space.ValidateLocation(next.Position); err != nil {
				e.emergencyLocked()
				e.mu.Unlock()
				log.Warn().Err(err).Int("step", i).Msg("maneuver aborted")
				return fmt.Errorf("%w: %s aborted at step %d/%d: %w", domain.ErrManeuverFailed, m.kind, i, m.steps, err)
			}
		}
		t.Position = next.Position
		t.Heading = next.Heading
		burn(t, perStep)
		t.UpdatedAt = e.now()
		if t.FuelLevel <= 0 && !m.burnThrough && i < m.steps {
			e.emergencyLocked()
			e.mu.Unlock()
			log.Warn().Int("step", i).Msg("fuel exhausted mid-maneuver")
			return fmt.Errorf("%w: %s stopped at step %d/%d: %w", domain.ErrManeuverFailed, m.kind, i, m.steps, domain.ErrInsufficientFuel)
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	t := &e.drone.Telemetry
	if e.gen != m.gen || !m.accepts(t.State) {
		return fmt.Errorf("%w: %s preempted before completion, drone is %s", domain.ErrManeuverFailed, m.kind, t.State)
	}
	m.finish(t)
	t.Speed = 0
	t.UpdatedAt = e.now()
	e.active = 0
	if t.FuelLevel <= 0 && t.State.Airborne() {
		e.emergencyLocked()
	}
	log.Debug().Str("state", string(t.State)).Msg("maneuver finished")
	return nil
}

func (e *Engine) wait(ctx context.Context, halt <-chan struct{}) error {
	d := time.Duration(float64(e.opts.StepInterval) * e.opts.TimeScale)
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-halt:
			return errStopped
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-halt:
		return errStopped
	case <-timer.C:
		return nil
	}
}

// abort forces EMERGENCY if gen is still the current maneuver.
func (e *Engine) abort(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == gen {
		e.emergencyLocked()
	}
}

func (e *Engine) emergencyLocked() {
	t := &e.drone.Telemetry
	if t.State != domain.StateEmergency {
		e.logger.Warn().Str("from", string(t.State)).Msg("entering emergency")
	}
	t.State = domain.StateEmergency
	t.Speed = 0
	t.UpdatedAt = e.now()
	e.active = 0
}

func (e *Engine) actuate(gen uint64, kind string, call func(Actuator) error) error {
	if e.act == nil {
		return nil
	}
	if err := call(e.act); err != nil {
		e.abort(gen)
		e.logger.Error().Err(err).Str("maneuver", kind).Msg("actuator command failed")
		return fmt.Errorf("%w: %s actuator: %w", domain.ErrManeuverFailed, kind, err)
	}
	return nil
}
