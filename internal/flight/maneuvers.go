package flight

import (
	"context"
	"fmt"
	"math"
	"time"

	"thetalkingdrone/internal/domain"
)

// minTurn is the smallest heading change worth flying, degrees.
const minTurn = 0.1

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// TakeOff climbs vertically from IDLE to altitude (the configured default when 0) and hovers.
func (e *Engine) TakeOff(ctx context.Context, altitude float64) error {
	halt := e.halt()
	if altitude == 0 {
		altitude = e.opts.TakeOffAltitude
	}

	e.mu.Lock()
	d := &e.drone
	t := &d.Telemetry
	if t.State != domain.StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("%w: take_off requires IDLE, drone is %s", domain.ErrNotOperational, t.State)
	}
	if altitude > d.Model.MaxAltitude {
		e.mu.Unlock()
		return fmt.Errorf("%w: take_off altitude %.2f exceeds max altitude %.2f", domain.ErrInvalidCommand, altitude, d.Model.MaxAltitude)
	}
	if altitude <= t.Position.Z {
		e.mu.Unlock()
		return fmt.Errorf("%w: take_off altitude %.2f not above current altitude %.2f", domain.ErrInvalidCommand, altitude, t.Position.Z)
	}
	target := t.Position
	target.Z = altitude
	if err := e.space.ValidateLocation(target); err != nil {
		e.mu.Unlock()
		return err
	}
	duration := (altitude - t.Position.Z) / d.Model.MaxVerticalSpeed
	need := fuelFor(duration, d.Model.FuelConsumptionRate, TakeOffMultiplier)
	if t.FuelLevel < need {
		e.mu.Unlock()
		return fmt.Errorf("%w: take_off needs %.3f, have %.3f", domain.ErrInsufficientFuel, need, t.FuelLevel)
	}
	t.State = domain.StateTakingOff
	t.Speed = d.Model.MaxVerticalSpeed
	t.UpdatedAt = e.now()
	gen := e.beginLocked()
	e.mu.Unlock()

	e.logger.Info().Float64("altitude", altitude).Msg("taking off")
	if err := e.actuate(gen, "take_off", func(a Actuator) error {
		return a.TakeOff(ctx, altitude, seconds(duration))
	}); err != nil {
		return err
	}
	return e.execute(ctx, maneuver{
		kind:       "take_off",
		gen:        gen,
		halt:       halt,
		steps:      stepsFor(duration, e.opts.StepInterval),
		duration:   duration,
		multiplier: TakeOffMultiplier,
		accepts:    func(s domain.DroneState) bool { return s == domain.StateTakingOff },
		at: func(from domain.Telemetry, frac float64) domain.Telemetry {
			from.Position = from.Position.Lerp(target, frac)
			return from
		},
		move: true,
		finish: func(t *domain.Telemetry) {
			t.Position = target
			t.State = domain.StateFlying
		},
	})
}

// Land descends to the landing altitude from FLYING or EMERGENCY. A running move or turn is
// preempted. With too little fuel the drone descends in EMERGENCY.
func (e *Engine) Land(ctx context.Context) error {
	halt := e.halt()
	e.mu.Lock()
	d := &e.drone
	t := &d.Telemetry
	if t.State != domain.StateFlying && t.State != domain.StateEmergency {
		e.mu.Unlock()
		return fmt.Errorf("%w: land requires FLYING or EMERGENCY, drone is %s", domain.ErrNotOperational, t.State)
	}
	target := t.Position
	target.Z = e.opts.LandingAltitude
	drop := t.Position.Z - target.Z
	if drop < 0 {
		drop = 0
	}
	duration := drop / d.Model.MaxVerticalSpeed
	need := fuelFor(duration, d.Model.FuelConsumptionRate, LandingMultiplier)
	if t.FuelLevel < need {
		e.logger.Warn().Float64("need", need).Float64("have", t.FuelLevel).Msg("emergency landing")
		t.State = domain.StateEmergency
	} else {
		t.State = domain.StateLanding
	}
	t.Speed = d.Model.MaxVerticalSpeed
	t.UpdatedAt = e.now()
	gen := e.beginLocked()
	e.mu.Unlock()

	e.logger.Info().Msg("landing")
	if err := e.actuate(gen, "land", func(a Actuator) error {
		return a.Land(ctx, target.Z, seconds(duration))
	}); err != nil {
		return err
	}
	return e.execute(ctx, maneuver{
		kind:       "land",
		gen:        gen,
		halt:       halt,
		steps:      stepsFor(duration, e.opts.StepInterval),
		duration:   duration,
		multiplier: LandingMultiplier,
		accepts: func(s domain.DroneState) bool {
			return s == domain.StateLanding || s == domain.StateEmergency
		},
		at: func(from domain.Telemetry, frac float64) domain.Telemetry {
			from.Position = from.Position.Lerp(target, frac)
			return from
		},
		move:        true,
		burnThrough: true,
		finish: func(t *domain.Telemetry) {
			t.Position = target
			t.State = domain.StateIdle
		},
	})
}

// MoveTo flies in a straight line at max speed. The target is checked before anything moves.
func (e *Engine) MoveTo(ctx context.Context, target domain.Location) error {
	halt := e.halt()
	e.mu.Lock()
	d := &e.drone
	t := &d.Telemetry
	if err := e.flyingLocked("move"); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.space.ValidateLocation(target); err != nil {
		e.mu.Unlock()
		return err
	}
	if target.Z > d.Model.MaxAltitude {
		e.mu.Unlock()
		return fmt.Errorf("%w: move altitude %.2f exceeds max altitude %.2f", domain.ErrInvalidCommand, target.Z, d.Model.MaxAltitude)
	}
	dist := t.Position.DistanceTo(target)
	if dist == 0 {
		e.mu.Unlock()
		return nil
	}
	duration := dist / d.Model.MaxSpeed
	need := fuelFor(duration, d.Model.FuelConsumptionRate, FlyingMultiplier)
	if t.FuelLevel < need {
		e.mu.Unlock()
		return fmt.Errorf("%w: move of %.2f m needs %.3f, have %.3f", domain.ErrInsufficientFuel, dist, need, t.FuelLevel)
	}
	heading := t.Heading
	t.Speed = d.Model.MaxSpeed
	t.UpdatedAt = e.now()
	gen := e.beginLocked()
	e.mu.Unlock()

	e.logger.Info().Float64("x", target.X).Float64("y", target.Y).Float64("z", target.Z).Msg("moving")
	if err := e.actuate(gen, "move", func(a Actuator) error {
		return a.GoTo(ctx, target, heading, seconds(duration))
	}); err != nil {
		return err
	}
	return e.execute(ctx, maneuver{
		kind:       "move",
		gen:        gen,
		halt:       halt,
		steps:      stepsFor(duration, e.opts.StepInterval),
		duration:   duration,
		multiplier: FlyingMultiplier,
		accepts:    func(s domain.DroneState) bool { return s == domain.StateFlying },
		at: func(from domain.Telemetry, frac float64) domain.Telemetry {
			from.Position = from.Position.Lerp(target, frac)
			return from
		},
		move: true,
		finish: func(t *domain.Telemetry) {
			t.Position = target
		},
	})
}

// MoveBy moves by an offset in the body frame: X forward along the heading, Y to the left,
// Z up.
func (e *Engine) MoveBy(ctx context.Context, offset domain.Location) error {
	e.mu.Lock()
	t := e.drone.Telemetry
	e.mu.Unlock()
	return e.MoveTo(ctx, BodyToWorld(t.Position, t.Heading, offset))
}

// BodyToWorld converts a body-frame offset at heading degrees into an arena position.
func BodyToWorld(origin domain.Location, heading float64, offset domain.Location) domain.Location {
	rad := heading * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return domain.Location{
		X: origin.X + offset.X*cos - offset.Y*sin,
		Y: origin.Y + offset.X*sin + offset.Y*cos,
		Z: origin.Z + offset.Z,
	}
}

// TurnTo yaws in place along the shorter arc to heading.
func (e *Engine) TurnTo(ctx context.Context, heading float64) error {
	halt := e.halt()
	target := domain.NormalizeHeading(heading)

	e.mu.Lock()
	d := &e.drone
	t := &d.Telemetry
	if err := e.flyingLocked("turn"); err != nil {
		e.mu.Unlock()
		return err
	}
	from := domain.NormalizeHeading(t.Heading)
	delta := domain.HeadingDelta(from, target)
	if math.Abs(delta) < minTurn {
		e.mu.Unlock()
		return nil
	}
	duration := math.Abs(delta) / d.Model.MaxYawRate
	need := fuelFor(duration, d.Model.FuelConsumptionRate, FlyingMultiplier)
	if t.FuelLevel < need {
		e.mu.Unlock()
		return fmt.Errorf("%w: turn of %.1f deg needs %.3f, have %.3f", domain.ErrInsufficientFuel, delta, need, t.FuelLevel)
	}
	pos := t.Position
	t.UpdatedAt = e.now()
	gen := e.beginLocked()
	e.mu.Unlock()

	e.logger.Info().Float64("heading", target).Msg("turning")
	if err := e.actuate(gen, "turn", func(a Actuator) error {
		return a.GoTo(ctx, pos, target, seconds(duration))
	}); err != nil {
		return err
	}
	return e.execute(ctx, maneuver{
		kind:       "turn",
		gen:        gen,
		halt:       halt,
		steps:      stepsFor(duration, e.opts.StepInterval),
		duration:   duration,
		multiplier: FlyingMultiplier,
		accepts:    func(s domain.DroneState) bool { return s == domain.StateFlying },
		at: func(start domain.Telemetry, frac float64) domain.Telemetry {
			start.Heading = domain.NormalizeHeading(from + delta*frac)
			return start
		},
		finish: func(t *domain.Telemetry) {
			t.Heading = target
		},
	})
}

// TurnBy turns relative to the current heading, along the shorter arc.
func (e *Engine) TurnBy(ctx context.Context, delta float64) error {
	e.mu.Lock()
	heading := e.drone.Telemetry.Heading
	e.mu.Unlock()
	return e.TurnTo(ctx, heading+delta)
}

func (e *Engine) flyingLocked(kind string) error {
	t := &e.drone.Telemetry
	if t.State != domain.StateFlying {
		return fmt.Errorf("%w: %s requires FLYING, drone is %s", domain.ErrNotOperational, kind, t.State)
	}
	if e.active != 0 {
		return fmt.Errorf("%w: %s rejected, another maneuver is in progress", domain.ErrNotOperational, kind)
	}
	return nil
}
