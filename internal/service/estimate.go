package service

import (
	"context"
	"math"
	"time"

	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/flight"
)

// FlightEstimate previews a straight-line move without flying it.
type FlightEstimate struct {
	From      domain.Location
	To        domain.Location
	Distance  float64
	Duration  time.Duration
	Fuel      float64
	FuelAfter float64
	// Blocker is why the move would be rejected up front, empty when it would be accepted.
	Blocker string
}

func (s *Service) EstimateMove(ctx context.Context, id string, target domain.Location, relative bool) (*FlightEstimate, error) {
	reg, err := s.registry()
	if err != nil {
		return nil, err
	}
	ctrl, err := reg.Get(id)
	if err != nil {
		return nil, err
	}
	drone := ctrl.Details()
	t := drone.Telemetry
	if relative {
		target = flight.BodyToWorld(t.Position, t.Heading, target)
	}
	est := &FlightEstimate{From: t.Position, To: target, Distance: t.Position.DistanceTo(target)}
	seconds := est.Distance / drone.Model.MaxSpeed
	est.Duration = time.Duration(seconds * float64(time.Second))
	est.Fuel = seconds / 60 * drone.Model.FuelConsumptionRate * flight.FlyingMultiplier
	est.FuelAfter = math.Max(0, t.FuelLevel-est.Fuel)

	switch {
	case t.State != domain.StateFlying:
		est.Blocker = "drone is " + string(t.State)
	case target.Z > drone.Model.MaxAltitude:
		est.Blocker = domain.ErrInvalidCommand.Error()
	case est.Fuel > t.FuelLevel:
		est.Blocker = domain.ErrInsufficientFuel.Error()
	}
	if est.Blocker == "" {
		if err := reg.Environment().ValidateLocation(target); err != nil {
			est.Blocker = err.Error()
		}
	}
	return est, nil
}
