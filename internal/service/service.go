package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"thetalkingdrone/internal/autopilot"
	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/environment"
	"thetalkingdrone/internal/events"
	"thetalkingdrone/internal/fleet"
	"thetalkingdrone/internal/flight"
)

// Service is the application layer shared by every transport.
type Service struct {
	fleet  *fleet.Registry
	sink   events.Sink
	log    events.Log
	now    func() time.Time
	logger zerolog.Logger
}

func New(reg *fleet.Registry, sink events.Sink, log events.Log, logger zerolog.Logger) *Service {
	return &Service{
		fleet:  reg,
		sink:   sink,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "service").Logger(),
	}
}

func (s *Service) registry() (*fleet.Registry, error) {
	if s == nil || s.fleet == nil {
		return nil, fmt.Errorf("simulation: %w", domain.ErrNotInitialized)
	}
	return s.fleet, nil
}

func (s *Service) controller(id string) (flight.Controller, error) {
	reg, err := s.registry()
	if err != nil {
		return nil, err
	}
	return reg.Get(id)
}

func (s *Service) CreateDrone(ctx context.Context, req fleet.CreateRequest) (flight.Snapshot, error) {
	reg, err := s.registry()
	if err != nil {
		return flight.Snapshot{}, err
	}
	ctrl, err := reg.CreateDrone(ctx, req)
	if err != nil {
		return flight.Snapshot{}, err
	}
	snap := ctrl.Telemetry()
	payload := TelemetryPayload(snap)
	payload["backend"] = req.Backend
	if req.Backend == "" {
		payload["backend"] = fleet.BackendSimulated
	}
	s.record(ctx, events.NewDroneEvent(events.EventDroneCreated, snap.DroneID, payload, s.now()))
	return snap, nil
}

func (s *Service) ListDrones(ctx context.Context) ([]flight.Snapshot, error) {
	reg, err := s.registry()
	if err != nil {
		return nil, err
	}
	ctrls := reg.List()
	out := make([]flight.Snapshot, 0, len(ctrls))
	for _, c := range ctrls {
		out = append(out, c.Telemetry())
	}
	return out, nil
}

func (s *Service) Telemetry(ctx context.Context, id string) (flight.Snapshot, error) {
	ctrl, err := s.controller(id)
	if err != nil {
		return flight.Snapshot{}, err
	}
	return ctrl.Telemetry(), nil
}

type DroneView struct {
	Drone     domain.Drone
	Telemetry flight.Snapshot
}

func (s *Service) DroneDetails(ctx context.Context, id string) (*DroneView, error) {
	ctrl, err := s.controller(id)
	if err != nil {
		return nil, err
	}
	return &DroneView{Drone: ctrl.Details(), Telemetry: ctrl.Telemetry()}, nil
}

func (s *Service) RemoveDrone(ctx context.Context, id string) error {
	reg, err := s.registry()
	if err != nil {
		return err
	}
	if err := reg.Remove(id); err != nil {
		return err
	}
	s.record(ctx, events.NewDroneEvent(events.EventDroneRemoved, id, map[string]any{"drone_id": id}, s.now()))
	return nil
}

// TakeOff and the other maneuvers run detached from the caller's cancellation; a dropped
// client connection does not abort a flight. Stopping the engine still does.
func (s *Service) TakeOff(ctx context.Context, id string, altitude float64) (flight.Snapshot, error) {
	return s.maneuver(ctx, id, "take_off", events.EventDroneTookOff, func(ctx context.Context, c flight.Controller) error {
		return c.TakeOff(ctx, altitude)
	})
}

func (s *Service) Land(ctx context.Context, id string) (flight.Snapshot, error) {
	return s.maneuver(ctx, id, "land", events.EventDroneLanded, func(ctx context.Context, c flight.Controller) error {
		return c.Land(ctx)
	})
}

// Move flies to target, or by target as a body-frame offset when relative is set.
func (s *Service) Move(ctx context.Context, id string, target domain.Location, relative bool) (flight.Snapshot, error) {
	name := "move_to"
	if relative {
		name = "move_by"
	}
	return s.maneuver(ctx, id, name, events.EventDroneMoved, func(ctx context.Context, c flight.Controller) error {
		if relative {
			return c.MoveBy(ctx, target)
		}
		return c.MoveTo(ctx, target)
	})
}

func (s *Service) Turn(ctx context.Context, id string, heading float64, relative bool) (flight.Snapshot, error) {
	name := "turn_to"
	if relative {
		name = "turn_by"
	}
	return s.maneuver(ctx, id, name, events.EventDroneTurned, func(ctx context.Context, c flight.Controller) error {
		if relative {
			return c.TurnBy(ctx, heading)
		}
		return c.TurnTo(ctx, heading)
	})
}

func (s *Service) SetPayload(ctx context.Context, id string, kg float64) (flight.Snapshot, error) {
	ctrl, err := s.controller(id)
	if err != nil {
		return flight.Snapshot{}, err
	}
	if err := ctrl.SetPayload(kg); err != nil {
		return flight.Snapshot{}, err
	}
	return ctrl.Telemetry(), nil
}

func (s *Service) SetMaintenance(ctx context.Context, id string, on bool) (flight.Snapshot, error) {
	ctrl, err := s.controller(id)
	if err != nil {
		return flight.Snapshot{}, err
	}
	if err := ctrl.SetMaintenance(on); err != nil {
		return flight.Snapshot{}, err
	}
	return ctrl.Telemetry(), nil
}

func (s *Service) maneuver(ctx context.Context, id, name, eventType string, run func(context.Context, flight.Controller) error) (flight.Snapshot, error) {
	ctrl, err := s.controller(id)
	if err != nil {
		return flight.Snapshot{}, err
	}
	err = run(context.WithoutCancel(ctx), ctrl)
	snap := ctrl.Telemetry()
	payload := TelemetryPayload(snap)
	payload["command"] = name
	if err != nil {
		payload["error"] = err.Error()
		s.record(ctx, events.NewDroneEvent(events.EventDroneCommandFailed, id, payload, s.now()))
		return snap, err
	}
	s.record(ctx, events.NewDroneEvent(eventType, id, payload, s.now()))
	return snap, nil
}

func (s *Service) ResetSimulation(ctx context.Context) error {
	reg, err := s.registry()
	if err != nil {
		return err
	}
	if err := reg.Reset(ctx); err != nil {
		return err
	}
	s.record(ctx, events.NewEvent(events.EventSimulationReset, events.AggregateSimulation, "simulation", map[string]any{}, s.now()))
	return nil
}

func (s *Service) AddObstacle(ctx context.Context, o domain.Obstacle) (domain.Obstacle, error) {
	reg, err := s.registry()
	if err != nil {
		return domain.Obstacle{}, err
	}
	added := reg.AddObstacle(o)
	s.record(ctx, events.NewEvent(events.EventObstacleAdded, events.AggregateSimulation, "simulation", map[string]any{
		"name":     added.Name,
		"position": []float64{added.Position.X, added.Position.Y, added.Position.Z},
		"size":     []float64{added.Size.Length, added.Size.Width, added.Size.Height},
	}, s.now()))
	return added, nil
}

func (s *Service) EnvironmentState(ctx context.Context) (environment.Snapshot, error) {
	reg, err := s.registry()
	if err != nil {
		return environment.Snapshot{}, err
	}
	return reg.Environment().Snapshot(), nil
}

func (s *Service) InitAutopilot(ctx context.Context, id string) error {
	reg, err := s.registry()
	if err != nil {
		return err
	}
	_, err = reg.InitAutopilot(id)
	return err
}

// AutopilotCommand feeds one instruction to the drone's autopilot. The reply is returned
// alongside any engine error so callers can show partial progress.
func (s *Service) AutopilotCommand(ctx context.Context, id, text string) (autopilot.Reply, error) {
	reg, err := s.registry()
	if err != nil {
		return autopilot.Reply{}, err
	}
	pilot, err := reg.Autopilot(id)
	if err != nil {
		return autopilot.Reply{}, err
	}
	reply, err := pilot.Handle(context.WithoutCancel(ctx), text)
	payload := map[string]any{"instruction": text, "reply": reply.Text}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.record(ctx, events.NewDroneEvent(events.EventAutopilotInstruction, id, payload, s.now()))
	return reply, err
}

func (s *Service) AutopilotHistory(ctx context.Context, id string) ([]autopilot.Turn, error) {
	reg, err := s.registry()
	if err != nil {
		return nil, err
	}
	pilot, err := reg.Autopilot(id)
	if err != nil {
		return nil, err
	}
	return pilot.History(), nil
}

func (s *Service) ListAutopilots(ctx context.Context) ([]string, error) {
	reg, err := s.registry()
	if err != nil {
		return nil, err
	}
	return reg.AutopilotIDs(), nil
}

func (s *Service) FlightLog(ctx context.Context, id string, limit int) ([]events.Event, error) {
	if _, err := s.registry(); err != nil {
		return nil, err
	}
	if s.log == nil {
		return nil, fmt.Errorf("%w: no flight log configured", domain.ErrNotFound)
	}
	return s.log.ListEvents(ctx, id, limit)
}

// TelemetryFrames satisfies events.TelemetrySource.
func (s *Service) TelemetryFrames() map[string]any {
	reg, err := s.registry()
	if err != nil {
		return nil
	}
	frames := make(map[string]any)
	for _, c := range reg.List() {
		frames[c.ID()] = TelemetryPayload(c.Telemetry())
	}
	return frames
}

func (s *Service) record(ctx context.Context, evt events.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Enqueue(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Error().Err(err).Str("type", evt.Type).Str("aggregate_id", evt.AggregateID).Msg("record event")
	}
}

func TelemetryPayload(snap flight.Snapshot) map[string]any {
	return map[string]any{
		"drone_id":        snap.DroneID,
		"name":            snap.Name,
		"state":           snap.State,
		"position":        []float64{snap.Position.X, snap.Position.Y, snap.Position.Z},
		"heading":         snap.Heading,
		"speed":           snap.Speed,
		"fuel_level":      snap.FuelLevel,
		"fuel_percentage": snap.FuelPercentage,
		"fuel_status":     snap.FuelStatus,
		"updated_at":      snap.UpdatedAt,
	}
}

var _ events.TelemetrySource = (*Service)(nil)
