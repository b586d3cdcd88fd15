package flight

import (
	"context"
	"time"

	"thetalkingdrone/internal/domain"
)

// Controller is the command surface shared by every flight backend.
type Controller interface {
	ID() string
	TakeOff(ctx context.Context, altitude float64) error
	Land(ctx context.Context) error
	MoveTo(ctx context.Context, target domain.Location) error
	MoveBy(ctx context.Context, offset domain.Location) error
	TurnTo(ctx context.Context, heading float64) error
	TurnBy(ctx context.Context, delta float64) error
	Telemetry() Snapshot
	Details() domain.Drone
	SetPayload(kg float64) error
	SetMaintenance(on bool) error
	Start() error
	Stop() error
}

// Space validates prospective positions. *environment.Environment satisfies it.
type Space interface {
	ValidateLocation(p domain.Location) error
}

// Actuator performs the physical side of a maneuver. The engine keeps stepping its own
// telemetry estimate for the returned duration.
type Actuator interface {
	TakeOff(ctx context.Context, altitude float64, duration time.Duration) error
	Land(ctx context.Context, altitude float64, duration time.Duration) error
	GoTo(ctx context.Context, target domain.Location, yaw float64, duration time.Duration) error
}

// Link is an Actuator with a connection lifecycle.
type Link interface {
	Actuator
	Connect(ctx context.Context) error
	Close() error
}

type Snapshot struct {
	DroneID        string
	Name           string
	State          domain.DroneState
	Position       domain.Location
	Heading        float64
	Speed          float64
	FuelLevel      float64
	FuelCapacity   float64
	FuelPercentage float64
	FuelStatus     string
	Payload        float64
	ManeuverActive bool
	Extra          map[string]any
	UpdatedAt      time.Time
}

// NewDrone returns a fresh airframe: full tank, IDLE, parked at start.
func NewDrone(id string, model domain.DroneModel, start domain.Location, now time.Time) domain.Drone {
	return domain.Drone{
		ID:    id,
		Model: model,
		Telemetry: domain.Telemetry{
			Position:  start,
			FuelLevel: model.FuelCapacity,
			State:     domain.StateIdle,
			Extra:     map[string]any{},
			UpdatedAt: now,
		},
		CreatedAt: now,
	}
}
