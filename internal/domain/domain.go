package domain

import (
	"math"
	"time"
)

const (
	RoleAdmin    = "admin"
	RolePilot    = "pilot"
	RoleObserver = "observer"
)

type DroneState string

const (
	StateIdle        DroneState = "IDLE"
	StateTakingOff   DroneState = "TAKING_OFF"
	StateFlying      DroneState = "FLYING"
	StateLanding     DroneState = "LANDING"
	StateEmergency   DroneState = "EMERGENCY"
	StateMaintenance DroneState = "MAINTENANCE"
)

// Airborne reports whether the drone is off the ground and consuming fuel.
func (s DroneState) Airborne() bool {
	switch s {
	case StateTakingOff, StateFlying, StateLanding, StateEmergency:
		return true
	default:
		return false
	}
}

const (
	FuelStatusOK       = "OK"
	FuelStatusLow      = "LOW"
	FuelStatusCritical = "CRITICAL"
)

// Fuel thresholds as a percentage of capacity.
const (
	FuelLowPercent      = 20.0
	FuelCriticalPercent = 10.0
)

// Location is a point in the arena frame, meters. Z is altitude.
type Location struct {
	X float64
	Y float64
	Z float64
}

func (l Location) Add(o Location) Location {
	return Location{X: l.X + o.X, Y: l.Y + o.Y, Z: l.Z + o.Z}
}

func (l Location) Sub(o Location) Location {
	return Location{X: l.X - o.X, Y: l.Y - o.Y, Z: l.Z - o.Z}
}

func (l Location) DistanceTo(o Location) float64 {
	d := o.Sub(l)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Lerp returns the point at fraction t of the way from l to o.
func (l Location) Lerp(o Location, t float64) Location {
	return Location{
		X: l.X + (o.X-l.X)*t,
		Y: l.Y + (o.Y-l.Y)*t,
		Z: l.Z + (o.Z-l.Z)*t,
	}
}

type Dimensions struct {
	Length float64
	Width  float64
	Height float64
}

// DroneModel holds the immutable characteristics of an airframe.
type DroneModel struct {
	Name                string
	MaxSpeed            float64 // m/s
	MaxVerticalSpeed    float64 // m/s
	MaxYawRate          float64 // deg/s
	MaxAltitude         float64 // m
	Weight              float64 // kg
	Dimensions          Dimensions
	MaxPayload          float64 // kg
	FuelCapacity        float64 // units
	FuelConsumptionRate float64 // units per minute
}

type Telemetry struct {
	Position  Location
	Heading   float64
	Speed     float64
	FuelLevel float64
	State     DroneState
	Extra     map[string]any
	UpdatedAt time.Time
}

type Drone struct {
	ID        string
	Model     DroneModel
	Telemetry Telemetry
	Payload   float64
	CreatedAt time.Time
}

func (d *Drone) FuelPercentage() float64 {
	if d.Model.FuelCapacity <= 0 {
		return 0
	}
	return d.Telemetry.FuelLevel / d.Model.FuelCapacity * 100
}

func FuelStatus(level, capacity float64) string {
	if capacity <= 0 {
		return FuelStatusCritical
	}
	pct := level / capacity * 100
	switch {
	case pct < FuelCriticalPercent:
		return FuelStatusCritical
	case pct < FuelLowPercent:
		return FuelStatusLow
	default:
		return FuelStatusOK
	}
}

// Obstacle is an axis-aligned box. X and Y are the footprint center, Z the base.
type Obstacle struct {
	Name     string
	Position Location
	Size     Dimensions
}

func (o Obstacle) Contains(p Location) bool {
	halfL := o.Size.Length / 2
	halfW := o.Size.Width / 2
	return p.X >= o.Position.X-halfL && p.X <= o.Position.X+halfL &&
		p.Y >= o.Position.Y-halfW && p.Y <= o.Position.Y+halfW &&
		p.Z >= o.Position.Z && p.Z <= o.Position.Z+o.Size.Height
}

// Boundaries are the arena maxima; minima are always zero.
type Boundaries struct {
	MaxX float64
	MaxY float64
	MaxZ float64
}

func (b Boundaries) Contains(p Location) bool {
	return p.X >= 0 && p.X <= b.MaxX &&
		p.Y >= 0 && p.Y <= b.MaxY &&
		p.Z >= 0 && p.Z <= b.MaxZ
}

type Wind struct {
	Speed     float64 // m/s
	Direction float64 // degrees
}
