package transport

import (
	"encoding/json"
	"errors"
	"time"

	"thetalkingdrone/internal/autopilot"
	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/environment"
	"thetalkingdrone/internal/events"
	"thetalkingdrone/internal/fleet"
	"thetalkingdrone/internal/flight"
	"thetalkingdrone/internal/service"
)

type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (l Location) Domain() domain.Location {
	return domain.Location{X: l.X, Y: l.Y, Z: l.Z}
}

func FromLocation(l domain.Location) Location {
	return Location{X: l.X, Y: l.Y, Z: l.Z}
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type DroneModel struct {
	Name                string     `json:"name"`
	MaxSpeed            float64    `json:"max_speed"`
	MaxVerticalSpeed    float64    `json:"max_vertical_speed"`
	MaxYawRate          float64    `json:"max_yaw_rate"`
	MaxAltitude         float64    `json:"max_altitude"`
	Weight              float64    `json:"weight"`
	Dimensions          Dimensions `json:"dimensions"`
	MaxPayload          float64    `json:"max_payload"`
	FuelCapacity        float64    `json:"fuel_capacity"`
	FuelConsumptionRate float64    `json:"fuel_consumption_rate"`
}

type CreateDroneRequest struct {
	ID       string      `json:"id,omitempty"`
	Model    *DroneModel `json:"model,omitempty"`
	Location Location    `json:"location"`
	Backend  string      `json:"backend,omitempty"`
}

// ToCreateRequest fills a missing model from def.
func (r CreateDroneRequest) ToCreateRequest(def domain.DroneModel) fleet.CreateRequest {
	model := def
	if r.Model != nil {
		m := r.Model
		model = domain.DroneModel{
			Name:                m.Name,
			MaxSpeed:            m.MaxSpeed,
			MaxVerticalSpeed:    m.MaxVerticalSpeed,
			MaxYawRate:          m.MaxYawRate,
			MaxAltitude:         m.MaxAltitude,
			Weight:              m.Weight,
			Dimensions:          domain.Dimensions(m.Dimensions),
			MaxPayload:          m.MaxPayload,
			FuelCapacity:        m.FuelCapacity,
			FuelConsumptionRate: m.FuelConsumptionRate,
		}
	}
	return fleet.CreateRequest{ID: r.ID, Model: model, Location: r.Location.Domain(), Backend: r.Backend}
}

type TakeOffRequest struct {
	Altitude float64 `json:"altitude,omitempty"`
}

type MoveRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Relative bool    `json:"relative,omitempty"`
}

type TurnRequest struct {
	Heading  float64 `json:"heading"`
	Relative bool    `json:"relative,omitempty"`
}

type ObstacleRequest struct {
	Name     string     `json:"name,omitempty"`
	Position Location   `json:"position"`
	Size     Dimensions `json:"size"`
}

func (r ObstacleRequest) Domain() domain.Obstacle {
	return domain.Obstacle{Name: r.Name, Position: r.Position.Domain(), Size: domain.Dimensions(r.Size)}
}

type TelemetryResponse struct {
	DroneID        string         `json:"drone_id"`
	Name           string         `json:"name"`
	State          string         `json:"state"`
	Position       Location       `json:"position"`
	Heading        float64        `json:"heading"`
	Speed          float64        `json:"speed"`
	FuelLevel      float64        `json:"fuel_level"`
	FuelCapacity   float64        `json:"fuel_capacity"`
	FuelPercentage float64        `json:"fuel_percentage"`
	FuelStatus     string         `json:"fuel_status"`
	Payload        float64        `json:"payload"`
	ManeuverActive bool           `json:"maneuver_active"`
	Extra          map[string]any `json:"extra,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func FromSnapshot(s flight.Snapshot) TelemetryResponse {
	return TelemetryResponse{
		DroneID:        s.DroneID,
		Name:           s.Name,
		State:          string(s.State),
		Position:       FromLocation(s.Position),
		Heading:        s.Heading,
		Speed:          s.Speed,
		FuelLevel:      s.FuelLevel,
		FuelCapacity:   s.FuelCapacity,
		FuelPercentage: s.FuelPercentage,
		FuelStatus:     s.FuelStatus,
		Payload:        s.Payload,
		ManeuverActive: s.ManeuverActive,
		Extra:          s.Extra,
		UpdatedAt:      s.UpdatedAt,
	}
}

func FromSnapshots(in []flight.Snapshot) []TelemetryResponse {
	out := make([]TelemetryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, FromSnapshot(s))
	}
	return out
}

type DroneDetailsResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	State          string            `json:"state"`
	FuelLevel      float64           `json:"fuel_level"`
	FuelCapacity   float64           `json:"fuel_capacity"`
	FuelPercentage float64           `json:"fuel_percentage"`
	Location       Location          `json:"location"`
	Speed          float64           `json:"speed"`
	Heading        float64           `json:"heading"`
	MaxSpeed       float64           `json:"max_speed"`
	MaxAltitude    float64           `json:"max_altitude"`
	Weight         float64           `json:"weight"`
	Dimensions     Dimensions        `json:"dimensions"`
	MaxPayload     float64           `json:"max_payload"`
	CurrentPayload float64           `json:"current_payload"`
	CreatedAt      time.Time         `json:"created_at"`
	Telemetry      TelemetryResponse `json:"telemetry"`
}

func FromDroneView(v *service.DroneView) DroneDetailsResponse {
	d := v.Drone
	return DroneDetailsResponse{
		ID:             d.ID,
		Name:           d.Model.Name,
		State:          string(v.Telemetry.State),
		FuelLevel:      v.Telemetry.FuelLevel,
		FuelCapacity:   d.Model.FuelCapacity,
		FuelPercentage: v.Telemetry.FuelPercentage,
		Location:       FromLocation(v.Telemetry.Position),
		Speed:          v.Telemetry.Speed,
		Heading:        v.Telemetry.Heading,
		MaxSpeed:       d.Model.MaxSpeed,
		MaxAltitude:    d.Model.MaxAltitude,
		Weight:         d.Model.Weight,
		Dimensions:     Dimensions(d.Model.Dimensions),
		MaxPayload:     d.Model.MaxPayload,
		CurrentPayload: d.Payload,
		CreatedAt:      d.CreatedAt,
		Telemetry:      FromSnapshot(v.Telemetry),
	}
}

type ObstacleResponse struct {
	Name     string     `json:"name"`
	Position Location   `json:"position"`
	Size     Dimensions `json:"size"`
}

func FromObstacle(o domain.Obstacle) ObstacleResponse {
	return ObstacleResponse{Name: o.Name, Position: FromLocation(o.Position), Size: Dimensions(o.Size)}
}

func FromObstacles(in []domain.Obstacle) []ObstacleResponse {
	out := make([]ObstacleResponse, 0, len(in))
	for _, o := range in {
		out = append(out, FromObstacle(o))
	}
	return out
}

type EnvironmentResponse struct {
	Boundaries     Location           `json:"boundaries"`
	Obstacles      []ObstacleResponse `json:"obstacles"`
	CheckObstacles bool               `json:"check_obstacles"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
}

func FromEnvironment(s environment.Snapshot) EnvironmentResponse {
	return EnvironmentResponse{
		Boundaries:     Location{X: s.Boundaries.MaxX, Y: s.Boundaries.MaxY, Z: s.Boundaries.MaxZ},
		Obstacles:      FromObstacles(s.Obstacles),
		CheckObstacles: s.CheckObstacles,
		ElapsedSeconds: s.Elapsed.Seconds(),
	}
}

type EventResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func FromEvents(in []events.Event) []EventResponse {
	out := make([]EventResponse, 0, len(in))
	for _, e := range in {
		out = append(out, EventResponse(e))
	}
	return out
}

type TurnEntry struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

func FromHistory(in []autopilot.Turn) []TurnEntry {
	out := make([]TurnEntry, 0, len(in))
	for _, t := range in {
		out = append(out, TurnEntry(t))
	}
	return out
}

type AutopilotCommandRequest struct {
	Command string `json:"command"`
}

type AutopilotReplyResponse struct {
	Reply     string             `json:"reply"`
	Commands  []string           `json:"commands"`
	Telemetry *TelemetryResponse `json:"telemetry,omitempty"`
	Obstacles []ObstacleResponse `json:"obstacles,omitempty"`
	Error     *ErrorBody         `json:"error,omitempty"`
}

func FromReply(r autopilot.Reply, err error) AutopilotReplyResponse {
	resp := AutopilotReplyResponse{Reply: r.Text, Commands: make([]string, 0, len(r.Results))}
	for _, res := range r.Results {
		resp.Commands = append(resp.Commands, res.Command.String())
		if res.Obstacles != nil {
			resp.Obstacles = FromObstacles(res.Obstacles)
		}
	}
	if n := len(r.Results); n > 0 {
		t := FromSnapshot(r.Results[n-1].Telemetry)
		resp.Telemetry = &t
	}
	if err != nil {
		body := NewErrorBody(err)
		resp.Error = &body
	}
	return resp
}

type EstimateResponse struct {
	From            Location `json:"from"`
	To              Location `json:"to"`
	Distance        float64  `json:"distance"`
	DurationSeconds float64  `json:"duration_seconds"`
	Fuel            float64  `json:"fuel"`
	FuelAfter       float64  `json:"fuel_after"`
	Feasible        bool     `json:"feasible"`
	Blocker         string   `json:"blocker,omitempty"`
}

func FromEstimate(e *service.FlightEstimate) EstimateResponse {
	return EstimateResponse{
		From:            FromLocation(e.From),
		To:              FromLocation(e.To),
		Distance:        e.Distance,
		DurationSeconds: e.Duration.Seconds(),
		Fuel:            e.Fuel,
		FuelAfter:       e.FuelAfter,
		Feasible:        e.Blocker == "",
		Blocker:         e.Blocker,
	}
}

// Error codes shared by every transport.
const (
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeInvalid           = "invalid"
	CodeNotInitialized    = "not_initialized"
	CodeNotOperational    = "not_operational"
	CodeInsufficientFuel  = "insufficient_fuel"
	CodeInvalidCommand    = "invalid_command"
	CodeOutOfBounds       = "out_of_bounds"
	CodeObstacleCollision = "obstacle_collision"
	CodeManeuverFailed    = "maneuver_failed"
	CodeInternal          = "internal"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorBody classifies err. Maneuver failures are checked first since they wrap the
// spatial and fuel errors that caused them. Unknown errors hide their message.
func NewErrorBody(err error) ErrorBody {
	code := ErrorCode(err)
	if code == CodeInternal {
		return ErrorBody{Code: code, Message: "internal error"}
	}
	return ErrorBody{Code: code, Message: err.Error()}
}

func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrManeuverFailed):
		return CodeManeuverFailed
	case errors.Is(err, domain.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrConflict):
		return CodeConflict
	case errors.Is(err, domain.ErrInvalid):
		return CodeInvalid
	case errors.Is(err, domain.ErrNotInitialized):
		return CodeNotInitialized
	case errors.Is(err, domain.ErrNotOperational):
		return CodeNotOperational
	case errors.Is(err, domain.ErrInsufficientFuel):
		return CodeInsufficientFuel
	case errors.Is(err, domain.ErrInvalidCommand):
		return CodeInvalidCommand
	case errors.Is(err, domain.ErrOutOfBounds):
		return CodeOutOfBounds
	case errors.Is(err, domain.ErrObstacleCollision):
		return CodeObstacleCollision
	default:
		return CodeInternal
	}
}
