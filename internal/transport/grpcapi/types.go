package grpcapi

import "thetalkingdrone/internal/transport"

type Empty struct{}

type TokenRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type DroneIDRequest struct {
	DroneID string `json:"drone_id"`
}

type TakeOffRequest struct {
	DroneID  string  `json:"drone_id"`
	Altitude float64 `json:"altitude,omitempty"`
}

// MoveRequest is also used for estimates.
type MoveRequest struct {
	DroneID string `json:"drone_id"`
	transport.MoveRequest
}

type TurnRequest struct {
	DroneID string `json:"drone_id"`
	transport.TurnRequest
}

type PayloadRequest struct {
	DroneID   string  `json:"drone_id"`
	Kilograms float64 `json:"kg"`
}

type MaintenanceRequest struct {
	DroneID string `json:"drone_id"`
	Enabled bool   `json:"enabled"`
}

type FlightLogRequest struct {
	DroneID string `json:"drone_id"`
	Limit   int    `json:"limit"`
}

type CommandRequest struct {
	DroneID string `json:"drone_id"`
	Command string `json:"command"`
}

type ListDronesResponse struct {
	Drones []transport.TelemetryResponse `json:"drones"`
}

type FlightLogResponse struct {
	Events []transport.EventResponse `json:"events"`
}

type HistoryResponse struct {
	Turns []transport.TurnEntry `json:"turns"`
}

type AutopilotsResponse struct {
	DroneIDs []string `json:"drone_ids"`
}
