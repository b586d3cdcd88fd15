package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	AggregateDrone      = "drone"
	AggregateSimulation = "simulation"
)

const (
	EventDroneCreated         = "drone.created"
	EventDroneRemoved         = "drone.removed"
	EventDroneTookOff         = "drone.took_off"
	EventDroneLanded          = "drone.landed"
	EventDroneMoved           = "drone.moved"
	EventDroneTurned          = "drone.turned"
	EventDroneCommandFailed   = "drone.command_failed"
	EventDroneTelemetry       = "drone.telemetry"
	EventObstacleAdded        = "environment.obstacle_added"
	EventSimulationReset      = "simulation.reset"
	EventAutopilotInstruction = "autopilot.instruction"
)

type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewEvent(eventType, aggregateType, aggregateID string, payload any, occurredAt time.Time) Event {
	data, _ := json.Marshal(payload)
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		OccurredAt:    occurredAt,
	}
}

func NewDroneEvent(eventType, droneID string, payload any, occurredAt time.Time) Event {
	return NewEvent(eventType, AggregateDrone, droneID, payload, occurredAt)
}
