package events

import "fmt"

// Subjects are rooted at a configurable prefix, "drone" by default:
//
//	<prefix>.events.<aggregate_type>.<type>
//	<prefix>.telemetry.<drone_id>
const DefaultSubjectPrefix = "drone"

func EventSubject(prefix string, e Event) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if e.Type == EventDroneTelemetry {
		return TelemetrySubject(prefix, e.AggregateID)
	}
	return fmt.Sprintf("%s.events.%s.%s", prefix, e.AggregateType, e.Type)
}

func TelemetrySubject(prefix, droneID string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return fmt.Sprintf("%s.telemetry.%s", prefix, droneID)
}
