package frame

// EventType discriminates the Event payload.
type EventType string

const (
	EventDetection     EventType = "detection"
	EventTracking      EventType = "tracking"
	EventCrossing      EventType = "crossing"
	EventClassification EventType = "classification"
	EventCustom        EventType = "custom"
)

// Event is an append-only, discriminated telemetry record. Properties
// carries the type-specific payload (bbox, class, trajectory, zone_id,
// direction, crossing_point, age, gender, ...).
type Event struct {
	Type       EventType
	SourceID   string
	CameraID   string
	TimestampMS int64
	TrackID    *uint32 // present for tracking/crossing events
	Properties map[string]any
}

// Clone returns a deep-ish copy safe to hand to a sink that mutates or
// retains Properties.
func (e Event) Clone() Event {
	props := make(map[string]any, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	c := e
	c.Properties = props
	return c
}
