package domain

// EventType names a job lifecycle transition broadcast on the event bus.
type EventType string

const (
	EventProcessing EventType = "processing"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
)

// AllEventTypes lists every channel carried by the bus.
var AllEventTypes = []EventType{EventProcessing, EventCompleted, EventFailed}

// StreamName is the event name written onto client streams.
func (t EventType) StreamName() string {
	switch t {
	case EventProcessing:
		return "jobProcessing"
	case EventCompleted:
		return "jobCompleted"
	case EventFailed:
		return "jobFailed"
	default:
		return string(t)
	}
}

// EventTypeFromStreamName reverses StreamName.
func EventTypeFromStreamName(name string) (EventType, bool) {
	for _, t := range AllEventTypes {
		if t.StreamName() == name {
			return t, true
		}
	}
	return "", false
}

// Event is an ephemeral, unpersisted snapshot of a job at a transition.
type Event struct {
	Type EventType `json:"type"`
	Job  Job       `json:"job"`
}
