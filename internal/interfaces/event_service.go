package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventAnswer           EventType = "answer"            // payload: *models.Exchange
	EventLearned          EventType = "learned"           // payload: models.Status
	EventProactiveMessage EventType = "proactive_message" // payload: models.ChatTurn
	EventStats            EventType = "stats"             // payload: *models.LearningStats
	EventStatus           EventType = "status"            // payload: models.EngineState
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus
type EventService interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish delivers an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync delivers an event and waits for every handler to finish
	PublishSync(ctx context.Context, event Event) error

	// Close drops all subscribers
	Close() error
}
