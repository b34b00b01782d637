package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
)

// AllEventTypes lists every event the application publishes
var AllEventTypes = []interfaces.EventType{
	interfaces.EventAnswer,
	interfaces.EventLearned,
	interfaces.EventProactiveMessage,
	interfaces.EventStats,
	interfaces.EventStatus,
}

// NewLoggerSubscriber creates an event handler that logs events at debug level
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		switch payload := event.Payload.(type) {
		case models.Status:
			logEvent = logEvent.Str("status", string(payload.Kind)).Str("message", payload.Message)
			if payload.Source != "" {
				logEvent = logEvent.Str("source", payload.Source)
			}
		case *models.Exchange:
			logEvent = logEvent.Int("answer_length", len(payload.Answer.Content))
		case models.ChatTurn:
			logEvent = logEvent.Str("role", payload.Role)
		case models.EngineState:
			logEvent = logEvent.Bool("busy", payload.Busy).Str("operation", payload.Operation)
		case *models.LearningStats:
			logEvent = logEvent.Int("doc_count", payload.DocCount).Int("word_count", payload.WordCount)
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	for _, eventType := range AllEventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	return nil
}
