package interfaces

import (
	"context"
)

// LLMMode represents the operational mode of the LLM service
type LLMMode string

const (
	// LLMModeCloud indicates the service uses cloud-based LLM APIs
	LLMModeCloud LLMMode = "cloud"

	// LLMModeOffline indicates the service talks to a local model server
	LLMModeOffline LLMMode = "offline"

	// LLMModeMock indicates deterministic canned responses (tests, demos)
	LLMModeMock LLMMode = "mock"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService is the language model capability the conversation engine depends on.
// Calls are synchronous and blocking; callers run them on worker goroutines.
type LLMService interface {
	// Chat generates a completion for the messages, in chronological order.
	Chat(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the model is reachable and answering.
	HealthCheck(ctx context.Context) error

	// GetMode returns whether the service is cloud, offline or mock.
	GetMode() LLMMode

	// Close releases connections and clients.
	Close() error
}
