package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/pal/internal/models"
)

// ConversationEngine is the core-to-collaborator surface consumed by the
// HTTP API, the CLI and the MCP server.
type ConversationEngine interface {
	// Ask answers query using retrieved passages and history; never fails
	Ask(ctx context.Context, query string, history []models.ChatTurn) string

	// Converse asks with the recent chat log as history and logs both turns
	Converse(ctx context.Context, question string) (*models.Exchange, error)

	// LearnDocument ingests a PDF, text, Markdown or HTML file
	LearnDocument(ctx context.Context, path string) models.Status

	// LearnFromHistory ingests every unlearned chat turn
	LearnFromHistory(ctx context.Context) models.Status

	// LearningStats summarises the knowledge store
	LearningStats(ctx context.Context) (*models.LearningStats, error)

	// Busy reports whether a conversational operation is in flight
	Busy() bool

	// LastActivity is when the last conversational operation finished
	LastActivity() time.Time
}
