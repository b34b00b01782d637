package models

import (
	"fmt"
	"time"
)

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatTurn is one message in the chat log.
// Learned flips to true once, after the turn has been ingested into the knowledge store.
type ChatTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"` // ISO-8601
	Learned   bool   `json:"learned"`
}

// NewChatTurn creates an unlearned turn stamped with the current local time
func NewChatTurn(role, content string) ChatTurn {
	return ChatTurn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Format("2006-01-02T15:04:05.000000"),
		Learned:   false,
	}
}

// String renders the turn as "<role>: <content>"
func (t ChatTurn) String() string {
	return fmt.Sprintf("%s: %s", t.Role, t.Content)
}

// ChatLogPage is one page of the chat log, newest turns first
type ChatLogPage struct {
	Turns      []ChatTurn `json:"turns"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalItems int        `json:"total_items"`
	TotalPages int        `json:"total_pages"`
}

// Exchange is one question and its answer, as logged
type Exchange struct {
	Question ChatTurn `json:"question"`
	Answer   ChatTurn `json:"answer"`
}
