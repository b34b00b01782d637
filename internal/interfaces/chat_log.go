package interfaces

import (
	"github.com/ternarybob/pal/internal/models"
)

// ChatLogStore persists the ordered chat log as a single file.
// Writes rewrite the whole file.
type ChatLogStore interface {
	// Load returns every turn in chronological order; missing or corrupt files load as empty
	Load() []models.ChatTurn

	// Exists reports whether a readable, well-formed log is on disk
	Exists() bool

	// Append adds turns to the end of the log
	Append(turns ...models.ChatTurn) error

	// MarkLearned flips the learned flag on the turns at the given indices
	MarkLearned(indices []int) error

	// Recent returns the last n turns in chronological order
	Recent(n int) []models.ChatTurn

	// Page returns a page of turns, newest first (page is 0-indexed)
	Page(page, pageSize int) models.ChatLogPage
}
