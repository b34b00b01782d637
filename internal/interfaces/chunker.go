package interfaces

import (
	"context"

	"github.com/ternarybob/pal/internal/models"
)

// Chunker splits text and documents into overlapping passages
type Chunker interface {
	// Split cuts raw text into passages carrying metadata
	Split(text string, metadata map[string]string) []models.Passage

	// SplitDocument loads a file and splits it; unsupported or unreadable files yield no passages
	SplitDocument(ctx context.Context, path string) []models.Passage

	// Supports reports whether a loader exists for the file's extension
	Supports(path string) bool
}

// DocumentLoader extracts text sections from one file type
type DocumentLoader interface {
	// Extensions lists the lower-case file extensions handled, including the dot
	Extensions() []string

	// Load returns the text sections of the file with per-section metadata
	Load(ctx context.Context, path string) ([]models.Passage, error)
}
