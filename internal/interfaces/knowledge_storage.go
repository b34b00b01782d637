package interfaces

import (
	"context"

	"github.com/ternarybob/pal/internal/models"
)

// KnowledgeStorage is the persistent vector index of learned passages
type KnowledgeStorage interface {
	// Add embeds and persists passages; they are durable when Add returns
	Add(ctx context.Context, passages []models.Passage) error

	// Search returns the k passages nearest to query, best first
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)

	// All returns every stored passage for statistics
	All(ctx context.Context) (*models.KnowledgeSnapshot, error)

	// Count returns the number of stored entries
	Count(ctx context.Context) (int, error)

	// Sources returns the distinct source paths recorded in metadata
	Sources(ctx context.Context) ([]string, error)

	// SizeOnDisk sums file sizes under the store directory, 0 if it does not exist
	SizeOnDisk() (int64, error)
}
