package interfaces

import (
	"context"
)

// EmbeddingService turns text into vectors for the knowledge store.
// The same service must be used for ingestion and for queries.
type EmbeddingService interface {
	// Embed generates an embedding vector for text
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName identifies the embedding model; recorded on every stored entry
	ModelName() string

	// Dimension is the expected vector length, 0 when unknown until first call
	Dimension() int
}
