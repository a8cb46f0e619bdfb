package driven

import (
	"context"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
)

// SearchEngine provides keyword text-match search over chunk text.
// It backs the degrade-gracefully fallback path used when the vector
// index is unreachable or similarity scores fall below the relevance
// floor.
type SearchEngine interface {
	// Index adds or updates a chunk in the search index.
	Index(ctx context.Context, chunk domain.Chunk) error

	// Delete removes a chunk from the search index.
	Delete(ctx context.Context, chunkID string) error

	// Search performs a keyword search and returns matching chunk IDs
	// with scores in descending order.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// Close releases resources.
	Close() error
}

// SearchHit represents a search result from the engine.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score.
	Score float64
}
