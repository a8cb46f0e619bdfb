package driven

import "context"

// VectorIndex provides cosine similarity search operations.
// Scores are cosine similarity in [0,1]; larger is more similar.
type VectorIndex interface {
	// Add inserts or replaces the vector for the given chunk ID.
	Add(ctx context.Context, chunkID string, embedding []float32) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, chunkID string) error

	// Search finds the k most similar chunks to the query vector.
	// Results are ordered by descending similarity with a stable
	// chunk-ID tie-break, so identical queries against an unchanged
	// index return identical orderings.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Dimensions returns the fixed vector dimension of the index.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
