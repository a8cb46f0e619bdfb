package driven

import (
	"context"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Ingestion is append-mostly; implementations must make a document's
// full chunk set visible atomically so concurrent readers never see a
// partially written document.
type DocumentStore interface {
	// SaveDocument stores a document together with all of its chunks.
	// The document and chunks become visible to readers as one unit.
	SaveDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunksByDocument retrieves all chunks of a document in
	// position order.
	GetChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteDocument retracts a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all documents in the corpus.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
