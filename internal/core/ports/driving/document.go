package driving

import (
	"context"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
)

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	// Title is the human-readable title (usually the filename).
	Title string

	// Content is the full document text.
	Content string

	// Source identifies where the document came from.
	Source string

	// Classification is the governance tag. Empty defaults to the
	// configured corpus classification.
	Classification string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any
}

// IngestFileRequest describes a raw file to normalise and ingest.
type IngestFileRequest struct {
	// Raw is the un-normalised document as read from disk.
	Raw domain.RawDocument

	// Title overrides the normaliser-extracted title when non-empty.
	Title string

	// Source identifies where the document came from.
	Source string

	// Classification is the governance tag.
	Classification string
}

// DocumentService manages the corpus.
type DocumentService interface {
	// Ingest chunks, embeds, stores, and indexes a document.
	// The document's chunk set becomes visible atomically.
	Ingest(ctx context.Context, req IngestRequest) (*domain.Document, error)

	// IngestFile extracts text from a raw file via the normaliser
	// registry, then ingests the result.
	IngestFile(ctx context.Context, req IngestFileRequest) (*domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List returns all documents in the corpus.
	List(ctx context.Context) ([]domain.Document, error)

	// Delete retracts a document and removes its chunks from all
	// indexes.
	Delete(ctx context.Context, id string) error
}
