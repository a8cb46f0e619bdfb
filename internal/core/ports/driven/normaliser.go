package driven

import (
	"context"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
)

// Normaliser extracts indexable text from raw documents.
// Each normaliser handles specific MIME types (e.g., DOCX, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts title and plain text from a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation. Chunking,
// embedding, and persistence happen downstream during ingestion.
type NormaliseResult struct {
	// Title is extracted from the content where the format allows
	// (first heading, <title> tag), falling back to the filename.
	Title string

	// Content is the extracted plain text.
	Content string

	// Metadata carries the raw document's metadata plus format info.
	Metadata map[string]any
}

// NormaliserRegistry selects the appropriate normaliser for a document.
// It maintains a priority-ordered list of normalisers and dispatches
// based on MIME type.
type NormaliserRegistry interface {
	// Normalise transforms a raw document using the best matching
	// normaliser. Unmatched MIME types fall back to the lowest-priority
	// registered normaliser.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedMIMETypes returns all MIME types that can be normalised.
	SupportedMIMETypes() []string
}
