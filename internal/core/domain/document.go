package domain

import "time"

// Document represents an immutable record in the corpus.
// Documents are created on ingestion and never mutated; they are
// removed only by explicit retraction.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Title is the human-readable title (usually the filename).
	Title string

	// Content is the full raw text before chunking.
	Content string

	// Source identifies where the document came from.
	Source string

	// Classification is the governance tag (e.g. "CONFIDENTIAL").
	Classification string

	// ChunkIDs lists the chunks produced from this document, in
	// position order.
	ChunkIDs []string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// IngestedAt is when the document entered the corpus.
	IngestedAt time.Time
}

// Chunk is a bounded-length slice of a document's text. It is the
// unit of retrieval and citation. A chunk belongs to exactly one
// document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for similarity search.
	// Its length must match the store's configured dimension.
	Embedding []float32

	// IngestedAt is inherited from the owning document and used as a
	// recency tie-breaker when ranking retrieval results.
	IngestedAt time.Time
}
