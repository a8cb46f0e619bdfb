package domain

// RawDocument is an un-normalised document as read from disk, before
// format-specific text extraction.
type RawDocument struct {
	// URI is the original location (usually a file path).
	URI string

	// MIMEType is the content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains caller-supplied key-value pairs.
	Metadata map[string]any
}
