package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ansera-cli/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages the corpus: chunking, embedding, persistence,
// and index maintenance.
type DocumentService struct {
	docStore         driven.DocumentStore
	vectorIndex      driven.VectorIndex
	searchEngine     driven.SearchEngine
	embeddingService driven.EmbeddingService
	pipeline         driven.PostProcessorPipeline
	normalisers      driven.NormaliserRegistry
	cfg              domain.PipelineConfig
}

// NewDocumentService creates a new corpus manager. The pipeline turns
// raw document content into chunks before embedding.
func NewDocumentService(
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	searchEngine driven.SearchEngine,
	embeddingService driven.EmbeddingService,
	pipeline driven.PostProcessorPipeline,
	cfg domain.PipelineConfig,
) *DocumentService {
	return &DocumentService{
		docStore:         docStore,
		vectorIndex:      vectorIndex,
		searchEngine:     searchEngine,
		embeddingService: embeddingService,
		pipeline:         pipeline,
		cfg:              cfg.Normalised(),
	}
}

// SetNormaliserRegistry installs format-specific text extraction for
// IngestFile. Without a registry, raw files are ingested as plain text.
func (s *DocumentService) SetNormaliserRegistry(registry driven.NormaliserRegistry) {
	s.normalisers = registry
}

// IngestFile extracts text from a raw file and ingests the result. The
// normaliser picks the title from the content (first heading, document
// properties) unless the request overrides it.
func (s *DocumentService) IngestFile(ctx context.Context, req driving.IngestFileRequest) (*domain.Document, error) {
	ingest := driving.IngestRequest{
		Title:          req.Title,
		Source:         req.Source,
		Classification: req.Classification,
		Metadata:       req.Raw.Metadata,
	}

	if s.normalisers != nil {
		result, err := s.normalisers.Normalise(ctx, &req.Raw)
		if err != nil {
			return nil, fmt.Errorf("normalise %s: %w", req.Raw.URI, err)
		}
		ingest.Content = result.Content
		ingest.Metadata = result.Metadata
		if ingest.Title == "" {
			ingest.Title = result.Title
		}
	} else {
		ingest.Content = string(req.Raw.Content)
	}

	if ingest.Title == "" {
		ingest.Title = filepath.Base(req.Raw.URI)
	}

	return s.Ingest(ctx, ingest)
}

// Ingest chunks the document, embeds every chunk, persists document
// and chunks as one unit, then adds the chunks to the vector and
// keyword indexes. The store write happens before indexing, so a
// crash mid-ingest leaves retrievable (if unindexed) chunks rather
// than dangling index entries.
func (s *DocumentService) Ingest(ctx context.Context, req driving.IngestRequest) (*domain.Document, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: empty document content", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: missing document title", domain.ErrInvalidInput)
	}

	logger.Section("Document Ingestion")

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:             uuid.New().String(),
		Title:          req.Title,
		Content:        req.Content,
		Source:         req.Source,
		Classification: req.Classification,
		Metadata:       req.Metadata,
		IngestedAt:     now,
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}

	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document produced no chunks", domain.ErrInvalidInput)
	}

	if err := s.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	doc.ChunkIDs = make([]string, len(chunks))
	for i := range chunks {
		chunks[i].IngestedAt = now
		doc.ChunkIDs[i] = chunks[i].ID
	}

	if err := s.docStore.SaveDocument(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	s.indexChunks(ctx, chunks)

	logger.Info("Ingested %q: %d chunks", doc.Title, len(chunks))
	return doc, nil
}

// embedChunks embeds all chunk contents in one batch and validates the
// dimension of every vector against the store configuration.
func (s *DocumentService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	if s.embeddingService == nil {
		return domain.ErrEmbeddingUnavailable
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	embeddings, err := s.embeddingService.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}

	for i := range embeddings {
		if len(embeddings[i]) != s.cfg.EmbeddingDimensions {
			return &domain.DimensionMismatchError{
				Want: s.cfg.EmbeddingDimensions,
				Got:  len(embeddings[i]),
			}
		}
		chunks[i].Embedding = embeddings[i]
	}
	return nil
}

// indexChunks adds chunks to the vector and keyword indexes. Index
// failures are logged, not returned: the chunks are already persisted
// and retrieval degrades per path.
func (s *DocumentService) indexChunks(ctx context.Context, chunks []domain.Chunk) {
	for i := range chunks {
		if s.vectorIndex != nil {
			if err := s.vectorIndex.Add(ctx, chunks[i].ID, chunks[i].Embedding); err != nil {
				logger.Warn("Vector index add for chunk %s: %v", chunks[i].ID, err)
			}
		}
		if s.searchEngine != nil {
			if err := s.searchEngine.Index(ctx, chunks[i]); err != nil {
				logger.Warn("Search index add for chunk %s: %v", chunks[i].ID, err)
			}
		}
	}
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// List returns all documents in the corpus.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete retracts a document: its chunks leave the vector and keyword
// indexes first, then the store, so retrieval never hydrates a chunk
// that is about to disappear.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("get document %s: %w", id, err)
	}

	for _, chunkID := range doc.ChunkIDs {
		if s.vectorIndex != nil {
			if err := s.vectorIndex.Delete(ctx, chunkID); err != nil {
				logger.Warn("Vector index delete for chunk %s: %v", chunkID, err)
			}
		}
		if s.searchEngine != nil {
			if err := s.searchEngine.Delete(ctx, chunkID); err != nil {
				logger.Warn("Search index delete for chunk %s: %v", chunkID, err)
			}
		}
	}

	if err := s.docStore.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}

	logger.Info("Deleted document %q", doc.Title)
	return nil
}
