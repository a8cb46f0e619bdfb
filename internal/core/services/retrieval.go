package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ansera-cli/internal/logger"
)

// RetrievalService executes similarity search against the vector
// index with a keyword fallback when scores are weak or the index is
// unavailable.
type RetrievalService struct {
	docStore         driven.DocumentStore
	vectorIndex      driven.VectorIndex
	searchEngine     driven.SearchEngine
	embeddingService driven.EmbeddingService
	cfg              domain.PipelineConfig
}

// NewRetrievalService creates a new retrieval engine.
// The vectorIndex, searchEngine, and embeddingService parameters may
// be nil; retrieval degrades to whichever path remains available.
func NewRetrievalService(
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	searchEngine driven.SearchEngine,
	embeddingService driven.EmbeddingService,
	cfg domain.PipelineConfig,
) *RetrievalService {
	return &RetrievalService{
		docStore:         docStore,
		vectorIndex:      vectorIndex,
		searchEngine:     searchEngine,
		embeddingService: embeddingService,
		cfg:              cfg.Normalised(),
	}
}

// Search returns the topK most relevant chunks for the query text,
// ordered by descending score with deterministic tie-breaks.
//
// The vector path is tried first. When the index is unreachable after
// retries, the embedding service is unavailable, or the best
// similarity falls below the relevance floor, the engine re-executes
// as a keyword search and tags results RetrievalModeKeyword.
func (s *RetrievalService) Search(ctx context.Context, queryText string, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	results, err := s.vectorSearch(ctx, queryText, topK)
	if err != nil {
		var dim *domain.DimensionMismatchError
		if errors.As(err, &dim) {
			// Configuration skew, not a degradable condition.
			return nil, err
		}
		logger.Warn("Vector search failed, falling back to keyword: %v", err)
		return s.keywordSearch(ctx, queryText, topK)
	}

	if len(results) == 0 || results[0].Score < s.cfg.RelevanceFloor {
		logger.Info("Best similarity below relevance floor %.2f, falling back to keyword", s.cfg.RelevanceFloor)
		keyword, kerr := s.keywordSearch(ctx, queryText, topK)
		if kerr != nil {
			// Weak vector results still beat nothing.
			if len(results) > 0 {
				return results, nil
			}
			return nil, kerr
		}
		if len(keyword) == 0 && len(results) > 0 {
			// Keyword found nothing either; keep the weak vector
			// evidence rather than reporting an empty set.
			return results, nil
		}
		return keyword, nil
	}

	return results, nil
}

// vectorSearch embeds the query and searches the vector index.
func (s *RetrievalService) vectorSearch(ctx context.Context, queryText string, topK int) ([]domain.RetrievalResult, error) {
	if s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	var embedding []float32
	err := s.withRetry(ctx, func() error {
		var embedErr error
		embedding, embedErr = s.embeddingService.Embed(ctx, queryText)
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if len(embedding) != s.cfg.EmbeddingDimensions {
		return nil, &domain.DimensionMismatchError{
			Want: s.cfg.EmbeddingDimensions,
			Got:  len(embedding),
		}
	}

	var hits []driven.VectorHit
	err = s.withRetry(ctx, func() error {
		var searchErr error
		hits, searchErr = s.vectorIndex.Search(ctx, embedding, topK)
		return searchErr
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	logger.Debug("Vector search: %d hits", len(hits))

	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		result, ok := s.hydrate(ctx, hit.ChunkID, hit.Similarity, domain.RetrievalModeVector)
		if !ok {
			continue
		}
		results = append(results, result)
	}

	domain.SortRetrievalResults(results)
	return truncate(results, topK), nil
}

// keywordSearch runs the text-match fallback path.
// Scores are normalised into (0, 0.5] so keyword results never
// outrank confident vector results.
func (s *RetrievalService) keywordSearch(ctx context.Context, queryText string, topK int) ([]domain.RetrievalResult, error) {
	if s.searchEngine == nil {
		return nil, domain.ErrSearchUnavailable
	}

	var hits []driven.SearchHit
	err := s.withRetry(ctx, func() error {
		var searchErr error
		hits, searchErr = s.searchEngine.Search(ctx, queryText, topK)
		return searchErr
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	logger.Debug("Keyword search: %d hits", len(hits))

	maxScore := 0.0
	for _, hit := range hits {
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		score := 0.5
		if maxScore > 0 {
			score = 0.5 * (hit.Score / maxScore)
		}
		result, ok := s.hydrate(ctx, hit.ChunkID, score, domain.RetrievalModeKeyword)
		if !ok {
			continue
		}
		results = append(results, result)
	}

	domain.SortRetrievalResults(results)
	return truncate(results, topK), nil
}

// hydrate loads chunk content for a hit. Deleted chunks are skipped.
func (s *RetrievalService) hydrate(ctx context.Context, chunkID string, score float64, mode domain.RetrievalMode) (domain.RetrievalResult, bool) {
	chunk, err := s.docStore.GetChunk(ctx, chunkID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Hydrate chunk %s: %v", chunkID, err)
		}
		return domain.RetrievalResult{}, false
	}

	return domain.RetrievalResult{
		ChunkID:    chunk.ID,
		DocumentID: chunk.DocumentID,
		Content:    chunk.Content,
		Score:      score,
		Mode:       mode,
		IngestedAt: chunk.IngestedAt,
	}, true
}

// withRetry runs fn with bounded retries and doubling backoff.
// Context cancellation is never retried.
func (s *RetrievalService) withRetry(ctx context.Context, fn func() error) error {
	backoff := s.cfg.RetryBackoff
	var err error

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Retry attempt %d after %v", attempt, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return err
			}
		}
	}

	return err
}

// truncate limits results to at most k entries.
func truncate(results []domain.RetrievalResult, k int) []domain.RetrievalResult {
	if len(results) > k {
		return results[:k]
	}
	return results
}
