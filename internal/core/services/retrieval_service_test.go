package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
)

func testPipelineConfig() domain.PipelineConfig {
	return domain.PipelineConfig{
		EmbeddingDimensions: 3,
		RetryBackoff:        time.Millisecond,
	}
}

func seedChunks(store *mockDocumentStore, ids ...string) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range ids {
		store.addChunk(domain.Chunk{
			ID:         id,
			DocumentID: "doc-1",
			Content:    "content of " + id,
			Position:   i,
			IngestedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
}

func TestRetrievalService_Search_VectorPath(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1", "c2", "c3")

	vec := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c2", Similarity: 0.7},
		{ChunkID: "c1", Similarity: 0.9},
	}}
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}

	service := NewRetrievalService(store, vec, &mockSearchEngine{}, embed, testPipelineConfig())

	results, err := service.Search(context.Background(), "test query", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, "c2", results[1].ChunkID)
	assert.Equal(t, domain.RetrievalModeVector, results[0].Mode)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestRetrievalService_Search_FallbackBelowFloor(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1", "c2")

	vec := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c1", Similarity: 0.2}, // below the 0.35 floor
	}}
	search := &mockSearchEngine{hits: []driven.SearchHit{
		{ChunkID: "c2", Score: 4.0},
		{ChunkID: "c1", Score: 2.0},
	}}
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}

	service := NewRetrievalService(store, vec, search, embed, testPipelineConfig())

	results, err := service.Search(context.Background(), "test query", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, domain.RetrievalModeKeyword, r.Mode)
		assert.LessOrEqual(t, r.Score, 0.5)
	}
	// Keyword scores are normalised against the best hit.
	assert.InDelta(t, 0.5, results[0].Score, 1e-9)
	assert.InDelta(t, 0.25, results[1].Score, 1e-9)
}

func TestRetrievalService_Search_PermanentVectorOutage(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1")

	vec := &mockVectorIndex{failures: -1, searchErr: errors.New("index unreachable")}
	search := &mockSearchEngine{hits: []driven.SearchHit{{ChunkID: "c1", Score: 1.0}}}
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}

	service := NewRetrievalService(store, vec, search, embed, testPipelineConfig())

	results, err := service.Search(context.Background(), "test query", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.RetrievalModeKeyword, results[0].Mode)
}

func TestRetrievalService_Search_TransientFailureIsRetried(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1")

	vec := &mockVectorIndex{
		failures:  1,
		searchErr: errors.New("timeout"),
		hits:      []driven.VectorHit{{ChunkID: "c1", Similarity: 0.9}},
	}
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}

	service := NewRetrievalService(store, vec, &mockSearchEngine{}, embed, testPipelineConfig())

	results, err := service.Search(context.Background(), "test query", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The transient failure is invisible in the result mode.
	assert.Equal(t, domain.RetrievalModeVector, results[0].Mode)
	assert.Equal(t, 2, vec.searches)
}

func TestRetrievalService_Search_DimensionMismatchIsFatal(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1")

	vec := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c1", Similarity: 0.9}}}
	search := &mockSearchEngine{hits: []driven.SearchHit{{ChunkID: "c1", Score: 1.0}}}
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2}} // wrong dimension

	service := NewRetrievalService(store, vec, search, embed, testPipelineConfig())

	results, err := service.Search(context.Background(), "test query", 5)
	require.Error(t, err)
	assert.Nil(t, results)

	var dim *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dim)
	assert.Equal(t, 3, dim.Want)
	assert.Equal(t, 2, dim.Got)
}

func TestRetrievalService_Search_WeakVectorKeptWhenKeywordFails(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1")

	vec := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c1", Similarity: 0.1}}}
	search := &mockSearchEngine{searchErr: errors.New("engine down")}
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}

	service := NewRetrievalService(store, vec, search, embed, testPipelineConfig())

	results, err := service.Search(context.Background(), "test query", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.RetrievalModeVector, results[0].Mode)
}

func TestRetrievalService_Search_WeakVectorKeptWhenKeywordEmpty(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1")

	vec := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c1", Similarity: 0.1}}}
	search := &mockSearchEngine{} // succeeds with zero hits
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}

	service := NewRetrievalService(store, vec, search, embed, testPipelineConfig())

	results, err := service.Search(context.Background(), "test query", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, domain.RetrievalModeVector, results[0].Mode)
}

func TestRetrievalService_Search_DeletedChunkSkipped(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c2")

	vec := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c1", Similarity: 0.9}, // no longer in the store
		{ChunkID: "c2", Similarity: 0.8},
	}}
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}

	service := NewRetrievalService(store, vec, &mockSearchEngine{}, embed, testPipelineConfig())

	results, err := service.Search(context.Background(), "test query", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ChunkID)
}

func TestRetrievalService_Search_Deterministic(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1", "c2", "c3")

	vec := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c1", Similarity: 0.8},
		{ChunkID: "c2", Similarity: 0.8},
		{ChunkID: "c3", Similarity: 0.8},
	}}
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}

	service := NewRetrievalService(store, vec, &mockSearchEngine{}, embed, testPipelineConfig())

	first, err := service.Search(context.Background(), "test query", 5)
	require.NoError(t, err)
	second, err := service.Search(context.Background(), "test query", 5)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkID, second[i].ChunkID)
	}
	// Equal scores break ties by recency, newest first.
	assert.Equal(t, "c3", first[0].ChunkID)
}
