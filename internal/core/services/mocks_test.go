package services

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockDocumentStore implements driven.DocumentStore for testing.
type mockDocumentStore struct {
	mu      sync.Mutex
	docs    map[string]domain.Document
	chunks  map[string]domain.Chunk
	saveErr error
	getErr  error
}

func newMockDocumentStore() *mockDocumentStore {
	return &mockDocumentStore{
		docs:   make(map[string]domain.Document),
		chunks: make(map[string]domain.Chunk),
	}
}

func (m *mockDocumentStore) SaveDocument(_ context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = *doc
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *mockDocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (m *mockDocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

func (m *mockDocumentStore) GetChunksByDocument(_ context.Context, documentID string) ([]domain.Chunk, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var chunks []domain.Chunk
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			chunks = append(chunks, c)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Position < chunks[j].Position })
	return chunks, nil
}

func (m *mockDocumentStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	for _, chunkID := range doc.ChunkIDs {
		delete(m.chunks, chunkID)
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *mockDocumentStore) addChunk(chunk domain.Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunk.ID] = chunk
}

// mockVectorIndex implements driven.VectorIndex for testing.
// failures counts down: each Search call fails with searchErr until it
// reaches zero, modelling transient outages. A negative value means
// the outage is permanent.
type mockVectorIndex struct {
	mu        sync.Mutex
	hits      []driven.VectorHit
	searchErr error
	failures  int
	added     []string
	deleted   []string
	searches  int
}

func (m *mockVectorIndex) Add(_ context.Context, chunkID string, _ []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, chunkID)
	return nil
}

func (m *mockVectorIndex) Delete(_ context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, chunkID)
	return nil
}

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
	if m.failures != 0 && m.searchErr != nil {
		if m.failures > 0 {
			m.failures--
		}
		return nil, m.searchErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockVectorIndex) Dimensions() int { return 3 }
func (m *mockVectorIndex) Close() error    { return nil }

// mockSearchEngine implements driven.SearchEngine for testing.
type mockSearchEngine struct {
	mu        sync.Mutex
	hits      []driven.SearchHit
	searchErr error
	indexed   []string
	deleted   []string
}

func (m *mockSearchEngine) Index(_ context.Context, chunk domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, chunk.ID)
	return nil
}

func (m *mockSearchEngine) Delete(_ context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, chunkID)
	return nil
}

func (m *mockSearchEngine) Search(_ context.Context, _ string, limit int) ([]driven.SearchHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:limit], nil
}

func (m *mockSearchEngine) Close() error { return nil }

// mockEmbeddingService implements driven.EmbeddingService for testing.
// failures follows the same countdown convention as mockVectorIndex.
type mockEmbeddingService struct {
	embedding []float32
	embedErr  error
	failures  int
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.failures != 0 && m.embedErr != nil {
		if m.failures > 0 {
			m.failures--
		}
		return nil, m.embedErr
	}
	return m.embedding, nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.embedding
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	return len(m.embedding)
}

func (m *mockEmbeddingService) ModelName() string       { return "mock-embed" }
func (m *mockEmbeddingService) Ping(context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error            { return nil }

// mockLLMService implements driven.LLMService for testing. generateFn
// lets each test script the model's behaviour per prompt.
type mockLLMService struct {
	generateFn func(prompt string) (string, error)
	calls      int
}

func (m *mockLLMService) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.calls++
	if m.generateFn == nil {
		return "", nil
	}
	return m.generateFn(prompt)
}

func (m *mockLLMService) Chat(_ context.Context, _ []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	return "", nil
}

func (m *mockLLMService) ModelName() string          { return "mock-llm" }
func (m *mockLLMService) Ping(context.Context) error { return nil }
func (m *mockLLMService) Close() error               { return nil }
