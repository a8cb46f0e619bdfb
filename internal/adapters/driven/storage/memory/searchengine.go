package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
)

// Ensure SearchEngine implements the interface.
var _ driven.SearchEngine = (*SearchEngine)(nil)

// SearchEngine is an in-memory keyword search over chunk text.
// Scoring is term-frequency based: each query term occurrence in a
// chunk adds to its score, with a bonus for covering distinct terms.
type SearchEngine struct {
	mu     sync.RWMutex
	chunks map[string]string
}

// NewSearchEngine creates a new in-memory keyword search engine.
func NewSearchEngine() *SearchEngine {
	return &SearchEngine{
		chunks: make(map[string]string),
	}
}

// Index adds or updates a chunk in the search index.
func (e *SearchEngine) Index(_ context.Context, chunk domain.Chunk) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chunks[chunk.ID] = strings.ToLower(chunk.Content)
	return nil
}

// Delete removes a chunk from the search index.
func (e *SearchEngine) Delete(_ context.Context, chunkID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.chunks, chunkID)
	return nil
}

// Search performs a keyword search over the indexed chunks.
func (e *SearchEngine) Search(_ context.Context, query string, limit int) ([]driven.SearchHit, error) {
	terms := tokenize(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	e.mu.RLock()
	hits := make([]driven.SearchHit, 0)
	for chunkID, content := range e.chunks {
		score := scoreContent(content, terms)
		if score > 0 {
			hits = append(hits, driven.SearchHit{ChunkID: chunkID, Score: score})
		}
	}
	e.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close releases resources.
func (e *SearchEngine) Close() error {
	return nil
}

func scoreContent(content string, terms []string) float64 {
	var score float64
	covered := 0
	for _, term := range terms {
		count := strings.Count(content, term)
		if count > 0 {
			covered++
			score += float64(count)
		}
	}
	if covered == 0 {
		return 0
	}
	// Chunks matching more distinct terms outrank chunks repeating one.
	return score * float64(covered) / float64(len(terms))
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}
