package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory brute-force cosine similarity index.
// Fine for corpora up to tens of thousands of chunks; larger corpora
// belong in the sqlite-backed index.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	vectors    map[string][]float32
	norms      map[string]float64
}

// NewVectorIndex creates an index for vectors of the given dimension.
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
		norms:      make(map[string]float64),
	}
}

// Add inserts or replaces the vector for the given chunk ID.
func (idx *VectorIndex) Add(_ context.Context, chunkID string, embedding []float32) error {
	if len(embedding) != idx.dimensions {
		return fmt.Errorf("vector for chunk %s has dimension %d, index expects %d", chunkID, len(embedding), idx.dimensions)
	}

	stored := make([]float32, len(embedding))
	copy(stored, embedding)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors[chunkID] = stored
	idx.norms[chunkID] = norm(stored)
	return nil
}

// Delete removes a vector from the index.
func (idx *VectorIndex) Delete(_ context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, chunkID)
	delete(idx.norms, chunkID)
	return nil
}

// Search finds the k most similar chunks to the query vector.
// Similarity is cosine mapped into [0,1]. Ties break on chunk ID so
// identical queries return identical orderings.
func (idx *VectorIndex) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != idx.dimensions {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d", len(query), idx.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	hits := make([]driven.VectorHit, 0, len(idx.vectors))
	for chunkID, vector := range idx.vectors {
		vectorNorm := idx.norms[chunkID]
		if vectorNorm == 0 {
			continue
		}
		cosine := dot(query, vector) / (queryNorm * vectorNorm)
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunkID,
			Similarity: (cosine + 1) / 2,
		})
	}
	idx.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Dimensions returns the fixed vector dimension of the index.
func (idx *VectorIndex) Dimensions() int {
	return idx.dimensions
}

// Close releases resources.
func (idx *VectorIndex) Close() error {
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
