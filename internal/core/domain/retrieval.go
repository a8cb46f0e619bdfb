package domain

import (
	"sort"
	"time"
)

// RetrievalMode records which retrieval path produced a result.
type RetrievalMode string

const (
	// RetrievalModeVector means the result came from similarity search.
	RetrievalModeVector RetrievalMode = "vector"

	// RetrievalModeKeyword means the result came from the keyword
	// fallback path. Callers inspect this to lower downstream
	// confidence (the RetrievalDegraded status of the design).
	RetrievalModeKeyword RetrievalMode = "keyword"
)

// RetrievalResult is one ranked hit for a sub-query.
type RetrievalResult struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the chunk's owning document.
	DocumentID string

	// Content is the chunk text, hydrated for evidence assembly.
	Content string

	// Score is the cosine similarity in [0,1]; larger is more similar.
	// Keyword-fallback results carry a normalised rank score instead.
	Score float64

	// Mode records which retrieval path produced this result.
	Mode RetrievalMode

	// IngestedAt is the chunk's ingestion time, used as tie-breaker.
	IngestedAt time.Time
}

// SortRetrievalResults orders results deterministically: score
// descending, then ingestion recency (later wins), then chunk ID.
func SortRetrievalResults(results []RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].IngestedAt.Equal(results[j].IngestedAt) {
			return results[i].IngestedAt.After(results[j].IngestedAt)
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}
