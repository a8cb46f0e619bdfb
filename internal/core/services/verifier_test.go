package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
)

func testQuery(subQueries ...string) *domain.Query {
	q := &domain.Query{
		ID:        "q-test",
		Question:  "test question",
		CreatedAt: time.Now().UTC(),
	}
	for i, text := range subQueries {
		q.SubQueries = append(q.SubQueries, domain.SubQuery{
			ID:     "sq-" + string(rune('0'+i+1)),
			Text:   text,
			Status: domain.SubQueryAnswered,
		})
	}
	return q
}

func vectorResult(chunkID, content string, score float64) domain.RetrievalResult {
	return domain.RetrievalResult{
		ChunkID:    chunkID,
		DocumentID: "doc-1",
		Content:    content,
		Score:      score,
		Mode:       domain.RetrievalModeVector,
	}
}

func TestVerifierService_Synthesize_NoEvidence(t *testing.T) {
	verifier := NewVerifierService(&mockLLMService{}, nil, NewTraceRecorder(), testPipelineConfig())

	query := testQuery("Does BASF supply chemicals to us?")
	answer, err := verifier.Synthesize(context.Background(), query, []SubQueryEvidence{
		{SubQuery: query.SubQueries[0]},
	})
	require.NoError(t, err)

	// No evidence never becomes a fabricated answer.
	assert.Contains(t, answer.Answer, "does not contain")
	assert.Empty(t, answer.Citations)
	assert.Zero(t, answer.Confidence)
	assert.False(t, answer.Grounded(domain.DefaultGroundedThreshold))
}

func TestVerifierService_Synthesize_CitationsOnlyFromEvidence(t *testing.T) {
	llm := &mockLLMService{
		generateFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Extract factual claims") {
				return "[]", nil
			}
			// [99] is outside the evidence set and must be stripped.
			return "Supplier X ships in 30 days [1]. Supplier X is based in Hamburg [99].", nil
		},
	}
	verifier := NewVerifierService(llm, nil, NewTraceRecorder(), testPipelineConfig())

	query := testQuery("What is the lead time of supplier X?")
	answer, err := verifier.Synthesize(context.Background(), query, []SubQueryEvidence{
		{
			SubQuery: query.SubQueries[0],
			Results:  []domain.RetrievalResult{vectorResult("c1", "Supplier X ships in 30 days.", 0.9)},
		},
	})
	require.NoError(t, err)

	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "c1", answer.Citations[0].ChunkID)
	assert.NotContains(t, answer.Answer, "[99]")

	// The ungrounded sentence is kept but marked, never silently dropped.
	require.Len(t, answer.Inferences, 1)
	assert.Contains(t, answer.Answer, "(inference)")
}

func TestVerifierService_Synthesize_CitationsFollowEvidenceOrder(t *testing.T) {
	llm := &mockLLMService{
		generateFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Extract factual claims") {
				return "[]", nil
			}
			// The model cites the lower-ranked chunk first.
			return "Second fact [2]. First fact [1].", nil
		},
	}
	verifier := NewVerifierService(llm, nil, NewTraceRecorder(), testPipelineConfig())

	query := testQuery("What is the lead time of supplier X?")
	answer, err := verifier.Synthesize(context.Background(), query, []SubQueryEvidence{
		{
			SubQuery: query.SubQueries[0],
			Results: []domain.RetrievalResult{
				vectorResult("c1", "Supplier X ships in 30 days.", 0.9),
				vectorResult("c2", "Supplier X is based in Hamburg.", 0.8),
			},
		},
	})
	require.NoError(t, err)

	// Citation order follows the evidence numbering (descending score
	// within the sub-query), not the order the markers appear.
	require.Len(t, answer.Citations, 2)
	assert.Equal(t, "c1", answer.Citations[0].ChunkID)
	assert.Equal(t, "c2", answer.Citations[1].ChunkID)
}

func TestVerifierService_Synthesize_ContradictionDetected(t *testing.T) {
	llm := &mockLLMService{
		generateFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Extract factual claims") {
				return `[
					{"chunk": 1, "subject": "supplier X", "metric": "capacity", "value": "120 units"},
					{"chunk": 2, "subject": "Supplier X", "metric": "capacity", "value": "150 units"}
				]`, nil
			}
			return "Reported capacity differs across sources [1] [2].", nil
		},
	}
	verifier := NewVerifierService(llm, nil, NewTraceRecorder(), testPipelineConfig())

	query := testQuery("What is the capacity of supplier X?")
	evidence := []SubQueryEvidence{
		{
			SubQuery: query.SubQueries[0],
			Results: []domain.RetrievalResult{
				vectorResult("c1", "Supplier X capacity: 120 units.", 0.9),
				vectorResult("c2", "Supplier X capacity: 150 units.", 0.85),
			},
		},
	}

	answer, err := verifier.Synthesize(context.Background(), query, evidence)
	require.NoError(t, err)

	require.Len(t, answer.Contradictions, 1)
	assert.Equal(t, "c1", answer.Contradictions[0].SourceA)
	assert.Equal(t, "c2", answer.Contradictions[0].SourceB)

	// Conflicting evidence is surfaced, not averaged away.
	assert.Contains(t, answer.Answer, "conflict")
	assert.Less(t, answer.Confidence, 1.0)
}

func TestVerifierService_Synthesize_ExtractiveFallback(t *testing.T) {
	llm := &mockLLMService{
		generateFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Extract factual claims") {
				return "[]", nil
			}
			return "", errors.New("model unavailable")
		},
	}
	verifier := NewVerifierService(llm, nil, NewTraceRecorder(), testPipelineConfig())

	query := testQuery("What is the lead time of supplier X?")
	answer, err := verifier.Synthesize(context.Background(), query, []SubQueryEvidence{
		{
			SubQuery: query.SubQueries[0],
			Results:  []domain.RetrievalResult{vectorResult("c1", "Supplier X ships in 30 days.", 0.9)},
		},
	})
	require.NoError(t, err)

	// The extractive answer still cites its evidence.
	assert.Contains(t, answer.Answer, "Supplier X ships in 30 days")
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "c1", answer.Citations[0].ChunkID)
}

func TestVerifierService_ScoreConfidence(t *testing.T) {
	verifier := NewVerifierService(nil, nil, nil, testPipelineConfig())

	strong := []SubQueryEvidence{
		{SubQuery: domain.SubQuery{ID: "sq-1"}, Results: []domain.RetrievalResult{vectorResult("c1", "a", 0.9)}},
		{SubQuery: domain.SubQuery{ID: "sq-2"}, Results: []domain.RetrievalResult{vectorResult("c2", "b", 0.8)}},
	}
	items := assembleEvidence(strong)
	assert.InDelta(t, 1.0, verifier.scoreConfidence(strong, items, nil), 1e-9)

	t.Run("unanswered sub-query lowers confidence", func(t *testing.T) {
		partial := append(strong[:2:2], SubQueryEvidence{SubQuery: domain.SubQuery{ID: "sq-3"}})
		got := verifier.scoreConfidence(partial, assembleEvidence(partial), nil)
		assert.InDelta(t, 2.0/3.0, got, 1e-9)
	})

	t.Run("keyword evidence lowers confidence", func(t *testing.T) {
		keyword := []SubQueryEvidence{
			{SubQuery: domain.SubQuery{ID: "sq-1"}, Results: []domain.RetrievalResult{{
				ChunkID: "c1", DocumentID: "doc-1", Content: "a", Score: 0.5, Mode: domain.RetrievalModeKeyword,
			}}},
		}
		got := verifier.scoreConfidence(keyword, assembleEvidence(keyword), nil)
		assert.InDelta(t, 0.7, got, 1e-9)
	})

	t.Run("contradictions lower confidence", func(t *testing.T) {
		contradictions := []domain.Contradiction{{SourceA: "c1", SourceB: "c2"}}
		got := verifier.scoreConfidence(strong, items, contradictions)
		assert.InDelta(t, 0.75, got, 1e-9)
	})

	t.Run("weak best score lowers confidence", func(t *testing.T) {
		weak := []SubQueryEvidence{
			{SubQuery: domain.SubQuery{ID: "sq-1"}, Results: []domain.RetrievalResult{vectorResult("c1", "a", 0.1)}},
		}
		got := verifier.scoreConfidence(weak, assembleEvidence(weak), nil)
		assert.InDelta(t, 0.85, got, 1e-9)
	})
}

func TestVerifierService_Synthesize_RefinementDeepens(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c0", "c1", "c2", "c3", "c4")

	llm := &mockLLMService{
		generateFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Extract factual claims") {
				return "[]", nil
			}
			return "Supplier X ships in 30 days [1].", nil
		},
	}

	vec := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c2", Similarity: 0.9}}}
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}
	cfg := testPipelineConfig()
	retrieval := NewRetrievalService(store, vec, &mockSearchEngine{}, embed, cfg)
	trace := NewTraceRecorder()
	orch := NewToolOrchestrator(retrieval, store, llm, trace, cfg)
	verifier := NewVerifierService(llm, orch, trace, cfg)

	// One weak keyword answer, one sub-query with nothing: confidence
	// starts below the refinement threshold.
	query := testQuery("lead time", "capacity")
	evidence := []SubQueryEvidence{
		{SubQuery: query.SubQueries[0], Results: []domain.RetrievalResult{{
			ChunkID: "c0", DocumentID: "doc-1", Content: "content of c0",
			Score: 0.3, Mode: domain.RetrievalModeKeyword,
		}}},
		{SubQuery: query.SubQueries[1]},
	}

	answer, err := verifier.Synthesize(context.Background(), query, evidence)
	require.NoError(t, err)

	// Refinement retrieved deeper context for the empty sub-query.
	assert.Greater(t, answer.Confidence, 0.5)

	refined := false
	for _, step := range trace.Export(query.ID) {
		if step.Kind == domain.StepRefinement {
			refined = true
		}
	}
	assert.True(t, refined)
}

func TestPairContradictions(t *testing.T) {
	claims := []claim{
		{Subject: "Supplier X", Metric: "capacity", Value: "120", sourceChunkID: "c1"},
		{Subject: "supplier x", Metric: "Capacity", Value: "150", sourceChunkID: "c2"},
		{Subject: "Supplier Y", Metric: "capacity", Value: "99", sourceChunkID: "c3"},
		{Subject: "Supplier X", Metric: "capacity", Value: "120", sourceChunkID: "c4"},
	}

	contradictions := pairContradictions(claims)

	// X:120 vs X:150 twice (c1/c2 and c2/c4); agreeing and unrelated
	// claims never pair.
	require.Len(t, contradictions, 2)
	for _, c := range contradictions {
		assert.NotEqual(t, c.SourceA, c.SourceB)
	}
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("First. Second! Third?\nFourth")
	assert.Len(t, sentences, 4)

	assert.Empty(t, splitSentences("   "))
}
