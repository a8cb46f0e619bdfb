package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
)

func newTestOrchestrator(store *mockDocumentStore, vec *mockVectorIndex, search *mockSearchEngine, llm *mockLLMService) *ToolOrchestrator {
	cfg := testPipelineConfig()
	embed := &mockEmbeddingService{embedding: []float32{0.1, 0.2, 0.3}}
	retrieval := NewRetrievalService(store, vec, search, embed, cfg)
	return NewToolOrchestrator(retrieval, store, llm, NewTraceRecorder(), cfg)
}

func TestToolOrchestrator_Invoke_UnknownTool(t *testing.T) {
	orch := newTestOrchestrator(newMockDocumentStore(), &mockVectorIndex{}, &mockSearchEngine{}, &mockLLMService{})

	_, err := orch.Invoke(context.Background(), "q1", domain.ToolName("drop_tables"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
}

func TestToolOrchestrator_Invoke_SearchDocuments(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1", "c2")

	vec := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c1", Similarity: 0.9},
		{ChunkID: "c2", Similarity: 0.8},
	}}
	orch := newTestOrchestrator(store, vec, &mockSearchEngine{}, &mockLLMService{})

	call, err := orch.Invoke(context.Background(), "q1", domain.ToolSearchDocuments, map[string]any{
		"query": "supplier lead time",
	})
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.False(t, call.Failed())

	payload, ok := call.Response.(*SearchDocumentsResult)
	require.True(t, ok)
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, "c1", payload.Results[0].ChunkID)
}

func TestToolOrchestrator_Invoke_MissingQuery(t *testing.T) {
	orch := newTestOrchestrator(newMockDocumentStore(), &mockVectorIndex{}, &mockSearchEngine{}, &mockLLMService{})

	call, err := orch.Invoke(context.Background(), "q1", domain.ToolSearchDocuments, map[string]any{})
	require.Error(t, err)

	var toolErr *domain.ToolInvocationError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, domain.ToolSearchDocuments, toolErr.Tool)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// The failed call is still recorded.
	require.NotNil(t, call)
	assert.True(t, call.Failed())
	assert.Len(t, orch.Calls("q1"), 1)
}

func TestToolOrchestrator_Invoke_BudgetExhausted(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1")
	vec := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c1", Similarity: 0.9}}}
	orch := newTestOrchestrator(store, vec, &mockSearchEngine{}, &mockLLMService{})

	params := map[string]any{"query": "anything"}
	for i := 0; i < domain.DefaultToolCallBudget; i++ {
		_, err := orch.Invoke(context.Background(), "q1", domain.ToolSearchDocuments, params)
		require.NoError(t, err)
	}

	_, err := orch.Invoke(context.Background(), "q1", domain.ToolSearchDocuments, params)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)

	// Other queries have their own budget.
	_, err = orch.Invoke(context.Background(), "q2", domain.ToolSearchDocuments, params)
	assert.NoError(t, err)
}

func TestToolOrchestrator_Invoke_RetrieveContextExpandsNeighbours(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c0", "c1", "c2", "c3", "c4") // positions 0..4 in doc-1

	vec := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c2", Similarity: 0.9}}}
	orch := newTestOrchestrator(store, vec, &mockSearchEngine{}, &mockLLMService{})

	call, err := orch.Invoke(context.Background(), "q1", domain.ToolRetrieveContext, map[string]any{
		"query": "supplier lead time",
		"depth": "shallow",
	})
	require.NoError(t, err)

	payload, ok := call.Response.(*RetrieveContextResult)
	require.True(t, ok)

	// Shallow depth pulls one neighbour on each side of the hit.
	ids := make([]string, 0, len(payload.Results))
	for _, r := range payload.Results {
		ids = append(ids, r.ChunkID)
	}
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, ids)
	assert.NotEmpty(t, payload.Context)

	// Neighbours score below the hit that pulled them in.
	for _, r := range payload.Results {
		if r.ChunkID == "c2" {
			assert.InDelta(t, 0.9, r.Score, 1e-9)
		} else {
			assert.InDelta(t, 0.9*neighbourDiscount, r.Score, 1e-9)
		}
	}
}

func TestToolOrchestrator_Invoke_AnalyzeSupplyChain(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1", "c2")

	vec := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c1", Similarity: 0.9},
		{ChunkID: "c2", Similarity: 0.8},
	}}
	llm := &mockLLMService{
		generateFn: func(prompt string) (string, error) {
			if !strings.Contains(prompt, "content of c1") {
				return "", errors.New("evidence missing from prompt")
			}
			return "Lead times are trending upward.", nil
		},
	}
	orch := newTestOrchestrator(store, vec, &mockSearchEngine{}, llm)

	call, err := orch.Invoke(context.Background(), "q1", domain.ToolAnalyzeSupplyChain, map[string]any{
		"topic": "supplier lead times",
	})
	require.NoError(t, err)

	payload, ok := call.Response.(*AnalysisResult)
	require.True(t, ok)
	assert.Equal(t, "supplier lead times", payload.Topic)
	assert.Equal(t, "Lead times are trending upward.", payload.Analysis)
	assert.NotEmpty(t, payload.Sources)
}

func TestToolOrchestrator_Invoke_GenerateInsights(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1")

	vec := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c1", Similarity: 0.9}}}
	llm := &mockLLMService{
		generateFn: func(string) (string, error) {
			return "Risk: single-source dependency on supplier X.", nil
		},
	}
	orch := newTestOrchestrator(store, vec, &mockSearchEngine{}, llm)

	// Insights draw on prior calls of the same query.
	_, err := orch.Invoke(context.Background(), "q1", domain.ToolSearchDocuments, map[string]any{"query": "supplier X"})
	require.NoError(t, err)

	call, err := orch.Invoke(context.Background(), "q1", domain.ToolGenerateInsights, map[string]any{"scope": "risks"})
	require.NoError(t, err)

	payload, ok := call.Response.(*InsightsResult)
	require.True(t, ok)
	assert.Equal(t, "risks", payload.InsightType)
	require.Len(t, payload.Citations, 1)
	assert.Equal(t, "c1", payload.Citations[0].ChunkID)
}

func TestToolOrchestrator_Invoke_GenerateInsightsWithoutContext(t *testing.T) {
	orch := newTestOrchestrator(newMockDocumentStore(), &mockVectorIndex{}, &mockSearchEngine{}, &mockLLMService{})

	_, err := orch.Invoke(context.Background(), "q1", domain.ToolGenerateInsights, map[string]any{"scope": "trends"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestToolOrchestrator_DefaultTools(t *testing.T) {
	orch := newTestOrchestrator(newMockDocumentStore(), &mockVectorIndex{}, &mockSearchEngine{}, &mockLLMService{})

	plain := orch.DefaultTools("What is the lead time of supplier X?")
	assert.Equal(t, []domain.ToolName{domain.ToolSearchDocuments}, plain)

	analytical := orch.DefaultTools("Assess the risk of relying on supplier X")
	assert.Equal(t, []domain.ToolName{domain.ToolSearchDocuments, domain.ToolAnalyzeSupplyChain}, analytical)
}

func TestToolOrchestrator_Release(t *testing.T) {
	store := newMockDocumentStore()
	seedChunks(store, "c1")
	vec := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c1", Similarity: 0.9}}}
	orch := newTestOrchestrator(store, vec, &mockSearchEngine{}, &mockLLMService{})

	_, err := orch.Invoke(context.Background(), "q1", domain.ToolSearchDocuments, map[string]any{"query": "x"})
	require.NoError(t, err)
	require.Len(t, orch.Calls("q1"), 1)

	orch.Release("q1")
	assert.Empty(t, orch.Calls("q1"))
}
