package mcp

import (
	"context"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ansera-cli/internal/core/services"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question      string `json:"question" jsonschema:"the natural-language question to answer from the corpus"`
	MaxSubQueries int    `json:"max_sub_queries,omitempty" jsonschema:"maximum sub-queries for decomposition (default 3, cap 5)"`
	TopK          int    `json:"top_k,omitempty" jsonschema:"results per sub-query (default 5)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	QueryID        string                `json:"query_id"`
	Answer         string                `json:"answer"`
	Confidence     float64               `json:"confidence"`
	Grounded       bool                  `json:"grounded"`
	Citations      []CitationOutput      `json:"citations"`
	Contradictions []ContradictionOutput `json:"contradictions,omitempty"`
	Inferences     []string              `json:"inferences,omitempty"`
}

// CitationOutput links an answer sentence to a retrieved chunk.
type CitationOutput struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
}

// ContradictionOutput reports a pair of conflicting claims.
type ContradictionOutput struct {
	ClaimA  string `json:"claim_a"`
	ClaimB  string `json:"claim_b"`
	SourceA string `json:"source_a"`
	SourceB string `json:"source_b"`
}

// ResultOutput represents a single retrieval hit.
type ResultOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Mode       string  `json:"mode"`
}

// SearchInput is the input schema for the search_documents tool.
type SearchInput struct {
	Query   string `json:"query" jsonschema:"the search query to find relevant chunks"`
	TopK    int    `json:"top_k,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	QueryID string `json:"query_id,omitempty" jsonschema:"optional session id to group calls for generate_insights"`
}

// SearchOutput is the output schema for the search_documents tool.
type SearchOutput struct {
	QueryID string         `json:"query_id"`
	Results []ResultOutput `json:"results"`
	Count   int            `json:"count"`
}

// RetrieveContextInput is the input schema for the retrieve_context tool.
type RetrieveContextInput struct {
	Query   string `json:"query" jsonschema:"the query to retrieve surrounding context for"`
	Depth   string `json:"depth,omitempty" jsonschema:"context window depth: shallow, medium, or deep (default medium)"`
	QueryID string `json:"query_id,omitempty" jsonschema:"optional session id to group calls for generate_insights"`
}

// RetrieveContextOutput is the output schema for the retrieve_context tool.
type RetrieveContextOutput struct {
	QueryID string         `json:"query_id"`
	Context string         `json:"context"`
	Results []ResultOutput `json:"results"`
}

// AnalyzeInput is the input schema for the analyze_supply_chain tool.
type AnalyzeInput struct {
	Topic      string   `json:"topic" jsonschema:"the supply chain topic to analyse"`
	FocusAreas []string `json:"focus_areas,omitempty" jsonschema:"optional focus areas for the analysis"`
	QueryID    string   `json:"query_id,omitempty" jsonschema:"optional session id to group calls for generate_insights"`
}

// AnalyzeOutput is the output schema for the analyze_supply_chain tool.
type AnalyzeOutput struct {
	QueryID    string         `json:"query_id"`
	Topic      string         `json:"topic"`
	FocusAreas []string       `json:"focus_areas,omitempty"`
	Analysis   string         `json:"analysis"`
	Sources    []ResultOutput `json:"sources"`
}

// InsightsInput is the input schema for the generate_insights tool.
type InsightsInput struct {
	Scope   string `json:"scope,omitempty" jsonschema:"insight scope: trends, risks, or opportunities (default trends)"`
	QueryID string `json:"query_id" jsonschema:"session id of prior tool calls to aggregate"`
}

// InsightsOutput is the output schema for the generate_insights tool.
type InsightsOutput struct {
	QueryID     string           `json:"query_id"`
	InsightType string           `json:"insight_type"`
	Insights    string           `json:"insights"`
	Citations   []CitationOutput `json:"citations"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question over the document corpus with citations and a confidence score",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        string(domain.ToolSearchDocuments),
		Description: "Ranked similarity search over document chunks",
	}, s.handleSearchDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        string(domain.ToolRetrieveContext),
		Description: "Similarity search expanded to neighbouring chunks of each hit",
	}, s.handleRetrieveContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        string(domain.ToolAnalyzeSupplyChain),
		Description: "Structured supply chain analysis grounded on retrieved chunks",
	}, s.handleAnalyzeSupplyChain)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        string(domain.ToolGenerateInsights),
		Description: "Aggregate prior tool calls of a session into trends, risks, or opportunities",
	}, s.handleGenerateInsights)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Ask.Ask(ctx, input.Question, driving.AskOptions{
		MaxSubQueries: input.MaxSubQueries,
		TopK:          input.TopK,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		QueryID:    answer.QueryID,
		Answer:     answer.Answer,
		Confidence: answer.Confidence,
		Grounded:   answer.Grounded(domain.DefaultGroundedThreshold),
		Citations:  citationOutputs(answer.Citations),
		Inferences: answer.Inferences,
	}
	for _, c := range answer.Contradictions {
		output.Contradictions = append(output.Contradictions, ContradictionOutput{
			ClaimA:  c.ClaimA,
			ClaimB:  c.ClaimB,
			SourceA: c.SourceA,
			SourceB: c.SourceB,
		})
	}

	return nil, output, nil
}

// handleSearchDocuments handles the search_documents tool invocation.
func (s *Server) handleSearchDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	queryID := sessionID(input.QueryID)
	params := map[string]any{"query": input.Query}
	if input.TopK > 0 {
		params["top_k"] = input.TopK
	}

	call, err := s.ports.Tools.Invoke(ctx, queryID, domain.ToolSearchDocuments, params)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{QueryID: queryID}
	if payload, ok := call.Response.(*services.SearchDocumentsResult); ok {
		output.Results = resultOutputs(payload.Results)
		output.Count = payload.Count
	}

	return nil, output, nil
}

// handleRetrieveContext handles the retrieve_context tool invocation.
func (s *Server) handleRetrieveContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveContextInput,
) (*mcp.CallToolResult, RetrieveContextOutput, error) {
	queryID := sessionID(input.QueryID)
	params := map[string]any{"query": input.Query}
	if input.Depth != "" {
		params["depth"] = input.Depth
	}

	call, err := s.ports.Tools.Invoke(ctx, queryID, domain.ToolRetrieveContext, params)
	if err != nil {
		return nil, RetrieveContextOutput{}, err
	}

	output := RetrieveContextOutput{QueryID: queryID}
	if payload, ok := call.Response.(*services.RetrieveContextResult); ok {
		output.Context = payload.Context
		output.Results = resultOutputs(payload.Results)
	}

	return nil, output, nil
}

// handleAnalyzeSupplyChain handles the analyze_supply_chain tool invocation.
func (s *Server) handleAnalyzeSupplyChain(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeInput,
) (*mcp.CallToolResult, AnalyzeOutput, error) {
	queryID := sessionID(input.QueryID)
	params := map[string]any{"topic": input.Topic}
	if len(input.FocusAreas) > 0 {
		params["focus_areas"] = input.FocusAreas
	}

	call, err := s.ports.Tools.Invoke(ctx, queryID, domain.ToolAnalyzeSupplyChain, params)
	if err != nil {
		return nil, AnalyzeOutput{}, err
	}

	output := AnalyzeOutput{QueryID: queryID}
	if payload, ok := call.Response.(*services.AnalysisResult); ok {
		output.Topic = payload.Topic
		output.FocusAreas = payload.FocusAreas
		output.Analysis = payload.Analysis
		output.Sources = resultOutputs(payload.Sources)
	}

	return nil, output, nil
}

// handleGenerateInsights handles the generate_insights tool invocation.
func (s *Server) handleGenerateInsights(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InsightsInput,
) (*mcp.CallToolResult, InsightsOutput, error) {
	queryID := sessionID(input.QueryID)
	params := map[string]any{}
	if input.Scope != "" {
		params["scope"] = input.Scope
	}

	call, err := s.ports.Tools.Invoke(ctx, queryID, domain.ToolGenerateInsights, params)
	if err != nil {
		return nil, InsightsOutput{}, err
	}

	output := InsightsOutput{QueryID: queryID}
	if payload, ok := call.Response.(*services.InsightsResult); ok {
		output.InsightType = payload.InsightType
		output.Insights = payload.Insights
		output.Citations = citationOutputs(payload.Citations)
	}

	return nil, output, nil
}

// sessionID returns the caller-provided session id or a fresh one.
func sessionID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func resultOutputs(results []domain.RetrievalResult) []ResultOutput {
	outputs := make([]ResultOutput, len(results))
	for i := range results {
		outputs[i] = ResultOutput{
			ChunkID:    results[i].ChunkID,
			DocumentID: results[i].DocumentID,
			Content:    results[i].Content,
			Score:      results[i].Score,
			Mode:       string(results[i].Mode),
		}
	}
	return outputs
}

func citationOutputs(citations []domain.Citation) []CitationOutput {
	outputs := make([]CitationOutput, len(citations))
	for i := range citations {
		outputs[i] = CitationOutput{
			DocumentID: citations[i].DocumentID,
			ChunkID:    citations[i].ChunkID,
		}
	}
	return outputs
}
