package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ansera-cli/internal/logger"
)

// defaultPlanPrompt is the fallback prompt when no PromptStore is configured.
const defaultPlanPrompt = `You are a query planning agent for a document intelligence platform.
Break the question below into at most %d focused sub-queries that can be answered independently.
Each sub-query must be specific and answerable on its own.
If the question is already simple, return it unchanged as the only element.
Return ONLY a JSON array of strings, for example: ["sub-query 1", "sub-query 2"]

Question: %s`

// multiHopMarkers are phrases indicating a question needs decomposition.
var multiHopMarkers = []string{
	" and ", " versus ", " vs ", "compare", "difference between",
	"relationship between", "as well as", "along with", "both ",
	"; ", "impact of", "affect",
}

// PlannerService decomposes a question into an ordered set of
// sub-queries whose answers compose into the final answer.
type PlannerService struct {
	llmService  driven.LLMService
	promptStore driven.PromptStore
	cfg         domain.PipelineConfig
}

// NewPlannerService creates a new query planner.
func NewPlannerService(llmService driven.LLMService, cfg domain.PipelineConfig) *PlannerService {
	return &PlannerService{
		llmService: llmService,
		cfg:        cfg.Normalised(),
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *PlannerService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// Plan decomposes a question. Single-fact questions produce exactly
// one sub-query equal to the question, so downstream logic is uniform.
// If no sub-query can be produced, Plan fails with a PlanningError and
// the pipeline aborts before any retrieval cost is incurred.
func (s *PlannerService) Plan(ctx context.Context, question string, maxSubQueries int) (*domain.Query, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &domain.PlanningError{Cause: fmt.Errorf("%w: empty question", domain.ErrInvalidInput)}
	}

	if maxSubQueries <= 0 {
		maxSubQueries = s.cfg.MaxSubQueries
	}
	if maxSubQueries > domain.MaxSubQueryLimit {
		maxSubQueries = domain.MaxSubQueryLimit
	}

	logger.Section("Query Planning")

	query := &domain.Query{
		ID:        uuid.New().String(),
		Question:  question,
		CreatedAt: time.Now().UTC(),
	}

	if !s.isMultiHop(question) || maxSubQueries == 1 {
		// Single-fact: decomposition is a no-op, not skipped.
		query.SubQueries = buildSubQueries([]string{question})
		query.PlanRationale = "question classified as single-fact; answered as one sub-query"
		logger.Info("Plan: single-fact question")
		return query, nil
	}

	texts, err := s.decompose(ctx, question, maxSubQueries)
	if err != nil {
		return nil, &domain.PlanningError{Cause: err}
	}

	query.SubQueries = buildSubQueries(texts)
	query.PlanRationale = fmt.Sprintf("question classified as multi-hop; decomposed into %d sub-queries", len(texts))
	logger.Info("Plan: %d sub-queries", len(texts))
	return query, nil
}

// isMultiHop classifies question complexity with a deterministic
// phrase heuristic. Anything not obviously compound is single-fact.
func (s *PlannerService) isMultiHop(question string) bool {
	lower := strings.ToLower(question)
	for _, marker := range multiHopMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.Count(question, "?") > 1
}

// decompose asks the language model for sub-queries.
func (s *PlannerService) decompose(ctx context.Context, question string, maxSubQueries int) ([]string, error) {
	if s.llmService == nil {
		return nil, domain.ErrLLMUnavailable
	}

	promptTemplate := s.loadPrompt(driven.PromptPlan, defaultPlanPrompt)
	prompt := fmt.Sprintf(promptTemplate, maxSubQueries, question)

	response, err := s.llmService.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("decompose question: %w", err)
	}

	texts, err := parseSubQueries(response)
	if err != nil {
		return nil, err
	}
	if len(texts) > maxSubQueries {
		texts = texts[:maxSubQueries]
	}
	return texts, nil
}

// parseSubQueries extracts the JSON array from a model response,
// tolerating surrounding prose and code fences.
func parseSubQueries(response string) ([]string, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("malformed planner response: no JSON array found")
	}

	var texts []string
	if err := json.Unmarshal([]byte(response[start:end+1]), &texts); err != nil {
		return nil, fmt.Errorf("malformed planner response: %w", err)
	}

	cleaned := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("planner produced no sub-queries")
	}
	return cleaned, nil
}

// buildSubQueries assigns stable per-query sub-query IDs.
func buildSubQueries(texts []string) []domain.SubQuery {
	subQueries := make([]domain.SubQuery, len(texts))
	for i, text := range texts {
		subQueries[i] = domain.SubQuery{
			ID:     fmt.Sprintf("sq-%d", i+1),
			Text:   text,
			Status: domain.SubQueryPending,
		}
	}
	return subQueries
}

// loadPrompt loads a prompt from the store, falling back to the default.
func (s *PlannerService) loadPrompt(name, fallback string) string {
	if s.promptStore == nil {
		return fallback
	}
	prompt, err := s.promptStore.Load(name)
	if err != nil {
		return fallback
	}
	return prompt
}
