package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ansera-cli/internal/logger"
)

// Ensure ToolOrchestrator implements the interface.
var _ driving.ToolService = (*ToolOrchestrator)(nil)

// depthWindows maps retrieve_context depth names to the neighbouring
// chunk window size on each side of a hit.
var depthWindows = map[string]int{
	"shallow": 1,
	"medium":  2,
	"deep":    4,
}

// analyticalMarkers are keywords signalling analytical intent in a
// sub-query; they trigger the analyze_supply_chain capability in the
// default tool mapping.
var analyticalMarkers = []string{
	"analy", "risk", "trend", "optimi", "opportunit",
	"assess", "impact", "strateg", "bottleneck", "forecast",
}

// neighbourDiscount is applied to a hit's score when attributing it to
// adjacent context chunks.
const neighbourDiscount = 0.8

// SearchDocumentsResult is the structured payload of search_documents.
type SearchDocumentsResult struct {
	// Results is the ranked retrieval output.
	Results []domain.RetrievalResult

	// Count is len(Results), for the protocol surface.
	Count int
}

// RetrieveContextResult is the structured payload of retrieve_context.
type RetrieveContextResult struct {
	// Results includes the direct hits plus neighbouring chunks.
	Results []domain.RetrievalResult

	// Context is the aggregated text in document order.
	Context string
}

// AnalysisResult is the structured payload of analyze_supply_chain.
type AnalysisResult struct {
	// Topic is the analysed topic.
	Topic string

	// FocusAreas are the requested focus areas, if any.
	FocusAreas []string

	// Analysis is the model's structured findings.
	Analysis string

	// Sources are the chunks the analysis was grounded on.
	Sources []domain.RetrievalResult
}

// InsightsResult is the structured payload of generate_insights.
type InsightsResult struct {
	// InsightType is one of trends, risks, opportunities.
	InsightType string

	// Insights is the generated insight text.
	Insights string

	// Citations reference the underlying chunks from prior tool calls.
	Citations []domain.Citation
}

// toolHandler executes one capability.
type toolHandler func(ctx context.Context, queryID string, params map[string]any) (any, error)

// ToolOrchestrator exposes the fixed capability set behind a uniform
// dispatch interface. The registry is closed: the four capabilities
// are versioned together, and unrecognised names are rejected with a
// structured error rather than a silent no-op.
type ToolOrchestrator struct {
	retrieval   *RetrievalService
	docStore    driven.DocumentStore
	llmService  driven.LLMService
	promptStore driven.PromptStore
	trace       *TraceRecorder
	cfg         domain.PipelineConfig

	handlers map[domain.ToolName]toolHandler

	mu    sync.RWMutex
	calls map[string][]domain.ToolCall
}

// NewToolOrchestrator creates the orchestrator and registers the four
// capabilities.
func NewToolOrchestrator(
	retrieval *RetrievalService,
	docStore driven.DocumentStore,
	llmService driven.LLMService,
	trace *TraceRecorder,
	cfg domain.PipelineConfig,
) *ToolOrchestrator {
	o := &ToolOrchestrator{
		retrieval:  retrieval,
		docStore:   docStore,
		llmService: llmService,
		trace:      trace,
		cfg:        cfg.Normalised(),
		calls:      make(map[string][]domain.ToolCall),
	}

	o.handlers = map[domain.ToolName]toolHandler{
		domain.ToolSearchDocuments:    o.searchDocuments,
		domain.ToolRetrieveContext:    o.retrieveContext,
		domain.ToolAnalyzeSupplyChain: o.analyzeSupplyChain,
		domain.ToolGenerateInsights:   o.generateInsights,
	}

	return o
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (o *ToolOrchestrator) SetPromptStore(store driven.PromptStore) {
	o.promptStore = store
}

// DefaultTools returns the default capability mapping for a sub-query:
// search_documents always, plus analyze_supply_chain when the text
// signals analytical intent. Further tool selection is delegated to
// the verifier's bounded refinement loop.
func (o *ToolOrchestrator) DefaultTools(subQuery string) []domain.ToolName {
	tools := []domain.ToolName{domain.ToolSearchDocuments}
	lower := strings.ToLower(subQuery)
	for _, marker := range analyticalMarkers {
		if strings.Contains(lower, marker) {
			tools = append(tools, domain.ToolAnalyzeSupplyChain)
			break
		}
	}
	return tools
}

// Invoke dispatches a capability call. Every call is bounded by the
// configured tool timeout and by the per-query call budget. Transport
// failures are wrapped into a uniform ToolInvocationError; dimension
// mismatches pass through untouched because they are fatal for the
// query rather than retryable.
func (o *ToolOrchestrator) Invoke(
	ctx context.Context, queryID string, tool domain.ToolName, params map[string]any,
) (*domain.ToolCall, error) {
	handler, ok := o.handlers[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTool, tool)
	}

	o.mu.RLock()
	spent := len(o.calls[queryID])
	o.mu.RUnlock()
	if spent >= o.cfg.ToolCallBudget {
		return nil, fmt.Errorf("%w: %d calls", domain.ErrBudgetExhausted, spent)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
	defer cancel()

	call := domain.ToolCall{
		ID:        uuid.New().String(),
		QueryID:   queryID,
		Tool:      tool,
		Params:    params,
		StartedAt: time.Now().UTC(),
	}

	logger.Debug("Invoke %s for query %s", tool, queryID)
	response, err := handler(callCtx, queryID, params)
	call.Latency = time.Since(call.StartedAt)

	if err != nil {
		var dim *domain.DimensionMismatchError
		if !errors.As(err, &dim) {
			err = &domain.ToolInvocationError{Tool: tool, Cause: err}
		}
		call.Err = err.Error()
	} else {
		call.Response = response
	}

	o.record(queryID, call)
	if o.trace != nil {
		if call.Failed() {
			o.trace.Append(queryID, domain.StepToolCall, "%s failed after %v: %s", tool, call.Latency.Round(time.Millisecond), call.Err)
		} else {
			o.trace.Append(queryID, domain.StepToolCall, "%s completed in %v", tool, call.Latency.Round(time.Millisecond))
		}
	}

	if err != nil {
		return &call, err
	}
	return &call, nil
}

// Calls returns the completed tool calls of a query in dispatch order.
func (o *ToolOrchestrator) Calls(queryID string) []domain.ToolCall {
	o.mu.RLock()
	defer o.mu.RUnlock()
	calls := o.calls[queryID]
	out := make([]domain.ToolCall, len(calls))
	copy(out, calls)
	return out
}

// Release discards per-query call state once the answer is produced.
func (o *ToolOrchestrator) Release(queryID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.calls, queryID)
}

func (o *ToolOrchestrator) record(queryID string, call domain.ToolCall) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[queryID] = append(o.calls[queryID], call)
}

// --- Capability handlers ---

// searchDocuments delegates to the retrieval engine.
func (o *ToolOrchestrator) searchDocuments(ctx context.Context, _ string, params map[string]any) (any, error) {
	queryText, err := stringParam(params, "query")
	if err != nil {
		return nil, err
	}
	topK := intParam(params, "top_k", o.cfg.TopK)

	results, err := o.retrieval.Search(ctx, queryText, topK)
	if err != nil {
		return nil, err
	}

	return &SearchDocumentsResult{Results: results, Count: len(results)}, nil
}

// retrieveContext searches and then expands each hit to neighbouring
// chunks of the same document, so the reasoner sees surrounding
// context rather than isolated fragments.
func (o *ToolOrchestrator) retrieveContext(ctx context.Context, _ string, params map[string]any) (any, error) {
	queryText, err := stringParam(params, "query")
	if err != nil {
		return nil, err
	}

	window := depthWindows["medium"]
	if depth, ok := params["depth"].(string); ok {
		if w, found := depthWindows[depth]; found {
			window = w
		}
	}
	if w, ok := params["depth"].(int); ok && w > 0 {
		window = w
	}

	hits, err := o.retrieval.Search(ctx, queryText, o.cfg.TopK)
	if err != nil {
		return nil, err
	}

	expanded := o.expandNeighbours(ctx, hits, window)

	var b strings.Builder
	for i := range expanded {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(expanded[i].Content)
	}

	return &RetrieveContextResult{Results: expanded, Context: b.String()}, nil
}

// expandNeighbours merges each hit with the chunks at positions within
// the window on either side, deduplicated by chunk ID keeping the
// highest score.
func (o *ToolOrchestrator) expandNeighbours(ctx context.Context, hits []domain.RetrievalResult, window int) []domain.RetrievalResult {
	best := make(map[string]domain.RetrievalResult, len(hits))
	order := make([]string, 0, len(hits))

	add := func(r domain.RetrievalResult) {
		existing, seen := best[r.ChunkID]
		if !seen {
			best[r.ChunkID] = r
			order = append(order, r.ChunkID)
			return
		}
		if r.Score > existing.Score {
			best[r.ChunkID] = r
		}
	}

	for _, hit := range hits {
		add(hit)

		chunks, err := o.docStore.GetChunksByDocument(ctx, hit.DocumentID)
		if err != nil {
			logger.Warn("Neighbour expansion for %s: %v", hit.DocumentID, err)
			continue
		}

		hitPos := -1
		for i := range chunks {
			if chunks[i].ID == hit.ChunkID {
				hitPos = chunks[i].Position
				break
			}
		}
		if hitPos < 0 {
			continue
		}

		for i := range chunks {
			delta := chunks[i].Position - hitPos
			if delta == 0 || delta < -window || delta > window {
				continue
			}
			add(domain.RetrievalResult{
				ChunkID:    chunks[i].ID,
				DocumentID: chunks[i].DocumentID,
				Content:    chunks[i].Content,
				Score:      hit.Score * neighbourDiscount,
				Mode:       hit.Mode,
				IngestedAt: chunks[i].IngestedAt,
			})
		}
	}

	expanded := make([]domain.RetrievalResult, 0, len(order))
	for _, id := range order {
		expanded = append(expanded, best[id])
	}
	domain.SortRetrievalResults(expanded)
	return expanded
}

// defaultAnalysisPrompt is the fallback prompt when no PromptStore is configured.
const defaultAnalysisPrompt = `You are a supply chain analysis expert.
Provide structured, data-driven analysis focusing on key metrics, risk
assessment, optimisation opportunities, and actionable recommendations.

Analysis topic: %s

Relevant data:
%s

Provide a structured analysis with clear insights and recommendations.`

// analyzeSupplyChain runs the templated domain analysis over
// previously retrieved chunks for the topic.
func (o *ToolOrchestrator) analyzeSupplyChain(ctx context.Context, _ string, params map[string]any) (any, error) {
	if o.llmService == nil {
		return nil, domain.ErrLLMUnavailable
	}

	topic, err := stringParam(params, "topic")
	if err != nil {
		// The default mapping passes the sub-query as "query".
		topic, err = stringParam(params, "query")
		if err != nil {
			return nil, err
		}
	}

	var focusAreas []string
	if raw, ok := params["focus_areas"].([]string); ok {
		focusAreas = raw
	}

	// The original analysis depth: 7 chunks.
	sources, err := o.retrieval.Search(ctx, topic, 7)
	if err != nil {
		return nil, err
	}

	var evidence strings.Builder
	for i := range sources {
		fmt.Fprintf(&evidence, "[%d] %s\n\n", i+1, sources[i].Content)
	}

	promptTemplate := o.loadPrompt(driven.PromptAnalysis, defaultAnalysisPrompt)
	prompt := fmt.Sprintf(promptTemplate, topic, evidence.String())
	if len(focusAreas) > 0 {
		prompt += "\nFocus areas: " + strings.Join(focusAreas, ", ")
	}

	analysis, err := o.llmService.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   1024,
		Temperature: 0.5,
	})
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}

	return &AnalysisResult{
		Topic:      topic,
		FocusAreas: focusAreas,
		Analysis:   strings.TrimSpace(analysis),
		Sources:    sources,
	}, nil
}

// defaultInsightsPrompt is the fallback prompt when no PromptStore is configured.
const defaultInsightsPrompt = `You are a strategic insights analyst.
Identify %s in the following context. Insights must be data-driven,
specific, and actionable. Reference evidence as [N].

Context:
%s

Provide 3-5 key insights with supporting evidence.`

// insightScopes maps insight types to their prompt subject.
var insightScopes = map[string]string{
	"trends":        "emerging trends",
	"risks":         "potential risks and mitigation strategies",
	"opportunities": "optimisation opportunities and potential improvements",
}

// generateInsights aggregates the retrieval output of the query's
// prior tool calls and asks the model for insights citing the
// underlying chunks.
func (o *ToolOrchestrator) generateInsights(ctx context.Context, queryID string, params map[string]any) (any, error) {
	if o.llmService == nil {
		return nil, domain.ErrLLMUnavailable
	}

	insightType := "trends"
	if raw, ok := params["scope"].(string); ok && raw != "" {
		insightType = raw
	}
	scope, ok := insightScopes[insightType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown insight scope %q", domain.ErrInvalidInput, insightType)
	}

	evidence := o.aggregateEvidence(queryID)
	if len(evidence) == 0 {
		return nil, fmt.Errorf("%w: no retrieved context to generate insights from", domain.ErrInvalidInput)
	}

	var b strings.Builder
	citations := make([]domain.Citation, 0, len(evidence))
	for i := range evidence {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, evidence[i].Content)
		citations = append(citations, domain.Citation{
			DocumentID: evidence[i].DocumentID,
			ChunkID:    evidence[i].ChunkID,
		})
	}

	promptTemplate := o.loadPrompt(driven.PromptInsights, defaultInsightsPrompt)
	prompt := fmt.Sprintf(promptTemplate, scope, b.String())

	insights, err := o.llmService.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   1024,
		Temperature: 0.6,
	})
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}

	return &InsightsResult{
		InsightType: insightType,
		Insights:    strings.TrimSpace(insights),
		Citations:   citations,
	}, nil
}

// aggregateEvidence collects the retrieval results of a query's
// completed tool calls, deduplicated by chunk ID in dispatch order.
func (o *ToolOrchestrator) aggregateEvidence(queryID string) []domain.RetrievalResult {
	o.mu.RLock()
	calls := o.calls[queryID]
	o.mu.RUnlock()

	seen := make(map[string]bool)
	var evidence []domain.RetrievalResult

	add := func(results []domain.RetrievalResult) {
		for _, r := range results {
			if seen[r.ChunkID] {
				continue
			}
			seen[r.ChunkID] = true
			evidence = append(evidence, r)
		}
	}

	for i := range calls {
		switch payload := calls[i].Response.(type) {
		case *SearchDocumentsResult:
			add(payload.Results)
		case *RetrieveContextResult:
			add(payload.Results)
		case *AnalysisResult:
			add(payload.Sources)
		}
	}

	return evidence
}

// loadPrompt loads a prompt from the store, falling back to the default.
func (o *ToolOrchestrator) loadPrompt(name, fallback string) string {
	if o.promptStore == nil {
		return fallback
	}
	prompt, err := o.promptStore.Load(name)
	if err != nil {
		return fallback
	}
	return prompt
}

// --- Parameter helpers ---

func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: missing parameter %q", domain.ErrInvalidInput, key)
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: parameter %q must be a non-empty string", domain.ErrInvalidInput, key)
	}
	return s, nil
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return fallback
}
