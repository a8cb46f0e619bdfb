package services

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ansera-cli/internal/logger"
)

// Ensure AskService implements the interface.
var _ driving.AskService = (*AskService)(nil)

// AskService runs the full question-answering pipeline: plan the
// question, gather evidence per sub-query in parallel, then verify and
// synthesize a cited answer.
type AskService struct {
	planner      *PlannerService
	orchestrator *ToolOrchestrator
	verifier     *VerifierService
	trace        *TraceRecorder
	cfg          domain.PipelineConfig
}

// NewAskService wires the pipeline stages together.
func NewAskService(
	planner *PlannerService,
	orchestrator *ToolOrchestrator,
	verifier *VerifierService,
	trace *TraceRecorder,
	cfg domain.PipelineConfig,
) *AskService {
	return &AskService{
		planner:      planner,
		orchestrator: orchestrator,
		verifier:     verifier,
		trace:        trace,
		cfg:          cfg.Normalised(),
	}
}

// Ask answers a natural-language question over the corpus. Sub-queries
// are retrieved concurrently; each one degrades independently, so one
// failing sub-query lowers confidence instead of failing the answer.
// An embedding dimension mismatch is the exception: it signals
// configuration skew and aborts the whole query.
func (s *AskService) Ask(ctx context.Context, question string, opts driving.AskOptions) (*domain.AnswerResult, error) {
	query, err := s.planner.Plan(ctx, question, opts.MaxSubQueries)
	if err != nil {
		return nil, err
	}
	defer s.orchestrator.Release(query.ID)

	s.trace.Append(query.ID, domain.StepPlan, "%s", query.PlanRationale)
	for _, sq := range query.SubQueries {
		s.trace.Append(query.ID, domain.StepPlan, "%s: %s", sq.ID, sq.Text)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	evidence := make([]SubQueryEvidence, len(query.SubQueries))
	fatal := make([]error, len(query.SubQueries))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range query.SubQueries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			results, err := s.gather(ctx, query.ID, query.SubQueries[i], topK)

			mu.Lock()
			defer mu.Unlock()
			evidence[i] = SubQueryEvidence{SubQuery: query.SubQueries[i], Results: results}
			fatal[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range fatal {
		if err != nil {
			return nil, err
		}
	}

	for i := range evidence {
		if len(evidence[i].Results) > 0 {
			evidence[i].SubQuery.Status = domain.SubQueryAnswered
		} else {
			evidence[i].SubQuery.Status = domain.SubQueryUnanswered
		}
		query.SubQueries[i].Status = evidence[i].SubQuery.Status
		s.trace.Append(query.ID, domain.StepRetrieval,
			"%s: %d chunks, status %s", evidence[i].SubQuery.ID, len(evidence[i].Results), evidence[i].SubQuery.Status)
	}

	answer, err := s.verifier.Synthesize(ctx, query, evidence)
	if err != nil {
		return nil, err
	}

	answer.Trace = s.trace.Export(query.ID)
	logger.Info("Answered query %s with confidence %.2f", query.ID, answer.Confidence)
	return answer, nil
}

// gather collects evidence for one sub-query via its default tools.
// Tool failures are tolerated (the call is already recorded in the
// trace); only a dimension mismatch is returned as fatal.
func (s *AskService) gather(ctx context.Context, queryID string, subQuery domain.SubQuery, topK int) ([]domain.RetrievalResult, error) {
	var results []domain.RetrievalResult

	for _, tool := range s.orchestrator.DefaultTools(subQuery.Text) {
		params := map[string]any{"query": subQuery.Text}
		if tool == domain.ToolSearchDocuments {
			params["top_k"] = topK
		}

		call, err := s.orchestrator.Invoke(ctx, queryID, tool, params)
		if err != nil {
			var dim *domain.DimensionMismatchError
			if errors.As(err, &dim) {
				return nil, err
			}
			logger.Warn("Tool %s failed for %s: %v", tool, subQuery.ID, err)
			continue
		}

		switch payload := call.Response.(type) {
		case *SearchDocumentsResult:
			results = mergeResults(results, payload.Results)
		case *AnalysisResult:
			results = mergeResults(results, payload.Sources)
		}
	}

	return results, nil
}
