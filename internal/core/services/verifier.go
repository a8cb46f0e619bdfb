package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ansera-cli/internal/logger"
)

// claimExtractionCap bounds how many evidence chunks are sent for
// claim extraction in one call.
const claimExtractionCap = 12

// citationMarker matches the [N] evidence references the synthesis
// prompt asks the model to emit.
var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// SubQueryEvidence pairs a sub-query with its retrieval results.
type SubQueryEvidence struct {
	// SubQuery is the planned sub-query.
	SubQuery domain.SubQuery

	// Results is the ordered retrieval output for it.
	Results []domain.RetrievalResult
}

// evidenceItem is one numbered entry of the assembled evidence set.
type evidenceItem struct {
	ordinal  int
	chunkID  string
	docID    string
	content  string
	score    float64
	mode     domain.RetrievalMode
	subQuery string
}

// claim is one extracted factual assertion, tied to its source chunk.
type claim struct {
	Subject string `json:"subject"`
	Metric  string `json:"metric"`
	Value   string `json:"value"`
	Chunk   int    `json:"chunk"`

	sourceChunkID string
}

// VerifierService cross-references retrieved evidence, detects
// contradictions, scores confidence, optionally requests bounded
// refinement rounds, and synthesizes the final cited answer.
type VerifierService struct {
	llmService   driven.LLMService
	promptStore  driven.PromptStore
	orchestrator *ToolOrchestrator
	trace        *TraceRecorder
	cfg          domain.PipelineConfig
}

// NewVerifierService creates a new verifier. The orchestrator is used
// for refinement rounds and may be nil, in which case refinement is
// skipped.
func NewVerifierService(
	llmService driven.LLMService,
	orchestrator *ToolOrchestrator,
	trace *TraceRecorder,
	cfg domain.PipelineConfig,
) *VerifierService {
	return &VerifierService{
		llmService:   llmService,
		orchestrator: orchestrator,
		trace:        trace,
		cfg:          cfg.Normalised(),
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (v *VerifierService) SetPromptStore(store driven.PromptStore) {
	v.promptStore = store
}

// Synthesize verifies the evidence collected for a query and produces
// the final answer. It never fabricates: every citation references a
// chunk present in the evidence set, sentences that cannot be mapped
// to evidence are marked as inference, and an empty evidence set
// yields an explicit no-answer rather than a guess.
func (v *VerifierService) Synthesize(ctx context.Context, query *domain.Query, evidence []SubQueryEvidence) (*domain.AnswerResult, error) {
	logger.Section("Verification")

	answer := &domain.AnswerResult{QueryID: query.ID}

	items := assembleEvidence(evidence)
	contradictions := v.detectContradictions(ctx, query.ID, items)

	confidence := v.scoreConfidence(evidence, items, contradictions)
	v.appendTrace(query.ID, domain.StepVerification,
		"%d evidence chunks, %d contradictions, confidence %.2f",
		len(items), len(contradictions), confidence)

	// Bounded refinement: when confidence is weak and budget remains,
	// retrieve deeper context for the weakest sub-query and rescore.
	for round := 0; confidence < v.cfg.RefinementThreshold && round < v.cfg.MaxRefinementRounds; round++ {
		refined, ok := v.refine(ctx, query, evidence, round+1)
		if !ok {
			break
		}
		evidence = refined
		items = assembleEvidence(evidence)
		contradictions = v.detectContradictions(ctx, query.ID, items)
		confidence = v.scoreConfidence(evidence, items, contradictions)
		v.appendTrace(query.ID, domain.StepRefinement,
			"round %d: %d evidence chunks, confidence %.2f", round+1, len(items), confidence)
	}

	answer.Contradictions = contradictions
	answer.Confidence = confidence

	if len(items) == 0 {
		answer.Answer = "The document corpus does not contain information to answer this question."
		answer.Confidence = 0
		v.appendTrace(query.ID, domain.StepSynthesis, "no evidence; returning explicit no-answer")
		return answer, nil
	}

	text, err := v.generateAnswer(ctx, query, items)
	if err != nil {
		logger.Warn("Synthesis generation failed, using extractive answer: %v", err)
		text = extractiveAnswer(evidence, items)
		answer.Confidence *= 0.8
	}

	answer.Answer, answer.Citations, answer.Inferences = v.groundSentences(text, items)

	if len(contradictions) > 0 {
		answer.Answer += "\n\n" + formatContradictions(contradictions)
	}

	v.appendTrace(query.ID, domain.StepSynthesis,
		"answer with %d citations, %d inference sentences", len(answer.Citations), len(answer.Inferences))
	return answer, nil
}

// assembleEvidence numbers the evidence chunks in sub-query order,
// descending score within each sub-query, deduplicated by chunk ID.
func assembleEvidence(evidence []SubQueryEvidence) []evidenceItem {
	seen := make(map[string]bool)
	var items []evidenceItem

	for _, sq := range evidence {
		for _, r := range sq.Results {
			if seen[r.ChunkID] {
				continue
			}
			seen[r.ChunkID] = true
			items = append(items, evidenceItem{
				ordinal:  len(items) + 1,
				chunkID:  r.ChunkID,
				docID:    r.DocumentID,
				content:  r.Content,
				score:    r.Score,
				mode:     r.Mode,
				subQuery: sq.SubQuery.ID,
			})
		}
	}
	return items
}

// defaultClaimExtractPrompt is the fallback prompt when no PromptStore is configured.
const defaultClaimExtractPrompt = `Extract factual claims from the numbered passages below.
A claim is a (subject, metric, value) triple, e.g. supplier name, lead time, "30 days".
Return ONLY a JSON array: [{"chunk": 1, "subject": "...", "metric": "...", "value": "..."}]
Use the passage number for "chunk". Skip passages with no concrete claims.

Passages:
%s`

// detectContradictions extracts structured claims from the evidence
// and pairs up claims that assert different values for the same
// subject and metric. The pairing itself is deterministic code; only
// claim extraction uses the model, and extraction failures degrade to
// no contradictions rather than aborting the query.
func (v *VerifierService) detectContradictions(ctx context.Context, queryID string, items []evidenceItem) []domain.Contradiction {
	if v.llmService == nil || len(items) < 2 {
		return nil
	}

	capped := items
	if len(capped) > claimExtractionCap {
		capped = capped[:claimExtractionCap]
	}

	var b strings.Builder
	for _, item := range capped {
		fmt.Fprintf(&b, "[%d] %s\n\n", item.ordinal, item.content)
	}

	promptTemplate := v.loadPrompt(driven.PromptClaimExtract, defaultClaimExtractPrompt)
	response, err := v.llmService.Generate(ctx, fmt.Sprintf(promptTemplate, b.String()), driven.GenerateOptions{
		MaxTokens:   800,
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("Claim extraction failed: %v", err)
		return nil
	}

	claims, err := parseClaims(response, capped)
	if err != nil {
		logger.Warn("Claim extraction produced unparseable output: %v", err)
		return nil
	}

	contradictions := pairContradictions(claims)
	for _, c := range contradictions {
		v.appendTrace(queryID, domain.StepVerification,
			"contradiction: %q (%s) vs %q (%s)", c.ClaimA, c.SourceA, c.ClaimB, c.SourceB)
	}
	return contradictions
}

// parseClaims decodes the extraction response and resolves chunk
// ordinals back to chunk IDs. Claims referencing unknown ordinals are
// dropped.
func parseClaims(response string, items []evidenceItem) ([]claim, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in claim extraction response")
	}

	var claims []claim
	if err := json.Unmarshal([]byte(response[start:end+1]), &claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}

	byOrdinal := make(map[int]string, len(items))
	for _, item := range items {
		byOrdinal[item.ordinal] = item.chunkID
	}

	valid := claims[:0]
	for _, c := range claims {
		chunkID, ok := byOrdinal[c.Chunk]
		if !ok || c.Subject == "" || c.Metric == "" || c.Value == "" {
			continue
		}
		c.sourceChunkID = chunkID
		valid = append(valid, c)
	}
	return valid, nil
}

// pairContradictions finds claim pairs sharing subject and metric but
// asserting different values from different chunks.
func pairContradictions(claims []claim) []domain.Contradiction {
	var contradictions []domain.Contradiction

	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims); j++ {
			a, b := claims[i], claims[j]
			if a.sourceChunkID == b.sourceChunkID {
				continue
			}
			if normaliseClaimKey(a.Subject) != normaliseClaimKey(b.Subject) ||
				normaliseClaimKey(a.Metric) != normaliseClaimKey(b.Metric) {
				continue
			}
			if normaliseClaimKey(a.Value) == normaliseClaimKey(b.Value) {
				continue
			}
			contradictions = append(contradictions, domain.Contradiction{
				ClaimA:  fmt.Sprintf("%s %s: %s", a.Subject, a.Metric, a.Value),
				ClaimB:  fmt.Sprintf("%s %s: %s", b.Subject, b.Metric, b.Value),
				SourceA: a.sourceChunkID,
				SourceB: b.sourceChunkID,
			})
		}
	}
	return contradictions
}

func normaliseClaimKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// scoreConfidence computes the answer confidence in [0,1]:
// the answered fraction of sub-queries, discounted by the share of
// keyword-fallback evidence, by each detected contradiction, and by
// each sub-query whose best result sits below the relevance floor.
func (v *VerifierService) scoreConfidence(evidence []SubQueryEvidence, items []evidenceItem, contradictions []domain.Contradiction) float64 {
	if len(evidence) == 0 {
		return 0
	}

	answered := 0
	weak := 0
	for _, sq := range evidence {
		if len(sq.Results) == 0 {
			continue
		}
		answered++
		if sq.Results[0].Score < v.cfg.RelevanceFloor {
			weak++
		}
	}

	confidence := float64(answered) / float64(len(evidence))

	if len(items) > 0 {
		keyword := 0
		for _, item := range items {
			if item.mode == domain.RetrievalModeKeyword {
				keyword++
			}
		}
		confidence *= 1 - 0.3*float64(keyword)/float64(len(items))
	}

	if len(contradictions) > 0 {
		confidence *= 0.75
		for i := 1; i < len(contradictions); i++ {
			confidence *= 0.9
		}
	}

	for i := 0; i < weak; i++ {
		confidence *= 0.85
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// refine runs one refinement round: retrieve deeper context for the
// weakest sub-query and merge the results. Returns false when no
// refinement is possible (no orchestrator, budget exhausted, or the
// round produced nothing new).
func (v *VerifierService) refine(ctx context.Context, query *domain.Query, evidence []SubQueryEvidence, round int) ([]SubQueryEvidence, bool) {
	if v.orchestrator == nil {
		return nil, false
	}

	weakest := weakestSubQuery(evidence)
	if weakest < 0 {
		return nil, false
	}

	logger.Info("Refinement round %d: deepening %q", round, evidence[weakest].SubQuery.Text)

	call, err := v.orchestrator.Invoke(ctx, query.ID, domain.ToolRetrieveContext, map[string]any{
		"query": evidence[weakest].SubQuery.Text,
		"depth": "deep",
	})
	if err != nil {
		if errors.Is(err, domain.ErrBudgetExhausted) {
			logger.Info("Refinement stopped: tool budget exhausted")
		} else {
			logger.Warn("Refinement round %d failed: %v", round, err)
		}
		return nil, false
	}

	payload, ok := call.Response.(*RetrieveContextResult)
	if !ok || len(payload.Results) == 0 {
		return nil, false
	}

	merged := mergeResults(evidence[weakest].Results, payload.Results)
	if len(merged) == len(evidence[weakest].Results) {
		// Nothing new; further rounds would repeat.
		return nil, false
	}

	out := make([]SubQueryEvidence, len(evidence))
	copy(out, evidence)
	out[weakest].Results = merged
	if out[weakest].SubQuery.Status == domain.SubQueryUnanswered && len(merged) > 0 {
		out[weakest].SubQuery.Status = domain.SubQueryAnswered
	}
	return out, true
}

// weakestSubQuery picks the sub-query with the lowest best score,
// treating empty result sets as weakest of all.
func weakestSubQuery(evidence []SubQueryEvidence) int {
	weakest := -1
	weakestScore := 2.0
	for i, sq := range evidence {
		score := 0.0
		if len(sq.Results) > 0 {
			score = sq.Results[0].Score
		}
		if score < weakestScore {
			weakestScore = score
			weakest = i
		}
	}
	return weakest
}

// mergeResults merges new results into existing ones, deduplicated by
// chunk ID keeping the higher score, re-sorted deterministically.
func mergeResults(existing, incoming []domain.RetrievalResult) []domain.RetrievalResult {
	best := make(map[string]domain.RetrievalResult, len(existing)+len(incoming))
	for _, r := range existing {
		best[r.ChunkID] = r
	}
	for _, r := range incoming {
		if prev, ok := best[r.ChunkID]; !ok || r.Score > prev.Score {
			best[r.ChunkID] = r
		}
	}

	merged := make([]domain.RetrievalResult, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	domain.SortRetrievalResults(merged)
	return merged
}

// defaultSynthesisPrompt is the fallback prompt when no PromptStore is configured.
const defaultSynthesisPrompt = `You are a document intelligence assistant. Answer the question using ONLY the numbered evidence below.
After every factual sentence, cite its evidence as [N]. Multiple citations per sentence are allowed.
If the evidence does not cover part of the question, say so explicitly instead of guessing.

Question: %s

Sub-queries investigated:
%s

Evidence:
%s

Answer:`

// generateAnswer asks the model for a cited answer over the numbered
// evidence.
func (v *VerifierService) generateAnswer(ctx context.Context, query *domain.Query, items []evidenceItem) (string, error) {
	if v.llmService == nil {
		return "", domain.ErrLLMUnavailable
	}

	var subQueries strings.Builder
	for i, sq := range query.SubQueries {
		fmt.Fprintf(&subQueries, "%d. %s\n", i+1, sq.Text)
	}

	var evidence strings.Builder
	for _, item := range items {
		fmt.Fprintf(&evidence, "[%d] %s\n\n", item.ordinal, item.content)
	}

	promptTemplate := v.loadPrompt(driven.PromptSynthesis, defaultSynthesisPrompt)
	prompt := fmt.Sprintf(promptTemplate, query.Question, subQueries.String(), evidence.String())

	response, err := v.llmService.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   1024,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(response), nil
}

// groundSentences maps each answer sentence to citations via its [N]
// markers. Sentences without any marker are kept but explicitly
// marked as inference. Markers referencing ordinals outside the
// evidence set are stripped and never become citations.
func (v *VerifierService) groundSentences(text string, items []evidenceItem) (string, []domain.Citation, []string) {
	byOrdinal := make(map[int]evidenceItem, len(items))
	for _, item := range items {
		byOrdinal[item.ordinal] = item
	}

	var out []string
	var inferences []string
	cited := make(map[string]bool)
	var citedOrdinals []int

	for _, sentence := range splitSentences(text) {
		matches := citationMarker.FindAllStringSubmatch(sentence, -1)

		grounded := false
		for _, m := range matches {
			ordinal := 0
			fmt.Sscanf(m[1], "%d", &ordinal)
			item, ok := byOrdinal[ordinal]
			if !ok {
				sentence = strings.ReplaceAll(sentence, m[0], "")
				continue
			}
			grounded = true
			if !cited[item.chunkID] {
				cited[item.chunkID] = true
				citedOrdinals = append(citedOrdinals, ordinal)
			}
		}

		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if !grounded && isFactualSentence(sentence) {
			inferences = append(inferences, sentence)
			sentence += " (inference)"
		}
		out = append(out, sentence)
	}

	// Citation order follows the evidence numbering (sub-query plan
	// order, descending score within each), not the order the model
	// happened to emit its markers.
	sort.Ints(citedOrdinals)
	citations := make([]domain.Citation, 0, len(citedOrdinals))
	for _, ordinal := range citedOrdinals {
		item := byOrdinal[ordinal]
		citations = append(citations, domain.Citation{
			DocumentID: item.docID,
			ChunkID:    item.chunkID,
		})
	}

	return strings.Join(out, " "), citations, inferences
}

// isFactualSentence filters out sentences that need no grounding:
// questions, hedges about missing evidence, and trivial connectives.
func isFactualSentence(sentence string) bool {
	if strings.HasSuffix(sentence, "?") {
		return false
	}
	if len(strings.Fields(sentence)) < 4 {
		return false
	}
	lower := strings.ToLower(sentence)
	for _, hedge := range []string{"does not contain", "no information", "not covered", "cannot be determined", "insufficient evidence"} {
		if strings.Contains(lower, hedge) {
			return false
		}
	}
	return true
}

// extractiveAnswer builds an answer directly from the top evidence of
// each sub-query when generation is unavailable. Markers reference the
// assembled evidence ordinals so grounding still resolves.
func extractiveAnswer(evidence []SubQueryEvidence, items []evidenceItem) string {
	ordinalByChunk := make(map[string]int, len(items))
	for _, item := range items {
		ordinalByChunk[item.chunkID] = item.ordinal
	}

	var b strings.Builder
	for _, sq := range evidence {
		if len(sq.Results) == 0 {
			continue
		}
		top := sq.Results[0]
		fmt.Fprintf(&b, "%s [%d]\n", strings.TrimSpace(top.Content), ordinalByChunk[top.ChunkID])
	}
	if b.Len() == 0 {
		return "The document corpus does not contain information to answer this question."
	}
	return strings.TrimSpace(b.String())
}

// formatContradictions renders detected contradictions for the answer
// text so conflicting evidence is visible rather than averaged away.
func formatContradictions(contradictions []domain.Contradiction) string {
	var b strings.Builder
	b.WriteString("Note: the sources conflict on the following points:\n")
	for _, c := range contradictions {
		fmt.Fprintf(&b, "- %s vs %s\n", c.ClaimA, c.ClaimB)
	}
	return strings.TrimSpace(b.String())
}

// splitSentences splits text into sentences at common terminators.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func (v *VerifierService) appendTrace(queryID string, kind domain.StepKind, format string, args ...any) {
	if v.trace != nil {
		v.trace.Append(queryID, kind, format, args...)
	}
}

// loadPrompt loads a prompt from the store, falling back to the default.
func (v *VerifierService) loadPrompt(name, fallback string) string {
	if v.promptStore == nil {
		return fallback
	}
	prompt, err := v.promptStore.Load(name)
	if err != nil {
		return fallback
	}
	return prompt
}
