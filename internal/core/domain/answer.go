package domain

import "time"

// Citation links a factual sentence of the answer to a chunk that was
// actually retrieved for the query. The verifier enforces that no
// citation references a chunk outside the query's retrieval results.
type Citation struct {
	// DocumentID is the cited document.
	DocumentID string

	// ChunkID is the cited chunk.
	ChunkID string
}

// Contradiction records a pair of chunks asserting incompatible
// claims about the same entity or metric.
type Contradiction struct {
	// ClaimA is the first conflicting assertion.
	ClaimA string

	// ClaimB is the second conflicting assertion.
	ClaimB string

	// SourceA is the chunk ID backing ClaimA.
	SourceA string

	// SourceB is the chunk ID backing ClaimB.
	SourceB string
}

// StepKind classifies a reasoning trace step.
type StepKind string

const (
	// StepPlan records query decomposition.
	StepPlan StepKind = "plan"

	// StepToolCall records a capability dispatch.
	StepToolCall StepKind = "tool_call"

	// StepRetrieval records sub-query retrieval outcomes.
	StepRetrieval StepKind = "retrieval"

	// StepVerification records cross-reference checking.
	StepVerification StepKind = "verification"

	// StepRefinement records a bounded refinement round.
	StepRefinement StepKind = "refinement"

	// StepSynthesis records final answer generation.
	StepSynthesis StepKind = "synthesis"
)

// TraceStep is one entry in a query's ordered reasoning trace.
type TraceStep struct {
	// Kind classifies the step.
	Kind StepKind

	// Detail is the human-readable description.
	Detail string

	// At is when the step was recorded.
	At time.Time
}

// AnswerResult is the terminal artifact of one query. It is read-only
// once produced.
type AnswerResult struct {
	// QueryID links back to the originating query.
	QueryID string

	// Answer is the synthesized answer text.
	Answer string

	// Citations is ordered by planned sub-query, then by descending
	// similarity within each sub-query's results.
	Citations []Citation

	// Confidence is in [0,1]. It decreases with contradictions,
	// keyword-fallback retrieval, and unanswered sub-queries.
	Confidence float64

	// Trace is the ordered reasoning trace.
	Trace []TraceStep

	// Contradictions lists conflicting evidence pairs. Contradictions
	// do not abort the pipeline; they lower confidence and are
	// surfaced in the answer text.
	Contradictions []Contradiction

	// Inferences lists answer sentences the verifier could not map to
	// evidence. They are explicitly marked in the answer rather than
	// silently dropped.
	Inferences []string
}

// Grounded reports whether confidence meets the given threshold.
func (a *AnswerResult) Grounded(threshold float64) bool {
	return a.Confidence >= threshold
}
