package domain

import "time"

// Default pipeline configuration values.
const (
	// DefaultEmbeddingDimensions matches text-embedding-ada-002.
	DefaultEmbeddingDimensions = 1536

	// DefaultRelevanceFloor is the cosine similarity below which the
	// retrieval engine falls back to keyword search.
	DefaultRelevanceFloor = 0.35

	// DefaultTopK is the number of chunks retrieved per sub-query.
	DefaultTopK = 5

	// DefaultMaxSubQueries bounds planner fan-out.
	DefaultMaxSubQueries = 3

	// MaxSubQueryLimit is the hard upper bound on decomposition.
	MaxSubQueryLimit = 5

	// DefaultToolTimeout bounds a single capability dispatch.
	DefaultToolTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry count for transient failures.
	DefaultMaxRetries = 2

	// DefaultRetryBackoff is the initial backoff, doubled per attempt.
	DefaultRetryBackoff = 100 * time.Millisecond

	// DefaultRefinementThreshold triggers an extra retrieval round
	// when synthesis confidence falls below it.
	DefaultRefinementThreshold = 0.5

	// DefaultMaxRefinementRounds caps the refinement loop.
	DefaultMaxRefinementRounds = 2

	// DefaultToolCallBudget caps capability dispatches per query.
	DefaultToolCallBudget = 12

	// DefaultGroundedThreshold is the confidence below which an answer
	// is reported as not grounded.
	DefaultGroundedThreshold = 0.4
)

// PipelineConfig carries the shared tuning knobs of the pipeline.
// It is passed explicitly into each component at construction rather
// than read from ambient global state, so components stay
// independently testable.
type PipelineConfig struct {
	// EmbeddingDimensions is the fixed vector dimension of the store.
	EmbeddingDimensions int

	// RelevanceFloor is the minimum similarity for a vector result to
	// count as relevant.
	RelevanceFloor float64

	// TopK is the default result count per sub-query.
	TopK int

	// MaxSubQueries bounds planner decomposition fan-out.
	MaxSubQueries int

	// ToolTimeout bounds each capability dispatch.
	ToolTimeout time.Duration

	// MaxRetries bounds local retries of transient failures.
	MaxRetries int

	// RetryBackoff is the initial retry backoff, doubled per attempt.
	RetryBackoff time.Duration

	// RefinementThreshold is the confidence below which the verifier
	// may request an additional retrieval round.
	RefinementThreshold float64

	// MaxRefinementRounds caps refinement iterations.
	MaxRefinementRounds int

	// ToolCallBudget caps capability dispatches per query.
	ToolCallBudget int

	// GroundedThreshold is the confidence for a grounded answer.
	GroundedThreshold float64
}

// Normalised returns a copy with zero values replaced by defaults and
// out-of-range values clamped.
func (c PipelineConfig) Normalised() PipelineConfig {
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if c.RelevanceFloor <= 0 || c.RelevanceFloor >= 1 {
		c.RelevanceFloor = DefaultRelevanceFloor
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxSubQueries <= 0 {
		c.MaxSubQueries = DefaultMaxSubQueries
	}
	if c.MaxSubQueries > MaxSubQueryLimit {
		c.MaxSubQueries = MaxSubQueryLimit
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.RefinementThreshold <= 0 || c.RefinementThreshold >= 1 {
		c.RefinementThreshold = DefaultRefinementThreshold
	}
	if c.MaxRefinementRounds <= 0 {
		c.MaxRefinementRounds = DefaultMaxRefinementRounds
	}
	if c.ToolCallBudget <= 0 {
		c.ToolCallBudget = DefaultToolCallBudget
	}
	if c.GroundedThreshold <= 0 || c.GroundedThreshold >= 1 {
		c.GroundedThreshold = DefaultGroundedThreshold
	}
	return c
}
