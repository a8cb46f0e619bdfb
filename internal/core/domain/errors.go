package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownTool indicates a capability name outside the fixed set.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrBudgetExhausted indicates the per-query tool-call budget is
	// spent; no further refinement calls are allowed.
	ErrBudgetExhausted = errors.New("tool call budget exhausted")

	// ErrLLMUnavailable indicates the language model service is not
	// configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Vector search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not
	// reachable. Retrieval degrades to keyword search.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrSearchUnavailable indicates the keyword search engine is not
	// configured. The fallback path is disabled.
	ErrSearchUnavailable = errors.New("search engine unavailable")
)

// PlanningError indicates the planner produced no sub-queries. It is
// fatal: the query aborts before any retrieval cost is incurred.
type PlanningError struct {
	// Cause is the underlying failure.
	Cause error
}

func (e *PlanningError) Error() string {
	if e.Cause == nil {
		return "planning failed: no sub-queries produced"
	}
	return fmt.Sprintf("planning failed: %v", e.Cause)
}

func (e *PlanningError) Unwrap() error {
	return e.Cause
}

// ToolInvocationError wraps transport, timeout, or malformed-response
// failures from a capability call so callers never see
// transport-specific errors.
type ToolInvocationError struct {
	// Tool is the capability that failed.
	Tool ToolName

	// Cause is the underlying failure.
	Cause error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Cause)
}

func (e *ToolInvocationError) Unwrap() error {
	return e.Cause
}

// DimensionMismatchError indicates the query embedding dimension does
// not match the index dimension. It is fatal for the query and
// signals configuration or model-version skew to the operator.
type DimensionMismatchError struct {
	// Want is the index dimension.
	Want int

	// Got is the query embedding dimension.
	Got int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index expects %d, got %d", e.Want, e.Got)
}
