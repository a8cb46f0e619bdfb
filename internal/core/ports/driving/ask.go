package driving

import (
	"context"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
)

// AskOptions configures one question.
type AskOptions struct {
	// MaxSubQueries bounds decomposition fan-out. Zero uses the
	// pipeline default.
	MaxSubQueries int

	// TopK is the result count per sub-query. Zero uses the default.
	TopK int
}

// AskService answers natural-language questions over the corpus.
// The caller always receives either a complete AnswerResult (possibly
// with lowered confidence and explicit inference markers) or a single
// structured fatal error (PlanningError or DimensionMismatchError).
type AskService interface {
	// Ask runs the full pipeline for one question.
	Ask(ctx context.Context, question string, opts AskOptions) (*domain.AnswerResult, error)
}
