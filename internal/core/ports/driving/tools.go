package driving

import (
	"context"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
)

// ToolService exposes the fixed capability set behind a uniform
// dispatch interface. This is the externally documented tool contract
// and must remain stable across internal refactors.
type ToolService interface {
	// Invoke dispatches a capability call for the given query.
	// Unrecognised names are rejected with domain.ErrUnknownTool.
	Invoke(ctx context.Context, queryID string, tool domain.ToolName, params map[string]any) (*domain.ToolCall, error)

	// Calls returns the completed tool calls of a query in dispatch order.
	Calls(queryID string) []domain.ToolCall
}
