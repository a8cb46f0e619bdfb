package domain

import (
	"fmt"
	"time"
)

// ToolName identifies one of the four fixed pipeline capabilities.
// The set is closed: adding a capability is a registry change in the
// orchestrator, not a protocol change, and unrecognised names are
// rejected with a structured error.
type ToolName string

const (
	// ToolSearchDocuments performs ranked similarity search.
	ToolSearchDocuments ToolName = "search_documents"

	// ToolRetrieveContext is like search but expands each hit to
	// neighbouring chunks of the same document.
	ToolRetrieveContext ToolName = "retrieve_context"

	// ToolAnalyzeSupplyChain runs a templated domain analysis prompt
	// over retrieved chunks.
	ToolAnalyzeSupplyChain ToolName = "analyze_supply_chain"

	// ToolGenerateInsights aggregates prior tool calls of a query and
	// surfaces trends, risks, or opportunities with citations.
	ToolGenerateInsights ToolName = "generate_insights"
)

// ToolNames returns the fixed capability set in registration order.
func ToolNames() []ToolName {
	return []ToolName{
		ToolSearchDocuments,
		ToolRetrieveContext,
		ToolAnalyzeSupplyChain,
		ToolGenerateInsights,
	}
}

// ParseToolName validates a capability name.
func ParseToolName(s string) (ToolName, error) {
	switch ToolName(s) {
	case ToolSearchDocuments, ToolRetrieveContext, ToolAnalyzeSupplyChain, ToolGenerateInsights:
		return ToolName(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// ToolCall records one capability dispatch. It is owned by the query
// that issued it and immutable once completed.
type ToolCall struct {
	// ID is the unique identifier for the call.
	ID string

	// QueryID links to the issuing Query.
	QueryID string

	// Tool is the invoked capability.
	Tool ToolName

	// Params is the request parameter payload.
	Params map[string]any

	// Response is the structured result payload. Nil when Err is set.
	Response any

	// Latency is the wall-clock duration of the dispatch.
	Latency time.Duration

	// Err is the failure message, empty on success.
	Err string

	// StartedAt is when the dispatch began.
	StartedAt time.Time
}

// Failed reports whether the call completed with an error.
func (c *ToolCall) Failed() bool {
	return c.Err != ""
}
