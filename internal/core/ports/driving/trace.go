package driving

import "github.com/custodia-labs/ansera-cli/internal/core/domain"

// TraceService provides read-only access to a query's reasoning trace
// for external display and audit.
type TraceService interface {
	// Export returns the ordered step records of a query.
	Export(queryID string) []domain.TraceStep
}
