package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
)

// Ensure TraceRecorder implements the interface.
var _ driving.TraceService = (*TraceRecorder)(nil)

// TraceRecorder accumulates the ordered planning, tool, and
// verification steps of each query. It is purely additive: steps are
// never mutated or removed once appended.
type TraceRecorder struct {
	mu    sync.RWMutex
	steps map[string][]domain.TraceStep
}

// NewTraceRecorder creates an empty trace recorder.
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{
		steps: make(map[string][]domain.TraceStep),
	}
}

// Append records a step for the given query.
func (r *TraceRecorder) Append(queryID string, kind domain.StepKind, format string, args ...any) {
	step := domain.TraceStep{
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
		At:     time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[queryID] = append(r.steps[queryID], step)
}

// Export returns a copy of the ordered step records of a query.
func (r *TraceRecorder) Export(queryID string) []domain.TraceStep {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := r.steps[queryID]
	out := make([]domain.TraceStep, len(steps))
	copy(out, steps)
	return out
}

// Discard removes the trace of a query. Intended for callers that
// persist traces externally and want to bound memory.
func (r *TraceRecorder) Discard(queryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, queryID)
}
