// Package tui provides an interactive chat interface over the corpus.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the chat UI.
type Ports struct {
	// Ask runs the retrieval pipeline for each question.
	Ask driving.AskService

	// Trace exposes reasoning traces of answered questions. Optional;
	// without it the trace panel stays empty.
	Trace driving.TraceService

	// Document provides corpus stats for the status bar. Optional.
	Document driving.DocumentService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ask == nil {
		return ErrMissingAskService
	}
	return nil
}
