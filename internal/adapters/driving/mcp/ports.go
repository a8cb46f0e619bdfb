package mcp

import (
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ask answers natural-language questions over the corpus.
	Ask driving.AskService

	// Tools dispatches individual retrieval capabilities.
	Tools driving.ToolService

	// Document manages the corpus.
	Document driving.DocumentService

	// Trace exposes reasoning traces for audit.
	Trace driving.TraceService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Ask == nil {
		return ErrMissingAskService
	}
	if p.Tools == nil {
		return ErrMissingToolService
	}
	// Document and Trace are optional; the matching resources degrade.
	return nil
}
