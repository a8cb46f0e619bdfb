// Package mcp provides an MCP (Model Context Protocol) server adapter for Ansera.
// It lets AI assistants ask questions over the corpus and invoke the fixed
// retrieval capabilities directly.
package mcp

import "errors"

// ErrMissingAskService is returned when the ask service is not provided.
var ErrMissingAskService = errors.New("mcp: ask service is required")

// ErrMissingToolService is returned when the tool service is not provided.
var ErrMissingToolService = errors.New("mcp: tool service is required")
