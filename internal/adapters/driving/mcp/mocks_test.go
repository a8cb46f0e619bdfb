package mcp

import (
	"context"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
)

// mockAskService is a mock implementation of driving.AskService.
type mockAskService struct {
	answer *domain.AnswerResult
	err    error

	question string
	opts     driving.AskOptions
}

func (m *mockAskService) Ask(
	_ context.Context,
	question string,
	opts driving.AskOptions,
) (*domain.AnswerResult, error) {
	m.question = question
	m.opts = opts
	return m.answer, m.err
}

// mockToolService is a mock implementation of driving.ToolService.
type mockToolService struct {
	response any
	err      error

	queryID string
	tool    domain.ToolName
	params  map[string]any
}

func (m *mockToolService) Invoke(
	_ context.Context,
	queryID string,
	tool domain.ToolName,
	params map[string]any,
) (*domain.ToolCall, error) {
	m.queryID = queryID
	m.tool = tool
	m.params = params
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ToolCall{
		QueryID:  queryID,
		Tool:     tool,
		Params:   params,
		Response: m.response,
	}, nil
}

func (m *mockToolService) Calls(_ string) []domain.ToolCall {
	return nil
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	err       error
}

func (m *mockDocumentService) Ingest(_ context.Context, _ driving.IngestRequest) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) IngestFile(_ context.Context, _ driving.IngestFileRequest) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

// mockTraceService is a mock implementation of driving.TraceService.
type mockTraceService struct {
	steps []domain.TraceStep

	queryID string
}

func (m *mockTraceService) Export(queryID string) []domain.TraceStep {
	m.queryID = queryID
	return m.steps
}
