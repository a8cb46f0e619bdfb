package cli

import (
	"context"
	"time"

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

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	err       error

	ingested     *driving.IngestRequest
	ingestedFile *driving.IngestFileRequest
	deletedID    string
}

func (m *mockDocumentService) Ingest(_ context.Context, req driving.IngestRequest) (*domain.Document, error) {
	m.ingested = &req
	return m.document, m.err
}

func (m *mockDocumentService) IngestFile(_ context.Context, req driving.IngestFileRequest) (*domain.Document, error) {
	m.ingestedFile = &req
	return m.document, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	m.deletedID = id
	return m.err
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    *domain.AppSettings
	err         error
	validateErr error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.settings == nil {
		s := domain.DefaultAppSettings()
		return &s, m.err
	}
	return m.settings, m.err
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return m.err }

func (m *mockSettingsService) SetEmbeddingProvider(_ domain.AIProvider, _, _ string) error {
	return m.err
}

func (m *mockSettingsService) SetLLMProvider(_ domain.AIProvider, _, _ string) error {
	return m.err
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.err }

func (m *mockSettingsService) ValidateLLMConfig() error { return m.err }

// testDocument builds a corpus document for test fixtures.
func testDocument(id, title string) domain.Document {
	return domain.Document{
		ID:             id,
		Title:          title,
		Content:        "Supplier X ships in 30 days.",
		Source:         "upload",
		Classification: "CONFIDENTIAL",
		ChunkIDs:       []string{id + "-c1", id + "-c2"},
		IngestedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// setupTestServices installs mocks into the package-level ports and
// returns a cleanup func restoring the previous values.
func setupTestServices() func() {
	prevAsk := askService
	prevDoc := documentService
	prevSettings := settingsService

	doc := testDocument("doc-1", "supplier-report.txt")
	askService = &mockAskService{
		answer: &domain.AnswerResult{
			QueryID:    "q-1",
			Answer:     "Supplier X ships in 30 days. [1]",
			Confidence: 0.9,
			Citations:  []domain.Citation{{DocumentID: "doc-1", ChunkID: "doc-1-c1"}},
		},
	}
	documentService = &mockDocumentService{
		documents: []domain.Document{doc},
		document:  &doc,
	}
	settingsService = &mockSettingsService{}

	return func() {
		askService = prevAsk
		documentService = prevDoc
		settingsService = prevSettings
	}
}
