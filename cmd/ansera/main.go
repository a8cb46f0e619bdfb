// Command ansera answers natural-language questions over a private
// document corpus via an agentic retrieval pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/ansera-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/ansera-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ansera-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ansera-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/ansera-cli/internal/core/services"
	"github.com/custodia-labs/ansera-cli/internal/logger"
	"github.com/custodia-labs/ansera-cli/internal/normalisers"
	"github.com/custodia-labs/ansera-cli/internal/normalisers/docx"
	htmlnorm "github.com/custodia-labs/ansera-cli/internal/normalisers/html"
	"github.com/custodia-labs/ansera-cli/internal/normalisers/markdown"
	"github.com/custodia-labs/ansera-cli/internal/normalisers/plaintext"
	"github.com/custodia-labs/ansera-cli/internal/postprocessors"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	cfg := settingsService.GetPipelineConfig()

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening corpus store: %w", err)
	}
	defer store.Close()

	docStore := store.DocumentStore()
	vectorIndex := store.VectorIndex(cfg.EmbeddingDimensions)
	searchEngine := store.SearchEngine()

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	// Unconfigured providers leave the matching service nil; the
	// pipeline degrades (keyword-only retrieval, no planning) and the
	// settings commands stay available to fix the configuration.
	embeddingService, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		logger.Warn("embedding provider unavailable: %v", err)
	}
	if embeddingService != nil {
		defer embeddingService.Close()
	}

	llmService, err := ai.CreateLLMService(&settings.LLM)
	if err != nil {
		logger.Warn("LLM provider unavailable: %v", err)
	}
	if llmService != nil {
		defer llmService.Close()
	}

	promptStore, err := file.NewPromptStore("")
	if err != nil {
		return fmt.Errorf("opening prompt store: %w", err)
	}

	// Reload customised prompts edited while a long-running command
	// (chat, mcp serve) is up.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	go func() {
		if err := promptStore.Watch(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("prompt watcher stopped: %v", err)
		}
	}()

	normaliserRegistry := normalisers.NewRegistry()
	normaliserRegistry.Register(plaintext.New())
	normaliserRegistry.Register(markdown.New())
	normaliserRegistry.Register(htmlnorm.New())
	normaliserRegistry.Register(docx.New())

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	chunkProcessor, err := registry.Build("chunker", nil)
	if err != nil {
		return fmt.Errorf("building chunker: %w", err)
	}
	pipeline := postprocessors.NewPipeline(chunkProcessor)

	trace := services.NewTraceRecorder()
	retrieval := services.NewRetrievalService(docStore, vectorIndex, searchEngine, embeddingService, cfg)
	orchestrator := services.NewToolOrchestrator(retrieval, docStore, llmService, trace, cfg)
	planner := services.NewPlannerService(llmService, cfg)
	verifier := services.NewVerifierService(llmService, orchestrator, trace, cfg)
	askService := services.NewAskService(planner, orchestrator, verifier, trace, cfg)
	documentService := services.NewDocumentService(docStore, vectorIndex, searchEngine, embeddingService, pipeline, cfg)
	documentService.SetNormaliserRegistry(normaliserRegistry)

	planner.SetPromptStore(promptStore)
	orchestrator.SetPromptStore(promptStore)
	verifier.SetPromptStore(promptStore)

	cli.SetVersion(version)
	cli.SetServices(&cli.Services{
		Ask:      askService,
		Tools:    orchestrator,
		Trace:    trace,
		Document: documentService,
		Settings: settingsService,
	})

	return cli.Execute()
}
