package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ansera-cli/internal/normalisers"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage the document corpus",
	Long:  `Add, list, view, or remove corpus documents.`,
}

var documentAddCmd = &cobra.Command{
	Use:   "add [file]",
	Short: "Ingest a document into the corpus",
	Long: `Reads the file, splits it into chunks, embeds each chunk, and adds
it to the vector and keyword indexes. The document becomes
retrievable atomically once ingestion completes.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentAdd,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List corpus documents",
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentRemoveCmd = &cobra.Command{
	Use:   "remove [doc-id]",
	Short: "Remove a document from the corpus",
	Long:  `Deletes the document and removes its chunks from all indexes.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRemove,
}

// Flags for the add command.
var (
	addTitle          string
	addSource         string
	addClassification string
)

func init() {
	documentAddCmd.Flags().StringVarP(&addTitle, "title", "t", "", "document title (defaults to the filename)")
	documentAddCmd.Flags().StringVarP(&addSource, "source", "s", "upload", "origin label for the document")
	documentAddCmd.Flags().StringVarP(&addClassification, "classification", "c", "", "governance tag (e.g. CONFIDENTIAL)")

	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentRemoveCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	path := args[0]
	content, err := os.ReadFile(path) //nolint:gosec // User-provided path is the point of the command.
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	req := driving.IngestFileRequest{
		Raw: domain.RawDocument{
			URI:      path,
			MIMEType: normalisers.DetectMIMEType(path),
			Content:  content,
		},
		Title:          addTitle,
		Source:         addSource,
		Classification: addClassification,
	}

	doc, err := documentService.IngestFile(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("failed to ingest document: %w", err)
	}

	cmd.Printf("Ingested %s as %s (%d chunks)\n", filepath.Base(path), doc.ID, len(doc.ChunkIDs))
	return nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("The corpus is empty. Add documents with 'ansera document add'.")
		return nil
	}

	cmd.Println("Corpus documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title: %s\n", docs[i].Title)
		if docs[i].Classification != "" {
			cmd.Printf("    Classification: %s\n", docs[i].Classification)
		}
		cmd.Printf("    Chunks: %d\n", len(docs[i].ChunkIDs))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:          %s\n", doc.Title)
	cmd.Printf("  Source:         %s\n", doc.Source)
	if doc.Classification != "" {
		cmd.Printf("  Classification: %s\n", doc.Classification)
	}
	cmd.Printf("  Chunks:         %d\n", len(doc.ChunkIDs))
	cmd.Printf("  Ingested:       %s\n", doc.IngestedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %v\n", k, v)
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Println(doc.Content)
	return nil
}

func runDocumentRemove(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]
	if err := documentService.Delete(cmd.Context(), docID); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Document %s removed from the corpus.\n", docID)
	return nil
}
