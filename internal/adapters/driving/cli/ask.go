package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
)

var (
	askMaxSubQueries int
	askTopK          int
	askShowTrace     bool
	askJSON          bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the corpus",
	Long: `Runs the full retrieval pipeline for one question.

The question is decomposed into focused sub-queries, each answered via
hybrid vector and keyword retrieval. Evidence is cross-verified for
contradictions before the final cited answer is synthesised.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askMaxSubQueries, "max-sub-queries", 0, "maximum sub-queries (0 = pipeline default)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "chunks retrieved per sub-query (0 = pipeline default)")
	askCmd.Flags().BoolVarP(&askShowTrace, "trace", "t", false, "print the reasoning trace after the answer")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	if askService == nil {
		return errors.New("ask service not configured")
	}

	opts := driving.AskOptions{
		MaxSubQueries: askMaxSubQueries,
		TopK:          askTopK,
	}

	answer, err := askService.Ask(cmd.Context(), question, opts)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return outputAnswerJSON(cmd, answer)
	}

	return outputAnswerText(cmd, answer)
}

func outputAnswerJSON(cmd *cobra.Command, answer *domain.AnswerResult) error {
	data, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswerText(cmd *cobra.Command, answer *domain.AnswerResult) error {
	cmd.Println(answer.Answer)
	cmd.Println()

	grounded := "yes"
	if !answer.Grounded(domain.DefaultGroundedThreshold) {
		grounded = "no"
	}
	cmd.Printf("Confidence: %.2f (grounded: %s)\n", answer.Confidence, grounded)

	if len(answer.Citations) > 0 {
		cmd.Println("\nCitations:")
		for i := range answer.Citations {
			cmd.Printf("  [%d] document %s, chunk %s\n", i+1, answer.Citations[i].DocumentID, answer.Citations[i].ChunkID)
		}
	}

	if len(answer.Contradictions) > 0 {
		cmd.Println("\nContradictions found:")
		for i := range answer.Contradictions {
			c := answer.Contradictions[i]
			cmd.Printf("  - %q (%s) vs %q (%s)\n", c.ClaimA, c.SourceA, c.ClaimB, c.SourceB)
		}
	}

	if len(answer.Inferences) > 0 {
		cmd.Println("\nInferred (not directly supported by evidence):")
		for _, inf := range answer.Inferences {
			cmd.Printf("  - %s\n", inf)
		}
	}

	if askShowTrace {
		cmd.Println("\nReasoning trace:")
		for i := range answer.Trace {
			step := answer.Trace[i]
			cmd.Printf("  %s  [%-12s] %s\n", step.At.Format("15:04:05.000"), step.Kind, step.Detail)
		}
	}

	return nil
}
