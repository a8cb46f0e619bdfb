// Package cli implements the Ansera command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ansera-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "0.1.0"

// Driving ports injected by the composition root before Execute.
var (
	askService      driving.AskService
	toolService     driving.ToolService
	traceService    driving.TraceService
	documentService driving.DocumentService
	settingsService driving.SettingsService
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ansera",
	Short: "Answer questions over a private document corpus",
	Long: `Ansera answers natural-language questions over a private document corpus.

Questions are decomposed into focused sub-queries, each answered via
hybrid vector and keyword retrieval, then cross-verified and
synthesised into a cited answer. Every pipeline decision is recorded
in an inspectable reasoning trace.

Get started:
  ansera settings wizard       configure AI providers
  ansera document add FILE     ingest documents
  ansera ask "your question"   ask away`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline progress to stderr")
}

// Services aggregates the driving ports the commands depend on.
type Services struct {
	Ask      driving.AskService
	Tools    driving.ToolService
	Trace    driving.TraceService
	Document driving.DocumentService
	Settings driving.SettingsService
}

// SetServices injects the wired services. Commands report a clear
// error when invoked before injection rather than panicking.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	askService = s.Ask
	toolService = s.Tools
	traceService = s.Trace
	documentService = s.Document
	settingsService = s.Settings
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
