package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ansera-cli/internal/adapters/driving/tui"
)

// chatCmd launches the interactive chat UI.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Launch the interactive chat interface",
	Long: `Launch an interactive terminal chat over your document corpus.

Each question runs the full retrieval pipeline and renders the cited
answer inline, with confidence and contradiction markers.

Controls:
  Enter   - Ask
  Ctrl+T  - Toggle reasoning traces
  ↑/↓     - Scroll the transcript
  Esc     - Quit`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in chat UI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	if askService == nil {
		return errors.New("ask service not configured")
	}

	ports := &tui.Ports{
		Ask:      askService,
		Trace:    traceService,
		Document: documentService,
	}

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create chat UI: %w", err)
	}

	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}

	return nil
}
