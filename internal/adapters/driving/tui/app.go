package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ansera-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ansera-cli/internal/core/domain"
	"github.com/custodia-labs/ansera-cli/internal/core/ports/driving"
)

// answerReceived carries a completed pipeline run back into the UI loop.
type answerReceived struct {
	question string
	answer   *domain.AnswerResult
}

// answerFailed carries a fatal pipeline error back into the UI loop.
type answerFailed struct {
	question string
	err      error
}

// exchange is one question/answer pair in the transcript.
type exchange struct {
	question string
	answer   *domain.AnswerResult
	err      error
}

// App is the chat application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// styles holds the UI styles.
	styles *styles.Styles

	// input is the question entry field.
	input textinput.Model

	// transcript renders the scrolling conversation.
	transcript viewport.Model

	// spin animates while a question is in flight.
	spin spinner.Model

	// history holds completed exchanges, oldest first.
	history []exchange

	// asking is true while the pipeline runs.
	asking bool

	// pending is the question currently in flight.
	pending string

	// showTrace toggles per-answer reasoning traces.
	showTrace bool

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates the first WindowSizeMsg arrived.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates the chat application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()

	input := textinput.New()
	input.Placeholder = "Ask a question about the corpus..."
	input.Prompt = "> "
	input.CharLimit = 512
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	return &App{
		ports:      ports,
		ctx:        context.Background(),
		styles:     s,
		input:      input,
		transcript: viewport.New(80, 20),
		spin:       spin,
		width:      80,
		height:     24,
	}, nil
}

// WithContext sets the context used for pipeline runs.
func (a *App) WithContext(ctx context.Context) *App {
	if ctx != nil {
		a.ctx = ctx
	}
	return a
}

// Init starts the input cursor blink.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.transcript.Width = msg.Width
		a.transcript.Height = max(msg.Height-6, 3)
		a.input.Width = max(msg.Width-8, 20)
		a.ready = true
		a.refreshTranscript()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case answerReceived:
		a.asking = false
		a.pending = ""
		a.history = append(a.history, exchange{question: msg.question, answer: msg.answer})
		a.refreshTranscript()
		return a, nil

	case answerFailed:
		a.asking = false
		a.pending = ""
		a.history = append(a.history, exchange{question: msg.question, err: msg.err})
		a.refreshTranscript()
		return a, nil

	case spinner.TickMsg:
		if !a.asking {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	var cmds []tea.Cmd

	var inputCmd tea.Cmd
	a.input, inputCmd = a.input.Update(msg)
	if inputCmd != nil {
		cmds = append(cmds, inputCmd)
	}

	var vpCmd tea.Cmd
	a.transcript, vpCmd = a.transcript.Update(msg)
	if vpCmd != nil {
		cmds = append(cmds, vpCmd)
	}

	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return a, tea.Quit

	case "ctrl+t":
		a.showTrace = !a.showTrace
		a.refreshTranscript()
		return a, nil

	case "enter":
		question := strings.TrimSpace(a.input.Value())
		if question == "" || a.asking {
			return a, nil
		}
		a.input.SetValue("")
		a.asking = true
		a.pending = question
		return a, tea.Batch(a.spin.Tick, a.askCmd(question))

	case "up", "down", "pgup", "pgdown":
		var cmd tea.Cmd
		a.transcript, cmd = a.transcript.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// askCmd runs the pipeline off the UI goroutine.
func (a *App) askCmd(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := a.ports.Ask.Ask(a.ctx, question, driving.AskOptions{})
		if err != nil {
			return answerFailed{question: question, err: err}
		}
		return answerReceived{question: question, answer: answer}
	}
}

// View renders the chat UI.
func (a *App) View() string {
	if !a.ready {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Ansera"))
	b.WriteString(a.styles.Muted.Render("  ask questions over your document corpus"))
	b.WriteString("\n\n")

	b.WriteString(a.transcript.View())
	b.WriteString("\n")

	if a.asking {
		b.WriteString(a.spin.View())
		b.WriteString(a.styles.Muted.Render(" thinking: " + a.pending))
		b.WriteString("\n")
	}

	b.WriteString(a.styles.InputField.Render(a.input.View()))
	b.WriteString("\n")
	b.WriteString(a.styles.Help.Render("enter ask - ctrl+t toggle trace - ctrl+c quit"))

	return b.String()
}

// refreshTranscript re-renders the conversation into the viewport and
// scrolls to the newest exchange.
func (a *App) refreshTranscript() {
	var b strings.Builder

	for i := range a.history {
		if i > 0 {
			b.WriteString("\n")
		}
		a.renderExchange(&b, &a.history[i])
	}

	a.transcript.SetContent(b.String())
	a.transcript.GotoBottom()
}

func (a *App) renderExchange(b *strings.Builder, ex *exchange) {
	b.WriteString(a.styles.Question.Render("You: " + ex.question))
	b.WriteString("\n")

	if ex.err != nil {
		b.WriteString(a.styles.Error.Render("Error: " + ex.err.Error()))
		b.WriteString("\n")
		return
	}

	b.WriteString(a.styles.Answer.Render(ex.answer.Answer))
	b.WriteString("\n")

	confidence := fmt.Sprintf("confidence %.2f", ex.answer.Confidence)
	if ex.answer.Grounded(domain.DefaultGroundedThreshold) {
		b.WriteString(a.styles.Grounded.Render(confidence + " (grounded)"))
	} else {
		b.WriteString(a.styles.Warning.Render(confidence + " (not grounded)"))
	}
	b.WriteString("\n")

	if len(ex.answer.Citations) > 0 {
		for i := range ex.answer.Citations {
			c := ex.answer.Citations[i]
			b.WriteString(a.styles.Citation.Render(fmt.Sprintf("  [%d] %s / %s", i+1, c.DocumentID, c.ChunkID)))
			b.WriteString("\n")
		}
	}

	if len(ex.answer.Contradictions) > 0 {
		b.WriteString(a.styles.Warning.Render(fmt.Sprintf("  %d contradiction(s) in evidence", len(ex.answer.Contradictions))))
		b.WriteString("\n")
	}

	if a.showTrace {
		for i := range ex.answer.Trace {
			step := ex.answer.Trace[i]
			b.WriteString(a.styles.Muted.Render(fmt.Sprintf("  %-12s %s", step.Kind, step.Detail)))
			b.WriteString("\n")
		}
	}
}

// History returns completed exchanges, for tests.
func (a *App) History() int {
	return len(a.history)
}

// Asking reports whether a question is in flight.
func (a *App) Asking() bool {
	return a.asking
}
