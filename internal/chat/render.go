package chat

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/astralume/astra/internal/engine"
	"github.com/astralume/astra/internal/session"
)

// Styles for terminal output
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	thinkingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	toolCallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// TerminalRenderer paints streamed turn output to a writer as it arrives.
// It holds no conversation state; the engine owns all of that.
type TerminalRenderer struct {
	out          io.Writer
	showThinking bool
	quiet        bool
	thinkingOpen bool
	wroteChunk   bool
}

// NewTerminalRenderer creates a renderer over a writer. When showThinking
// is false, reasoning text is collapsed to a one-time marker. Quiet mode
// drops the thinking and tool-call markers and emits answer text only.
func NewTerminalRenderer(out io.Writer, showThinking, quiet bool) *TerminalRenderer {
	return &TerminalRenderer{out: out, showThinking: showThinking && !quiet, quiet: quiet}
}

// OnChunk prints visible assistant text as it streams
func (r *TerminalRenderer) OnChunk(content string) {
	if r.thinkingOpen {
		fmt.Fprintln(r.out)
		r.thinkingOpen = false
	}
	fmt.Fprint(r.out, content)
	r.wroteChunk = true
}

// OnThinking surfaces reasoning activity without mixing it into the answer
func (r *TerminalRenderer) OnThinking(content string) {
	if r.quiet {
		return
	}
	if !r.showThinking {
		if !r.thinkingOpen {
			fmt.Fprintln(r.out, thinkingStyle.Render("thinking..."))
			r.thinkingOpen = true
		}
		return
	}
	if !r.thinkingOpen {
		fmt.Fprint(r.out, thinkingStyle.Render("[thinking] "))
		r.thinkingOpen = true
	}
	fmt.Fprint(r.out, thinkingStyle.Render(content))
}

// OnToolCall announces a detected tool invocation
func (r *TerminalRenderer) OnToolCall(call engine.ToolCall) {
	if r.quiet {
		return
	}
	if r.thinkingOpen {
		fmt.Fprintln(r.out)
		r.thinkingOpen = false
	}
	fmt.Fprintln(r.out, toolCallStyle.Render(fmt.Sprintf("⚙ %s", call.Name)))
}

// OnDone terminates the streamed answer
func (r *TerminalRenderer) OnDone() {
	if r.thinkingOpen {
		r.thinkingOpen = false
	}
	fmt.Fprintln(r.out)
	r.wroteChunk = false
}

// OnError reports a failed turn
func (r *TerminalRenderer) OnError(err error) {
	if r.wroteChunk || r.thinkingOpen {
		fmt.Fprintln(r.out)
	}
	r.thinkingOpen = false
	r.wroteChunk = false
	fmt.Fprintln(r.out, errorStyle.Render("Error: "+err.Error()))
}

// renderRoster formats the session list for display
func renderRoster(entries []session.Entry) string {
	if len(entries) == 0 {
		return dimStyle.Render("No sessions yet. Just start typing to begin one.")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Sessions"))
	b.WriteString("\n")
	for i, entry := range entries {
		line := fmt.Sprintf("%2d. %s", i+1, entry.DisplayTitle)
		meta := fmt.Sprintf("  %s  %d messages  %s",
			entry.ID,
			entry.MessageCount,
			entry.LastMessageAt.Format("Jan 2 15:04"))
		b.WriteString(line)
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(meta))
		b.WriteString("\n")
	}
	return b.String()
}

// renderHistory formats a loaded session transcript
func renderHistory(messages []engine.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case engine.RoleUser:
			b.WriteString(promptStyle.Render("You: "))
		case engine.RoleAssistant:
			b.WriteString(titleStyle.Render("Astra: "))
		default:
			continue
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
