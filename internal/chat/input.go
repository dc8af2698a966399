package chat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// InputReader abstracts user input so the chat loop is testable without a
// terminal. ReadLine returns io.EOF when input is exhausted.
type InputReader interface {
	ReadLine() (string, error)
}

// StdinReader reads lines from a plain reader, used for piped input and
// non-TTY environments.
type StdinReader struct {
	reader *bufio.Reader
}

// NewStdinReader creates a reader over os.Stdin
func NewStdinReader() *StdinReader {
	return NewLineReader(os.Stdin)
}

// NewLineReader creates a reader over any line-oriented source
func NewLineReader(r io.Reader) *StdinReader {
	return &StdinReader{reader: bufio.NewReader(r)}
}

// ReadLine reads one trimmed line, io.EOF when the source is closed
func (r *StdinReader) ReadLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// InteractiveReader reads input with line editing and up-arrow history via
// a bubbletea text input. History lives in memory only.
type InteractiveReader struct {
	history    []string
	maxHistory int
	prompt     string
}

// NewInteractiveReader creates an interactive reader when stdin is a TTY,
// falling back to a plain StdinReader for piped input.
func NewInteractiveReader(prompt string, maxHistory int) InputReader {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return NewStdinReader()
	}
	return &InteractiveReader{
		history:    make([]string, 0, maxHistory),
		maxHistory: maxHistory,
		prompt:     prompt,
	}
}

// ReadLine runs one bubbletea input round
func (r *InteractiveReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = r.prompt
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 80

	m := inputModel{
		textInput:    ti,
		history:      r.history,
		historyIndex: -1,
	}

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}
	result, ok := finalModel.(inputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", finalModel)
	}
	if result.eof && result.textInput.Value() == "" {
		return "", io.EOF
	}

	input := strings.TrimSpace(result.textInput.Value())
	if input != "" {
		r.remember(input)
	}
	return input, nil
}

// remember appends to history, dropping duplicates of the latest entry
func (r *InteractiveReader) remember(input string) {
	if len(r.history) > 0 && r.history[len(r.history)-1] == input {
		return
	}
	r.history = append(r.history, input)
	if len(r.history) > r.maxHistory {
		r.history = r.history[1:]
	}
}

// inputModel is the bubbletea model for one input round
type inputModel struct {
	textInput    textinput.Model
	history      []string
	historyIndex int
	currentInput string
	eof          bool
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			return m, tea.Quit

		case tea.KeyCtrlC:
			m.textInput.SetValue("")
			return m, tea.Quit

		case tea.KeyCtrlD:
			m.eof = true
			m.textInput.SetValue("")
			return m, tea.Quit

		case tea.KeyUp:
			if len(m.history) == 0 {
				return m, nil
			}
			if m.historyIndex == -1 {
				m.currentInput = m.textInput.Value()
				m.historyIndex = len(m.history) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.textInput.SetValue(m.history[m.historyIndex])
			m.textInput.CursorEnd()
			return m, nil

		case tea.KeyDown:
			if m.historyIndex == -1 {
				return m, nil
			}
			if m.historyIndex < len(m.history)-1 {
				m.historyIndex++
				m.textInput.SetValue(m.history[m.historyIndex])
			} else {
				m.historyIndex = -1
				m.textInput.SetValue(m.currentInput)
			}
			m.textInput.CursorEnd()
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	return m.textInput.View()
}

// MockInputReader returns predetermined inputs for tests, then io.EOF
type MockInputReader struct {
	inputs []string
	index  int
}

// NewMockInputReader creates a reader over a fixed input sequence
func NewMockInputReader(inputs []string) *MockInputReader {
	return &MockInputReader{inputs: inputs}
}

// ReadLine returns the next input or io.EOF
func (m *MockInputReader) ReadLine() (string, error) {
	if m.index >= len(m.inputs) {
		return "", io.EOF
	}
	line := m.inputs[m.index]
	m.index++
	return line, nil
}
