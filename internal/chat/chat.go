package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/astralume/astra/internal/engine"
	"github.com/astralume/astra/internal/session"
)

// Session drives one interactive conversation from the terminal: it reads
// input, routes slash commands, and hands everything else to the engine.
type Session struct {
	engine *engine.Engine
	roster *session.ListCache
	reader InputReader
	out    io.Writer
	logger *log.Logger
}

// SessionOptions configures an interactive chat session
type SessionOptions struct {
	Reader InputReader
	Out    io.Writer
	Logger *log.Logger
}

// NewSession creates an interactive chat session
func NewSession(eng *engine.Engine, roster *session.ListCache, options SessionOptions) *Session {
	reader := options.Reader
	if reader == nil {
		reader = NewInteractiveReader(promptStyle.Render("> "), 100)
	}
	out := options.Out
	if out == nil {
		out = os.Stdout
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		engine: eng,
		roster: roster,
		reader: reader,
		out:    out,
		logger: logger,
	}
}

// Run starts the interactive loop and blocks until the user exits or the
// input source closes.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, titleStyle.Render("Astra Chat"))
	fmt.Fprintln(s.out, dimStyle.Render("Type a message, /help for commands, or 'exit' to quit."))
	fmt.Fprintln(s.out)

	for {
		input, err := s.reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "/exit", "/quit":
			fmt.Fprintln(s.out, dimStyle.Render("Goodbye."))
			return nil
		}

		if strings.HasPrefix(input, "/") {
			if err := s.handleCommand(ctx, input); err != nil {
				fmt.Fprintln(s.out, errorStyle.Render("Error: "+err.Error()))
			}
			continue
		}

		// SendMessage renders the streamed reply through the renderer as a
		// side effect; errors are already surfaced there.
		if err := s.engine.SendMessage(ctx, input); err != nil {
			s.logger.Debug("send failed", "error", err)
		}
		if title := s.engine.Title(); title != "" && s.engine.SessionID() != "" {
			s.roster.UpdateTitle(s.engine.SessionID(), title)
		}
	}
}

// ProcessMessage runs a single non-interactive turn, used for direct
// prompts and piped input.
func (s *Session) ProcessMessage(ctx context.Context, text string) error {
	return s.engine.SendMessage(ctx, text)
}

// handleCommand dispatches one slash command
func (s *Session) handleCommand(ctx context.Context, input string) error {
	fields := strings.Fields(input)
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "/help":
		s.printHelp()
		return nil
	case "/sessions", "/list":
		return s.showSessions(ctx)
	case "/resume", "/open":
		if len(args) == 0 {
			return fmt.Errorf("usage: /resume <number|session-id>")
		}
		return s.resumeSession(ctx, args[0])
	case "/delete", "/rm":
		if len(args) == 0 {
			return fmt.Errorf("usage: /delete <number|session-id>")
		}
		return s.deleteSession(ctx, args[0])
	case "/new", "/clear":
		s.engine.ClearSession()
		fmt.Fprintln(s.out, dimStyle.Render("Started a new conversation."))
		return nil
	default:
		return fmt.Errorf("unknown command %s, try /help", command)
	}
}

func (s *Session) printHelp() {
	help := `Commands:
  /sessions          List your saved sessions
  /resume <n|id>     Resume a session by number or id
  /delete <n|id>     Delete a session
  /new               Start a fresh conversation
  /help              Show this help
  exit               Quit`
	fmt.Fprintln(s.out, dimStyle.Render(help))
}

// showSessions reloads and prints the roster
func (s *Session) showSessions(ctx context.Context) error {
	entries, err := s.roster.Reload(ctx)
	if err != nil {
		return err
	}
	if entries == nil {
		// Superseded reload; the newer one will print instead.
		return nil
	}
	fmt.Fprintln(s.out, renderRoster(entries))
	return nil
}

// resumeSession loads a session's history into the engine and replays it
func (s *Session) resumeSession(ctx context.Context, ref string) error {
	sessionID, err := s.resolveSessionRef(ref)
	if err != nil {
		return err
	}
	if err := s.engine.LoadSession(ctx, sessionID); err != nil {
		return err
	}

	title := s.engine.Title()
	if title == "" {
		title = sessionID
	}
	fmt.Fprintln(s.out, titleStyle.Render("Resumed: "+title))
	fmt.Fprintln(s.out)
	fmt.Fprint(s.out, renderHistory(s.engine.Messages()))
	return nil
}

// deleteSession removes a session, clearing the engine if it was open
func (s *Session) deleteSession(ctx context.Context, ref string) error {
	sessionID, err := s.resolveSessionRef(ref)
	if err != nil {
		return err
	}
	if err := s.roster.Remove(ctx, sessionID); err != nil {
		return err
	}
	if s.engine.SessionID() == sessionID {
		s.engine.ClearSession()
	}
	fmt.Fprintln(s.out, dimStyle.Render("Deleted "+sessionID))
	return nil
}

// resolveSessionRef accepts either a 1-based roster index or a raw id
func (s *Session) resolveSessionRef(ref string) (string, error) {
	entries := s.roster.Sessions()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(entries) {
			return "", fmt.Errorf("no session number %d, run /sessions first", n)
		}
		return entries[n-1].ID, nil
	}
	for _, entry := range entries {
		if entry.ID == ref {
			return entry.ID, nil
		}
	}
	// Not in the cached roster; trust the caller's id.
	return ref, nil
}
