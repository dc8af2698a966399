package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/astralume/astra/internal/api"
	"github.com/astralume/astra/internal/stream"
)

// apologyMessage is appended when a turn finishes without producing any
// assistant content at all.
const apologyMessage = "I'm sorry, I wasn't able to generate a response. Please try again."

const (
	defaultToolCallGrace   = 2 * time.Second
	defaultHistoryPageSize = 100
)

// ChatAPI is the slice of the API client the engine depends on
type ChatAPI interface {
	StreamChat(ctx context.Context, message, sessionID string) (stream.EventStream, error)
	SessionMessages(ctx context.Context, sessionID string, limit, offset int) (*api.MessagePage, error)
}

// Renderer receives live notifications while a turn streams, so a UI can
// paint deltas without owning any conversation state. All state queries go
// through the engine's accessors instead. Callbacks run on the goroutine
// driving SendMessage.
type Renderer interface {
	OnChunk(content string)
	OnThinking(content string)
	OnToolCall(call ToolCall)
	OnDone()
	OnError(err error)
}

// Engine owns the live message sequence of the currently open session and
// folds stream events into it.
//
// All mutation happens under one mutex: the source environment relied on a
// single-threaded event loop, which in Go becomes an explicit lock.
// Accessors return snapshots, never internal slices. Only one send may be
// in flight per engine; a second SendMessage while streaming is a guarded
// no-op, not an error and not a queue.
type Engine struct {
	client   ChatAPI
	renderer Renderer
	logger   *log.Logger

	mu         sync.Mutex
	messages   []Message
	sessionID  string
	title      string
	toolCalls  []ToolCall
	thinking   bool
	streaming  bool
	lastErr    error
	clearTimer *time.Timer

	grace           time.Duration
	historyPageSize int
	newID           func() string
	now             func() time.Time
}

// Options configures an Engine
type Options struct {
	// Renderer receives live turn notifications; nil disables them.
	Renderer Renderer
	// ToolCallGrace delays clearing finished tool calls so a UI can show
	// their completed state briefly. Presentation nicety only.
	ToolCallGrace time.Duration
	// HistoryPageSize bounds one LoadSession history fetch.
	HistoryPageSize int
	Logger          *log.Logger
}

// NewEngine creates a chat session engine
func NewEngine(client ChatAPI, options Options) *Engine {
	grace := options.ToolCallGrace
	if grace <= 0 {
		grace = defaultToolCallGrace
	}
	pageSize := options.HistoryPageSize
	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		client:          client,
		renderer:        options.Renderer,
		logger:          logger,
		grace:           grace,
		historyPageSize: pageSize,
		newID:           uuid.NewString,
		now:             time.Now,
	}
}

// SendMessage runs one chat turn to completion.
//
// Blank input and a send already in flight are guarded no-ops. The user
// message is inserted optimistically in "sending" status before the
// request goes out, and whatever happens afterwards the engine leaves the
// streaming condition — success, classified API error, or mid-stream
// drop.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	e.mu.Lock()
	if e.streaming {
		e.mu.Unlock()
		return nil
	}
	e.streaming = true
	e.lastErr = nil

	userMsg := Message{
		DisplayID: e.newID(),
		Role:      RoleUser,
		Content:   trimmed,
		Status:    StatusSending,
		SessionID: e.sessionID,
		CreatedAt: e.now(),
	}
	e.messages = append(e.messages, userMsg)
	userID := userMsg.DisplayID

	// First message of a fresh session seeds a provisional title until
	// the server produces a summary.
	if e.sessionID == "" && e.title == "" {
		e.title = ProvisionalTitle(trimmed)
	}
	sessionID := e.sessionID
	e.mu.Unlock()

	events, err := e.client.StreamChat(ctx, trimmed, sessionID)
	if err != nil {
		e.failTurn(userID, err)
		return err
	}

	for event := range events {
		switch event := event.(type) {
		case stream.SessionEvent:
			e.adoptSession(event.SessionID)
		case stream.Thinking:
			e.foldThinking(event.Content)
		case stream.TextChunk:
			e.foldChunk(event.Content)
		case stream.Done:
			e.finishTurn(userID)
		case stream.Failure:
			e.failTurn(userID, event.Err)
			return event.Err
		}
	}

	// The producer closed without Done or Failure: the turn was abandoned
	// (context cancelled mid-stream). Never leave the spinner stuck.
	e.mu.Lock()
	stuck := e.streaming
	e.mu.Unlock()
	if stuck {
		err := ctx.Err()
		if err == nil {
			err = errors.New("chat stream ended unexpectedly")
		}
		e.failTurn(userID, err)
		return err
	}
	return nil
}

// adoptSession records the canonical session id from the server. It always
// overwrites whatever the client held, placeholder or otherwise, and tags
// every message that predates it.
func (e *Engine) adoptSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessionID = sessionID
	for i := range e.messages {
		if e.messages[i].SessionID == "" {
			e.messages[i].SessionID = sessionID
		}
	}
}

// foldThinking handles a reasoning increment. Reasoning alone never
// materializes a visible message; it only raises the thinking flag and
// feeds the tool-call heuristic.
func (e *Engine) foldThinking(content string) {
	var registered *ToolCall

	e.mu.Lock()
	e.thinking = true
	if name, ok := ExtractToolName(content); ok && !e.hasToolCall(name) {
		call := ToolCall{
			ID:        e.newID(),
			Name:      name,
			Status:    ToolCallRunning,
			StartTime: e.now(),
		}
		e.toolCalls = append(e.toolCalls, call)
		registered = &call
	}
	e.mu.Unlock()

	if e.renderer != nil {
		e.renderer.OnThinking(content)
		if registered != nil {
			e.renderer.OnToolCall(*registered)
		}
	}
}

// hasToolCall reports whether a tool of this name is already registered.
// Callers hold the lock.
func (e *Engine) hasToolCall(name string) bool {
	for _, call := range e.toolCalls {
		if call.Name == name {
			return true
		}
	}
	return false
}

// foldChunk appends visible assistant text. Content is appended, never
// replaced: this is the incremental render path and chunk order is the
// delivery order.
func (e *Engine) foldChunk(content string) {
	e.mu.Lock()
	e.thinking = false
	for i := range e.toolCalls {
		if e.toolCalls[i].Status == ToolCallRunning {
			e.toolCalls[i].Status = ToolCallCompleted
		}
	}

	if last := e.lastMessage(); last != nil && last.Role == RoleAssistant {
		last.Content += content
		last.Status = StatusStreaming
	} else {
		e.messages = append(e.messages, Message{
			DisplayID: e.newID(),
			Role:      RoleAssistant,
			Content:   content,
			Status:    StatusStreaming,
			SessionID: e.sessionID,
			CreatedAt: e.now(),
		})
	}
	e.mu.Unlock()

	if e.renderer != nil {
		e.renderer.OnChunk(content)
	}
}

// finishTurn handles the terminal done event
func (e *Engine) finishTurn(userID string) {
	e.mu.Lock()
	if user := e.messageByDisplayID(userID); user != nil && user.Status == StatusSending {
		user.Status = StatusComplete
	}

	if last := e.lastMessage(); last != nil && last.Role == RoleAssistant {
		last.Status = StatusComplete
	} else {
		// The turn produced no assistant content at all; surface a fixed
		// apology instead of finishing silently.
		e.messages = append(e.messages, Message{
			DisplayID: e.newID(),
			Role:      RoleAssistant,
			Content:   apologyMessage,
			Status:    StatusError,
			SessionID: e.sessionID,
			CreatedAt: e.now(),
		})
	}

	e.thinking = false
	e.streaming = false
	e.scheduleToolCallClear()
	e.mu.Unlock()

	if e.renderer != nil {
		e.renderer.OnDone()
	}
}

// failTurn finalizes state after a transport, protocol, or mid-stream
// failure. Partially streamed content is preserved, not discarded.
func (e *Engine) failTurn(userID string, err error) {
	e.mu.Lock()
	if user := e.messageByDisplayID(userID); user != nil {
		user.Status = StatusError
	}
	if last := e.lastMessage(); last != nil && last.Role == RoleAssistant && last.Status == StatusStreaming {
		last.Status = StatusError
	}
	e.messages = append(e.messages, Message{
		DisplayID: e.newID(),
		Role:      RoleAssistant,
		Content:   err.Error(),
		Status:    StatusError,
		SessionID: e.sessionID,
		CreatedAt: e.now(),
	})
	for i := range e.toolCalls {
		if e.toolCalls[i].Status == ToolCallRunning {
			e.toolCalls[i].Status = ToolCallCompleted
		}
	}
	e.lastErr = err
	e.thinking = false
	e.streaming = false
	e.scheduleToolCallClear()
	e.mu.Unlock()

	e.logger.Error("chat turn failed", "error", err)
	if e.renderer != nil {
		e.renderer.OnError(err)
	}
}

// scheduleToolCallClear drops finished tool calls after the grace period.
// Callers hold the lock.
func (e *Engine) scheduleToolCallClear() {
	if len(e.toolCalls) == 0 {
		return
	}
	if e.clearTimer != nil {
		e.clearTimer.Stop()
	}
	e.clearTimer = time.AfterFunc(e.grace, func() {
		e.mu.Lock()
		e.toolCalls = nil
		e.mu.Unlock()
	})
}

// LoadSession replaces the whole message sequence from stored history.
// Every loaded message is complete by definition. Concurrent loads are not
// ordered; the last writer wins, which the route-driven caller already
// serializes.
func (e *Engine) LoadSession(ctx context.Context, sessionID string) error {
	page, err := e.client.SessionMessages(ctx, sessionID, e.historyPageSize, 0)
	if err != nil {
		return err
	}

	messages := make([]Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		messages = append(messages, Message{
			ID:         m.ID,
			DisplayID:  e.newID(),
			Role:       Role(m.Role),
			Content:    m.Content,
			Status:     StatusComplete,
			SessionID:  sessionID,
			CreatedAt:  m.CreatedAt,
			IntentTag:  m.IntentTag,
			TokensUsed: m.TokensUsed,
			Model:      m.Model,
		})
	}

	e.mu.Lock()
	e.messages = messages
	e.sessionID = sessionID
	e.title = page.Session.Title
	e.toolCalls = nil
	e.thinking = false
	e.lastErr = nil
	e.mu.Unlock()
	return nil
}

// ClearSession resets the engine to its initial empty state, ready for a
// new unrelated conversation.
func (e *Engine) ClearSession() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clearTimer != nil {
		e.clearTimer.Stop()
		e.clearTimer = nil
	}
	e.messages = nil
	e.sessionID = ""
	e.title = ""
	e.toolCalls = nil
	e.thinking = false
	e.streaming = false
	e.lastErr = nil
}

// Messages returns a snapshot of the message sequence
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// ToolCalls returns a snapshot of the ephemeral tool-call list
func (e *Engine) ToolCalls() []ToolCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ToolCall, len(e.toolCalls))
	copy(out, e.toolCalls)
	return out
}

// SessionID returns the current canonical session id, empty until the
// server assigns one.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Title returns the session title, provisional or loaded
func (e *Engine) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.title
}

// Streaming reports whether a send is in flight
func (e *Engine) Streaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streaming
}

// Thinking reports whether the model is producing reasoning without
// visible output yet.
func (e *Engine) Thinking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thinking
}

// Err returns the error of the last failed turn, nil after a successful
// send or a clear.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// lastMessage returns the final message or nil. Callers hold the lock.
func (e *Engine) lastMessage() *Message {
	if len(e.messages) == 0 {
		return nil
	}
	return &e.messages[len(e.messages)-1]
}

// messageByDisplayID finds a message by its stable id. Callers hold the
// lock.
func (e *Engine) messageByDisplayID(displayID string) *Message {
	for i := range e.messages {
		if e.messages[i].DisplayID == displayID {
			return &e.messages[i]
		}
	}
	return nil
}
