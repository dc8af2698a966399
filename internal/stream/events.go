package stream

// EventStream represents a lazy sequence of chat stream events.
// It is forward-only and consumed exactly once; the producer closes the
// channel when the underlying turn completes or fails.
type EventStream <-chan Event

// Event represents one semantic event decoded from a chat turn
type Event interface {
	Type() string
}

// SessionEvent carries the server-assigned canonical session id.
// When present it is always the first event of a turn and supersedes any
// client-supplied session id.
type SessionEvent struct {
	SessionID string `json:"sessionId"`
}

func (e SessionEvent) Type() string { return "session-id" }

// TextChunk represents an increment of assistant-visible text
type TextChunk struct {
	Content string `json:"content"`
}

func (e TextChunk) Type() string { return "chunk" }

// Thinking represents an increment of model reasoning text.
// Reasoning never materializes a visible message on its own.
type Thinking struct {
	Content string `json:"content"`
}

func (e Thinking) Type() string { return "thinking" }

// Done marks the end of a turn. It is emitted unconditionally, even when
// the turn produced no content events.
type Done struct{}

func (e Done) Type() string { return "done" }

// Failure replaces Done when the connection dropped after streaming began.
// Content already delivered stays delivered; only the tail of the turn is
// lost.
type Failure struct {
	Err error
}

func (e Failure) Type() string { return "error" }
