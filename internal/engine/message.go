package engine

import "time"

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Status is the lifecycle state of one message.
// Transitions: pending → sending → streaming → complete, with error
// reachable from sending or streaming.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// Message is one turn of a conversation.
//
// ID is the server-assigned identifier, empty until the message has been
// persisted. DisplayID is generated locally exactly once and never
// reassigned, so a UI can key on it across renders while ID reconciles
// underneath.
type Message struct {
	ID         string    `json:"id,omitempty"`
	DisplayID  string    `json:"displayId"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Status     Status    `json:"status"`
	SessionID  string    `json:"sessionId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	IntentTag  *string   `json:"intentTag,omitempty"`
	TokensUsed *int      `json:"tokensUsed,omitempty"`
	Model      *string   `json:"model,omitempty"`
}

// ToolCallStatus is the lifecycle state of an ephemeral tool call
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallCompleted ToolCallStatus = "completed"
)

// ToolCall is a best-effort record of a tool the model appears to be
// using, derived from reasoning text. It lives only for the duration of
// one streamed turn and is never persisted.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    ToolCallStatus `json:"status"`
	StartTime time.Time      `json:"startTime"`
}
