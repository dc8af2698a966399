package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/astralume/astra/internal/stream"
)

// Client talks to the Astra chat API.
//
// One client serves both the streaming chat endpoint and the plain JSON
// session endpoints. It holds no per-turn state; cancellation of a turn is
// driven entirely by the caller's context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *log.Logger
}

// ClientOptions configures a Client
type ClientOptions struct {
	BaseURL string
	Tokens  TokenSource
	// HTTPClient overrides the transport, mainly for tests. The default
	// client carries no overall timeout: a streamed turn is open-ended and
	// is bounded by the caller's context instead.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewClient creates a chat API client
func NewClient(options ClientOptions) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(options.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     options.Tokens,
		logger:     logger,
	}
}

// chatRequest is the body of POST /v1/chat/stream
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// StreamChat opens one chat turn and returns its event sequence.
//
// Classified transport errors are returned before any event is produced.
// On success the first event is the authoritative session id from the
// X-Session-ID header when present, followed by the decoded data events,
// and finally an unconditional Done. A mid-stream read failure replaces
// Done with a Failure event carrying the cause.
//
// The returned sequence is consumed exactly once. Cancelling ctx abandons
// the turn and releases the underlying response body on every exit path.
func (c *Client) StreamChat(ctx context.Context, message, sessionID string) (stream.EventStream, error) {
	body, err := json.Marshal(chatRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat stream request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, classifyResponse(resp)
	}

	if !streamableContentType(resp.Header.Get("Content-Type")) {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected content type %q from chat stream", resp.Header.Get("Content-Type"))
	}
	if resp.Body == nil {
		return nil, errors.New("chat stream response has no body")
	}

	events := make(chan stream.Event, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		// The header value is authoritative and supersedes any session id
		// the caller supplied for this turn.
		if sid := resp.Header.Get("X-Session-ID"); sid != "" {
			if !emit(ctx, events, stream.SessionEvent{SessionID: sid}) {
				return
			}
		}

		decoder := stream.NewDecoder(resp.Body)
		for decoder.Scan() {
			event, ok := stream.ParseRecord(decoder.Record())
			if !ok {
				continue
			}
			if !emit(ctx, events, event) {
				return
			}
		}

		if err := decoder.Err(); err != nil && ctx.Err() == nil {
			c.logger.Warn("chat stream closed early", "error", err)
			emit(ctx, events, stream.Failure{Err: err})
			return
		}

		emit(ctx, events, stream.Done{})
	}()

	return events, nil
}

// emit delivers an event unless the caller abandoned the turn
func emit(ctx context.Context, events chan<- stream.Event, event stream.Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// authorize attaches the bearer credential when one is available. Token
// lookup is best-effort: absence or failure means the request simply goes
// out unauthenticated.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if c.tokens == nil {
		return
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Debug("token source failed, proceeding unauthenticated", "error", err)
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// streamableContentType accepts SSE and JSON-ish bodies. Anything else is
// a protocol violation, not a silently empty stream.
func streamableContentType(contentType string) bool {
	return strings.Contains(contentType, "text/event-stream") ||
		strings.Contains(contentType, "application/json")
}
