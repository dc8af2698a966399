package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Session represents one conversation thread as reported by the server
type Session struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	MessageCount  int       `json:"messageCount"`
	Summary       *string   `json:"summary"`
}

// SessionPage is one page of the session roster
type SessionPage struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}

// SessionMessage is one stored message of a session's history
type SessionMessage struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	IntentTag  *string   `json:"intentTag"`
	TokensUsed *int      `json:"tokensUsed"`
	Model      *string   `json:"model"`
}

// SessionInfo is the session header returned alongside message history
type SessionInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MessagePage is the message history of one session
type MessagePage struct {
	Messages []SessionMessage `json:"messages"`
	Session  SessionInfo      `json:"session"`
}

// ListSessions fetches one page of the authenticated user's sessions
func (c *Client) ListSessions(ctx context.Context, limit, offset int) (*SessionPage, error) {
	var page SessionPage
	path := "/v1/chat/sessions?" + pageQuery(limit, offset)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SessionMessages fetches the stored history of one session
func (c *Client) SessionMessages(ctx context.Context, sessionID string, limit, offset int) (*MessagePage, error) {
	var page MessagePage
	path := "/v1/chat/sessions/" + url.PathEscape(sessionID) + "/messages?" + pageQuery(limit, offset)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateSession explicitly creates a fresh session. Most sessions are
// created implicitly by the first streamed message instead.
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	var data struct {
		Session Session `json:"session"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/chat/sessions", []byte("{}"), &data); err != nil {
		return nil, err
	}
	return &data.Session, nil
}

// DeleteSession removes a session and its stored history
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/chat/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// dataEnvelope is the shared success response shape of the API
type dataEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// doJSON performs one non-streaming API call and decodes the data envelope
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyResponse(resp)
	}
	if out == nil {
		return nil
	}

	var envelope dataEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", path, err)
	}
	return nil
}

func pageQuery(limit, offset int) string {
	values := url.Values{}
	values.Set("limit", strconv.Itoa(limit))
	values.Set("offset", strconv.Itoa(offset))
	return values.Encode()
}
