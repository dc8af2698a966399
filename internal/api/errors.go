package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Error codes surfaced by the chat API. Every non-2xx response classifies
// into exactly one of these before any stream event is produced.
const (
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeUserNotReady = "USER_NOT_READY"
	ErrCodeRateLimited  = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeAPI          = "API_ERROR"
)

// Error represents a classified transport error from the chat API
type Error struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an API error carrying the given code
func IsCode(err error, code string) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// errorEnvelope is the shared error response shape of the API
type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details,omitempty"`
	} `json:"error"`
}

// classifyResponse turns a non-2xx response into a typed error. The body
// envelope wins when present; otherwise the status code alone decides.
func classifyResponse(resp *http.Response) *Error {
	apiErr := &Error{
		StatusCode: resp.StatusCode,
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		apiErr.Code = ErrCodeForbidden
		apiErr.Message = "you do not have access to this session"
	case http.StatusConflict:
		apiErr.Code = ErrCodeUserNotReady
		apiErr.Message = "your onboarding is not complete yet"
	case http.StatusTooManyRequests:
		apiErr.Code = ErrCodeRateLimited
		apiErr.Message = "rate limit exceeded, slow down"
	case http.StatusUnauthorized:
		apiErr.Code = ErrCodeUnauthorized
		apiErr.Message = "authentication required"
	case http.StatusNotFound:
		apiErr.Code = ErrCodeNotFound
		apiErr.Message = "not found"
	default:
		apiErr.Code = ErrCodeAPI
		apiErr.Message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apiErr
	}
	if envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
	}
	if envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}
