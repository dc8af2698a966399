package api

import (
	"context"
	"os"
)

// TokenSource supplies the bearer credential for outgoing requests.
//
// A source returning an empty token (or an error) is not fatal: the client
// proceeds unauthenticated and lets the server reject with 401, so guest
// and logged-out flows degrade gracefully instead of failing locally.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// EnvTokenSource reads the token from an environment variable on every
// request, picking up re-logins without a client restart.
type EnvTokenSource string

func (s EnvTokenSource) Token(ctx context.Context) (string, error) {
	return os.Getenv(string(s)), nil
}
