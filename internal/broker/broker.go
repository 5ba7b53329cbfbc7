// Package broker holds the types shared by the broker REST clients.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"time"
)

// Session represents an authenticated broker session.
type Session struct {
	// Token is the primary session token (CST for Capital.com).
	Token string
	// SecurityToken is the secondary token sent next to Token.
	SecurityToken string
	// AccountID is the account resolved at login.
	AccountID string
	IssuedAt  time.Time
}

// Valid reports whether the session carries tokens and an account.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.SecurityToken != "" && s.AccountID != ""
}

// Request describes a single broker REST call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Result is a decoded broker JSON object or an error envelope.
type Result map[string]any

// IsError reports whether r is an error envelope.
func (r Result) IsError() bool {
	_, ok := r["error"]
	return ok
}

// ErrorMessage returns the envelope's error text.
func (r Result) ErrorMessage() string {
	msg, _ := r["error"].(string)
	return msg
}

// Success is the result for a 2xx response without a JSON body.
func Success() Result {
	return Result{"success": true}
}

// DecodeResult parses a 2xx body. Objects are returned as-is, other JSON
// values are wrapped under "data", and empty or non-JSON bodies yield Success.
func DecodeResult(body []byte) Result {
	if len(bytes.TrimSpace(body)) == 0 {
		return Success()
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return Success()
	}
	switch t := v.(type) {
	case map[string]any:
		return Result(t)
	case nil:
		return Success()
	default:
		return Result{"data": t}
	}
}

// Client is the capability every broker client provides: establish
// credentials and dispatch an authenticated request.
type Client interface {
	// Authenticate establishes or validates credentials and reports success.
	Authenticate(ctx context.Context) bool

	// Dispatch performs one authenticated request.
	Dispatch(ctx context.Context, req Request) (Result, error)
}

// SessionStore persists sessions across restarts.
type SessionStore interface {
	LoadSession(ctx context.Context, broker string) (*Session, error)
	SaveSession(ctx context.Context, broker string, s *Session) error
}
