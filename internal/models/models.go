// Package models contains the persisted records of the broker servers.
package models

import "time"

// StoredSession is a sealed broker session as kept on disk.
type StoredSession struct {
	Broker    string    `json:"broker"`
	Sealed    []byte    `json:"-"` // AES-GCM blob, never exposed
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolCall is one audited tool invocation.
type ToolCall struct {
	ID         int64     `json:"id"`
	Tool       string    `json:"tool"`
	Broker     string    `json:"broker"`
	Success    bool      `json:"success"`
	Arguments  string    `json:"arguments"` // JSON, already sanitized
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
