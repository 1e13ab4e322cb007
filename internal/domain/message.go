// Package domain contains core domain types for the oracle chat service.
package domain

import (
	"time"
)

// Role identifies who authored a chat message.
type Role string

// RoleUser is the visitor. Every other role is a persona voice.
const RoleUser Role = "user"

// ChatMessage is one entry of a widget transcript.
// Timestamps travel as RFC 3339 strings and are re-hydrated on decode.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IsUser reports whether the visitor wrote the message.
func (m ChatMessage) IsUser() bool {
	return m.Role == RoleUser
}

// CloneMessages returns a copy of msgs that shares no backing array.
func CloneMessages(msgs []ChatMessage) []ChatMessage {
	if msgs == nil {
		return nil
	}
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
