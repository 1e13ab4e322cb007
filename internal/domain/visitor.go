package domain

import (
	"time"
)

// Visitor is an anonymous device identified by cookie.
type Visitor struct {
	ID         string    `json:"id"`
	Nickname   string    `json:"nickname"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
