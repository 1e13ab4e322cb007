package domain

import (
	"time"
)

// PaymentStatus is the resolved outcome of a hosted checkout.
type PaymentStatus string

const (
	PaymentNone     PaymentStatus = ""
	PaymentApproved PaymentStatus = "approved"
	PaymentPending  PaymentStatus = "pending"
	PaymentRejected PaymentStatus = "rejected"
)

// Buyer holds the contact data collected before checkout.
type Buyer struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// PaymentSession is the snapshot written before the visitor leaves for checkout.
// It is consumed and deleted when the visitor comes back.
type PaymentSession struct {
	ServiceID         string        `json:"serviceId"`
	Widget            string        `json:"widget"`
	Amount            float64       `json:"amount"`
	Buyer             *Buyer        `json:"userData,omitempty"`
	ExternalReference string        `json:"externalReference,omitempty"`
	Conversation      []ChatMessage `json:"conversationHistory"`
	MessageCount      int           `json:"userMessageCount"`
	BlockedMessageID  string        `json:"blockedMessageId,omitempty"`
	PendingMessage    string        `json:"pendingMessage,omitempty"`
	SavedAt           time.Time     `json:"savedAt"`
}
