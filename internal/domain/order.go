package domain

import (
	"time"
)

// Order statuses as tracked locally. They mirror the checkout outcome once known.
const (
	OrderCreated  = "created"
	OrderApproved = "approved"
	OrderPending  = "pending"
	OrderRejected = "rejected"
	OrderExpired  = "expired"
)

// Order records a checkout preference created for a visitor.
type Order struct {
	ID                string    `json:"id"`
	ExternalReference string    `json:"external_reference"`
	PreferenceID      string    `json:"preference_id"`
	ServiceID         string    `json:"service_id"`
	VisitorID         string    `json:"visitor_id,omitempty"`
	Amount            float64   `json:"amount"`
	Email             string    `json:"email"`
	Status            string    `json:"status"`
	PaymentID         string    `json:"payment_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// OrderStatusFor maps a resolved payment status onto an order status.
func OrderStatusFor(status PaymentStatus) string {
	switch status {
	case PaymentApproved:
		return OrderApproved
	case PaymentPending:
		return OrderPending
	case PaymentRejected:
		return OrderRejected
	default:
		return ""
	}
}

// Notification is a provider webhook delivery.
type Notification struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Action            string    `json:"action,omitempty"`
	ResourceID        string    `json:"resource_id,omitempty"`
	ExternalReference string    `json:"external_reference,omitempty"`
	Status            string    `json:"status,omitempty"`
	Payload           string    `json:"payload"`
	ReceivedAt        time.Time `json:"received_at"`
}

// Lead is contact data left by a visitor at checkout.
type Lead struct {
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	ServiceID string    `json:"service_id"`
	VisitorID string    `json:"visitor_id"`
	CreatedAt time.Time `json:"created_at"`
}
