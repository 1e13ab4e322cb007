package paywall

import (
	"github.com/ecosoraculo/oraculo/internal/domain"
)

// State is the position of a widget tab in the paywall flow.
type State string

const (
	StateFree             State = "free"
	StateBlocked          State = "blocked"
	StateRedirecting      State = "redirecting"
	StateReturnedApproved State = "returned_approved"
	StateReturnedPending  State = "returned_pending"
	StateReturnedRejected State = "returned_rejected"
	StateUnlocked         State = "unlocked"
)

func parseState(s string) (State, bool) {
	switch st := State(s); st {
	case StateFree, StateBlocked, StateRedirecting, StateReturnedApproved,
		StateReturnedPending, StateReturnedRejected, StateUnlocked:
		return st, true
	}
	return "", false
}

// View is what a widget tab renders.
type View struct {
	Widget           string               `json:"widget"`
	ServiceID        string               `json:"serviceId"`
	State            State                `json:"state"`
	Messages         []domain.ChatMessage `json:"messages"`
	Added            []domain.ChatMessage `json:"added,omitempty"`
	MessageCount     int                  `json:"userMessageCount"`
	Threshold        int                  `json:"threshold"`
	Paid             bool                 `json:"paid"`
	FreeCredits      int                  `json:"freeConsultations"`
	BlockedMessageID string               `json:"blockedMessageId,omitempty"`
	PendingMessage   string               `json:"pendingMessage,omitempty"`
	RequiresPayment  bool                 `json:"requiresPayment"`
	Buyer            *domain.Buyer        `json:"userData,omitempty"`
}

// CheckoutResult is returned by Checkout.
type CheckoutResult struct {
	CheckoutURL       string `json:"checkoutUrl"`
	PreferenceID      string `json:"preferenceId"`
	ExternalReference string `json:"externalReference"`
	View              *View  `json:"view"`
}

// ReturnResult is returned by Return.
type ReturnResult struct {
	Status            domain.PaymentStatus `json:"status"`
	PaymentID         string               `json:"paymentId,omitempty"`
	ExternalReference string               `json:"externalReference,omitempty"`
	CleanQuery        string               `json:"cleanQuery"`
	Replaying         bool                 `json:"replaying"`
	View              *View                `json:"view"`
}
