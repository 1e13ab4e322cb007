// Package paywall implements the per-widget free-quota and checkout state
// machine shared by every chat widget.
package paywall

import (
	"unicode"

	"github.com/ecosoraculo/oraculo/internal/catalog"
	"github.com/ecosoraculo/oraculo/internal/domain"
)

// Keys shared by every widget.
const (
	UserDataKey          = "userData"
	PaymentDataKey       = "mercadopago_payment_data"
	PaymentDataBackupKey = PaymentDataKey + "_backup"
)

// Config parametrizes the state machine for one widget.
type Config struct {
	Widget      string
	ServiceID   string
	Threshold   int
	KeyPrefix   string
	PaidFlagKey string
	CreditsKey  string
	Persona     domain.Role
	DisplayName string
	ServiceName string
	Amount      float64
	Description string
	Welcome     []string
}

// ConfigFromWidget builds a Config from a catalog widget.
func ConfigFromWidget(w catalog.Widget) Config {
	cfg := Config{
		Widget:      w.Name,
		ServiceID:   w.ServiceID,
		Threshold:   w.Threshold,
		KeyPrefix:   w.KeyPrefix,
		PaidFlagKey: w.PaidFlagKey,
		CreditsKey:  w.CreditsKey,
		Persona:     domain.Role(w.Persona),
		DisplayName: w.DisplayName,
		ServiceName: w.ServiceName,
		Amount:      w.Amount,
		Description: w.Description,
		Welcome:     w.Welcome,
	}
	if cfg.PaidFlagKey == "" {
		cfg.PaidFlagKey = "hasUserPaidFor" + upperFirst(cfg.KeyPrefix)
	}
	if cfg.CreditsKey == "" {
		cfg.CreditsKey = "free" + upperFirst(cfg.KeyPrefix) + "Consultations"
	}
	return cfg
}

func (c Config) messagesKey() string { return c.KeyPrefix + "Messages" }
func (c Config) countKey() string { return c.KeyPrefix + "UserMessageCount" }
func (c Config) blockedKey() string { return c.KeyPrefix + "BlockedMessageId" }
func (c Config) stateKey() string { return c.KeyPrefix + "State" }
func (c Config) pendingKey() string { return "pending" + upperFirst(c.KeyPrefix) + "Message" }
func (c Config) servicePaidKey() string { return "service_paid_" + c.ServiceID }

// conversationKeys are cleared on reset and on corrupt state.
func (c Config) conversationKeys() []string {
	return []string{c.messagesKey(), c.countKey(), c.blockedKey()}
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
