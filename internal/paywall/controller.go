package paywall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/ecosoraculo/oraculo/internal/chat"
	"github.com/ecosoraculo/oraculo/internal/domain"
	"github.com/ecosoraculo/oraculo/internal/events"
	"github.com/ecosoraculo/oraculo/internal/order"
	"github.com/ecosoraculo/oraculo/internal/sessionstore"
	"github.com/ecosoraculo/oraculo/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Controller is the paywall state machine of one widget in one tab.
// Every operation holds the tab lock for its whole duration.
type Controller struct {
	m         *Manager
	cfg       Config
	visitorID string
	tabID     string
	tab       *sessionstore.Bag
	device    *sessionstore.Bag
	mu        *sync.Mutex
}

type session struct {
	messages  []domain.ChatMessage
	count     int
	blockedID string
	pending   string
	paid      bool
	credits   int
	state     State
	buyer     *domain.Buyer
}

// Config returns the widget configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Load restores the tab's conversation, starting a fresh one with a welcome
// message when nothing usable is stored.
func (c *Controller) Load(ctx context.Context) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(ctx, true)
	if err != nil {
		return nil, err
	}
	return c.view(s), nil
}

// View returns the stored state without starting a conversation.
func (c *Controller) View(ctx context.Context) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(ctx, false)
	if err != nil {
		return nil, err
	}
	return c.view(s), nil
}

// Send handles a visitor message: processed while free, paid or covered by a
// credit, otherwise held as pending behind the paywall.
func (c *Controller) Send(ctx context.Context, text string) (*View, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(ctx, true)
	if err != nil {
		return nil, err
	}

	var added []domain.ChatMessage
	covered := false
	if !s.paid && s.count >= c.cfg.Threshold-1 {
		if s.credits <= 0 {
			return c.intercept(ctx, s, text)
		}
		s.credits--
		if err := c.tab.SetInt(ctx, c.cfg.CreditsKey, s.credits); err != nil {
			return nil, fmt.Errorf("save credits: %w", err)
		}
		notice := c.personaMessage(creditUsedText(s.credits))
		s.messages = append(s.messages, notice)
		added = append(added, notice)
		covered = true
		if s.state == StateBlocked {
			s.state = StateFree
		}
		slog.Info("Free consultation used", "widget", c.cfg.Widget, "visitor_id", c.visitorID, "remaining", s.credits)
	}

	processed, err := c.process(ctx, s, text, covered)
	if err != nil {
		return nil, err
	}
	v := c.view(s)
	v.Added = append(added, processed...)
	return v, nil
}

func (c *Controller) intercept(ctx context.Context, s *session, text string) (*View, error) {
	s.pending = text
	if err := c.tab.SetString(ctx, c.cfg.pendingKey(), text); err != nil {
		return nil, fmt.Errorf("save pending message: %w", err)
	}
	if err := saveSnapshot(ctx, c.device, c.snapshot(s)); err != nil {
		return nil, err
	}
	if err := c.setState(ctx, s, StateBlocked); err != nil {
		return nil, err
	}

	slog.Info("Message held for payment",
		"widget", c.cfg.Widget,
		"visitor_id", c.visitorID,
		"user_message_count", s.count,
		"threshold", c.cfg.Threshold,
	)
	v := c.view(s)
	v.RequiresPayment = true
	return v, nil
}

// process counts the message, asks the chat backend and appends both turns.
// Backend failures become a persona-voiced error message.
func (c *Controller) process(ctx context.Context, s *session, text string, covered bool) ([]domain.ChatMessage, error) {
	history := domain.CloneMessages(s.messages)

	s.count++
	user := domain.ChatMessage{ID: c.m.newID(), Role: domain.RoleUser, Text: text, Timestamp: c.m.now()}
	s.messages = append(s.messages, user)
	if err := c.saveConversation(ctx, s); err != nil {
		return nil, err
	}

	reply, err := c.m.chat.Reply(ctx, chat.Request{
		Widget:              c.cfg.Widget,
		Persona:             string(c.cfg.Persona),
		UserMessage:         text,
		ConversationHistory: history,
	})

	var answer domain.ChatMessage
	blocked := false
	if err != nil {
		slog.Warn("Chat backend failed", "widget", c.cfg.Widget, "visitor_id", c.visitorID, "error", err)
		answer = c.personaMessage(backendErrorText)
	} else {
		answer = c.personaMessage(reply)
		if !s.paid && !covered && s.count >= c.cfg.Threshold {
			s.blockedID = answer.ID
			blocked = true
		}
	}
	s.messages = append(s.messages, answer)
	if err := c.saveConversation(ctx, s); err != nil {
		return nil, err
	}

	if blocked {
		if err := saveSnapshot(ctx, c.device, c.snapshot(s)); err != nil {
			return nil, err
		}
		if err := c.setState(ctx, s, StateBlocked); err != nil {
			return nil, err
		}
	}
	return []domain.ChatMessage{user, answer}, nil
}

// Checkout validates buyer data, creates the order and records its reference
// in the payment snapshot.
func (c *Controller) Checkout(ctx context.Context, buyer domain.Buyer) (*CheckoutResult, error) {
	buyer.Email = strings.TrimSpace(buyer.Email)
	if buyer.Email == "" || !emailPattern.MatchString(buyer.Email) {
		return nil, ErrInvalidEmail
	}
	buyer.FirstName = strings.TrimSpace(buyer.FirstName)
	buyer.LastName = strings.TrimSpace(buyer.LastName)
	if buyer.FirstName == "" {
		buyer.FirstName = order.DefaultFirstName
	}
	if buyer.LastName == "" {
		buyer.LastName = order.DefaultLastName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(ctx, false)
	if err != nil {
		return nil, err
	}
	if s.paid {
		return nil, ErrAlreadyPaid
	}

	s.buyer = &buyer
	if err := c.tab.SetJSON(ctx, UserDataKey, buyer); err != nil {
		return nil, fmt.Errorf("save user data: %w", err)
	}

	res, err := c.m.orders.CreateOrder(ctx, order.Request{
		ServiceID:   c.cfg.ServiceID,
		Amount:      c.cfg.Amount,
		ServiceName: c.cfg.ServiceName,
		FirstName:   buyer.FirstName,
		LastName:    buyer.LastName,
		Email:       buyer.Email,
		CategoryID:  order.DefaultCategoryID,
		Description: c.cfg.Description,
		VisitorID:   c.visitorID,
	})
	if err != nil {
		return nil, err
	}

	snap := c.snapshot(s)
	snap.ExternalReference = res.ExternalReference
	snap.Amount = res.Amount
	if err := saveSnapshot(ctx, c.device, snap); err != nil {
		return nil, err
	}
	if err := c.setState(ctx, s, StateRedirecting); err != nil {
		return nil, err
	}

	slog.Info("Checkout started",
		"widget", c.cfg.Widget,
		"visitor_id", c.visitorID,
		"external_reference", res.ExternalReference,
	)
	return &CheckoutResult{
		CheckoutURL:       res.CheckoutURL,
		PreferenceID:      res.PreferenceID,
		ExternalReference: res.ExternalReference,
		View:              c.view(s),
	}, nil
}

// Return applies the outcome carried by a checkout return URL.
func (c *Controller) Return(ctx context.Context, q url.Values) (*ReturnResult, error) {
	info := ResolveStatus(q)
	res := &ReturnResult{
		Status:            info.Status,
		PaymentID:         info.PaymentID,
		ExternalReference: info.ExternalReference,
		CleanQuery:        StripPaymentParams(q).Encode(),
	}
	if info.ServiceID != "" && info.ServiceID != c.cfg.ServiceID {
		return nil, ErrServiceMismatch
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !HasPaymentParams(q) || info.Status == domain.PaymentNone {
		s, err := c.load(ctx, true)
		if err != nil {
			return nil, err
		}
		res.View = c.view(s)
		return res, nil
	}

	s, err := c.load(ctx, false)
	if err != nil {
		return nil, err
	}
	if err := c.restore(ctx, s, res); err != nil {
		return nil, err
	}

	var note domain.ChatMessage
	switch info.Status {
	case domain.PaymentApproved:
		if err := c.markPaid(ctx, s); err != nil {
			return nil, err
		}
		note = c.personaMessage(confirmationText(c.cfg))
		pending := s.pending
		s.pending = ""
		if err := c.tab.Clear(ctx, c.cfg.pendingKey()); err != nil {
			return nil, fmt.Errorf("clear pending message: %w", err)
		}
		s.state = StateUnlocked
		if pending != "" {
			s.state = StateReturnedApproved
			c.m.scheduleReplay(c.cfg.Widget, c.visitorID, c.tabID, pending)
			res.Replaying = true
		}
	case domain.PaymentPending:
		note = c.personaMessage(pendingPaymentText)
		s.state = StateReturnedPending
	case domain.PaymentRejected:
		note = c.personaMessage(rejectedPaymentText)
		s.state = StateReturnedRejected
	}

	s.messages = append(s.messages, note)
	if err := c.saveConversation(ctx, s); err != nil {
		return nil, err
	}
	if err := c.setState(ctx, s, s.state); err != nil {
		return nil, err
	}
	c.recordOrderStatus(ctx, res)

	slog.Info("Checkout return handled",
		"widget", c.cfg.Widget,
		"visitor_id", c.visitorID,
		"status", info.Status,
		"external_reference", res.ExternalReference,
		"messages", len(s.messages),
	)
	res.View = c.view(s)
	res.View.Added = []domain.ChatMessage{note}
	return res, nil
}

// restore replaces the tab conversation with the payment snapshot, then
// deletes both snapshot copies.
func (c *Controller) restore(ctx context.Context, s *session, res *ReturnResult) error {
	snap, err := readSnapshot(ctx, c.device, c.cfg.ServiceID)
	if err != nil {
		return err
	}
	if snap != nil {
		s.messages = domain.CloneMessages(snap.Conversation)
		s.count = snap.MessageCount
		if snap.Buyer != nil {
			s.buyer = snap.Buyer
			if err := c.tab.SetJSON(ctx, UserDataKey, snap.Buyer); err != nil {
				return fmt.Errorf("restore user data: %w", err)
			}
		}
		if s.pending == "" && snap.PendingMessage != "" {
			s.pending = snap.PendingMessage
			if err := c.tab.SetString(ctx, c.cfg.pendingKey(), s.pending); err != nil {
				return fmt.Errorf("restore pending message: %w", err)
			}
		}
		if s.blockedID == "" && snap.BlockedMessageID != "" && !s.paid {
			s.blockedID = snap.BlockedMessageID
			if err := c.tab.SetString(ctx, c.cfg.blockedKey(), s.blockedID); err != nil {
				return fmt.Errorf("restore blocked message: %w", err)
			}
		}
		if res.ExternalReference == "" {
			res.ExternalReference = snap.ExternalReference
		}
	} else if len(s.messages) == 0 {
		s.messages = []domain.ChatMessage{c.welcomeMessage()}
	}
	if err := clearSnapshot(ctx, c.device); err != nil {
		return fmt.Errorf("clear payment data: %w", err)
	}
	return nil
}

func (c *Controller) recordOrderStatus(ctx context.Context, res *ReturnResult) {
	if c.m.orderStatus == nil || res.ExternalReference == "" {
		return
	}
	err := c.m.orderStatus.UpdateOrderStatus(ctx, res.ExternalReference, domain.OrderStatusFor(res.Status), res.PaymentID)
	if errors.Is(err, store.ErrNotFound) {
		slog.Debug("Return for unknown order", "external_reference", res.ExternalReference)
		return
	}
	if err != nil {
		slog.Warn("Failed to record order status", "external_reference", res.ExternalReference, "error", err)
	}
}

// ReplayPending processes a message held before checkout and pushes the new
// turns to the tab's event stream.
func (c *Controller) ReplayPending(ctx context.Context, text string) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(ctx, true)
	if err != nil {
		return nil, err
	}
	added, err := c.process(ctx, s, text, false)
	if err != nil {
		return nil, err
	}
	if s.state == StateReturnedApproved {
		if err := c.setState(ctx, s, StateUnlocked); err != nil {
			return nil, err
		}
	}

	v := c.view(s)
	v.Added = added
	c.publish(ctx, s, added)
	return v, nil
}

func (c *Controller) publish(ctx context.Context, s *session, added []domain.ChatMessage) {
	if c.m.notifier == nil {
		return
	}
	err := c.m.notifier.Publish(ctx, c.visitorID, c.tabID, events.Event{
		Type:     events.TypeMessages,
		Widget:   c.cfg.Widget,
		State:    string(s.state),
		Messages: added,
	})
	if errors.Is(err, events.ErrNoSubscriber) {
		slog.Debug("No event stream for replay", "widget", c.cfg.Widget, "visitor_id", c.visitorID)
		return
	}
	if err != nil {
		slog.Warn("Failed to publish replay", "widget", c.cfg.Widget, "visitor_id", c.visitorID, "error", err)
	}
}

// SetPaid marks the service paid. A false value never clears a paid flag.
func (c *Controller) SetPaid(ctx context.Context, paid bool) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(ctx, true)
	if err != nil {
		return nil, err
	}
	if paid && !s.paid {
		if err := c.markPaid(ctx, s); err != nil {
			return nil, err
		}
		if err := c.setState(ctx, s, StateUnlocked); err != nil {
			return nil, err
		}
	}
	return c.view(s), nil
}

func (c *Controller) markPaid(ctx context.Context, s *session) error {
	if err := c.tab.SetBool(ctx, c.cfg.PaidFlagKey, true); err != nil {
		return fmt.Errorf("save paid flag: %w", err)
	}
	if err := c.tab.SetBool(ctx, c.cfg.servicePaidKey(), true); err != nil {
		return fmt.Errorf("save service paid flag: %w", err)
	}
	s.paid = true
	s.blockedID = ""
	if err := c.tab.Clear(ctx, c.cfg.blockedKey()); err != nil {
		return fmt.Errorf("clear blocked message: %w", err)
	}
	slog.Info("Service unlocked", "widget", c.cfg.Widget, "service_id", c.cfg.ServiceID, "visitor_id", c.visitorID)
	return nil
}

// AwardCredits adds free consultations.
func (c *Controller) AwardCredits(ctx context.Context, n int) (*View, error) {
	if n <= 0 {
		return nil, ErrInvalidCredits
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := c.awardCredits(ctx, s, n); err != nil {
		return nil, err
	}
	return c.view(s), nil
}

func (c *Controller) awardCredits(ctx context.Context, s *session, n int) error {
	s.credits += n
	if err := c.tab.SetInt(ctx, c.cfg.CreditsKey, s.credits); err != nil {
		return fmt.Errorf("save credits: %w", err)
	}
	if !s.paid && s.blockedID != "" {
		s.blockedID = ""
		if err := c.tab.Clear(ctx, c.cfg.blockedKey()); err != nil {
			return fmt.Errorf("clear blocked message: %w", err)
		}
	}
	if s.state == StateBlocked {
		return c.setState(ctx, s, StateFree)
	}
	return nil
}

// ApplyPrize applies a prize effect: "1" grants three free consultations,
// "2" unlocks the service. Other prizes change nothing.
func (c *Controller) ApplyPrize(ctx context.Context, prizeID string) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(ctx, true)
	if err != nil {
		return nil, err
	}

	var added []domain.ChatMessage
	switch prizeID {
	case "1":
		if err := c.awardCredits(ctx, s, 3); err != nil {
			return nil, err
		}
	case "2":
		if !s.paid {
			if err := c.markPaid(ctx, s); err != nil {
				return nil, err
			}
		}
		msg := c.personaMessage(premiumUnlockText)
		s.messages = append(s.messages, msg)
		added = append(added, msg)
		if err := c.saveConversation(ctx, s); err != nil {
			return nil, err
		}
		if err := c.setState(ctx, s, StateUnlocked); err != nil {
			return nil, err
		}
	default:
		slog.Debug("Prize without effect", "widget", c.cfg.Widget, "prize_id", prizeID)
	}

	v := c.view(s)
	v.Added = added
	return v, nil
}

// Reset starts a new consultation. Paid flags and credits survive.
func (c *Controller) Reset(ctx context.Context) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.load(ctx, false)
	if err != nil {
		return nil, err
	}
	keys := append(c.cfg.conversationKeys(), c.cfg.pendingKey(), c.cfg.stateKey())
	if err := c.tab.Clear(ctx, keys...); err != nil {
		return nil, fmt.Errorf("clear conversation: %w", err)
	}

	s.messages = []domain.ChatMessage{c.welcomeMessage()}
	s.count = 0
	s.blockedID = ""
	s.pending = ""
	if err := c.saveConversation(ctx, s); err != nil {
		return nil, err
	}
	next := StateFree
	if s.paid {
		next = StateUnlocked
	}
	if err := c.setState(ctx, s, next); err != nil {
		return nil, err
	}
	return c.view(s), nil
}

// load reads the tab state. Corrupt values are discarded; with init set, a
// missing conversation is started with a welcome message.
func (c *Controller) load(ctx context.Context, init bool) (*session, error) {
	s := &session{}

	var corrupt bool
	hasMessages, err := c.tab.JSON(ctx, c.cfg.messagesKey(), &s.messages)
	if errors.Is(err, sessionstore.ErrCorrupt) {
		corrupt = true
	} else if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	s.count, _, err = c.tab.Int(ctx, c.cfg.countKey())
	if errors.Is(err, sessionstore.ErrCorrupt) {
		corrupt = true
	} else if err != nil {
		return nil, fmt.Errorf("load message count: %w", err)
	}
	if s.count < 0 {
		corrupt = true
	}
	if corrupt {
		slog.Warn("Discarding corrupt conversation", "widget", c.cfg.Widget, "visitor_id", c.visitorID)
		if err := c.tab.Clear(ctx, c.cfg.conversationKeys()...); err != nil {
			return nil, fmt.Errorf("clear corrupt conversation: %w", err)
		}
		hasMessages = false
		s.messages = nil
		s.count = 0
	}

	if s.blockedID, _, err = c.tab.String(ctx, c.cfg.blockedKey()); err != nil {
		return nil, fmt.Errorf("load blocked message: %w", err)
	}
	if s.pending, _, err = c.tab.String(ctx, c.cfg.pendingKey()); err != nil {
		return nil, fmt.Errorf("load pending message: %w", err)
	}

	if s.paid, err = c.loadPaid(ctx); err != nil {
		return nil, err
	}

	s.credits, _, err = c.tab.Int(ctx, c.cfg.CreditsKey)
	if errors.Is(err, sessionstore.ErrCorrupt) || s.credits < 0 {
		s.credits = 0
		if err := c.tab.Clear(ctx, c.cfg.CreditsKey); err != nil {
			return nil, fmt.Errorf("clear corrupt credits: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load credits: %w", err)
	}

	var buyer domain.Buyer
	hasBuyer, err := c.tab.JSON(ctx, UserDataKey, &buyer)
	if errors.Is(err, sessionstore.ErrCorrupt) {
		if err := c.tab.Clear(ctx, UserDataKey); err != nil {
			return nil, fmt.Errorf("clear corrupt user data: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load user data: %w", err)
	} else if hasBuyer {
		s.buyer = &buyer
	}

	raw, _, err := c.tab.String(ctx, c.cfg.stateKey())
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	state, ok := parseState(raw)
	if !ok {
		state = StateFree
	}
	s.state = state

	if s.paid {
		if s.blockedID != "" {
			s.blockedID = ""
			if err := c.tab.Clear(ctx, c.cfg.blockedKey()); err != nil {
				return nil, fmt.Errorf("clear blocked message: %w", err)
			}
		}
		if s.state != StateReturnedApproved {
			s.state = StateUnlocked
		}
	}

	if init && !hasMessages {
		s.messages = []domain.ChatMessage{c.welcomeMessage()}
		s.count = 0
		if err := c.saveConversation(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (c *Controller) loadPaid(ctx context.Context) (bool, error) {
	for _, key := range []string{c.cfg.PaidFlagKey, c.cfg.servicePaidKey()} {
		paid, err := c.tab.Bool(ctx, key)
		if errors.Is(err, sessionstore.ErrCorrupt) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("load paid flag: %w", err)
		}
		if paid {
			return true, nil
		}
	}
	return false, nil
}

func (c *Controller) saveConversation(ctx context.Context, s *session) error {
	if err := c.tab.SetJSON(ctx, c.cfg.messagesKey(), s.messages); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	if err := c.tab.SetInt(ctx, c.cfg.countKey(), s.count); err != nil {
		return fmt.Errorf("save message count: %w", err)
	}
	if s.blockedID != "" {
		if err := c.tab.SetString(ctx, c.cfg.blockedKey(), s.blockedID); err != nil {
			return fmt.Errorf("save blocked message: %w", err)
		}
	}
	return nil
}

func (c *Controller) setState(ctx context.Context, s *session, st State) error {
	s.state = st
	if err := c.tab.SetString(ctx, c.cfg.stateKey(), string(st)); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (c *Controller) snapshot(s *session) *domain.PaymentSession {
	return &domain.PaymentSession{
		ServiceID:        c.cfg.ServiceID,
		Widget:           c.cfg.Widget,
		Amount:           c.cfg.Amount,
		Buyer:            s.buyer,
		Conversation:     domain.CloneMessages(s.messages),
		MessageCount:     s.count,
		BlockedMessageID: s.blockedID,
		PendingMessage:   s.pending,
		SavedAt:          c.m.now(),
	}
}

func (c *Controller) personaMessage(text string) domain.ChatMessage {
	return domain.ChatMessage{ID: c.m.newID(), Role: c.cfg.Persona, Text: text, Timestamp: c.m.now()}
}

func (c *Controller) welcomeMessage() domain.ChatMessage {
	text := fallbackWelcomeText
	if n := len(c.cfg.Welcome); n > 0 {
		text = c.cfg.Welcome[c.m.pick(n)]
	}
	return c.personaMessage(text)
}

func (c *Controller) view(s *session) *View {
	return &View{
		Widget:           c.cfg.Widget,
		ServiceID:        c.cfg.ServiceID,
		State:            s.state,
		Messages:         domain.CloneMessages(s.messages),
		MessageCount:     s.count,
		Threshold:        c.cfg.Threshold,
		Paid:             s.paid,
		FreeCredits:      s.credits,
		BlockedMessageID: s.blockedID,
		PendingMessage:   s.pending,
		RequiresPayment:  !s.paid && (s.state == StateBlocked || s.blockedID != ""),
		Buyer:            s.buyer,
	}
}
