package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecosoraculo/oraculo/internal/catalog"
	"github.com/ecosoraculo/oraculo/internal/domain"
	"github.com/ecosoraculo/oraculo/internal/identity"
	"github.com/ecosoraculo/oraculo/internal/mercadopago"
	"github.com/ecosoraculo/oraculo/internal/order"
	"github.com/ecosoraculo/oraculo/internal/paywall"
	"github.com/ecosoraculo/oraculo/internal/store"
)

// OrderService creates checkout orders and lists the catalog.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.Request) (*order.Result, error)
	Services() []catalog.Service
}

// PaymentLookup fetches a payment from the provider.
type PaymentLookup interface {
	GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error)
}

// NotificationStore persists webhook deliveries and their effect on orders.
type NotificationStore interface {
	RecordNotification(ctx context.Context, n *domain.Notification) error
	UpdateOrderStatus(ctx context.Context, ref, status, paymentID string) error
}

// MercadoPagoHandler serves the checkout endpoints.
type MercadoPagoHandler struct {
	orders        OrderService
	notifications NotificationStore
	payments      PaymentLookup
	widgets       *paywall.Manager
}

// NewMercadoPagoHandler creates the checkout handler. payments and widgets may be nil.
func NewMercadoPagoHandler(orders OrderService, notifications NotificationStore, payments PaymentLookup, widgets *paywall.Manager) *MercadoPagoHandler {
	return &MercadoPagoHandler{
		orders:        orders,
		notifications: notifications,
		payments:      payments,
		widgets:       widgets,
	}
}

// RegisterRoutes registers the visitor-facing checkout routes.
func (h *MercadoPagoHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/mercadopago/create-order", h.CreateOrder)
	r.Get("/api/mercadopago/services", h.Services)
	if h.widgets != nil {
		r.Post("/api/mercadopago/return", h.Return)
	}
}

// RegisterWebhook registers the provider notification route.
func (h *MercadoPagoHandler) RegisterWebhook(r chi.Router) {
	r.Post("/api/mercadopago/webhook", h.Webhook)
}

type createOrderResponse struct {
	ID                string            `json:"id"`
	InitPoint         string            `json:"init_point"`
	SandboxInitPoint  string            `json:"sandbox_init_point"`
	ExternalReference string            `json:"external_reference"`
	ServiceInfo       order.ServiceInfo `json:"serviceInfo"`
}

// CreateOrder creates a checkout preference for a catalog service.
func (h *MercadoPagoHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.Request
	if err := decodeJSON(r, &req, true); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.VisitorID = identity.VisitorIDFromContext(r.Context())

	res, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		var invalid *order.InvalidServiceError
		if errors.As(err, &invalid) {
			JSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":         invalid.Error(),
				"validServices": invalid.Valid,
			})
			return
		}
		slog.Error("Error creating order", "error", err, "service_id", req.ServiceID)
		Error(w, http.StatusInternalServerError, "Error creating order")
		return
	}

	JSON(w, http.StatusOK, createOrderResponse{
		ID:                res.PreferenceID,
		InitPoint:         res.InitPoint,
		SandboxInitPoint:  res.SandboxInitPoint,
		ExternalReference: res.ExternalReference,
		ServiceInfo:       res.Service,
	})
}

// Services lists the catalog.
func (h *MercadoPagoHandler) Services(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{"services": h.orders.Services()})
}

// Return applies a checkout return for the widget selling the "service" parameter.
func (h *MercadoPagoHandler) Return(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	widget, ok := h.widgets.WidgetForService(q.Get("service"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown service")
		return
	}
	ctrl, err := h.widgets.Controller(widget, identity.VisitorIDFromContext(r.Context()), identity.TabIDFromContext(r.Context()))
	if err != nil {
		writePaywallError(w, err)
		return
	}
	res, err := ctrl.Return(r.Context(), q)
	if err != nil {
		writePaywallError(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

type webhookPayload struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// Webhook records a provider notification and, for payments, updates the order.
// Notifications are always acknowledged so the provider stops retrying.
func (h *MercadoPagoHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		slog.Error("Error handling webhook", "error", err)
		http.Error(w, "Error handling webhook", http.StatusInternalServerError)
		return
	}

	var payload webhookPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			slog.Warn("Webhook body is not JSON", "error", err)
		}
	}
	q := r.URL.Query()
	if payload.Type == "" {
		payload.Type = firstNonEmpty(q.Get("type"), q.Get("topic"))
	}
	resourceID := payload.Data.ID.String()
	if resourceID == "" {
		resourceID = firstNonEmpty(q.Get("data.id"), q.Get("id"))
	}

	slog.Info("Webhook received", "type", payload.Type, "action", payload.Action, "resource_id", resourceID)

	n := &domain.Notification{
		Type:       payload.Type,
		Action:     payload.Action,
		ResourceID: resourceID,
		Payload:    string(body),
		ReceivedAt: time.Now(),
	}
	if payload.Type == "payment" && resourceID != "" {
		h.applyPayment(r.Context(), n)
	}
	if err := h.notifications.RecordNotification(r.Context(), n); err != nil {
		slog.Error("Failed to record notification", "error", err, "resource_id", resourceID)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Webhook received"))
}

// applyPayment looks the payment up and moves its order to the matching status.
func (h *MercadoPagoHandler) applyPayment(ctx context.Context, n *domain.Notification) {
	if h.payments == nil {
		slog.Debug("Payment lookup disabled", "payment_id", n.ResourceID)
		return
	}
	p, err := h.payments.GetPayment(ctx, n.ResourceID)
	if err != nil {
		slog.Warn("Failed to fetch payment", "payment_id", n.ResourceID, "error", err)
		return
	}
	n.ExternalReference = p.ExternalReference
	n.Status = p.Status

	status := domain.OrderStatusFor(paymentOutcome(p.Status))
	if status == "" || p.ExternalReference == "" {
		return
	}
	err = h.notifications.UpdateOrderStatus(ctx, p.ExternalReference, status, n.ResourceID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		slog.Warn("Payment for unknown order", "external_reference", p.ExternalReference, "payment_id", n.ResourceID)
	case err != nil:
		slog.Error("Failed to update order status", "external_reference", p.ExternalReference, "error", err)
	default:
		slog.Info("Order status updated", "external_reference", p.ExternalReference, "status", status)
	}
}

// paymentOutcome maps a provider payment status onto a checkout outcome.
func paymentOutcome(status string) domain.PaymentStatus {
	switch status {
	case "approved":
		return domain.PaymentApproved
	case "pending", "in_process", "in_mediation", "authorized":
		return domain.PaymentPending
	case "rejected", "cancelled", "refunded", "charged_back":
		return domain.PaymentRejected
	default:
		return domain.PaymentNone
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
