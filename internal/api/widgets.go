package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecosoraculo/oraculo/internal/domain"
	"github.com/ecosoraculo/oraculo/internal/identity"
	"github.com/ecosoraculo/oraculo/internal/order"
	"github.com/ecosoraculo/oraculo/internal/paywall"
)

// LeadSaver stores contact data left at checkout.
type LeadSaver interface {
	SaveLead(ctx context.Context, l *domain.Lead) error
}

// WidgetHandler exposes the paywalled chat widgets.
type WidgetHandler struct {
	mgr     *paywall.Manager
	leads   LeadSaver
	stream  http.Handler
	rewards bool
}

// NewWidgetHandler creates the widget handler. leads and stream may be nil.
func NewWidgetHandler(mgr *paywall.Manager, leads LeadSaver, stream http.Handler) *WidgetHandler {
	return &WidgetHandler{mgr: mgr, leads: leads, stream: stream}
}

// EnableRewards mounts the credit and prize routes. They let a caller skip
// the paywall, so they stay unmounted unless rewards are configured.
func (h *WidgetHandler) EnableRewards() *WidgetHandler {
	h.rewards = true
	return h
}

// RegisterRoutes registers widget routes.
func (h *WidgetHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/widgets", func(r chi.Router) {
		r.Get("/", h.List)
		r.Route("/{widget}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/messages", h.Send)
			r.Post("/checkout", h.Checkout)
			r.Post("/return", h.Return)
			r.Post("/reset", h.Reset)
			if h.rewards {
				r.Post("/credits", h.AwardCredits)
				r.Post("/prize", h.ApplyPrize)
			}
			if h.stream != nil {
				r.Get("/ws", h.stream.ServeHTTP)
			}
		})
	})
}

type widgetInfo struct {
	Widget      string  `json:"widget"`
	ServiceID   string  `json:"serviceId"`
	Threshold   int     `json:"threshold"`
	Persona     string  `json:"persona"`
	DisplayName string  `json:"displayName"`
	ServiceName string  `json:"serviceName"`
	Amount      float64 `json:"amount"`
}

// List returns every configured widget.
func (h *WidgetHandler) List(w http.ResponseWriter, _ *http.Request) {
	cfgs := h.mgr.Configs()
	out := make([]widgetInfo, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, widgetInfo{
			Widget:      c.Widget,
			ServiceID:   c.ServiceID,
			Threshold:   c.Threshold,
			Persona:     string(c.Persona),
			DisplayName: c.DisplayName,
			ServiceName: c.ServiceName,
			Amount:      c.Amount,
		})
	}
	JSON(w, http.StatusOK, map[string]interface{}{"widgets": out})
}

// controller resolves the widget tab of the request, writing 404 when unknown.
func (h *WidgetHandler) controller(w http.ResponseWriter, r *http.Request) (*paywall.Controller, bool) {
	ctx := r.Context()
	ctrl, err := h.mgr.Controller(chi.URLParam(r, "widget"), identity.VisitorIDFromContext(ctx), identity.TabIDFromContext(ctx))
	if err != nil {
		writePaywallError(w, err)
		return nil, false
	}
	return ctrl, true
}

// Get loads the conversation, starting one when the tab has none.
func (h *WidgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	v, err := ctrl.Load(r.Context())
	respond(w, v, err)
}

type sendRequest struct {
	Message string `json:"message"`
}

// Send posts a visitor message.
func (h *WidgetHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if err := decodeJSON(r, &req, false); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, err := ctrl.Send(r.Context(), req.Message)
	respond(w, v, err)
}

// Checkout validates buyer data and creates the order.
func (h *WidgetHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var buyer domain.Buyer
	if err := decodeJSON(r, &buyer, false); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := ctrl.Checkout(r.Context(), buyer)
	if err != nil {
		writePaywallError(w, err)
		return
	}
	h.saveLead(r, ctrl.Config().ServiceID, res.View.Buyer)
	JSON(w, http.StatusOK, res)
}

func (h *WidgetHandler) saveLead(r *http.Request, serviceID string, buyer *domain.Buyer) {
	if h.leads == nil || buyer == nil {
		return
	}
	lead := &domain.Lead{
		Email:     buyer.Email,
		FirstName: buyer.FirstName,
		LastName:  buyer.LastName,
		ServiceID: serviceID,
		VisitorID: identity.VisitorIDFromContext(r.Context()),
		CreatedAt: time.Now(),
	}
	if err := h.leads.SaveLead(r.Context(), lead); err != nil {
		slog.Warn("Failed to save lead", "error", err, "service_id", serviceID)
	}
}

// Return applies the payment outcome in the query string.
func (h *WidgetHandler) Return(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	res, err := ctrl.Return(r.Context(), r.URL.Query())
	if err != nil {
		writePaywallError(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Reset starts a new consultation.
func (h *WidgetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	v, err := ctrl.Reset(r.Context())
	respond(w, v, err)
}

type creditsRequest struct {
	Amount int `json:"amount"`
}

// AwardCredits adds free consultations.
func (h *WidgetHandler) AwardCredits(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req creditsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, err := ctrl.AwardCredits(r.Context(), req.Amount)
	respond(w, v, err)
}

type prizeRequest struct {
	PrizeID string `json:"prizeId"`
}

// ApplyPrize applies a prize wheel result.
func (h *WidgetHandler) ApplyPrize(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req prizeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, err := ctrl.ApplyPrize(r.Context(), req.PrizeID)
	respond(w, v, err)
}

func respond(w http.ResponseWriter, v *paywall.View, err error) {
	if err != nil {
		writePaywallError(w, err)
		return
	}
	JSON(w, http.StatusOK, v)
}

// writePaywallError maps controller errors onto status codes.
func writePaywallError(w http.ResponseWriter, err error) {
	var invalid *order.InvalidServiceError
	switch {
	case errors.Is(err, paywall.ErrUnknownWidget):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, paywall.ErrEmptyMessage),
		errors.Is(err, paywall.ErrInvalidEmail),
		errors.Is(err, paywall.ErrInvalidCredits),
		errors.Is(err, paywall.ErrServiceMismatch):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalid):
		Error(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, paywall.ErrAlreadyPaid):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrOrderFailed):
		slog.Error("Checkout failed upstream", "error", err)
		Error(w, http.StatusBadGateway, "Error creating order")
	default:
		slog.Error("Widget request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
