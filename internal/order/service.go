// Package order creates hosted-checkout orders for catalog services.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ecosoraculo/oraculo/internal/catalog"
	"github.com/ecosoraculo/oraculo/internal/domain"
	"github.com/ecosoraculo/oraculo/internal/mercadopago"
)

// Defaults applied when the request leaves buyer fields empty.
const (
	DefaultServiceID  = "1"
	DefaultFirstName  = "Usuario"
	DefaultLastName   = "Ecos"
	DefaultEmail      = "usuario@example.com"
	DefaultCategoryID = "services"
)

// ErrOrderFailed wraps any failure of the upstream payment API.
var ErrOrderFailed = errors.New("error creating order")

// InvalidServiceError is returned for a service id missing from the catalog.
type InvalidServiceError struct {
	ServiceID string
	Valid     []string
}

func (e *InvalidServiceError) Error() string {
	return "Servicio no válido"
}

// Gateway creates checkout preferences.
type Gateway interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

// Recorder persists created orders.
type Recorder interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
}

// Request is the input of CreateOrder. Zero values fall back to catalog and buyer defaults.
type Request struct {
	ServiceID   string  `json:"serviceId"`
	Amount      float64 `json:"amount"`
	ServiceName string  `json:"serviceName"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	CategoryID  string  `json:"categoryId"`
	Description string  `json:"description"`
	VisitorID   string  `json:"-"`
}

// ServiceInfo echoes the resolved service back to the caller.
type ServiceInfo struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// Result describes a created checkout.
type Result struct {
	PreferenceID      string
	CheckoutURL       string
	InitPoint         string
	SandboxInitPoint  string
	ExternalReference string
	Amount            float64
	Service           ServiceInfo
}

// Config holds order settings.
type Config struct {
	// BaseURL is the public front-end origin used for back URLs.
	BaseURL         string
	NotificationURL string
	Sandbox         bool
}

// Service builds preferences from the catalog and hands them to the gateway.
type Service struct {
	catalog  *catalog.Catalog
	gateway  Gateway
	recorder Recorder
	cfg      Config
	now      func() time.Time

	refMu     sync.Mutex
	lastMilli int64
}

// NewService creates an order service. recorder may be nil.
func NewService(cat *catalog.Catalog, gateway Gateway, recorder Recorder, cfg Config) *Service {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		catalog:  cat,
		gateway:  gateway,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Services lists the catalog.
func (s *Service) Services() []catalog.Service {
	return s.catalog.Services()
}

// CreateOrder resolves the service, creates a checkout preference and records the order.
func (s *Service) CreateOrder(ctx context.Context, req Request) (*Result, error) {
	serviceID := req.ServiceID
	if serviceID == "" {
		serviceID = DefaultServiceID
	}
	svc, ok := s.catalog.Lookup(serviceID)
	if !ok {
		return nil, &InvalidServiceError{ServiceID: serviceID, Valid: s.catalog.IDs()}
	}

	amount := req.Amount
	if amount <= 0 {
		amount = svc.Price
	}
	name := firstNonEmpty(req.ServiceName, svc.Name)
	description := firstNonEmpty(req.Description, svc.Description)
	firstName := firstNonEmpty(req.FirstName, DefaultFirstName)
	lastName := firstNonEmpty(req.LastName, DefaultLastName)
	email := firstNonEmpty(req.Email, DefaultEmail)
	category := firstNonEmpty(req.CategoryID, DefaultCategoryID)

	ref := s.externalReference(serviceID)

	pref := mercadopago.PreferenceRequest{
		Items: []mercadopago.Item{{
			ID:          serviceID,
			Title:       name,
			Description: description,
			CategoryID:  category,
			Quantity:    1,
			UnitPrice:   amount,
		}},
		Payer: &mercadopago.Payer{
			Name:    firstName,
			Surname: lastName,
			Email:   email,
		},
		BackURLs:          s.BackURLs(svc),
		NotificationURL:   s.cfg.NotificationURL,
		ExternalReference: ref,
		PaymentMethods: &mercadopago.PaymentMethods{
			ExcludedPaymentMethods: []mercadopago.PaymentMethodRef{{ID: "efecty"}, {ID: "pse"}},
			Installments:           3,
		},
		AutoReturn: "approved",
	}

	slog.Info("Creating checkout order",
		"service_id", serviceID,
		"path", svc.Path,
		"amount", amount,
		"external_reference", ref,
	)

	created, err := s.gateway.CreatePreference(ctx, pref)
	if err != nil {
		slog.Error("Checkout preference failed", "service_id", serviceID, "external_reference", ref, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrOrderFailed, err)
	}

	result := &Result{
		PreferenceID:      created.ID,
		InitPoint:         created.InitPoint,
		SandboxInitPoint:  created.SandboxInitPoint,
		ExternalReference: ref,
		Amount:            amount,
		Service:           ServiceInfo{ID: serviceID, Path: svc.Path, Name: name},
	}
	if created.ExternalReference != "" {
		result.ExternalReference = created.ExternalReference
	}
	result.CheckoutURL = created.InitPoint
	if s.cfg.Sandbox && created.SandboxInitPoint != "" {
		result.CheckoutURL = created.SandboxInitPoint
	}

	s.record(ctx, req.VisitorID, email, result)

	slog.Info("Checkout order created", "preference_id", created.ID, "external_reference", result.ExternalReference)
	return result, nil
}

// BackURLs returns the browser return targets for a service.
func (s *Service) BackURLs(svc catalog.Service) mercadopago.BackURLs {
	return mercadopago.BackURLs{
		Success: fmt.Sprintf("%s/%s?status=success&service=%s", s.cfg.BaseURL, svc.Path, svc.ID),
		Failure: fmt.Sprintf("%s/welcome?status=failure&service=%s", s.cfg.BaseURL, svc.ID),
		Pending: fmt.Sprintf("%s/welcome?status=pending&service=%s", s.cfg.BaseURL, svc.ID),
	}
}

// record persists the order. Failures are logged, the checkout stays valid.
func (s *Service) record(ctx context.Context, visitorID, email string, r *Result) {
	if s.recorder == nil {
		return
	}
	now := s.now()
	o := &domain.Order{
		ExternalReference: r.ExternalReference,
		PreferenceID:      r.PreferenceID,
		ServiceID:         r.Service.ID,
		VisitorID:         visitorID,
		Amount:            r.Amount,
		Email:             email,
		Status:            domain.OrderCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.recorder.CreateOrder(ctx, o); err != nil {
		slog.Warn("Failed to record order", "external_reference", r.ExternalReference, "error", err)
	}
}

// externalReference returns ECOS-<id>-<unix millis>, bumping the millis when
// two orders land in the same millisecond.
func (s *Service) externalReference(serviceID string) string {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	ms := s.now().UnixMilli()
	if ms <= s.lastMilli {
		ms = s.lastMilli + 1
	}
	s.lastMilli = ms
	return "ECOS-" + serviceID + "-" + strconv.FormatInt(ms, 10)
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
