package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.mercadopago.com"

var errMissingToken = errors.New("mercadopago access token is empty")

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: status %d: %s", e.StatusCode, e.Message)
}

// Config holds client settings.
type Config struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// Client talks to the MercadoPago REST API.
type Client struct {
	http *resty.Client
}

// NewClient creates a client. The access token is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, errMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient}, nil
}

// CreatePreference creates a hosted checkout preference.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Idempotency-Key", uuid.NewString()).
		SetBody(req).
		Post("/checkout/preferences")
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}

	var pref Preference
	if err := json.Unmarshal(resp.Body(), &pref); err != nil {
		return nil, fmt.Errorf("decode preference: %w", err)
	}
	return &pref, nil
}

// GetPayment fetches a payment by id.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, fmt.Errorf("invalid payment id %q", id)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/v1/payments/{id}")
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}

	var p Payment
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	return &p, nil
}

func apiError(resp *resty.Response) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := resp.Status()
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}
