// Package mercadopago is a small client for the MercadoPago checkout REST API.
package mercadopago

// Item is a line of a checkout preference.
type Item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	CategoryID  string  `json:"category_id,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id,omitempty"`
}

// Payer identifies the buyer.
type Payer struct {
	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`
	Email   string `json:"email,omitempty"`
}

// BackURLs are the browser return targets after checkout.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PaymentMethodRef references a payment method by id.
type PaymentMethodRef struct {
	ID string `json:"id"`
}

// PaymentMethods restricts what the checkout offers.
type PaymentMethods struct {
	ExcludedPaymentMethods []PaymentMethodRef `json:"excluded_payment_methods,omitempty"`
	Installments           int                `json:"installments,omitempty"`
}

// PreferenceRequest is the body of POST /checkout/preferences.
type PreferenceRequest struct {
	Items             []Item          `json:"items"`
	Payer             *Payer          `json:"payer,omitempty"`
	BackURLs          BackURLs        `json:"back_urls"`
	NotificationURL   string          `json:"notification_url,omitempty"`
	ExternalReference string          `json:"external_reference"`
	PaymentMethods    *PaymentMethods `json:"payment_methods,omitempty"`
	AutoReturn        string          `json:"auto_return,omitempty"`
}

// Preference is the created checkout preference.
type Preference struct {
	ID                string `json:"id"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point"`
	ExternalReference string `json:"external_reference"`
	DateCreated       string `json:"date_created,omitempty"`
}

// Payment is the subset of GET /v1/payments/{id} the service reads.
type Payment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
}
