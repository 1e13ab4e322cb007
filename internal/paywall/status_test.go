package paywall

import (
	"net/url"
	"testing"

	"github.com/ecosoraculo/oraculo/internal/domain"
)

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		query string
		want  domain.PaymentStatus
	}{
		{"collection_status=approved", domain.PaymentApproved},
		{"status=approved", domain.PaymentApproved},
		{"status=success&service=2", domain.PaymentApproved},
		{"collection_status=pending", domain.PaymentPending},
		{"collection_status=in_process", domain.PaymentPending},
		{"status=pending", domain.PaymentPending},
		{"collection_status=rejected", domain.PaymentRejected},
		{"status=failure", domain.PaymentRejected},
		{"status=rejected", domain.PaymentRejected},
		{"status=null", domain.PaymentNone},
		{"", domain.PaymentNone},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		if got := ResolveStatus(q).Status; got != tt.want {
			t.Errorf("ResolveStatus(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestResolveStatusIdentifiers(t *testing.T) {
	q, _ := url.ParseQuery("collection_id=77&external_reference=ECOS-2-1&service=2&status=approved")
	info := ResolveStatus(q)
	if info.PaymentID != "77" || info.ExternalReference != "ECOS-2-1" || info.ServiceID != "2" {
		t.Errorf("ResolveStatus() = %+v", info)
	}
}

func TestStripPaymentParams(t *testing.T) {
	q, _ := url.ParseQuery("status=approved&collection_status=approved&payment_id=1&collection_id=1" +
		"&external_reference=r&payment_type=credit_card&merchant_order_id=2&preference_id=p&site_id=MCO" +
		"&processing_mode=aggregator&merchant_account_id=null&service=2&lang=es")
	got := StripPaymentParams(q)
	if got.Encode() != "lang=es" {
		t.Errorf("StripPaymentParams() = %q, want lang=es", got.Encode())
	}
	if q.Get("status") != "approved" {
		t.Error("StripPaymentParams() mutated its input")
	}
	if !HasPaymentParams(q) || HasPaymentParams(got) {
		t.Error("HasPaymentParams() mismatch")
	}
}
