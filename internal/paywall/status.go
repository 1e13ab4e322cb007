package paywall

import (
	"net/url"

	"github.com/ecosoraculo/oraculo/internal/domain"
)

// paymentParams are removed from the return URL once read.
var paymentParams = []string{
	"status",
	"collection_status",
	"payment_id",
	"collection_id",
	"external_reference",
	"payment_type",
	"merchant_order_id",
	"preference_id",
	"site_id",
	"processing_mode",
	"merchant_account_id",
	"service",
}

// ReturnInfo is the payment outcome carried by a checkout return URL.
type ReturnInfo struct {
	Status            domain.PaymentStatus
	CollectionStatus  string
	PaymentID         string
	ExternalReference string
	ServiceID         string
}

// HasPaymentParams reports whether q looks like a checkout return.
func HasPaymentParams(q url.Values) bool {
	return q.Has("collection_status") || q.Has("payment_id") || q.Has("status")
}

// ResolveStatus reads the payment outcome from return query parameters.
// collection_status is checked alongside status because the provider sends either.
func ResolveStatus(q url.Values) ReturnInfo {
	status := q.Get("status")
	collection := q.Get("collection_status")

	info := ReturnInfo{
		CollectionStatus:  collection,
		PaymentID:         q.Get("payment_id"),
		ExternalReference: q.Get("external_reference"),
		ServiceID:         q.Get("service"),
	}
	if info.PaymentID == "" {
		info.PaymentID = q.Get("collection_id")
	}

	switch {
	case collection == "approved" || status == "approved" || status == "success":
		info.Status = domain.PaymentApproved
	case collection == "pending" || collection == "in_process" || status == "pending":
		info.Status = domain.PaymentPending
	case collection == "rejected" || status == "rejected" || status == "failure":
		info.Status = domain.PaymentRejected
	default:
		info.Status = domain.PaymentNone
	}
	return info
}

// StripPaymentParams returns a copy of q without payment parameters.
func StripPaymentParams(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	for _, p := range paymentParams {
		out.Del(p)
	}
	return out
}
