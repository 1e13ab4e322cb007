package api

import (
	"net/http"
	"testing"

	"github.com/ecosoraculo/oraculo/internal/order"
	"github.com/ecosoraculo/oraculo/internal/paywall"
)

type viewBody struct {
	State           string `json:"state"`
	RequiresPayment bool   `json:"requiresPayment"`
	Paid            bool   `json:"paid"`
	Count           int    `json:"userMessageCount"`
	Credits         int    `json:"freeConsultations"`
	Messages        []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	} `json:"messages"`
}

func TestWidgetPaywallFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/widgets/birthchart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load: %d %s", rec.Code, rec.Body.String())
	}
	var v viewBody
	decode(t, rec, &v)
	if len(v.Messages) != 1 || v.State != string(paywall.StateFree) {
		t.Fatalf("unexpected initial view %+v", v)
	}

	rec = ts.do(http.MethodPost, "/api/widgets/birthchart/messages", `{"message":"nací el 3 de mayo"}`)
	decode(t, rec, &v)
	if v.RequiresPayment || v.Count != 1 {
		t.Fatalf("first message: %+v", v)
	}
	if last := v.Messages[len(v.Messages)-1]; last.Text != "eco: nací el 3 de mayo" {
		t.Errorf("unexpected reply %+v", last)
	}

	rec = ts.do(http.MethodPost, "/api/widgets/birthchart/messages", `{"message":"¿y mi ascendente?"}`)
	decode(t, rec, &v)
	if !v.RequiresPayment || v.State != string(paywall.StateBlocked) {
		t.Fatalf("second message should be held: %+v", v)
	}

	rec = ts.do(http.MethodPost, "/api/widgets/birthchart/checkout", `{"email":"no-es-un-correo"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid email: expected 400, got %d", rec.Code)
	}

	rec = ts.do(http.MethodPost, "/api/widgets/birthchart/checkout", `{"email":"ana@example.com","firstName":"Ana"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body.String())
	}
	var checkout struct {
		CheckoutURL string `json:"checkoutUrl"`
	}
	decode(t, rec, &checkout)
	if checkout.CheckoutURL == "" {
		t.Error("missing checkout URL")
	}
	if len(ts.repo.leads) != 1 || ts.repo.leads[0].Email != "ana@example.com" || ts.repo.leads[0].LastName != order.DefaultLastName {
		t.Errorf("unexpected leads %+v", ts.repo.leads)
	}

	ts.repo.orders["ECOS-7-1700000000000"] = "created"
	rec = ts.do(http.MethodPost, "/api/widgets/birthchart/return?status=approved&service=7&payment_id=42&lang=es", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("return: %d %s", rec.Code, rec.Body.String())
	}
	var ret struct {
		Status     string   `json:"status"`
		CleanQuery string   `json:"cleanQuery"`
		Replaying  bool     `json:"replaying"`
		View       viewBody `json:"view"`
	}
	decode(t, rec, &ret)
	if ret.Status != "approved" || !ret.Replaying || !ret.View.Paid || ret.CleanQuery != "lang=es" {
		t.Errorf("unexpected return %+v", ret)
	}
	if ts.repo.orders["ECOS-7-1700000000000"] != "approved" {
		t.Errorf("order status not recorded: %v", ts.repo.orders)
	}

	rec = ts.do(http.MethodPost, "/api/widgets/birthchart/checkout", `{"email":"ana@example.com"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("checkout after payment: expected 409, got %d", rec.Code)
	}
}

func TestWidgetErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name, method, target, body string
		want                       int
	}{
		{"unknown widget", http.MethodGet, "/api/widgets/tarot", "", http.StatusNotFound},
		{"empty message", http.MethodPost, "/api/widgets/love/messages", `{"message":"  "}`, http.StatusBadRequest},
		{"missing body", http.MethodPost, "/api/widgets/love/messages", "", http.StatusBadRequest},
		{"zero credits", http.MethodPost, "/api/widgets/love/credits", `{"amount":0}`, http.StatusBadRequest},
		{"other service", http.MethodPost, "/api/widgets/love/return?status=approved&service=2", "", http.StatusBadRequest},
		{"unknown return service", http.MethodPost, "/api/mercadopago/return?status=approved&service=1", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(tt.method, tt.target, tt.body); rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestWidgetCheckoutUpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.orders.err = order.ErrOrderFailed

	rec := ts.do(http.MethodPost, "/api/widgets/love/checkout", `{"email":"ana@example.com"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rec.Code)
	}
	if len(ts.repo.leads) != 0 {
		t.Error("lead saved for failed checkout")
	}
}

func TestWidgetCreditsAndPrize(t *testing.T) {
	ts := newTestServer(t)

	var v viewBody
	decode(t, ts.do(http.MethodPost, "/api/widgets/love/credits", `{"amount":2}`), &v)
	if v.Credits != 2 {
		t.Errorf("Expected 2 credits, got %d", v.Credits)
	}
	decode(t, ts.do(http.MethodPost, "/api/widgets/love/prize", `{"prizeId":"2"}`), &v)
	if !v.Paid || v.State != string(paywall.StateUnlocked) {
		t.Errorf("premium prize did not unlock: %+v", v)
	}
	decode(t, ts.do(http.MethodPost, "/api/widgets/love/reset", ""), &v)
	if !v.Paid || v.Credits != 2 || len(v.Messages) != 1 {
		t.Errorf("reset lost paid flag or credits: %+v", v)
	}
}

func TestWidgetRewardsDisabled(t *testing.T) {
	ts := newTestServerWith(t, false)

	for target, body := range map[string]string{
		"/api/widgets/love/credits": `{"amount":1000}`,
		"/api/widgets/love/prize":   `{"prizeId":"2"}`,
	} {
		if rec := ts.do(http.MethodPost, target, body); rec.Code != http.StatusNotFound {
			t.Errorf("POST %s: expected 404, got %d", target, rec.Code)
		}
	}

	var v viewBody
	decode(t, ts.do(http.MethodGet, "/api/widgets/love", ""), &v)
	if v.Paid || v.Credits != 0 {
		t.Errorf("rewards applied while disabled: %+v", v)
	}
}

func TestMercadoPagoReturnRoutesByService(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/mercadopago/return?status=pending&service=9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ret struct {
		Status string   `json:"status"`
		View   viewBody `json:"view"`
	}
	decode(t, rec, &ret)
	if ret.Status != "pending" || ret.View.State != string(paywall.StateReturnedPending) || ret.View.Paid {
		t.Errorf("unexpected return %+v", ret)
	}
}

func TestWidgetList(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Widgets []struct {
			Widget    string `json:"widget"`
			Threshold int    `json:"threshold"`
		} `json:"widgets"`
	}
	decode(t, ts.do(http.MethodGet, "/api/widgets", ""), &body)
	if len(body.Widgets) != 8 {
		t.Fatalf("Expected 8 widgets, got %d", len(body.Widgets))
	}
	if body.Widgets[0].Widget != "animal" || body.Widgets[0].Threshold != 3 {
		t.Errorf("unexpected first widget %+v", body.Widgets[0])
	}
}
