package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ecosoraculo/oraculo/internal/domain"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "oraculo.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteOrderLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	o := &domain.Order{
		ExternalReference: "ECOS-2-1700000000000",
		PreferenceID:      "pref-1",
		ServiceID:         "2",
		Amount:            12000,
		Email:             "ana@example.com",
		Status:            domain.OrderCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if o.ID == "" {
		t.Fatal("CreateOrder() did not assign an id")
	}

	dup := *o
	dup.ID = ""
	if err := s.CreateOrder(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("CreateOrder(duplicate) error = %v, want ErrDuplicate", err)
	}

	if err := s.UpdateOrderStatus(ctx, o.ExternalReference, domain.OrderApproved, "123"); err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}
	got, err := s.GetOrderByReference(ctx, o.ExternalReference)
	if err != nil {
		t.Fatalf("GetOrderByReference() error = %v", err)
	}
	if got == nil || got.Status != domain.OrderApproved || got.PaymentID != "123" {
		t.Fatalf("GetOrderByReference() = %+v", got)
	}

	if err := s.UpdateOrderStatus(ctx, "ECOS-missing", domain.OrderApproved, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateOrderStatus(missing) error = %v, want ErrNotFound", err)
	}

	missing, err := s.GetOrderByReference(ctx, "ECOS-missing")
	if err != nil || missing != nil {
		t.Errorf("GetOrderByReference(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestSQLiteExpireStaleOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-3 * time.Hour)

	for i, ref := range []string{"ECOS-1-old", "ECOS-1-paid", "ECOS-1-new"} {
		created := old
		if i == 2 {
			created = time.Now()
		}
		if err := s.CreateOrder(ctx, &domain.Order{
			ExternalReference: ref, ServiceID: "1", Amount: 15000,
			Status: domain.OrderCreated, CreatedAt: created, UpdatedAt: created,
		}); err != nil {
			t.Fatalf("CreateOrder(%s) error = %v", ref, err)
		}
	}
	if err := s.UpdateOrderStatus(ctx, "ECOS-1-paid", domain.OrderApproved, ""); err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}

	n, err := s.ExpireStaleOrders(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ExpireStaleOrders() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("ExpireStaleOrders() = %d, want 1", n)
	}
	got, _ := s.GetOrderByReference(ctx, "ECOS-1-old")
	if got.Status != domain.OrderExpired {
		t.Errorf("old order status = %q, want %q", got.Status, domain.OrderExpired)
	}
}

func TestSQLiteSessionValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetSessionValue(ctx, "tab:v:1", "dreamMessages"); err != nil || ok {
		t.Fatalf("GetSessionValue(empty) = ok %v, err %v", ok, err)
	}

	for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}} {
		if err := s.PutSessionValue(ctx, "tab:v:1", kv[0], kv[1]); err != nil {
			t.Fatalf("PutSessionValue(%s) error = %v", kv[0], err)
		}
	}
	if err := s.PutSessionValue(ctx, "tab:v:1", "a", "updated"); err != nil {
		t.Fatalf("PutSessionValue(overwrite) error = %v", err)
	}
	if v, ok, _ := s.GetSessionValue(ctx, "tab:v:1", "a"); !ok || v != "updated" {
		t.Errorf("GetSessionValue(a) = %q, %v; want updated", v, ok)
	}

	if err := s.DeleteSessionValues(ctx, "tab:v:1", "a", "b"); err != nil {
		t.Fatalf("DeleteSessionValues(keys) error = %v", err)
	}
	if _, ok, _ := s.GetSessionValue(ctx, "tab:v:1", "b"); ok {
		t.Error("key b survived delete")
	}
	if _, ok, _ := s.GetSessionValue(ctx, "tab:v:1", "c"); !ok {
		t.Error("key c removed by keyed delete")
	}

	if err := s.DeleteSessionValues(ctx, "tab:v:1"); err != nil {
		t.Fatalf("DeleteSessionValues(namespace) error = %v", err)
	}
	if _, ok, _ := s.GetSessionValue(ctx, "tab:v:1", "c"); ok {
		t.Error("namespace delete left key c")
	}
}

func TestSQLitePurgeSessionValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutSessionValue(ctx, "device:v", "k", "v"); err != nil {
		t.Fatalf("PutSessionValue() error = %v", err)
	}
	n, err := s.PurgeSessionValues(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PurgeSessionValues() error = %v", err)
	}
	if n != 0 {
		t.Errorf("PurgeSessionValues(1h) removed %d fresh rows", n)
	}
	n, err = s.PurgeSessionValues(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("PurgeSessionValues() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeSessionValues(-1m) = %d, want 1", n)
	}
}

func TestSQLiteVisitorsNotificationsLeads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	v := &domain.Visitor{ID: "oraculo_abc", Nickname: "visitante", LastSeenAt: now, CreatedAt: now, UpdatedAt: now}
	if err := s.UpsertVisitor(ctx, v); err != nil {
		t.Fatalf("UpsertVisitor() error = %v", err)
	}
	v.Nickname = "ana"
	if err := s.UpsertVisitor(ctx, v); err != nil {
		t.Fatalf("UpsertVisitor(update) error = %v", err)
	}
	got, err := s.GetVisitor(ctx, v.ID)
	if err != nil || got == nil || got.Nickname != "ana" {
		t.Fatalf("GetVisitor() = %+v, %v", got, err)
	}

	n := &domain.Notification{Type: "payment", ResourceID: "99", Payload: `{"type":"payment"}`, ReceivedAt: now}
	if err := s.RecordNotification(ctx, n); err != nil {
		t.Fatalf("RecordNotification() error = %v", err)
	}
	if n.ID == "" {
		t.Error("RecordNotification() did not assign an id")
	}

	if err := s.SaveLead(ctx, &domain.Lead{Email: "ana@example.com", ServiceID: "2", CreatedAt: now}); err != nil {
		t.Fatalf("SaveLead() error = %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: dialectPostgres}
	if got := pg.rebind("a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Errorf("rebind(postgres) = %q", got)
	}
	lite := &SQLStore{dialect: dialectSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("rebind(sqlite) = %q", got)
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New("oracle", ""); err == nil {
		t.Fatal("New(oracle) succeeded")
	}
}
