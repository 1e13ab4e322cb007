package paywall

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ecosoraculo/oraculo/internal/catalog"
	"github.com/ecosoraculo/oraculo/internal/chat"
	"github.com/ecosoraculo/oraculo/internal/events"
	"github.com/ecosoraculo/oraculo/internal/order"
	"github.com/ecosoraculo/oraculo/internal/sessionstore"
)

type fakeChat struct {
	mu    sync.Mutex
	calls []chat.Request
	err   error
}

func (f *fakeChat) Reply(_ context.Context, req chat.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return "respuesta " + strconv.Itoa(len(f.calls)), nil
}

type fakeOrders struct {
	reqs []order.Request
	err  error
}

func (f *fakeOrders) CreateOrder(_ context.Context, req order.Request) (*order.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	ref := "ECOS-" + req.ServiceID + "-1700000000000"
	return &order.Result{
		PreferenceID:      "pref-1",
		CheckoutURL:       "https://www.mercadopago.com/checkout?pref=1",
		ExternalReference: ref,
		Amount:            req.Amount,
	}, nil
}

type statusUpdate struct {
	ref, status, paymentID string
}

type fakeStatus struct {
	updates []statusUpdate
}

func (f *fakeStatus) UpdateOrderStatus(_ context.Context, ref, status, paymentID string) error {
	f.updates = append(f.updates, statusUpdate{ref, status, paymentID})
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeNotifier) Publish(_ context.Context, _, _ string, ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type scheduled struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

type manualScheduler struct {
	mu   sync.Mutex
	jobs []*scheduled
}

func (s *manualScheduler) Schedule(delay time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &scheduled{delay: delay, fn: fn}
	s.jobs = append(s.jobs, job)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		job.cancelled = true
	}
}

// runAll runs every job that has not been cancelled.
func (s *manualScheduler) runAll() int {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = nil
	s.mu.Unlock()

	ran := 0
	for _, j := range jobs {
		if j.cancelled {
			continue
		}
		j.fn()
		ran++
	}
	return ran
}

type harness struct {
	mgr       *Manager
	mem       *sessionstore.Memory
	chat      *fakeChat
	orders    *fakeOrders
	status    *fakeStatus
	notifier  *fakeNotifier
	scheduler *manualScheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mem:       sessionstore.NewMemory(),
		chat:      &fakeChat{},
		orders:    &fakeOrders{},
		status:    &fakeStatus{},
		notifier:  &fakeNotifier{},
		scheduler: &manualScheduler{},
	}
	h.mgr = NewManager(catalog.Default(), Options{
		Store:       h.mem,
		Chat:        h.chat,
		Orders:      h.orders,
		OrderStatus: h.status,
		Notifier:    h.notifier,
		Scheduler:   h.scheduler,
	})
	h.mgr.SetClock(func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) })
	t.Cleanup(h.mgr.Close)
	return h
}

func (h *harness) controller(t *testing.T, widget string) *Controller {
	t.Helper()
	c, err := h.mgr.Controller(widget, "anon_visitor", "tab-1")
	if err != nil {
		t.Fatalf("Controller(%s) error = %v", widget, err)
	}
	return c
}

func mustSend(t *testing.T, c *Controller, text string) *View {
	t.Helper()
	v, err := c.Send(context.Background(), text)
	if err != nil {
		t.Fatalf("Send(%q) error = %v", text, err)
	}
	return v
}

var errBackend = errors.New("backend down")
