package paywall

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ecosoraculo/oraculo/internal/catalog"
	"github.com/ecosoraculo/oraculo/internal/chat"
	"github.com/ecosoraculo/oraculo/internal/events"
	"github.com/ecosoraculo/oraculo/internal/order"
	"github.com/ecosoraculo/oraculo/internal/sessionstore"
)

const (
	// DefaultReplayDelay separates the payment confirmation from the replayed message.
	DefaultReplayDelay = 2 * time.Second
	replayTimeout      = time.Minute
)

// Errors returned by controllers.
var (
	ErrUnknownWidget   = errors.New("unknown widget")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrAlreadyPaid     = errors.New("service already paid")
	ErrInvalidCredits  = errors.New("credits must be positive")
	ErrServiceMismatch = errors.New("return belongs to another service")
)

// OrderCreator creates checkout orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req order.Request) (*order.Result, error)
}

// OrderStatusRecorder records checkout outcomes against the external reference.
type OrderStatusRecorder interface {
	UpdateOrderStatus(ctx context.Context, ref, status, paymentID string) error
}

// Notifier pushes events to a visitor tab.
type Notifier interface {
	Publish(ctx context.Context, visitorID, tabID string, ev events.Event) error
}

// Options wires a Manager. Store, Chat and Orders are required.
type Options struct {
	Store       sessionstore.Store
	Chat        chat.Backend
	Orders      OrderCreator
	OrderStatus OrderStatusRecorder
	Notifier    Notifier
	// Scheduler must not run fn synchronously inside Schedule.
	Scheduler   Scheduler
	ReplayDelay time.Duration
}

// Manager hands out per-tab controllers for every configured widget.
type Manager struct {
	configs     map[string]Config
	byService   map[string]string
	store       sessionstore.Store
	chat        chat.Backend
	orders      OrderCreator
	orderStatus OrderStatusRecorder
	notifier    Notifier
	scheduler   Scheduler
	replayDelay time.Duration

	now   func() time.Time
	pick  func(n int) int
	newID func() string

	locks sync.Map // visitor|tab -> *tabLock

	timersMu sync.Mutex
	timers   map[string]*replayTimer
	closed   bool
}

type tabLock struct {
	mu       sync.Mutex
	lastUsed atomic.Int64
}

// replayTimer is identified by pointer so a fired callback only removes its own entry.
type replayTimer struct {
	cancel func()
}

// NewManager builds controllers for every widget in the catalog.
func NewManager(cat *catalog.Catalog, opts Options) *Manager {
	m := &Manager{
		configs:     make(map[string]Config),
		byService:   make(map[string]string),
		store:       opts.Store,
		chat:        opts.Chat,
		orders:      opts.Orders,
		orderStatus: opts.OrderStatus,
		notifier:    opts.Notifier,
		scheduler:   opts.Scheduler,
		replayDelay: opts.ReplayDelay,
		now:         time.Now,
		pick:        rand.Intn,
		newID:       uuid.NewString,
		timers:      make(map[string]*replayTimer),
	}
	if m.chat == nil {
		m.chat = chat.Unavailable{}
	}
	if m.scheduler == nil {
		m.scheduler = TimerScheduler{}
	}
	if m.replayDelay <= 0 {
		m.replayDelay = DefaultReplayDelay
	}
	for _, w := range cat.Widgets() {
		cfg := ConfigFromWidget(w)
		m.configs[cfg.Widget] = cfg
		m.byService[cfg.ServiceID] = cfg.Widget
	}
	return m
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Configs returns every widget configuration ordered by name.
func (m *Manager) Configs() []Config {
	out := make([]Config, 0, len(m.configs))
	for _, c := range m.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Widget < out[j].Widget })
	return out
}

// WidgetForService returns the widget selling serviceID.
func (m *Manager) WidgetForService(serviceID string) (string, bool) {
	w, ok := m.byService[serviceID]
	return w, ok
}

// Controller returns the state machine of one widget in one visitor tab.
func (m *Manager) Controller(widget, visitorID, tabID string) (*Controller, error) {
	cfg, ok := m.configs[widget]
	if !ok {
		return nil, ErrUnknownWidget
	}
	return &Controller{
		m:         m,
		cfg:       cfg,
		visitorID: visitorID,
		tabID:     tabID,
		tab:       sessionstore.NewBag(m.store, sessionstore.TabNamespace(visitorID, tabID)),
		device:    sessionstore.NewBag(m.store, sessionstore.DeviceNamespace(visitorID)),
		mu:        m.lockFor(visitorID, tabID),
	}, nil
}

func (m *Manager) lockFor(visitorID, tabID string) *sync.Mutex {
	lockIface, _ := m.locks.LoadOrStore(visitorID+"|"+tabID, &tabLock{})
	l := lockIface.(*tabLock)
	l.lastUsed.Store(m.now().UnixNano())
	return &l.mu
}

// Prune drops tab locks unused for longer than olderThan. Locks currently
// held are kept.
func (m *Manager) Prune(olderThan time.Duration) int64 {
	cutoff := m.now().Add(-olderThan).UnixNano()
	var n int64
	m.locks.Range(func(key, value interface{}) bool {
		l := value.(*tabLock)
		if l.lastUsed.Load() >= cutoff || !l.mu.TryLock() {
			return true
		}
		m.locks.Delete(key)
		l.mu.Unlock()
		n++
		return true
	})
	return n
}

// scheduleReplay replays text on the tab after the replay delay, superseding
// any replay still pending for the same widget tab.
func (m *Manager) scheduleReplay(widget, visitorID, tabID, text string) {
	key := visitorID + "|" + tabID + "|" + widget

	m.timersMu.Lock()
	defer m.timersMu.Unlock()
	if m.closed {
		return
	}
	if prev, ok := m.timers[key]; ok {
		prev.cancel()
	}
	timer := &replayTimer{}
	m.timers[key] = timer
	timer.cancel = m.scheduler.Schedule(m.replayDelay, func() {
		m.timersMu.Lock()
		if m.timers[key] != timer {
			m.timersMu.Unlock()
			return
		}
		delete(m.timers, key)
		m.timersMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), replayTimeout)
		defer cancel()

		ctrl, err := m.Controller(widget, visitorID, tabID)
		if err != nil {
			slog.Error("Replay for unknown widget", "widget", widget, "error", err)
			return
		}
		if _, err := ctrl.ReplayPending(ctx, text); err != nil {
			slog.Error("Failed to replay pending message", "widget", widget, "visitor_id", visitorID, "error", err)
		}
	})
}

// Close cancels pending replays.
func (m *Manager) Close() {
	m.timersMu.Lock()
	defer m.timersMu.Unlock()
	m.closed = true
	for key, timer := range m.timers {
		timer.cancel()
		delete(m.timers, key)
	}
}
