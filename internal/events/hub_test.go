package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ecosoraculo/oraculo/internal/domain"
	"github.com/ecosoraculo/oraculo/internal/identity"
)

type fakeConn struct {
	mu     sync.Mutex
	events []Event
	closed string
	err    error
}

func (c *fakeConn) Write(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = reason
	return nil
}

func TestHubRegisterReplacesTab(t *testing.T) {
	h := NewHub()
	first, second := &fakeConn{}, &fakeConn{}

	h.Register("v1", "tab-1", first)
	h.Register("v1", "tab-1", second)

	if h.Active("v1", "tab-1") != second {
		t.Fatal("second stream not active")
	}
	if first.closed == "" {
		t.Error("replaced stream was not closed")
	}

	// A stale unregister must not drop the live stream.
	h.Unregister("v1", "tab-1", first)
	if h.Active("v1", "tab-1") != second {
		t.Error("stale unregister removed the live stream")
	}
}

func TestHubPublish(t *testing.T) {
	h := NewHub()
	conn := &fakeConn{}
	h.Register("v1", "tab-1", conn)

	ev := Event{Type: TypeMessages, Widget: "dreams", Messages: []domain.ChatMessage{{Role: domain.RoleUser, Text: "hola"}}}
	if err := h.Publish(context.Background(), "v1", "tab-1", ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(conn.events) != 1 || conn.events[0].Messages[0].Text != "hola" {
		t.Errorf("events = %+v", conn.events)
	}

	if err := h.Publish(context.Background(), "v1", "tab-2", ev); !errors.Is(err, ErrNoSubscriber) {
		t.Errorf("Publish(other tab) error = %v, want ErrNoSubscriber", err)
	}
}

func TestHubPublishDropsBrokenStream(t *testing.T) {
	h := NewHub()
	h.Register("v1", "tab-1", &fakeConn{err: errors.New("broken pipe")})

	if err := h.Publish(context.Background(), "v1", "tab-1", Event{Type: TypeState}); err == nil {
		t.Fatal("Publish() succeeded on broken stream")
	}
	if h.Active("v1", "tab-1") != nil {
		t.Error("broken stream still registered")
	}
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub()
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.Register("v1", "tab-1", a)
	h.Register("v1", "tab-2", b)
	h.Register("v2", "tab-1", c)
	h.CloseAll("server shutdown")
	for i, conn := range []*fakeConn{a, b, c} {
		if conn.closed != "server shutdown" {
			t.Errorf("stream %d closed with %q", i, conn.closed)
		}
	}
	if h.Active("v1", "tab-1") != nil || h.Active("v2", "tab-1") != nil {
		t.Error("stream still active after CloseAll")
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			h.Register("v1", "tab-"+strconv.Itoa(i), &fakeConn{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = h.Publish(context.Background(), "v1", "tab-"+strconv.Itoa(i), Event{Type: TypeState})
		}
	}()
	wg.Wait()
}

func TestHandlerStreamsEvents(t *testing.T) {
	hub := NewHub()
	handler := NewHandler(hub, "*", true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := identity.WithVisitor(r.Context(), "anon_test", r.URL.Query().Get("tab_id"))
		handler.ServeHTTP(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?tab_id=tab-7"
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer ws.CloseNow()

	var ev Event
	if err := wsjson.Read(ctx, ws, &ev); err != nil {
		t.Fatalf("read connected event: %v", err)
	}
	if ev.Type != TypeConnected {
		t.Fatalf("first event = %+v, want connected", ev)
	}

	err = hub.Publish(ctx, "anon_test", "tab-7", Event{Type: TypeMessages, Widget: "love",
		Messages: []domain.ChatMessage{{Role: "love_expert", Text: "Hay química"}}})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := wsjson.Read(ctx, ws, &ev); err != nil {
		t.Fatalf("read published event: %v", err)
	}
	if ev.Type != TypeMessages || len(ev.Messages) != 1 || ev.Messages[0].Text != "Hay química" {
		t.Errorf("published event = %+v", ev)
	}
}
