// Package events streams widget updates to browser tabs over WebSocket.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ecosoraculo/oraculo/internal/domain"
)

// Event types.
const (
	TypeConnected = "connected"
	TypeMessages  = "messages"
	TypeState     = "state"
)

const writeTimeout = 5 * time.Second

// ErrNoSubscriber is returned by Publish when the tab has no open stream.
var ErrNoSubscriber = errors.New("no subscriber for tab")

// Event is pushed to a tab.
type Event struct {
	Type     string               `json:"type"`
	Widget   string               `json:"widget,omitempty"`
	State    string               `json:"state,omitempty"`
	Messages []domain.ChatMessage `json:"messages,omitempty"`
}

// Conn is a writable event stream.
type Conn interface {
	Write(ctx context.Context, ev Event) error
	Close(reason string) error
}

type wsConn struct {
	ws *websocket.Conn
}

func (c wsConn) Write(ctx context.Context, ev Event) error {
	return wsjson.Write(ctx, c.ws, ev)
}

func (c wsConn) Close(reason string) error {
	return c.ws.Close(websocket.StatusNormalClosure, reason)
}

// Hub tracks one stream per visitor tab.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]map[string]Conn)}
}

// Active returns the stream registered for a visitor tab.
func (h *Hub) Active(visitorID, tabID string) Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if tabs, ok := h.active[visitorID]; ok {
		return tabs[tabID]
	}
	return nil
}

// Register adds a stream, closing any previous stream of the same tab.
func (h *Hub) Register(visitorID, tabID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[visitorID]; !exists {
		h.active[visitorID] = make(map[string]Conn)
	}

	if existing, exists := h.active[visitorID][tabID]; exists && existing != conn {
		_ = existing.Close("stream replaced")
	}

	h.active[visitorID][tabID] = conn
	slog.Debug("Event stream registered", "visitor_id", visitorID, "tab_id", tabID)
}

// Unregister removes a stream if it is still the current one for the tab.
func (h *Hub) Unregister(visitorID, tabID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tabs, ok := h.active[visitorID]; ok {
		if current, exists := tabs[tabID]; exists && current == conn {
			delete(tabs, tabID)
			if len(tabs) == 0 {
				delete(h.active, visitorID)
			}
			slog.Debug("Event stream unregistered", "visitor_id", visitorID, "tab_id", tabID)
		}
	}
}

// Publish writes an event to the tab's stream.
func (h *Hub) Publish(ctx context.Context, visitorID, tabID string, ev Event) error {
	conn := h.Active(visitorID, tabID)
	if conn == nil {
		return ErrNoSubscriber
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, ev); err != nil {
		h.Unregister(visitorID, tabID, conn)
		return err
	}
	return nil
}

// CloseAll terminates every stream. Used at shutdown since hijacked
// connections outlive http.Server.Shutdown.
func (h *Hub) CloseAll(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for visitorID, tabs := range h.active {
		for _, conn := range tabs {
			_ = conn.Close(reason)
		}
		delete(h.active, visitorID)
	}
}
