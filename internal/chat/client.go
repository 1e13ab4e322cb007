// Package chat carries visitor messages to the persona reply backend.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ecosoraculo/oraculo/internal/domain"
)

// ErrUnavailable is returned when no reply backend is configured.
var ErrUnavailable = errors.New("chat backend unavailable")

// ErrEmptyReply is returned when the backend answers without a reply.
var ErrEmptyReply = errors.New("chat backend returned no reply")

// Request is one turn sent to the backend.
type Request struct {
	Widget              string               `json:"widget"`
	Persona             string               `json:"persona"`
	UserMessage         string               `json:"userMessage"`
	ConversationHistory []domain.ChatMessage `json:"conversationHistory"`
}

// Backend produces persona replies.
type Backend interface {
	Reply(ctx context.Context, req Request) (string, error)
}

type replyResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// HTTPBackend posts turns to <baseURL>/api/chat/<widget>.
type HTTPBackend struct {
	http *resty.Client
}

// NewHTTPBackend creates a backend client.
func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

// Reply sends one turn and returns the persona's answer.
func (b *HTTPBackend) Reply(ctx context.Context, req Request) (string, error) {
	resp, err := b.http.R().
		SetContext(ctx).
		SetPathParam("widget", req.Widget).
		SetBody(req).
		Post("/api/chat/{widget}")
	if err != nil {
		return "", fmt.Errorf("post chat turn: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat backend status %d", resp.StatusCode())
	}

	var out replyResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode chat reply: %w", err)
	}
	if !out.Success || strings.TrimSpace(out.Response) == "" {
		return "", ErrEmptyReply
	}
	return out.Response, nil
}

// Unavailable fails every turn.
type Unavailable struct{}

func (Unavailable) Reply(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}
