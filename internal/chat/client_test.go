package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecosoraculo/oraculo/internal/domain"
)

func TestHTTPBackendReply(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/dreams" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "response": "Soñar con agua es renovación."})
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL+"/", time.Second)
	reply, err := b.Reply(context.Background(), Request{
		Widget:      "dreams",
		Persona:     "interpreter",
		UserMessage: "soñé con agua",
		ConversationHistory: []domain.ChatMessage{
			{Role: "interpreter", Text: "Bienvenida", Timestamp: time.Now()},
		},
	})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if reply != "Soñar con agua es renovación." {
		t.Errorf("reply = %q", reply)
	}
	if got.UserMessage != "soñé con agua" || len(got.ConversationHistory) != 1 {
		t.Errorf("request body = %+v", got)
	}
}

func TestHTTPBackendFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"unsuccessful", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"quota"}`))
		}},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			if _, err := NewHTTPBackend(srv.URL, time.Second).Reply(context.Background(), Request{Widget: "love"}); err == nil {
				t.Fatal("Reply() succeeded")
			}
		})
	}
}

func TestUnavailable(t *testing.T) {
	if _, err := (Unavailable{}).Reply(context.Background(), Request{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Reply() error = %v, want ErrUnavailable", err)
	}
}
