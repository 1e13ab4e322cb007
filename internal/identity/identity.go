// Package identity provides anonymous per-device visitor identity and per-tab scoping.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ecosoraculo/oraculo/internal/domain"
)

const (
	AnonCookieName    = "oraculo_anon_id"
	TabHeaderName     = "X-Oraculo-Tab-ID"
	TabQueryParam     = "tab_id"
	DefaultTabIDValue = "default"
	anonCookieMaxAge  = 30 * 24 * time.Hour
	lastSeenInterval  = time.Hour
)

type contextKey int

const (
	visitorIDKey contextKey = iota
	tabIDKey
)

var (
	anonIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	tabIDPattern  = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// VisitorStore is the persistence the middleware needs.
type VisitorStore interface {
	GetVisitor(ctx context.Context, id string) (*domain.Visitor, error)
	UpsertVisitor(ctx context.Context, v *domain.Visitor) error
}

// VisitorIDFromContext extracts the visitor ID from the request context.
func VisitorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(visitorIDKey).(string); ok {
		return v
	}
	return ""
}

// TabIDFromContext extracts the browser tab ID from the request context.
func TabIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tabIDKey).(string); ok {
		return v
	}
	return DefaultTabIDValue
}

// WithVisitor returns a context carrying the given visitor and tab.
func WithVisitor(ctx context.Context, visitorID, tabID string) context.Context {
	ctx = context.WithValue(ctx, visitorIDKey, visitorID)
	return context.WithValue(ctx, tabIDKey, sanitizeTabID(tabID))
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func sanitizeTabID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !tabIDPattern.MatchString(id) {
		return DefaultTabIDValue
	}
	return id
}

func deriveNickname(visitorID string) string {
	if len(visitorID) > 13 {
		return "visitante-" + visitorID[len(visitorID)-8:]
	}
	return "visitante"
}

func ensureVisitor(ctx context.Context, repo VisitorStore, visitorID string) error {
	v, err := repo.GetVisitor(ctx, visitorID)
	if err != nil {
		return err
	}
	now := time.Now()
	if v != nil {
		if now.Sub(v.LastSeenAt) < lastSeenInterval {
			return nil
		}
		v.LastSeenAt = now
		v.UpdatedAt = now
		return repo.UpsertVisitor(ctx, v)
	}

	return repo.UpsertVisitor(ctx, &domain.Visitor{
		ID:         visitorID,
		Nickname:   deriveNickname(visitorID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setAnonCookie(w, id, isDev)
	return id, nil
}

// tabIDFromRequest reads the tab header, falling back to the query string
// for WebSocket upgrades that cannot set headers.
func tabIDFromRequest(r *http.Request) string {
	tid := r.Header.Get(TabHeaderName)
	if tid == "" {
		tid = r.URL.Query().Get(TabQueryParam)
	}
	return sanitizeTabID(tid)
}

// Middleware injects the anonymous visitor identity and the per-request tab ID.
func Middleware(repo VisitorStore, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID, err := getOrCreateAnonID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			if err := ensureVisitor(r.Context(), repo, visitorID); err != nil {
				slog.Error("Failed to initialize visitor", "visitor_id", visitorID, "error", err)
				http.Error(w, `{"error":"failed to initialize visitor"}`, http.StatusInternalServerError)
				return
			}

			ctx := WithVisitor(r.Context(), visitorID, tabIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
