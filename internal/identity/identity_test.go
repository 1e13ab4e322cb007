package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ecosoraculo/oraculo/internal/domain"
)

type fakeVisitors struct {
	mu      sync.Mutex
	byID    map[string]*domain.Visitor
	upserts int
	err     error
}

func newFakeVisitors() *fakeVisitors {
	return &fakeVisitors{byID: make(map[string]*domain.Visitor)}
}

func (f *fakeVisitors) GetVisitor(_ context.Context, id string) (*domain.Visitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.byID[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeVisitors) UpsertVisitor(_ context.Context, v *domain.Visitor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	cp := *v
	f.byID[v.ID] = &cp
	return nil
}

func captureHandler(visitor, tab *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*visitor = VisitorIDFromContext(r.Context())
		*tab = TabIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddlewareIssuesCookieAndCreatesVisitor(t *testing.T) {
	repo := newFakeVisitors()
	var visitor, tab string
	h := Middleware(repo, true)(captureHandler(&visitor, &tab))

	req := httptest.NewRequest(http.MethodGet, "/api/widgets/dreams", nil)
	req.Header.Set(TabHeaderName, "tab-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if !isValidAnonID(visitor) {
		t.Fatalf("visitor id %q not well formed", visitor)
	}
	if tab != "tab-1" {
		t.Errorf("tab = %q, want tab-1", tab)
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == AnonCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != visitor {
		t.Fatalf("cookie = %+v, want value %q", cookie, visitor)
	}
	if v := repo.byID[visitor]; v == nil || v.Nickname != "visitante-"+visitor[len(visitor)-8:] {
		t.Errorf("stored visitor = %+v", v)
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	repo := newFakeVisitors()
	id := "anon_0123456789abcdef0123456789abcdef"
	repo.byID[id] = &domain.Visitor{ID: id, LastSeenAt: time.Now()}

	var visitor, tab string
	h := Middleware(repo, true)(captureHandler(&visitor, &tab))

	req := httptest.NewRequest(http.MethodGet, "/ws?tab_id=tab-9", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if visitor != id {
		t.Errorf("visitor = %q, want %q", visitor, id)
	}
	if tab != "tab-9" {
		t.Errorf("tab from query = %q, want tab-9", tab)
	}
	if repo.upserts != 0 {
		t.Errorf("recently seen visitor rewritten %d times", repo.upserts)
	}
}

func TestMiddlewareRejectsForgedCookieAndTab(t *testing.T) {
	repo := newFakeVisitors()
	var visitor, tab string
	h := Middleware(repo, true)(captureHandler(&visitor, &tab))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "admin"})
	req.Header.Set(TabHeaderName, "../../etc/passwd")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if visitor == "admin" || !isValidAnonID(visitor) {
		t.Errorf("forged cookie accepted: %q", visitor)
	}
	if tab != DefaultTabIDValue {
		t.Errorf("tab = %q, want %q", tab, DefaultTabIDValue)
	}
}

func TestMiddlewareStoreFailure(t *testing.T) {
	repo := newFakeVisitors()
	repo.err = errors.New("db down")
	var visitor, tab string
	h := Middleware(repo, true)(captureHandler(&visitor, &tab))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	if VisitorIDFromContext(ctx) != "" {
		t.Error("empty context has a visitor")
	}
	if TabIDFromContext(ctx) != DefaultTabIDValue {
		t.Error("empty context tab is not the default")
	}
}
