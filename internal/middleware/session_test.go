package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/wanderlust/internal/model"
)

// --- モック定義 ---

type mockPrincipalResolver struct {
	resolveFn func(ctx context.Context, sessionID string) (*model.Principal, error)
}

func (m *mockPrincipalResolver) ResolvePrincipal(ctx context.Context, sessionID string) (*model.Principal, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, sessionID)
	}
	return nil, nil
}

func validSessionResolver() *mockPrincipalResolver {
	return &mockPrincipalResolver{
		resolveFn: func(ctx context.Context, sessionID string) (*model.Principal, error) {
			if sessionID == "valid-session-id" {
				return &model.Principal{ID: "user-123", Username: "traveller"}, nil
			}
			return nil, nil
		},
	}
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsPrincipal(t *testing.T) {
	mw := NewSessionMiddleware(validSessionResolver())

	var captured *model.Principal
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/listings", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if captured == nil || captured.ID != "user-123" || captured.Username != "traveller" {
		t.Errorf("principal = %+v, want user-123", captured)
	}
}

func TestSessionMiddleware_AnonymousRequestsPassThrough(t *testing.T) {
	tests := []struct {
		name     string
		cookie   *http.Cookie
		resolver *mockPrincipalResolver
	}{
		{
			name:     "no cookie",
			resolver: validSessionResolver(),
		},
		{
			name:     "empty cookie",
			cookie:   &http.Cookie{Name: SessionCookieName, Value: ""},
			resolver: validSessionResolver(),
		},
		{
			name:     "unknown session",
			cookie:   &http.Cookie{Name: SessionCookieName, Value: "expired"},
			resolver: validSessionResolver(),
		},
		{
			name:   "resolver error",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "valid-session-id"},
			resolver: &mockPrincipalResolver{resolveFn: func(ctx context.Context, sessionID string) (*model.Principal, error) {
				return nil, errors.New("db down")
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewSessionMiddleware(tt.resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if p := PrincipalFromContext(r.Context()); p != nil {
					t.Errorf("principal = %+v, want nil", p)
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/listings", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !called {
				t.Fatal("handler should be called for anonymous requests")
			}
			if w.Result().StatusCode != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
			}
		})
	}
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	if p := PrincipalFromContext(context.Background()); p != nil {
		t.Errorf("principal = %+v, want nil", p)
	}
}

func TestSetSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, CookieConfig{Secure: true, Domain: "example.com"}, &model.Session{
		ID:        "abc",
		ExpiresAt: time.Now().Add(time.Hour),
	})

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || c.Value != "abc" {
		t.Errorf("cookie = %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie flags: HttpOnly=%v Secure=%v SameSite=%v", c.HttpOnly, c.Secure, c.SameSite)
	}
	if c.MaxAge < 3500 || c.MaxAge > 3600 {
		t.Errorf("MaxAge = %d, want ~3600", c.MaxAge)
	}

	w = httptest.NewRecorder()
	ClearSessionCookie(w, CookieConfig{})
	if c := w.Result().Cookies()[0]; c.MaxAge != -1 {
		t.Errorf("cleared cookie MaxAge = %d, want -1", c.MaxAge)
	}
}

func TestSessionIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	if got := SessionIDFromRequest(req); got != "" {
		t.Errorf("SessionIDFromRequest = %q, want empty", got)
	}
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess"})
	if got := SessionIDFromRequest(req); got != "sess" {
		t.Errorf("SessionIDFromRequest = %q, want sess", got)
	}
}
