package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/idfinder/internal/model"
)

type fakeResolver struct {
	users map[string]*model.User
	calls int
}

func (f *fakeResolver) CurrentUser(_ context.Context, sessionID string) *model.User {
	f.calls++
	return f.users[sessionID]
}

func TestSessionMiddleware_ValidSession_InjectsUser(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*model.User{
		"valid-session": {ID: "user-123", Email: "a@example.com"},
	}}

	var got *model.User
	handler := NewSessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/lost", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.ID != "user-123" {
		t.Fatalf("user = %v, want user-123", got)
	}
}

func TestSessionMiddleware_AnonymousPassesThrough(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
		calls  int
	}{
		{"Cookieなし", nil, 0},
		{"空のCookie", &http.Cookie{Name: SessionCookieName, Value: ""}, 0},
		{"無効なセッション", &http.Cookie{Name: SessionCookieName, Value: "expired"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{}
			called := false
			handler := NewSessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if UserFromContext(r.Context()) != nil {
					t.Error("未サインインではユーザーは注入されないはず")
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/found", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !called {
				t.Error("未サインインでもハンドラーは呼ばれるべき")
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
			if resolver.calls != tt.calls {
				t.Errorf("CurrentUser calls = %d, want %d", resolver.calls, tt.calls)
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	handler := RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("未サインインは401", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		var body ErrorResponseBody
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.Code != model.ErrCodeUnauthorized {
			t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
		}
	})

	t.Run("サインイン済みは通過", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req = req.WithContext(ContextWithUser(req.Context(), &model.User{ID: "u1"}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", w.Code)
		}
	})
}

func TestUserIDFromContext(t *testing.T) {
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("空のコンテキストでは空文字列のはず: %q", got)
	}
	ctx := ContextWithUser(context.Background(), &model.User{ID: "u1"})
	if got := UserIDFromContext(ctx); got != "u1" {
		t.Errorf("UserIDFromContext = %q, want u1", got)
	}
}

func TestSessionIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := SessionIDFromRequest(req); got != "" {
		t.Errorf("Cookieなしでは空文字列のはず: %q", got)
	}
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid"})
	if got := SessionIDFromRequest(req); got != "sid" {
		t.Errorf("SessionIDFromRequest = %q, want sid", got)
	}
}
