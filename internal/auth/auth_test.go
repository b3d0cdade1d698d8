package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sidecar(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/session" {
			t.Errorf("path = %s", r.URL.Path)
		}
		c, err := r.Cookie(SessionCookie)
		if err != nil || c.Value != "tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerify_ValidSession(t *testing.T) {
	srv := sidecar(t, http.StatusOK, `{"session":{"id":"s1"},"user":{"id":"user-1","email":"a@b.c","name":"Ada"}}`)
	u := NewClient(srv.URL, time.Second, nil).Verify(context.Background(), "tok-123")
	if u == nil || u.ID != "user-1" || u.Name != "Ada" {
		t.Errorf("user = %+v", u)
	}
}

func TestVerify_Unauthorized(t *testing.T) {
	srv := sidecar(t, http.StatusOK, `{"user":{"id":"user-1"}}`)
	if u := NewClient(srv.URL, time.Second, nil).Verify(context.Background(), "wrong"); u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
}

func TestVerify_NoUserInSession(t *testing.T) {
	srv := sidecar(t, http.StatusOK, `{"session":null}`)
	if u := NewClient(srv.URL, time.Second, nil).Verify(context.Background(), "tok-123"); u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
}

func TestVerify_ServerErrorIsNoSession(t *testing.T) {
	srv := sidecar(t, http.StatusInternalServerError, "boom")
	if u := NewClient(srv.URL, time.Second, nil).Verify(context.Background(), "tok-123"); u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
}

func TestVerify_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond, nil)
	if u := c.Verify(context.Background(), "tok-123"); u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
}

func TestVerify_EmptyToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()
	if u := NewClient(srv.URL, time.Second, nil).Verify(context.Background(), ""); u != nil || called {
		t.Errorf("user = %+v, called = %v", u, called)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := TokenFromRequest(r); got != "" {
		t.Errorf("token = %q, want empty", got)
	}

	r.Header.Set("Authorization", "Bearer from-header")
	if got := TokenFromRequest(r); got != "from-header" {
		t.Errorf("token = %q, want from-header", got)
	}

	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	if got := TokenFromRequest(r); got != "from-cookie" {
		t.Errorf("cookie should win, got %q", got)
	}
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	if UserFrom(ctx) != nil {
		t.Error("empty context has a user")
	}
	u := &User{ID: "u"}
	if UserFrom(WithUser(ctx, u)) != u {
		t.Error("user not round-tripped through context")
	}
}
