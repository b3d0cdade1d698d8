package api

import (
	"context"
	"net/http"

	"github.com/physicalai/tbrag/internal/auth"
)

// SessionVerifier resolves a session token to its user, or nil when the
// token carries no session. Implemented by auth.Client.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) *auth.User
}

// Session attaches the session user, if any, to the request context.
// Requests without a session pass through anonymously.
func Session(v SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" || v == nil {
				next.ServeHTTP(w, r)
				return
			}
			if u := v.Verify(r.Context(), token); u != nil {
				r = r.WithContext(auth.WithUser(r.Context(), u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests that carry no session user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFrom(r.Context()) == nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}
