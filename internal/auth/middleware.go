package auth

import (
	"net/http"
	"strings"
)

// TokenValidator reports whether an opaque session token is currently live.
// The session store implements this; the middleware deliberately depends on
// the small interface rather than the concrete store.
type TokenValidator interface {
	IsValid(token string) bool
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns "" when the header is absent or malformed.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix))
}

// RequireToken is a middleware that enforces a live session on protected
// routes. It reads the bearer token and checks it against the valid-token
// set; if the token is missing or not in the set, it returns 401 and stops
// the request chain.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler that wraps it. Chi applies middlewares in a chain:
// req → M1 → M2 → Handler → M2 → M1 → resp.
func RequireToken(sessions TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" || !sessions.IsValid(token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"error":"unauthorized","message":"login required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
