package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"bankimport/internal/logger"
)

// Auth checks the static API token sent as "Authorization: Bearer <token>".
type Auth struct {
	token string
}

// New returns an Auth for token. An empty token disables the check.
func New(token string) *Auth {
	return &Auth{token: token}
}

// Enabled reports whether requests must carry a token.
func (a *Auth) Enabled() bool {
	return a.token != ""
}

// CheckToken compares a presented token in constant time.
func (a *Auth) CheckToken(ctx context.Context, presented string) bool {
	if !a.Enabled() {
		return true
	}
	ok := subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) == 1
	if !ok {
		logger.FromContext(ctx).Warn("auth_token_rejected", "reason", "invalid_token")
	}
	return ok
}

// TokenFromRequest extracts the bearer token of a request.
func TokenFromRequest(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware rejects requests without a valid token with 401.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token := TokenFromRequest(r)
		if token == "" {
			logger.FromContext(r.Context()).Debug("auth_no_token", "path", r.URL.Path)
			unauthorized(w)
			return
		}
		if !a.CheckToken(r.Context(), token) {
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="bankimport"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}
