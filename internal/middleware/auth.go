package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/whisper-backend/internal/services"
	"github.com/sirupsen/logrus"
)

type contextKey string

const claimsKey contextKey = "session_claims"

// SessionValidator checks a raw session token.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*services.SessionClaims, error)
}

// TokenFromRequest reads the session token from the Authorization header or
// the session cookie. WebSocket upgrades may also pass it as ?token=, since
// browsers cannot set headers on them.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if c, err := r.Cookie(services.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// RequireSession rejects requests without a live session with 401 before any
// handler runs. The claims are stored on the request context.
func RequireSession(v SessionValidator, log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.Validate(r.Context(), TokenFromRequest(r))
			if errors.Is(err, services.ErrInvalidSession) {
				writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			if err != nil {
				log.WithError(err).Error("Session validation failed")
				writeJSONError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, claims *services.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*services.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*services.SessionClaims)
	return claims, ok && claims != nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": message})
}
