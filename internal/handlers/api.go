package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/metrics"
	"github.com/AnshRaj112/whisper-backend/internal/middleware"
	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/AnshRaj112/whisper-backend/internal/services"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
)

const maxJSONBodyBytes = 1 << 20

// OAuthProvider is the slice of an OAuth client the sign-in handlers use.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (services.ProviderProfile, error)
}

// API holds everything the HTTP handlers need. Google may be nil when Google
// sign-in is not configured.
type API struct {
	Identity  *services.IdentityService
	Accounts  *services.AccountService
	Messages  *services.MessageService
	Profiles  *services.ProfileService
	Sessions  *services.SessionManager
	Suggester services.Suggester
	Google    OAuthProvider
	Hub       *services.InboxHub
	Metrics   *metrics.Metrics
	Log       *logrus.Logger

	// OAuthState holds the short-lived state cookie of the Google flow.
	OAuthState    sessions.Store
	FrontendURL   string
	SecureCookies bool
}

// APIResponse is the common envelope of every JSON reply.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Success: false, Message: message})
}

// internalError logs err with its context and answers a generic 500.
func (a *API) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	a.Log.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error(msg)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// errTrailingJSON is returned when a body carries anything after its first JSON value.
var errTrailingJSON = errors.New("unexpected data after JSON body")

// decodeJSON reads exactly one JSON value from the body. An empty body
// returns io.EOF so callers can treat it as "no input".
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingJSON
	}
	return nil
}

// sessionUser resolves the caller's user document. It writes the failure
// response itself and returns false when the request cannot proceed.
func (a *API) sessionUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return nil, false
	}

	user, err := a.Identity.ResolveSessionUser(r.Context(), claims.Ref())
	switch {
	case errors.Is(err, services.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, "Invalid session")
		return nil, false
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return nil, false
	case err != nil:
		a.internalError(w, r, err, "Failed to resolve session user")
		return nil, false
	}
	return user, true
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     services.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     services.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Health is the liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
