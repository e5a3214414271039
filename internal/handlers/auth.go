package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/AnshRaj112/whisper-backend/internal/middleware"
	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/AnshRaj112/whisper-backend/internal/services"
	"github.com/AnshRaj112/whisper-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	oauthStateSession = "whisper_oauth"
	oauthStateKey     = "state"
	providerGoogle    = "google"
)

type signInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type verifyCodeRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// AuthResponse is returned by sign-in and the session probe.
type AuthResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	User    *models.Identity `json:"user,omitempty"`
	Token   string           `json:"token,omitempty"`
}

// SignUp registers a credential account and mails its verification code.
func (a *API) SignUp(w http.ResponseWriter, r *http.Request) {
	var in services.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	err := a.Accounts.SignUp(r.Context(), in)
	var verr *utils.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, APIResponse{
			Success: true,
			Message: "User registered successfully. Please verify your account.",
		})
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, services.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, "Username is already taken")
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "User already exists with this email")
	default:
		a.internalError(w, r, err, "Failed to register user")
	}
}

// CheckUsernameUnique reports whether a handle can still be registered.
func (a *API) CheckUsernameUnique(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))

	available, err := a.Accounts.UsernameAvailable(r.Context(), username)
	var verr *utils.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case err != nil:
		a.internalError(w, r, err, "Failed to check username")
	case !available:
		writeError(w, http.StatusBadRequest, "Username is already taken")
	default:
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Username is unique"})
	}
}

// VerifyCode confirms a pending account with its emailed code.
func (a *API) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	username, err := url.PathUnescape(strings.TrimSpace(req.Username))
	if err != nil || username == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "Username and code are required")
		return
	}

	err = a.Accounts.VerifyCode(r.Context(), username, req.Code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Account verified successfully"})
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrCodeExpired):
		writeError(w, http.StatusBadRequest, "Verification code has expired, please sign up again")
	case errors.Is(err, services.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "Incorrect verification code")
	default:
		a.internalError(w, r, err, "Failed to verify account")
	}
}

// SignIn authenticates with a handle or email and a password.
func (a *API) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Identifier and password are required")
		return
	}

	identity, err := a.Identity.ResolveByCredential(r.Context(), identifier, req.Password)
	switch {
	case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrBadCredential):
		a.Metrics.SignIns.WithLabelValues("credentials", "denied").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, services.ErrUnverified):
		a.Metrics.SignIns.WithLabelValues("credentials", "unverified").Inc()
		writeError(w, http.StatusForbidden, "Please verify your account before signing in")
		return
	case err != nil:
		a.Metrics.SignIns.WithLabelValues("credentials", "error").Inc()
		a.internalError(w, r, err, "Failed to resolve credentials")
		return
	}

	token, expires, err := a.Sessions.Issue(r.Context(), *identity)
	if err != nil {
		a.Metrics.SignIns.WithLabelValues("credentials", "error").Inc()
		a.internalError(w, r, err, "Failed to issue session")
		return
	}
	a.Metrics.SignIns.WithLabelValues("credentials", "success").Inc()
	a.setSessionCookie(w, token, expires)
	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Signed in successfully",
		User:    identity,
		Token:   token,
	})
}

// SignOut revokes the caller's session, if any, and clears the cookie.
func (a *API) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r); token != "" {
		if err := a.Sessions.Revoke(r.Context(), token); err != nil {
			a.Log.WithError(err).Warn("Failed to revoke session")
		}
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Signed out"})
}

// Session returns the identity behind the caller's session.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := a.sessionUser(w, r)
	if !ok {
		return
	}
	identity := user.Identity()
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: &identity})
}

// GoogleSignIn starts the Google OAuth flow.
func (a *API) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	if a.Google == nil {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	sess, _ := a.OAuthState.Get(r, oauthStateSession)
	state := uuid.NewString()
	sess.Values[oauthStateKey] = state
	sess.Options.MaxAge = 600
	sess.Options.HttpOnly = true
	sess.Options.Secure = a.SecureCookies
	sess.Options.SameSite = http.SameSiteLaxMode
	if err := sess.Save(r, w); err != nil {
		a.internalError(w, r, err, "Failed to save OAuth state")
		return
	}
	http.Redirect(w, r, a.Google.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback finishes the Google OAuth flow and redirects to the front end.
func (a *API) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if a.Google == nil {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	sess, _ := a.OAuthState.Get(r, oauthStateSession)
	expected, _ := sess.Values[oauthStateKey].(string)
	delete(sess.Values, oauthStateKey)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)

	q := r.URL.Query()
	if expected == "" || q.Get("state") != expected {
		a.Log.Warn("Google callback with missing or mismatched state")
		a.Metrics.SignIns.WithLabelValues(providerGoogle, "denied").Inc()
		a.redirectSignInError(w, r, "AccessDenied")
		return
	}
	if q.Get("error") != "" || q.Get("code") == "" {
		a.Metrics.SignIns.WithLabelValues(providerGoogle, "denied").Inc()
		a.redirectSignInError(w, r, "AccessDenied")
		return
	}

	profile, err := a.Google.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		a.Log.WithError(err).Error("Google code exchange failed")
		a.Metrics.SignIns.WithLabelValues(providerGoogle, "error").Inc()
		a.redirectSignInError(w, r, "OAuthCallback")
		return
	}

	identity, err := a.Identity.ResolveOrCreateByProvider(r.Context(), providerGoogle, profile)
	if errors.Is(err, services.ErrProviderEmailUnverified) {
		a.Log.WithField("subject", profile.Subject).Warn("Google sign-in denied: email missing or unverified")
		a.Metrics.SignIns.WithLabelValues(providerGoogle, "denied").Inc()
		a.redirectSignInError(w, r, "AccessDenied")
		return
	}
	if err != nil {
		a.Log.WithError(err).Error("Failed to resolve Google identity")
		a.Metrics.SignIns.WithLabelValues(providerGoogle, "error").Inc()
		a.redirectSignInError(w, r, "OAuthCallback")
		return
	}

	token, expires, err := a.Sessions.Issue(r.Context(), *identity)
	if err != nil {
		a.Log.WithError(err).Error("Failed to issue session")
		a.Metrics.SignIns.WithLabelValues(providerGoogle, "error").Inc()
		a.redirectSignInError(w, r, "OAuthCallback")
		return
	}

	a.Log.WithFields(logrus.Fields{
		"user_id":  identity.ID,
		"username": identity.Username,
	}).Info("Google sign-in")
	a.Metrics.SignIns.WithLabelValues(providerGoogle, "success").Inc()
	a.setSessionCookie(w, token, expires)
	http.Redirect(w, r, a.FrontendURL+"/dashboard", http.StatusFound)
}

func (a *API) redirectSignInError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, a.FrontendURL+"/sign-in?error="+url.QueryEscape(code), http.StatusFound)
}
