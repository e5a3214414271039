package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestGoogle(t *testing.T, userinfo string, status int) *GoogleAuthenticator {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(userinfo))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g := NewGoogleAuthenticator("client", "secret", "http://localhost/api/auth/google/callback")
	g.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	g.userInfoURL = srv.URL + "/userinfo"
	return g
}

func TestGoogleAuthenticator_AuthCodeURL(t *testing.T) {
	g := NewGoogleAuthenticator("client", "secret", "http://localhost/cb")
	u, err := url.Parse(g.AuthCodeURL("state-1"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
}

func TestGoogleAuthenticator_Exchange(t *testing.T) {
	g := newTestGoogle(t, `{"sub":"g-42","email":"jane@example.com","email_verified":true,"name":"Jane"}`, http.StatusOK)

	p, err := g.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, ProviderProfile{Subject: "g-42", Email: "jane@example.com", EmailVerified: true, Name: "Jane"}, p)
}

func TestGoogleAuthenticator_UserInfoFailure(t *testing.T) {
	g := newTestGoogle(t, `{"error":"nope"}`, http.StatusUnauthorized)
	_, err := g.Exchange(context.Background(), "the-code")
	assert.Error(t, err)
}
