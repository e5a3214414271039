package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/metrics"
	"github.com/AnshRaj112/whisper-backend/internal/middleware"
	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/AnshRaj112/whisper-backend/internal/services"
	"github.com/AnshRaj112/whisper-backend/internal/store"
	"github.com/AnshRaj112/whisper-backend/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// hubNotifier delivers straight to the local hub, standing in for the Redis
// publish and subscriber round trip.
type hubNotifier struct {
	hub *services.InboxHub
}

func (n hubNotifier) NotifyMessage(_ context.Context, userID string, msg models.MessageView) error {
	n.hub.FanOut(services.InboxEvent{Type: "message", UserID: userID, Message: &msg, Timestamp: time.Now().UTC()})
	return nil
}

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *recordingMailer) SendVerificationCode(_ context.Context, to, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

type fakeSuggester struct {
	text   string
	err    error
	prompt string
}

func (s *fakeSuggester) Suggest(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.text, s.err
}

type fakeGoogle struct {
	profile services.ProviderProfile
	err     error
}

func (g *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (g *fakeGoogle) Exchange(_ context.Context, code string) (services.ProviderProfile, error) {
	if g.err != nil {
		return services.ProviderProfile{}, g.err
	}
	return g.profile, nil
}

type fakeUploader struct {
	err error
}

func (u *fakeUploader) UploadAvatar(_ context.Context, userID string, file io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	_, _ = io.Copy(io.Discard, file)
	return "https://res.example.com/whisper/avatars/" + userID, nil
}

type testEnv struct {
	api       *API
	users     *store.MemoryUserStore
	mailer    *recordingMailer
	suggester *fakeSuggester
	google    *fakeGoogle
	uploader  *fakeUploader
	router    chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	users := store.NewMemoryUserStore()
	mailer := &recordingMailer{codes: make(map[string]string)}
	hub := services.NewInboxHub(log)
	sm, err := services.NewSessionManager("test-secret", time.Hour, services.NewMemorySessionRegistry(), log)
	require.NoError(t, err)

	env := &testEnv{
		users:     users,
		mailer:    mailer,
		suggester: &fakeSuggester{},
		google:    &fakeGoogle{},
		uploader:  &fakeUploader{},
	}
	env.api = &API{
		Identity:      services.NewIdentityService(users, log),
		Accounts:      services.NewAccountService(users, mailer, log),
		Messages:      services.NewMessageService(users, hubNotifier{hub}, services.NewModerator(services.ModerationBlock, nil, log), log),
		Profiles:      services.NewProfileService(users, nil, env.uploader, log),
		Sessions:      sm,
		Suggester:     env.suggester,
		Google:        env.google,
		Hub:           hub,
		Metrics:       metrics.New(),
		Log:           log,
		OAuthState:    sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		FrontendURL:   "http://localhost:3000",
		SecureCookies: false,
	}
	env.router = env.newRouter()
	return env
}

func (e *testEnv) newRouter() chi.Router {
	a := e.api
	auth := middleware.RequireSession(a.Sessions, a.Log)

	r := chi.NewRouter()
	r.Post("/api/sign-up", a.SignUp)
	r.Get("/api/check-username-unique", a.CheckUsernameUnique)
	r.Post("/api/verify-code", a.VerifyCode)
	r.Post("/api/auth/signin", a.SignIn)
	r.Post("/api/auth/signout", a.SignOut)
	r.With(auth).Get("/api/auth/session", a.Session)
	r.Get("/api/auth/google", a.GoogleSignIn)
	r.Get("/api/auth/google/callback", a.GoogleCallback)
	r.Post("/api/send-message", a.SendMessage)
	r.Get("/api/profile/{username}", a.Profile)
	r.Post("/api/suggest-messages", a.SuggestMessages)
	r.With(auth).Get("/api/accept-messages", a.GetAcceptMessages)
	r.With(auth).Post("/api/accept-messages", a.SetAcceptMessages)
	r.With(auth).Get("/api/get-messages", a.GetMessages)
	r.With(auth).Delete("/api/delete-message/{messageId}", a.DeleteMessage)
	r.With(auth).Post("/api/avatar", a.UploadAvatar)
	r.With(auth).Get("/ws/inbox", a.InboxWebSocket)
	return r
}

func (e *testEnv) createUser(t *testing.T, username, password string, verified, accepting bool) *models.User {
	t.Helper()
	u := &models.User{
		Username:            username,
		Email:               username + "@example.com",
		IsVerified:          verified,
		IsAcceptingMessages: accepting,
	}
	if password != "" {
		hash, err := utils.HashPassword(password)
		require.NoError(t, err)
		u.Password = hash
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, _, err := e.api.Sessions.Issue(context.Background(), u.Identity())
	require.NoError(t, err)
	return tok
}

func (e *testEnv) messageCount(t *testing.T, u *models.User) int {
	t.Helper()
	msgs, err := e.users.ListMessages(context.Background(), u.ID)
	require.NoError(t, err)
	return len(msgs)
}

// do sends a request through the router. body may be a string (sent raw) or
// any value to be JSON encoded.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "203.0.113.7:40000"
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertFailure(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, message, body["message"])
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
