package routes

import (
	"net/http"

	"github.com/AnshRaj112/whisper-backend/internal/handlers"
	"github.com/AnshRaj112/whisper-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(r chi.Router, api *handlers.API) {
	loginLimit := middleware.LoginRateLimit().Middleware
	accountLimit := middleware.LoginRateLimit().Middleware
	sendLimit := middleware.SendMessageRateLimit().Middleware
	requireSession := middleware.RequireSession(api.Sessions, api.Log)

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", api.Metrics.Handler())

	// Registration and verification
	r.With(accountLimit).Post("/api/sign-up", api.SignUp)
	r.Get("/api/check-username-unique", api.CheckUsernameUnique)
	r.With(accountLimit).Post("/api/verify-code", api.VerifyCode)

	// Sessions
	r.With(loginLimit).Post("/api/auth/signin", api.SignIn)
	r.Post("/api/auth/signout", api.SignOut)
	r.With(requireSession).Get("/api/auth/session", api.Session)
	r.Get("/api/auth/google", api.GoogleSignIn)
	r.Get("/api/auth/google/callback", api.GoogleCallback)

	// Public message intake and profile
	r.With(sendLimit).Post("/api/send-message", api.SendMessage)
	r.Get("/api/profile/{username}", api.Profile)
	r.Post("/api/suggest-messages", api.SuggestMessages)

	// Owner routes
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/api/accept-messages", api.GetAcceptMessages)
		r.Post("/api/accept-messages", api.SetAcceptMessages)
		r.Get("/api/get-messages", api.GetMessages)
		r.Delete("/api/delete-message/{messageId}", api.DeleteMessage)
		r.Post("/api/avatar", api.UploadAvatar)
	})

	// Realtime inbox
	r.With(requireSession).Get("/ws/inbox", api.InboxWebSocket)
}
