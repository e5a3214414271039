package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/whisper-backend/internal/config"
	"github.com/AnshRaj112/whisper-backend/internal/database"
	"github.com/AnshRaj112/whisper-backend/internal/handlers"
	"github.com/AnshRaj112/whisper-backend/internal/logger"
	"github.com/AnshRaj112/whisper-backend/internal/metrics"
	"github.com/AnshRaj112/whisper-backend/internal/middleware"
	"github.com/AnshRaj112/whisper-backend/internal/routes"
	"github.com/AnshRaj112/whisper-backend/internal/services"
	"github.com/AnshRaj112/whisper-backend/internal/store"
	"github.com/AnshRaj112/whisper-backend/pkg/utils"
)

const (
	shutdownTimeout       = 10 * time.Second
	flagRetentionInterval = time.Hour
	flagRetentionMaxAge   = 90 * 24 * time.Hour
)

func main() {
	// Load env
	envErr := godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.Environment, cfg.LogLevel)
	if envErr != nil {
		log.Info("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	log.Infof("Connecting to MongoDB... (%s)", database.MaskURI(cfg.MongoURI))
	mongoDB, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	log.Info("✅ Connected to MongoDB")

	users := store.NewMongoUserStore(mongoDB.DB)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Warn("⚠️  Failed to ensure MongoDB user indexes")
	} else {
		log.Info("✅ MongoDB user indexes ensured")
	}

	// Connect to Redis
	log.Info("Connecting to Redis...")
	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	log.Info("✅ Connected to Redis")

	// PostgreSQL only backs the moderation flag ledger
	var pg *sql.DB
	var ledger services.FlagLedger
	if cfg.PostgresURI != "" {
		pg, err = database.ConnectPostgres(ctx, cfg.PostgresURI)
		if err != nil {
			log.WithError(err).Warn("⚠️  PostgreSQL unavailable; moderation flags will only be logged")
		} else {
			pgLedger := services.NewPostgresFlagLedger(pg)
			ledger = pgLedger
			services.StartFlagRetention(ctx, pgLedger, flagRetentionInterval, flagRetentionMaxAge, log)
			log.Info("✅ Moderation flag ledger ready")
		}
	}

	m := metrics.New()
	hub := services.NewInboxHub(log)
	hub.StartSubscriber(ctx, redisClient)

	sessionManager, err := services.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, services.NewRedisSessionRegistry(redisClient), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up sessions")
	}

	var mailer services.Mailer = services.NewLogMailer(log)
	if cfg.SendGridAPIKey != "" {
		mailer = services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, log)
		log.Info("✅ SendGrid mailer configured")
	} else {
		log.Warn("⚠️  SENDGRID_API_KEY not set; verification codes will be written to the log")
	}

	var uploader services.AvatarUploader
	if cfg.CloudinaryEnabled() {
		cld, err := services.NewCloudinaryUploader(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Cloudinary; avatar uploads disabled")
		} else {
			uploader = cld
			log.Info("✅ Cloudinary service initialized")
		}
	} else {
		log.Warn("Cloudinary credentials not found. Avatar uploads will not be available")
	}

	var google handlers.OAuthProvider
	if cfg.GoogleSignInEnabled() {
		google = services.NewGoogleAuthenticator(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		log.Info("✅ Google sign-in enabled")
	}

	suggester, err := services.NewGeminiSuggester(ctx, cfg.GoogleAPIKey, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Gemini client")
	}

	moderator := services.NewModerator(cfg.ModerationMode, ledger, log)
	api := &handlers.API{
		Identity:      services.NewIdentityService(users, log),
		Accounts:      services.NewAccountService(users, mailer, log),
		Messages:      services.NewMessageService(users, services.NewRedisNotifier(redisClient), moderator, log),
		Profiles:      services.NewProfileService(users, services.NewRedisProfileCache(redisClient, services.ProfileCacheTTL), uploader, log),
		Sessions:      sessionManager,
		Suggester:     suggester,
		Google:        google,
		Hub:           hub,
		Metrics:       m,
		Log:           log,
		OAuthState:    sessions.NewCookieStore(oauthStateKey(cfg.SessionSecret, log)),
		FrontendURL:   cfg.FrontendURL,
		SecureCookies: cfg.IsProduction(),
	}

	// Setup router
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit
	// Non-production: Redis-based window rate limit only
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(hostname(cfg.Host)) {
			r.Use(mw)
		}
		log.Info("✅ Production security enabled (security headers, host check, per-IP rate limiting)")
	} else {
		r.Use(middleware.WindowRateLimit(middleware.NewRedisWindowCounter(redisClient), middleware.RateLimitMaxRequests, middleware.RateLimitWindow, log))
	}

	routes.SetupRoutes(r, api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("🚀 Whisper backend running on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not drain cleanly")
	}

	closeAll(shutdownCtx, log, mongoDB, redisClient.Close, pg, suggester.Close)
	log.Info("👋 Server stopped")
}

// oauthStateKey derives the cookie key of the OAuth state store. Without a
// configured secret the key is random, so pending sign-ins do not survive a
// restart.
func oauthStateKey(secret string, log *logrus.Logger) []byte {
	if secret != "" {
		return []byte(secret)
	}
	key, err := utils.RandomHex(32)
	if err != nil {
		log.WithError(err).Fatal("Failed to generate OAuth state key")
	}
	return []byte(key)
}

// hostname returns the bare host of HOST (e.g. https://api.whisper.app → api.whisper.app).
func hostname(host string) string {
	u, err := url.Parse(host)
	if err != nil || u.Hostname() == "" {
		return host
	}
	return u.Hostname()
}

func closeAll(ctx context.Context, log *logrus.Logger, mongoDB *database.Mongo, closeRedis func() error, pg *sql.DB, closeGenAI func() error) {
	if err := mongoDB.Disconnect(ctx); err != nil {
		log.WithError(err).Warn("Failed to disconnect MongoDB")
	}
	if err := closeRedis(); err != nil {
		log.WithError(err).Warn("Failed to close Redis")
	}
	if pg != nil {
		if err := pg.Close(); err != nil {
			log.WithError(err).Warn("Failed to close PostgreSQL")
		}
	}
	if err := closeGenAI(); err != nil {
		log.WithError(err).Warn("Failed to close Gemini client")
	}
}
