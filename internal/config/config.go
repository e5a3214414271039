package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	MongoURI      string
	MongoDatabase string
	PostgresURI   string // optional: moderation flag ledger
	RedisURI      string

	SessionSecret string
	SessionTTL    time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleAPIKey       string // generative AI key for message suggestions

	SendGridAPIKey string
	MailFrom       string

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	ModerationMode string // off, flag, block
	LogLevel       string

	Port           string
	Host           string
	FrontendURL    string
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	Environment    string   // ENV: production, development, etc.
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")
	frontendURL := strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/")

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{frontendURL, getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" && !containsOrigin(allowedOrigins, u) {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}

	return &Config{
		MongoURI:            getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/whisper")),
		MongoDatabase:       getEnv("MONGODB_DATABASE", ""),
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		RedisURI:            getEnv("REDIS_URI", "redis://localhost:6379/0"),
		SessionSecret:       getEnv("SESSION_SECRET", getEnv("NEXTAUTH_SECRET", "")),
		SessionTTL:          getDuration("SESSION_TTL", 30*24*time.Hour),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:   getEnv("GOOGLE_REDIRECT_URL", strings.TrimRight(host, "/")+"/api/auth/google/callback"),
		GoogleAPIKey:        getEnv("GOOGLE_API_KEY", ""),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		MailFrom:            getEnv("MAIL_FROM", "no-reply@whisper.local"),
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		ModerationMode:      parseModerationMode(getEnv("MODERATION_MODE", "flag")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnv("PORT", "8080"),
		Host:                host,
		FrontendURL:         frontendURL,
		AllowedOrigins:      allowedOrigins,
		Environment:         env,
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

// GoogleSignInEnabled reports whether both OAuth client credentials are present.
func (c *Config) GoogleSignInEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// CloudinaryEnabled reports whether avatar uploads can be served.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func parseModerationMode(s string) string {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case "off", "flag", "block":
		return m
	default:
		return "flag"
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
