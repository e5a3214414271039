package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// SessionKeyPrefix is the Redis key prefix for live session ids
	SessionKeyPrefix = "session:"
	// SessionCookieName carries the token for browser clients
	SessionCookieName = "session_token"
)

// SessionClaims is the token payload. Subject is always the canonical user id;
// username and email are carried for display and as a lookup fallback.
type SessionClaims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Ref converts the claims into the lookup keys understood by the identity service.
func (c *SessionClaims) Ref() SessionRef {
	return SessionRef{ID: c.Subject, Username: c.Username, Email: c.Email}
}

// SessionRegistry tracks which token ids are still live so a signed token can
// be revoked before it expires.
type SessionRegistry interface {
	Register(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	Exists(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string) error
}

// SessionManager issues and validates HS256 session tokens.
type SessionManager struct {
	secret   []byte
	ttl      time.Duration
	registry SessionRegistry
	now      func() time.Time
}

// NewSessionManager uses secret to sign tokens. An empty secret is allowed
// but logged: a random one is generated and sessions will not survive a restart.
func NewSessionManager(secret string, ttl time.Duration, registry SessionRegistry, log *logrus.Logger) (*SessionManager, error) {
	key := []byte(secret)
	if secret == "" {
		log.Warn("⚠️  SESSION_SECRET is not set; using an ephemeral secret, sessions will not survive restarts")
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &SessionManager{
		secret:   key,
		ttl:      ttl,
		registry: registry,
		now:      time.Now,
	}, nil
}

// Issue signs a token for identity and registers its id.
func (m *SessionManager) Issue(ctx context.Context, identity models.Identity) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := SessionClaims{
		Username: identity.Username,
		Email:    identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	if err := m.registry.Register(ctx, claims.ID, identity.ID, m.ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("register session: %w", err)
	}
	return token, expires, nil
}

func (m *SessionManager) parse(token string, opts ...jwt.ParserOption) (*SessionClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Validate returns the claims of a well-signed, unexpired, unrevoked token.
func (m *SessionManager) Validate(ctx context.Context, token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	claims, err := m.parse(token)
	if err != nil {
		return nil, ErrInvalidSession
	}
	live, err := m.registry.Exists(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !live {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Revoke forgets the token's id. Expired tokens are accepted so sign-out
// always clears the registry entry.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return ErrInvalidSession
	}
	return m.registry.Revoke(ctx, claims.ID)
}

// RedisSessionRegistry stores session:<jti> -> user id with the session TTL.
type RedisSessionRegistry struct {
	client *redis.Client
}

func NewRedisSessionRegistry(client *redis.Client) *RedisSessionRegistry {
	return &RedisSessionRegistry{client: client}
}

func (r *RedisSessionRegistry) Register(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	return r.client.Set(ctx, SessionKeyPrefix+tokenID, userID, ttl).Err()
}

func (r *RedisSessionRegistry) Exists(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, SessionKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisSessionRegistry) Revoke(ctx context.Context, tokenID string) error {
	return r.client.Del(ctx, SessionKeyPrefix+tokenID).Err()
}

// MemorySessionRegistry keeps session ids in process memory for tests and
// single-process tooling.
type MemorySessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time
}

func NewMemorySessionRegistry() *MemorySessionRegistry {
	return &MemorySessionRegistry{sessions: make(map[string]time.Time), now: time.Now}
}

func (r *MemorySessionRegistry) Register(_ context.Context, tokenID, _ string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[tokenID] = r.now().Add(ttl)
	return nil
}

func (r *MemorySessionRegistry) Exists(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.sessions[tokenID]
	if !ok {
		return false, nil
	}
	if r.now().After(exp) {
		delete(r.sessions, tokenID)
		return false, nil
	}
	return true, nil
}

func (r *MemorySessionRegistry) Revoke(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tokenID)
	return nil
}
