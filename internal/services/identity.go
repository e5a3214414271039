package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/AnshRaj112/whisper-backend/internal/store"
	"github.com/AnshRaj112/whisper-backend/pkg/utils"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// Numeric suffixes are probed up to this value before falling back to a
	// random token.
	handleSuffixCeiling  = 1000
	randomHandleAttempts = 5
	randomHandleBytes    = 3
)

// ProviderProfile is what an external identity provider tells us about a user.
type ProviderProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityService maps credentials and provider profiles to users.
type IdentityService struct {
	users UserStore
	log   *logrus.Logger

	// randomToken produces the suffix used once numeric probing is exhausted.
	randomToken func() (string, error)
}

func NewIdentityService(users UserStore, log *logrus.Logger) *IdentityService {
	return &IdentityService{
		users: users,
		log:   log,
		randomToken: func() (string, error) {
			return utils.RandomHex(randomHandleBytes)
		},
	}
}

// ResolveByCredential authenticates identifier (username or email) and password.
func (s *IdentityService) ResolveByCredential(ctx context.Context, identifier, password string) (*models.Identity, error) {
	u, err := s.users.FindByIdentifier(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsVerified {
		return nil, ErrUnverified
	}

	ok, err := utils.VerifyPassword(password, u.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrBadCredential
	}

	id := u.Identity()
	return &id, nil
}

// ResolveOrCreateByProvider links provider to the user owning profile.Email, or
// creates that user with a freshly allocated handle.
func (s *IdentityService) ResolveOrCreateByProvider(ctx context.Context, provider string, profile ProviderProfile) (*models.Identity, error) {
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	if profile.Email == "" || !profile.EmailVerified {
		return nil, ErrProviderEmailUnverified
	}

	// A second pass only happens when a concurrent sign-in won the insert.
	for attempt := 0; attempt < 2; attempt++ {
		u, err := s.users.FindByEmail(ctx, profile.Email)
		if err == nil {
			return s.linkProvider(ctx, u, provider, profile)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup user by email: %w", err)
		}

		handle, err := s.UniqueUsername(ctx, utils.DeriveUsernameBase(profile.Email))
		if err != nil {
			return nil, err
		}

		u = &models.User{
			Username:            handle,
			Email:               profile.Email,
			IsVerified:          true,
			IsAcceptingMessages: true,
			Providers:           []models.ProviderLink{{Name: provider, ProviderID: profile.Subject}},
		}
		err = s.users.Create(ctx, u)
		if errors.Is(err, store.ErrDuplicate) {
			s.log.WithFields(logrus.Fields{"username": handle, "provider": provider}).
				Warn("Handle or email claimed concurrently, probing again")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}

		s.log.WithFields(logrus.Fields{"user_id": u.ID.Hex(), "provider": provider}).Info("Created user from provider sign-in")
		id := u.Identity()
		return &id, nil
	}
	return nil, ErrHandleExhausted
}

func (s *IdentityService) linkProvider(ctx context.Context, u *models.User, provider string, profile ProviderProfile) (*models.Identity, error) {
	changed := false
	if !u.HasProvider(provider) {
		u.Providers = append(u.Providers, models.ProviderLink{Name: provider, ProviderID: profile.Subject})
		changed = true
	}
	if !u.IsVerified {
		u.IsVerified = true
		u.VerifyCode = ""
		u.VerifyCodeExpiry = time.Time{}
		changed = true
	}
	if changed {
		if err := s.users.UpdateAccount(ctx, u); err != nil {
			return nil, fmt.Errorf("link provider: %w", err)
		}
	}
	id := u.Identity()
	return &id, nil
}

// UniqueUsername returns base if free, else the first free base1, base2, ...
// up to the ceiling, else base plus a random token that is itself probed.
func (s *IdentityService) UniqueUsername(ctx context.Context, base string) (string, error) {
	free := func(candidate string) (bool, error) {
		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return false, fmt.Errorf("probe username: %w", err)
		}
		return !taken, nil
	}

	ok, err := free(base)
	if err != nil {
		return "", err
	}
	if ok {
		return base, nil
	}
	for i := 1; i <= handleSuffixCeiling; i++ {
		candidate := base + strconv.Itoa(i)
		ok, err := free(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}

	for i := 0; i < randomHandleAttempts; i++ {
		token, err := s.randomToken()
		if err != nil {
			return "", err
		}
		candidate := base + token
		ok, err := free(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return "", ErrHandleExhausted
}

// SessionRef is whatever identifying data a session carries about its owner.
type SessionRef struct {
	ID       string
	Username string
	Email    string
}

// ResolveSessionUser finds the caller's user by canonical id. Username and
// email are only consulted for sessions whose id is missing, malformed or
// stale; sessions issued by this server always carry a valid id.
func (s *IdentityService) ResolveSessionUser(ctx context.Context, ref SessionRef) (*models.User, error) {
	if ref.ID == "" && ref.Username == "" && ref.Email == "" {
		return nil, ErrInvalidSession
	}

	if oid, err := primitive.ObjectIDFromHex(ref.ID); err == nil {
		u, err := s.users.FindByID(ctx, oid)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup user by id: %w", err)
		}
		s.log.WithField("user_id", ref.ID).Warn("Session id did not resolve, trying username/email")
	}

	if ref.Username != "" {
		u, err := s.users.FindByUsername(ctx, ref.Username)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup user by username: %w", err)
		}
	}
	if ref.Email != "" {
		u, err := s.users.FindByEmail(ctx, ref.Email)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup user by email: %w", err)
		}
	}
	return nil, ErrUserNotFound
}
