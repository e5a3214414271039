package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AnshRaj112/whisper-backend/internal/store"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUploadsDisabled is returned when no avatar uploader is configured.
var ErrUploadsDisabled = errors.New("avatar uploads are not configured")

// ProfileService serves public profiles and the owner-side settings that
// appear on them: the acceptance flag and the avatar.
type ProfileService struct {
	users    UserStore
	cache    ProfileCache
	uploader AvatarUploader
	log      *logrus.Logger
}

// NewProfileService accepts a nil cache and a nil uploader.
func NewProfileService(users UserStore, cache ProfileCache, uploader AvatarUploader, log *logrus.Logger) *ProfileService {
	return &ProfileService{users: users, cache: cache, uploader: uploader, log: log}
}

func (s *ProfileService) Profile(ctx context.Context, username string) (*PublicProfile, error) {
	if s.cache != nil {
		p, ok, err := s.cache.Get(ctx, username)
		if err != nil {
			s.log.WithError(err).Warn("Profile cache read failed")
		}
		if ok {
			return p, nil
		}
	}

	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup profile: %w", err)
	}

	p := &PublicProfile{
		Username:            u.Username,
		IsAcceptingMessages: u.IsAcceptingMessages,
		AvatarURL:           u.AvatarURL,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			s.log.WithError(err).Warn("Profile cache write failed")
		}
	}
	return p, nil
}

func (s *ProfileService) invalidate(ctx context.Context, username string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, username); err != nil {
		s.log.WithError(err).WithField("username", username).Warn("Profile cache invalidation failed")
	}
}

func (s *ProfileService) SetAcceptingMessages(ctx context.Context, userID primitive.ObjectID, username string, accept bool) error {
	err := s.users.SetAcceptingMessages(ctx, userID, accept)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("update acceptance flag: %w", err)
	}
	s.invalidate(ctx, username)
	return nil
}

// UploadAvatar stores file as the user's avatar and returns its URL.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID primitive.ObjectID, username string, file io.Reader) (string, error) {
	if s.uploader == nil {
		return "", ErrUploadsDisabled
	}
	url, err := s.uploader.UploadAvatar(ctx, userID.Hex(), file)
	if err != nil {
		return "", err
	}

	err = s.users.SetAvatarURL(ctx, userID, url)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("save avatar url: %w", err)
	}
	s.invalidate(ctx, username)
	return url, nil
}
