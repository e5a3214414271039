package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/AnshRaj112/whisper-backend/internal/store"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier is told about every message that lands in an inbox.
type Notifier interface {
	NotifyMessage(ctx context.Context, userID string, msg models.MessageView) error
}

// MessageService owns the per-user message collection.
type MessageService struct {
	users     UserStore
	notifier  Notifier
	moderator *Moderator
	log       *logrus.Logger
	now       func() time.Time
}

// NewMessageService wires the store with an optional notifier and moderator;
// either may be nil.
func NewMessageService(users UserStore, notifier Notifier, moderator *Moderator, log *logrus.Logger) *MessageService {
	return &MessageService{
		users:     users,
		notifier:  notifier,
		moderator: moderator,
		log:       log,
		now:       time.Now,
	}
}

// Send delivers an anonymous message to the user with the given handle.
// The handle is resolved before the acceptance flag is consulted so callers
// can tell an unknown user from one that is not accepting.
func (s *MessageService) Send(ctx context.Context, username, content, senderIP string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup recipient: %w", err)
	}
	if !u.IsAcceptingMessages {
		return nil, ErrNotAccepting
	}

	if s.moderator != nil {
		if err := s.moderator.Review(ctx, u.ID.Hex(), senderIP, content); err != nil {
			return nil, err
		}
	}
	return s.Append(ctx, u.ID, content)
}

// Append stores content for userID with a fresh id and a server timestamp.
func (s *MessageService) Append(ctx context.Context, userID primitive.ObjectID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	msg := models.Message{
		ID:        primitive.NewObjectID(),
		Content:   content,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	switch err := s.users.AppendMessage(ctx, userID, msg); {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrUserNotFound
	case errors.Is(err, store.ErrNotAccepting):
		return nil, ErrNotAccepting
	case err != nil:
		return nil, fmt.Errorf("append message: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyMessage(ctx, userID.Hex(), msg.View()); err != nil {
			s.log.WithError(err).WithField("user_id", userID.Hex()).Warn("Failed to publish inbox event")
		}
	}
	return &msg, nil
}

// List returns the user's messages, newest first.
func (s *MessageService) List(ctx context.Context, userID primitive.ObjectID) ([]models.Message, error) {
	msgs, err := s.users.ListMessages(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// Remove deletes messageID from userID's collection. A message that is not in
// that collection, whether it never existed or belongs to someone else, is
// reported as ErrMessageNotFound.
func (s *MessageService) Remove(ctx context.Context, userID, messageID primitive.ObjectID) error {
	removed, err := s.users.RemoveMessage(ctx, userID, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("remove message: %w", err)
	}
	if !removed {
		return ErrMessageNotFound
	}
	return nil
}
