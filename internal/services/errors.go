package services

import (
	"context"
	"errors"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Named outcomes returned by the services. Handlers map these to status codes;
// anything else is treated as an internal error.
var (
	ErrUserNotFound            = errors.New("user not found")
	ErrNotAccepting            = errors.New("user is not accepting messages")
	ErrEmptyContent            = errors.New("message content cannot be empty")
	ErrMessageNotFound         = errors.New("message not found")
	ErrUnverified              = errors.New("account is not verified")
	ErrBadCredential           = errors.New("invalid credentials")
	ErrProviderEmailUnverified = errors.New("provider did not assert a verified email")
	ErrUsernameTaken           = errors.New("username is already taken")
	ErrEmailTaken              = errors.New("email is already registered")
	ErrInvalidCode             = errors.New("incorrect verification code")
	ErrCodeExpired             = errors.New("verification code has expired")
	ErrHandleExhausted         = errors.New("could not allocate a unique username")
	ErrRejectedByModeration    = errors.New("message rejected by moderation")
	ErrInvalidSession          = errors.New("invalid session")
)

// UserStore is the persistence contract shared by the Mongo and in-memory stores.
type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u *models.User) error
	UpdateAccount(ctx context.Context, u *models.User) error
	SetAcceptingMessages(ctx context.Context, id primitive.ObjectID, accept bool) error
	SetAvatarURL(ctx context.Context, id primitive.ObjectID, url string) error
	AppendMessage(ctx context.Context, userID primitive.ObjectID, msg models.Message) error
	ListMessages(ctx context.Context, userID primitive.ObjectID) ([]models.Message, error)
	RemoveMessage(ctx context.Context, userID, messageID primitive.ObjectID) (bool, error)
}
