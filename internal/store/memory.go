package store

import (
	"context"
	"sync"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUserStore is an in-process implementation with the same contract as
// MongoUserStore. Documents are copied in and out so callers never share state.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]*models.User)}
}

func cloneUser(u *models.User, withMessages bool) *models.User {
	c := *u
	c.Providers = append([]models.ProviderLink(nil), u.Providers...)
	if withMessages {
		c.Messages = append([]models.Message{}, u.Messages...)
	} else {
		c.Messages = nil
	}
	return &c
}

func (s *MemoryUserStore) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return cloneUser(u, false), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u, false), nil
}

func (s *MemoryUserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username })
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email })
}

func (s *MemoryUserStore) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == identifier || u.Username == identifier })
}

func (s *MemoryUserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := s.FindByUsername(ctx, username)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *MemoryUserStore) conflicts(u *models.User) bool {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username || other.Email == u.Email {
			return true
		}
	}
	return false
}

func (s *MemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, exists := s.users[u.ID]; exists || s.conflicts(u) {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Messages == nil {
		u.Messages = []models.Message{}
	}
	s.users[u.ID] = cloneUser(u, true)
	return nil
}

func (s *MemoryUserStore) UpdateAccount(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if s.conflicts(u) {
		return ErrDuplicate
	}
	u.UpdatedAt = time.Now().UTC()
	cur.Username = u.Username
	cur.Email = u.Email
	cur.Password = u.Password
	cur.VerifyCode = u.VerifyCode
	cur.VerifyCodeExpiry = u.VerifyCodeExpiry
	cur.IsVerified = u.IsVerified
	cur.Providers = append([]models.ProviderLink(nil), u.Providers...)
	cur.UpdatedAt = u.UpdatedAt
	return nil
}

func (s *MemoryUserStore) update(id primitive.ObjectID, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryUserStore) SetAcceptingMessages(_ context.Context, id primitive.ObjectID, accept bool) error {
	return s.update(id, func(u *models.User) { u.IsAcceptingMessages = accept })
}

func (s *MemoryUserStore) SetAvatarURL(_ context.Context, id primitive.ObjectID, url string) error {
	return s.update(id, func(u *models.User) { u.AvatarURL = url })
}

func (s *MemoryUserStore) AppendMessage(_ context.Context, userID primitive.ObjectID, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if !u.IsAcceptingMessages {
		return ErrNotAccepting
	}
	u.Messages = append(u.Messages, msg)
	return nil
}

func (s *MemoryUserStore) ListMessages(_ context.Context, userID primitive.ObjectID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]models.Message{}, u.Messages...), nil
}

func (s *MemoryUserStore) RemoveMessage(_ context.Context, userID, messageID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, ErrNotFound
	}
	for i, m := range u.Messages {
		if m.ID == messageID {
			u.Messages = append(u.Messages[:i], u.Messages[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
