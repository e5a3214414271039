package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProviderLink records an external identity attached to a user, e.g. google + sub.
type ProviderLink struct {
	Name       string `bson:"name" json:"name"`
	ProviderID string `bson:"provider_id" json:"provider_id"`
}

// User is the single document per account. Messages are embedded rather than
// kept in their own collection; they have no identity outside their owner.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	Username string `bson:"username" json:"username"`
	Email    string `bson:"email" json:"email"`

	// Empty for OAuth-only accounts
	Password string `bson:"password,omitempty" json:"-"`

	VerifyCode       string    `bson:"verify_code,omitempty" json:"-"`
	VerifyCodeExpiry time.Time `bson:"verify_code_expiry,omitempty" json:"-"`
	IsVerified       bool      `bson:"is_verified" json:"is_verified"`

	IsAcceptingMessages bool `bson:"is_accepting_messages" json:"is_accepting_messages"`

	Providers []ProviderLink `bson:"providers,omitempty" json:"providers,omitempty"`
	AvatarURL string         `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`

	Messages []Message `bson:"messages" json:"-"`
}

// HasProvider reports whether a link for the named provider already exists.
func (u *User) HasProvider(name string) bool {
	for _, p := range u.Providers {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Identity is the projection handed out after authentication. It never
// carries the password hash or the verification code.
type Identity struct {
	ID                  string `json:"id"`
	Email               string `json:"email"`
	Username            string `json:"username"`
	IsVerified          bool   `json:"isVerified"`
	IsAcceptingMessages bool   `json:"isAcceptingMessages"`
}

func (u *User) Identity() Identity {
	return Identity{
		ID:                  u.ID.Hex(),
		Email:               u.Email,
		Username:            u.Username,
		IsVerified:          u.IsVerified,
		IsAcceptingMessages: u.IsAcceptingMessages,
	}
}
