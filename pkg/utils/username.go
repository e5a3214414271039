package utils

import (
	"regexp"
	"strings"
)

const (
	MinUsernameLength = 2
	MaxUsernameLength = 20

	// Handles derived from an email local part are cut to this length so a
	// numeric or random suffix still fits under MaxUsernameLength.
	DerivedUsernameLength = 14
	DefaultUsernameBase   = "user"
)

var (
	usernameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonAlphanumRegex = regexp.MustCompile(`[^a-z0-9]`)
)

// ValidateUsername validates username format
// Rules: 2-20 characters, letters, numbers, underscores only
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return &ValidationError{Field: "username", Message: "Username must be at least 2 characters"}
	}

	if len(username) > MaxUsernameLength {
		return &ValidationError{Field: "username", Message: "Username must be no more than 20 characters"}
	}

	if !usernameRegex.MatchString(username) {
		return &ValidationError{Field: "username", Message: "Username must not contain special characters"}
	}

	return nil
}

// ValidateEmail performs a shape check only; ownership is proven by the verification code.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: "email", Message: "Invalid email address"}
	}
	return nil
}

// DeriveUsernameBase turns an email local part into a handle candidate:
// lower-cased, non-alphanumerics stripped, truncated, "user" when nothing is left.
func DeriveUsernameBase(email string) string {
	local := email
	if idx := strings.Index(email, "@"); idx != -1 {
		local = email[:idx]
	}
	clean := nonAlphanumRegex.ReplaceAllString(strings.ToLower(local), "")
	if len(clean) > DerivedUsernameLength {
		clean = clean[:DerivedUsernameLength]
	}
	if clean == "" {
		return DefaultUsernameBase
	}
	return clean
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
