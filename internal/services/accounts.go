package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/AnshRaj112/whisper-backend/internal/store"
	"github.com/AnshRaj112/whisper-backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

// VerifyCodeTTL is how long a sign-up code stays valid.
const VerifyCodeTTL = time.Hour

// Mailer delivers verification codes.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, username, code string) error
}

// AccountService handles credential sign-up and email verification.
type AccountService struct {
	users  UserStore
	mailer Mailer
	log    *logrus.Logger
	now    func() time.Time
}

func NewAccountService(users UserStore, mailer Mailer, log *logrus.Logger) *AccountService {
	return &AccountService{users: users, mailer: mailer, log: log, now: time.Now}
}

// SignUpInput is the credential registration request.
type SignUpInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate returns a *utils.ValidationError for the first bad field.
func (in *SignUpInput) Validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := utils.ValidateUsername(in.Username); err != nil {
		return err
	}
	if err := utils.ValidateEmail(in.Email); err != nil {
		return err
	}
	if len(in.Password) < utils.MinPasswordLength {
		return &utils.ValidationError{Field: "password", Message: "Password must be at least 6 characters"}
	}
	return nil
}

// SignUp registers an unverified account, or refreshes the password and code
// of an unverified account already holding the email, then mails the code.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	byName, err := s.users.FindByUsername(ctx, in.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup username: %w", err)
	}
	if byName != nil && byName.IsVerified {
		return ErrUsernameTaken
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	code, err := utils.GenerateVerificationCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	expiry := s.now().UTC().Add(VerifyCodeTTL)

	byEmail, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil && byEmail.IsVerified:
		return ErrEmailTaken
	case err == nil:
		// Pending account with this email: the username stays, credentials refresh.
		byEmail.Password = hash
		byEmail.VerifyCode = code
		byEmail.VerifyCodeExpiry = expiry
		if err := s.users.UpdateAccount(ctx, byEmail); err != nil {
			return fmt.Errorf("refresh pending account: %w", err)
		}
		return s.sendCode(ctx, byEmail.Email, byEmail.Username, code)
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("lookup email: %w", err)
	}

	// An unverified account elsewhere still holds the handle.
	if byName != nil {
		return ErrUsernameTaken
	}

	u := &models.User{
		Username:            in.Username,
		Email:               in.Email,
		Password:            hash,
		VerifyCode:          code,
		VerifyCodeExpiry:    expiry,
		IsVerified:          false,
		IsAcceptingMessages: true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	s.log.WithField("user_id", u.ID.Hex()).Info("Registered new account")
	return s.sendCode(ctx, u.Email, u.Username, code)
}

func (s *AccountService) sendCode(ctx context.Context, to, username, code string) error {
	if err := s.mailer.SendVerificationCode(ctx, to, username, code); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// VerifyCode confirms a pending account. An expired code is reported as
// expired even when it also does not match.
func (s *AccountService) VerifyCode(ctx context.Context, username, code string) error {
	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if u.IsVerified {
		return nil
	}

	if !s.now().Before(u.VerifyCodeExpiry) {
		return ErrCodeExpired
	}
	if u.VerifyCode == "" || u.VerifyCode != strings.TrimSpace(code) {
		return ErrInvalidCode
	}

	u.IsVerified = true
	u.VerifyCode = ""
	u.VerifyCodeExpiry = time.Time{}
	if err := s.users.UpdateAccount(ctx, u); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// UsernameAvailable reports whether username is well-formed and not held by
// any account. A pending account keeps its handle, matching SignUp.
func (s *AccountService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	if err := utils.ValidateUsername(username); err != nil {
		return false, err
	}
	_, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup username: %w", err)
	}
	return false, nil
}
