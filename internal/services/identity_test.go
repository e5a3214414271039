package services

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/AnshRaj112/whisper-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveByCredential(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserStore()
	svc := NewIdentityService(users, testLogger())

	john := createUser(t, users, "john", "john@example.com", "secret1", true, true)
	createUser(t, users, "pending", "pending@example.com", "secret1", false, true)

	t.Run("by username", func(t *testing.T) {
		id, err := svc.ResolveByCredential(ctx, "john", "secret1")
		require.NoError(t, err)
		assert.Equal(t, john.ID.Hex(), id.ID)
		assert.Equal(t, "john@example.com", id.Email)
		assert.True(t, id.IsAcceptingMessages)
	})

	t.Run("by email", func(t *testing.T) {
		id, err := svc.ResolveByCredential(ctx, "john@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "john", id.Username)
	})

	t.Run("handle is case sensitive", func(t *testing.T) {
		_, err := svc.ResolveByCredential(ctx, "John", "secret1")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("unverified", func(t *testing.T) {
		_, err := svc.ResolveByCredential(ctx, "pending", "secret1")
		assert.ErrorIs(t, err, ErrUnverified)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.ResolveByCredential(ctx, "john", "nope")
		assert.ErrorIs(t, err, ErrBadCredential)
	})
}

func TestResolveOrCreateByProvider_DeniesUnverifiedEmail(t *testing.T) {
	svc := NewIdentityService(store.NewMemoryUserStore(), testLogger())

	_, err := svc.ResolveOrCreateByProvider(context.Background(), "google", ProviderProfile{Subject: "1", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrProviderEmailUnverified)

	_, err = svc.ResolveOrCreateByProvider(context.Background(), "google", ProviderProfile{Subject: "1", EmailVerified: true})
	assert.ErrorIs(t, err, ErrProviderEmailUnverified)
}

func TestResolveOrCreateByProvider_CreatesUser(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserStore()
	svc := NewIdentityService(users, testLogger())

	createUser(t, users, "janedoe", "other@example.com", "", true, true)

	id, err := svc.ResolveOrCreateByProvider(ctx, "google", ProviderProfile{
		Subject: "g-1", Email: "Jane.Doe@example.com", EmailVerified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "janedoe1", id.Username)
	assert.True(t, id.IsVerified)
	assert.True(t, id.IsAcceptingMessages)

	assert.Equal(t, "jane.doe@example.com", id.Email)

	u, err := users.FindByEmail(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	assert.Empty(t, u.Password)
	require.Len(t, u.Providers, 1)
	assert.Equal(t, "google", u.Providers[0].Name)
	assert.Equal(t, "g-1", u.Providers[0].ProviderID)
}

func TestResolveOrCreateByProvider_LinksExistingUser(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserStore()
	svc := NewIdentityService(users, testLogger())

	existing := createUser(t, users, "ann", "ann@example.com", "secret1", false, true)
	profile := ProviderProfile{Subject: "g-2", Email: "ann@example.com", EmailVerified: true}

	for i := 0; i < 2; i++ {
		id, err := svc.ResolveOrCreateByProvider(ctx, "google", profile)
		require.NoError(t, err)
		assert.Equal(t, existing.ID.Hex(), id.ID)
		assert.True(t, id.IsVerified)
	}

	u, err := users.FindByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Len(t, u.Providers, 1, "linking is idempotent")
	assert.True(t, u.IsVerified)
	assert.NotEmpty(t, u.Password, "credential stays usable")
}

func TestUniqueUsername_ProbesNumericSuffixes(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserStore()
	svc := NewIdentityService(users, testLogger())

	handle, err := svc.UniqueUsername(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, "sam", handle)

	const k = 4
	createUser(t, users, "sam", "sam@example.com", "", true, true)
	for i := 1; i < k; i++ {
		createUser(t, users, "sam"+strconv.Itoa(i), "sam"+strconv.Itoa(i)+"@example.com", "", true, true)
	}

	handle, err = svc.UniqueUsername(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, "sam"+strconv.Itoa(k), handle)
}

func TestUniqueUsername_RandomFallbackIsRechecked(t *testing.T) {
	ps := &takenNameStore{MemoryUserStore: store.NewMemoryUserStore()}
	ps.taken = func(name string) bool { return name != "userbbbbbb" }
	svc := NewIdentityService(ps, testLogger())

	tokens := []string{"aaaaaa", "bbbbbb"}
	svc.randomToken = func() (string, error) {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok, nil
	}

	handle, err := svc.UniqueUsername(context.Background(), "user")
	require.NoError(t, err)
	assert.Equal(t, "userbbbbbb", handle)
	// base + 1000 numeric suffixes + two random candidates
	assert.Equal(t, 1+handleSuffixCeiling+2, ps.calls)
}

func TestUniqueUsername_GivesUpAfterRandomAttempts(t *testing.T) {
	ps := &takenNameStore{MemoryUserStore: store.NewMemoryUserStore(), taken: func(string) bool { return true }}
	svc := NewIdentityService(ps, testLogger())
	svc.randomToken = func() (string, error) { return "abcdef", nil }

	_, err := svc.UniqueUsername(context.Background(), "user")
	assert.ErrorIs(t, err, ErrHandleExhausted)
}

func TestUniqueUsername_RandomTokenError(t *testing.T) {
	ps := &takenNameStore{MemoryUserStore: store.NewMemoryUserStore(), taken: func(string) bool { return true }}
	svc := NewIdentityService(ps, testLogger())
	boom := errors.New("entropy")
	svc.randomToken = func() (string, error) { return "", boom }

	_, err := svc.UniqueUsername(context.Background(), "user")
	assert.ErrorIs(t, err, boom)
}

func TestResolveSessionUser_FallbackChain(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserStore()
	svc := NewIdentityService(users, testLogger())
	john := createUser(t, users, "john", "john@example.com", "", true, true)

	cases := []struct {
		name string
		ref  SessionRef
	}{
		{"canonical id", SessionRef{ID: john.ID.Hex()}},
		{"malformed id falls back to username", SessionRef{ID: "not-an-id", Username: "john"}},
		{"stale id falls back to email", SessionRef{ID: "64b7f0c2a1b2c3d4e5f60718", Email: "john@example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := svc.ResolveSessionUser(ctx, tc.ref)
			require.NoError(t, err)
			assert.Equal(t, john.ID, u.ID)
		})
	}

	_, err := svc.ResolveSessionUser(ctx, SessionRef{})
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = svc.ResolveSessionUser(ctx, SessionRef{Username: "ghost"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
