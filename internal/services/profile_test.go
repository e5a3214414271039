package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/AnshRaj112/whisper-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapProfileCache struct {
	entries map[string]PublicProfile
	gets    int
}

func newMapProfileCache() *mapProfileCache {
	return &mapProfileCache{entries: make(map[string]PublicProfile)}
}

func (c *mapProfileCache) Get(_ context.Context, username string) (*PublicProfile, bool, error) {
	c.gets++
	p, ok := c.entries[username]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *mapProfileCache) Set(_ context.Context, p *PublicProfile) error {
	c.entries[p.Username] = *p
	return nil
}

func (c *mapProfileCache) Delete(_ context.Context, username string) error {
	delete(c.entries, username)
	return nil
}

type fakeUploader struct {
	body string
	err  error
}

func (u *fakeUploader) UploadAvatar(_ context.Context, userID string, file io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	b, _ := io.ReadAll(file)
	u.body = string(b)
	return "https://cdn.example.com/" + userID + ".png", nil
}

func TestProfile_CachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserStore()
	cache := newMapProfileCache()
	svc := NewProfileService(users, cache, nil, testLogger())
	john := createUser(t, users, "john", "john@example.com", "", true, true)

	p, err := svc.Profile(ctx, "john")
	require.NoError(t, err)
	assert.True(t, p.IsAcceptingMessages)
	assert.Contains(t, cache.entries, "john")

	require.NoError(t, svc.SetAcceptingMessages(ctx, john.ID, "john", false))
	assert.NotContains(t, cache.entries, "john")

	p, err = svc.Profile(ctx, "john")
	require.NoError(t, err)
	assert.False(t, p.IsAcceptingMessages)

	stored, err := users.FindByID(ctx, john.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAcceptingMessages)

	_, err = svc.Profile(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUploadAvatar(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserStore()
	john := createUser(t, users, "john", "john@example.com", "", true, true)

	_, err := NewProfileService(users, nil, nil, testLogger()).UploadAvatar(ctx, john.ID, "john", strings.NewReader("png"))
	assert.ErrorIs(t, err, ErrUploadsDisabled)

	up := &fakeUploader{}
	svc := NewProfileService(users, nil, up, testLogger())
	url, err := svc.UploadAvatar(ctx, john.ID, "john", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/"+john.ID.Hex()+".png", url)
	assert.Equal(t, "png-bytes", up.body)

	p, err := svc.Profile(ctx, "john")
	require.NoError(t, err)
	assert.Equal(t, url, p.AvatarURL)

	up.err = errors.New("cloudinary down")
	_, err = svc.UploadAvatar(ctx, john.ID, "john", strings.NewReader("png"))
	assert.Error(t, err)
}
