package services

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/AnshRaj112/whisper-backend/internal/store"
	"github.com/AnshRaj112/whisper-backend/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func createUser(t *testing.T, s UserStore, username, email, password string, verified, accepting bool) *models.User {
	t.Helper()
	u := &models.User{
		Username:            username,
		Email:               email,
		IsVerified:          verified,
		IsAcceptingMessages: accepting,
	}
	if password != "" {
		hash, err := utils.HashPassword(password)
		require.NoError(t, err)
		u.Password = hash
	}
	require.NoError(t, s.Create(context.Background(), u))
	return u
}

// takenNameStore overrides UsernameExists so handle selection can be driven without
// creating a thousand users.
type takenNameStore struct {
	*store.MemoryUserStore
	taken func(string) bool
	calls int
}

func (p *takenNameStore) UsernameExists(_ context.Context, username string) (bool, error) {
	p.calls++
	return p.taken(username), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.MessageView
	err    error
}

func (n *recordingNotifier) NotifyMessage(_ context.Context, _ string, msg models.MessageView) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, msg)
	return n.err
}

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *recordingMailer) SendVerificationCode(_ context.Context, to, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[to] = code
	return nil
}

type recordingLedger struct {
	flags []models.MessageFlag
	err   error
}

func (l *recordingLedger) RecordFlag(_ context.Context, flag models.MessageFlag) error {
	l.flags = append(l.flags, flag)
	return l.err
}
