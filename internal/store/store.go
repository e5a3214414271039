package store

import (
	"errors"
)

var (
	ErrNotFound = errors.New("store: document not found")
	// ErrDuplicate is returned when a unique key (username or email) is already taken.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrNotAccepting is returned by AppendMessage when the owner's acceptance flag is off.
	ErrNotAccepting = errors.New("store: user is not accepting messages")
)

const usersCollection = "users"
