package main

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestHostname(t *testing.T) {
	assert.Equal(t, "api.whisper.app", hostname("https://api.whisper.app"))
	assert.Equal(t, "localhost", hostname("http://localhost:8080"))
	assert.Equal(t, "api.whisper.app", hostname("api.whisper.app"))
}

func TestOAuthStateKey(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	assert.Equal(t, []byte("configured"), oauthStateKey("configured", log))
	a, b := oauthStateKey("", log), oauthStateKey("", log)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
