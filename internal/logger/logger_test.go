package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew_ProductionUsesJSON(t *testing.T) {
	l := New("production", "warn")

	_, ok := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestNew_DevelopmentDefaults(t *testing.T) {
	l := New("development", "not-a-level")

	_, ok := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}
