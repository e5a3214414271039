package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Production emits JSON for log shipping,
// everything else gets the human-readable text formatter.
func New(environment, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if environment == "production" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return l
}
