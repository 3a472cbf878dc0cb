// Package logging builds the logrus loggers used by the runtime packages.
// Loggers are created once by the caller and passed down through options.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a text logger writing to w at the given level. An unknown level
// falls back to info.
func New(w io.Writer, level string) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// Default returns an info-level entry on stderr
func Default() *logrus.Entry {
	return logrus.NewEntry(New(os.Stderr, "info"))
}

// Discard returns an entry that drops everything, for tests
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// OrDefault returns log, or Default when log is nil
func OrDefault(log *logrus.Entry) *logrus.Entry {
	if log == nil {
		return Default()
	}
	return log
}
