// Package logging configures the logrus logger used for diagnostics.
// Diagnostics go to stderr so that report output on stdout stays clean.
package logging

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// Setup returns a logger writing to w at the named level
// ("debug", "info", "warn", ...).
func Setup(w io.Writer, levelStr string) (log.FieldLogger, error) {
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}

	logger := log.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger, nil
}

// Discard returns a logger that drops everything. Used as a default in tests
// and by callers that do not supply one.
func Discard() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}
