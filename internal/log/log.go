// Package log provides structured logging for the host inspection layer.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	ResetOutput()

	// Reports go to stdout, so stay quiet on stderr unless asked otherwise
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if lvl := os.Getenv("HARDENSPEC_LOG_LEVEL"); lvl != "" {
		if level, err := zerolog.ParseLevel(lvl); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}
}

// SetOutput writes JSON lines to w instead of the console
func SetOutput(w io.Writer) {
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// ResetOutput restores the human-readable console writer on stderr
func ResetOutput() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger = zerolog.New(output).With().Timestamp().Logger()
}

// SetLevelString parses a level name (debug, info, warn, error) and applies it
func SetLevelString(lvl string) error {
	level, err := zerolog.ParseLevel(lvl)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// DebugEvent starts a debug event so callers can attach typed fields
func DebugEvent() *zerolog.Event {
	return logger.Debug()
}

// WarnEvent starts a warning event so callers can attach typed fields
func WarnEvent() *zerolog.Event {
	return logger.Warn()
}
