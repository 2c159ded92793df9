package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger with sane defaults for the client.
// Development gets a human-readable console writer at debug level; anything
// else logs JSON at info.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}

// Logger aliases zerolog.Logger so callers outside this package depend on the
// logging contract without importing the third-party module directly.
type Logger = zerolog.Logger

// Discard returns a logger that drops everything. Components use it when
// constructed without an explicit logger.
func Discard() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}
