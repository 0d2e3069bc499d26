// Package logger configures the process-wide zerolog output.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Init initializes a logger writing structured output to stderr so that the
// chat conversation on stdout stays clean. An empty level falls back to the
// LOG_LEVEL environment variable, then to info.
func Init(level string) zerolog.Logger {
	return InitWithOptions(os.Stderr, level, false)
}

// InitWithOptions initializes a logger on the given writer. If pretty is
// true the output goes through a ConsoleWriter for human-readable lines.
func InitWithOptions(w io.Writer, level string, pretty bool) zerolog.Logger {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	lvl := parseLevel(level)

	if pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	log := zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	log.Debug().Str("level", lvl.String()).Msg("Logger initialized")
	return log
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
