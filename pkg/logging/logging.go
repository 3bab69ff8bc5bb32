// Package logging provides a slog.Logger factory used by all stockroom apps.
//
// Log format is controlled by the LOG_FORMAT environment variable:
//
//	LOG_FORMAT=json    structured JSON, suitable for log aggregators (default)
//	LOG_FORMAT=text    human-readable key=value pairs, for local development
//
// Log level is controlled by LOG_LEVEL (debug, info, warn, error; default info).
// Apps that load a config file pass the configured values to NewWithOptions;
// the environment still wins when set.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler and level. Empty fields fall back to the env.
type Options struct {
	Format string
	Level  string
	Output io.Writer
}

// New returns a logger configured from environment variables.
func New() *slog.Logger {
	return NewWithOptions(Options{})
}

// NewWithOptions returns a logger for the given options, with LOG_FORMAT and
// LOG_LEVEL taking precedence.
func NewWithOptions(o Options) *slog.Logger {
	format := firstNonEmpty(os.Getenv("LOG_FORMAT"), o.Format)
	level := parseLevel(firstNonEmpty(os.Getenv("LOG_LEVEL"), o.Level))

	out := o.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text", "console":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
