package logger

import (
	"log/slog"

	"github.com/tilsley/stockroom/apps/server/internal/config"
	"github.com/tilsley/stockroom/pkg/logging"
)

// New returns the server logger for cfg. LOG_FORMAT and LOG_LEVEL still win,
// see pkg/logging.
func New(cfg config.LogConfig) *slog.Logger {
	return logging.NewWithOptions(logging.Options{Format: cfg.Format, Level: cfg.Level})
}
