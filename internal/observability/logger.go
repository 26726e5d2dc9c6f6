package observability

import (
	"log/slog"
	"os"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/lmittmann/tint"

	"github.com/couchcryptid/aq-export-service/internal/config"
)

// NewLogger builds the process logger and installs it as the slog default.
// JSON goes through the shared service logger; text uses tint on stderr for
// humans at a terminal.
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.LogFormat != "text" {
		return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
	return logger
}
